package analysis

import (
	"fmt"
	"math"
	"strings"

	"github.com/KaramelBytes/correlate-cli/internal/align"
	"github.com/KaramelBytes/correlate-cli/internal/stats"
)

// DefaultReportRows is how many aligned rows Markdown prints.
const DefaultReportRows = 10

// Markdown renders the result with DefaultReportRows aligned rows.
func (r *Result) Markdown() string { return r.Report(DefaultReportRows) }

// Report renders the result as sectioned text. rows < 0 prints every
// aligned row; 0 omits the table.
func (r *Result) Report(rows int) string {
	var b strings.Builder
	coef := r.Correlation.Coefficient

	b.WriteString("[CORRELATION]\n")
	b.WriteString(fmt.Sprintf("Datasets: %s (%s) vs %s (%s)\n", safeName(r.Dataset1Name), safeName(r.ValueField1), safeName(r.Dataset2Name), safeName(r.ValueField2)))
	b.WriteString(fmt.Sprintf("Coefficient: %.3f (%s %s correlation)\n", coef, stats.Strength(coef), stats.Direction(coef)))
	if r.PValue != nil {
		b.WriteString(fmt.Sprintf("p-value: %.4g\n", *r.PValue))
	}
	b.WriteString(fmt.Sprintf("Overlapping days: %d", len(r.Aligned)))
	if n := len(r.Aligned); n > 0 {
		b.WriteString(fmt.Sprintf(" (%s to %s)", r.Aligned[0].Date, r.Aligned[n-1].Date))
	}
	b.WriteString("\n\n")

	b.WriteString("[METHOD]\n")
	b.WriteString(fmt.Sprintf("Method: %s\n", r.Correlation.Method.Title()))
	if r.SuggestedMethod != "" && !strings.EqualFold(r.SuggestedMethod, r.Correlation.Method.Title()) {
		b.WriteString(fmt.Sprintf("Suggested: %s\n", oneLine(r.SuggestedMethod)))
	}
	if r.Reasoning != "" {
		b.WriteString(fmt.Sprintf("Reasoning: %s\n", oneLine(r.Reasoning)))
	}

	if r.Summary != "" {
		b.WriteString("\n[SUMMARY]\n")
		b.WriteString(strings.TrimSpace(r.Summary))
		b.WriteString("\n")
	}

	if len(r.Aligned) > 0 {
		x, y := r.Aligned.Values()
		b.WriteString("\n[SERIES]\n")
		writeSeriesLine(&b, r.ValueField1, x)
		writeSeriesLine(&b, r.ValueField2, y)
	}

	if rows != 0 && len(r.Aligned) > 0 {
		b.WriteString("\n[ALIGNED DATA]\n")
		b.WriteString(fmt.Sprintf("| date | %s | %s |\n", safeVal(safeName(r.ValueField1)), safeVal(safeName(r.ValueField2))))
		b.WriteString("| --- | --- | --- |\n")
		limit := len(r.Aligned)
		if rows > 0 && rows < limit {
			limit = rows
		}
		for _, p := range r.Aligned[:limit] {
			b.WriteString(fmt.Sprintf("| %s | %.4g | %.4g |\n", p.Date, p.Value1, p.Value2))
		}
		if rest := len(r.Aligned) - limit; rest > 0 {
			b.WriteString(fmt.Sprintf("(%d more rows)\n", rest))
		}
	}

	if notes := r.notes(); len(notes) > 0 {
		b.WriteString("\n[NOTES]\n")
		for _, n := range notes {
			b.WriteString("- ")
			b.WriteString(n)
			b.WriteString("\n")
		}
	}
	return b.String()
}

func writeSeriesLine(b *strings.Builder, name string, xs []float64) {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, v := range xs {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	b.WriteString(fmt.Sprintf("- %s: mean %.4g, std %.4g, min %.4g, max %.4g\n", safeName(name), stats.Mean(xs), stats.StdDev(xs), lo, hi))
}

func (r *Result) notes() []string {
	var out []string
	names := [2]string{r.Dataset1Name, r.Dataset2Name}
	for i, st := range r.Stats {
		out = append(out, statsNotes(names[i], st)...)
	}
	if r.PValue != nil && *r.PValue >= 0.05 {
		out = append(out, fmt.Sprintf("p-value %.3g is not below 0.05; the relationship may be due to chance.", *r.PValue))
	}
	return out
}

func statsNotes(name string, st align.Stats) []string {
	if st.Skipped() == 0 {
		return nil
	}
	var parts []string
	if st.SkippedMissing > 0 {
		parts = append(parts, fmt.Sprintf("%d missing a field", st.SkippedMissing))
	}
	if st.SkippedTime > 0 {
		parts = append(parts, fmt.Sprintf("%d with an unreadable timestamp", st.SkippedTime))
	}
	if st.SkippedValue > 0 {
		parts = append(parts, fmt.Sprintf("%d with a non-numeric value", st.SkippedValue))
	}
	return []string{fmt.Sprintf("%s: skipped %d of %d records (%s)", safeName(name), st.Skipped(), st.Records, strings.Join(parts, ", "))}
}

func safeName(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "(unnamed)"
	}
	return s
}

func safeVal(s string) string { return strings.ReplaceAll(oneLine(s), "|", "/") }

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
