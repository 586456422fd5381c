package ai

import (
	"context"
	"fmt"
	"strings"

	"github.com/KaramelBytes/correlate-cli/internal/stats"
)

// Offline answers both collaborator calls locally without a model.
type Offline struct{}

var (
	_ MethodSuggester = Offline{}
	_ Summarizer      = Offline{}
	_ MethodSuggester = (*Insights)(nil)
	_ Summarizer      = (*Insights)(nil)
)

func (Offline) Suggest(_ context.Context, _ MethodRequest) (*MethodSuggestion, error) {
	return &MethodSuggestion{
		SuggestedMethod: stats.Pearson.Title(),
		Reasoning:       "Offline mode: Pearson is the default for two numerical time series. Pass --method spearman for monotonic or outlier-heavy data.",
	}, nil
}

func (Offline) Summarize(_ context.Context, req SummaryRequest) (*Summary, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "Comparing %s with %s. ", req.Dataset1Name, req.Dataset2Name)
	for _, it := range req.SignificantCorrelations {
		label := strings.ToLower(stats.Strength(it.Correlation))
		fmt.Fprintf(&b, "%s and %s show a %s %s correlation (r = %.3f", it.Item1, it.Item2, label, stats.Direction(it.Correlation), it.Correlation)
		if it.PValue != nil {
			fmt.Fprintf(&b, ", p = %.3g", *it.PValue)
		}
		b.WriteString("). ")
	}
	b.WriteString("Correlation does not imply causation, and a short overlap between the datasets can produce a spurious relationship.")
	return &Summary{Summary: b.String()}, nil
}
