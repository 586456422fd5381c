// Package analysis runs a correlation analysis end to end: validate, align,
// pick a method, correlate, and narrate.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/KaramelBytes/correlate-cli/internal/ai"
	"github.com/KaramelBytes/correlate-cli/internal/align"
	"github.com/KaramelBytes/correlate-cli/internal/metrics"
	"github.com/KaramelBytes/correlate-cli/internal/stats"
)

// DefaultMinPoints is the fewest overlapping days an analysis accepts.
const DefaultMinPoints = 3

// Analyzer wires the core to its collaborators. A nil Suggester selects
// Pearson; a nil Summarizer leaves the summary empty.
type Analyzer struct {
	Suggester  ai.MethodSuggester
	Summarizer ai.Summarizer
	MinPoints  int
	Logger     *slog.Logger
	Metrics    *metrics.Metrics
}

// Request names the two datasets. Method, when set, overrides the suggester.
type Request struct {
	Dataset1 align.Dataset
	Dataset2 align.Dataset
	Method   stats.Method
}

// Result is a finished analysis.
type Result struct {
	ID              string         `json:"id"`
	CreatedAt       time.Time      `json:"created_at"`
	Dataset1Name    string         `json:"dataset1_name"`
	Dataset2Name    string         `json:"dataset2_name"`
	ValueField1     string         `json:"dataset1_value_field"`
	ValueField2     string         `json:"dataset2_value_field"`
	Aligned         align.Series   `json:"aligned"`
	Stats           [2]align.Stats `json:"stats"`
	Correlation     stats.Result   `json:"correlation"`
	PValue          *float64       `json:"p_value,omitempty"`
	SuggestedMethod string         `json:"suggested_method"`
	Reasoning       string         `json:"reasoning"`
	Summary         string         `json:"summary"`
}

const userMethodReasoning = "Method selected by the user."

func (a *Analyzer) logger() *slog.Logger {
	if a.Logger != nil {
		return a.Logger
	}
	return slog.Default()
}

func (a *Analyzer) minPoints() int {
	if a.MinPoints > 0 {
		return a.MinPoints
	}
	return DefaultMinPoints
}

// Run performs the analysis. Nothing external is called until the aligned
// series has at least MinPoints days.
func (a *Analyzer) Run(ctx context.Context, req Request) (res *Result, err error) {
	start := time.Now()
	log := a.logger().With("component", "analysis")
	var (
		method stats.Method
		points int
	)
	defer func() {
		outcome := Outcome(err)
		a.Metrics.Analysis(outcome, string(method), points, time.Since(start))
		if err != nil {
			log.Warn("analysis failed", "outcome", outcome, "points", points, "err", err)
			return
		}
		log.Info("analysis complete", "id", res.ID, "method", method, "points", points,
			"r", res.Correlation.Coefficient, "duration", time.Since(start))
	}()

	d1 := withDefaultName(req.Dataset1, "Dataset 1")
	d2 := withDefaultName(req.Dataset2, "Dataset 2")
	for _, d := range []align.Dataset{d1, d2} {
		if err := d.Validate(); err != nil {
			if errors.Is(err, align.ErrNoRecords) {
				return nil, fmt.Errorf("%s: %w", d.Name, ErrEmptyDataset)
			}
			return nil, fmt.Errorf("%s: %w", d.Name, err)
		}
	}

	series, st1, st2 := align.AlignWithStats(d1, d2)
	points = len(series)
	log.Debug("aligned", "points", points, "used1", st1.Used, "skipped1", st1.Skipped(), "used2", st2.Used, "skipped2", st2.Skipped())
	if points < a.minPoints() {
		return nil, &InsufficientDataError{Points: points, Min: a.minPoints()}
	}

	suggestion, err := a.suggest(ctx, req.Method, d1, d2)
	if err != nil {
		return nil, err
	}
	method = stats.MethodFromSuggestion(suggestion.SuggestedMethod)

	x, y := series.Values()
	corr, err := stats.Correlate(method, x, y)
	if err != nil {
		return nil, fmt.Errorf("internal: %w", err)
	}
	if !corr.Defined() {
		return nil, ErrUndefinedCorrelation
	}

	res = &Result{
		ID:              uuid.NewString(),
		CreatedAt:       time.Now().UTC(),
		Dataset1Name:    d1.Name,
		Dataset2Name:    d2.Name,
		ValueField1:     d1.ValueField,
		ValueField2:     d2.ValueField,
		Aligned:         series,
		Stats:           [2]align.Stats{st1, st2},
		Correlation:     corr,
		SuggestedMethod: suggestion.SuggestedMethod,
		Reasoning:       suggestion.Reasoning,
	}
	if p := stats.PValue(corr.Coefficient, points); !math.IsNaN(p) {
		res.PValue = &p
	}

	if a.Summarizer != nil {
		sum, err := a.summarize(ctx, res)
		if err != nil {
			return nil, err
		}
		res.Summary = sum
	}
	return res, nil
}

func (a *Analyzer) suggest(ctx context.Context, override stats.Method, d1, d2 align.Dataset) (*ai.MethodSuggestion, error) {
	if override != "" {
		return &ai.MethodSuggestion{SuggestedMethod: override.Title(), Reasoning: userMethodReasoning}, nil
	}
	if a.Suggester == nil {
		return &ai.MethodSuggestion{SuggestedMethod: stats.Pearson.Title(), Reasoning: "default"}, nil
	}
	start := time.Now()
	s, err := a.Suggester.Suggest(ctx, ai.MethodRequest{
		Dataset1Description: describe(d1),
		Dataset2Description: describe(d2),
	})
	a.Metrics.Collaborator(StepSuggest, time.Since(start), err)
	if err != nil {
		return nil, &CollaboratorError{Step: StepSuggest, Err: err}
	}
	if s == nil {
		s = &ai.MethodSuggestion{}
	}
	return s, nil
}

func (a *Analyzer) summarize(ctx context.Context, res *Result) (string, error) {
	item := ai.CorrelationItem{
		Item1:       res.ValueField1,
		Item2:       res.ValueField2,
		Correlation: res.Correlation.Coefficient,
		PValue:      res.PValue,
	}
	start := time.Now()
	out, err := a.Summarizer.Summarize(ctx, ai.SummaryRequest{
		Dataset1Name:            res.Dataset1Name,
		Dataset2Name:            res.Dataset2Name,
		CorrelationDescription:  fmt.Sprintf("Analysis was performed using the %s correlation method. %s", res.SuggestedMethod, res.Reasoning),
		SignificantCorrelations: []ai.CorrelationItem{item},
	})
	a.Metrics.Collaborator(StepSummarize, time.Since(start), err)
	if err != nil {
		return "", &CollaboratorError{Step: StepSummarize, Err: err}
	}
	if out == nil {
		return "", nil
	}
	return out.Summary, nil
}

func describe(d align.Dataset) string {
	return fmt.Sprintf(`A time-series dataset named "%s" with numerical values.`, d.Name)
}

func withDefaultName(d align.Dataset, name string) align.Dataset {
	if d.Name == "" {
		d.Name = name
	}
	return d
}
