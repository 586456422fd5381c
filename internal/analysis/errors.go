package analysis

import (
	"context"
	"errors"
	"fmt"

	"github.com/KaramelBytes/correlate-cli/internal/ai"
	"github.com/KaramelBytes/correlate-cli/internal/align"
	"github.com/KaramelBytes/correlate-cli/internal/parser"
)

var (
	// ErrEmptyDataset means a file parsed to zero records.
	ErrEmptyDataset = errors.New("file is empty or could not be parsed")
	// ErrUndefinedCorrelation means the coefficient is NaN, usually because
	// one side has no variation.
	ErrUndefinedCorrelation = errors.New("correlation is undefined")
)

// InsufficientDataError reports too few overlapping days to analyze.
type InsufficientDataError struct {
	Points int
	Min    int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("not enough overlapping data points: have %d, need at least %d", e.Points, e.Min)
}

// Collaborator steps.
const (
	StepSuggest   = "suggest"
	StepSummarize = "summarize"
)

// CollaboratorError wraps a failed model call.
type CollaboratorError struct {
	Step string
	Err  error
}

func (e *CollaboratorError) Error() string {
	return fmt.Sprintf("%s: %v", e.Step, e.Err)
}

func (e *CollaboratorError) Unwrap() error { return e.Err }

// Outcome is a short machine label for err, used in logs and metrics.
func Outcome(err error) string {
	var (
		pe  *parser.ParseError
		mf  *parser.MissingFieldError
		ide *InsufficientDataError
		ce  *CollaboratorError
	)
	switch {
	case err == nil:
		return "ok"
	case errors.As(err, &pe):
		return "parse_error"
	case errors.As(err, &mf):
		return "missing_field"
	case errors.Is(err, ErrEmptyDataset):
		return "empty_dataset"
	case errors.As(err, &ide):
		return "insufficient_data"
	case errors.Is(err, ErrUndefinedCorrelation):
		return "undefined_correlation"
	case errors.As(err, &ce):
		return "collaborator_error"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	}
	return "internal_error"
}

// UserMessage turns err into the short, actionable text shown to users.
func UserMessage(err error) string {
	var (
		pe  *parser.ParseError
		mf  *parser.MissingFieldError
		ide *InsufficientDataError
		ce  *CollaboratorError
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &pe):
		if pe.File != "" {
			return fmt.Sprintf("%s: %s", pe.File, pe.Msg)
		}
		return pe.Msg
	case errors.As(err, &mf):
		return fmt.Sprintf("Field %q was not found in the dataset. Check the selected time and value columns.", mf.Field)
	case errors.Is(err, ErrEmptyDataset), errors.Is(err, align.ErrNoRecords):
		return "File is empty or could not be parsed."
	case errors.As(err, &ide):
		return "Not enough overlapping data points to perform analysis. Please check your datasets and timestamps."
	case errors.Is(err, ErrUndefinedCorrelation):
		return "Correlation could not be calculated. This might be due to a lack of variation in one of your datasets."
	case errors.As(err, &ce):
		return collaboratorMessage(ce)
	case errors.Is(err, context.DeadlineExceeded):
		return "The analysis timed out. Try again or raise the timeout."
	}
	return "An unknown error occurred during analysis."
}

func collaboratorMessage(ce *CollaboratorError) string {
	var (
		auth  *ai.AuthError
		rl    *ai.RateLimitError
		nf    *ai.ModelNotFoundError
		quota *ai.QuotaExceededError
		unr   *ai.UnreachableError
	)
	switch {
	case errors.As(ce.Err, &auth):
		return "The model provider rejected the API key. Set OPENROUTER_API_KEY or run with --offline."
	case errors.As(ce.Err, &rl):
		return "The model provider is rate limiting requests. Wait a moment and try again."
	case errors.As(ce.Err, &nf):
		return "The configured model was not found. Choose another with --model."
	case errors.As(ce.Err, &quota):
		return "The model provider quota is exhausted."
	case errors.As(ce.Err, &unr):
		return fmt.Sprintf("Could not reach the model runtime at %s.", unr.Host)
	}
	return fmt.Sprintf("The AI %s step failed: %v", ce.Step, ce.Err)
}
