package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"text/template"
)

// MethodRequest describes the two datasets to the method suggester.
type MethodRequest struct {
	Dataset1Description string `json:"dataset1Description"`
	Dataset2Description string `json:"dataset2Description"`
}

// MethodSuggestion is free text; callers decide how to map it to a method.
type MethodSuggestion struct {
	SuggestedMethod string `json:"suggestedMethod"`
	Reasoning       string `json:"reasoning"`
}

// MethodSuggester proposes a correlation method for two datasets.
type MethodSuggester interface {
	Suggest(ctx context.Context, req MethodRequest) (*MethodSuggestion, error)
}

// CorrelationItem is one coefficient handed to the summarizer.
type CorrelationItem struct {
	Item1       string   `json:"item1"`
	Item2       string   `json:"item2"`
	Correlation float64  `json:"correlation"`
	PValue      *float64 `json:"pValue,omitempty"`
}

type SummaryRequest struct {
	Dataset1Name            string            `json:"dataset1Name"`
	Dataset2Name            string            `json:"dataset2Name"`
	CorrelationDescription  string            `json:"correlationDescription"`
	SignificantCorrelations []CorrelationItem `json:"significantCorrelations"`
}

type Summary struct {
	Summary string `json:"summary"`
}

// Summarizer narrates a finished analysis.
type Summarizer interface {
	Summarize(ctx context.Context, req SummaryRequest) (*Summary, error)
}

// ErrEmptyReply is returned when the model answers with no content.
var ErrEmptyReply = errors.New("model returned an empty response")

var promptFuncs = template.FuncMap{
	"num":   func(f float64) string { return strconv.FormatFloat(f, 'g', -1, 64) },
	"deref": func(p *float64) float64 { return *p },
}

var suggestPrompt = template.Must(template.New("suggest").Parse(`You are an expert statistician. Based on the descriptions of two datasets, suggest the most appropriate statistical correlation method to use.

Dataset 1 Description: {{.Dataset1Description}}
Dataset 2 Description: {{.Dataset2Description}}

Consider the data types, distributions, and potential non-linear relationships when making your suggestion. Provide a clear reasoning for your choice.

Output the suggested method and the reasoning behind it.
Respond with a JSON object of the form {"suggestedMethod": "...", "reasoning": "..."}.
`))

var summaryPrompt = template.Must(template.New("summary").Funcs(promptFuncs).Parse(`You are an expert data analyst tasked with summarizing the key findings from a correlation analysis between two datasets.

Dataset 1 Name: {{.Dataset1Name}}
Dataset 2 Name: {{.Dataset2Name}}
Correlation Description: {{.CorrelationDescription}}

Significant Correlations:
{{range .SignificantCorrelations}}- {{.Item1}} and {{.Item2}}: Correlation = {{num .Correlation}}{{if .PValue}}, p-value = {{num (deref .PValue)}}{{end}}
{{end}}
Based on the above information, provide a concise, human-readable summary of the key insights, highlighting statistically significant correlations and potential relationships between the datasets. Focus on the most important and actionable findings for a health researcher or individual practicing self-quantification.
What potential relationships and further investigations should be considered based on this data?
What caveats should be considered?
Respond with a JSON object of the form {"summary": "..."}.
`))

// Insights implements MethodSuggester and Summarizer on top of a Runtime.
type Insights struct {
	Runtime     Runtime
	Model       string
	MaxTokens   int
	Temperature float64
}

// NewInsights returns Insights with the CLI's default generation settings.
func NewInsights(rt Runtime, model string) *Insights {
	return &Insights{Runtime: rt, Model: model, MaxTokens: 1024, Temperature: 0.2}
}

// Suggest asks the model for a method. A reply that is not JSON is taken
// verbatim as the suggested method.
func (in *Insights) Suggest(ctx context.Context, req MethodRequest) (*MethodSuggestion, error) {
	reply, err := in.ask(ctx, suggestPrompt, req)
	if err != nil {
		return nil, err
	}
	var out MethodSuggestion
	if decodeJSONReply(reply, &out) && out.SuggestedMethod != "" {
		return &out, nil
	}
	return &MethodSuggestion{SuggestedMethod: strings.TrimSpace(reply)}, nil
}

// Summarize asks the model for a narrative. A reply that is not JSON is used
// as the summary text.
func (in *Insights) Summarize(ctx context.Context, req SummaryRequest) (*Summary, error) {
	reply, err := in.ask(ctx, summaryPrompt, req)
	if err != nil {
		return nil, err
	}
	var out Summary
	if decodeJSONReply(reply, &out) && out.Summary != "" {
		return &out, nil
	}
	return &Summary{Summary: strings.TrimSpace(reply)}, nil
}

func (in *Insights) ask(ctx context.Context, tmpl *template.Template, data any) (string, error) {
	if in.Runtime == nil {
		return "", errors.New("no model runtime configured")
	}
	var prompt strings.Builder
	if err := tmpl.Execute(&prompt, data); err != nil {
		return "", fmt.Errorf("render prompt: %w", err)
	}
	resp, err := in.Runtime.Generate(ctx, GenerateRequest{
		Model:       in.Model,
		Messages:    []Message{{Role: "user", Content: prompt.String()}},
		MaxTokens:   in.MaxTokens,
		Temperature: in.Temperature,
		JSON:        true,
	})
	if err != nil {
		return "", err
	}
	reply := strings.TrimSpace(resp.Content())
	if reply == "" {
		return "", ErrEmptyReply
	}
	return reply, nil
}

// decodeJSONReply strips markdown code fences and decodes the outermost
// object in text into v.
func decodeJSONReply(text string, v any) bool {
	s := strings.TrimSpace(text)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
		if nl := strings.IndexByte(s, '\n'); nl >= 0 {
			s = s[nl+1:]
		}
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	start, end := strings.IndexByte(s, '{'), strings.LastIndexByte(s, '}')
	if start < 0 || end <= start {
		return false
	}
	return json.Unmarshal([]byte(s[start:end+1]), v) == nil
}
