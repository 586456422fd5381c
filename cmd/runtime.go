package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/KaramelBytes/correlate-cli/internal/ai"
	"github.com/KaramelBytes/correlate-cli/internal/analysis"
	cfgpkg "github.com/KaramelBytes/correlate-cli/internal/config"
	"github.com/KaramelBytes/correlate-cli/internal/metrics"
)

type runtimeOptions struct {
	ProviderFlag string
	ModelFlag    string
	Offline      bool
	MinPoints    int
}

// buildRuntime resolves the provider and creates its runtime from config.
func buildRuntime(cfg *cfgpkg.Global, providerFlag string) (ai.Runtime, string, error) {
	httpTimeout := 60 * time.Second
	retryMax := 3
	baseDelay := 500 * time.Millisecond
	maxDelay := 4 * time.Second
	if cfg != nil {
		if cfg.HTTPTimeoutSec > 0 {
			httpTimeout = time.Duration(cfg.HTTPTimeoutSec) * time.Second
		}
		if cfg.RetryMaxAttempts > 0 {
			retryMax = cfg.RetryMaxAttempts
		}
		if cfg.RetryBaseDelayMs > 0 {
			baseDelay = time.Duration(cfg.RetryBaseDelayMs) * time.Millisecond
		}
		if cfg.RetryMaxDelayMs > 0 {
			maxDelay = time.Duration(cfg.RetryMaxDelayMs) * time.Millisecond
		}
	}

	providerName := strings.ToLower(strings.TrimSpace(providerFlag))
	if providerName == "" && cfg != nil {
		providerName = strings.ToLower(cfg.DefaultProvider)
	}
	switch providerName {
	case "":
		providerName = ai.ProviderOpenRouter
	case "local":
		providerName = ai.ProviderOllama
	case "openai", "anthropic", "google", "gemini", "meta", "llama":
		providerName = ai.ProviderOpenRouter
	}

	rc := ai.RuntimeConfig{
		HTTPTimeout: httpTimeout,
		RetryMax:    retryMax,
		BaseDelay:   baseDelay,
		MaxDelay:    maxDelay,
	}
	if cfg != nil {
		rc.APIKey = cfg.APIKey
		rc.Host = cfg.OllamaHost
		if providerName == ai.ProviderOllama && cfg.OllamaTimeoutSec > 0 {
			rc.HTTPTimeout = time.Duration(cfg.OllamaTimeoutSec) * time.Second
		}
	}
	rt, err := ai.MustRuntime(providerName, rc)
	if err != nil {
		return nil, providerName, err
	}
	return rt, providerName, nil
}

func selectModel(cfg *cfgpkg.Global, explicit string) string {
	if explicit != "" {
		return explicit
	}
	if cfg != nil && cfg.DefaultModel != "" {
		return cfg.DefaultModel
	}
	return "openai/gpt-4o-mini"
}

// newAnalyzer wires the collaborators: the offline ones when requested,
// otherwise a model runtime.
func newAnalyzer(cfg *cfgpkg.Global, opts runtimeOptions, m *metrics.Metrics) (*analysis.Analyzer, error) {
	a := &analysis.Analyzer{
		MinPoints: opts.MinPoints,
		Logger:    logger,
		Metrics:   m,
	}
	if a.MinPoints <= 0 && cfg != nil {
		a.MinPoints = cfg.MinPoints
	}
	provider := strings.TrimSpace(opts.ProviderFlag)
	if provider == "" && cfg != nil {
		provider = cfg.DefaultProvider
	}
	offline := opts.Offline || (cfg != nil && cfg.Offline) || strings.EqualFold(provider, ai.ProviderOffline)
	if offline {
		a.Suggester, a.Summarizer = ai.Offline{}, ai.Offline{}
		logger.Debug("collaborators", "provider", ai.ProviderOffline)
		return a, nil
	}
	rt, provider, err := buildRuntime(cfg, opts.ProviderFlag)
	if err != nil {
		return nil, fmt.Errorf("build runtime: %w", err)
	}
	ins := ai.NewInsights(rt, selectModel(cfg, opts.ModelFlag))
	if cfg != nil {
		if cfg.MaxTokens > 0 {
			ins.MaxTokens = cfg.MaxTokens
		}
		ins.Temperature = cfg.Temperature
	}
	a.Suggester, a.Summarizer = ins, ins
	logger.Debug("collaborators", "provider", provider, "model", ins.Model)
	return a, nil
}
