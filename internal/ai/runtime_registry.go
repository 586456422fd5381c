package ai

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

// RuntimeFactory builds a Runtime from the generic config below.
type RuntimeFactory func(RuntimeConfig) Runtime

// RuntimeConfig carries common knobs used by runtimes.
type RuntimeConfig struct {
	// Common
	HTTPTimeout time.Duration
	RetryMax    int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	// OpenRouter
	APIKey string
	// Ollama
	Host string
}

var (
	registryMu sync.RWMutex
	registry   = map[string]RuntimeFactory{}
)

// RegisterRuntime registers a provider name with its factory.
func RegisterRuntime(name string, f RuntimeFactory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = f
}

// GetRuntime creates a Runtime for the given provider if registered.
func GetRuntime(name string, cfg RuntimeConfig) (Runtime, bool) {
	registryMu.RLock()
	f, ok := registry[name]
	registryMu.RUnlock()
	if !ok {
		return nil, false
	}
	return f(cfg), true
}

// MustRuntime is GetRuntime with an error naming the known providers.
func MustRuntime(name string, cfg RuntimeConfig) (Runtime, error) {
	if rt, ok := GetRuntime(name, cfg); ok {
		return rt, nil
	}
	return nil, fmt.Errorf("unknown provider %q (known: %v)", name, Providers())
}

// Providers lists registered provider names.
func Providers() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	out := make([]string, 0, len(registry))
	for k := range registry {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func init() {
	RegisterRuntime(ProviderOpenRouter, func(c RuntimeConfig) Runtime {
		return NewClient(c.APIKey, c.HTTPTimeout, c.RetryMax, c.BaseDelay, c.MaxDelay)
	})
	RegisterRuntime(ProviderOllama, func(c RuntimeConfig) Runtime {
		return NewOllamaClient(c.Host, c.HTTPTimeout, c.RetryMax, c.BaseDelay, c.MaxDelay)
	})
}
