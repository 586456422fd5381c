package ai

import "context"

// Runtime is implemented by model backends such as OpenRouter and a local
// Ollama.
type Runtime interface {
	Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error)
}

// Provider identifiers used for runtime selection.
const (
	ProviderOpenRouter = "openrouter"
	ProviderOllama     = "ollama"
	ProviderOffline    = "offline"
)
