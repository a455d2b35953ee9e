package providers

import "context"

// EmbeddingClient turns text into a vector. A failed call is a hard error;
// callers decide whether to skip the fragment or abort the request.
type EmbeddingClient interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// GenerateRequest carries a fully assembled prompt plus per-call model
// parameters. Model may be empty to use the provider default.
type GenerateRequest struct {
	Prompt      string
	Model       string
	MaxTokens   int
	Temperature float64
}

type Generator interface {
	Generate(ctx context.Context, req GenerateRequest) (string, error)
}

// Client is what the API server and worker wire in.
type Client interface {
	EmbeddingClient
	Generator
}
