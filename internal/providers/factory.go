package providers

import (
	"fmt"

	"github.com/tsawhneybuilds/exploprd/internal/config"
)

// New builds the provider named by cfg.Provider ("mock" or "openai").
func New(cfg config.Config) (Client, error) {
	switch cfg.Provider {
	case "", "mock":
		return NewMockClient(cfg.EmbedDim), nil
	case "openai":
		return NewOpenAIClient(cfg.OpenAIAPIKey, cfg.OpenAIBase), nil
	default:
		return nil, fmt.Errorf("unknown provider %q", cfg.Provider)
	}
}
