package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/trustbites/backend/pkg/config"
)

// NewFromConfig builds the invoker for the configured provider and returns
// the label prefix stored with analyses it produces.
func NewFromConfig(ctx context.Context, cfg config.LLMConfig) (Invoker, string, error) {
	timeout := time.Duration(cfg.TimeoutSec) * time.Second

	switch cfg.Provider {
	case "bedrock":
		client, err := NewBedrockClient(ctx, cfg.Region)
		if err != nil {
			return nil, "", err
		}
		params := DefaultGenerationParams()
		if cfg.MaxTokens > 0 {
			params.MaxTokens = cfg.MaxTokens
		}
		params.Temperature = float64(cfg.Temperature)
		return NewBedrockInvoker(client, DefaultRegistry(params), timeout), "bedrock-", nil

	case "openai":
		client := NewOpenAIClient(cfg.APIKey, cfg.BaseURL)
		return NewOpenAIInvoker(client, cfg.Temperature, cfg.MaxTokens, timeout), "openai-", nil

	default:
		return nil, "", fmt.Errorf("unsupported llm provider %q", cfg.Provider)
	}
}
