package assistant

import (
	"context"
	"fmt"

	"github.com/heinrichuk/pmoai/internal/config"
)

// NewCompleter builds the completer for the configured provider. It returns
// nil, nil when that provider has no credentials, which leaves the gateway on
// the fallback table.
func NewCompleter(ctx context.Context, cfg config.AssistantConfig) (Completer, error) {
	switch cfg.Provider {
	case config.ProviderAzure:
		if !cfg.Azure.Configured() {
			return nil, nil
		}
		return NewAzureCompleter(cfg.Azure, cfg.Temperature, cfg.MaxTokens), nil
	case config.ProviderAnthropic:
		if cfg.Anthropic.APIKey == "" {
			return nil, nil
		}
		return NewAnthropicCompleter(cfg.Anthropic, cfg.Temperature, cfg.MaxTokens), nil
	case config.ProviderGemini:
		if cfg.Gemini.APIKey == "" {
			return nil, nil
		}
		c, err := NewGeminiCompleter(ctx, cfg.Gemini, cfg.Temperature, cfg.MaxTokens)
		if err != nil {
			return nil, err
		}
		return c, nil
	default:
		return nil, fmt.Errorf("unknown assistant provider %q", cfg.Provider)
	}
}
