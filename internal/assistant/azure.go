package assistant

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/azure"
	"github.com/openai/openai-go/option"

	"github.com/heinrichuk/pmoai/internal/config"
)

// AzureCompleter calls an Azure OpenAI chat deployment.
type AzureCompleter struct {
	client      *openai.Client
	deployment  string
	temperature float64
	maxTokens   int
}

func NewAzureCompleter(cfg config.AzureConfig, temperature float64, maxTokens int) *AzureCompleter {
	client := openai.NewClient(
		azure.WithEndpoint(cfg.Endpoint, cfg.APIVersion),
		azure.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	)
	return &AzureCompleter{
		client:      &client,
		deployment:  cfg.Deployment,
		temperature: temperature,
		maxTokens:   maxTokens,
	}
}

func (c *AzureCompleter) Name() string { return config.ProviderAzure }

func (c *AzureCompleter) Complete(ctx context.Context, system, user string) (string, error) {
	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(system),
			openai.UserMessage(user),
		},
		Model:       openai.ChatModel(c.deployment),
		Temperature: openai.Float(c.temperature),
		MaxTokens:   openai.Int(int64(c.maxTokens)),
	})
	if err != nil {
		return "", fmt.Errorf("azure openai: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("azure openai: %w", ErrEmptyCompletion)
	}
	return resp.Choices[0].Message.Content, nil
}
