package llm

import (
	"context"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

const (
	jsonSystemPrompt = "You are a helpful assistant designed to output JSON."
	textSystemPrompt = "You are a helpful assistant."
)

// OpenAIClient implements Client for OpenAI chat completions. A BaseURL on
// an Azure host switches to Azure deployment routing.
type OpenAIClient struct {
	client *openai.Client
	config *Config
}

// NewOpenAIClient creates a new OpenAI client
func NewOpenAIClient(config *Config, apiKey string) (*OpenAIClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("API key is required")
	}

	var cc openai.ClientConfig
	switch {
	case isAzureEndpoint(config.BaseURL):
		cc = openai.DefaultAzureConfig(apiKey, config.BaseURL)
	default:
		cc = openai.DefaultConfig(apiKey)
		if config.BaseURL != "" {
			cc.BaseURL = strings.TrimRight(config.BaseURL, "/")
		}
	}

	return &OpenAIClient{
		client: openai.NewClientWithConfig(cc),
		config: config,
	}, nil
}

// GenerateContent requests a plain-text response for prompt
func (c *OpenAIClient) GenerateContent(ctx context.Context, prompt string, tier ModelTier) (string, error) {
	content, err := c.complete(ctx, prompt, tier, nil)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(content), nil
}

// GenerateJSON requests a JSON object response for prompt
func (c *OpenAIClient) GenerateJSON(ctx context.Context, prompt string, tier ModelTier) (string, error) {
	content, err := c.complete(ctx, prompt, tier, &openai.ChatCompletionResponseFormat{
		Type: openai.ChatCompletionResponseFormatTypeJSONObject,
	})
	if err != nil {
		return "", err
	}
	return CleanJSONBlock(content), nil
}

// complete sends one chat completion. A non-nil format selects JSON mode.
func (c *OpenAIClient) complete(ctx context.Context, prompt string, tier ModelTier, format *openai.ChatCompletionResponseFormat) (string, error) {
	modelName := c.config.GetModel(tier)
	if modelName == "" {
		return "", fmt.Errorf("no model configured for tier %s", tier)
	}

	system := textSystemPrompt
	if format != nil {
		system = jsonSystemPrompt
	}
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: modelName,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		ResponseFormat: format,
		Temperature:    c.config.Temperature,
	})
	if err != nil {
		return "", fmt.Errorf("failed to create chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices in response")
	}

	content := resp.Choices[0].Message.Content
	if strings.TrimSpace(content) == "" {
		return "", fmt.Errorf("empty content in response")
	}
	return content, nil
}

// GetModel returns the model name for a tier
func (c *OpenAIClient) GetModel(tier ModelTier) string {
	return c.config.GetModel(tier)
}

// Close is a no-op; the HTTP client holds no resources.
func (c *OpenAIClient) Close() error {
	return nil
}

func isAzureEndpoint(baseURL string) bool {
	return strings.Contains(strings.ToLower(baseURL), ".openai.azure.com")
}
