package nlp

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/sashabaranov/go-openai"

	"github.com/soundprediction/ontoreason/pkg/config"
)

// OpenAIClient implements the Client interface for OpenAI's language models
// and OpenAI-compatible services.
type OpenAIClient struct {
	client *openai.Client
	config config.NLPConfig
}

var _ Client = (*OpenAIClient)(nil)

// NewOpenAIClient creates a new OpenAI client.
// Supports OpenAI-compatible services through custom BaseURL configuration.
func NewOpenAIClient(cfg config.NLPConfig) (*OpenAIClient, error) {
	apiKey := cfg.APIKey
	clientConfig := openai.DefaultConfig(apiKey)

	if cfg.BaseURL != "" {
		if err := validateBaseURL(cfg.BaseURL); err != nil {
			return nil, fmt.Errorf("invalid base URL: %w", err)
		}
		// Some local services accept any key.
		if apiKey == "" {
			clientConfig = openai.DefaultConfig("dummy-key")
		}
		base := strings.TrimRight(cfg.BaseURL, "/")
		if !hasAPIPath(base) {
			base += "/v1"
		}
		clientConfig.BaseURL = base
	} else if apiKey == "" {
		return nil, errors.New("openai api key is required without a base URL")
	}

	if cfg.Model == "" {
		cfg.Model = openai.GPT4oMini
	}

	return &OpenAIClient{
		client: openai.NewClientWithConfig(clientConfig),
		config: cfg,
	}, nil
}

// Chat sends a chat completion request.
func (c *OpenAIClient) Chat(ctx context.Context, messages []Message) (*Response, error) {
	return c.complete(ctx, c.buildChatRequest(messages, false))
}

// ChatJSON sends a chat completion request asking for a JSON object.
func (c *OpenAIClient) ChatJSON(ctx context.Context, messages []Message) (*Response, error) {
	return c.complete(ctx, c.buildChatRequest(messages, true))
}

// Close cleans up resources (no-op for OpenAI client).
func (c *OpenAIClient) Close() error {
	return nil
}

func (c *OpenAIClient) complete(ctx context.Context, req openai.ChatCompletionRequest) (*Response, error) {
	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) && apiErr.HTTPStatusCode == http.StatusTooManyRequests {
			return nil, &RateLimitError{Model: req.Model, Err: apiErr}
		}
		return nil, fmt.Errorf("openai chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, ErrEmptyResponse
	}

	choice := resp.Choices[0]
	response := &Response{
		Content:      choice.Message.Content,
		FinishReason: string(choice.FinishReason),
		Model:        resp.Model,
	}

	// Some OpenAI-compatible services omit usage.
	if resp.Usage.TotalTokens > 0 {
		response.TokensUsed = &TokenUsage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		}
	}
	return response, nil
}

func (c *OpenAIClient) buildChatRequest(messages []Message, jsonObject bool) openai.ChatCompletionRequest {
	openaiMessages := make([]openai.ChatCompletionMessage, len(messages))
	for i, msg := range messages {
		openaiMessages[i] = openai.ChatCompletionMessage{
			Role:    string(msg.Role),
			Content: msg.Content,
		}
	}

	req := openai.ChatCompletionRequest{
		Model:       c.config.Model,
		Messages:    openaiMessages,
		Temperature: c.config.Temperature,
		MaxTokens:   c.config.MaxTokens,
	}

	if jsonObject {
		req.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
		// Compatible services often ignore response_format.
		if c.config.BaseURL != "" && len(req.Messages) > 0 {
			last := &req.Messages[len(req.Messages)-1]
			if last.Role == string(RoleUser) {
				last.Content += "\n\nPlease respond with valid JSON only."
			}
		}
	}
	return req
}

// validateBaseURL validates the base URL format.
func validateBaseURL(baseURL string) error {
	parsedURL, err := url.Parse(baseURL)
	if err != nil {
		return fmt.Errorf("invalid baseURL format: %w", err)
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return errors.New("baseURL must use http:// or https:// scheme")
	}
	if parsedURL.Host == "" {
		return errors.New("baseURL must include a host")
	}
	return nil
}

// hasAPIPath checks if the base URL already ends in an API path component.
func hasAPIPath(baseURL string) bool {
	return strings.HasSuffix(baseURL, "/v1") || strings.HasSuffix(baseURL, "/api")
}
