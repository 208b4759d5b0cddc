package llm

import (
	"context"
	"errors"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// DefaultOpenAIModel is used when neither the client nor the request names
// a model.
const DefaultOpenAIModel = "gpt-4o-mini"

// OpenAI implements Client with the chat completions API.
type OpenAI struct {
	client *openai.Client
	model  string
}

// OpenAIOption configures OpenAI.
type OpenAIOption func(*openai.ClientConfig, *OpenAI)

// WithOpenAIModel sets the default model.
func WithOpenAIModel(model string) OpenAIOption {
	return func(_ *openai.ClientConfig, o *OpenAI) { o.model = model }
}

// WithBaseURL points the client at a compatible endpoint.
func WithBaseURL(url string) OpenAIOption {
	return func(cfg *openai.ClientConfig, _ *OpenAI) { cfg.BaseURL = url }
}

// WithHTTPTimeout bounds each HTTP call.
func WithHTTPTimeout(d time.Duration) OpenAIOption {
	return func(cfg *openai.ClientConfig, _ *OpenAI) {
		cfg.HTTPClient = &http.Client{Timeout: d}
	}
}

// NewOpenAI creates an OpenAI client authenticated with apiKey.
func NewOpenAI(apiKey string, opts ...OpenAIOption) *OpenAI {
	cfg := openai.DefaultConfig(apiKey)
	o := &OpenAI{model: DefaultOpenAIModel}
	for _, opt := range opts {
		opt(&cfg, o)
	}
	o.client = openai.NewClientWithConfig(cfg)
	return o
}

// Complete implements Client.
func (o *OpenAI) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	start := time.Now()

	model := o.model
	if req.Model != "" {
		model = req.Model
	}

	chat := openai.ChatCompletionRequest{
		Model:       model,
		Messages:    toOpenAIMessages(req),
		MaxTokens:   req.MaxTokens,
		Temperature: float32(req.Temperature),
	}
	if req.JSON {
		chat.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	resp, err := o.client.CreateChatCompletion(ctx, chat)
	if err != nil {
		if ctx.Err() != nil {
			return nil, NewError("complete", ctx.Err(), false)
		}
		return nil, NewError("complete", err, retryableAPIError(err))
	}
	if len(resp.Choices) == 0 {
		return nil, NewError("complete", ErrEmptyResponse, false)
	}

	choice := resp.Choices[0]
	return &CompletionResponse{
		Content:      choice.Message.Content,
		Model:        resp.Model,
		FinishReason: string(choice.FinishReason),
		Duration:     time.Since(start),
		Usage: TokenUsage{
			InputTokens:  resp.Usage.PromptTokens,
			OutputTokens: resp.Usage.CompletionTokens,
			TotalTokens:  resp.Usage.TotalTokens,
		},
	}, nil
}

func toOpenAIMessages(req CompletionRequest) []openai.ChatCompletionMessage {
	msgs := make([]openai.ChatCompletionMessage, 0, len(req.Messages)+1)
	if req.SystemPrompt != "" {
		msgs = append(msgs, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.SystemPrompt,
		})
	}
	for _, m := range req.Messages {
		role := openai.ChatMessageRoleUser
		switch m.Role {
		case RoleAssistant:
			role = openai.ChatMessageRoleAssistant
		case RoleSystem:
			role = openai.ChatMessageRoleSystem
		}
		msgs = append(msgs, openai.ChatCompletionMessage{Role: role, Content: m.Content})
	}
	return msgs
}

func retryableAPIError(err error) bool {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == http.StatusTooManyRequests ||
			apiErr.HTTPStatusCode >= http.StatusInternalServerError
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode == http.StatusTooManyRequests ||
			reqErr.HTTPStatusCode >= http.StatusInternalServerError
	}
	return isRetryableMessage(err.Error())
}
