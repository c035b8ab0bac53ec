package llm

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	pkgerrors "github.com/angelmondragon/shopchat-core/pkg/errors"
)

const defaultTimeout = 30 * time.Second

// OpenAIClient implements Client against an OpenAI-compatible chat completions endpoint.
type OpenAIClient struct {
	api   *openai.Client
	model string
}

type clientSettings struct {
	baseURL    string
	httpClient *http.Client
}

// Option configures optional client behavior.
type Option func(*clientSettings)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(s *clientSettings) {
		if client != nil {
			s.httpClient = client
		}
	}
}

// WithBaseURL overrides the API base URL.
func WithBaseURL(baseURL string) Option {
	return func(s *clientSettings) {
		trimmed := strings.TrimRight(strings.TrimSpace(baseURL), "/")
		if trimmed != "" {
			s.baseURL = trimmed
		}
	}
}

// WithTimeout sets the per-request timeout of the default HTTP client.
func WithTimeout(timeout time.Duration) Option {
	return func(s *clientSettings) {
		if timeout > 0 {
			s.httpClient = &http.Client{Timeout: timeout}
		}
	}
}

// NewOpenAIClient builds a client for model authenticated by apiKey.
func NewOpenAIClient(apiKey, model string, opts ...Option) (*OpenAIClient, error) {
	key := strings.TrimSpace(apiKey)
	if key == "" {
		return nil, errors.New("model api key is required")
	}
	if strings.TrimSpace(model) == "" {
		return nil, errors.New("model name is required")
	}

	settings := clientSettings{httpClient: &http.Client{Timeout: defaultTimeout}}
	for _, opt := range opts {
		if opt != nil {
			opt(&settings)
		}
	}

	cfg := openai.DefaultConfig(key)
	if settings.baseURL != "" {
		cfg.BaseURL = settings.baseURL
	}
	cfg.HTTPClient = settings.httpClient

	return &OpenAIClient{api: openai.NewClientWithConfig(cfg), model: model}, nil
}

// Complete sends the conversation and returns the first choice.
func (c *OpenAIClient) Complete(ctx context.Context, req Request) (*Response, error) {
	if c == nil || c.api == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "model client not configured")
	}

	body := openai.ChatCompletionRequest{
		Model:    c.model,
		Messages: make([]openai.ChatCompletionMessage, 0, len(req.Messages)),
	}
	for _, m := range req.Messages {
		body.Messages = append(body.Messages, toOpenAI(m))
	}
	for _, t := range req.Tools {
		body.Tools = append(body.Tools, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Parameters,
			},
		})
	}

	resp, err := c.api.CreateChatCompletion(ctx, body)
	if err != nil {
		return nil, completionError(err)
	}
	if len(resp.Choices) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "completion response has no choices")
	}
	return &Response{Message: fromOpenAI(resp.Choices[0].Message)}, nil
}

// completionError maps client failures onto error codes. Rejected requests
// are permanent; throttling, server errors and transport failures retry.
func completionError(err error) error {
	status := 0
	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	switch {
	case errors.As(err, &apiErr):
		status = apiErr.HTTPStatusCode
	case errors.As(err, &reqErr):
		status = reqErr.HTTPStatusCode
	}

	code := pkgerrors.CodeDependency
	if status >= http.StatusBadRequest && status < http.StatusInternalServerError && status != http.StatusTooManyRequests {
		code = pkgerrors.CodeValidation
	}
	return pkgerrors.Wrap(code, err, "completion request failed")
}

func toOpenAI(m Message) openai.ChatCompletionMessage {
	out := openai.ChatCompletionMessage{
		Role:       string(m.Role),
		Content:    m.Content,
		ToolCallID: m.ToolCallID,
		Name:       m.Name,
	}
	for _, tc := range m.ToolCalls {
		out.ToolCalls = append(out.ToolCalls, openai.ToolCall{
			ID:       tc.ID,
			Type:     openai.ToolTypeFunction,
			Function: openai.FunctionCall{Name: tc.Name, Arguments: tc.Arguments},
		})
	}
	return out
}

func fromOpenAI(m openai.ChatCompletionMessage) Message {
	out := Message{Role: Role(m.Role), Content: m.Content, ToolCallID: m.ToolCallID, Name: m.Name}
	for _, tc := range m.ToolCalls {
		out.ToolCalls = append(out.ToolCalls, ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		})
	}
	return out
}
