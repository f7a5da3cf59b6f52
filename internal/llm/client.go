package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/maraichr/reviewlens/internal/config"
	"github.com/maraichr/reviewlens/pkg/apierr"
)

const (
	defaultBaseURL        = "https://api.openai.com/v1"
	DefaultChatModel      = "gpt-4o-mini"
	DefaultEmbeddingModel = "text-embedding-3-small"
)

// Role values for Message.
const (
	RoleSystem    = openai.ChatMessageRoleSystem
	RoleUser      = openai.ChatMessageRoleUser
	RoleAssistant = openai.ChatMessageRoleAssistant
)

// Message represents a chat message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// CompletionRequest is one chat completion call.
type CompletionRequest struct {
	Model       string
	Messages    []Message
	MaxTokens   int
	Temperature float32
	// JSONObject constrains the response to a single JSON object.
	JSONObject bool
}

// Completer is the chat completion capability used by the summarizers and
// the attribute extractor.
type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

// ProviderError describes a non-success answer from the inference provider.
// Status is 0 when no HTTP response was received.
type ProviderError struct {
	Status int
	Reason string
}

func (e *ProviderError) Error() string {
	if e.Status == 0 {
		return "inference provider: " + e.Reason
	}
	return fmt.Sprintf("inference provider (status %d): %s", e.Status, e.Reason)
}

// Client is an OpenAI-compatible chat completion and embedding client. It
// performs no retries.
type Client struct {
	api            *openai.Client
	chatModel      string
	embeddingModel string
}

// NewClient creates a new inference client.
func NewClient(cfg config.InferenceConfig) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY is required")
	}

	oc := openai.DefaultConfig(cfg.APIKey)
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	oc.BaseURL = baseURL
	if cfg.Timeout > 0 {
		oc.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}

	chatModel := cfg.ChatModel
	if chatModel == "" {
		chatModel = DefaultChatModel
	}
	embeddingModel := cfg.EmbeddingModel
	if embeddingModel == "" {
		embeddingModel = DefaultEmbeddingModel
	}

	return &Client{
		api:            openai.NewClientWithConfig(oc),
		chatModel:      chatModel,
		embeddingModel: embeddingModel,
	}, nil
}

// Complete sends messages to the chat completion endpoint and returns the
// first choice's content.
func (c *Client) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	model := req.Model
	if model == "" {
		model = c.chatModel
	}

	msgs := make([]openai.ChatCompletionMessage, len(req.Messages))
	for i, m := range req.Messages {
		msgs[i] = openai.ChatCompletionMessage{Role: m.Role, Content: m.Content}
	}

	payload := openai.ChatCompletionRequest{
		Model:       model,
		Messages:    msgs,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	}
	if req.JSONObject {
		payload.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	resp, err := c.api.CreateChatCompletion(ctx, payload)
	if err != nil {
		return "", apierr.InferenceFailed(translate(err))
	}
	if len(resp.Choices) == 0 {
		return "", apierr.InferenceFailed(&ProviderError{Status: http.StatusOK, Reason: "completion returned no choices"})
	}
	return resp.Choices[0].Message.Content, nil
}

// Embed returns the embedding vector for a single text.
func (c *Client) Embed(ctx context.Context, model, text string) ([]float32, error) {
	if model == "" {
		model = c.embeddingModel
	}

	resp, err := c.api.CreateEmbeddings(ctx, openai.EmbeddingRequestStrings{
		Input: []string{text},
		Model: openai.EmbeddingModel(model),
	})
	if err != nil {
		return nil, apierr.InferenceFailed(translate(err))
	}
	if len(resp.Data) == 0 {
		return nil, apierr.InferenceFailed(&ProviderError{Status: http.StatusOK, Reason: "embedding returned no data"})
	}
	if len(resp.Data[0].Embedding) == 0 {
		return nil, apierr.InferenceFailed(&ProviderError{Status: http.StatusOK, Reason: "embedding returned an empty vector"})
	}
	return resp.Data[0].Embedding, nil
}

// ChatModel returns the default chat model identifier.
func (c *Client) ChatModel() string {
	return c.chatModel
}

// EmbeddingModel returns the default embedding model identifier.
func (c *Client) EmbeddingModel() string {
	return c.embeddingModel
}

// translate maps go-openai errors onto ProviderError.
func translate(err error) *ProviderError {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		reason := apiErr.Message
		if reason == "" {
			reason = http.StatusText(apiErr.HTTPStatusCode)
		}
		return &ProviderError{Status: apiErr.HTTPStatusCode, Reason: reason}
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		reason := http.StatusText(reqErr.HTTPStatusCode)
		if reqErr.Err != nil {
			reason = reqErr.Err.Error()
		}
		return &ProviderError{Status: reqErr.HTTPStatusCode, Reason: reason}
	}

	return &ProviderError{Reason: err.Error()}
}
