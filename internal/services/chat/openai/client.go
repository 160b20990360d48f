// Package openai provides a chat backend for OpenAI-compatible completion APIs.
package openai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	openaisdk "github.com/sashabaranov/go-openai"

	"github.com/unifiedui/community-gateway/internal/domain/models"
	"github.com/unifiedui/community-gateway/internal/pkg/chatstream"
)

const (
	// DefaultModel is used when Config.Model is empty.
	DefaultModel = "gpt-4o-mini"
	// DefaultSystemPrompt is used when Config.SystemPrompt is empty.
	DefaultSystemPrompt = "You are a helpful assistant for the community site."
)

// Config holds the configuration for the OpenAI client.
type Config struct {
	// BaseURL overrides the API endpoint, e.g. for a local OpenAI-compatible server.
	BaseURL      string
	APIKey       string
	Model        string
	SystemPrompt string
	// Timeout bounds non-streaming completions.
	Timeout    time.Duration
	HTTPClient *http.Client
}

// Client implements the chat backend with the go-openai SDK.
type Client struct {
	api          *openaisdk.Client
	model        string
	systemPrompt string
	timeout      time.Duration
}

// NewClient creates a new OpenAI client.
func NewClient(cfg *Config) (*Client, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if cfg.APIKey == "" && cfg.BaseURL == "" {
		return nil, fmt.Errorf("API key is required")
	}

	sdkConfig := openaisdk.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		sdkConfig.BaseURL = cfg.BaseURL
	}
	if cfg.HTTPClient != nil {
		sdkConfig.HTTPClient = cfg.HTTPClient
	}

	c := &Client{
		api:          openaisdk.NewClientWithConfig(sdkConfig),
		model:        cfg.Model,
		systemPrompt: cfg.SystemPrompt,
		timeout:      cfg.Timeout,
	}
	if c.model == "" {
		c.model = DefaultModel
	}
	if c.systemPrompt == "" {
		c.systemPrompt = DefaultSystemPrompt
	}
	if c.timeout == 0 {
		c.timeout = 60 * time.Second
	}
	return c, nil
}

// Name identifies the backend.
func (c *Client) Name() string {
	return "openai"
}

// Predict returns the complete answer.
func (c *Client) Predict(ctx context.Context, req *models.ChatRequest) (*models.ChatResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.api.CreateChatCompletion(ctx, c.completionRequest(req, false))
	if err != nil {
		return nil, fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("chat completion returned no choices")
	}

	return &models.ChatResponse{
		Text:     resp.Choices[0].Message.Content,
		ChatID:   resp.ID,
		Metadata: usageMetadata(resp.ID, resp.Model, &resp.Usage),
	}, nil
}

// Stream relays completion deltas as start, token, metadata and end events.
func (c *Client) Stream(ctx context.Context, req *models.ChatRequest) (<-chan chatstream.Event, error) {
	stream, err := c.api.CreateChatCompletionStream(ctx, c.completionRequest(req, true))
	if err != nil {
		return nil, fmt.Errorf("chat completion stream failed: %w", err)
	}

	ch := make(chan chatstream.Event, 64)

	go func() {
		defer close(ch)
		defer stream.Close()

		send := func(ev chatstream.Event) bool {
			select {
			case ch <- ev:
				return true
			case <-ctx.Done():
				return false
			}
		}

		if !send(chatstream.StartEvent()) {
			return
		}

		var (
			id, model string
			usage     *openaisdk.Usage
		)
		for {
			chunk, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				if ctx.Err() == nil {
					send(chatstream.ErrorEvent(err.Error()))
				}
				return
			}

			id, model = chunk.ID, chunk.Model
			if chunk.Usage != nil {
				usage = chunk.Usage
			}
			for _, choice := range chunk.Choices {
				if choice.Delta.Content == "" {
					continue
				}
				if !send(chatstream.TokenEvent(choice.Delta.Content)) {
					return
				}
			}
		}

		if !send(chatstream.MetadataEvent(usageMetadata(id, model, usage))) {
			return
		}
		send(chatstream.EndEvent())
	}()

	return ch, nil
}

// Close releases any resources held by the client.
func (c *Client) Close() error {
	return nil
}

func (c *Client) completionRequest(req *models.ChatRequest, stream bool) openaisdk.ChatCompletionRequest {
	messages := make([]openaisdk.ChatCompletionMessage, 0, len(req.History)+2)
	messages = append(messages, openaisdk.ChatCompletionMessage{
		Role:    openaisdk.ChatMessageRoleSystem,
		Content: c.systemPrompt,
	})
	for _, h := range req.History {
		role := openaisdk.ChatMessageRoleUser
		if h.Role == models.ChatRoleAssistant {
			role = openaisdk.ChatMessageRoleAssistant
		}
		messages = append(messages, openaisdk.ChatCompletionMessage{Role: role, Content: h.Content})
	}
	messages = append(messages, openaisdk.ChatCompletionMessage{
		Role:    openaisdk.ChatMessageRoleUser,
		Content: req.Question,
	})

	out := openaisdk.ChatCompletionRequest{
		Model:    c.model,
		Messages: messages,
		Stream:   stream,
	}
	if stream {
		out.StreamOptions = &openaisdk.StreamOptions{IncludeUsage: true}
	}
	return out
}

func usageMetadata(id, model string, usage *openaisdk.Usage) map[string]interface{} {
	m := map[string]interface{}{
		"chatId": id,
		"model":  model,
	}
	if usage != nil {
		m["inputTokens"] = usage.PromptTokens
		m["outputTokens"] = usage.CompletionTokens
	}
	return m
}
