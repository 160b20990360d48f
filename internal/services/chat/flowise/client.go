// Package flowise provides a chat backend for Flowise-style prediction APIs.
package flowise

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/unifiedui/community-gateway/internal/domain/models"
	"github.com/unifiedui/community-gateway/internal/pkg/chatstream"
)

// Config holds the configuration for the Flowise client.
type Config struct {
	BaseURL    string
	ChatflowID string
	APIKey     string
	// Timeout bounds non-streaming predictions.
	Timeout    time.Duration
	HTTPClient *http.Client
}

// Client implements the chat backend against POST /api/v1/prediction/{chatflowId}.
type Client struct {
	api *chatstream.Client
}

// NewClient creates a new Flowise client.
func NewClient(cfg *Config) (*Client, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base URL is required")
	}
	if cfg.ChatflowID == "" {
		return nil, fmt.Errorf("chatflow ID is required")
	}

	header := http.Header{}
	if cfg.APIKey != "" {
		header.Set("Authorization", "Bearer "+cfg.APIKey)
	}

	predictionPath := "/api/v1/prediction/" + strings.Trim(cfg.ChatflowID, "/")
	api, err := chatstream.NewClient(&chatstream.ClientConfig{
		BaseURL:     cfg.BaseURL,
		StreamPath:  predictionPath,
		PredictPath: predictionPath,
		Header:      header,
		Timeout:     cfg.Timeout,
		HTTPClient:  cfg.HTTPClient,
	})
	if err != nil {
		return nil, err
	}

	return &Client{api: api}, nil
}

// Name identifies the backend.
func (c *Client) Name() string {
	return "flowise"
}

// Predict returns the complete answer.
func (c *Client) Predict(ctx context.Context, req *models.ChatRequest) (*models.ChatResponse, error) {
	return c.api.Predict(ctx, req)
}

// Stream opens the upstream event stream and relays it as typed events.
// Rejections surface as an error before any event is produced.
func (c *Client) Stream(ctx context.Context, req *models.ChatRequest) (<-chan chatstream.Event, error) {
	source, err := c.api.Open(ctx, req)
	if err != nil {
		return nil, err
	}

	ch := make(chan chatstream.Event, 64)
	consumer := chatstream.NewConsumer(nil)

	go func() {
		defer close(ch)

		// A departed client tears the upstream exchange down.
		stop := context.AfterFunc(ctx, consumer.Cleanup)
		defer stop()

		send := func(ev chatstream.Event) {
			if ctx.Err() != nil {
				return
			}
			select {
			case ch <- ev:
			case <-ctx.Done():
			}
		}

		err := consumer.Consume(source, chatstream.Callbacks{
			OnStart: func() { send(chatstream.StartEvent()) },
			OnToken: func(token string) { send(chatstream.TokenEvent(token)) },
			OnMetadata: func(m map[string]interface{}) {
				send(chatstream.MetadataEvent(m))
			},
			OnSourceDocuments: func(docs []models.SourceDocument) {
				send(chatstream.SourceDocumentsEvent(docs))
			},
			OnUsedTools: func(tools []models.UsedTool) {
				send(chatstream.UsedToolsEvent(tools))
			},
			OnError: func(message string) { send(chatstream.ErrorEvent(message)) },
			OnEnd:   func() { send(chatstream.EndEvent()) },
		})
		if err != nil {
			log.Error().Err(err).Msg("flowise stream consumer rejected exchange")
		}
	}()

	return ch, nil
}

// Close releases any resources held by the client.
func (c *Client) Close() error {
	return nil
}
