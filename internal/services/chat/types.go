// Package chat proxies questions to the conversational backend.
package chat

import (
	"context"
	"time"

	"github.com/unifiedui/community-gateway/internal/domain/models"
	"github.com/unifiedui/community-gateway/internal/pkg/chatstream"
)

// BackendType represents the kind of conversational backend.
type BackendType string

const (
	// BackendTypeFlowise is a Flowise-style prediction API that streams typed SSE events.
	BackendTypeFlowise BackendType = "flowise"
	// BackendTypeOpenAI is an OpenAI-compatible chat completion API.
	BackendTypeOpenAI BackendType = "openai"
)

const (
	// DefaultMaxQuestionLength is the longest accepted question, in characters.
	DefaultMaxQuestionLength = 4000
	// DefaultMaxHistory is how many prior turns are forwarded to the backend.
	DefaultMaxHistory = 10
)

// Backend is the external conversational-AI service.
type Backend interface {
	// Name identifies the backend in logs and stored exchanges.
	Name() string

	// Predict returns the complete answer.
	Predict(ctx context.Context, req *models.ChatRequest) (*models.ChatResponse, error)

	// Stream returns the answer as typed events. The channel ends with an end
	// or error event, or closes early when ctx is cancelled.
	Stream(ctx context.Context, req *models.ChatRequest) (<-chan chatstream.Event, error)

	// Close releases any resources held by the backend.
	Close() error
}

// BackendConfig holds the configuration for creating a backend.
type BackendConfig struct {
	Type    BackendType
	BaseURL string
	// ChatflowID selects the Flowise chatflow.
	ChatflowID string
	APIKey     string
	// Model and SystemPrompt apply to OpenAI-compatible backends.
	Model        string
	SystemPrompt string
	Timeout      time.Duration
}

// Service is the chat proxy used by the HTTP handlers.
type Service interface {
	// Ask answers a question synchronously.
	Ask(ctx context.Context, userID string, req *models.ChatRequest) (*models.ChatResponse, error)

	// Stream answers a question as a stream of events.
	Stream(ctx context.Context, userID string, req *models.ChatRequest) (<-chan chatstream.Event, error)

	// History returns the user's past exchanges, newest first.
	History(ctx context.Context, userID string, limit, skip int64) ([]*models.ChatExchange, error)

	// Close drains pending writes and releases the backend.
	Close() error
}
