package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/unifiedui/community-gateway/internal/domain/models"
	"github.com/unifiedui/community-gateway/internal/pkg/chatstream"
	"github.com/unifiedui/community-gateway/internal/services/chat"
)

// MockChatBackend is a mock implementation of chat.Backend.
type MockChatBackend struct {
	mock.Mock
}

// Name identifies the backend.
func (m *MockChatBackend) Name() string {
	return "mock"
}

// Predict returns the complete answer.
func (m *MockChatBackend) Predict(ctx context.Context, req *models.ChatRequest) (*models.ChatResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ChatResponse), args.Error(1)
}

// Stream returns the answer as events.
func (m *MockChatBackend) Stream(ctx context.Context, req *models.ChatRequest) (<-chan chatstream.Event, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(<-chan chatstream.Event), args.Error(1)
}

// Close releases resources.
func (m *MockChatBackend) Close() error {
	args := m.Called()
	return args.Error(0)
}

// MockChatService is a mock implementation of chat.Service.
type MockChatService struct {
	mock.Mock
}

// Ask answers a question synchronously.
func (m *MockChatService) Ask(ctx context.Context, userID string, req *models.ChatRequest) (*models.ChatResponse, error) {
	args := m.Called(ctx, userID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ChatResponse), args.Error(1)
}

// Stream answers a question as events.
func (m *MockChatService) Stream(ctx context.Context, userID string, req *models.ChatRequest) (<-chan chatstream.Event, error) {
	args := m.Called(ctx, userID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(<-chan chatstream.Event), args.Error(1)
}

// History returns past exchanges.
func (m *MockChatService) History(ctx context.Context, userID string, limit, skip int64) ([]*models.ChatExchange, error) {
	args := m.Called(ctx, userID, limit, skip)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.ChatExchange), args.Error(1)
}

// Close releases resources.
func (m *MockChatService) Close() error {
	args := m.Called()
	return args.Error(0)
}

// EventStream returns a closed, pre-filled event channel.
func EventStream(events ...chatstream.Event) <-chan chatstream.Event {
	ch := make(chan chatstream.Event, len(events))
	for _, ev := range events {
		ch <- ev
	}
	close(ch)
	return ch
}

var (
	_ chat.Backend = (*MockChatBackend)(nil)
	_ chat.Service = (*MockChatService)(nil)
)
