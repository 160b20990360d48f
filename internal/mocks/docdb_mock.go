package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/unifiedui/community-gateway/internal/core/docdb"
	"github.com/unifiedui/community-gateway/internal/domain/models"
)

// MockDocDBClient is a mock implementation of docdb.Client.
type MockDocDBClient struct {
	mock.Mock
	PostsCollection     *MockPostsCollection
	ExchangesCollection *MockExchangesCollection
}

// NewMockDocDBClient creates a client whose collections are mocks too.
func NewMockDocDBClient() *MockDocDBClient {
	return &MockDocDBClient{
		PostsCollection:     &MockPostsCollection{},
		ExchangesCollection: &MockExchangesCollection{},
	}
}

// Posts returns the posts collection.
func (m *MockDocDBClient) Posts() docdb.PostsCollection {
	return m.PostsCollection
}

// Exchanges returns the exchanges collection.
func (m *MockDocDBClient) Exchanges() docdb.ExchangesCollection {
	return m.ExchangesCollection
}

// EnsureIndexes creates indexes.
func (m *MockDocDBClient) EnsureIndexes(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// Ping verifies the database connection.
func (m *MockDocDBClient) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// Close closes the database connection.
func (m *MockDocDBClient) Close(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// MockPostsCollection is a mock implementation of docdb.PostsCollection.
type MockPostsCollection struct {
	mock.Mock
}

// GetBySlug returns a post by slug.
func (m *MockPostsCollection) GetBySlug(ctx context.Context, slug string) (*models.Post, error) {
	args := m.Called(ctx, slug)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Post), args.Error(1)
}

// ListPublished lists published posts.
func (m *MockPostsCollection) ListPublished(ctx context.Context, opts *docdb.ListPostsOptions) ([]*models.Post, error) {
	args := m.Called(ctx, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Post), args.Error(1)
}

// Search searches published posts.
func (m *MockPostsCollection) Search(ctx context.Context, query string, limit int64) ([]*models.Post, error) {
	args := m.Called(ctx, query, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Post), args.Error(1)
}

// EnsureIndexes creates indexes.
func (m *MockPostsCollection) EnsureIndexes(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// MockExchangesCollection is a mock implementation of docdb.ExchangesCollection.
type MockExchangesCollection struct {
	mock.Mock
}

// Add inserts an exchange.
func (m *MockExchangesCollection) Add(ctx context.Context, exchange *models.ChatExchange) error {
	args := m.Called(ctx, exchange)
	return args.Error(0)
}

// List lists exchanges.
func (m *MockExchangesCollection) List(ctx context.Context, opts *docdb.ListExchangesOptions) ([]*models.ChatExchange, error) {
	args := m.Called(ctx, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.ChatExchange), args.Error(1)
}

// EnsureIndexes creates indexes.
func (m *MockExchangesCollection) EnsureIndexes(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

var (
	_ docdb.Client              = (*MockDocDBClient)(nil)
	_ docdb.PostsCollection     = (*MockPostsCollection)(nil)
	_ docdb.ExchangesCollection = (*MockExchangesCollection)(nil)
)
