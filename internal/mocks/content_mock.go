package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/unifiedui/community-gateway/internal/domain/models"
	"github.com/unifiedui/community-gateway/internal/services/content"
)

// MockContentService is a mock implementation of content.Service.
type MockContentService struct {
	mock.Mock
}

// GetBySlug returns a post.
func (m *MockContentService) GetBySlug(ctx context.Context, slug string) (*models.Post, error) {
	args := m.Called(ctx, slug)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Post), args.Error(1)
}

// ListPublished returns a page of posts.
func (m *MockContentService) ListPublished(ctx context.Context, opts content.ListOptions) ([]models.PostSummary, error) {
	args := m.Called(ctx, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.PostSummary), args.Error(1)
}

// Search runs a query.
func (m *MockContentService) Search(ctx context.Context, query string, limit int64) ([]models.PostSummary, error) {
	args := m.Called(ctx, query, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.PostSummary), args.Error(1)
}

// Purge drops cached content.
func (m *MockContentService) Purge(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

var _ content.Service = (*MockContentService)(nil)
