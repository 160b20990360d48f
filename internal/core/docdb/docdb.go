// Package docdb defines the document database interfaces for posts and chat exchanges.
package docdb

import (
	"context"

	"github.com/unifiedui/community-gateway/internal/domain/models"
)

// Type represents the type of document database.
type Type string

const (
	// TypeMongoDB represents a MongoDB database.
	TypeMongoDB Type = "mongodb"
)

// SortOrder represents the sort direction.
type SortOrder string

const (
	// SortOrderAsc represents ascending order.
	SortOrderAsc SortOrder = "asc"
	// SortOrderDesc represents descending order.
	SortOrderDesc SortOrder = "desc"
)

// ListPostsOptions contains options for listing published posts.
type ListPostsOptions struct {
	Tag   string
	Limit int64
	Skip  int64
}

// ListExchangesOptions contains options for listing a user's chat exchanges.
type ListExchangesOptions struct {
	UserID  string
	Limit   int64
	Skip    int64
	OrderBy SortOrder // by createdAt
}

// PostsCollection is the read-only view of published content.
type PostsCollection interface {
	// GetBySlug returns the published post with slug, or nil if none exists.
	GetBySlug(ctx context.Context, slug string) (*models.Post, error)

	// ListPublished lists published posts, newest first.
	ListPublished(ctx context.Context, opts *ListPostsOptions) ([]*models.Post, error)

	// Search runs a full-text query over published posts.
	Search(ctx context.Context, query string, limit int64) ([]*models.Post, error)

	// EnsureIndexes creates necessary indexes for the collection.
	EnsureIndexes(ctx context.Context) error
}

// ExchangesCollection stores finished chat exchanges.
type ExchangesCollection interface {
	// Add inserts a chat exchange.
	Add(ctx context.Context, exchange *models.ChatExchange) error

	// List returns exchanges for a user.
	List(ctx context.Context, opts *ListExchangesOptions) ([]*models.ChatExchange, error)

	// EnsureIndexes creates necessary indexes for the collection.
	EnsureIndexes(ctx context.Context) error
}

// Client defines the interface for a document database client.
type Client interface {
	// Posts returns the posts collection.
	Posts() PostsCollection

	// Exchanges returns the chat exchanges collection.
	Exchanges() ExchangesCollection

	// EnsureIndexes creates indexes for all collections.
	EnsureIndexes(ctx context.Context) error

	// Ping verifies the database connection.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close(ctx context.Context) error
}
