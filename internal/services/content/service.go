// Package content serves published blog posts with a read-through cache.
package content

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/unifiedui/community-gateway/internal/core/cache"
	"github.com/unifiedui/community-gateway/internal/core/docdb"
	domainerrors "github.com/unifiedui/community-gateway/internal/domain/errors"
	"github.com/unifiedui/community-gateway/internal/domain/models"
	"github.com/unifiedui/community-gateway/internal/observability"
)

const (
	// DefaultCacheTTL is how long posts and listings are cached.
	DefaultCacheTTL = 5 * time.Minute

	DefaultPageSize = 10
	MaxPageSize     = 50
	maxSearchLength = 200
	maxSlugLength   = 200

	cacheKeyPrefix = "content:"
)

// ListOptions selects a page of published posts.
type ListOptions struct {
	Tag    string
	Limit  int64
	Offset int64
}

// Service is the read-only content API.
type Service interface {
	// GetBySlug returns the published post with slug.
	GetBySlug(ctx context.Context, slug string) (*models.Post, error)

	// ListPublished returns a page of published posts, newest first.
	ListPublished(ctx context.Context, opts ListOptions) ([]models.PostSummary, error)

	// Search runs a full-text query over published posts.
	Search(ctx context.Context, query string, limit int64) ([]models.PostSummary, error)

	// Purge drops every cached post and listing.
	Purge(ctx context.Context) error
}

// Config holds the configuration for the content service.
type Config struct {
	Posts docdb.PostsCollection
	// CacheClient is optional; without it every read goes to the store.
	CacheClient cache.Client
	CacheTTL    time.Duration
	Metrics     *observability.Metrics
}

type service struct {
	posts   docdb.PostsCollection
	cache   cache.Client
	ttl     time.Duration
	metrics *observability.Metrics
}

// NewService creates a new content service.
func NewService(cfg *Config) (Service, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if cfg.Posts == nil {
		return nil, fmt.Errorf("posts collection is required")
	}

	ttl := cfg.CacheTTL
	if ttl == 0 {
		ttl = DefaultCacheTTL
	}

	return &service{
		posts:   cfg.Posts,
		cache:   cfg.CacheClient,
		ttl:     ttl,
		metrics: cfg.Metrics,
	}, nil
}

// GetBySlug returns the published post with slug.
func (s *service) GetBySlug(ctx context.Context, slug string) (*models.Post, error) {
	if !validSlug(slug) {
		return nil, domainerrors.NewNotFoundError("post", slug)
	}

	key := cacheKeyPrefix + "post:" + slug
	var cached models.Post
	if s.lookup(ctx, key, &cached) {
		return &cached, nil
	}

	post, err := s.posts.GetBySlug(ctx, slug)
	if err != nil {
		return nil, domainerrors.NewInternalError("failed to load post", err)
	}
	if post == nil {
		return nil, domainerrors.NewNotFoundError("post", slug)
	}

	withReadingTime(post)
	s.store(ctx, key, post)
	return post, nil
}

// ListPublished returns a page of published posts, newest first.
func (s *service) ListPublished(ctx context.Context, opts ListOptions) ([]models.PostSummary, error) {
	if opts.Limit <= 0 {
		opts.Limit = DefaultPageSize
	}
	if opts.Limit > MaxPageSize {
		opts.Limit = MaxPageSize
	}
	if opts.Offset < 0 {
		opts.Offset = 0
	}
	opts.Tag = strings.ToLower(strings.TrimSpace(opts.Tag))

	key := cacheKeyPrefix + "list:" + opts.Tag + ":" +
		strconv.FormatInt(opts.Limit, 10) + ":" + strconv.FormatInt(opts.Offset, 10)
	var cached []models.PostSummary
	if s.lookup(ctx, key, &cached) {
		return cached, nil
	}

	posts, err := s.posts.ListPublished(ctx, &docdb.ListPostsOptions{
		Tag:   opts.Tag,
		Limit: opts.Limit,
		Skip:  opts.Offset,
	})
	if err != nil {
		return nil, domainerrors.NewInternalError("failed to list posts", err)
	}

	summaries := summarize(posts)
	s.store(ctx, key, summaries)
	return summaries, nil
}

// Search runs a full-text query over published posts. Results are not cached.
func (s *service) Search(ctx context.Context, query string, limit int64) ([]models.PostSummary, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []models.PostSummary{}, nil
	}
	if len(query) > maxSearchLength {
		return nil, domainerrors.NewValidationError("search query is too long", "")
	}
	if limit <= 0 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}

	posts, err := s.posts.Search(ctx, query, limit)
	if err != nil {
		return nil, domainerrors.NewInternalError("failed to search posts", err)
	}
	return summarize(posts), nil
}

// Purge drops every cached post and listing.
func (s *service) Purge(ctx context.Context) error {
	if s.cache == nil {
		return nil
	}
	deleted, err := s.cache.DeletePattern(ctx, cacheKeyPrefix+"*")
	if err != nil {
		return domainerrors.NewInternalError("failed to purge content cache", err)
	}
	log.Info().Int64("keys", deleted).Msg("content cache purged")
	return nil
}

// lookup is best effort: cache failures are logged and read as a miss.
func (s *service) lookup(ctx context.Context, key string, v interface{}) bool {
	if s.cache == nil {
		return false
	}
	hit, err := cache.GetJSON(ctx, s.cache, key, v)
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("content cache read failed")
		return false
	}
	s.metrics.RecordCacheLookup(hit)
	return hit
}

func (s *service) store(ctx context.Context, key string, v interface{}) {
	if s.cache == nil {
		return
	}
	if err := cache.SetJSON(ctx, s.cache, key, v, s.ttl); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("content cache write failed")
	}
}

func summarize(posts []*models.Post) []models.PostSummary {
	summaries := make([]models.PostSummary, 0, len(posts))
	for _, p := range posts {
		withReadingTime(p)
		summaries = append(summaries, p.Summary())
	}
	return summaries
}

// withReadingTime fills in a missing reading time. Listings carry no body,
// so the excerpt is the fallback.
func withReadingTime(p *models.Post) {
	if p.ReadingTime > 0 {
		return
	}
	text := p.Body
	if text == "" {
		text = p.Excerpt
	}
	p.ReadingTime = models.EstimateReadingTime(text)
}

func validSlug(slug string) bool {
	if slug == "" || len(slug) > maxSlugLength {
		return false
	}
	for _, r := range slug {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_':
		default:
			return false
		}
	}
	return true
}
