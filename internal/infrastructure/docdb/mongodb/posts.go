package mongodb

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/unifiedui/community-gateway/internal/core/docdb"
	"github.com/unifiedui/community-gateway/internal/domain/models"
)

// PostsCollectionName is the name of the posts collection.
const PostsCollectionName = "posts"

// summaryProjection excludes the body from list and search results.
var summaryProjection = bson.M{"body": 0}

// PostsCollection implements docdb.PostsCollection for MongoDB.
type PostsCollection struct {
	posts *mongo.Collection
}

// NewPostsCollection creates a new posts collection wrapper.
func NewPostsCollection(db *mongo.Database) *PostsCollection {
	return &PostsCollection{posts: db.Collection(PostsCollectionName)}
}

// GetBySlug returns the published post with slug, or nil if none exists.
func (c *PostsCollection) GetBySlug(ctx context.Context, slug string) (*models.Post, error) {
	var post models.Post
	err := c.posts.FindOne(ctx, bson.M{"slug": slug, "published": true}).Decode(&post)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get post: %w", err)
	}
	return &post, nil
}

// ListPublished lists published posts, newest first.
func (c *PostsCollection) ListPublished(ctx context.Context, opts *docdb.ListPostsOptions) ([]*models.Post, error) {
	filter := bson.M{"published": true}
	findOpts := options.Find().
		SetSort(bson.D{{Key: "publishedAt", Value: -1}}).
		SetProjection(summaryProjection)

	if opts != nil {
		if opts.Tag != "" {
			filter["tags"] = opts.Tag
		}
		if opts.Limit > 0 {
			findOpts.SetLimit(opts.Limit)
		}
		if opts.Skip > 0 {
			findOpts.SetSkip(opts.Skip)
		}
	}

	cursor, err := c.posts.Find(ctx, filter, findOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to list posts: %w", err)
	}
	defer cursor.Close(ctx)

	posts := make([]*models.Post, 0)
	if err := cursor.All(ctx, &posts); err != nil {
		return nil, fmt.Errorf("failed to decode posts: %w", err)
	}
	return posts, nil
}

// Search runs a $text query over published posts, best match first.
func (c *PostsCollection) Search(ctx context.Context, query string, limit int64) ([]*models.Post, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []*models.Post{}, nil
	}

	filter := bson.M{
		"$text":     bson.M{"$search": query},
		"published": true,
	}
	findOpts := options.Find().
		SetProjection(bson.M{"body": 0, "score": bson.M{"$meta": "textScore"}}).
		SetSort(bson.D{{Key: "score", Value: bson.M{"$meta": "textScore"}}})
	if limit > 0 {
		findOpts.SetLimit(limit)
	}

	cursor, err := c.posts.Find(ctx, filter, findOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to search posts: %w", err)
	}
	defer cursor.Close(ctx)

	posts := make([]*models.Post, 0)
	if err := cursor.All(ctx, &posts); err != nil {
		return nil, fmt.Errorf("failed to decode search results: %w", err)
	}
	return posts, nil
}

// EnsureIndexes creates the slug, listing and text indexes.
func (c *PostsCollection) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "slug", Value: 1}},
			Options: options.Index().SetName("idx_slug").SetUnique(true),
		},
		{
			Keys: bson.D{
				{Key: "published", Value: 1},
				{Key: "publishedAt", Value: -1},
			},
			Options: options.Index().SetName("idx_published_at"),
		},
		{
			Keys:    bson.D{{Key: "tags", Value: 1}},
			Options: options.Index().SetName("idx_tags"),
		},
		{
			Keys: bson.D{
				{Key: "title", Value: "text"},
				{Key: "excerpt", Value: "text"},
				{Key: "body", Value: "text"},
			},
			Options: options.Index().SetName("idx_text").SetWeights(bson.M{"title": 10, "excerpt": 5, "body": 1}),
		},
	}

	if _, err := c.posts.Indexes().CreateMany(ctx, indexes); err != nil {
		return fmt.Errorf("failed to create posts indexes: %w", err)
	}
	return nil
}

var _ docdb.PostsCollection = (*PostsCollection)(nil)
