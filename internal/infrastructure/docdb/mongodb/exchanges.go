package mongodb

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/unifiedui/community-gateway/internal/core/docdb"
	"github.com/unifiedui/community-gateway/internal/domain/models"
)

const (
	// ExchangesCollectionName is the name of the chat exchanges collection.
	ExchangesCollectionName = "chat_exchanges"

	// exchangeRetention bounds how long chat history is kept.
	exchangeRetention = 90 * 24 * time.Hour
)

// ExchangesCollection implements docdb.ExchangesCollection for MongoDB.
type ExchangesCollection struct {
	exchanges *mongo.Collection
}

// NewExchangesCollection creates a new exchanges collection wrapper.
func NewExchangesCollection(db *mongo.Database) *ExchangesCollection {
	return &ExchangesCollection{exchanges: db.Collection(ExchangesCollectionName)}
}

// Add inserts a chat exchange.
func (c *ExchangesCollection) Add(ctx context.Context, exchange *models.ChatExchange) error {
	if exchange.ID == "" {
		return fmt.Errorf("exchange ID is required")
	}
	if exchange.CreatedAt.IsZero() {
		exchange.CreatedAt = time.Now().UTC()
	}

	if _, err := c.exchanges.InsertOne(ctx, exchange); err != nil {
		return fmt.Errorf("failed to insert chat exchange: %w", err)
	}
	return nil
}

// List returns exchanges for a user ordered by creation time.
func (c *ExchangesCollection) List(ctx context.Context, opts *docdb.ListExchangesOptions) ([]*models.ChatExchange, error) {
	if opts == nil || opts.UserID == "" {
		return nil, fmt.Errorf("user ID is required")
	}

	sortDir := -1
	if opts.OrderBy == docdb.SortOrderAsc {
		sortDir = 1
	}
	findOpts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: sortDir}})
	if opts.Limit > 0 {
		findOpts.SetLimit(opts.Limit)
	}
	if opts.Skip > 0 {
		findOpts.SetSkip(opts.Skip)
	}

	cursor, err := c.exchanges.Find(ctx, bson.M{"userId": opts.UserID}, findOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to list chat exchanges: %w", err)
	}
	defer cursor.Close(ctx)

	exchanges := make([]*models.ChatExchange, 0)
	if err := cursor.All(ctx, &exchanges); err != nil {
		return nil, fmt.Errorf("failed to decode chat exchanges: %w", err)
	}
	return exchanges, nil
}

// EnsureIndexes creates the per-user listing index and the retention TTL index.
func (c *ExchangesCollection) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "userId", Value: 1},
				{Key: "createdAt", Value: -1},
			},
			Options: options.Index().SetName("idx_user_created"),
		},
		{
			Keys:    bson.D{{Key: "createdAt", Value: 1}},
			Options: options.Index().SetName("idx_retention").SetExpireAfterSeconds(int32(exchangeRetention.Seconds())),
		},
	}

	if _, err := c.exchanges.Indexes().CreateMany(ctx, indexes); err != nil {
		return fmt.Errorf("failed to create chat exchanges indexes: %w", err)
	}
	return nil
}

var _ docdb.ExchangesCollection = (*ExchangesCollection)(nil)
