package mongo

import (
	"context"
	"errors"
	"fmt"

	d "github.com/fjod/go_cart/checkout-flow/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// CartStore keeps one document per cart, keyed by cart id.
type CartStore struct {
	collection *mongo.Collection
}

func NewCartStore(db *mongo.Database) *CartStore {
	return &CartStore{collection: db.Collection("carts")}
}

func (s *CartStore) GetCart(ctx context.Context, id string) (*d.Cart, error) {
	var cart d.Cart
	err := s.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&cart)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, d.ErrCartNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get cart: %w", err)
	}
	return &cart, nil
}

// SaveCart replaces the document holding the previous version. When no such
// document exists the upsert tries an insert, which collides on _id if the
// cart is stored under another version.
func (s *CartStore) SaveCart(ctx context.Context, cart *d.Cart) error {
	filter := bson.M{"_id": cart.ID, "version": cart.Version - 1}
	opts := options.Replace().SetUpsert(true)

	_, err := s.collection.ReplaceOne(ctx, filter, cart, opts)
	if mongo.IsDuplicateKeyError(err) {
		return d.ErrVersionConflict
	}
	if err != nil {
		return fmt.Errorf("failed to save cart: %w", err)
	}
	return nil
}

func (s *CartStore) DeleteCart(ctx context.Context, id string) error {
	result, err := s.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("failed to delete cart: %w", err)
	}
	if result.DeletedCount == 0 {
		return d.ErrCartNotFound
	}
	return nil
}

func (s *CartStore) CreateIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "customer_id", Value: 1}},
		},
		{
			Keys:    bson.D{{Key: "updated_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(90 * 24 * 60 * 60), // 90 days TTL
		},
	}

	if _, err := s.collection.Indexes().CreateMany(ctx, indexes); err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}
	return nil
}
