package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fjod/cart-manager/internal/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type MongoRepository struct {
	collection *mongo.Collection
}

func NewMongoRepository(db *mongo.Database) *MongoRepository {
	return &MongoRepository{
		collection: db.Collection("carts"),
	}
}

func (m *MongoRepository) FindByUser(ctx context.Context, userID string) (*domain.Cart, error) {
	var cart domain.Cart

	filter := bson.M{"user_id": userID}
	err := m.collection.FindOne(ctx, filter).Decode(&cart)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrCartNotFound
		}
		return nil, fmt.Errorf("failed to get cart: %w", err)
	}

	return &cart, nil
}

func (m *MongoRepository) FindOrCreate(ctx context.Context, userID string) (*domain.Cart, error) {
	now := time.Now().UTC()

	filter := bson.M{"user_id": userID}
	update := bson.M{
		"$setOnInsert": bson.M{
			"user_id":    userID,
			"items":      []domain.CartLine{},
			"version":    int64(0),
			"created_at": now,
			"updated_at": now,
		},
	}
	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var cart domain.Cart
	err := m.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&cart)
	if err != nil {
		// two concurrent upserts on the unique user_id index: one of them loses
		// and the document now exists
		if mongo.IsDuplicateKeyError(err) {
			return m.FindByUser(ctx, userID)
		}
		return nil, fmt.Errorf("failed to upsert cart: %w", err)
	}

	return &cart, nil
}

func (m *MongoRepository) Save(ctx context.Context, cart *domain.Cart) error {
	now := time.Now().UTC()

	items := cart.Items
	if items == nil {
		items = []domain.CartLine{}
	}

	filter := bson.M{
		"user_id": cart.UserID,
		"version": cart.Version,
	}
	update := bson.M{
		"$set": bson.M{
			"items":      items,
			"updated_at": now,
		},
		"$inc": bson.M{"version": 1},
	}

	result, err := m.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to save cart: %w", err)
	}

	if result.MatchedCount == 0 {
		return ErrConflict
	}

	cart.Version++
	cart.UpdatedAt = now
	return nil
}

func (m *MongoRepository) Ping(ctx context.Context) error {
	return m.collection.Database().Client().Ping(ctx, nil)
}

// CreateIndexes enforces one cart per user. Carts never expire: an emptied
// cart is still a cart.
func (m *MongoRepository) CreateIndexes(ctx context.Context) error {
	_, err := m.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "user_id", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("uniq_user_id"),
	})
	if err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}

	return nil
}
