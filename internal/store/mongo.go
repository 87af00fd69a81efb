package store

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/royale-relay/backend/internal/models"
)

var (
	ErrNotFound  = errors.New("not found")
	ErrDuplicate = errors.New("duplicate key")
)

// MongoStore handles account CRUD in MongoDB.
type MongoStore struct {
	col *mongo.Collection
}

func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{col: db.Collection("users")}
}

// EnsureIndexes creates the unique username index. Together with the
// duplicate-key mapping in Insert this keeps usernames unique across
// concurrent writers.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.col.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "username", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("username_unique"),
	})
	if err != nil {
		return fmt.Errorf("mongo create index: %w", err)
	}
	return nil
}

func (s *MongoStore) Insert(ctx context.Context, acc *models.Account) error {
	if acc.ID.IsZero() {
		acc.ID = primitive.NewObjectID()
	}
	if _, err := s.col.InsertOne(ctx, acc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("mongo insert %q: %w", acc.Username, ErrDuplicate)
		}
		return fmt.Errorf("mongo insert: %w", err)
	}
	return nil
}

func (s *MongoStore) FindByUsername(ctx context.Context, username string) (*models.Account, error) {
	return s.findOne(ctx, bson.M{"username": username})
}

func (s *MongoStore) FindByID(ctx context.Context, id string) (*models.Account, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("invalid id %q: %w", id, ErrNotFound)
	}
	return s.findOne(ctx, bson.M{"_id": oid})
}

// Update applies a $set of the given document paths and returns the
// updated account.
func (s *MongoStore) Update(ctx context.Context, username string, fields map[string]any) (*models.Account, error) {
	set := bson.M{}
	for k, v := range fields {
		set[k] = v
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var acc models.Account
	err := s.col.FindOneAndUpdate(ctx, bson.M{"username": username}, bson.M{"$set": set}, opts).Decode(&acc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("mongo update: %w", err)
	}
	return &acc, nil
}

func (s *MongoStore) findOne(ctx context.Context, filter bson.M) (*models.Account, error) {
	var acc models.Account
	err := s.col.FindOne(ctx, filter).Decode(&acc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("mongo find: %w", err)
	}
	return &acc, nil
}
