package infra

import (
	"context"
	"errors"
	"fmt"
	"ipfs-service-provider/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var ErrUserNotFound = errors.New("user not found")

// UserCollection MongoDB users 集合
type UserCollection struct {
	coll *mongo.Collection
}

func NewUserCollection(mongoDB *MongoDB) *UserCollection {
	return &UserCollection{coll: mongoDB.GetCollection(UsersCollectionName)}
}

func (c *UserCollection) FindByID(ctx context.Context, id primitive.ObjectID) (*model.User, error) {
	return c.findOne(ctx, bson.M{"_id": id})
}

func (c *UserCollection) FindByUsername(ctx context.Context, username string) (*model.User, error) {
	return c.findOne(ctx, bson.M{"username": username})
}

func (c *UserCollection) findOne(ctx context.Context, filter bson.M) (*model.User, error) {
	var user model.User
	err := c.coll.FindOne(ctx, filter).Decode(&user)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query user: %w", err)
	}
	return &user, nil
}

func (c *UserCollection) List(ctx context.Context, skip, limit int64) ([]*model.User, int64, error) {
	total, err := c.coll.CountDocuments(ctx, bson.M{})
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count users: %w", err)
	}

	findOptions := options.Find().
		SetSkip(skip).
		SetLimit(limit).
		SetSort(bson.D{primitive.E{Key: "created_at", Value: -1}})

	cursor, err := c.coll.Find(ctx, bson.M{}, findOptions)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query users: %w", err)
	}
	defer cursor.Close(ctx)

	users := []*model.User{}
	if err := cursor.All(ctx, &users); err != nil {
		return nil, 0, fmt.Errorf("failed to decode users: %w", err)
	}
	return users, total, nil
}

func (c *UserCollection) Insert(ctx context.Context, user *model.User) error {
	if _, err := c.coll.InsertOne(ctx, user); err != nil {
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}
