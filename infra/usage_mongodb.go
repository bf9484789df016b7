package infra

import (
	"context"
	"fmt"
	"ipfs-service-provider/model"
	"time"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	UsageCollectionName = "usage"
	UsersCollectionName = "users"
)

// UsageCollection MongoDB usage 集合
type UsageCollection struct {
	coll *mongo.Collection
}

func NewUsageCollection(mongoDB *MongoDB) *UsageCollection {
	return &UsageCollection{coll: mongoDB.GetCollection(UsageCollectionName)}
}

// DeleteAll 清空 usage 集合
func (c *UsageCollection) DeleteAll(ctx context.Context) (int64, error) {
	result, err := c.coll.DeleteMany(ctx, bson.M{})
	if err != nil {
		return 0, fmt.Errorf("failed to clear usage collection: %w", err)
	}
	return result.DeletedCount, nil
}

// Insert 依序寫入使用紀錄
func (c *UsageCollection) Insert(ctx context.Context, records []*model.UsageRecord) error {
	if len(records) == 0 {
		return nil
	}

	docs := make([]interface{}, 0, len(records))
	for _, record := range records {
		docs = append(docs, record)
	}

	_, err := c.coll.InsertMany(ctx, docs, options.InsertMany().SetOrdered(true))
	if err != nil {
		return fmt.Errorf("failed to insert usage records: %w", err)
	}
	return nil
}

// FindAll 讀取 usage 集合全部文件
func (c *UsageCollection) FindAll(ctx context.Context) ([]*model.UsageRecord, error) {
	cursor, err := c.coll.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "timestamp", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to query usage collection: %w", err)
	}
	defer cursor.Close(ctx)

	var records []*model.UsageRecord
	if err := cursor.All(ctx, &records); err != nil {
		return nil, fmt.Errorf("failed to decode usage records: %w", err)
	}
	return records, nil
}

// InitializeCollections 建立 usage 與 users 集合索引
func InitializeCollections(logger zerolog.Logger, db *mongo.Database) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := initUsageCollection(ctx, logger, db); err != nil {
		return err
	}

	if err := initUsersCollection(ctx, logger, db); err != nil {
		return err
	}

	logger.Info().Msg("MongoDB 集合索引初始化完成")
	return nil
}

func initUsageCollection(ctx context.Context, logger zerolog.Logger, db *mongo.Database) error {
	collection := db.Collection(UsageCollectionName)

	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "timestamp", Value: 1}},
			Options: options.Index().SetName("timestamp_index"),
		},
		{
			Keys:    bson.D{{Key: "ip", Value: 1}},
			Options: options.Index().SetName("ip_index"),
		},
	}

	if _, err := collection.Indexes().CreateMany(ctx, indexes); err != nil {
		logger.Error().Err(err).Msg("創建 usage 集合索引失敗")
		return err
	}

	logger.Info().Msg("usage 集合索引創建完成")
	return nil
}

func initUsersCollection(ctx context.Context, logger zerolog.Logger, db *mongo.Database) error {
	collection := db.Collection(UsersCollectionName)

	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "username", Value: 1}},
			Options: options.Index().
				SetUnique(true).
				SetName("username_unique"),
		},
	}

	if _, err := collection.Indexes().CreateMany(ctx, indexes); err != nil {
		logger.Error().Err(err).Msg("創建 users 集合索引失敗")
		return err
	}

	logger.Info().Msg("users 集合索引創建完成")
	return nil
}
