package interfaces

import (
	"context"
	"ipfs-service-provider/model"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// UserRepository 用戶資料存取，找不到時回傳 infra.ErrUserNotFound
type UserRepository interface {
	FindByID(ctx context.Context, id primitive.ObjectID) (*model.User, error)
	FindByUsername(ctx context.Context, username string) (*model.User, error)
	// List 依建立時間降序分頁，回傳該頁用戶與總筆數
	List(ctx context.Context, skip, limit int64) ([]*model.User, int64, error)
	Insert(ctx context.Context, user *model.User) error
}
