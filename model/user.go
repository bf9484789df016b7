package model

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type User struct {
	ID           primitive.ObjectID `json:"_id,omitempty" bson:"_id,omitempty" example:"684a73ad0e3a583c37e4b30d" doc:"用戶ID"`
	Username     string             `json:"username" bson:"username" example:"admin" doc:"帳號"`
	PasswordHash string             `json:"-" bson:"password_hash"`
	Role         UserRole           `json:"role" bson:"role" example:"admin" doc:"角色"`
	IsActive     bool               `json:"is_active" bson:"is_active" example:"true" doc:"是否啟用"`
	CreatedAt    time.Time          `json:"created_at" bson:"created_at" doc:"建立時間"`
	UpdatedAt    time.Time          `json:"updated_at" bson:"updated_at" doc:"更新時間"`
}
