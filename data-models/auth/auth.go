package auth

import (
	"ipfs-service-provider/model"
	"time"
)

// LoginInput POST /auth
type LoginInput struct {
	Body struct {
		Username string `json:"username" minLength:"1" maxLength:"64" doc:"帳號" example:"admin"`
		Password string `json:"password" minLength:"1" doc:"密碼" example:"change-me"`
	}
}

// UserLoginResponse 登入成功回傳用戶與 Bearer token
type UserLoginResponse struct {
	Body struct {
		User      *model.User `json:"user"`
		Token     string      `json:"token" example:"eyJhbGciOiJIUzI1NiIsInR5cCI6IkpXVCJ9..."`
		ExpiresAt time.Time   `json:"expiresAt" doc:"token 到期時間"`
		Message   string      `json:"message" example:"登入成功"`
	}
}
