package auth

import (
	"context"
	"errors"
	"fmt"
	"ipfs-service-provider/model"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type contextKey string

const (
	UserContextKey   contextKey = "user"
	UserIDContextKey contextKey = "user_id"
)

var (
	ErrUserNotFound     = errors.New("user not found in context")
	ErrInvalidUser      = errors.New("invalid user type in context")
	ErrInvalidToken     = errors.New("invalid token")
	ErrInvalidTokenType = errors.New("invalid token type")
	ErrMissingUserID    = errors.New("missing user_id in token")
)

// GetUserFromContext 取得 UserAuthMiddleware 放入的登入用戶
func GetUserFromContext(ctx context.Context) (*model.User, error) {
	userValue := ctx.Value(UserContextKey)
	if userValue == nil {
		return nil, ErrUserNotFound
	}

	user, ok := userValue.(*model.User)
	if !ok {
		return nil, ErrInvalidUser
	}
	return user, nil
}

// UserClaims 用戶 token 的 payload
type UserClaims struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	Role     string `json:"role"`
	Type     string `json:"type"`
	jwt.RegisteredClaims
}

// SignUserToken 以 HS256 簽發用戶 token
func SignUserToken(user *model.User, secretKey string, issuedAt time.Time, ttl time.Duration) (string, error) {
	claims := UserClaims{
		UserID:   user.ID.Hex(),
		Username: user.Username,
		Role:     string(user.Role),
		Type:     string(model.TokenTypeUser),
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secretKey))
}

// ParseUserToken 驗證簽章、期限與 token 類型
func ParseUserToken(tokenString, secretKey string) (*UserClaims, error) {
	claims := &UserClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return []byte(secretKey), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}

	if claims.Type != string(model.TokenTypeUser) {
		return nil, ErrInvalidTokenType
	}
	if claims.UserID == "" {
		return nil, ErrMissingUserID
	}
	return claims, nil
}

// ValidateUserToken 驗證用戶 token 並取出 user_id
func ValidateUserToken(tokenString, secretKey string) (string, error) {
	claims, err := ParseUserToken(tokenString, secretKey)
	if err != nil {
		return "", err
	}
	return claims.UserID, nil
}
