package auth

import (
	"context"
	"errors"
	"ipfs-service-provider/model"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func testUser() *model.User {
	return &model.User{ID: primitive.NewObjectID(), Username: "admin", Role: model.RoleAdmin, IsActive: true}
}

func TestSignAndParseUserToken(t *testing.T) {
	user := testUser()
	token, err := SignUserToken(user, "secret", time.Now(), time.Hour)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	claims, err := ParseUserToken(token, "secret")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.UserID != user.ID.Hex() || claims.Username != "admin" || claims.Role != "admin" {
		t.Errorf("unexpected claims %+v", claims)
	}
}

func TestParseUserToken_Rejects(t *testing.T) {
	user := testUser()
	valid, _ := SignUserToken(user, "secret", time.Now(), time.Hour)
	expired, _ := SignUserToken(user, "secret", time.Now().Add(-2*time.Hour), time.Hour)

	wrongType, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, UserClaims{
		UserID: user.ID.Hex(),
		Type:   "service",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}).SignedString([]byte("secret"))

	noUser, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, UserClaims{
		Type: string(model.TokenTypeUser),
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}).SignedString([]byte("secret"))

	noExpiry, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, UserClaims{
		UserID: user.ID.Hex(),
		Type:   string(model.TokenTypeUser),
	}).SignedString([]byte("secret"))

	hs512, _ := jwt.NewWithClaims(jwt.SigningMethodHS512, UserClaims{
		UserID: user.ID.Hex(),
		Type:   string(model.TokenTypeUser),
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}).SignedString([]byte("secret"))

	tests := []struct {
		name  string
		token string
		key   string
		want  error
	}{
		{"wrong key", valid, "other", ErrInvalidToken},
		{"expired", expired, "secret", ErrInvalidToken},
		{"garbage", "not-a-jwt", "secret", ErrInvalidToken},
		{"missing expiry", noExpiry, "secret", ErrInvalidToken},
		{"other algorithm", hs512, "secret", ErrInvalidToken},
		{"wrong type", wrongType, "secret", ErrInvalidTokenType},
		{"missing user id", noUser, "secret", ErrMissingUserID},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ValidateUserToken(tt.token, tt.key)
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestGetUserFromContext(t *testing.T) {
	if _, err := GetUserFromContext(context.Background()); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("expected ErrUserNotFound, got %v", err)
	}

	ctx := context.WithValue(context.Background(), UserContextKey, "admin")
	if _, err := GetUserFromContext(ctx); !errors.Is(err, ErrInvalidUser) {
		t.Errorf("expected ErrInvalidUser, got %v", err)
	}

	user := testUser()
	ctx = context.WithValue(context.Background(), UserContextKey, user)
	got, err := GetUserFromContext(ctx)
	if err != nil || got != user {
		t.Errorf("expected stored user, got %v, %v", got, err)
	}
}
