package controller

import (
	"context"
	"encoding/json"
	"ipfs-service-provider/infra"
	"ipfs-service-provider/middleware"
	"ipfs-service-provider/model"
	"ipfs-service-provider/service"
	"net/http"
	"strings"
	"testing"

	"github.com/danielgtaylor/huma/v2/humatest"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/crypto/bcrypt"
)

const testJWTKey = "controller-test-key"

type memoryUserRepository struct {
	users []*model.User
}

func (m *memoryUserRepository) FindByID(ctx context.Context, id primitive.ObjectID) (*model.User, error) {
	for _, u := range m.users {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, infra.ErrUserNotFound
}

func (m *memoryUserRepository) FindByUsername(ctx context.Context, username string) (*model.User, error) {
	for _, u := range m.users {
		if u.Username == username {
			return u, nil
		}
	}
	return nil, infra.ErrUserNotFound
}

func (m *memoryUserRepository) List(ctx context.Context, skip, limit int64) ([]*model.User, int64, error) {
	return m.users, int64(len(m.users)), nil
}

func (m *memoryUserRepository) Insert(ctx context.Context, user *model.User) error {
	m.users = append(m.users, user)
	return nil
}

func setupAuthAPI(t *testing.T) (humatest.TestAPI, *model.User) {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("secret"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	admin := &model.User{
		ID:           primitive.NewObjectID(),
		Username:     "admin",
		PasswordHash: string(hash),
		Role:         model.RoleAdmin,
		IsActive:     true,
	}

	userService := service.NewUserService(zerolog.Nop(), &memoryUserRepository{users: []*model.User{admin}}, testJWTKey, 1)
	_, api := humatest.New(t)
	authMiddleware := middleware.NewUserAuthMiddleware(zerolog.Nop(), api, userService, testJWTKey)
	NewAuthController(zerolog.Nop(), userService).RegisterRoutes(api)
	NewUserController(zerolog.Nop(), userService, authMiddleware).RegisterRoutes(api)
	return api, admin
}

func login(t *testing.T, api humatest.TestAPI) string {
	t.Helper()
	resp := api.Post("/auth", map[string]interface{}{"username": "admin", "password": "secret"})
	if resp.Code != http.StatusOK {
		t.Fatalf("login failed: %d %s", resp.Code, resp.Body.String())
	}
	var body struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return body.Token
}

func TestAuthController_Login(t *testing.T) {
	api, _ := setupAuthAPI(t)

	token := login(t, api)
	if token == "" {
		t.Fatal("expected token")
	}

	resp := api.Post("/auth", map[string]interface{}{"username": "admin", "password": "wrong"})
	if resp.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", resp.Code)
	}
}

func TestAuthController_LoginNeverReturnsPasswordHash(t *testing.T) {
	api, _ := setupAuthAPI(t)

	resp := api.Post("/auth", map[string]interface{}{"username": "admin", "password": "secret"})
	if strings.Contains(resp.Body.String(), "password") {
		t.Errorf("response leaks password field: %s", resp.Body.String())
	}
}

func TestUserController_RequiresToken(t *testing.T) {
	api, admin := setupAuthAPI(t)

	tests := []struct {
		name   string
		header string
	}{
		{"missing header", ""},
		{"wrong scheme", "Authorization: Basic abc"},
		{"garbage token", "Authorization: Bearer not-a-jwt"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := []any{}
			if tt.header != "" {
				args = append(args, tt.header)
			}
			resp := api.Get("/users/"+admin.ID.Hex(), args...)
			if resp.Code != http.StatusUnauthorized {
				t.Errorf("expected 401, got %d", resp.Code)
			}
		})
	}
}

func TestUserController_GetUsers(t *testing.T) {
	api, admin := setupAuthAPI(t)
	header := "Authorization: Bearer " + login(t, api)

	resp := api.Get("/users", header)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
	var list struct {
		Users []model.User `json:"users"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(list.Users) != 1 || list.Users[0].Username != "admin" {
		t.Errorf("unexpected users %+v", list.Users)
	}

	resp = api.Get("/users/"+admin.ID.Hex(), header)
	if resp.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", resp.Code)
	}

	resp = api.Get("/users/"+primitive.NewObjectID().Hex(), header)
	if resp.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", resp.Code)
	}

	resp = api.Get("/users/bad-id", header)
	if resp.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", resp.Code)
	}
}
