package service

import (
	"context"
	"errors"
	"fmt"
	"ipfs-service-provider/auth"
	"ipfs-service-provider/data-models/common"
	"ipfs-service-provider/infra"
	"ipfs-service-provider/model"
	"ipfs-service-provider/service/interfaces"
	"time"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrInvalidUserID      = errors.New("invalid user id")
)

type UserService struct {
	logger          zerolog.Logger
	users           interfaces.UserRepository
	jwtSecretKey    string
	jwtExpiresHours int
	now             func() time.Time
}

func NewUserService(logger zerolog.Logger, users interfaces.UserRepository, jwtSecretKey string, jwtExpiresHours int) *UserService {
	return &UserService{
		logger:          logger.With().Str("module", "user_service").Logger(),
		users:           users,
		jwtSecretKey:    jwtSecretKey,
		jwtExpiresHours: jwtExpiresHours,
		now:             time.Now,
	}
}

// Login 驗證帳密並簽發 JWT
func (s *UserService) Login(ctx context.Context, username, password string) (*model.User, string, error) {
	user, err := s.users.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, infra.ErrUserNotFound) {
			s.logger.Warn().Str("用戶帳號", username).Msg("用戶登入失敗 - 帳號不存在")
			return nil, "", ErrInvalidCredentials
		}
		return nil, "", err
	}

	if !user.IsActive {
		s.logger.Warn().Str("用戶帳號", username).Msg("用戶登入失敗 - 帳號未啟用")
		return nil, "", ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		s.logger.Warn().Str("用戶帳號", username).Msg("用戶登入失敗 - 密碼錯誤")
		return nil, "", ErrInvalidCredentials
	}

	tokenString, err := s.GenerateToken(user)
	if err != nil {
		s.logger.Error().
			Str("用戶編號", user.ID.Hex()).
			Str("錯誤原因", err.Error()).
			Msg("用戶 JWT 令牌生成失敗")
		return nil, "", err
	}

	s.logger.Debug().
		Str("用戶編號", user.ID.Hex()).
		Str("用戶帳號", user.Username).
		Msg("用戶登入成功 - 服務層驗證完成")

	return user, tokenString, nil
}

// TokenTTL 用戶 token 有效期
func (s *UserService) TokenTTL() time.Duration {
	return time.Duration(s.jwtExpiresHours) * time.Hour
}

// GenerateToken 簽發用戶 token，有效期為 jwt.expires_hours
func (s *UserService) GenerateToken(user *model.User) (string, error) {
	return auth.SignUserToken(user, s.jwtSecretKey, s.now(), s.TokenTTL())
}

func (s *UserService) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		s.logger.Warn().Str("無效編號", id).Msg("用戶編號格式不正確")
		return nil, fmt.Errorf("%w: %s", ErrInvalidUserID, id)
	}

	user, err := s.users.FindByID(ctx, objectID)
	if err != nil {
		s.logger.Warn().
			Str("用戶編號", id).
			Str("錯誤原因", err.Error()).
			Msg("用戶不存在")
		return nil, err
	}
	return user, nil
}

// ListUsers 分頁查詢用戶
func (s *UserService) ListUsers(ctx context.Context, page common.Page) ([]*model.User, common.PaginationInfo, error) {
	users, total, err := s.users.List(ctx, page.Skip(), page.Limit())
	if err != nil {
		s.logger.Error().
			Int("頁碼", page.Num).
			Str("錯誤原因", err.Error()).
			Msg("查詢用戶列表失敗")
		return nil, common.PaginationInfo{}, err
	}
	return users, page.Info(total), nil
}

// EnsureAdmin 帳號不存在時建立管理員，回傳是否有新建立
func (s *UserService) EnsureAdmin(ctx context.Context, username, password string) (bool, error) {
	if username == "" || password == "" {
		return false, errors.New("admin username and password are required")
	}

	_, err := s.users.FindByUsername(ctx, username)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, infra.ErrUserNotFound) {
		return false, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return false, fmt.Errorf("failed to hash admin password: %w", err)
	}

	now := s.now()
	admin := &model.User{
		ID:           primitive.NewObjectID(),
		Username:     username,
		PasswordHash: string(hash),
		Role:         model.RoleAdmin,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.users.Insert(ctx, admin); err != nil {
		return false, err
	}

	s.logger.Info().
		Str("用戶編號", admin.ID.Hex()).
		Str("用戶帳號", username).
		Msg("管理員帳號建立成功")
	return true, nil
}
