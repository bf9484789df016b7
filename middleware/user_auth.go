package middleware

import (
	"context"
	"ipfs-service-provider/auth"
	"ipfs-service-provider/model"
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	"github.com/rs/zerolog"
)

// UserLookup 依 ID 讀取用戶
type UserLookup interface {
	GetUserByID(ctx context.Context, id string) (*model.User, error)
}

type UserAuthMiddleware struct {
	logger       zerolog.Logger
	api          huma.API
	users        UserLookup
	jwtSecretKey string
}

func NewUserAuthMiddleware(logger zerolog.Logger, api huma.API, users UserLookup, jwtSecretKey string) *UserAuthMiddleware {
	return &UserAuthMiddleware{
		logger:       logger.With().Str("module", "user_auth").Logger(),
		api:          api,
		users:        users,
		jwtSecretKey: jwtSecretKey,
	}
}

func (m *UserAuthMiddleware) Auth() func(huma.Context, func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		// 從 Authorization header 中獲取 token
		authHeader := ctx.Header("Authorization")
		if authHeader == "" {
			m.unauthorized(ctx, "缺少授權標頭")
			return
		}

		// 檢查 Bearer 前綴
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			m.unauthorized(ctx, "無效的授權格式")
			return
		}

		userID, err := auth.ValidateUserToken(parts[1], m.jwtSecretKey)
		if err != nil {
			m.logger.Debug().Err(err).Msg("token 驗證失敗")
			m.unauthorized(ctx, "無效的token")
			return
		}

		user, err := m.users.GetUserByID(ctx.Context(), userID)
		if err != nil {
			m.unauthorized(ctx, "用戶不存在")
			return
		}
		if !user.IsActive {
			m.unauthorized(ctx, "帳號未啟用")
			return
		}

		m.logger.Debug().
			Str("用戶編號", user.ID.Hex()).
			Str("用戶帳號", user.Username).
			Str("用戶角色", string(user.Role)).
			Str("path", ctx.URL().Path).
			Msg("JWT Token 驗證成功")

		ctx = huma.WithValue(ctx, auth.UserContextKey, user)
		ctx = huma.WithValue(ctx, auth.UserIDContextKey, userID)
		next(ctx)
	}
}

func (m *UserAuthMiddleware) unauthorized(ctx huma.Context, msg string) {
	_ = huma.WriteErr(m.api, ctx, http.StatusUnauthorized, msg)
}
