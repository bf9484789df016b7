package controller

import (
	"context"
	"errors"
	"ipfs-service-provider/data-models/auth"
	"ipfs-service-provider/infra"
	"ipfs-service-provider/service"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/rs/zerolog"
)

type AuthController struct {
	logger      zerolog.Logger
	userService *service.UserService
}

func NewAuthController(logger zerolog.Logger, userService *service.UserService) *AuthController {
	return &AuthController{
		logger:      logger.With().Str("module", "auth_controller").Logger(),
		userService: userService,
	}
}

func (c *AuthController) RegisterRoutes(api huma.API) {
	// 管理員登入，取得存取 /users 的 Bearer token
	huma.Register(api, huma.Operation{
		OperationID: "user-login",
		Method:      "POST",
		Path:        "/auth",
		Summary:     "用戶登入",
		Tags:        []string{"auth"},
	}, func(ctx context.Context, input *auth.LoginInput) (*auth.UserLoginResponse, error) {
		ctx, span := infra.StartSpan(ctx, "user_login",
			infra.AttrOperation("user_login"),
			infra.AttrString("auth.username", input.Body.Username),
		)
		defer span.End()

		user, token, err := c.userService.Login(ctx, input.Body.Username, input.Body.Password)
		if err != nil {
			infra.RecordError(span, err, "用戶登入失敗")
			if errors.Is(err, service.ErrInvalidCredentials) {
				c.logger.Warn().Str("用戶帳號", input.Body.Username).Msg("用戶登入失敗")
				return nil, huma.Error401Unauthorized("帳號或密碼錯誤")
			}
			c.logger.Error().Err(err).Str("用戶帳號", input.Body.Username).Msg("用戶登入發生錯誤")
			return nil, huma.Error500InternalServerError("登入失敗", err)
		}

		infra.MarkSuccess(span, infra.AttrUserID(user.ID.Hex()))
		c.logger.Info().
			Str("用戶編號", user.ID.Hex()).
			Str("用戶帳號", user.Username).
			Msg("用戶登入成功")

		resp := &auth.UserLoginResponse{}
		resp.Body.User = user
		resp.Body.Token = token
		resp.Body.ExpiresAt = time.Now().Add(c.userService.TokenTTL()).UTC()
		resp.Body.Message = "登入成功"
		return resp, nil
	})
}
