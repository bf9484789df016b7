package controller

import (
	"context"
	"errors"
	"ipfs-service-provider/data-models/user"
	"ipfs-service-provider/infra"
	"ipfs-service-provider/middleware"
	"ipfs-service-provider/service"

	"github.com/danielgtaylor/huma/v2"
	"github.com/rs/zerolog"
)

type UserController struct {
	logger         zerolog.Logger
	userService    *service.UserService
	authMiddleware *middleware.UserAuthMiddleware
}

func NewUserController(logger zerolog.Logger, userService *service.UserService, authMiddleware *middleware.UserAuthMiddleware) *UserController {
	return &UserController{
		logger:         logger.With().Str("module", "user_controller").Logger(),
		userService:    userService,
		authMiddleware: authMiddleware,
	}
}

func (c *UserController) RegisterRoutes(api huma.API) {
	security := []map[string][]string{{"bearerAuth": {}}}

	// 獲取用戶列表（分頁）
	huma.Register(api, huma.Operation{
		OperationID: "get-users",
		Method:      "GET",
		Path:        "/users",
		Summary:     "獲取用戶列表（分頁）",
		Description: "需要認證，不返回密碼",
		Tags:        []string{"users"},
		Middlewares: huma.Middlewares{c.authMiddleware.Auth()},
		Security:    security,
	}, func(ctx context.Context, input *user.GetUsersInput) (*user.PaginatedUsersResponse, error) {
		users, pagination, err := c.userService.ListUsers(ctx, input.Page())
		if err != nil {
			c.logger.Error().Err(err).Msg("獲取用戶列表失敗")
			return nil, huma.Error500InternalServerError("獲取用戶列表失敗", err)
		}

		response := &user.PaginatedUsersResponse{}
		response.Body.Users = users
		response.Body.Pagination = pagination
		return response, nil
	})

	// 獲取單一用戶
	huma.Register(api, huma.Operation{
		OperationID: "get-user",
		Method:      "GET",
		Path:        "/users/{id}",
		Summary:     "獲取用戶",
		Tags:        []string{"users"},
		Middlewares: huma.Middlewares{c.authMiddleware.Auth()},
		Security:    security,
	}, func(ctx context.Context, input *user.UserIDInput) (*user.UserResponse, error) {
		u, err := c.userService.GetUserByID(ctx, input.ID)
		if err != nil {
			if errors.Is(err, service.ErrInvalidUserID) {
				return nil, huma.Error400BadRequest("用戶編號格式不正確")
			}
			if errors.Is(err, infra.ErrUserNotFound) {
				return nil, huma.Error404NotFound("用戶不存在")
			}
			return nil, huma.Error500InternalServerError("獲取用戶失敗", err)
		}
		return &user.UserResponse{Body: u}, nil
	})
}
