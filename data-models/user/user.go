package user

import (
	"ipfs-service-provider/data-models/common"
	"ipfs-service-provider/model"
)

type GetUsersInput struct {
	common.PageInput
}

type PaginatedUsersResponse struct {
	Body struct {
		Users      []*model.User         `json:"users" doc:"用戶列表"`
		Pagination common.PaginationInfo `json:"pagination" doc:"分頁資訊"`
	} `json:"body"`
}

type UserIDInput struct {
	ID string `path:"id" doc:"用戶ID"`
}

type UserResponse struct {
	Body *model.User `json:"user"`
}
