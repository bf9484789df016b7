package controller

import (
	"errors"

	"github.com/danielgtaylor/huma/v2"
)

// handleError 錯誤本身帶有 HTTP 狀態時沿用，否則回傳 422
func handleError(err error) error {
	var se huma.StatusError
	if errors.As(err, &se) {
		return se
	}
	return huma.Error422UnprocessableEntity(err.Error())
}
