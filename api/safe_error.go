package api

import (
	"errors"
	"net/http"

	"wileywidget/config"
	"wileywidget/export"
	"wileywidget/quickbooks"
	"wileywidget/repository"
	"wileywidget/service"

	"github.com/gin-gonic/gin"
)

// SafeErrorMessage 生产环境下不向客户端暴露内部错误详情，避免信息泄露
func SafeErrorMessage(err error, fallback string) string {
	return config.SafeErrorMessage(err, fallback)
}

// statusFor 将领域错误映射为 HTTP 状态码
func statusFor(err error) int {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, repository.ErrDuplicate), errors.Is(err, repository.ErrHasDependents):
		return http.StatusConflict
	case errors.Is(err, repository.ErrInvalid),
		errors.Is(err, repository.ErrInvalidTransition),
		errors.Is(err, service.ErrInvalidArgument),
		errors.Is(err, service.ErrNoCustomers):
		return http.StatusBadRequest
	case errors.Is(err, quickbooks.ErrNotConfigured),
		errors.Is(err, service.ErrEmailDisabled),
		errors.Is(err, export.ErrPDFDisabled):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Fail 按错误类型返回响应，500 时隐藏内部细节
func Fail(c *gin.Context, err error, fallback string) {
	code := statusFor(err)
	if code == http.StatusInternalServerError {
		Error(c, code, SafeErrorMessage(err, fallback))
		return
	}
	Error(c, code, err.Error())
}
