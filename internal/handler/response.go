package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"PinSocial/internal/pkg"
	"PinSocial/internal/service"
)

// writeError 把业务错误映射成 HTTP 状态码
func writeError(c *gin.Context, err error) {
	status := statusOf(err)
	if status == http.StatusInternalServerError {
		_ = c.Error(err)
		c.JSON(status, gin.H{"msg": "internal server error"})
		return
	}
	c.JSON(status, gin.H{"msg": err.Error()})
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, service.ErrInvalidArgument),
		errors.Is(err, service.ErrSelfFollow),
		errors.Is(err, service.ErrWrongPassword),
		errors.Is(err, service.ErrUploadMissing),
		errors.Is(err, pkg.ErrUnsupportedImage):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrInvalidCredentials),
		errors.Is(err, service.ErrLoginRequired),
		errors.Is(err, service.ErrSessionReplaced),
		errors.Is(err, pkg.ErrTokenExpired),
		errors.Is(err, pkg.ErrTokenInvalid),
		errors.Is(err, pkg.ErrTokenParseFailure):
		return http.StatusUnauthorized
	case errors.Is(err, service.ErrUnauthorized),
		errors.Is(err, service.ErrProfileNotVisible),
		errors.Is(err, service.ErrNotPinAuthor),
		errors.Is(err, service.ErrNotCommentOwner):
		return http.StatusForbidden
	case errors.Is(err, service.ErrTargetNotFound),
		errors.Is(err, service.ErrRequestNotFound),
		errors.Is(err, service.ErrNotFollowing),
		errors.Is(err, service.ErrUserNotFound),
		errors.Is(err, service.ErrPinNotFound),
		errors.Is(err, service.ErrCommentNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrAlreadyFollowing),
		errors.Is(err, service.ErrRequestAlreadyPending),
		errors.Is(err, service.ErrNotPending),
		errors.Is(err, service.ErrUserExists):
		return http.StatusConflict
	case errors.Is(err, service.ErrStorageDisabled):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"msg": msg})
}

// pathID 解析路径中的 id，失败时直接写 400
func pathID(c *gin.Context, name string) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		badRequest(c, "invalid "+name)
		return 0, false
	}
	return id, true
}

// page 读取 cursor/limit，limit 的边界交给仓储层收敛
func page(c *gin.Context) (uint64, int, bool) {
	var (
		cursor uint64
		limit  int
		err    error
	)
	if v := c.Query("cursor"); v != "" {
		if cursor, err = strconv.ParseUint(v, 10, 64); err != nil {
			badRequest(c, "invalid cursor")
			return 0, 0, false
		}
	}
	if v := c.Query("limit"); v != "" {
		if limit, err = strconv.Atoi(v); err != nil {
			badRequest(c, "invalid limit")
			return 0, 0, false
		}
	}
	return cursor, limit, true
}

func list(c *gin.Context, rows any, next uint64) {
	c.JSON(http.StatusOK, gin.H{"list": rows, "next_cursor": next})
}
