package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"PinSocial/internal/pkg"
	"PinSocial/internal/service"
)

const ContextUserIDKey = "user_id"

// Authenticator 校验 access token，返回用户 id
type Authenticator interface {
	Authenticate(ctx context.Context, accessToken string) (uint64, error)
}

// AuthRequired 必须登录
func AuthRequired(auth Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenStr, ok := bearer(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"msg": "missing or invalid authorization header"})
			return
		}
		userID, err := auth.Authenticate(c.Request.Context(), tokenStr)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"msg": authMessage(err)})
			return
		}
		// 注入 user_id
		c.Set(ContextUserIDKey, userID)
		c.Next()
	}
}

// AuthOptional 带了合法 token 就注入 user_id，否则按匿名处理
func AuthOptional(auth Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		if tokenStr, ok := bearer(c); ok {
			if userID, err := auth.Authenticate(c.Request.Context(), tokenStr); err == nil {
				c.Set(ContextUserIDKey, userID)
			}
		}
		c.Next()
	}
}

// ViewerFrom 取当前查看者，未登录为匿名
func ViewerFrom(c *gin.Context) service.Viewer {
	if v, ok := c.Get(ContextUserIDKey); ok {
		if id, ok := v.(uint64); ok {
			return service.AsUser(id)
		}
	}
	return service.Anonymous()
}

// UserIDFrom 只在 AuthRequired 之后使用
func UserIDFrom(c *gin.Context) uint64 {
	id, _ := ViewerFrom(c).ID()
	return id
}

func bearer(c *gin.Context) (string, bool) {
	parts := strings.SplitN(c.GetHeader("Authorization"), " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

func authMessage(err error) string {
	switch {
	case errors.Is(err, pkg.ErrTokenExpired):
		return "token expired"
	case errors.Is(err, service.ErrSessionReplaced):
		return "account has been logged in elsewhere"
	case errors.Is(err, service.ErrLoginRequired):
		return "login required"
	}
	return "invalid or expired token"
}
