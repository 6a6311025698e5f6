package middleware

import (
	"context"
	"errors"
	"net/http"

	"wileywidget/models"
	"wileywidget/repository"

	"github.com/gin-gonic/gin"
)

// UserLookup 按ID读取用户
type UserLookup interface {
	GetByID(ctx context.Context, id uint) (*models.User, error)
}

// ActiveUser 校验 token 对应的用户仍然存在且未被锁定，需在 JWTAuth 之后使用
// 角色以数据库中的当前值为准，锁定或改角色对已签发的 token 立即生效
func ActiveUser(users UserLookup) gin.HandlerFunc {
	return func(c *gin.Context) {
		u, err := users.GetByID(c.Request.Context(), GetCurrentUserID(c))
		if errors.Is(err, repository.ErrNotFound) {
			abortUnauthorized(c, "用户不存在")
			return
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"code": http.StatusInternalServerError, "message": "读取用户失败"})
			c.Abort()
			return
		}
		if u.Status == models.UserStatusLocked {
			abortUnauthorized(c, "账号已被锁定")
			return
		}
		c.Set(ctxRole, u.Role)
		c.Next()
	}
}
