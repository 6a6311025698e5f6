package middleware

import (
	"net/http"
	"strings"

	"wileywidget/models"

	"github.com/gin-gonic/gin"
)

// readOnlyMethods viewer 可用的请求方法
var readOnlyMethods = map[string]bool{
	http.MethodGet:     true,
	http.MethodHead:    true,
	http.MethodOptions: true,
}

// adminOnlyRoutes 仅管理员可访问的接口，格式 "METHOD /path"，支持 :param 单段占位
var adminOnlyRoutes = []string{
	"POST /api/v1/auth/register",
	"GET /api/v1/users",
	"PUT /api/v1/users/:id/status",
	"GET /api/v1/diagnostics",
	"POST /api/v1/diagnostics/email",
}

// RolePermission 角色权限校验中间件，需在 JWTAuth 之后使用
// viewer 只读；finance 可写全部业务数据；admin 额外可管理用户
func RolePermission() gin.HandlerFunc {
	return func(c *gin.Context) {
		role := GetCurrentRole(c)
		if !models.ValidRole(role) {
			c.JSON(http.StatusForbidden, gin.H{"code": http.StatusForbidden, "message": "权限不足"})
			c.Abort()
			return
		}
		if allowed(role, c.Request.Method, c.Request.URL.Path) {
			c.Next()
			return
		}
		c.JSON(http.StatusForbidden, gin.H{"code": http.StatusForbidden, "message": "权限不足"})
		c.Abort()
	}
}

func allowed(role, method, path string) bool {
	if role == models.RoleAdmin {
		return true
	}
	if matchAPIPermission(method, path, adminOnlyRoutes) {
		return false
	}
	if role == models.RoleFinance {
		return true
	}
	return readOnlyMethods[method]
}

// matchAPIPermission 检查 method+path 是否匹配任一 pattern
func matchAPIPermission(method, path string, patterns []string) bool {
	path = normalizePath(path)
	for _, key := range patterns {
		m, p, ok := strings.Cut(key, " ")
		if !ok || m != method {
			continue
		}
		if matchPath(path, p) {
			return true
		}
	}
	return false
}

func normalizePath(p string) string {
	if p == "" {
		return "/"
	}
	if p[0] != '/' {
		p = "/" + p
	}
	return p
}

// matchPath 检查实际路径是否匹配 pattern
// /api/v1/users/12/status 匹配 /api/v1/users/:id/status
func matchPath(actual, pattern string) bool {
	a := splitPath(normalizePath(actual))
	p := splitPath(normalizePath(pattern))
	if len(a) != len(p) {
		return false
	}
	for i := range a {
		if len(p[i]) > 0 && p[i][0] == ':' {
			if a[i] == "" {
				return false
			}
			continue
		}
		if a[i] != p[i] {
			return false
		}
	}
	return true
}

func splitPath(s string) []string {
	s = strings.Trim(s, "/")
	if s == "" {
		return nil
	}
	return strings.Split(s, "/")
}
