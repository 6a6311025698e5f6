package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestMatchPath(t *testing.T) {
	tests := []struct {
		actual   string
		pattern  string
		expected bool
	}{
		{"/api/v1/users", "/api/v1/users", true},
		{"/api/v1/users/12/status", "/api/v1/users/:id/status", true},
		{"/api/v1/users//status", "/api/v1/users/:id/status", false},
		{"/api/v1/users/12", "/api/v1/users/:id/status", false},
		{"/api/v1/budget/summary", "/api/v1/budget/:id", true},
		{"/api/v1/wrong", "/api/v1/users", false},
	}
	for _, tt := range tests {
		got := matchPath(tt.actual, tt.pattern)
		assert.Equalf(t, tt.expected, got, "matchPath(%q, %q)", tt.actual, tt.pattern)
	}
}

func TestRolePermission(t *testing.T) {
	gin.SetMode(gin.TestMode)

	newRouter := func(role string) *gin.Engine {
		r := gin.New()
		r.Use(func(c *gin.Context) {
			c.Set(ctxRole, role)
			c.Next()
		})
		r.Use(RolePermission())
		ok := func(c *gin.Context) { c.String(http.StatusOK, "ok") }
		r.GET("/api/v1/budget", ok)
		r.POST("/api/v1/budget", ok)
		r.GET("/api/v1/users", ok)
		r.PUT("/api/v1/users/:id/status", ok)
		return r
	}
	do := func(r *gin.Engine, method, path string) int {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(method, path, nil))
		return w.Code
	}

	tests := []struct {
		role   string
		method string
		path   string
		want   int
	}{
		{"viewer", http.MethodGet, "/api/v1/budget", http.StatusOK},
		{"viewer", http.MethodPost, "/api/v1/budget", http.StatusForbidden},
		{"viewer", http.MethodGet, "/api/v1/users", http.StatusForbidden},
		{"finance", http.MethodPost, "/api/v1/budget", http.StatusOK},
		{"finance", http.MethodGet, "/api/v1/users", http.StatusForbidden},
		{"finance", http.MethodPut, "/api/v1/users/3/status", http.StatusForbidden},
		{"admin", http.MethodPut, "/api/v1/users/3/status", http.StatusOK},
		{"admin", http.MethodPost, "/api/v1/budget", http.StatusOK},
		{"", http.MethodGet, "/api/v1/budget", http.StatusForbidden},
	}
	for _, tt := range tests {
		got := do(newRouter(tt.role), tt.method, tt.path)
		assert.Equalf(t, tt.want, got, "%s %s %s", tt.role, tt.method, tt.path)
	}
}
