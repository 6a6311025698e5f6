package main

import (
	"context"
	"testing"

	"wileywidget/database"
	"wileywidget/models"
	"wileywidget/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

func TestEnsureAdmin(t *testing.T) {
	db, err := database.OpenInMemory()
	require.NoError(t, err)
	users := repository.NewUserRepository(db)
	ctx := context.Background()

	assert.Error(t, ensureAdmin(ctx, users, "admin", "short", zap.NewNop()))

	require.NoError(t, ensureAdmin(ctx, users, "admin", "s3cret-pass", zap.NewNop()))
	u, err := users.GetByUsername(ctx, "admin")
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, u.Role)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(u.Password), []byte("s3cret-pass")))

	// 已存在时跳过，不修改密码
	require.NoError(t, ensureAdmin(ctx, users, "admin", "another-pass", zap.NewNop()))
	u2, err := users.GetByUsername(ctx, "admin")
	require.NoError(t, err)
	assert.Equal(t, u.Password, u2.Password)
}
