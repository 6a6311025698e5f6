package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSafeErrorMessage(t *testing.T) {
	fallback := "操作失败"
	testErr := errors.New("internal database error")

	// nil err 返回 fallback
	assert.Equal(t, fallback, SafeErrorMessage(nil, fallback))

	// release 模式返回 fallback，不暴露错误详情
	GlobalConfig = &Config{Server: ServerConfig{Mode: "release"}}
	defer func() { GlobalConfig = nil }()
	assert.Equal(t, fallback, SafeErrorMessage(testErr, fallback))

	// debug 模式返回 err.Error()
	GlobalConfig = &Config{Server: ServerConfig{Mode: "debug"}}
	assert.Equal(t, "internal database error", SafeErrorMessage(testErr, fallback))

	// GlobalConfig 为 nil 时返回 err.Error()（视为开发环境）
	GlobalConfig = nil
	assert.Equal(t, "internal database error", SafeErrorMessage(testErr, fallback))
}

func TestLoadConfig_Defaults(t *testing.T) {
	defer func() { GlobalConfig = nil }()

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Server.Port)
	assert.Equal(t, "mysql", cfg.Database.Driver)
	assert.Equal(t, "memory", cfg.Cache.Driver)
	assert.Equal(t, 24*time.Hour, cfg.JWT.ExpireTime)
	assert.Equal(t, 5, cfg.Grok.BreakerFailureThreshold)
	assert.Equal(t, 7, cfg.Municipality.FiscalYearStartMonth)
	assert.Same(t, cfg, GetConfig())
}

func TestLoadConfig_ExternalFileAndEnv(t *testing.T) {
	defer func() { GlobalConfig = nil }()

	dir := t.TempDir()
	path := filepath.Join(dir, "override.yaml")
	content := "database:\n  driver: sqlite\n  path: test.db\ncache:\n  default_ttl_minutes: 3\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	t.Setenv("WILEY_SERVER_PORT", ":9999")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "test.db", cfg.Database.Path)
	assert.Equal(t, 3*time.Minute, cfg.Cache.DefaultTTL())
	assert.Equal(t, ":9999", cfg.Server.Port)
	// 未覆盖的字段保留默认值
	assert.Equal(t, "utf8mb4", cfg.Database.Charset)
}

func TestSummary_HidesSecrets(t *testing.T) {
	cfg := &Config{
		Database: DatabaseConfig{Driver: "mysql", Username: "u", Password: "secret", Host: "h", Port: "3306", DBName: "d"},
		Grok:     GrokConfig{APIKey: "xai-secret"},
	}
	for _, v := range cfg.Summary() {
		assert.NotContains(t, v, "secret")
	}
}

func TestGetConfig_PanicsWhenUnset(t *testing.T) {
	GlobalConfig = nil
	assert.Panics(t, func() { GetConfig() })
}

func TestFiscalYearRange(t *testing.T) {
	from, to := MunicipalityConfig{FiscalYearStartMonth: 7}.FiscalYearRange(2025)
	assert.Equal(t, "2024-07-01", from.Format("2006-01-02"))
	assert.Equal(t, "2025-06-30", to.Format("2006-01-02"))

	from, to = MunicipalityConfig{FiscalYearStartMonth: 1}.FiscalYearRange(2025)
	assert.Equal(t, "2025-01-01", from.Format("2006-01-02"))
	assert.Equal(t, "2025-12-31", to.Format("2006-01-02"))

	from, _ = MunicipalityConfig{}.FiscalYearRange(2030)
	assert.Equal(t, "2030-01-01", from.Format("2006-01-02"))
}
