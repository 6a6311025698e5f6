package service

import (
	"context"
	"testing"

	"wileywidget/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestDiagnostics_Collect(t *testing.T) {
	db := setupSyncDB(t)
	cfg := &config.Config{Cache: config.CacheConfig{Driver: "redis"}, QuickBooks: config.QuickBooksConfig{Enabled: true}}

	diag := NewDiagnostics(db, cfg, nil, "1.2.3", zap.NewNop())
	r := diag.Collect(context.Background())

	assert.Equal(t, "1.2.3", r.Version)
	assert.Equal(t, "sqlite", r.Database.Driver)
	assert.True(t, r.Database.Reachable)
	assert.Equal(t, "redis", r.CacheDriver)
	assert.True(t, r.QuickBooks)
	assert.False(t, r.Grok)
	assert.Equal(t, BreakerClosed, r.GrokBreaker)
	assert.Equal(t, int64(3), r.RecordCounts["funds"])
	assert.Equal(t, int64(4), r.RecordCounts["departments"])
	assert.Positive(t, r.Goroutines)
}

func TestDiagnostics_NoDatabase(t *testing.T) {
	r := NewDiagnostics(nil, nil, nil, "dev", zap.NewNop()).Collect(context.Background())
	assert.False(t, r.Database.Reachable)
	assert.Equal(t, "memory", r.CacheDriver)
	assert.Empty(t, r.RecordCounts)
}

func TestReport_String(t *testing.T) {
	db := setupSyncDB(t)
	r := NewDiagnostics(db, &config.Config{}, nil, "1.0.0", zap.NewNop()).Collect(context.Background())
	text := r.String()
	require.NotEmpty(t, text)
	assert.Contains(t, text, "Wiley Widget 诊断报告")
	assert.Contains(t, text, "sqlite")
	assert.Contains(t, text, "funds")
	assert.Contains(t, text, "Grok 熔断器")
}
