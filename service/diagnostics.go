package service

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"wileywidget/config"
	"wileywidget/database"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// DatabaseStatus 数据库诊断信息
type DatabaseStatus struct {
	Driver       string `json:"driver"`
	Reachable    bool   `json:"reachable"`
	PingMillis   int64  `json:"ping_ms"`
	Error        string `json:"error,omitempty"`
	OpenConns    int    `json:"open_connections"`
	InUse        int    `json:"in_use"`
	Idle         int    `json:"idle"`
	MaxOpenConns int    `json:"max_open_connections"`
}

// Report 诊断报告
type Report struct {
	Version      string           `json:"version"`
	GoVersion    string           `json:"go_version"`
	GeneratedAt  time.Time        `json:"generated_at"`
	Uptime       string           `json:"uptime"`
	Goroutines   int              `json:"goroutines"`
	Database     DatabaseStatus   `json:"database"`
	CacheDriver  string           `json:"cache_driver"`
	QuickBooks   bool             `json:"quickbooks_enabled"`
	Grok         bool             `json:"grok_enabled"`
	GrokBreaker  BreakerState     `json:"grok_breaker"`
	Email        bool             `json:"email_enabled"`
	RecordCounts map[string]int64 `json:"record_counts"`
}

// Diagnostics 运行状态采集
type Diagnostics struct {
	db        *gorm.DB
	cfg       *config.Config
	grok      *GrokRecommendationService
	version   string
	startedAt time.Time
	logger    *zap.Logger
}

// NewDiagnostics 创建诊断采集器
func NewDiagnostics(db *gorm.DB, cfg *config.Config, grok *GrokRecommendationService, version string, l *zap.Logger) *Diagnostics {
	return &Diagnostics{
		db:        db,
		cfg:       cfg,
		grok:      grok,
		version:   version,
		startedAt: time.Now(),
		logger:    l,
	}
}

// Collect 采集诊断信息，单项失败只记录在报告中
func (d *Diagnostics) Collect(ctx context.Context) *Report {
	r := &Report{
		Version:      d.version,
		GoVersion:    runtime.Version(),
		GeneratedAt:  time.Now(),
		Uptime:       time.Since(d.startedAt).Truncate(time.Second).String(),
		Goroutines:   runtime.NumGoroutine(),
		CacheDriver:  "memory",
		RecordCounts: map[string]int64{},
	}
	if d.cfg != nil {
		if d.cfg.Cache.Driver != "" {
			r.CacheDriver = d.cfg.Cache.Driver
		}
		r.QuickBooks = d.cfg.QuickBooks.Enabled
		r.Email = d.cfg.Email.Enabled
	}
	r.Grok = d.grok.Enabled()
	r.GrokBreaker = d.grok.BreakerState()

	if d.db == nil {
		r.Database.Error = "未初始化"
		return r
	}
	r.Database = d.databaseStatus(ctx)
	if r.Database.Reachable {
		r.RecordCounts = d.recordCounts(ctx)
	}
	return r
}

func (d *Diagnostics) databaseStatus(ctx context.Context) DatabaseStatus {
	st := DatabaseStatus{Driver: d.db.Dialector.Name()}
	sqlDB, err := d.db.DB()
	if err != nil {
		st.Error = err.Error()
		return st
	}
	start := time.Now()
	if err := sqlDB.PingContext(ctx); err != nil {
		st.Error = err.Error()
		d.logger.Warn("数据库 ping 失败", zap.Error(err))
	} else {
		st.Reachable = true
	}
	st.PingMillis = time.Since(start).Milliseconds()

	stats := sqlDB.Stats()
	st.OpenConns = stats.OpenConnections
	st.InUse = stats.InUse
	st.Idle = stats.Idle
	st.MaxOpenConns = stats.MaxOpenConnections
	return st
}

func (d *Diagnostics) recordCounts(ctx context.Context) map[string]int64 {
	counts := make(map[string]int64)
	for _, m := range database.Models() {
		stmt := &gorm.Statement{DB: d.db}
		if err := stmt.Parse(m); err != nil {
			continue
		}
		var n int64
		if err := d.db.WithContext(ctx).Model(m).Count(&n).Error; err != nil {
			d.logger.Warn("统计记录数失败", zap.String("table", stmt.Schema.Table), zap.Error(err))
			n = -1
		}
		counts[stmt.Schema.Table] = n
	}
	return counts
}

// String 纯文本格式的诊断报告
func (r *Report) String() string {
	var b strings.Builder
	b.WriteString("Wiley Widget 诊断报告\n")
	b.WriteString(strings.Repeat("=", 40) + "\n")

	w := tabwriter.NewWriter(&b, 0, 0, 2, ' ', 0)
	row := func(k string, v any) { fmt.Fprintf(w, "%s\t%v\n", k, v) }
	row("生成时间", r.GeneratedAt.Format(time.RFC3339))
	row("版本", r.Version)
	row("Go 版本", r.GoVersion)
	row("运行时长", r.Uptime)
	row("Goroutines", r.Goroutines)
	row("数据库驱动", r.Database.Driver)
	if r.Database.Reachable {
		row("数据库连通", fmt.Sprintf("ok (%dms)", r.Database.PingMillis))
	} else {
		row("数据库连通", "失败: "+r.Database.Error)
	}
	row("连接池", fmt.Sprintf("open=%d in_use=%d idle=%d max=%d",
		r.Database.OpenConns, r.Database.InUse, r.Database.Idle, r.Database.MaxOpenConns))
	row("缓存驱动", r.CacheDriver)
	row("QuickBooks", onOff(r.QuickBooks))
	row("Grok", onOff(r.Grok))
	row("Grok 熔断器", r.GrokBreaker)
	row("邮件", onOff(r.Email))
	_ = w.Flush()

	if len(r.RecordCounts) > 0 {
		b.WriteString("\n记录数\n")
		b.WriteString(strings.Repeat("-", 40) + "\n")
		tables := make([]string, 0, len(r.RecordCounts))
		for t := range r.RecordCounts {
			tables = append(tables, t)
		}
		sort.Strings(tables)
		w = tabwriter.NewWriter(&b, 0, 0, 2, ' ', 0)
		for _, t := range tables {
			fmt.Fprintf(w, "%s\t%d\n", t, r.RecordCounts[t])
		}
		_ = w.Flush()
	}
	return b.String()
}

func onOff(v bool) string {
	if v {
		return "enabled"
	}
	return "disabled"
}
