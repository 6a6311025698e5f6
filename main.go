package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"wileywidget/cache"
	"wileywidget/config"
	"wileywidget/database"
	"wileywidget/export"
	"wileywidget/logger"
	"wileywidget/metrics"
	"wileywidget/middleware"
	"wileywidget/models"
	"wileywidget/repository"
	"wileywidget/router"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// @title Wiley Widget 市政预算系统 API
// @version 1.0
// @description 市政基金会计、预算、公用事业计费与费率测算 API
// @host localhost:8080
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

// Version 构建时通过 -ldflags "-X main.Version=..." 注入
var Version = "1.0.0"

var (
	configFile    string
	port          string
	adminUser     string
	adminPassword string
	syncYear      int
	syncFrom      string
	syncTo        string
)

func main() {
	root := &cobra.Command{
		Use:           "wileywidget",
		Short:         "Wiley Widget 市政预算与公用事业计费服务",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runServe,
	}
	root.PersistentFlags().StringVarP(&configFile, "config", "c", "", "外部配置文件路径（可选）")
	root.Flags().StringVarP(&port, "port", "p", "", "监听端口，如: 8080 或 :8080")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "启动 HTTP 服务",
		RunE:  runServe,
	}
	serveCmd.Flags().StringVarP(&port, "port", "p", "", "监听端口，如: 8080 或 :8080")

	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "迁移数据库并初始化基础数据",
		RunE:  runMigrate,
	}
	migrateCmd.Flags().StringVar(&adminUser, "admin-user", "", "同时创建管理员账号（已存在则跳过）")
	migrateCmd.Flags().StringVar(&adminPassword, "admin-password", "", "管理员密码，至少 8 位")

	syncCmd := &cobra.Command{
		Use:   "sync-budget",
		Short: "从 QuickBooks 同步指定财年的实际发生额",
		RunE:  runSyncBudget,
	}
	syncCmd.Flags().IntVar(&syncYear, "fiscal-year", 0, "财年")
	syncCmd.Flags().StringVar(&syncFrom, "from", "", "开始日期 (2006-01-02)，缺省为财年开始")
	syncCmd.Flags().StringVar(&syncTo, "to", "", "结束日期 (2006-01-02)，缺省为财年结束")
	_ = syncCmd.MarkFlagRequired("fiscal-year")

	diagCmd := &cobra.Command{
		Use:   "diagnostics",
		Short: "输出运行诊断报告",
		RunE:  runDiagnostics,
	}

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "显示版本信息",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("Wiley Widget v%s\n", Version)
		},
	}

	root.AddCommand(serveCmd, migrateCmd, syncCmd, diagCmd, versionCmd)
	if err := root.Execute(); err != nil {
		log.Fatalf("%v", err)
	}
}

// bootstrap 加载配置、初始化日志和数据库
func bootstrap() (*config.Config, *zap.Logger, error) {
	cfg, err := config.LoadConfig(configFile)
	if err != nil {
		return nil, nil, fmt.Errorf("加载配置失败: %w", err)
	}
	l := logger.Init(cfg.Log)
	if err := database.Init(cfg, l); err != nil {
		return nil, nil, fmt.Errorf("数据库初始化失败: %w", err)
	}
	return cfg, l, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, l, err := bootstrap()
	if err != nil {
		return err
	}
	defer func() { _ = l.Sync() }()

	// 命令行参数覆盖端口配置
	if port != "" {
		if !strings.HasPrefix(port, ":") {
			port = ":" + port
		}
		cfg.Server.Port = port
	}
	config.PrintConfig()
	middleware.InitJWT(cfg)

	m := metrics.NewDefault()
	c := cache.New(cfg.Cache, l)

	archive, err := export.NewArchive(cfg.Export, l)
	if err != nil {
		return fmt.Errorf("初始化归档失败: %w", err)
	}
	var pdf export.PDFRenderer = export.DisabledPDFRenderer{}
	if cfg.Export.PDFEnabled {
		chrome := export.NewChromePDFRenderer(cfg.Export.ChromeRemoteURL, l)
		defer chrome.Close()
		pdf = chrome
	}

	r := router.SetupRouter(router.Deps{
		Config:  cfg,
		DB:      database.GetDB(),
		Logger:  l,
		Metrics: m,
		Cache:   c,
		PDF:     pdf,
		Archive: archive,
		Version: Version,
	})

	srv := &http.Server{
		Addr:              cfg.Server.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		l.Info("Wiley Widget 已启动",
			zap.String("version", Version),
			zap.String("addr", cfg.Server.Port),
			zap.String("swagger", fmt.Sprintf("http://localhost%s/swagger/index.html", cfg.Server.Port)))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("服务器启动失败: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	l.Info("正在关闭服务")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	_, l, err := bootstrap()
	if err != nil {
		return err
	}
	defer func() { _ = l.Sync() }()
	l.Info("数据库迁移完成")

	if adminUser == "" {
		return nil
	}
	return ensureAdmin(cmd.Context(), repository.NewUserRepository(database.GetDB()), adminUser, adminPassword, l)
}

// ensureAdmin 创建初始管理员，用户名已存在时跳过
func ensureAdmin(ctx context.Context, users *repository.UserRepository, username, password string, l *zap.Logger) error {
	if len(password) < 8 {
		return errors.New("管理员密码至少 8 位")
	}
	if _, err := users.GetByUsername(ctx, username); err == nil {
		l.Info("管理员已存在，跳过创建", zap.String("username", username))
		return nil
	} else if !errors.Is(err, repository.ErrNotFound) {
		return err
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("密码加密失败: %w", err)
	}
	u := &models.User{
		Username: username,
		Password: string(hashed),
		Role:     models.RoleAdmin,
		Status:   models.UserStatusActive,
	}
	if err := users.Create(ctx, u); err != nil {
		return fmt.Errorf("创建管理员失败: %w", err)
	}
	l.Info("已创建管理员", zap.String("username", username))
	return nil
}

func runSyncBudget(cmd *cobra.Command, args []string) error {
	cfg, l, err := bootstrap()
	if err != nil {
		return err
	}
	defer func() { _ = l.Sync() }()

	from, to := cfg.Municipality.FiscalYearRange(syncYear)
	if syncFrom != "" {
		if from, err = time.ParseInLocation("2006-01-02", syncFrom, time.Local); err != nil {
			return fmt.Errorf("开始日期格式错误: %w", err)
		}
	}
	if syncTo != "" {
		if to, err = time.ParseInLocation("2006-01-02", syncTo, time.Local); err != nil {
			return fmt.Errorf("结束日期格式错误: %w", err)
		}
		to = to.Add(24*time.Hour - time.Second)
	}

	deps := router.Deps{Config: cfg, DB: database.GetDB(), Logger: l, Cache: cache.New(cfg.Cache, l), Version: Version}
	svc := router.NewServices(deps, router.NewRepositories(deps.DB, deps.Cache, cfg.Cache.DefaultTTL()))
	result, err := svc.BudgetSync.SyncActuals(cmd.Context(), syncYear, from, to)
	if err != nil {
		return err
	}
	fmt.Printf("同步完成 run=%s 日记账=%d 分录行=%d 更新科目=%d 未匹配=%d\n",
		result.RunID, result.JournalEntries, result.LinesProcessed, result.AccountsUpdated, len(result.Unmatched))
	for _, n := range result.Unmatched {
		fmt.Printf("  未匹配: %s\n", n)
	}
	return nil
}

func runDiagnostics(cmd *cobra.Command, args []string) error {
	cfg, l, err := bootstrap()
	if err != nil {
		return err
	}
	defer func() { _ = l.Sync() }()

	deps := router.Deps{Config: cfg, DB: database.GetDB(), Logger: l, Cache: cache.New(cfg.Cache, l), Version: Version}
	svc := router.NewServices(deps, router.NewRepositories(deps.DB, deps.Cache, cfg.Cache.DefaultTTL()))
	fmt.Print(svc.Diagnostics.Collect(cmd.Context()).String())
	return nil
}
