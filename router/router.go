package router

import (
	"net/http"
	"time"

	"wileywidget/api"
	"wileywidget/cache"
	"wileywidget/config"
	_ "wileywidget/docs"
	"wileywidget/export"
	"wileywidget/logger"
	"wileywidget/metrics"
	"wileywidget/middleware"
	"wileywidget/quickbooks"
	"wileywidget/repository"
	"wileywidget/service"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Deps 路由依赖
type Deps struct {
	Config  *config.Config
	DB      *gorm.DB
	Logger  *zap.Logger
	Metrics *metrics.Metrics
	Cache   cache.Cache
	PDF     export.PDFRenderer // nil 时 PDF 导出返回 503
	Archive export.Archive     // nil 时不归档
	Version string
}

// Services 由配置和数据库构建的业务服务
type Services struct {
	Audit       *service.AuditService
	Email       *service.EmailService
	Grok        *service.GrokRecommendationService
	QuickBooks  *quickbooks.Client
	Expenses    *service.DepartmentExpenseService
	Charges     *service.ServiceChargeCalculatorService
	BudgetSync  *service.QuickBooksBudgetSyncService
	Diagnostics *service.Diagnostics
}

// Repositories 全部仓储
type Repositories struct {
	Users        *repository.UserRepository
	Funds        *repository.FundRepository
	Departments  *repository.DepartmentRepository
	Periods      *repository.BudgetPeriodRepository
	Accounts     *repository.MunicipalAccountRepository
	Budgets      *repository.BudgetRepository
	Transactions *repository.TransactionRepository
	Vendors      *repository.VendorRepository
	Invoices     *repository.InvoiceRepository
	Customers    *repository.UtilityCustomerRepository
	Audits       *repository.AuditRepository
}

// NewRepositories 创建仓储，科目表和用户查询走缓存
func NewRepositories(db *gorm.DB, c cache.Cache, ttl time.Duration) *Repositories {
	return &Repositories{
		Users:        repository.NewUserRepository(db),
		Funds:        repository.NewFundRepository(db),
		Departments:  repository.NewDepartmentRepository(db),
		Periods:      repository.NewBudgetPeriodRepository(db),
		Accounts:     repository.NewMunicipalAccountRepository(db, c, ttl),
		Budgets:      repository.NewBudgetRepository(db),
		Transactions: repository.NewTransactionRepository(db),
		Vendors:      repository.NewVendorRepository(db),
		Invoices:     repository.NewInvoiceRepository(db),
		Customers:    repository.NewUtilityCustomerRepository(db, c, ttl),
		Audits:       repository.NewAuditRepository(db),
	}
}

// NewServices 创建业务服务
func NewServices(d Deps, repos *Repositories) *Services {
	cfg := d.Config
	qb := quickbooks.NewClient(cfg.QuickBooks, d.Logger, d.Metrics)
	audit := service.NewAuditService(repos.Audits, d.Logger)
	grok := service.NewGrokRecommendationService(cfg.Grok, d.Cache, d.Logger, d.Metrics)
	return &Services{
		Audit:       audit,
		Email:       service.NewEmailService(&cfg.Email, cfg.Municipality.Name),
		Grok:        grok,
		QuickBooks:  qb,
		Expenses:    service.NewDepartmentExpenseService(qb, repos.Departments, d.Logger),
		Charges:     service.NewServiceChargeCalculatorService(repos.Departments, repos.Budgets, repos.Customers),
		BudgetSync:  service.NewQuickBooksBudgetSyncService(qb, repos.Accounts, repos.Budgets, audit, d.Logger, d.Metrics),
		Diagnostics: service.NewDiagnostics(d.DB, cfg, grok, d.Version, d.Logger),
	}
}

// SetupRouter 设置路由
func SetupRouter(d Deps) *gin.Engine {
	cfg := d.Config
	if cfg.Server.Mode != "" {
		gin.SetMode(cfg.Server.Mode)
	}
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.Cache == nil {
		d.Cache = cache.NewMemory()
	}
	api.RegisterValidators()

	repos := NewRepositories(d.DB, d.Cache, cfg.Cache.DefaultTTL())
	svc := NewServices(d, repos)

	r := gin.New()
	r.Use(logger.GinMiddleware(d.Logger), logger.Recovery(d.Logger))
	r.Use(d.Metrics.GinMiddleware())
	r.Use(CORSMiddleware())

	// Swagger 文档
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	r.GET("/metrics", gin.WrapH(d.Metrics.Handler()))

	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		status, code := "ok", http.StatusOK
		if sqlDB, err := d.DB.DB(); err != nil || sqlDB.PingContext(c.Request.Context()) != nil {
			status, code = "degraded", http.StatusServiceUnavailable
		}
		c.JSON(code, gin.H{"status": status, "version": d.Version})
	})

	v1 := r.Group("/api/v1")
	{
		authHandler := api.NewAuthHandler(cfg, repos.Users)
		v1.POST("/auth/login", middleware.LoginRateLimit(10, time.Minute), authHandler.Login)

		// 需要 JWT 认证的路由
		authorized := v1.Group("")
		authorized.Use(middleware.JWTAuth(), middleware.ActiveUser(repos.Users), middleware.RolePermission())
		{
			authorized.POST("/auth/register", authHandler.Register)
			authorized.GET("/auth/profile", authHandler.GetProfile)
			authorized.GET("/users", authHandler.ListUsers)
			authorized.PUT("/users/:id/status", authHandler.UpdateUserStatus)

			fundHandler := api.NewFundHandler(repos.Funds, svc.Audit)
			funds := authorized.Group("/funds")
			{
				funds.GET("", fundHandler.List)
				funds.POST("", fundHandler.Create)
				funds.GET("/:id", fundHandler.Get)
				funds.PUT("/:id", fundHandler.Update)
				funds.DELETE("/:id", fundHandler.Delete)
			}

			deptHandler := api.NewDepartmentHandler(repos.Departments, svc.Audit)
			departments := authorized.Group("/departments")
			{
				departments.GET("", deptHandler.List)
				departments.POST("", deptHandler.Create)
				departments.GET("/:id", deptHandler.Get)
				departments.PUT("/:id", deptHandler.Update)
				departments.DELETE("/:id", deptHandler.Delete)
			}

			periodHandler := api.NewPeriodHandler(repos.Periods, svc.Audit)
			periods := authorized.Group("/budget-periods")
			{
				periods.GET("", periodHandler.List)
				periods.POST("", periodHandler.Create)
				periods.GET("/active", periodHandler.Active)
				periods.GET("/:id", periodHandler.Get)
				periods.PUT("/:id", periodHandler.Update)
				periods.DELETE("/:id", periodHandler.Delete)
				periods.POST("/:id/activate", periodHandler.Activate)
				periods.PUT("/:id/status", periodHandler.AdvanceStatus)
			}

			accountHandler := api.NewAccountHandler(repos.Accounts, svc.Audit)
			accounts := authorized.Group("/accounts")
			{
				accounts.GET("", accountHandler.List)
				accounts.POST("", accountHandler.Create)
				accounts.GET("/:id", accountHandler.Get)
				accounts.GET("/:id/children", accountHandler.Children)
				accounts.PUT("/:id", accountHandler.Update)
				accounts.DELETE("/:id", accountHandler.Delete)
			}

			budgetHandler := api.NewBudgetHandler(repos.Budgets, svc.Audit)
			budget := authorized.Group("/budget")
			{
				budget.GET("", budgetHandler.List)
				budget.POST("", budgetHandler.Create)
				budget.GET("/summary", budgetHandler.Summary)
				budget.GET("/:id", budgetHandler.Get)
				budget.GET("/:id/children", budgetHandler.Children)
				budget.PUT("/:id", budgetHandler.Update)
				budget.DELETE("/:id", budgetHandler.Delete)
			}

			txHandler := api.NewTransactionHandler(repos.Transactions, svc.Audit)
			transactions := authorized.Group("/transactions")
			{
				transactions.GET("", txHandler.List)
				transactions.POST("", txHandler.Post)
				transactions.GET("/:id", txHandler.Get)
				transactions.DELETE("/:id", txHandler.Delete)
			}

			vendorHandler := api.NewVendorHandler(repos.Vendors, svc.Audit)
			vendors := authorized.Group("/vendors")
			{
				vendors.GET("", vendorHandler.List)
				vendors.POST("", vendorHandler.Create)
				vendors.GET("/:id", vendorHandler.Get)
				vendors.PUT("/:id", vendorHandler.Update)
				vendors.DELETE("/:id", vendorHandler.Delete)
			}

			invoiceHandler := api.NewInvoiceHandler(repos.Invoices, svc.Audit)
			invoices := authorized.Group("/invoices")
			{
				invoices.GET("", invoiceHandler.List)
				invoices.POST("", invoiceHandler.Create)
				invoices.GET("/overdue", invoiceHandler.Overdue)
				invoices.GET("/:id", invoiceHandler.Get)
				invoices.PUT("/:id", invoiceHandler.Update)
				invoices.PUT("/:id/status", invoiceHandler.UpdateStatus)
				invoices.POST("/:id/pay", invoiceHandler.Pay)
				invoices.DELETE("/:id", invoiceHandler.Delete)
			}

			customerHandler := api.NewCustomerHandler(repos.Customers, svc.Email, svc.Audit, d.Logger)
			customers := authorized.Group("/customers")
			{
				customers.GET("", customerHandler.List)
				customers.POST("", customerHandler.Create)
				customers.GET("/active-count", customerHandler.ActiveCount)
				customers.GET("/:id", customerHandler.Get)
				customers.PUT("/:id", customerHandler.Update)
				customers.DELETE("/:id", customerHandler.Delete)
				customers.POST("/:id/remind", customerHandler.Remind)
			}

			auditHandler := api.NewAuditHandler(repos.Audits)
			authorized.GET("/audit", auditHandler.List)
			authorized.GET("/audit/:type/:id", auditHandler.ByEntity)

			servicesHandler := api.NewServicesHandler(svc.Expenses, svc.Grok, svc.Charges, svc.BudgetSync, cfg.Municipality)
			// Grok 调用按用户限流
			grokLimit := middleware.RateLimit(20, time.Minute, middleware.ByUser, "费率测算请求过于频繁，请稍后再试")
			services := authorized.Group("/services")
			{
				services.GET("/department-expenses", servicesHandler.DepartmentExpenses)
				services.POST("/rate-recommendations", grokLimit, servicesHandler.RateRecommendations)
				services.POST("/rate-recommendations/explanation", grokLimit, servicesHandler.RecommendationExplanation)
				services.DELETE("/rate-recommendations/cache", servicesHandler.ClearRecommendationCache)
				services.GET("/service-charge/:departmentId", servicesHandler.ServiceCharge)
				services.GET("/service-charge/:departmentId/what-if", servicesHandler.WhatIf)
				services.POST("/quickbooks/sync", servicesHandler.SyncQuickBooks)
			}

			exportHandler := api.NewExportHandler(api.ExportDeps{
				Budgets:      repos.Budgets,
				Accounts:     repos.Accounts,
				Customers:    repos.Customers,
				PDF:          d.PDF,
				Archive:      d.Archive,
				Email:        svc.Email,
				Metrics:      d.Metrics,
				Municipality: cfg.Municipality.Name,
				Logger:       d.Logger,
			})
			exports := authorized.Group("/export")
			{
				exports.GET("/budget.xlsx", exportHandler.BudgetExcel)
				exports.GET("/budget.csv", exportHandler.BudgetCSV)
				exports.GET("/budget.pdf", exportHandler.BudgetPDF)
				exports.GET("/accounts.xlsx", exportHandler.AccountsExcel)
				exports.GET("/accounts.csv", exportHandler.AccountsCSV)
				exports.GET("/customers.xlsx", exportHandler.CustomersExcel)
				exports.GET("/customers.csv", exportHandler.CustomersCSV)
				exports.POST("/budget/email", exportHandler.EmailBudget)
			}

			dashboardHandler := api.NewDashboardHandler(repos.Budgets, repos.Customers, repos.Invoices, repos.Periods, svc.Grok, cfg.Municipality)
			authorized.GET("/dashboard", dashboardHandler.Get)

			diagHandler := api.NewDiagnosticsHandler(svc.Diagnostics, svc.Email)
			authorized.GET("/diagnostics", diagHandler.Get)
			authorized.POST("/diagnostics/email", diagHandler.TestEmail)
		}
	}

	return r
}

// CORSMiddleware CORS 跨域中间件
func CORSMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With, X-Request-ID")
		c.Writer.Header().Set("Access-Control-Expose-Headers", "Content-Disposition, X-Request-ID, X-Archive-Key")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE, PATCH")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
