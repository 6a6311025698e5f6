package api

import (
	"context"
	"errors"
	"time"

	"wileywidget/config"
	"wileywidget/models"
	"wileywidget/repository"
	"wileywidget/service"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

// DashboardHandler 首页概览
type DashboardHandler struct {
	budgets      *repository.BudgetRepository
	customers    *repository.UtilityCustomerRepository
	invoices     *repository.InvoiceRepository
	periods      *repository.BudgetPeriodRepository
	grok         *service.GrokRecommendationService
	municipality config.MunicipalityConfig
}

// NewDashboardHandler 创建概览处理器
func NewDashboardHandler(budgets *repository.BudgetRepository, customers *repository.UtilityCustomerRepository, invoices *repository.InvoiceRepository, periods *repository.BudgetPeriodRepository, grok *service.GrokRecommendationService, municipality config.MunicipalityConfig) *DashboardHandler {
	return &DashboardHandler{budgets: budgets, customers: customers, invoices: invoices, periods: periods, grok: grok, municipality: municipality}
}

// Dashboard 概览数据
type Dashboard struct {
	FiscalYear      int                       `json:"fiscal_year"`
	Budget          *repository.BudgetSummary `json:"budget"`
	ActiveCustomers int64                     `json:"active_customers"`
	OverdueInvoices int                       `json:"overdue_invoices"`
	OverdueAmount   decimal.Decimal           `json:"overdue_amount"`
	ActivePeriod    *models.BudgetPeriod      `json:"active_period"`
	GrokEnabled     bool                      `json:"grok_enabled"`
	GrokBreaker     string                    `json:"grok_breaker"`
}

// currentFiscalYear 当前日期所在财年
func currentFiscalYear(m config.MunicipalityConfig, now time.Time) int {
	_, end := m.FiscalYearRange(now.Year())
	if now.After(end) {
		return now.Year() + 1
	}
	return now.Year()
}

// Build 并发汇总各项指标，任一查询失败即返回
func (h *DashboardHandler) Build(ctx context.Context, fiscalYear int) (*Dashboard, error) {
	d := &Dashboard{
		FiscalYear:    fiscalYear,
		OverdueAmount: decimal.Zero,
		GrokEnabled:   h.grok.Enabled(),
		GrokBreaker:   string(h.grok.BreakerState()),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s, err := h.budgets.GetBudgetSummary(gctx, fiscalYear)
		d.Budget = s
		return err
	})
	g.Go(func() error {
		n, err := h.customers.GetActiveCount(gctx)
		d.ActiveCustomers = n
		return err
	})
	g.Go(func() error {
		overdue, err := h.invoices.GetOverdue(gctx, time.Now())
		if err != nil {
			return err
		}
		total := decimal.Zero
		for _, inv := range overdue {
			total = total.Add(inv.Amount)
		}
		d.OverdueInvoices = len(overdue)
		d.OverdueAmount = total
		return nil
	})
	g.Go(func() error {
		p, err := h.periods.GetActive(gctx)
		if errors.Is(err, repository.ErrNotFound) {
			return nil
		}
		d.ActivePeriod = p
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return d, nil
}

// Get 概览
// @Summary 首页概览
// @Description 财年预算汇总、活跃用户数、逾期发票、当前预算期和 AI 服务状态
// @Tags 概览
// @Produce json
// @Security BearerAuth
// @Param fiscal_year query int false "财年，缺省为当前财年"
// @Success 200 {object} Response{data=Dashboard} "获取成功"
// @Router /api/v1/dashboard [get]
func (h *DashboardHandler) Get(c *gin.Context) {
	fy, ok := queryInt(c, "fiscal_year")
	if !ok {
		return
	}
	if fy == 0 {
		fy = currentFiscalYear(h.municipality, time.Now())
	}
	d, err := h.Build(c.Request.Context(), fy)
	if err != nil {
		Fail(c, err, "获取概览失败")
		return
	}
	Success(c, d)
}
