package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"wileywidget/cache"
	"wileywidget/config"
	"wileywidget/database"
	"wileywidget/export"
	"wileywidget/models"
	"wileywidget/quickbooks"
	"wileywidget/repository"
	"wileywidget/service"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type testEnv struct {
	db        *gorm.DB
	budgets   *repository.BudgetRepository
	customers *repository.UtilityCustomerRepository
	depts     *repository.DepartmentRepository
	water     models.Department
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)
	RegisterValidators()
	db, err := database.OpenInMemory()
	require.NoError(t, err)
	require.NoError(t, database.Seed(db))

	env := &testEnv{
		db:        db,
		budgets:   repository.NewBudgetRepository(db),
		customers: repository.NewUtilityCustomerRepository(db, cache.NewMemory(), time.Minute),
		depts:     repository.NewDepartmentRepository(db),
	}
	require.NoError(t, db.Where("name = ?", models.DepartmentWater).First(&env.water).Error)
	return env
}

func (e *testEnv) addBudget(t *testing.T, number string, fy int, budgeted, actual string) {
	t.Helper()
	require.NoError(t, e.budgets.Add(context.Background(), &models.BudgetEntry{
		AccountNumber:  number,
		Description:    "Water operations " + number,
		BudgetedAmount: decimal.RequireFromString(budgeted),
		ActualAmount:   decimal.RequireFromString(actual),
		FiscalYear:     fy,
		DepartmentID:   e.water.ID,
	}))
}

func (e *testEnv) addCustomer(t *testing.T, number string) {
	t.Helper()
	require.NoError(t, e.customers.Add(context.Background(), &models.UtilityCustomer{
		AccountNumber:  number,
		FirstName:      "Pat",
		LastName:       "Rivera",
		CustomerType:   models.CustomerResidential,
		ServiceAddress: "12 Main St",
		Status:         models.CustomerActive,
	}))
}

func get(r *gin.Engine, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

type fakePDF struct{ html string }

func (f *fakePDF) Render(_ context.Context, html string) ([]byte, error) {
	f.html = html
	return []byte("%PDF-1.4 fake"), nil
}

func newExportRouter(env *testEnv, pdf export.PDFRenderer, archive export.Archive) *gin.Engine {
	h := NewExportHandler(ExportDeps{
		Budgets:      env.budgets,
		Accounts:     repository.NewMunicipalAccountRepository(env.db, cache.NewMemory(), time.Minute),
		Customers:    env.customers,
		PDF:          pdf,
		Archive:      archive,
		Email:        service.NewEmailService(&config.EmailConfig{}, "Town of Wiley"),
		Municipality: "Town of Wiley",
	})
	r := gin.New()
	r.GET("/export/budget.xlsx", h.BudgetExcel)
	r.GET("/export/budget.csv", h.BudgetCSV)
	r.GET("/export/budget.pdf", h.BudgetPDF)
	r.GET("/export/customers.csv", h.CustomersCSV)
	r.POST("/export/budget/email", h.EmailBudget)
	return r
}

func TestExportHandler_BudgetExcelArchived(t *testing.T) {
	env := newTestEnv(t)
	env.addBudget(t, "405", 2025, "1000.00", "250.00")
	dir := t.TempDir()
	r := newExportRouter(env, nil, export.NewLocalArchive(dir))

	w := get(r, "/export/budget.xlsx?fiscal_year=2025")
	require.Equal(t, 200, w.Code)
	assert.Equal(t, export.ContentTypeXLSX, w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "budget_fy2025.xlsx")

	key := w.Header().Get(ArchiveKeyHeader)
	require.True(t, strings.HasPrefix(key, "exports/"), key)
	stored, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(key)))
	require.NoError(t, err)
	assert.Equal(t, w.Body.Bytes(), stored)
}

func TestExportHandler_BudgetRequiresFiscalYear(t *testing.T) {
	env := newTestEnv(t)
	r := newExportRouter(env, nil, nil)

	assert.Equal(t, 400, get(r, "/export/budget.csv").Code)
	assert.Equal(t, 400, get(r, "/export/budget.csv?fiscal_year=abc").Code)
}

func TestExportHandler_BudgetCSV(t *testing.T) {
	env := newTestEnv(t)
	env.addBudget(t, "405.1", 2025, "1200.00", "0")
	r := newExportRouter(env, nil, nil)

	w := get(r, "/export/budget.csv?fiscal_year=2025")
	require.Equal(t, 200, w.Code)
	assert.Empty(t, w.Header().Get(ArchiveKeyHeader))
	assert.True(t, strings.HasPrefix(w.Body.String(), "\xEF\xBB\xBF"))
	assert.Contains(t, w.Body.String(), "405.1")
}

func TestExportHandler_BudgetPDF(t *testing.T) {
	env := newTestEnv(t)
	env.addBudget(t, "405", 2025, "1000.00", "1500.00")

	w := get(newExportRouter(env, nil, nil), "/export/budget.pdf?fiscal_year=2025")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	pdf := &fakePDF{}
	w = get(newExportRouter(env, pdf, nil), "/export/budget.pdf?fiscal_year=2025")
	require.Equal(t, 200, w.Code)
	assert.Equal(t, export.ContentTypePDF, w.Header().Get("Content-Type"))
	assert.True(t, strings.HasPrefix(w.Body.String(), "%PDF"))
	assert.Contains(t, pdf.html, "Town of Wiley")
}

func TestExportHandler_EmailBudgetDisabled(t *testing.T) {
	env := newTestEnv(t)
	r := newExportRouter(env, nil, nil)

	w := postJSON(r, "/export/budget/email", `{"fiscal_year":2025,"to":"council@example.gov"}`)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	w = postJSON(r, "/export/budget/email", `{"fiscal_year":2025,"to":"not-an-email"}`)
	assert.Equal(t, 400, w.Code)
}

func newServicesRouter(env *testEnv) *gin.Engine {
	qb := quickbooks.NewClient(config.QuickBooksConfig{}, nil, nil)
	accounts := repository.NewMunicipalAccountRepository(env.db, cache.NewMemory(), time.Minute)
	h := NewServicesHandler(
		service.NewDepartmentExpenseService(qb, env.depts, nil),
		service.NewGrokRecommendationService(config.GrokConfig{}, cache.NewMemory(), nil, nil),
		service.NewServiceChargeCalculatorService(env.depts, env.budgets, env.customers),
		service.NewQuickBooksBudgetSyncService(qb, accounts, env.budgets, nil, nil, nil),
		config.MunicipalityConfig{Name: "Town of Wiley", FiscalYearStartMonth: 7},
	)
	r := gin.New()
	r.GET("/services/department-expenses", h.DepartmentExpenses)
	r.POST("/services/rate-recommendations", h.RateRecommendations)
	r.POST("/services/rate-recommendations/explanation", h.RecommendationExplanation)
	r.DELETE("/services/rate-recommendations/cache", h.ClearRecommendationCache)
	r.GET("/services/service-charge/:departmentId", h.ServiceCharge)
	r.GET("/services/service-charge/:departmentId/what-if", h.WhatIf)
	r.POST("/services/quickbooks/sync", h.SyncQuickBooks)
	return r
}

func TestServicesHandler_DepartmentExpensesFallsBackToSample(t *testing.T) {
	env := newTestEnv(t)
	r := newServicesRouter(env)

	w := get(r, "/services/department-expenses?from=2025-01-01&to=2025-03-31")
	require.Equal(t, 200, w.Code)
	list := decode(t, w)["data"].([]any)
	assert.Len(t, list, 4)
	for _, item := range list {
		assert.Equal(t, service.SourceSample, item.(map[string]any)["source"])
	}

	w = get(r, "/services/department-expenses?department=Water&from=2025-01-01&to=2025-01-31")
	require.Equal(t, 200, w.Code)
	assert.Len(t, decode(t, w)["data"].([]any), 1)

	assert.Equal(t, 400, get(r, "/services/department-expenses?from=2025-03-01&to=2025-01-01").Code)
}

func TestServicesHandler_RateRecommendationsFallback(t *testing.T) {
	env := newTestEnv(t)
	r := newServicesRouter(env)

	w := postJSON(r, "/services/rate-recommendations", `{"expenses":{"Water":"45000"},"margin_pct":"10"}`)
	require.Equal(t, 200, w.Code)
	data := decode(t, w)["data"].(map[string]any)
	assert.Equal(t, true, data["from_fallback"])
	assert.Contains(t, data["rates"], "Water")

	// 未传支出时使用部门支出
	w = postJSON(r, "/services/rate-recommendations", `{"margin_pct":"10"}`)
	require.Equal(t, 200, w.Code)
	assert.Len(t, decode(t, w)["data"].(map[string]any)["rates"], 4)

	w = postJSON(r, "/services/rate-recommendations", `{"expenses":{"Water":"100"},"margin_pct":"75"}`)
	assert.Equal(t, 400, w.Code)

	w = postJSON(r, "/services/rate-recommendations/explanation", `{"expenses":{"Water":"45000"},"margin_pct":"10"}`)
	require.Equal(t, 200, w.Code)
	assert.NotEmpty(t, decode(t, w)["data"].(map[string]any)["explanation"])

	req := httptest.NewRequest(http.MethodDelete, "/services/rate-recommendations/cache", nil)
	dw := httptest.NewRecorder()
	r.ServeHTTP(dw, req)
	assert.Equal(t, 200, dw.Code)
}

func TestServicesHandler_ServiceCharge(t *testing.T) {
	env := newTestEnv(t)
	env.addBudget(t, "610", 2025, "120000.00", "0")
	r := newServicesRouter(env)
	path := "/services/service-charge/" + itoa(env.water.ID) + "?fiscal_year=2025"

	// 无活跃用户
	assert.Equal(t, 400, get(r, path).Code)

	env.addCustomer(t, "W-0001")
	w := get(r, path)
	require.Equal(t, 200, w.Code)
	data := decode(t, w)["data"].(map[string]any)
	assert.Equal(t, models.DepartmentWater, data["department"])
	assert.Equal(t, float64(1), data["customer_count"])

	assert.Equal(t, 404, get(r, "/services/service-charge/999?fiscal_year=2025").Code)
	assert.Equal(t, 400, get(r, "/services/service-charge/abc").Code)
}

func TestServicesHandler_WhatIf(t *testing.T) {
	env := newTestEnv(t)
	env.addBudget(t, "610", 2025, "120000.00", "0")
	env.addCustomer(t, "W-0001")
	r := newServicesRouter(env)
	base := "/services/service-charge/" + itoa(env.water.ID) + "/what-if?fiscal_year=2025"

	w := get(r, base+"&rate_increase_pct=10&expense_increase_pct=5")
	require.Equal(t, 200, w.Code)
	data := decode(t, w)["data"].(map[string]any)
	assert.Equal(t, "49.5", data["new_rate"])

	assert.Equal(t, 400, get(r, base+"&rate_increase_pct=abc").Code)
	assert.Equal(t, 400, get(r, base+"&rate_increase_pct=150").Code)
}

func TestServicesHandler_SyncNotConfigured(t *testing.T) {
	env := newTestEnv(t)
	r := newServicesRouter(env)

	w := postJSON(r, "/services/quickbooks/sync", `{"fiscal_year":2025}`)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	w = postJSON(r, "/services/quickbooks/sync", `{"fiscal_year":2025,"from":"07/01/2024"}`)
	assert.Equal(t, 400, w.Code)
}

func TestDashboardHandler_Build(t *testing.T) {
	env := newTestEnv(t)
	env.addBudget(t, "405", 2025, "1000.00", "1200.00")
	env.addCustomer(t, "W-0001")

	h := NewDashboardHandler(env.budgets, env.customers, repository.NewInvoiceRepository(env.db),
		repository.NewBudgetPeriodRepository(env.db), nil, config.MunicipalityConfig{FiscalYearStartMonth: 7})
	d, err := h.Build(context.Background(), 2025)
	require.NoError(t, err)
	assert.Equal(t, 1, d.Budget.EntryCount)
	assert.Equal(t, int64(1), d.ActiveCustomers)
	assert.Equal(t, 0, d.OverdueInvoices)
	assert.Nil(t, d.ActivePeriod)
	assert.False(t, d.GrokEnabled)
	assert.Equal(t, string(service.BreakerClosed), d.GrokBreaker)

	r := gin.New()
	r.GET("/dashboard", h.Get)
	assert.Equal(t, 200, get(r, "/dashboard").Code)
	assert.Equal(t, 400, get(r, "/dashboard?fiscal_year=x").Code)
}

func TestCurrentFiscalYear(t *testing.T) {
	july := config.MunicipalityConfig{FiscalYearStartMonth: 7}
	assert.Equal(t, 2026, currentFiscalYear(july, time.Date(2025, 7, 1, 12, 0, 0, 0, time.Local)))
	assert.Equal(t, 2025, currentFiscalYear(july, time.Date(2025, 6, 30, 12, 0, 0, 0, time.Local)))
	assert.Equal(t, 2025, currentFiscalYear(config.MunicipalityConfig{FiscalYearStartMonth: 1}, time.Date(2025, 12, 31, 12, 0, 0, 0, time.Local)))
}

func TestBudgetHandler_AccountNumberValidation(t *testing.T) {
	env := newTestEnv(t)
	h := NewBudgetHandler(env.budgets, service.NewAuditService(repository.NewAuditRepository(env.db), nil))
	r := gin.New()
	r.POST("/budget", h.Create)

	w := postJSON(r, "/budget", `{"account_number":"ABC","fiscal_year":2025,"department_id":`+itoa(env.water.ID)+`,"budgeted_amount":"100"}`)
	assert.Equal(t, 400, w.Code)

	w = postJSON(r, "/budget", `{"account_number":"405.2","fiscal_year":2025,"department_id":`+itoa(env.water.ID)+`,"budgeted_amount":"100"}`)
	assert.Equal(t, 201, w.Code)

	var audits int64
	env.db.Model(&models.AuditEntry{}).Where("entity_type = ?", "BudgetEntry").Count(&audits)
	assert.Equal(t, int64(1), audits)
}

func TestParseDateRange(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, "/?from=2025-01-01&to=2025-01-31", nil)

	from, to, ok := parseDateRange(c)
	require.True(t, ok)
	assert.Equal(t, "2025-01-01", from.Format(dateLayout))
	assert.Equal(t, "2025-01-31 23:59:59", to.Format("2006-01-02 15:04:05"))
}

func itoa(id uint) string {
	return decimal.NewFromInt(int64(id)).String()
}
