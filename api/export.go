package api

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"wileywidget/export"
	"wileywidget/metrics"
	"wileywidget/models"
	"wileywidget/repository"
	"wileywidget/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ArchiveKeyHeader 归档成功时返回的对象键
const ArchiveKeyHeader = "X-Archive-Key"

// ExportHandler 导出处理器
type ExportHandler struct {
	budgets      *repository.BudgetRepository
	accounts     *repository.MunicipalAccountRepository
	customers    *repository.UtilityCustomerRepository
	excel        *export.ExcelExporter
	csv          *export.CSVExporter
	pdf          export.PDFRenderer
	archive      export.Archive
	email        *service.EmailService
	metrics      *metrics.Metrics
	municipality string
	logger       *zap.Logger
}

// ExportDeps 导出处理器依赖
type ExportDeps struct {
	Budgets      *repository.BudgetRepository
	Accounts     *repository.MunicipalAccountRepository
	Customers    *repository.UtilityCustomerRepository
	PDF          export.PDFRenderer
	Archive      export.Archive
	Email        *service.EmailService
	Metrics      *metrics.Metrics
	Municipality string
	Logger       *zap.Logger
}

// NewExportHandler 创建导出处理器
func NewExportHandler(d ExportDeps) *ExportHandler {
	h := &ExportHandler{
		budgets:      d.Budgets,
		accounts:     d.Accounts,
		customers:    d.Customers,
		excel:        export.NewExcelExporter(),
		csv:          export.NewCSVExporter(),
		pdf:          d.PDF,
		archive:      d.Archive,
		email:        d.Email,
		metrics:      d.Metrics,
		municipality: d.Municipality,
		logger:       d.Logger,
	}
	if h.pdf == nil {
		h.pdf = export.DisabledPDFRenderer{}
	}
	if h.archive == nil {
		h.archive = export.NoopArchive{}
	}
	if h.logger == nil {
		h.logger = zap.NewNop()
	}
	return h
}

// BudgetEmailRequest 预算报表邮件请求
type BudgetEmailRequest struct {
	FiscalYear int    `json:"fiscal_year" binding:"required" example:"2025"`
	To         string `json:"to" binding:"required,email" example:"council@example.gov"`
	Format     string `json:"format" binding:"omitempty,oneof=xlsx csv pdf" example:"xlsx"`
}

// send 归档并输出文件，归档失败不影响下载
func (h *ExportHandler) send(c *gin.Context, format, filename, contentType string, data []byte) {
	key, err := h.archive.Store(c.Request.Context(), filename, contentType, data)
	if err != nil {
		h.logger.Warn("导出文件归档失败", zap.String("file", filename), zap.Error(err))
	} else if key != "" {
		c.Header(ArchiveKeyHeader, key)
	}
	h.metrics.IncExport(format)

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s", filename))
	c.Header("Content-Length", strconv.Itoa(len(data)))
	c.Data(http.StatusOK, contentType, data)
}

func (h *ExportHandler) requireFiscalYear(c *gin.Context) (int, bool) {
	fy, ok := queryInt(c, "fiscal_year")
	if !ok {
		return 0, false
	}
	if fy == 0 {
		BadRequest(c, "请提供财年")
		return 0, false
	}
	return fy, true
}

// renderBudget 生成指定格式的预算文件
func (h *ExportHandler) renderBudget(ctx context.Context, fiscalYear int, format string) (string, string, []byte, error) {
	entries, err := h.budgets.GetByFiscalYear(ctx, fiscalYear)
	if err != nil {
		return "", "", nil, err
	}
	base := fmt.Sprintf("budget_fy%d", fiscalYear)
	switch format {
	case "csv":
		data, err := h.csv.BudgetEntries(entries, fiscalYear)
		return base + ".csv", export.ContentTypeCSV, data, err
	case "pdf":
		page, err := export.BudgetReportHTML(repository.Summarize(fiscalYear, entries), entries, h.municipality)
		if err != nil {
			return "", "", nil, err
		}
		data, err := h.pdf.Render(ctx, page)
		return base + ".pdf", export.ContentTypePDF, data, err
	default:
		data, err := h.excel.BudgetEntries(entries, fiscalYear)
		return base + ".xlsx", export.ContentTypeXLSX, data, err
	}
}

func (h *ExportHandler) budget(c *gin.Context, format string) {
	fy, ok := h.requireFiscalYear(c)
	if !ok {
		return
	}
	name, contentType, data, err := h.renderBudget(c.Request.Context(), fy, format)
	if err != nil {
		Fail(c, err, "导出预算失败")
		return
	}
	h.send(c, format, name, contentType, data)
}

// BudgetExcel 导出预算 Excel
// @Summary 导出财年预算 (Excel)
// @Tags 导出
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Security BearerAuth
// @Param fiscal_year query int true "财年"
// @Success 200 {file} file "Excel 文件"
// @Failure 400 {object} Response "请求参数错误"
// @Router /api/v1/export/budget.xlsx [get]
func (h *ExportHandler) BudgetExcel(c *gin.Context) { h.budget(c, "xlsx") }

// BudgetCSV 导出预算 CSV
// @Summary 导出财年预算 (CSV)
// @Tags 导出
// @Produce text/csv
// @Security BearerAuth
// @Param fiscal_year query int true "财年"
// @Success 200 {file} file "CSV 文件"
// @Router /api/v1/export/budget.csv [get]
func (h *ExportHandler) BudgetCSV(c *gin.Context) { h.budget(c, "csv") }

// BudgetPDF 导出预算 PDF
// @Summary 导出财年预算报告 (PDF)
// @Description 需要配置 Chrome，未启用时返回 503
// @Tags 导出
// @Produce application/pdf
// @Security BearerAuth
// @Param fiscal_year query int true "财年"
// @Success 200 {file} file "PDF 文件"
// @Failure 503 {object} Response "PDF 导出未启用"
// @Router /api/v1/export/budget.pdf [get]
func (h *ExportHandler) BudgetPDF(c *gin.Context) { h.budget(c, "pdf") }

// AccountsExcel 导出科目表 Excel
// @Summary 导出科目表 (Excel)
// @Tags 导出
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Security BearerAuth
// @Success 200 {file} file "Excel 文件"
// @Router /api/v1/export/accounts.xlsx [get]
func (h *ExportHandler) AccountsExcel(c *gin.Context) {
	accounts, err := h.accounts.GetAll(c.Request.Context())
	if err != nil {
		Fail(c, err, "导出科目表失败")
		return
	}
	data, err := h.excel.Accounts(accounts)
	if err != nil {
		Fail(c, err, "导出科目表失败")
		return
	}
	h.send(c, "xlsx", "accounts.xlsx", export.ContentTypeXLSX, data)
}

// AccountsCSV 导出科目表 CSV
// @Summary 导出科目表 (CSV)
// @Tags 导出
// @Produce text/csv
// @Security BearerAuth
// @Success 200 {file} file "CSV 文件"
// @Router /api/v1/export/accounts.csv [get]
func (h *ExportHandler) AccountsCSV(c *gin.Context) {
	accounts, err := h.accounts.GetAll(c.Request.Context())
	if err != nil {
		Fail(c, err, "导出科目表失败")
		return
	}
	data, err := h.csv.Accounts(accounts)
	if err != nil {
		Fail(c, err, "导出科目表失败")
		return
	}
	h.send(c, "csv", "accounts.csv", export.ContentTypeCSV, data)
}

func (h *ExportHandler) allCustomers(c *gin.Context) ([]models.UtilityCustomer, bool) {
	list, err := h.customers.GetAll(c.Request.Context())
	if err != nil {
		Fail(c, err, "导出用户失败")
		return nil, false
	}
	return list, true
}

// CustomersExcel 导出用户 Excel
// @Summary 导出公用事业用户 (Excel)
// @Tags 导出
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Security BearerAuth
// @Success 200 {file} file "Excel 文件"
// @Router /api/v1/export/customers.xlsx [get]
func (h *ExportHandler) CustomersExcel(c *gin.Context) {
	list, ok := h.allCustomers(c)
	if !ok {
		return
	}
	data, err := h.excel.Customers(list)
	if err != nil {
		Fail(c, err, "导出用户失败")
		return
	}
	h.send(c, "xlsx", "customers.xlsx", export.ContentTypeXLSX, data)
}

// CustomersCSV 导出用户 CSV
// @Summary 导出公用事业用户 (CSV)
// @Tags 导出
// @Produce text/csv
// @Security BearerAuth
// @Success 200 {file} file "CSV 文件"
// @Router /api/v1/export/customers.csv [get]
func (h *ExportHandler) CustomersCSV(c *gin.Context) {
	list, ok := h.allCustomers(c)
	if !ok {
		return
	}
	data, err := h.csv.Customers(list)
	if err != nil {
		Fail(c, err, "导出用户失败")
		return
	}
	h.send(c, "csv", "customers.csv", export.ContentTypeCSV, data)
}

// EmailBudget 以邮件发送预算报表
// @Summary 邮件发送财年预算报表
// @Tags 导出
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body BudgetEmailRequest true "收件人与格式"
// @Success 200 {object} Response "发送成功"
// @Failure 503 {object} Response "邮件服务未启用"
// @Router /api/v1/export/budget/email [post]
func (h *ExportHandler) EmailBudget(c *gin.Context) {
	var req BudgetEmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}
	if !h.email.Enabled() {
		Fail(c, service.ErrEmailDisabled, "邮件服务未启用")
		return
	}
	format := req.Format
	if format == "" {
		format = "xlsx"
	}
	name, contentType, data, err := h.renderBudget(c.Request.Context(), req.FiscalYear, format)
	if err != nil {
		Fail(c, err, "生成预算报表失败")
		return
	}
	if _, err := h.archive.Store(c.Request.Context(), name, contentType, data); err != nil {
		h.logger.Warn("导出文件归档失败", zap.String("file", name), zap.Error(err))
	}
	subject := fmt.Sprintf("【%s】FY%d 预算报表", h.municipality, req.FiscalYear)
	if err := h.email.SendReport(req.To, subject, name, data); err != nil {
		h.logger.Error("发送预算报表失败", zap.String("to", req.To), zap.Error(err))
		Fail(c, err, "发送邮件失败")
		return
	}
	h.metrics.IncExport(format)
	SuccessWithMessage(c, "报表已发送", gin.H{"to": req.To, "file": name})
}
