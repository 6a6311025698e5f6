package api

import (
	"time"

	"wileywidget/config"
	"wileywidget/service"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// ServicesHandler 支出查询、费率建议、服务费测算与 QuickBooks 同步
type ServicesHandler struct {
	expenses     *service.DepartmentExpenseService
	grok         *service.GrokRecommendationService
	charges      *service.ServiceChargeCalculatorService
	sync         *service.QuickBooksBudgetSyncService
	municipality config.MunicipalityConfig
}

// NewServicesHandler 创建业务服务处理器
func NewServicesHandler(expenses *service.DepartmentExpenseService, grok *service.GrokRecommendationService, charges *service.ServiceChargeCalculatorService, sync *service.QuickBooksBudgetSyncService, municipality config.MunicipalityConfig) *ServicesHandler {
	return &ServicesHandler{expenses: expenses, grok: grok, charges: charges, sync: sync, municipality: municipality}
}

// RateRecommendationRequest 费率建议请求
type RateRecommendationRequest struct {
	Expenses  map[string]decimal.Decimal `json:"expenses"` // 为空时按年初至今的部门支出计算
	MarginPct decimal.Decimal            `json:"margin_pct" swaggertype:"number" example:"15"`
}

// SyncRequest QuickBooks 同步请求
type SyncRequest struct {
	FiscalYear int    `json:"fiscal_year" binding:"required" example:"2025"`
	From       string `json:"from" example:"2024-07-01"` // 缺省为财年开始
	To         string `json:"to" example:"2025-06-30"`   // 缺省为财年结束
}

// DepartmentExpenses 部门支出
// @Summary 部门区间支出
// @Description 不传 department 时返回全部企业型部门；QuickBooks 不可用时使用示例数据
// @Tags 业务服务
// @Produce json
// @Security BearerAuth
// @Param department query string false "部门名称"
// @Param from query string false "开始日期 (2006-01-02)"
// @Param to query string false "结束日期 (2006-01-02)"
// @Success 200 {object} Response{data=[]service.DepartmentExpense} "获取成功"
// @Router /api/v1/services/department-expenses [get]
func (h *ServicesHandler) DepartmentExpenses(c *gin.Context) {
	from, to, ok := parseDateRange(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	if dept := c.Query("department"); dept != "" {
		e, err := h.expenses.GetDepartmentExpenses(ctx, dept, from, to)
		if err != nil {
			Fail(c, err, "获取部门支出失败")
			return
		}
		Success(c, []service.DepartmentExpense{*e})
		return
	}
	list, err := h.expenses.GetAllDepartmentExpenses(ctx, from, to)
	if err != nil {
		Fail(c, err, "获取部门支出失败")
		return
	}
	Success(c, list)
}

// expensesFor 请求未带支出时按年初至今的部门支出补齐
func (h *ServicesHandler) expensesFor(c *gin.Context, req *RateRecommendationRequest) bool {
	if len(req.Expenses) > 0 {
		return true
	}
	now := time.Now()
	from := time.Date(now.Year(), 1, 1, 0, 0, 0, 0, time.Local)
	list, err := h.expenses.GetAllDepartmentExpenses(c.Request.Context(), from, now)
	if err != nil {
		Fail(c, err, "获取部门支出失败")
		return false
	}
	req.Expenses = make(map[string]decimal.Decimal, len(list))
	for _, e := range list {
		req.Expenses[e.Department] = e.Total
	}
	return true
}

// RateRecommendations 费率建议
// @Summary 获取费率建议
// @Description 调用 xAI Grok 生成各部门月度费率建议，服务不可用时回退到内置公式
// @Tags 业务服务
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body RateRecommendationRequest true "部门支出与目标利润率"
// @Success 200 {object} Response{data=service.RateRecommendation} "获取成功"
// @Failure 400 {object} Response "参数错误"
// @Router /api/v1/services/rate-recommendations [post]
func (h *ServicesHandler) RateRecommendations(c *gin.Context) {
	var req RateRecommendationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}
	if !h.expensesFor(c, &req) {
		return
	}
	rec, err := h.grok.GetRateRecommendations(c.Request.Context(), req.Expenses, req.MarginPct)
	if err != nil {
		Fail(c, err, "获取费率建议失败")
		return
	}
	Success(c, rec)
}

// RecommendationExplanation 费率建议说明
// @Summary 获取费率建议说明
// @Tags 业务服务
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body RateRecommendationRequest true "部门支出与目标利润率"
// @Success 200 {object} Response{data=map[string]string} "获取成功"
// @Router /api/v1/services/rate-recommendations/explanation [post]
func (h *ServicesHandler) RecommendationExplanation(c *gin.Context) {
	var req RateRecommendationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}
	if !h.expensesFor(c, &req) {
		return
	}
	text, err := h.grok.GetRecommendationExplanation(c.Request.Context(), req.Expenses, req.MarginPct)
	if err != nil {
		Fail(c, err, "获取费率建议说明失败")
		return
	}
	Success(c, gin.H{"explanation": text})
}

// ClearRecommendationCache 清除费率建议缓存
// @Summary 清除费率建议缓存
// @Tags 业务服务
// @Produce json
// @Security BearerAuth
// @Success 200 {object} Response{data=map[string]int} "清除成功"
// @Router /api/v1/services/rate-recommendations/cache [delete]
func (h *ServicesHandler) ClearRecommendationCache(c *gin.Context) {
	n := h.grok.ClearCache(c.Request.Context())
	SuccessWithMessage(c, "缓存已清除", gin.H{"cleared": n})
}

func (h *ServicesHandler) fiscalYear(c *gin.Context) (int, bool) {
	fy, ok := queryInt(c, "fiscal_year")
	if !ok {
		return 0, false
	}
	if fy == 0 {
		fy = currentFiscalYear(h.municipality, time.Now())
	}
	return fy, true
}

// ServiceCharge 服务费建议
// @Summary 计算部门建议服务费
// @Tags 业务服务
// @Produce json
// @Security BearerAuth
// @Param departmentId path int true "部门ID"
// @Param fiscal_year query int false "财年，缺省为当前财年"
// @Success 200 {object} Response{data=service.ChargeRecommendation} "获取成功"
// @Failure 404 {object} Response "部门不存在"
// @Router /api/v1/services/service-charge/{departmentId} [get]
func (h *ServicesHandler) ServiceCharge(c *gin.Context) {
	id, ok := parseID(c, "departmentId")
	if !ok {
		return
	}
	fy, ok := h.fiscalYear(c)
	if !ok {
		return
	}
	rec, err := h.charges.CalculateRecommendedCharge(c.Request.Context(), id, fy)
	if err != nil {
		Fail(c, err, "计算服务费失败")
		return
	}
	Success(c, rec)
}

// WhatIf 假设分析
// @Summary 服务费假设分析
// @Tags 业务服务
// @Produce json
// @Security BearerAuth
// @Param departmentId path int true "部门ID"
// @Param fiscal_year query int false "财年，缺省为当前财年"
// @Param rate_increase_pct query number false "费率调整百分比 (-50 ~ 100)"
// @Param expense_increase_pct query number false "支出调整百分比 (-50 ~ 100)"
// @Success 200 {object} Response{data=service.WhatIfScenario} "获取成功"
// @Failure 400 {object} Response "参数错误"
// @Router /api/v1/services/service-charge/{departmentId}/what-if [get]
func (h *ServicesHandler) WhatIf(c *gin.Context) {
	id, ok := parseID(c, "departmentId")
	if !ok {
		return
	}
	fy, ok := h.fiscalYear(c)
	if !ok {
		return
	}
	ratePct, err := decimal.NewFromString(c.DefaultQuery("rate_increase_pct", "0"))
	if err != nil {
		BadRequest(c, "无效的费率调整百分比")
		return
	}
	expensePct, err := decimal.NewFromString(c.DefaultQuery("expense_increase_pct", "0"))
	if err != nil {
		BadRequest(c, "无效的支出调整百分比")
		return
	}
	scenario, err := h.charges.GenerateWhatIfScenario(c.Request.Context(), id, fy, ratePct, expensePct)
	if err != nil {
		Fail(c, err, "假设分析失败")
		return
	}
	Success(c, scenario)
}

// SyncQuickBooks 同步 QuickBooks 实际发生额
// @Summary 同步 QuickBooks 实际发生额
// @Description 拉取区间内日记账，按科目汇总写入预算条目的实际发生额
// @Tags 业务服务
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body SyncRequest true "同步参数"
// @Success 200 {object} Response{data=service.SyncResult} "同步成功"
// @Failure 503 {object} Response "QuickBooks 未配置"
// @Router /api/v1/services/quickbooks/sync [post]
func (h *ServicesHandler) SyncQuickBooks(c *gin.Context) {
	var req SyncRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}
	from, to := h.municipality.FiscalYearRange(req.FiscalYear)
	var err error
	if req.From != "" {
		if from, err = time.ParseInLocation(dateLayout, req.From, time.Local); err != nil {
			BadRequest(c, "开始日期格式错误，应为: 2006-01-02")
			return
		}
	}
	if req.To != "" {
		if to, err = time.ParseInLocation(dateLayout, req.To, time.Local); err != nil {
			BadRequest(c, "结束日期格式错误，应为: 2006-01-02")
			return
		}
		to = to.Add(24*time.Hour - time.Second)
	}

	ctx := service.ContextWithUser(c.Request.Context(), currentUser(c))
	result, err := h.sync.SyncActuals(ctx, req.FiscalYear, from, to)
	if err != nil {
		Fail(c, err, "同步失败")
		return
	}
	SuccessWithMessage(c, "同步完成", result)
}
