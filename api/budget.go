package api

import (
	"wileywidget/models"
	"wileywidget/repository"
	"wileywidget/service"

	"github.com/gin-gonic/gin"
)

// BudgetHandler 预算明细处理器
type BudgetHandler struct {
	budgets *repository.BudgetRepository
	audit   *service.AuditService
}

// NewBudgetHandler 创建预算处理器
func NewBudgetHandler(budgets *repository.BudgetRepository, audit *service.AuditService) *BudgetHandler {
	return &BudgetHandler{budgets: budgets, audit: audit}
}

// List 预算明细分页列表
// @Summary 预算明细列表
// @Tags 预算
// @Produce json
// @Security BearerAuth
// @Param fiscal_year query int false "财年"
// @Param department_id query int false "部门ID"
// @Param page query int false "页码"
// @Param page_size query int false "每页数量"
// @Param sort_by query string false "排序字段" Enums(account_number, fiscal_year, budgeted_amount, actual_amount)
// @Param sort_desc query bool false "倒序"
// @Param search query string false "按编号或说明搜索"
// @Success 200 {object} Response{data=repository.Page[models.BudgetEntry]} "获取成功"
// @Router /api/v1/budget [get]
func (h *BudgetHandler) List(c *gin.Context) {
	fy, ok := queryInt(c, "fiscal_year")
	if !ok {
		return
	}
	deptID, ok := queryInt(c, "department_id")
	if !ok {
		return
	}
	q, ok := bindPage(c)
	if !ok {
		return
	}
	page, err := h.budgets.GetPaged(c.Request.Context(), fy, uint(deptID), q)
	if err != nil {
		Fail(c, err, "获取预算失败")
		return
	}
	Success(c, page)
}

// Summary 财年预算汇总
// @Summary 财年预算汇总
// @Description 合计预算、实际、差异和保留金额，并按基金类型和部门分组
// @Tags 预算
// @Produce json
// @Security BearerAuth
// @Param fiscal_year query int true "财年"
// @Success 200 {object} Response{data=repository.BudgetSummary} "获取成功"
// @Router /api/v1/budget/summary [get]
func (h *BudgetHandler) Summary(c *gin.Context) {
	fy, ok := queryInt(c, "fiscal_year")
	if !ok {
		return
	}
	if fy == 0 {
		BadRequest(c, "请提供财年")
		return
	}
	summary, err := h.budgets.GetBudgetSummary(c.Request.Context(), fy)
	if err != nil {
		Fail(c, err, "获取预算汇总失败")
		return
	}
	Success(c, summary)
}

// Get 预算明细详情
// @Summary 预算明细详情
// @Tags 预算
// @Produce json
// @Security BearerAuth
// @Param id path int true "预算ID"
// @Success 200 {object} Response{data=models.BudgetEntry} "获取成功"
// @Router /api/v1/budget/{id} [get]
func (h *BudgetHandler) Get(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	e, err := h.budgets.GetByID(c.Request.Context(), id)
	if err != nil {
		Fail(c, err, "获取预算失败")
		return
	}
	Success(c, e)
}

// Children 下级预算明细
// @Summary 下级预算明细
// @Tags 预算
// @Produce json
// @Security BearerAuth
// @Param id path int true "预算ID"
// @Success 200 {object} Response{data=[]models.BudgetEntry} "获取成功"
// @Router /api/v1/budget/{id}/children [get]
func (h *BudgetHandler) Children(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	list, err := h.budgets.GetChildren(c.Request.Context(), id)
	if err != nil {
		Fail(c, err, "获取下级预算失败")
		return
	}
	Success(c, list)
}

// Create 创建预算明细
// @Summary 创建预算明细
// @Tags 预算
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body models.BudgetEntry true "预算明细"
// @Success 201 {object} Response{data=models.BudgetEntry} "创建成功"
// @Failure 409 {object} Response "科目与财年重复"
// @Router /api/v1/budget [post]
func (h *BudgetHandler) Create(c *gin.Context) {
	var e models.BudgetEntry
	if err := c.ShouldBindJSON(&e); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}
	e.ID = 0
	e.Department = nil
	if err := h.budgets.Add(c.Request.Context(), &e); err != nil {
		Fail(c, err, "创建预算失败")
		return
	}
	h.audit.Record(c.Request.Context(), currentUser(c), "BudgetEntry", e.ID, models.AuditCreate, nil, e)
	Created(c, e)
}

// Update 更新预算明细
// @Summary 更新预算明细
// @Tags 预算
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "预算ID"
// @Param request body models.BudgetEntry true "预算明细"
// @Success 200 {object} Response{data=models.BudgetEntry} "更新成功"
// @Router /api/v1/budget/{id} [put]
func (h *BudgetHandler) Update(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	before, err := h.budgets.GetByID(c.Request.Context(), id)
	if err != nil {
		Fail(c, err, "获取预算失败")
		return
	}
	e := *before
	if err := c.ShouldBindJSON(&e); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}
	e.ID = id
	e.Department = nil
	if err := h.budgets.Update(c.Request.Context(), &e); err != nil {
		Fail(c, err, "更新预算失败")
		return
	}
	h.audit.Record(c.Request.Context(), currentUser(c), "BudgetEntry", id, models.AuditUpdate, before, e)
	Success(c, e)
}

// Delete 删除预算明细
// @Summary 删除预算明细
// @Tags 预算
// @Produce json
// @Security BearerAuth
// @Param id path int true "预算ID"
// @Success 200 {object} Response "删除成功"
// @Failure 409 {object} Response "存在交易或下级明细"
// @Router /api/v1/budget/{id} [delete]
func (h *BudgetHandler) Delete(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	before, err := h.budgets.GetByID(c.Request.Context(), id)
	if err != nil {
		Fail(c, err, "获取预算失败")
		return
	}
	if err := h.budgets.Delete(c.Request.Context(), id); err != nil {
		Fail(c, err, "删除预算失败")
		return
	}
	h.audit.Record(c.Request.Context(), currentUser(c), "BudgetEntry", id, models.AuditDelete, before, nil)
	SuccessWithMessage(c, "删除成功", nil)
}
