package api

import (
	"wileywidget/models"
	"wileywidget/repository"
	"wileywidget/service"

	"github.com/gin-gonic/gin"
)

// PeriodHandler 预算期间处理器
type PeriodHandler struct {
	periods *repository.BudgetPeriodRepository
	audit   *service.AuditService
}

// NewPeriodHandler 创建预算期间处理器
func NewPeriodHandler(periods *repository.BudgetPeriodRepository, audit *service.AuditService) *PeriodHandler {
	return &PeriodHandler{periods: periods, audit: audit}
}

// AdvanceStatusRequest 推进状态请求
type AdvanceStatusRequest struct {
	Status models.BudgetStatus `json:"status" binding:"required" example:"Proposed"`
}

// List 预算期间列表
// @Summary 预算期间列表
// @Tags 预算期间
// @Produce json
// @Security BearerAuth
// @Success 200 {object} Response{data=[]models.BudgetPeriod} "获取成功"
// @Router /api/v1/budget-periods [get]
func (h *PeriodHandler) List(c *gin.Context) {
	list, err := h.periods.GetAll(c.Request.Context())
	if err != nil {
		Fail(c, err, "获取预算期间失败")
		return
	}
	Success(c, list)
}

// Active 当前激活的预算期间
// @Summary 当前预算期间
// @Tags 预算期间
// @Produce json
// @Security BearerAuth
// @Success 200 {object} Response{data=models.BudgetPeriod} "获取成功"
// @Failure 404 {object} Response "没有激活的期间"
// @Router /api/v1/budget-periods/active [get]
func (h *PeriodHandler) Active(c *gin.Context) {
	p, err := h.periods.GetActive(c.Request.Context())
	if err != nil {
		Fail(c, err, "获取预算期间失败")
		return
	}
	Success(c, p)
}

// Get 预算期间详情
// @Summary 预算期间详情
// @Tags 预算期间
// @Produce json
// @Security BearerAuth
// @Param id path int true "期间ID"
// @Success 200 {object} Response{data=models.BudgetPeriod} "获取成功"
// @Router /api/v1/budget-periods/{id} [get]
func (h *PeriodHandler) Get(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	p, err := h.periods.GetByID(c.Request.Context(), id)
	if err != nil {
		Fail(c, err, "获取预算期间失败")
		return
	}
	Success(c, p)
}

// Create 创建预算期间
// @Summary 创建预算期间
// @Tags 预算期间
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body models.BudgetPeriod true "预算期间"
// @Success 201 {object} Response{data=models.BudgetPeriod} "创建成功"
// @Router /api/v1/budget-periods [post]
func (h *PeriodHandler) Create(c *gin.Context) {
	var p models.BudgetPeriod
	if err := c.ShouldBindJSON(&p); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}
	p.ID = 0
	if err := h.periods.Add(c.Request.Context(), &p); err != nil {
		Fail(c, err, "创建预算期间失败")
		return
	}
	h.audit.Record(c.Request.Context(), currentUser(c), "BudgetPeriod", p.ID, models.AuditCreate, nil, p)
	Created(c, p)
}

// Update 更新预算期间（不修改状态和激活标记）
// @Summary 更新预算期间
// @Tags 预算期间
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "期间ID"
// @Param request body models.BudgetPeriod true "预算期间"
// @Success 200 {object} Response{data=models.BudgetPeriod} "更新成功"
// @Router /api/v1/budget-periods/{id} [put]
func (h *PeriodHandler) Update(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	before, err := h.periods.GetByID(c.Request.Context(), id)
	if err != nil {
		Fail(c, err, "获取预算期间失败")
		return
	}
	p := *before
	if err := c.ShouldBindJSON(&p); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}
	p.ID = id
	if err := h.periods.Update(c.Request.Context(), &p); err != nil {
		Fail(c, err, "更新预算期间失败")
		return
	}
	h.audit.Record(c.Request.Context(), currentUser(c), "BudgetPeriod", id, models.AuditUpdate, before, p)
	Success(c, p)
}

// Delete 删除预算期间
// @Summary 删除预算期间
// @Tags 预算期间
// @Produce json
// @Security BearerAuth
// @Param id path int true "期间ID"
// @Success 200 {object} Response "删除成功"
// @Failure 409 {object} Response "期间已激活"
// @Router /api/v1/budget-periods/{id} [delete]
func (h *PeriodHandler) Delete(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	before, err := h.periods.GetByID(c.Request.Context(), id)
	if err != nil {
		Fail(c, err, "获取预算期间失败")
		return
	}
	if err := h.periods.Delete(c.Request.Context(), id); err != nil {
		Fail(c, err, "删除预算期间失败")
		return
	}
	h.audit.Record(c.Request.Context(), currentUser(c), "BudgetPeriod", id, models.AuditDelete, before, nil)
	SuccessWithMessage(c, "删除成功", nil)
}

// Activate 激活预算期间
// @Summary 激活预算期间
// @Description 同一时间只有一个期间处于激活状态
// @Tags 预算期间
// @Produce json
// @Security BearerAuth
// @Param id path int true "期间ID"
// @Success 200 {object} Response{data=models.BudgetPeriod} "激活成功"
// @Router /api/v1/budget-periods/{id}/activate [post]
func (h *PeriodHandler) Activate(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	if err := h.periods.Activate(c.Request.Context(), id); err != nil {
		Fail(c, err, "激活预算期间失败")
		return
	}
	p, err := h.periods.GetByID(c.Request.Context(), id)
	if err != nil {
		Fail(c, err, "获取预算期间失败")
		return
	}
	h.audit.Record(c.Request.Context(), currentUser(c), "BudgetPeriod", id, models.AuditUpdate, nil, p)
	SuccessWithMessage(c, "激活成功", p)
}

// AdvanceStatus 推进预算期间状态
// @Summary 推进预算期间状态
// @Description 状态只能前进：Draft → Proposed → Adopted → Executed → Closed
// @Tags 预算期间
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "期间ID"
// @Param request body AdvanceStatusRequest true "目标状态"
// @Success 200 {object} Response{data=models.BudgetPeriod} "修改成功"
// @Failure 400 {object} Response "非法状态流转"
// @Router /api/v1/budget-periods/{id}/status [put]
func (h *PeriodHandler) AdvanceStatus(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req AdvanceStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}
	before, err := h.periods.GetByID(c.Request.Context(), id)
	if err != nil {
		Fail(c, err, "获取预算期间失败")
		return
	}
	p, err := h.periods.AdvanceStatus(c.Request.Context(), id, req.Status)
	if err != nil {
		Fail(c, err, "修改预算期间状态失败")
		return
	}
	h.audit.Record(c.Request.Context(), currentUser(c), "BudgetPeriod", id, models.AuditUpdate, before, p)
	Success(c, p)
}
