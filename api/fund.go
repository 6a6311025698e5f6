package api

import (
	"wileywidget/models"
	"wileywidget/repository"
	"wileywidget/service"

	"github.com/gin-gonic/gin"
)

// FundHandler 基金处理器
type FundHandler struct {
	funds *repository.FundRepository
	audit *service.AuditService
}

// NewFundHandler 创建基金处理器
func NewFundHandler(funds *repository.FundRepository, audit *service.AuditService) *FundHandler {
	return &FundHandler{funds: funds, audit: audit}
}

// List 基金列表
// @Summary 基金列表
// @Tags 基金
// @Produce json
// @Security BearerAuth
// @Success 200 {object} Response{data=[]models.Fund} "获取成功"
// @Router /api/v1/funds [get]
func (h *FundHandler) List(c *gin.Context) {
	funds, err := h.funds.GetAll(c.Request.Context())
	if err != nil {
		Fail(c, err, "获取基金失败")
		return
	}
	Success(c, funds)
}

// Get 基金详情
// @Summary 基金详情
// @Tags 基金
// @Produce json
// @Security BearerAuth
// @Param id path int true "基金ID"
// @Success 200 {object} Response{data=models.Fund} "获取成功"
// @Failure 404 {object} Response "不存在"
// @Router /api/v1/funds/{id} [get]
func (h *FundHandler) Get(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	f, err := h.funds.GetByID(c.Request.Context(), id)
	if err != nil {
		Fail(c, err, "获取基金失败")
		return
	}
	Success(c, f)
}

// Create 创建基金
// @Summary 创建基金
// @Tags 基金
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body models.Fund true "基金"
// @Success 201 {object} Response{data=models.Fund} "创建成功"
// @Failure 409 {object} Response "编号重复"
// @Router /api/v1/funds [post]
func (h *FundHandler) Create(c *gin.Context) {
	var f models.Fund
	if err := c.ShouldBindJSON(&f); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}
	f.ID = 0
	if err := h.funds.Add(c.Request.Context(), &f); err != nil {
		Fail(c, err, "创建基金失败")
		return
	}
	h.audit.Record(c.Request.Context(), currentUser(c), "Fund", f.ID, models.AuditCreate, nil, f)
	Created(c, f)
}

// Update 更新基金
// @Summary 更新基金
// @Tags 基金
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "基金ID"
// @Param request body models.Fund true "基金"
// @Success 200 {object} Response{data=models.Fund} "更新成功"
// @Router /api/v1/funds/{id} [put]
func (h *FundHandler) Update(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	before, err := h.funds.GetByID(c.Request.Context(), id)
	if err != nil {
		Fail(c, err, "获取基金失败")
		return
	}
	f := *before
	if err := c.ShouldBindJSON(&f); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}
	f.ID = id
	if err := h.funds.Update(c.Request.Context(), &f); err != nil {
		Fail(c, err, "更新基金失败")
		return
	}
	h.audit.Record(c.Request.Context(), currentUser(c), "Fund", id, models.AuditUpdate, before, f)
	Success(c, f)
}

// Delete 删除基金
// @Summary 删除基金
// @Tags 基金
// @Produce json
// @Security BearerAuth
// @Param id path int true "基金ID"
// @Success 200 {object} Response "删除成功"
// @Failure 409 {object} Response "存在关联科目"
// @Router /api/v1/funds/{id} [delete]
func (h *FundHandler) Delete(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	before, err := h.funds.GetByID(c.Request.Context(), id)
	if err != nil {
		Fail(c, err, "获取基金失败")
		return
	}
	if err := h.funds.Delete(c.Request.Context(), id); err != nil {
		Fail(c, err, "删除基金失败")
		return
	}
	h.audit.Record(c.Request.Context(), currentUser(c), "Fund", id, models.AuditDelete, before, nil)
	SuccessWithMessage(c, "删除成功", nil)
}
