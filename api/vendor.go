package api

import (
	"wileywidget/models"
	"wileywidget/repository"
	"wileywidget/service"

	"github.com/gin-gonic/gin"
)

// VendorHandler 供应商处理器
type VendorHandler struct {
	vendors *repository.VendorRepository
	audit   *service.AuditService
}

// NewVendorHandler 创建供应商处理器
func NewVendorHandler(vendors *repository.VendorRepository, audit *service.AuditService) *VendorHandler {
	return &VendorHandler{vendors: vendors, audit: audit}
}

// List 供应商分页列表
// @Summary 供应商列表
// @Tags 供应商
// @Produce json
// @Security BearerAuth
// @Param page query int false "页码"
// @Param page_size query int false "每页数量"
// @Param search query string false "按名称搜索"
// @Success 200 {object} Response{data=repository.Page[models.Vendor]} "获取成功"
// @Router /api/v1/vendors [get]
func (h *VendorHandler) List(c *gin.Context) {
	q, ok := bindPage(c)
	if !ok {
		return
	}
	page, err := h.vendors.GetPaged(c.Request.Context(), q)
	if err != nil {
		Fail(c, err, "获取供应商失败")
		return
	}
	Success(c, page)
}

// Get 供应商详情
// @Summary 供应商详情
// @Tags 供应商
// @Produce json
// @Security BearerAuth
// @Param id path int true "供应商ID"
// @Success 200 {object} Response{data=models.Vendor} "获取成功"
// @Router /api/v1/vendors/{id} [get]
func (h *VendorHandler) Get(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	v, err := h.vendors.GetByID(c.Request.Context(), id)
	if err != nil {
		Fail(c, err, "获取供应商失败")
		return
	}
	Success(c, v)
}

// Create 创建供应商
// @Summary 创建供应商
// @Tags 供应商
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body models.Vendor true "供应商"
// @Success 201 {object} Response{data=models.Vendor} "创建成功"
// @Router /api/v1/vendors [post]
func (h *VendorHandler) Create(c *gin.Context) {
	var v models.Vendor
	if err := c.ShouldBindJSON(&v); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}
	v.ID = 0
	if err := h.vendors.Add(c.Request.Context(), &v); err != nil {
		Fail(c, err, "创建供应商失败")
		return
	}
	h.audit.Record(c.Request.Context(), currentUser(c), "Vendor", v.ID, models.AuditCreate, nil, v)
	Created(c, v)
}

// Update 更新供应商
// @Summary 更新供应商
// @Tags 供应商
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "供应商ID"
// @Param request body models.Vendor true "供应商"
// @Success 200 {object} Response{data=models.Vendor} "更新成功"
// @Router /api/v1/vendors/{id} [put]
func (h *VendorHandler) Update(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	before, err := h.vendors.GetByID(c.Request.Context(), id)
	if err != nil {
		Fail(c, err, "获取供应商失败")
		return
	}
	v := *before
	if err := c.ShouldBindJSON(&v); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}
	v.ID = id
	if err := h.vendors.Update(c.Request.Context(), &v); err != nil {
		Fail(c, err, "更新供应商失败")
		return
	}
	h.audit.Record(c.Request.Context(), currentUser(c), "Vendor", id, models.AuditUpdate, before, v)
	Success(c, v)
}

// Delete 删除供应商
// @Summary 删除供应商
// @Tags 供应商
// @Produce json
// @Security BearerAuth
// @Param id path int true "供应商ID"
// @Success 200 {object} Response "删除成功"
// @Failure 409 {object} Response "存在发票"
// @Router /api/v1/vendors/{id} [delete]
func (h *VendorHandler) Delete(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	before, err := h.vendors.GetByID(c.Request.Context(), id)
	if err != nil {
		Fail(c, err, "获取供应商失败")
		return
	}
	if err := h.vendors.Delete(c.Request.Context(), id); err != nil {
		Fail(c, err, "删除供应商失败")
		return
	}
	h.audit.Record(c.Request.Context(), currentUser(c), "Vendor", id, models.AuditDelete, before, nil)
	SuccessWithMessage(c, "删除成功", nil)
}
