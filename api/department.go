package api

import (
	"wileywidget/models"
	"wileywidget/repository"
	"wileywidget/service"

	"github.com/gin-gonic/gin"
)

// DepartmentHandler 部门处理器
type DepartmentHandler struct {
	departments *repository.DepartmentRepository
	audit       *service.AuditService
}

// NewDepartmentHandler 创建部门处理器
func NewDepartmentHandler(departments *repository.DepartmentRepository, audit *service.AuditService) *DepartmentHandler {
	return &DepartmentHandler{departments: departments, audit: audit}
}

// List 部门列表
// @Summary 部门列表
// @Tags 部门
// @Produce json
// @Security BearerAuth
// @Param enterprise query bool false "仅企业型部门"
// @Success 200 {object} Response{data=[]models.Department} "获取成功"
// @Router /api/v1/departments [get]
func (h *DepartmentHandler) List(c *gin.Context) {
	var (
		list []models.Department
		err  error
	)
	if c.Query("enterprise") == "true" {
		list, err = h.departments.GetEnterprise(c.Request.Context())
	} else {
		list, err = h.departments.GetAll(c.Request.Context())
	}
	if err != nil {
		Fail(c, err, "获取部门失败")
		return
	}
	Success(c, list)
}

// Get 部门详情
// @Summary 部门详情
// @Tags 部门
// @Produce json
// @Security BearerAuth
// @Param id path int true "部门ID"
// @Success 200 {object} Response{data=models.Department} "获取成功"
// @Router /api/v1/departments/{id} [get]
func (h *DepartmentHandler) Get(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	d, err := h.departments.GetByID(c.Request.Context(), id)
	if err != nil {
		Fail(c, err, "获取部门失败")
		return
	}
	Success(c, d)
}

// Create 创建部门
// @Summary 创建部门
// @Tags 部门
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body models.Department true "部门"
// @Success 201 {object} Response{data=models.Department} "创建成功"
// @Router /api/v1/departments [post]
func (h *DepartmentHandler) Create(c *gin.Context) {
	var d models.Department
	if err := c.ShouldBindJSON(&d); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}
	d.ID = 0
	d.Fund = nil
	if err := h.departments.Add(c.Request.Context(), &d); err != nil {
		Fail(c, err, "创建部门失败")
		return
	}
	h.audit.Record(c.Request.Context(), currentUser(c), "Department", d.ID, models.AuditCreate, nil, d)
	Created(c, d)
}

// Update 更新部门
// @Summary 更新部门
// @Tags 部门
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "部门ID"
// @Param request body models.Department true "部门"
// @Success 200 {object} Response{data=models.Department} "更新成功"
// @Router /api/v1/departments/{id} [put]
func (h *DepartmentHandler) Update(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	before, err := h.departments.GetByID(c.Request.Context(), id)
	if err != nil {
		Fail(c, err, "获取部门失败")
		return
	}
	d := *before
	if err := c.ShouldBindJSON(&d); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}
	d.ID = id
	d.Fund = nil
	if err := h.departments.Update(c.Request.Context(), &d); err != nil {
		Fail(c, err, "更新部门失败")
		return
	}
	h.audit.Record(c.Request.Context(), currentUser(c), "Department", id, models.AuditUpdate, before, d)
	Success(c, d)
}

// Delete 删除部门
// @Summary 删除部门
// @Tags 部门
// @Produce json
// @Security BearerAuth
// @Param id path int true "部门ID"
// @Success 200 {object} Response "删除成功"
// @Failure 409 {object} Response "存在下级部门或预算"
// @Router /api/v1/departments/{id} [delete]
func (h *DepartmentHandler) Delete(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	before, err := h.departments.GetByID(c.Request.Context(), id)
	if err != nil {
		Fail(c, err, "获取部门失败")
		return
	}
	if err := h.departments.Delete(c.Request.Context(), id); err != nil {
		Fail(c, err, "删除部门失败")
		return
	}
	h.audit.Record(c.Request.Context(), currentUser(c), "Department", id, models.AuditDelete, before, nil)
	SuccessWithMessage(c, "删除成功", nil)
}
