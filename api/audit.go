package api

import (
	"wileywidget/repository"

	"github.com/gin-gonic/gin"
)

// AuditHandler 审计日志处理器
type AuditHandler struct {
	audits *repository.AuditRepository
}

// NewAuditHandler 创建审计处理器
func NewAuditHandler(audits *repository.AuditRepository) *AuditHandler {
	return &AuditHandler{audits: audits}
}

// List 审计日志分页列表
// @Summary 审计日志
// @Tags 审计
// @Produce json
// @Security BearerAuth
// @Param entity_type query string false "实体类型"
// @Param from query string false "开始日期 (2025-01-01)"
// @Param to query string false "结束日期 (2025-12-31)"
// @Param page query int false "页码"
// @Param page_size query int false "每页数量"
// @Success 200 {object} Response{data=repository.Page[models.AuditEntry]} "获取成功"
// @Router /api/v1/audit [get]
func (h *AuditHandler) List(c *gin.Context) {
	var f repository.AuditFilter
	if err := c.ShouldBindQuery(&f); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}
	q, ok := bindPage(c)
	if !ok {
		return
	}
	page, err := h.audits.GetPaged(c.Request.Context(), f, q)
	if err != nil {
		Fail(c, err, "获取审计日志失败")
		return
	}
	Success(c, page)
}

// ByEntity 某条记录的审计历史
// @Summary 记录审计历史
// @Tags 审计
// @Produce json
// @Security BearerAuth
// @Param type path string true "实体类型"
// @Param id path int true "实体ID"
// @Success 200 {object} Response{data=[]models.AuditEntry} "获取成功"
// @Router /api/v1/audit/{type}/{id} [get]
func (h *AuditHandler) ByEntity(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	list, err := h.audits.GetByEntity(c.Request.Context(), c.Param("type"), id)
	if err != nil {
		Fail(c, err, "获取审计日志失败")
		return
	}
	Success(c, list)
}
