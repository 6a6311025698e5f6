package api

import (
	"time"

	"wileywidget/models"
	"wileywidget/repository"
	"wileywidget/service"

	"github.com/gin-gonic/gin"
)

// InvoiceHandler 发票处理器
type InvoiceHandler struct {
	invoices *repository.InvoiceRepository
	audit    *service.AuditService
}

// NewInvoiceHandler 创建发票处理器
func NewInvoiceHandler(invoices *repository.InvoiceRepository, audit *service.AuditService) *InvoiceHandler {
	return &InvoiceHandler{invoices: invoices, audit: audit}
}

// InvoiceStatusRequest 修改发票状态请求
type InvoiceStatusRequest struct {
	Status models.InvoiceStatus `json:"status" binding:"required" example:"Approved"`
}

// MarkPaidRequest 付款请求
type MarkPaidRequest struct {
	PaidDate string `json:"paid_date" example:"2025-03-31"` // 缺省为今天
}

// List 发票分页列表
// @Summary 发票列表
// @Tags 发票
// @Produce json
// @Security BearerAuth
// @Param status query string false "状态" Enums(Pending, Approved, Paid, Void)
// @Param page query int false "页码"
// @Param page_size query int false "每页数量"
// @Param sort_by query string false "排序字段" Enums(invoice_number, invoice_date, due_date, amount)
// @Param sort_desc query bool false "倒序"
// @Param search query string false "按发票号或说明搜索"
// @Success 200 {object} Response{data=repository.Page[models.Invoice]} "获取成功"
// @Router /api/v1/invoices [get]
func (h *InvoiceHandler) List(c *gin.Context) {
	status := models.InvoiceStatus(c.Query("status"))
	if status != "" && !status.IsValid() {
		BadRequest(c, "无效的发票状态")
		return
	}
	q, ok := bindPage(c)
	if !ok {
		return
	}
	page, err := h.invoices.GetPaged(c.Request.Context(), status, q)
	if err != nil {
		Fail(c, err, "获取发票失败")
		return
	}
	Success(c, page)
}

// Overdue 逾期发票
// @Summary 逾期发票
// @Description 到期日早于 as_of 且未付款、未作废的发票
// @Tags 发票
// @Produce json
// @Security BearerAuth
// @Param as_of query string false "基准日期 (2025-03-31)，缺省为今天"
// @Success 200 {object} Response{data=[]models.Invoice} "获取成功"
// @Router /api/v1/invoices/overdue [get]
func (h *InvoiceHandler) Overdue(c *gin.Context) {
	asOf := time.Now()
	if v := c.Query("as_of"); v != "" {
		t, err := time.ParseInLocation(dateLayout, v, time.Local)
		if err != nil {
			BadRequest(c, "日期格式错误，应为: 2006-01-02")
			return
		}
		asOf = t
	}
	list, err := h.invoices.GetOverdue(c.Request.Context(), asOf)
	if err != nil {
		Fail(c, err, "获取逾期发票失败")
		return
	}
	Success(c, list)
}

// Get 发票详情
// @Summary 发票详情
// @Tags 发票
// @Produce json
// @Security BearerAuth
// @Param id path int true "发票ID"
// @Success 200 {object} Response{data=models.Invoice} "获取成功"
// @Router /api/v1/invoices/{id} [get]
func (h *InvoiceHandler) Get(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	inv, err := h.invoices.GetByID(c.Request.Context(), id)
	if err != nil {
		Fail(c, err, "获取发票失败")
		return
	}
	Success(c, inv)
}

// Create 登记发票
// @Summary 登记发票
// @Tags 发票
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body models.Invoice true "发票"
// @Success 201 {object} Response{data=models.Invoice} "创建成功"
// @Router /api/v1/invoices [post]
func (h *InvoiceHandler) Create(c *gin.Context) {
	var inv models.Invoice
	if err := c.ShouldBindJSON(&inv); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}
	inv.ID = 0
	inv.Vendor = nil
	if err := h.invoices.Add(c.Request.Context(), &inv); err != nil {
		Fail(c, err, "登记发票失败")
		return
	}
	h.audit.Record(c.Request.Context(), currentUser(c), "Invoice", inv.ID, models.AuditCreate, nil, inv)
	Created(c, inv)
}

// Update 更新发票
// @Summary 更新发票
// @Description 已付款或已作废的发票不可修改
// @Tags 发票
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "发票ID"
// @Param request body models.Invoice true "发票"
// @Success 200 {object} Response{data=models.Invoice} "更新成功"
// @Router /api/v1/invoices/{id} [put]
func (h *InvoiceHandler) Update(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	before, err := h.invoices.GetByID(c.Request.Context(), id)
	if err != nil {
		Fail(c, err, "获取发票失败")
		return
	}
	inv := *before
	if err := c.ShouldBindJSON(&inv); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}
	inv.ID = id
	inv.Vendor = nil
	if err := h.invoices.Update(c.Request.Context(), &inv); err != nil {
		Fail(c, err, "更新发票失败")
		return
	}
	h.audit.Record(c.Request.Context(), currentUser(c), "Invoice", id, models.AuditUpdate, before, inv)
	Success(c, inv)
}

// UpdateStatus 修改发票状态
// @Summary 修改发票状态
// @Description Pending → Approved/Void，Approved → Paid/Void
// @Tags 发票
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "发票ID"
// @Param request body InvoiceStatusRequest true "状态"
// @Success 200 {object} Response{data=models.Invoice} "修改成功"
// @Failure 400 {object} Response "非法状态流转"
// @Router /api/v1/invoices/{id}/status [put]
func (h *InvoiceHandler) UpdateStatus(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req InvoiceStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}
	if !req.Status.IsValid() {
		BadRequest(c, "无效的发票状态")
		return
	}
	inv, err := h.invoices.UpdateStatus(c.Request.Context(), id, req.Status)
	if err != nil {
		Fail(c, err, "修改发票状态失败")
		return
	}
	h.audit.Record(c.Request.Context(), currentUser(c), "Invoice", id, models.AuditUpdate, nil, inv)
	Success(c, inv)
}

// Pay 标记发票已付款
// @Summary 发票付款
// @Tags 发票
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "发票ID"
// @Param request body MarkPaidRequest false "付款日期"
// @Success 200 {object} Response{data=models.Invoice} "付款成功"
// @Failure 400 {object} Response "发票未审批"
// @Router /api/v1/invoices/{id}/pay [post]
func (h *InvoiceHandler) Pay(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req MarkPaidRequest
	_ = c.ShouldBindJSON(&req)
	paid := time.Now()
	if req.PaidDate != "" {
		t, err := time.ParseInLocation(dateLayout, req.PaidDate, time.Local)
		if err != nil {
			BadRequest(c, "付款日期格式错误，应为: 2006-01-02")
			return
		}
		paid = t
	}
	inv, err := h.invoices.MarkPaid(c.Request.Context(), id, paid)
	if err != nil {
		Fail(c, err, "发票付款失败")
		return
	}
	h.audit.Record(c.Request.Context(), currentUser(c), "Invoice", id, models.AuditUpdate, nil, inv)
	SuccessWithMessage(c, "付款成功", inv)
}

// Delete 删除发票（仅 Pending）
// @Summary 删除发票
// @Tags 发票
// @Produce json
// @Security BearerAuth
// @Param id path int true "发票ID"
// @Success 200 {object} Response "删除成功"
// @Failure 400 {object} Response "非 Pending 状态"
// @Router /api/v1/invoices/{id} [delete]
func (h *InvoiceHandler) Delete(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	before, err := h.invoices.GetByID(c.Request.Context(), id)
	if err != nil {
		Fail(c, err, "获取发票失败")
		return
	}
	if err := h.invoices.Delete(c.Request.Context(), id); err != nil {
		Fail(c, err, "删除发票失败")
		return
	}
	h.audit.Record(c.Request.Context(), currentUser(c), "Invoice", id, models.AuditDelete, before, nil)
	SuccessWithMessage(c, "删除成功", nil)
}
