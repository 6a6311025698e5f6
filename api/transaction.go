package api

import (
	"strconv"

	"wileywidget/models"
	"wileywidget/repository"
	"wileywidget/service"

	"github.com/gin-gonic/gin"
)

// TransactionHandler 交易处理器
type TransactionHandler struct {
	transactions *repository.TransactionRepository
	audit        *service.AuditService
}

// NewTransactionHandler 创建交易处理器
func NewTransactionHandler(transactions *repository.TransactionRepository, audit *service.AuditService) *TransactionHandler {
	return &TransactionHandler{transactions: transactions, audit: audit}
}

// List 交易列表
// @Summary 交易列表
// @Description 传 budget_entry_id 时按预算明细查询，否则按日期区间查询
// @Tags 交易
// @Produce json
// @Security BearerAuth
// @Param budget_entry_id query int false "预算明细ID"
// @Param from query string false "开始日期 (2025-01-01)"
// @Param to query string false "结束日期 (2025-12-31)"
// @Success 200 {object} Response{data=[]models.Transaction} "获取成功"
// @Router /api/v1/transactions [get]
func (h *TransactionHandler) List(c *gin.Context) {
	if v := c.Query("budget_entry_id"); v != "" {
		entryID, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			BadRequest(c, "无效的预算明细ID")
			return
		}
		list, err := h.transactions.GetByBudgetEntry(c.Request.Context(), uint(entryID))
		if err != nil {
			Fail(c, err, "获取交易失败")
			return
		}
		Success(c, list)
		return
	}

	from, to, ok := parseDateRange(c)
	if !ok {
		return
	}
	list, err := h.transactions.GetByDateRange(c.Request.Context(), from, to)
	if err != nil {
		Fail(c, err, "获取交易失败")
		return
	}
	Success(c, list)
}

// Get 交易详情
// @Summary 交易详情
// @Tags 交易
// @Produce json
// @Security BearerAuth
// @Param id path int true "交易ID"
// @Success 200 {object} Response{data=models.Transaction} "获取成功"
// @Router /api/v1/transactions/{id} [get]
func (h *TransactionHandler) Get(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	t, err := h.transactions.GetByID(c.Request.Context(), id)
	if err != nil {
		Fail(c, err, "获取交易失败")
		return
	}
	Success(c, t)
}

// Post 记账
// @Summary 记账
// @Description 写入交易并同步调整预算明细的实际发生额，借方增加，贷方减少
// @Tags 交易
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body models.Transaction true "交易"
// @Success 201 {object} Response{data=models.Transaction} "记账成功"
// @Failure 400 {object} Response "金额为 0 或类型错误"
// @Router /api/v1/transactions [post]
func (h *TransactionHandler) Post(c *gin.Context) {
	var t models.Transaction
	if err := c.ShouldBindJSON(&t); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}
	t.ID = 0
	if err := h.transactions.Post(c.Request.Context(), &t); err != nil {
		Fail(c, err, "记账失败")
		return
	}
	h.audit.Record(c.Request.Context(), currentUser(c), "Transaction", t.ID, models.AuditCreate, nil, t)
	Created(c, t)
}

// Delete 删除交易
// @Summary 删除交易
// @Description 删除交易并冲回预算明细的实际发生额
// @Tags 交易
// @Produce json
// @Security BearerAuth
// @Param id path int true "交易ID"
// @Success 200 {object} Response "删除成功"
// @Router /api/v1/transactions/{id} [delete]
func (h *TransactionHandler) Delete(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	before, err := h.transactions.GetByID(c.Request.Context(), id)
	if err != nil {
		Fail(c, err, "获取交易失败")
		return
	}
	if err := h.transactions.Delete(c.Request.Context(), id); err != nil {
		Fail(c, err, "删除交易失败")
		return
	}
	h.audit.Record(c.Request.Context(), currentUser(c), "Transaction", id, models.AuditDelete, before, nil)
	SuccessWithMessage(c, "删除成功", nil)
}
