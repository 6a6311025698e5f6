package api

import (
	"time"

	"wileywidget/models"
	"wileywidget/repository"
	"wileywidget/service"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// CustomerHandler 公用事业用户处理器
type CustomerHandler struct {
	customers *repository.UtilityCustomerRepository
	email     *service.EmailService
	audit     *service.AuditService
	logger    *zap.Logger
}

// NewCustomerHandler 创建用户处理器
func NewCustomerHandler(customers *repository.UtilityCustomerRepository, email *service.EmailService, audit *service.AuditService, l *zap.Logger) *CustomerHandler {
	return &CustomerHandler{customers: customers, email: email, audit: audit, logger: l}
}

// RemindRequest 欠费提醒请求
type RemindRequest struct {
	DueDate string `json:"due_date" example:"2025-04-15"` // 缺省为 14 天后
}

// List 用户列表
// @Summary 公用事业用户列表
// @Description 传 balance_over 返回余额超过该值的用户，传 location 返回该服务区域的用户，否则分页查询
// @Tags 用户
// @Produce json
// @Security BearerAuth
// @Param balance_over query number false "余额下限"
// @Param location query string false "服务区域" Enums(InsideCityLimits, OutsideCityLimits)
// @Param status query string false "状态" Enums(Active, Inactive, Suspended, Closed)
// @Param customer_type query string false "类型"
// @Param page query int false "页码"
// @Param page_size query int false "每页数量"
// @Param sort_by query string false "排序字段" Enums(account_number, last_name, current_balance, created_at)
// @Param sort_desc query bool false "倒序"
// @Param search query string false "按姓名、户号、地址或公司搜索"
// @Success 200 {object} Response{data=repository.Page[models.UtilityCustomer]} "获取成功"
// @Router /api/v1/customers [get]
func (h *CustomerHandler) List(c *gin.Context) {
	ctx := c.Request.Context()
	if v := c.Query("balance_over"); v != "" {
		min, err := decimal.NewFromString(v)
		if err != nil {
			BadRequest(c, "无效的余额参数")
			return
		}
		list, err := h.customers.GetWithBalanceOver(ctx, min)
		if err != nil {
			Fail(c, err, "获取用户失败")
			return
		}
		Success(c, list)
		return
	}
	if v := c.Query("location"); v != "" {
		list, err := h.customers.GetByServiceLocation(ctx, models.ServiceLocation(v))
		if err != nil {
			Fail(c, err, "获取用户失败")
			return
		}
		Success(c, list)
		return
	}

	var f repository.CustomerFilter
	if err := c.ShouldBindQuery(&f); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}
	q, ok := bindPage(c)
	if !ok {
		return
	}
	page, err := h.customers.GetPaged(ctx, f, q)
	if err != nil {
		Fail(c, err, "获取用户失败")
		return
	}
	Success(c, page)
}

// ActiveCount 活跃用户数
// @Summary 活跃用户数
// @Tags 用户
// @Produce json
// @Security BearerAuth
// @Success 200 {object} Response{data=map[string]int64} "获取成功"
// @Router /api/v1/customers/active-count [get]
func (h *CustomerHandler) ActiveCount(c *gin.Context) {
	n, err := h.customers.GetActiveCount(c.Request.Context())
	if err != nil {
		Fail(c, err, "统计用户失败")
		return
	}
	Success(c, gin.H{"active": n})
}

// Get 用户详情
// @Summary 用户详情
// @Tags 用户
// @Produce json
// @Security BearerAuth
// @Param id path int true "用户ID"
// @Success 200 {object} Response{data=models.UtilityCustomer} "获取成功"
// @Router /api/v1/customers/{id} [get]
func (h *CustomerHandler) Get(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	cu, err := h.customers.GetByID(c.Request.Context(), id)
	if err != nil {
		Fail(c, err, "获取用户失败")
		return
	}
	Success(c, cu)
}

// Create 新增用户
// @Summary 新增公用事业用户
// @Tags 用户
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body models.UtilityCustomer true "用户"
// @Success 201 {object} Response{data=models.UtilityCustomer} "创建成功"
// @Failure 409 {object} Response "户号重复"
// @Router /api/v1/customers [post]
func (h *CustomerHandler) Create(c *gin.Context) {
	var cu models.UtilityCustomer
	if err := c.ShouldBindJSON(&cu); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}
	cu.ID = 0
	if err := h.customers.Add(c.Request.Context(), &cu); err != nil {
		Fail(c, err, "创建用户失败")
		return
	}
	h.audit.Record(c.Request.Context(), currentUser(c), "UtilityCustomer", cu.ID, models.AuditCreate, nil, cu)
	Created(c, cu)
}

// Update 更新用户
// @Summary 更新公用事业用户
// @Tags 用户
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "用户ID"
// @Param request body models.UtilityCustomer true "用户"
// @Success 200 {object} Response{data=models.UtilityCustomer} "更新成功"
// @Router /api/v1/customers/{id} [put]
func (h *CustomerHandler) Update(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	before, err := h.customers.GetByID(c.Request.Context(), id)
	if err != nil {
		Fail(c, err, "获取用户失败")
		return
	}
	cu := *before
	if err := c.ShouldBindJSON(&cu); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}
	cu.ID = id
	if err := h.customers.Update(c.Request.Context(), &cu); err != nil {
		Fail(c, err, "更新用户失败")
		return
	}
	h.audit.Record(c.Request.Context(), currentUser(c), "UtilityCustomer", id, models.AuditUpdate, before, cu)
	Success(c, cu)
}

// Delete 删除用户
// @Summary 删除公用事业用户
// @Tags 用户
// @Produce json
// @Security BearerAuth
// @Param id path int true "用户ID"
// @Success 200 {object} Response "删除成功"
// @Router /api/v1/customers/{id} [delete]
func (h *CustomerHandler) Delete(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	before, err := h.customers.GetByID(c.Request.Context(), id)
	if err != nil {
		Fail(c, err, "获取用户失败")
		return
	}
	if err := h.customers.Delete(c.Request.Context(), id); err != nil {
		Fail(c, err, "删除用户失败")
		return
	}
	h.audit.Record(c.Request.Context(), currentUser(c), "UtilityCustomer", id, models.AuditDelete, before, nil)
	SuccessWithMessage(c, "删除成功", nil)
}

// Remind 发送欠费提醒邮件
// @Summary 发送欠费提醒
// @Tags 用户
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "用户ID"
// @Param request body RemindRequest false "到期日"
// @Success 200 {object} Response "发送成功"
// @Failure 400 {object} Response "无欠费或未登记邮箱"
// @Failure 503 {object} Response "邮件服务未启用"
// @Router /api/v1/customers/{id}/remind [post]
func (h *CustomerHandler) Remind(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req RemindRequest
	_ = c.ShouldBindJSON(&req)
	due := time.Now().AddDate(0, 0, 14)
	if req.DueDate != "" {
		t, err := time.ParseInLocation(dateLayout, req.DueDate, time.Local)
		if err != nil {
			BadRequest(c, "到期日格式错误，应为: 2006-01-02")
			return
		}
		due = t
	}

	cu, err := h.customers.GetByID(c.Request.Context(), id)
	if err != nil {
		Fail(c, err, "获取用户失败")
		return
	}
	if !cu.CurrentBalance.IsPositive() {
		BadRequest(c, "该用户没有欠费")
		return
	}
	if err := h.email.SendInvoiceReminder(*cu, cu.CurrentBalance, due); err != nil {
		h.logger.Warn("发送欠费提醒失败", zap.String("account", cu.AccountNumber), zap.Error(err))
		Fail(c, err, "发送提醒失败")
		return
	}
	SuccessWithMessage(c, "发送成功", nil)
}
