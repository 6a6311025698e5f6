package api

import (
	"strconv"

	"wileywidget/models"
	"wileywidget/repository"
	"wileywidget/service"

	"github.com/gin-gonic/gin"
)

// AccountHandler 科目表处理器
type AccountHandler struct {
	accounts *repository.MunicipalAccountRepository
	audit    *service.AuditService
}

// NewAccountHandler 创建科目处理器
func NewAccountHandler(accounts *repository.MunicipalAccountRepository, audit *service.AuditService) *AccountHandler {
	return &AccountHandler{accounts: accounts, audit: audit}
}

// List 科目列表
// @Summary 科目列表
// @Description 传 fund_id 时返回该基金下全部科目，否则分页查询
// @Tags 科目
// @Produce json
// @Security BearerAuth
// @Param fund_id query int false "基金ID"
// @Param type query string false "科目类型" Enums(Asset, Liability, Equity, Revenue, Expense)
// @Param page query int false "页码"
// @Param page_size query int false "每页数量"
// @Param sort_by query string false "排序字段" Enums(account_number, name, type, balance)
// @Param sort_desc query bool false "倒序"
// @Param search query string false "按编号或名称搜索"
// @Success 200 {object} Response{data=repository.Page[models.MunicipalAccount]} "获取成功"
// @Router /api/v1/accounts [get]
func (h *AccountHandler) List(c *gin.Context) {
	if fundParam := c.Query("fund_id"); fundParam != "" {
		fundID, err := strconv.ParseUint(fundParam, 10, 64)
		if err != nil {
			BadRequest(c, "无效的基金ID")
			return
		}
		list, err := h.accounts.GetByFund(c.Request.Context(), uint(fundID))
		if err != nil {
			Fail(c, err, "获取科目失败")
			return
		}
		Success(c, list)
		return
	}

	accountType := models.AccountType(c.Query("type"))
	if accountType != "" && !accountType.IsValid() {
		BadRequest(c, "无效的科目类型")
		return
	}
	q, ok := bindPage(c)
	if !ok {
		return
	}
	page, err := h.accounts.GetPaged(c.Request.Context(), accountType, q)
	if err != nil {
		Fail(c, err, "获取科目失败")
		return
	}
	Success(c, page)
}

// Get 科目详情
// @Summary 科目详情
// @Tags 科目
// @Produce json
// @Security BearerAuth
// @Param id path int true "科目ID"
// @Success 200 {object} Response{data=models.MunicipalAccount} "获取成功"
// @Router /api/v1/accounts/{id} [get]
func (h *AccountHandler) Get(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	a, err := h.accounts.GetByID(c.Request.Context(), id)
	if err != nil {
		Fail(c, err, "获取科目失败")
		return
	}
	Success(c, a)
}

// Children 下级科目
// @Summary 下级科目
// @Tags 科目
// @Produce json
// @Security BearerAuth
// @Param id path int true "科目ID"
// @Success 200 {object} Response{data=[]models.MunicipalAccount} "获取成功"
// @Router /api/v1/accounts/{id}/children [get]
func (h *AccountHandler) Children(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	list, err := h.accounts.GetChildren(c.Request.Context(), id)
	if err != nil {
		Fail(c, err, "获取下级科目失败")
		return
	}
	Success(c, list)
}

// Create 创建科目
// @Summary 创建科目
// @Tags 科目
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body models.MunicipalAccount true "科目"
// @Success 201 {object} Response{data=models.MunicipalAccount} "创建成功"
// @Failure 400 {object} Response "编号格式错误"
// @Failure 409 {object} Response "编号重复"
// @Router /api/v1/accounts [post]
func (h *AccountHandler) Create(c *gin.Context) {
	var a models.MunicipalAccount
	if err := c.ShouldBindJSON(&a); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}
	a.ID = 0
	a.Fund = nil
	if err := h.accounts.Add(c.Request.Context(), &a); err != nil {
		Fail(c, err, "创建科目失败")
		return
	}
	h.audit.Record(c.Request.Context(), currentUser(c), "MunicipalAccount", a.ID, models.AuditCreate, nil, a)
	Created(c, a)
}

// Update 更新科目
// @Summary 更新科目
// @Tags 科目
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "科目ID"
// @Param request body models.MunicipalAccount true "科目"
// @Success 200 {object} Response{data=models.MunicipalAccount} "更新成功"
// @Router /api/v1/accounts/{id} [put]
func (h *AccountHandler) Update(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	before, err := h.accounts.GetByID(c.Request.Context(), id)
	if err != nil {
		Fail(c, err, "获取科目失败")
		return
	}
	a := *before
	if err := c.ShouldBindJSON(&a); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}
	a.ID = id
	a.Fund = nil
	if err := h.accounts.Update(c.Request.Context(), &a); err != nil {
		Fail(c, err, "更新科目失败")
		return
	}
	h.audit.Record(c.Request.Context(), currentUser(c), "MunicipalAccount", id, models.AuditUpdate, before, a)
	Success(c, a)
}

// Delete 删除科目
// @Summary 删除科目
// @Tags 科目
// @Produce json
// @Security BearerAuth
// @Param id path int true "科目ID"
// @Success 200 {object} Response "删除成功"
// @Failure 409 {object} Response "存在下级科目、预算或发票"
// @Router /api/v1/accounts/{id} [delete]
func (h *AccountHandler) Delete(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	before, err := h.accounts.GetByID(c.Request.Context(), id)
	if err != nil {
		Fail(c, err, "获取科目失败")
		return
	}
	if err := h.accounts.Delete(c.Request.Context(), id); err != nil {
		Fail(c, err, "删除科目失败")
		return
	}
	h.audit.Record(c.Request.Context(), currentUser(c), "MunicipalAccount", id, models.AuditDelete, before, nil)
	SuccessWithMessage(c, "删除成功", nil)
}
