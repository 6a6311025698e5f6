package api

import (
	"errors"
	"net/http"

	"wileywidget/config"
	"wileywidget/middleware"
	"wileywidget/models"
	"wileywidget/repository"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
)

// AuthHandler 认证与用户管理处理器
type AuthHandler struct {
	cfg   *config.Config
	users *repository.UserRepository
}

// NewAuthHandler 创建认证处理器
func NewAuthHandler(cfg *config.Config, users *repository.UserRepository) *AuthHandler {
	return &AuthHandler{cfg: cfg, users: users}
}

// RegisterRequest 创建用户请求
type RegisterRequest struct {
	Username string `json:"username" binding:"required,min=3,max=50" example:"clerk"`
	Password string `json:"password" binding:"required,min=6,max=50" example:"password123"`
	Email    string `json:"email" binding:"omitempty,email" example:"clerk@wiley.gov"`
	Role     string `json:"role" binding:"omitempty,oneof=admin finance viewer" example:"finance"`
}

// LoginRequest 登录请求
type LoginRequest struct {
	Username string `json:"username" binding:"required" example:"admin"`
	Password string `json:"password" binding:"required" example:"password123"`
}

// LoginResponse 登录响应
type LoginResponse struct {
	Token    string      `json:"token"`
	UserInfo models.User `json:"user_info"`
}

// UpdateUserStatusRequest 修改用户状态请求
type UpdateUserStatusRequest struct {
	Status string `json:"status" binding:"required,oneof=active locked" example:"locked"`
}

// Register 创建用户（管理员）
// @Summary 创建用户
// @Description 管理员创建用户并指定角色，默认 viewer
// @Tags 认证
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body RegisterRequest true "用户信息"
// @Success 201 {object} Response{data=models.User} "创建成功"
// @Failure 400 {object} Response "请求参数错误"
// @Failure 409 {object} Response "用户名已存在"
// @Router /api/v1/auth/register [post]
func (h *AuthHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		InternalError(c, "密码加密失败")
		return
	}

	user := models.User{
		Username: req.Username,
		Password: string(hashed),
		Email:    req.Email,
		Role:     req.Role,
		Status:   models.UserStatusActive,
	}
	if err := h.users.Create(c.Request.Context(), &user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			Conflict(c, "用户名已存在")
			return
		}
		Fail(c, err, "创建用户失败")
		return
	}
	Created(c, user)
}

// Login 用户登录
// @Summary 用户登录
// @Description 用户登录获取 JWT token
// @Tags 认证
// @Accept json
// @Produce json
// @Param request body LoginRequest true "登录信息"
// @Success 200 {object} Response{data=LoginResponse} "登录成功"
// @Failure 400 {object} Response "请求参数错误"
// @Failure 401 {object} Response "用户名或密码错误"
// @Failure 403 {object} Response "账号已锁定"
// @Router /api/v1/auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}

	user, err := h.users.GetByUsername(c.Request.Context(), req.Username)
	if err != nil {
		Unauthorized(c, "用户名或密码错误")
		return
	}

	// 验证密码
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		Unauthorized(c, "用户名或密码错误")
		return
	}

	// 仅正常用户可登录
	if user.Status != models.UserStatusActive {
		Error(c, http.StatusForbidden, "账号已锁定，请联系管理员解锁")
		return
	}

	token, err := middleware.GenerateToken(user.ID, user.Username, user.Role, h.cfg.JWT.ExpireTime)
	if err != nil {
		InternalError(c, "生成 token 失败")
		return
	}

	Success(c, LoginResponse{Token: token, UserInfo: *user})
}

// GetProfile 获取当前用户信息
// @Summary 获取当前用户信息
// @Tags 认证
// @Produce json
// @Security BearerAuth
// @Success 200 {object} Response{data=models.User} "获取成功"
// @Failure 401 {object} Response "未授权"
// @Router /api/v1/auth/profile [get]
func (h *AuthHandler) GetProfile(c *gin.Context) {
	user, err := h.users.GetByID(c.Request.Context(), middleware.GetCurrentUserID(c))
	if err != nil {
		NotFound(c, "用户不存在")
		return
	}
	Success(c, user)
}

// ListUsers 用户列表（管理员）
// @Summary 用户列表
// @Tags 用户
// @Produce json
// @Security BearerAuth
// @Param page query int false "页码"
// @Param page_size query int false "每页数量"
// @Param search query string false "按用户名或邮箱搜索"
// @Success 200 {object} Response{data=repository.Page[models.User]} "获取成功"
// @Router /api/v1/users [get]
func (h *AuthHandler) ListUsers(c *gin.Context) {
	q, ok := bindPage(c)
	if !ok {
		return
	}
	page, err := h.users.List(c.Request.Context(), q)
	if err != nil {
		Fail(c, err, "获取用户列表失败")
		return
	}
	Success(c, page)
}

// UpdateUserStatus 锁定或解锁用户（管理员）
// @Summary 修改用户状态
// @Tags 用户
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "用户ID"
// @Param request body UpdateUserStatusRequest true "状态"
// @Success 200 {object} Response "修改成功"
// @Router /api/v1/users/{id}/status [put]
func (h *AuthHandler) UpdateUserStatus(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req UpdateUserStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}
	if id == middleware.GetCurrentUserID(c) && req.Status == models.UserStatusLocked {
		BadRequest(c, "不能锁定自己的账号")
		return
	}
	if err := h.users.UpdateStatus(c.Request.Context(), id, req.Status); err != nil {
		Fail(c, err, "修改用户状态失败")
		return
	}
	SuccessWithMessage(c, "修改成功", nil)
}
