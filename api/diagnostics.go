package api

import (
	"net/http"

	"wileywidget/service"

	"github.com/gin-gonic/gin"
)

// DiagnosticsHandler 运行诊断（管理员）
type DiagnosticsHandler struct {
	diag  *service.Diagnostics
	email *service.EmailService
}

// NewDiagnosticsHandler 创建诊断处理器
func NewDiagnosticsHandler(diag *service.Diagnostics, email *service.EmailService) *DiagnosticsHandler {
	return &DiagnosticsHandler{diag: diag, email: email}
}

// TestEmailRequest 测试邮件请求
type TestEmailRequest struct {
	To string `json:"to" binding:"required,email" example:"admin@example.gov"`
}

// Get 诊断报告
// @Summary 运行诊断报告
// @Description 数据库连接、连接池、外部服务配置和各表记录数；format=text 返回纯文本
// @Tags 诊断
// @Produce json,plain
// @Security BearerAuth
// @Param format query string false "输出格式" Enums(json, text)
// @Success 200 {object} Response{data=service.Report} "获取成功"
// @Failure 403 {object} Response "权限不足"
// @Router /api/v1/diagnostics [get]
func (h *DiagnosticsHandler) Get(c *gin.Context) {
	report := h.diag.Collect(c.Request.Context())
	if c.Query("format") == "text" {
		c.String(http.StatusOK, report.String())
		return
	}
	Success(c, report)
}

// TestEmail 发送测试邮件
// @Summary 发送测试邮件
// @Description 校验 SMTP 配置
// @Tags 诊断
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body TestEmailRequest true "收件人"
// @Success 200 {object} Response "发送成功"
// @Failure 503 {object} Response "邮件服务未启用"
// @Router /api/v1/diagnostics/email [post]
func (h *DiagnosticsHandler) TestEmail(c *gin.Context) {
	var req TestEmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}
	if err := h.email.SendTestEmail(req.To); err != nil {
		Fail(c, err, "发送测试邮件失败")
		return
	}
	SuccessWithMessage(c, "测试邮件已发送", nil)
}
