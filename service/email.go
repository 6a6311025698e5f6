package service

import (
	"fmt"
	"html"
	"io"
	"time"

	"wileywidget/config"
	"wileywidget/models"

	"github.com/shopspring/decimal"
	"gopkg.in/gomail.v2"
)

// EmailService 邮件服务
type EmailService struct {
	cfg          *config.EmailConfig
	municipality string
	dial         func() (gomail.SendCloser, error)
}

// NewEmailService 创建邮件服务
func NewEmailService(cfg *config.EmailConfig, municipality string) *EmailService {
	s := &EmailService{cfg: cfg, municipality: municipality}
	s.dial = func() (gomail.SendCloser, error) {
		return gomail.NewDialer(s.cfg.Host, s.cfg.Port, s.cfg.Username, s.cfg.Password).Dial()
	}
	return s
}

// Enabled 是否启用
func (s *EmailService) Enabled() bool {
	return s != nil && s.cfg != nil && s.cfg.Enabled
}

// SendInvoiceReminder 发送欠费提醒
func (s *EmailService) SendInvoiceReminder(customer models.UtilityCustomer, balance decimal.Decimal, due time.Time) error {
	if !s.Enabled() {
		return ErrEmailDisabled
	}
	if customer.Email == "" {
		return fmt.Errorf("%w: 用户 %s 未登记邮箱", ErrInvalidArgument, customer.AccountNumber)
	}
	subject := fmt.Sprintf("【%s】公用事业账单提醒 - %s", s.municipality, customer.AccountNumber)
	body := s.generateReminderBody(customer, balance, due)
	return s.sendEmail(customer.Email, subject, body, nil)
}

// generateReminderBody 生成欠费提醒邮件内容
func (s *EmailService) generateReminderBody(customer models.UtilityCustomer, balance decimal.Decimal, due time.Time) string {
	return fmt.Sprintf(`
<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <style>
        body { font-family: Arial, sans-serif; background: #f5f5f5; margin: 0; padding: 20px; }
        .container { max-width: 600px; margin: 0 auto; background: #fff; border-radius: 12px; overflow: hidden; }
        .header { background: #1d4ed8; color: white; padding: 24px; text-align: center; }
        .content { padding: 32px 28px; color: #333; line-height: 1.8; }
        .amount { font-size: 28px; font-weight: bold; color: #b91c1c; }
        .footer { background: #f8f9fa; padding: 16px; text-align: center; color: #6c757d; font-size: 12px; }
    </style>
</head>
<body>
    <div class="container">
        <div class="header"><h2>%s</h2></div>
        <div class="content">
            <p>Dear %s,</p>
            <p>Account <strong>%s</strong> at %s has an outstanding balance of</p>
            <p class="amount">$%s</p>
            <p>Payment is due by <strong>%s</strong>.</p>
            <p>If you have already paid, please disregard this notice.</p>
        </div>
        <div class="footer"><p>This message was sent automatically. Please do not reply.</p></div>
    </div>
</body>
</html>
`, html.EscapeString(s.municipality),
		html.EscapeString(customer.DisplayName()),
		html.EscapeString(customer.AccountNumber),
		html.EscapeString(customer.ServiceAddress),
		balance.StringFixed(2),
		due.Format("January 2, 2006"))
}

// SendReport 发送带附件的报表
func (s *EmailService) SendReport(to, subject, filename string, data []byte) error {
	if !s.Enabled() {
		return ErrEmailDisabled
	}
	if to == "" || filename == "" {
		return fmt.Errorf("%w: 收件人和附件名不能为空", ErrInvalidArgument)
	}
	body := fmt.Sprintf(`<p>%s</p><p>附件：%s</p><p style="color:#666;">%s</p>`,
		html.EscapeString(subject), html.EscapeString(filename), html.EscapeString(s.municipality))
	return s.sendEmail(to, subject, body, &attachment{name: filename, data: data})
}

// SendTestEmail 发送测试邮件
func (s *EmailService) SendTestEmail(toEmail string) error {
	if !s.Enabled() {
		return ErrEmailDisabled
	}
	subject := fmt.Sprintf("【%s】邮件配置测试", s.municipality)
	body := `
<!DOCTYPE html>
<html>
<head><meta charset="UTF-8"></head>
<body style="font-family: Arial, sans-serif; padding: 20px;">
    <h2>✅ 邮件配置成功</h2>
    <p>如果您收到这封邮件，说明邮件服务配置正确。</p>
</body>
</html>
`
	return s.sendEmail(toEmail, subject, body, nil)
}

type attachment struct {
	name string
	data []byte
}

// sendEmail 发送邮件
func (s *EmailService) sendEmail(to, subject, body string, att *attachment) error {
	m := gomail.NewMessage()
	m.SetHeader("From", m.FormatAddress(s.cfg.Username, s.cfg.From))
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", body)
	if att != nil {
		data := att.data
		m.Attach(att.name, gomail.SetCopyFunc(func(w io.Writer) error {
			_, err := w.Write(data)
			return err
		}))
	}

	sc, err := s.dial()
	if err != nil {
		return fmt.Errorf("连接邮件服务器失败: %w", err)
	}
	defer sc.Close()

	if err := gomail.Send(sc, m); err != nil {
		return fmt.Errorf("发送邮件失败: %w", err)
	}
	return nil
}
