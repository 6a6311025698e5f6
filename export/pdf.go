package export

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"strings"
	"time"

	"wileywidget/models"
	"wileywidget/repository"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ErrPDFDisabled 未启用 PDF 渲染
var ErrPDFDisabled = errors.New("PDF 导出未启用")

// PDFRenderer HTML 转 PDF
type PDFRenderer interface {
	Render(ctx context.Context, html string) ([]byte, error)
}

// DisabledPDFRenderer 未配置浏览器时使用
type DisabledPDFRenderer struct{}

// Render 总是返回 ErrPDFDisabled
func (DisabledPDFRenderer) Render(context.Context, string) ([]byte, error) {
	return nil, ErrPDFDisabled
}

// ChromePDFRenderer 通过 Chrome DevTools 协议打印 PDF
type ChromePDFRenderer struct {
	allocCtx    context.Context
	allocCancel context.CancelFunc
	timeout     time.Duration
	logger      *zap.Logger
}

// NewChromePDFRenderer 创建渲染器，remoteURL 为空时启动本地无头 Chrome
func NewChromePDFRenderer(remoteURL string, l *zap.Logger) *ChromePDFRenderer {
	r := &ChromePDFRenderer{timeout: 30 * time.Second, logger: l}
	if remoteURL != "" {
		r.allocCtx, r.allocCancel = chromedp.NewRemoteAllocator(context.Background(), remoteURL)
		return r
	}
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("font-render-hinting", "none"),
	)
	r.allocCtx, r.allocCancel = chromedp.NewExecAllocator(context.Background(), opts...)
	return r
}

// Close 释放浏览器资源
func (r *ChromePDFRenderer) Close() {
	if r.allocCancel != nil {
		r.allocCancel()
	}
}

// Render 将 HTML 渲染为 A4 PDF
func (r *ChromePDFRenderer) Render(ctx context.Context, html string) ([]byte, error) {
	if strings.TrimSpace(html) == "" {
		return nil, errors.New("HTML 内容为空")
	}

	browserCtx, cancel := chromedp.NewContext(r.allocCtx, chromedp.WithLogf(func(format string, args ...any) {
		r.logger.Debug(fmt.Sprintf(format, args...))
	}))
	defer cancel()
	browserCtx, cancelTimeout := context.WithTimeout(browserCtx, r.timeout)
	defer cancelTimeout()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	var pdf []byte
	err := chromedp.Run(browserCtx,
		chromedp.Navigate("about:blank"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			tree, err := page.GetFrameTree().Do(ctx)
			if err != nil {
				return err
			}
			return page.SetDocumentContent(tree.Frame.ID, html).Do(ctx)
		}),
		chromedp.ActionFunc(func(ctx context.Context) error {
			// A4，单位英寸
			data, _, err := page.PrintToPDF().
				WithPrintBackground(true).
				WithPaperWidth(8.27).
				WithPaperHeight(11.69).
				WithMarginTop(0.4).
				WithMarginBottom(0.4).
				WithMarginLeft(0.4).
				WithMarginRight(0.4).
				Do(ctx)
			if err != nil {
				return err
			}
			pdf = data
			return nil
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("PDF 渲染失败: %w", err)
	}
	return pdf, nil
}

// formatMoney 千分位金额
func formatMoney(d decimal.Decimal) string {
	s := d.StringFixed(2)
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")
	intPart, frac, _ := strings.Cut(s, ".")

	var b strings.Builder
	for i, ch := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(ch)
	}
	out := "$" + b.String() + "." + frac
	if neg {
		return "-" + out
	}
	return out
}

var reportTemplate = template.Must(template.New("budget").Funcs(template.FuncMap{
	"money": formatMoney,
}).Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="UTF-8">
<title>{{.Municipality}} FY{{.Summary.FiscalYear}} Budget Report</title>
<style>
  body { font-family: Arial, sans-serif; font-size: 11px; color: #222; }
  h1 { font-size: 18px; margin-bottom: 4px; }
  .meta { color: #666; margin-bottom: 16px; }
  table { border-collapse: collapse; width: 100%; margin-bottom: 18px; }
  th { background: #4F81BD; color: #fff; padding: 6px; text-align: left; }
  td { border-bottom: 1px solid #ddd; padding: 5px 6px; }
  td.num { text-align: right; }
  tr.over td { color: #b91c1c; }
  tr.total td { font-weight: bold; background: #FFC000; }
</style>
</head>
<body>
<h1>{{.Municipality}} Budget Report, FY{{.Summary.FiscalYear}}</h1>
<div class="meta">Generated {{.GeneratedAt}} · {{.Summary.EntryCount}} entries · {{.Summary.OverBudgetCount}} over budget</div>

<table>
  <tr><th>Total budgeted</th><th>Total actual</th><th>Variance</th><th>Encumbrance</th></tr>
  <tr>
    <td class="num">{{money .Summary.TotalBudgeted}}</td>
    <td class="num">{{money .Summary.TotalActual}}</td>
    <td class="num">{{money .Summary.TotalVariance}}</td>
    <td class="num">{{money .Summary.TotalEncumbrance}}</td>
  </tr>
</table>

{{if .Summary.ByFundType}}
<table>
  <tr><th>Fund type</th><th>Budgeted</th><th>Actual</th><th>Variance</th></tr>
  {{range .Summary.ByFundType}}<tr><td>{{.Key}}</td><td class="num">{{money .Budgeted}}</td><td class="num">{{money .Actual}}</td><td class="num">{{money .Variance}}</td></tr>
  {{end}}
</table>
{{end}}

{{if .Summary.ByDepartment}}
<table>
  <tr><th>Department</th><th>Budgeted</th><th>Actual</th><th>Variance</th></tr>
  {{range .Summary.ByDepartment}}<tr><td>{{.Key}}</td><td class="num">{{money .Budgeted}}</td><td class="num">{{money .Actual}}</td><td class="num">{{money .Variance}}</td></tr>
  {{end}}
</table>
{{end}}

<table>
  <tr><th>Account</th><th>Description</th><th>Budgeted</th><th>Actual</th><th>Variance</th><th>Remaining</th></tr>
  {{range .Entries}}<tr{{if .IsOverBudget}} class="over"{{end}}>
    <td>{{.AccountNumber}}</td><td>{{.Description}}</td>
    <td class="num">{{money .BudgetedAmount}}</td><td class="num">{{money .ActualAmount}}</td>
    <td class="num">{{money .Variance}}</td><td class="num">{{money .RemainingBudget}}</td>
  </tr>
  {{end}}
  <tr class="total"><td colspan="2">Total</td>
    <td class="num">{{money .Summary.TotalBudgeted}}</td><td class="num">{{money .Summary.TotalActual}}</td>
    <td class="num">{{money .Summary.TotalVariance}}</td><td></td></tr>
</table>
</body>
</html>
`))

// BudgetReportHTML 生成财年预算报告 HTML
func BudgetReportHTML(summary *repository.BudgetSummary, entries []models.BudgetEntry, municipality string) (string, error) {
	if summary == nil {
		return "", errors.New("预算汇总不能为空")
	}
	var buf bytes.Buffer
	err := reportTemplate.Execute(&buf, struct {
		Municipality string
		GeneratedAt  string
		Summary      *repository.BudgetSummary
		Entries      []models.BudgetEntry
	}{
		Municipality: municipality,
		GeneratedAt:  time.Now().Format("2006-01-02 15:04"),
		Summary:      summary,
		Entries:      entries,
	})
	if err != nil {
		return "", fmt.Errorf("生成报告失败: %w", err)
	}
	return buf.String(), nil
}
