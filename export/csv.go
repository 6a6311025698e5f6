package export

import (
	"bytes"
	"encoding/csv"
	"fmt"

	"wileywidget/models"
)

// utf8BOM 让 Excel 正确识别 UTF-8
const utf8BOM = "\xEF\xBB\xBF"

// CSVExporter CSV 导出
type CSVExporter struct{}

// NewCSVExporter 创建 CSV 导出器
func NewCSVExporter() *CSVExporter {
	return &CSVExporter{}
}

func writeCSV(headers []string, rows [][]string) ([]byte, error) {
	buf := new(bytes.Buffer)
	buf.WriteString(utf8BOM)

	w := csv.NewWriter(buf)
	if err := w.Write(headers); err != nil {
		return nil, fmt.Errorf("生成 CSV 失败: %w", err)
	}
	if err := w.WriteAll(rows); err != nil {
		return nil, fmt.Errorf("生成 CSV 失败: %w", err)
	}
	return buf.Bytes(), nil
}

// BudgetEntries 导出预算明细
func (e *CSVExporter) BudgetEntries(entries []models.BudgetEntry, fiscalYear int) ([]byte, error) {
	headers := []string{"财年", "科目编号", "说明", "部门", "基金类型", "预算", "实际", "差异", "保留", "可用余额"}
	rows := make([][]string, 0, len(entries))
	for _, en := range entries {
		dept := ""
		if en.Department != nil {
			dept = en.Department.Name
		}
		rows = append(rows, []string{
			fmt.Sprintf("%d", fiscalYear),
			en.AccountNumber,
			en.Description,
			dept,
			string(en.FundType),
			en.BudgetedAmount.StringFixed(2),
			en.ActualAmount.StringFixed(2),
			en.Variance().StringFixed(2),
			en.EncumbranceAmount.StringFixed(2),
			en.RemainingBudget().StringFixed(2),
		})
	}
	return writeCSV(headers, rows)
}

// Accounts 导出科目表
func (e *CSVExporter) Accounts(accounts []models.MunicipalAccount) ([]byte, error) {
	headers := []string{"科目编号", "名称", "类型", "基金ID", "余额", "预算", "QuickBooks ID", "启用"}
	rows := make([][]string, 0, len(accounts))
	for _, a := range accounts {
		rows = append(rows, []string{
			a.AccountNumber,
			a.Name,
			string(a.Type),
			fmt.Sprintf("%d", a.FundID),
			a.Balance.StringFixed(2),
			a.BudgetAmount.StringFixed(2),
			a.QuickBooksID,
			yesNo(a.IsActive),
		})
	}
	return writeCSV(headers, rows)
}

// Customers 导出公用事业用户
func (e *CSVExporter) Customers(customers []models.UtilityCustomer) ([]byte, error) {
	headers := []string{"户号", "名称", "类型", "服务地址", "城市", "位置", "状态", "邮箱", "电话", "余额"}
	rows := make([][]string, 0, len(customers))
	for _, c := range customers {
		rows = append(rows, []string{
			c.AccountNumber,
			c.DisplayName(),
			string(c.CustomerType),
			c.ServiceAddress,
			c.City,
			string(c.ServiceLocation),
			string(c.Status),
			c.Email,
			c.Phone,
			c.CurrentBalance.StringFixed(2),
		})
	}
	return writeCSV(headers, rows)
}
