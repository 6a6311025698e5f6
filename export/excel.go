// Package export 预算、科目与用户数据的 Excel/CSV/PDF 导出及归档
package export

import (
	"bytes"
	"fmt"

	"wileywidget/models"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

const (
	// ContentTypeXLSX Excel 文件类型
	ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	// ContentTypeCSV CSV 文件类型
	ContentTypeCSV = "text/csv; charset=utf-8"
	// ContentTypePDF PDF 文件类型
	ContentTypePDF = "application/pdf"

	moneyFormat = "#,##0.00"
)

var thinBorder = []excelize.Border{
	{Type: "left", Color: "000000", Style: 1},
	{Type: "top", Color: "000000", Style: 1},
	{Type: "bottom", Color: "000000", Style: 1},
	{Type: "right", Color: "000000", Style: 1},
}

// column 表头与列宽
type column struct {
	title string
	width float64
	money bool
}

// sheetStyles 工作表样式
type sheetStyles struct {
	header  int
	data    int
	money   int
	summary int
	sumNum  int
}

// ExcelExporter 基于 excelize 的 Excel 导出
type ExcelExporter struct{}

// NewExcelExporter 创建 Excel 导出器
func NewExcelExporter() *ExcelExporter {
	return &ExcelExporter{}
}

func newStyles(f *excelize.File) (*sheetStyles, error) {
	var s sheetStyles
	var err error
	if s.header, err = f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 12, Color: "FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"4F81BD"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
		Border:    thinBorder,
	}); err != nil {
		return nil, err
	}
	if s.data, err = f.NewStyle(&excelize.Style{
		Alignment: &excelize.Alignment{Vertical: "center"},
		Border:    thinBorder,
	}); err != nil {
		return nil, err
	}
	fmtCode := moneyFormat
	if s.money, err = f.NewStyle(&excelize.Style{
		Alignment:    &excelize.Alignment{Horizontal: "right", Vertical: "center"},
		Border:       thinBorder,
		CustomNumFmt: &fmtCode,
	}); err != nil {
		return nil, err
	}
	if s.summary, err = f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"FFC000"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
		Border:    thinBorder,
	}); err != nil {
		return nil, err
	}
	if s.sumNum, err = f.NewStyle(&excelize.Style{
		Font:         &excelize.Font{Bold: true, Size: 11},
		Fill:         excelize.Fill{Type: "pattern", Color: []string{"FFC000"}, Pattern: 1},
		Alignment:    &excelize.Alignment{Horizontal: "right", Vertical: "center"},
		Border:       thinBorder,
		CustomNumFmt: &fmtCode,
	}); err != nil {
		return nil, err
	}
	return &s, nil
}

// cellName 行列号转单元格名，出错时退回 A1 记法
func cellName(col, row int) string {
	name, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return fmt.Sprintf("A%d", row)
	}
	return name
}

// writeSheet 写表头和数据行，返回下一个空行号
func writeSheet(f *excelize.File, sheet string, st *sheetStyles, cols []column, rows [][]any) (int, error) {
	for i, c := range cols {
		colName, _ := excelize.ColumnNumberToName(i + 1)
		if err := f.SetColWidth(sheet, colName, colName, c.width); err != nil {
			return 0, err
		}
		cell := cellName(i+1, 1)
		if err := f.SetCellValue(sheet, cell, c.title); err != nil {
			return 0, err
		}
		if err := f.SetCellStyle(sheet, cell, cell, st.header); err != nil {
			return 0, err
		}
	}

	for r, values := range rows {
		row := r + 2
		for i, v := range values {
			cell := cellName(i+1, row)
			if d, ok := v.(decimal.Decimal); ok {
				v = d.InexactFloat64()
			}
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				return 0, err
			}
			style := st.data
			if i < len(cols) && cols[i].money {
				style = st.money
			}
			if err := f.SetCellStyle(sheet, cell, cell, style); err != nil {
				return 0, err
			}
		}
	}
	return len(rows) + 2, f.SetPanes(sheet, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"})
}

func newWorkbook(sheet string) (*excelize.File, *sheetStyles, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		_ = f.Close()
		return nil, nil, err
	}
	st, err := newStyles(f)
	if err != nil {
		_ = f.Close()
		return nil, nil, err
	}
	return f, st, nil
}

func toBytes(f *excelize.File) ([]byte, error) {
	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("生成 Excel 失败: %w", err)
	}
	return buf.Bytes(), nil
}

var budgetColumns = []column{
	{title: "科目编号", width: 14},
	{title: "说明", width: 32},
	{title: "部门", width: 16},
	{title: "基金类型", width: 16},
	{title: "预算", width: 16, money: true},
	{title: "实际", width: 16, money: true},
	{title: "差异", width: 16, money: true},
	{title: "保留", width: 16, money: true},
	{title: "可用余额", width: 16, money: true},
}

// BudgetEntries 导出某财年预算明细，含差异列和合计行
func (e *ExcelExporter) BudgetEntries(entries []models.BudgetEntry, fiscalYear int) ([]byte, error) {
	sheet := fmt.Sprintf("FY%d 预算", fiscalYear)
	f, st, err := newWorkbook(sheet)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	rows := make([][]any, 0, len(entries))
	var budgeted, actual, encumbrance decimal.Decimal
	for _, en := range entries {
		dept := ""
		if en.Department != nil {
			dept = en.Department.Name
		}
		rows = append(rows, []any{
			en.AccountNumber, en.Description, dept, string(en.FundType),
			en.BudgetedAmount, en.ActualAmount, en.Variance(), en.EncumbranceAmount, en.RemainingBudget(),
		})
		budgeted = budgeted.Add(en.BudgetedAmount)
		actual = actual.Add(en.ActualAmount)
		encumbrance = encumbrance.Add(en.EncumbranceAmount)
	}
	next, err := writeSheet(f, sheet, st, budgetColumns, rows)
	if err != nil {
		return nil, err
	}

	// 合计行
	totals := []any{
		"合计", fmt.Sprintf("共 %d 条记录", len(entries)), "", "",
		budgeted, actual, budgeted.Sub(actual), encumbrance, budgeted.Sub(actual).Sub(encumbrance),
	}
	for i, v := range totals {
		cell := cellName(i+1, next)
		if d, ok := v.(decimal.Decimal); ok {
			v = d.InexactFloat64()
		}
		if err := f.SetCellValue(sheet, cell, v); err != nil {
			return nil, err
		}
		style := st.summary
		if budgetColumns[i].money {
			style = st.sumNum
		}
		if err := f.SetCellStyle(sheet, cell, cell, style); err != nil {
			return nil, err
		}
	}
	return toBytes(f)
}

// Accounts 导出科目表
func (e *ExcelExporter) Accounts(accounts []models.MunicipalAccount) ([]byte, error) {
	const sheet = "科目表"
	f, st, err := newWorkbook(sheet)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	cols := []column{
		{title: "科目编号", width: 14},
		{title: "名称", width: 30},
		{title: "类型", width: 12},
		{title: "基金", width: 22},
		{title: "余额", width: 16, money: true},
		{title: "预算", width: 16, money: true},
		{title: "QuickBooks ID", width: 16},
		{title: "启用", width: 8},
	}
	rows := make([][]any, 0, len(accounts))
	for _, a := range accounts {
		fund := ""
		if a.Fund != nil {
			fund = a.Fund.Name
		}
		rows = append(rows, []any{a.AccountNumber, a.Name, string(a.Type), fund, a.Balance, a.BudgetAmount, a.QuickBooksID, yesNo(a.IsActive)})
	}
	if _, err := writeSheet(f, sheet, st, cols, rows); err != nil {
		return nil, err
	}
	return toBytes(f)
}

// Customers 导出公用事业用户
func (e *ExcelExporter) Customers(customers []models.UtilityCustomer) ([]byte, error) {
	const sheet = "用户"
	f, st, err := newWorkbook(sheet)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	cols := []column{
		{title: "户号", width: 14},
		{title: "名称", width: 28},
		{title: "类型", width: 14},
		{title: "服务地址", width: 32},
		{title: "位置", width: 18},
		{title: "状态", width: 10},
		{title: "邮箱", width: 26},
		{title: "余额", width: 14, money: true},
	}
	rows := make([][]any, 0, len(customers))
	for _, c := range customers {
		rows = append(rows, []any{c.AccountNumber, c.DisplayName(), string(c.CustomerType), c.ServiceAddress,
			string(c.ServiceLocation), string(c.Status), c.Email, c.CurrentBalance})
	}
	if _, err := writeSheet(f, sheet, st, cols, rows); err != nil {
		return nil, err
	}
	return toBytes(f)
}

func yesNo(v bool) string {
	if v {
		return "是"
	}
	return "否"
}
