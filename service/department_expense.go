package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"wileywidget/models"
	"wileywidget/quickbooks"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// 支出数据来源
const (
	SourceQuickBooks = "quickbooks"
	SourceSample     = "sample"
)

// sampleMonthly QuickBooks 不可用时使用的各部门月度示例支出
var sampleMonthly = map[string]decimal.Decimal{
	models.DepartmentWater:      decimal.NewFromInt(45000),
	models.DepartmentSewer:      decimal.NewFromInt(38000),
	models.DepartmentTrash:      decimal.NewFromInt(22000),
	models.DepartmentApartments: decimal.NewFromInt(60000),
}

var sampleMonthlyDefault = decimal.NewFromInt(15000)

// PurchaseSource 支出交易来源
type PurchaseSource interface {
	Enabled() bool
	QueryPurchases(ctx context.Context, from, to time.Time) ([]quickbooks.Purchase, error)
}

// EnterpriseDepartmentLister 企业型部门查询
type EnterpriseDepartmentLister interface {
	GetEnterprise(ctx context.Context) ([]models.Department, error)
}

// DepartmentExpense 部门在区间内的支出
type DepartmentExpense struct {
	Department string          `json:"department"`
	Total      decimal.Decimal `json:"total"`
	Source     string          `json:"source"`
	From       time.Time       `json:"from"`
	To         time.Time       `json:"to"`
}

// DepartmentExpenseService 部门支出查询
type DepartmentExpenseService struct {
	qb          PurchaseSource
	departments EnterpriseDepartmentLister
	logger      *zap.Logger
}

// NewDepartmentExpenseService 创建部门支出服务，qb 可为 nil
func NewDepartmentExpenseService(qb PurchaseSource, departments EnterpriseDepartmentLister, l *zap.Logger) *DepartmentExpenseService {
	if l == nil {
		l = zap.NewNop()
	}
	return &DepartmentExpenseService{qb: qb, departments: departments, logger: l.Named("department_expense")}
}

// MonthsInRange 区间覆盖的自然月数量（含首尾），至少为 1
func MonthsInRange(from, to time.Time) int {
	n := (to.Year()-from.Year())*12 + int(to.Month()) - int(from.Month()) + 1
	if n < 1 {
		return 1
	}
	return n
}

// SampleExpense 部门示例支出 = 月度示例值 × 月数
func SampleExpense(department string, from, to time.Time) decimal.Decimal {
	monthly := sampleMonthlyDefault
	for k, v := range sampleMonthly {
		if strings.EqualFold(k, department) {
			monthly = v
			break
		}
	}
	return monthly.Mul(decimal.NewFromInt(int64(MonthsInRange(from, to))))
}

func validateRange(from, to time.Time) error {
	if from.IsZero() || to.IsZero() {
		return fmt.Errorf("%w: 开始和结束日期不能为空", ErrInvalidArgument)
	}
	if from.After(to) {
		return fmt.Errorf("%w: 开始日期不能晚于结束日期", ErrInvalidArgument)
	}
	return nil
}

// loadPurchases 获取支出交易，ok 为 false 表示 QuickBooks 不可用
func (s *DepartmentExpenseService) loadPurchases(ctx context.Context, from, to time.Time) ([]quickbooks.Purchase, bool) {
	if s.qb == nil || !s.qb.Enabled() {
		return nil, false
	}
	purchases, err := s.qb.QueryPurchases(ctx, from, to)
	if err != nil {
		s.logger.Warn("查询 QuickBooks 支出失败，使用示例数据", zap.Error(err))
		return nil, false
	}
	return purchases, true
}

func summarize(department string, purchases []quickbooks.Purchase, ok bool, from, to time.Time) DepartmentExpense {
	if !ok {
		return DepartmentExpense{
			Department: department,
			Total:      SampleExpense(department, from, to),
			Source:     SourceSample,
			From:       from,
			To:         to,
		}
	}
	total := decimal.Zero
	for _, p := range purchases {
		if strings.EqualFold(strings.TrimSpace(p.DepartmentName()), department) {
			total = total.Add(p.TotalAmt)
		}
	}
	return DepartmentExpense{Department: department, Total: total.Round(2), Source: SourceQuickBooks, From: from, To: to}
}

// GetDepartmentExpenses 查询单个部门区间支出
func (s *DepartmentExpenseService) GetDepartmentExpenses(ctx context.Context, department string, from, to time.Time) (*DepartmentExpense, error) {
	department = strings.TrimSpace(department)
	if department == "" {
		return nil, fmt.Errorf("%w: 部门名称不能为空", ErrInvalidArgument)
	}
	if err := validateRange(from, to); err != nil {
		return nil, err
	}
	purchases, ok := s.loadPurchases(ctx, from, to)
	e := summarize(department, purchases, ok, from, to)
	return &e, nil
}

// GetAllDepartmentExpenses 查询全部企业型部门区间支出（按名称排序）
func (s *DepartmentExpenseService) GetAllDepartmentExpenses(ctx context.Context, from, to time.Time) ([]DepartmentExpense, error) {
	if err := validateRange(from, to); err != nil {
		return nil, err
	}
	depts, err := s.departments.GetEnterprise(ctx)
	if err != nil {
		return nil, err
	}
	purchases, ok := s.loadPurchases(ctx, from, to)
	out := make([]DepartmentExpense, 0, len(depts))
	for _, d := range depts {
		out = append(out, summarize(d.Name, purchases, ok, from, to))
	}
	return out, nil
}
