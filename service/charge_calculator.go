package service

import (
	"context"
	"fmt"

	"wileywidget/models"

	"github.com/shopspring/decimal"
)

// HealthStatus 收支健康状态
type HealthStatus string

const (
	HealthHealthy  HealthStatus = "Healthy"
	HealthWarning  HealthStatus = "Warning"
	HealthCritical HealthStatus = "Critical"
)

var (
	reserveFactor    = decimal.RequireFromString("0.10")
	minimumCharge    = decimal.RequireFromString("5.00")
	maxStepIncrease  = decimal.RequireFromString("0.15")
	healthyThreshold = decimal.NewFromInt(1)
	warningThreshold = decimal.RequireFromString("0.90")
	monthsPerYear    = decimal.NewFromInt(12)
	minScenarioPct   = decimal.NewFromInt(-50)
	maxScenarioPct   = decimal.NewFromInt(100)
	one              = decimal.NewFromInt(1)
)

// HealthFor 根据覆盖率判定健康状态
func HealthFor(coverage decimal.Decimal) HealthStatus {
	switch {
	case coverage.GreaterThanOrEqual(healthyThreshold):
		return HealthHealthy
	case coverage.GreaterThanOrEqual(warningThreshold):
		return HealthWarning
	default:
		return HealthCritical
	}
}

// DepartmentGetter 部门查询
type DepartmentGetter interface {
	GetByID(ctx context.Context, id uint) (*models.Department, error)
}

// BudgetTotaler 部门预算合计
type BudgetTotaler interface {
	SumBudgeted(ctx context.Context, departmentID uint, fiscalYear int) (decimal.Decimal, error)
}

// ActiveCustomerCounter 活跃用户计数
type ActiveCustomerCounter interface {
	GetActiveCount(ctx context.Context) (int64, error)
}

// ChargeRecommendation 服务费建议
type ChargeRecommendation struct {
	DepartmentID      uint            `json:"department_id"`
	Department        string          `json:"department"`
	FiscalYear        int             `json:"fiscal_year"`
	AnnualExpenses    decimal.Decimal `json:"annual_expenses"`
	RequiredRevenue   decimal.Decimal `json:"required_revenue"`
	CustomerCount     int64           `json:"customer_count"`
	CurrentRate       decimal.Decimal `json:"current_rate"`
	RecommendedRate   decimal.Decimal `json:"recommended_rate"`
	PhasedRate        decimal.Decimal `json:"phased_rate"`
	CoverageRatio     decimal.Decimal `json:"coverage_ratio"`
	Status            HealthStatus    `json:"status"`
	MonthlyRevenueGap decimal.Decimal `json:"monthly_revenue_gap"`
}

// WhatIfScenario 假设分析结果
type WhatIfScenario struct {
	DepartmentID            uint            `json:"department_id"`
	Department              string          `json:"department"`
	FiscalYear              int             `json:"fiscal_year"`
	RateIncreasePct         decimal.Decimal `json:"rate_increase_pct"`
	ExpenseIncreasePct      decimal.Decimal `json:"expense_increase_pct"`
	CurrentRate             decimal.Decimal `json:"current_rate"`
	NewRate                 decimal.Decimal `json:"new_rate"`
	CustomerCount           int64           `json:"customer_count"`
	ProjectedAnnualRevenue  decimal.Decimal `json:"projected_annual_revenue"`
	ProjectedAnnualExpenses decimal.Decimal `json:"projected_annual_expenses"`
	NetPosition             decimal.Decimal `json:"net_position"`
	CoverageRatio           decimal.Decimal `json:"coverage_ratio"`
	Status                  HealthStatus    `json:"status"`
}

// ServiceChargeCalculatorService 企业型部门服务费测算
type ServiceChargeCalculatorService struct {
	departments DepartmentGetter
	budgets     BudgetTotaler
	customers   ActiveCustomerCounter
}

// NewServiceChargeCalculatorService 创建服务费测算服务
func NewServiceChargeCalculatorService(departments DepartmentGetter, budgets BudgetTotaler, customers ActiveCustomerCounter) *ServiceChargeCalculatorService {
	return &ServiceChargeCalculatorService{departments: departments, budgets: budgets, customers: customers}
}

type chargeInputs struct {
	dept      *models.Department
	expenses  decimal.Decimal
	customers int64
}

func (s *ServiceChargeCalculatorService) load(ctx context.Context, departmentID uint, fiscalYear int) (*chargeInputs, error) {
	if fiscalYear < 1900 || fiscalYear > 2100 {
		return nil, fmt.Errorf("%w: 财年超出范围", ErrInvalidArgument)
	}
	dept, err := s.departments.GetByID(ctx, departmentID)
	if err != nil {
		return nil, err
	}
	expenses, err := s.budgets.SumBudgeted(ctx, departmentID, fiscalYear)
	if err != nil {
		return nil, err
	}
	customers, err := s.customers.GetActiveCount(ctx)
	if err != nil {
		return nil, err
	}
	if customers <= 0 {
		return nil, ErrNoCustomers
	}
	return &chargeInputs{dept: dept, expenses: expenses, customers: customers}, nil
}

// coverage 年收入 / 所需收入，所需收入为 0 时视为完全覆盖
func coverage(annualRevenue, required decimal.Decimal) decimal.Decimal {
	if !required.IsPositive() {
		return one
	}
	return annualRevenue.DivRound(required, 4)
}

// CalculateRecommendedCharge 计算建议每户月费率
func (s *ServiceChargeCalculatorService) CalculateRecommendedCharge(ctx context.Context, departmentID uint, fiscalYear int) (*ChargeRecommendation, error) {
	in, err := s.load(ctx, departmentID, fiscalYear)
	if err != nil {
		return nil, err
	}
	customers := decimal.NewFromInt(in.customers)
	current := in.dept.CurrentRate

	required := in.expenses.Mul(one.Add(reserveFactor))
	recommended := decimal.Max(minimumCharge, required.Div(customers).Div(monthsPerYear)).Round(2)

	phased := recommended
	if current.IsPositive() {
		phased = decimal.Min(recommended, current.Mul(one.Add(maxStepIncrease))).Round(2)
	}

	cov := coverage(current.Mul(customers).Mul(monthsPerYear), required)
	return &ChargeRecommendation{
		DepartmentID:      in.dept.ID,
		Department:        in.dept.Name,
		FiscalYear:        fiscalYear,
		AnnualExpenses:    in.expenses.Round(2),
		RequiredRevenue:   required.Round(2),
		CustomerCount:     in.customers,
		CurrentRate:       current,
		RecommendedRate:   recommended,
		PhasedRate:        phased,
		CoverageRatio:     cov,
		Status:            HealthFor(cov),
		MonthlyRevenueGap: recommended.Sub(current).Mul(customers).Round(2),
	}, nil
}

func validScenarioPct(p decimal.Decimal) bool {
	return p.GreaterThanOrEqual(minScenarioPct) && p.LessThanOrEqual(maxScenarioPct)
}

// GenerateWhatIfScenario 按费率和支出变动百分比做假设分析
func (s *ServiceChargeCalculatorService) GenerateWhatIfScenario(ctx context.Context, departmentID uint, fiscalYear int, rateIncreasePct, expenseIncreasePct decimal.Decimal) (*WhatIfScenario, error) {
	if !validScenarioPct(rateIncreasePct) || !validScenarioPct(expenseIncreasePct) {
		return nil, fmt.Errorf("%w: 变动百分比必须在 -50 到 100 之间", ErrInvalidArgument)
	}
	in, err := s.load(ctx, departmentID, fiscalYear)
	if err != nil {
		return nil, err
	}
	customers := decimal.NewFromInt(in.customers)
	current := in.dept.CurrentRate

	newRate := current.Mul(one.Add(rateIncreasePct.Div(hundred))).Round(2)
	revenue := newRate.Mul(customers).Mul(monthsPerYear).Round(2)
	expenses := in.expenses.Mul(one.Add(expenseIncreasePct.Div(hundred))).Round(2)
	cov := coverage(revenue, expenses.Mul(one.Add(reserveFactor)))

	return &WhatIfScenario{
		DepartmentID:            in.dept.ID,
		Department:              in.dept.Name,
		FiscalYear:              fiscalYear,
		RateIncreasePct:         rateIncreasePct,
		ExpenseIncreasePct:      expenseIncreasePct,
		CurrentRate:             current,
		NewRate:                 newRate,
		CustomerCount:           in.customers,
		ProjectedAnnualRevenue:  revenue,
		ProjectedAnnualExpenses: expenses,
		NetPosition:             revenue.Sub(expenses),
		CoverageRatio:           cov,
		Status:                  HealthFor(cov),
	}, nil
}
