package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// BudgetEntry 预算明细（按科目、财年）
type BudgetEntry struct {
	ID                 uint            `json:"id" gorm:"primaryKey"`
	AccountNumber      string          `json:"account_number" gorm:"size:30;not null;uniqueIndex:idx_budget_account_year" binding:"required,accountnumber"`
	Description        string          `json:"description" gorm:"size:255"`
	BudgetedAmount     decimal.Decimal `json:"budgeted_amount" gorm:"type:decimal(18,2);not null;default:0;check:chk_budget_entries_budgeted,budgeted_amount >= 0"`
	ActualAmount       decimal.Decimal `json:"actual_amount" gorm:"type:decimal(18,2);not null;default:0"`
	EncumbranceAmount  decimal.Decimal `json:"encumbrance_amount" gorm:"type:decimal(18,2);not null;default:0;check:chk_budget_entries_encumbrance,encumbrance_amount >= 0"`
	FiscalYear         int             `json:"fiscal_year" gorm:"not null;uniqueIndex:idx_budget_account_year;index;check:chk_budget_entries_year,fiscal_year BETWEEN 1900 AND 2100"`
	StartPeriod        time.Time       `json:"start_period"`
	EndPeriod          time.Time       `json:"end_period"`
	FundType           FundType        `json:"fund_type" gorm:"size:30;index"`
	IsGASBCompliant    bool            `json:"is_gasb_compliant" gorm:"not null"`
	DepartmentID       uint            `json:"department_id" gorm:"not null;index"`
	FundID             *uint           `json:"fund_id" gorm:"index"`
	MunicipalAccountID *uint           `json:"municipal_account_id" gorm:"index"`
	ParentID           *uint           `json:"parent_id" gorm:"index"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`

	Department *Department `json:"department,omitempty" gorm:"foreignKey:DepartmentID"`
}

// TableName 设置表名
func (BudgetEntry) TableName() string {
	return "budget_entries"
}

// Variance 预算差异 = 预算 - 实际
func (e BudgetEntry) Variance() decimal.Decimal {
	return e.BudgetedAmount.Sub(e.ActualAmount)
}

// RemainingBudget 可用余额 = 预算 - 实际 - 保留
func (e BudgetEntry) RemainingBudget() decimal.Decimal {
	return e.BudgetedAmount.Sub(e.ActualAmount).Sub(e.EncumbranceAmount)
}

// IsOverBudget 实际支出超过预算
func (e BudgetEntry) IsOverBudget() bool {
	return e.ActualAmount.GreaterThan(e.BudgetedAmount)
}
