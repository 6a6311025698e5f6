package models

import "time"

// BudgetStatus 预算周期状态
type BudgetStatus string

const (
	BudgetStatusDraft    BudgetStatus = "Draft"
	BudgetStatusProposed BudgetStatus = "Proposed"
	BudgetStatusAdopted  BudgetStatus = "Adopted"
	BudgetStatusExecuted BudgetStatus = "Executed"
	BudgetStatusClosed   BudgetStatus = "Closed"
)

var budgetStatusOrder = map[BudgetStatus]int{
	BudgetStatusDraft:    0,
	BudgetStatusProposed: 1,
	BudgetStatusAdopted:  2,
	BudgetStatusExecuted: 3,
	BudgetStatusClosed:   4,
}

// IsValid 校验状态
func (s BudgetStatus) IsValid() bool {
	_, ok := budgetStatusOrder[s]
	return ok
}

// CanAdvanceTo 状态只能前进（Draft → Proposed → Adopted → Executed → Closed）
func (s BudgetStatus) CanAdvanceTo(next BudgetStatus) bool {
	from, ok1 := budgetStatusOrder[s]
	to, ok2 := budgetStatusOrder[next]
	return ok1 && ok2 && to > from
}

// BudgetPeriod 预算周期（财年）
type BudgetPeriod struct {
	ID        uint         `json:"id" gorm:"primaryKey"`
	Year      int          `json:"year" gorm:"not null;uniqueIndex;check:chk_budget_periods_year,year BETWEEN 1900 AND 2100"`
	Name      string       `json:"name" gorm:"size:100;not null"`
	Status    BudgetStatus `json:"status" gorm:"size:20;not null;default:Draft"`
	StartDate time.Time    `json:"start_date" gorm:"not null"`
	EndDate   time.Time    `json:"end_date" gorm:"not null"`
	IsActive  bool         `json:"is_active" gorm:"default:false;index"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// TableName 设置表名
func (BudgetPeriod) TableName() string {
	return "budget_periods"
}
