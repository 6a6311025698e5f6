package models

import (
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// AccountType 科目类型
type AccountType string

const (
	AccountTypeAsset     AccountType = "Asset"
	AccountTypeLiability AccountType = "Liability"
	AccountTypeEquity    AccountType = "Equity"
	AccountTypeRevenue   AccountType = "Revenue"
	AccountTypeExpense   AccountType = "Expense"
)

// IsValid 校验科目类型
func (t AccountType) IsValid() bool {
	switch t {
	case AccountTypeAsset, AccountTypeLiability, AccountTypeEquity, AccountTypeRevenue, AccountTypeExpense:
		return true
	}
	return false
}

// DebitNormal 借方为正的科目（资产、费用）
func (t AccountType) DebitNormal() bool {
	return t == AccountTypeAsset || t == AccountTypeExpense
}

// accountNumberPattern 科目编号：点分数字，如 405 或 405.1.2
var accountNumberPattern = regexp.MustCompile(`^\d{1,6}(\.\d{1,4}){0,4}$`)

// ValidAccountNumber 校验科目编号格式
func ValidAccountNumber(number string) bool {
	return accountNumberPattern.MatchString(number)
}

// IsChildNumberOf 子科目编号必须以父科目编号加 "." 开头
func IsChildNumberOf(child, parent string) bool {
	return strings.HasPrefix(child, parent+".")
}

// MunicipalAccount 市政会计科目
type MunicipalAccount struct {
	ID              uint            `json:"id" gorm:"primaryKey"`
	AccountNumber   string          `json:"account_number" gorm:"size:30;not null;uniqueIndex" binding:"required,accountnumber"`
	Name            string          `json:"name" gorm:"size:150;not null"`
	Type            AccountType     `json:"type" gorm:"size:20;not null;index"`
	FundID          uint            `json:"fund_id" gorm:"not null;index"`
	DepartmentID    *uint           `json:"department_id" gorm:"index"`
	ParentAccountID *uint           `json:"parent_account_id" gorm:"index"`
	Balance         decimal.Decimal `json:"balance" gorm:"type:decimal(18,2);not null;default:0"`
	BudgetAmount    decimal.Decimal `json:"budget_amount" gorm:"type:decimal(18,2);not null;default:0"`
	QuickBooksID    string          `json:"quickbooks_id" gorm:"size:50;index"`
	IsActive        bool            `json:"is_active" gorm:"not null"`
	Notes           string          `json:"notes" gorm:"size:500"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`

	Fund *Fund `json:"fund,omitempty" gorm:"foreignKey:FundID"`
}

// TableName 设置表名
func (MunicipalAccount) TableName() string {
	return "municipal_accounts"
}
