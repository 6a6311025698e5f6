package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType 借贷方向
type TransactionType string

const (
	TransactionDebit  TransactionType = "Debit"
	TransactionCredit TransactionType = "Credit"
)

// Transaction 预算明细下的交易
type Transaction struct {
	ID              uint            `json:"id" gorm:"primaryKey"`
	BudgetEntryID   uint            `json:"budget_entry_id" gorm:"not null;index"`
	Amount          decimal.Decimal `json:"amount" gorm:"type:decimal(18,2);not null;check:chk_transactions_amount,amount <> 0"`
	Type            TransactionType `json:"type" gorm:"size:10;not null"`
	Description     string          `json:"description" gorm:"size:255"`
	TransactionDate time.Time       `json:"transaction_date" gorm:"not null;index"`
	QuickBooksID    string          `json:"quickbooks_id" gorm:"size:50;index"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// TableName 设置表名
func (Transaction) TableName() string {
	return "transactions"
}

// SignedAmount 借方为正、贷方为负
func (t Transaction) SignedAmount() decimal.Decimal {
	if t.Type == TransactionCredit {
		return t.Amount.Abs().Neg()
	}
	return t.Amount.Abs()
}
