package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// InvoiceStatus 发票状态
type InvoiceStatus string

const (
	InvoicePending  InvoiceStatus = "Pending"
	InvoiceApproved InvoiceStatus = "Approved"
	InvoicePaid     InvoiceStatus = "Paid"
	InvoiceVoid     InvoiceStatus = "Void"
)

// IsValid 校验状态
func (s InvoiceStatus) IsValid() bool {
	switch s {
	case InvoicePending, InvoiceApproved, InvoicePaid, InvoiceVoid:
		return true
	}
	return false
}

// IsTerminal Paid 与 Void 为终态
func (s InvoiceStatus) IsTerminal() bool {
	return s == InvoicePaid || s == InvoiceVoid
}

// CanTransitionTo 允许的状态流转
func (s InvoiceStatus) CanTransitionTo(next InvoiceStatus) bool {
	switch s {
	case InvoicePending:
		return next == InvoiceApproved || next == InvoiceVoid
	case InvoiceApproved:
		return next == InvoicePaid || next == InvoiceVoid
	}
	return false
}

// Invoice 供应商发票
type Invoice struct {
	ID                 uint            `json:"id" gorm:"primaryKey"`
	InvoiceNumber      string          `json:"invoice_number" gorm:"size:50;not null;uniqueIndex"`
	VendorID           uint            `json:"vendor_id" gorm:"not null;index"`
	MunicipalAccountID uint            `json:"municipal_account_id" gorm:"not null;index"`
	Amount             decimal.Decimal `json:"amount" gorm:"type:decimal(18,2);not null;check:chk_invoices_amount,amount > 0"`
	InvoiceDate        time.Time       `json:"invoice_date" gorm:"not null"`
	DueDate            time.Time       `json:"due_date" gorm:"not null;index"`
	Status             InvoiceStatus   `json:"status" gorm:"size:20;not null;default:Pending;index"`
	PaidDate           *time.Time      `json:"paid_date"`
	Description        string          `json:"description" gorm:"size:255"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`

	Vendor *Vendor `json:"vendor,omitempty" gorm:"foreignKey:VendorID"`
}

// TableName 设置表名
func (Invoice) TableName() string {
	return "invoices"
}

// IsOverdue 在 asOf 时已过期且未结清
func (i Invoice) IsOverdue(asOf time.Time) bool {
	return !i.Status.IsTerminal() && i.DueDate.Before(asOf)
}
