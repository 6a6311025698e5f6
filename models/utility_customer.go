package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// CustomerType 用户类型
type CustomerType string

const (
	CustomerResidential   CustomerType = "Residential"
	CustomerCommercial    CustomerType = "Commercial"
	CustomerIndustrial    CustomerType = "Industrial"
	CustomerAgricultural  CustomerType = "Agricultural"
	CustomerInstitutional CustomerType = "Institutional"
	CustomerGovernment    CustomerType = "Government"
	CustomerMultiFamily   CustomerType = "MultiFamily"
)

// IsValid 校验用户类型
func (t CustomerType) IsValid() bool {
	switch t {
	case CustomerResidential, CustomerCommercial, CustomerIndustrial, CustomerAgricultural,
		CustomerInstitutional, CustomerGovernment, CustomerMultiFamily:
		return true
	}
	return false
}

// CustomerStatus 用户状态
type CustomerStatus string

const (
	CustomerActive    CustomerStatus = "Active"
	CustomerInactive  CustomerStatus = "Inactive"
	CustomerSuspended CustomerStatus = "Suspended"
	CustomerClosed    CustomerStatus = "Closed"
)

// IsValid 校验用户状态
func (s CustomerStatus) IsValid() bool {
	switch s {
	case CustomerActive, CustomerInactive, CustomerSuspended, CustomerClosed:
		return true
	}
	return false
}

// ServiceLocation 服务区域
type ServiceLocation string

const (
	InsideCityLimits  ServiceLocation = "InsideCityLimits"
	OutsideCityLimits ServiceLocation = "OutsideCityLimits"
)

// UtilityCustomer 公用事业用户
type UtilityCustomer struct {
	ID              uint            `json:"id" gorm:"primaryKey"`
	AccountNumber   string          `json:"account_number" gorm:"size:20;not null;uniqueIndex"`
	FirstName       string          `json:"first_name" gorm:"size:50"`
	LastName        string          `json:"last_name" gorm:"size:50"`
	CompanyName     string          `json:"company_name" gorm:"size:100"`
	CustomerType    CustomerType    `json:"customer_type" gorm:"size:20;not null;index"`
	ServiceAddress  string          `json:"service_address" gorm:"size:200;not null"`
	City            string          `json:"city" gorm:"size:50"`
	State           string          `json:"state" gorm:"size:2"`
	ZipCode         string          `json:"zip_code" gorm:"size:10"`
	Email           string          `json:"email" gorm:"size:100"`
	Phone           string          `json:"phone" gorm:"size:30"`
	ServiceLocation ServiceLocation `json:"service_location" gorm:"size:20;not null;default:InsideCityLimits"`
	Status          CustomerStatus  `json:"status" gorm:"size:20;not null;default:Active;index"`
	AccountOpenDate time.Time       `json:"account_open_date"`
	CurrentBalance  decimal.Decimal `json:"current_balance" gorm:"type:decimal(18,2);not null;default:0"`
	MeterNumber     string          `json:"meter_number" gorm:"size:30"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// TableName 设置表名
func (UtilityCustomer) TableName() string {
	return "utility_customers"
}

// DisplayName 公司名优先，否则为姓名
func (u UtilityCustomer) DisplayName() string {
	if strings.TrimSpace(u.CompanyName) != "" {
		return u.CompanyName
	}
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}
