package models

import "time"

// FundType 基金类型（GASB 政府基金分类）
type FundType string

const (
	FundTypeGeneral         FundType = "General"
	FundTypeSpecialRevenue  FundType = "SpecialRevenue"
	FundTypeCapitalProjects FundType = "CapitalProjects"
	FundTypeDebtService     FundType = "DebtService"
	FundTypeEnterprise      FundType = "Enterprise"
	FundTypeInternalService FundType = "InternalService"
	FundTypeTrust           FundType = "Trust"
)

// IsValid 校验基金类型
func (t FundType) IsValid() bool {
	switch t {
	case FundTypeGeneral, FundTypeSpecialRevenue, FundTypeCapitalProjects, FundTypeDebtService,
		FundTypeEnterprise, FundTypeInternalService, FundTypeTrust:
		return true
	}
	return false
}

// Fund 基金
type Fund struct {
	ID          uint      `json:"id" gorm:"primaryKey"`
	Code        string    `json:"code" gorm:"size:20;not null;uniqueIndex"`
	Name        string    `json:"name" gorm:"size:100;not null"`
	Type        FundType  `json:"type" gorm:"size:30;not null;index"`
	Description string    `json:"description" gorm:"size:255"`
	IsActive    bool      `json:"is_active" gorm:"not null"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// TableName 设置表名
func (Fund) TableName() string {
	return "funds"
}
