package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Department 部门
// 企业型部门（Water、Sewer、Trash、Apartments）按用户收取服务费，CurrentRate 为每户每月费率
type Department struct {
	ID           uint            `json:"id" gorm:"primaryKey"`
	Code         string          `json:"code" gorm:"size:20;not null;uniqueIndex"`
	Name         string          `json:"name" gorm:"size:100;not null;uniqueIndex"`
	ParentID     *uint           `json:"parent_id" gorm:"index"`
	FundID       *uint           `json:"fund_id" gorm:"index"`
	IsEnterprise bool            `json:"is_enterprise" gorm:"default:false;index"`
	CurrentRate  decimal.Decimal `json:"current_rate" gorm:"type:decimal(18,2);not null;default:0"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`

	Fund *Fund `json:"fund,omitempty" gorm:"foreignKey:FundID"`
}

// TableName 设置表名
func (Department) TableName() string {
	return "departments"
}

// 默认企业型部门
const (
	DepartmentWater      = "Water"
	DepartmentSewer      = "Sewer"
	DepartmentTrash      = "Trash"
	DepartmentApartments = "Apartments"
)
