package models

import "time"

// Vendor 供应商
type Vendor struct {
	ID           uint      `json:"id" gorm:"primaryKey"`
	Name         string    `json:"name" gorm:"size:150;not null;uniqueIndex"`
	ContactEmail string    `json:"contact_email" gorm:"size:100"`
	Phone        string    `json:"phone" gorm:"size:30"`
	IsActive     bool      `json:"is_active" gorm:"not null"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// TableName 设置表名
func (Vendor) TableName() string {
	return "vendors"
}
