package models

import (
	"time"

	"gorm.io/gorm"
)

const (
	// UserStatusLocked 锁定：不可登录
	UserStatusLocked = "locked"
	// UserStatusActive 正常：可登录
	UserStatusActive = "active"
)

// 用户角色
const (
	RoleAdmin   = "admin"   // 系统管理员，可管理用户
	RoleFinance = "finance" // 财务人员，可维护全部业务数据
	RoleViewer  = "viewer"  // 只读
)

// ValidRole 校验角色
func ValidRole(role string) bool {
	return role == RoleAdmin || role == RoleFinance || role == RoleViewer
}

// User 用户模型
type User struct {
	ID        uint           `json:"id" gorm:"primaryKey"`
	Username  string         `json:"username" gorm:"uniqueIndex;size:50;not null"`
	Password  string         `json:"-" gorm:"size:255;not null"`
	Email     string         `json:"email" gorm:"size:100"`
	Role      string         `json:"role" gorm:"size:20;not null;default:viewer;index"`
	Status    string         `json:"status" gorm:"size:20;default:active;index"` // 用户状态：locked/active
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
}

// TableName 设置表名
func (User) TableName() string {
	return "users"
}

// IsAdmin 是否为管理员
func (u User) IsAdmin() bool {
	return u.Role == RoleAdmin
}
