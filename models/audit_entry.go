package models

import "time"

// AuditAction 审计动作
type AuditAction string

const (
	AuditCreate AuditAction = "Create"
	AuditUpdate AuditAction = "Update"
	AuditDelete AuditAction = "Delete"
	AuditSync   AuditAction = "Sync"
)

// AuditEntry 审计记录，只追加不修改
type AuditEntry struct {
	ID         uint        `json:"id" gorm:"primaryKey"`
	EntityType string      `json:"entity_type" gorm:"size:50;not null;index:idx_audit_entity"`
	EntityID   uint        `json:"entity_id" gorm:"not null;index:idx_audit_entity"`
	Action     AuditAction `json:"action" gorm:"size:20;not null"`
	Username   string      `json:"username" gorm:"size:50"`
	Changes    string      `json:"changes" gorm:"type:text"`
	Timestamp  time.Time   `json:"timestamp" gorm:"not null;index"`
}

// TableName 设置表名
func (AuditEntry) TableName() string {
	return "audit_entries"
}
