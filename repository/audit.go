package repository

import (
	"context"
	"time"

	"wileywidget/models"

	"gorm.io/gorm"
)

// AuditFilter 审计查询条件，零值字段不过滤
type AuditFilter struct {
	EntityType string    `form:"entity_type"`
	From       time.Time `form:"from" time_format:"2006-01-02"`
	To         time.Time `form:"to" time_format:"2006-01-02"`
}

// AuditRepository 审计记录仓储，只追加
type AuditRepository struct {
	db *gorm.DB
}

// NewAuditRepository 创建审计仓储
func NewAuditRepository(db *gorm.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// Add 追加审计记录
func (r *AuditRepository) Add(ctx context.Context, e *models.AuditEntry) error {
	if e.EntityType == "" || e.Action == "" {
		return invalid("审计记录缺少实体类型或动作")
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	return r.db.WithContext(ctx).Create(e).Error
}

// GetByEntity 某实体的审计记录（时间倒序）
func (r *AuditRepository) GetByEntity(ctx context.Context, entityType string, entityID uint) ([]models.AuditEntry, error) {
	var list []models.AuditEntry
	err := r.db.WithContext(ctx).
		Where("entity_type = ? AND entity_id = ?", entityType, entityID).
		Order("timestamp DESC, id DESC").Find(&list).Error
	return list, err
}

// GetPaged 分页查询
func (r *AuditRepository) GetPaged(ctx context.Context, f AuditFilter, q PageQuery) (Page[models.AuditEntry], error) {
	q = q.Normalize()
	query := r.db.Model(&models.AuditEntry{})
	if f.EntityType != "" {
		query = query.Where("entity_type = ?", f.EntityType)
	}
	if !f.From.IsZero() {
		query = query.Where("timestamp >= ?", f.From)
	}
	if !f.To.IsZero() {
		query = query.Where("timestamp <= ?", f.To)
	}
	return paginate[models.AuditEntry](ctx, query, q, map[string]string{"timestamp": "timestamp"}, "timestamp DESC, id DESC")
}
