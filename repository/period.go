package repository

import (
	"context"
	"fmt"

	"wileywidget/models"

	"gorm.io/gorm"
)

// BudgetPeriodRepository 预算周期仓储
type BudgetPeriodRepository struct {
	db *gorm.DB
}

// NewBudgetPeriodRepository 创建预算周期仓储
func NewBudgetPeriodRepository(db *gorm.DB) *BudgetPeriodRepository {
	return &BudgetPeriodRepository{db: db}
}

// GetAll 全部预算周期（年份倒序）
func (r *BudgetPeriodRepository) GetAll(ctx context.Context) ([]models.BudgetPeriod, error) {
	var list []models.BudgetPeriod
	err := r.db.WithContext(ctx).Order("year DESC").Find(&list).Error
	return list, err
}

// GetByID 根据ID获取
func (r *BudgetPeriodRepository) GetByID(ctx context.Context, id uint) (*models.BudgetPeriod, error) {
	var p models.BudgetPeriod
	if err := r.db.WithContext(ctx).First(&p, id).Error; err != nil {
		return nil, translate(err)
	}
	return &p, nil
}

// GetActive 当前生效的预算周期
func (r *BudgetPeriodRepository) GetActive(ctx context.Context) (*models.BudgetPeriod, error) {
	var p models.BudgetPeriod
	if err := r.db.WithContext(ctx).Where("is_active = ?", true).First(&p).Error; err != nil {
		return nil, translate(err)
	}
	return &p, nil
}

func (r *BudgetPeriodRepository) validate(ctx context.Context, p *models.BudgetPeriod) error {
	if p.Year < 1900 || p.Year > 2100 {
		return invalid("年份超出范围: %d", p.Year)
	}
	if p.Status != "" && !p.Status.IsValid() {
		return invalid("无效的预算状态: %s", p.Status)
	}
	if p.StartDate.IsZero() || p.EndDate.IsZero() || !p.EndDate.After(p.StartDate) {
		return invalid("结束日期必须晚于开始日期")
	}
	q := r.db.WithContext(ctx).Model(&models.BudgetPeriod{}).Where("year = ?", p.Year)
	if p.ID != 0 {
		q = q.Where("id <> ?", p.ID)
	}
	return ensureUnique(q)
}

// Add 新增预算周期，新周期总是以未激活状态创建
func (r *BudgetPeriodRepository) Add(ctx context.Context, p *models.BudgetPeriod) error {
	if err := r.validate(ctx, p); err != nil {
		return err
	}
	if p.Name == "" {
		p.Name = fmt.Sprintf("FY %d", p.Year)
	}
	if p.Status == "" {
		p.Status = models.BudgetStatusDraft
	}
	p.IsActive = false
	return translate(r.db.WithContext(ctx).Create(p).Error)
}

// Update 更新名称与起止日期，状态与激活标记通过专门的方法修改
func (r *BudgetPeriodRepository) Update(ctx context.Context, p *models.BudgetPeriod) error {
	existing, err := r.GetByID(ctx, p.ID)
	if err != nil {
		return err
	}
	p.Status = existing.Status
	p.IsActive = existing.IsActive
	if err := r.validate(ctx, p); err != nil {
		return err
	}
	return translate(r.db.WithContext(ctx).Omit("CreatedAt").Save(p).Error)
}

// Delete 删除预算周期，生效中的周期不可删除
func (r *BudgetPeriodRepository) Delete(ctx context.Context, id uint) error {
	p, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if p.IsActive {
		return ErrHasDependents
	}
	return r.db.WithContext(ctx).Delete(&models.BudgetPeriod{}, id).Error
}

// Activate 在同一事务中取消所有周期的激活状态，再激活指定周期
func (r *BudgetPeriodRepository) Activate(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var p models.BudgetPeriod
		if err := tx.First(&p, id).Error; err != nil {
			return translate(err)
		}
		if err := tx.Model(&models.BudgetPeriod{}).Where("is_active = ?", true).
			Update("is_active", false).Error; err != nil {
			return err
		}
		return tx.Model(&models.BudgetPeriod{}).Where("id = ?", id).Update("is_active", true).Error
	})
}

// AdvanceStatus 推进预算状态，只允许前进
func (r *BudgetPeriodRepository) AdvanceStatus(ctx context.Context, id uint, to models.BudgetStatus) (*models.BudgetPeriod, error) {
	p, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !p.Status.CanAdvanceTo(to) {
		return nil, fmt.Errorf("%w: %s → %s", ErrInvalidTransition, p.Status, to)
	}
	if err := r.db.WithContext(ctx).Model(p).Update("status", to).Error; err != nil {
		return nil, err
	}
	p.Status = to
	return p, nil
}
