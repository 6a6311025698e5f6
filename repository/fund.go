package repository

import (
	"context"

	"wileywidget/models"

	"gorm.io/gorm"
)

// FundRepository 基金仓储
type FundRepository struct {
	db *gorm.DB
}

// NewFundRepository 创建基金仓储
func NewFundRepository(db *gorm.DB) *FundRepository {
	return &FundRepository{db: db}
}

// GetAll 全部基金
func (r *FundRepository) GetAll(ctx context.Context) ([]models.Fund, error) {
	var list []models.Fund
	err := r.db.WithContext(ctx).Order("code ASC").Find(&list).Error
	return list, err
}

// GetByID 根据ID获取
func (r *FundRepository) GetByID(ctx context.Context, id uint) (*models.Fund, error) {
	var f models.Fund
	if err := r.db.WithContext(ctx).First(&f, id).Error; err != nil {
		return nil, translate(err)
	}
	return &f, nil
}

// GetByCode 根据编码获取
func (r *FundRepository) GetByCode(ctx context.Context, code string) (*models.Fund, error) {
	var f models.Fund
	if err := r.db.WithContext(ctx).Where("code = ?", code).First(&f).Error; err != nil {
		return nil, translate(err)
	}
	return &f, nil
}

func (r *FundRepository) validate(ctx context.Context, f *models.Fund) error {
	if f.Code == "" || f.Name == "" {
		return invalid("基金编码和名称不能为空")
	}
	if !f.Type.IsValid() {
		return invalid("无效的基金类型: %s", f.Type)
	}
	q := r.db.WithContext(ctx).Model(&models.Fund{}).Where("code = ?", f.Code)
	if f.ID != 0 {
		q = q.Where("id <> ?", f.ID)
	}
	return ensureUnique(q)
}

// Add 新增基金
func (r *FundRepository) Add(ctx context.Context, f *models.Fund) error {
	if err := r.validate(ctx, f); err != nil {
		return err
	}
	return translate(r.db.WithContext(ctx).Create(f).Error)
}

// Update 更新基金
func (r *FundRepository) Update(ctx context.Context, f *models.Fund) error {
	if _, err := r.GetByID(ctx, f.ID); err != nil {
		return err
	}
	if err := r.validate(ctx, f); err != nil {
		return err
	}
	return translate(r.db.WithContext(ctx).Omit("CreatedAt").Save(f).Error)
}

// Delete 删除基金，存在科目、部门或预算明细时禁止删除
func (r *FundRepository) Delete(ctx context.Context, id uint) error {
	if _, err := r.GetByID(ctx, id); err != nil {
		return err
	}
	busy, err := hasDependents(ctx, r.db, id,
		dependent{&models.MunicipalAccount{}, "fund_id = ?"},
		dependent{&models.Department{}, "fund_id = ?"},
		dependent{&models.BudgetEntry{}, "fund_id = ?"},
	)
	if err != nil {
		return err
	}
	if busy {
		return ErrHasDependents
	}
	return r.db.WithContext(ctx).Delete(&models.Fund{}, id).Error
}
