package repository

import (
	"context"

	"wileywidget/models"

	"gorm.io/gorm"
)

// DepartmentRepository 部门仓储
type DepartmentRepository struct {
	db *gorm.DB
}

// NewDepartmentRepository 创建部门仓储
func NewDepartmentRepository(db *gorm.DB) *DepartmentRepository {
	return &DepartmentRepository{db: db}
}

// GetAll 全部部门
func (r *DepartmentRepository) GetAll(ctx context.Context) ([]models.Department, error) {
	var list []models.Department
	err := r.db.WithContext(ctx).Preload("Fund").Order("name ASC").Find(&list).Error
	return list, err
}

// GetEnterprise 企业型部门
func (r *DepartmentRepository) GetEnterprise(ctx context.Context) ([]models.Department, error) {
	var list []models.Department
	err := r.db.WithContext(ctx).Where("is_enterprise = ?", true).Order("name ASC").Find(&list).Error
	return list, err
}

// GetByID 根据ID获取
func (r *DepartmentRepository) GetByID(ctx context.Context, id uint) (*models.Department, error) {
	var d models.Department
	if err := r.db.WithContext(ctx).Preload("Fund").First(&d, id).Error; err != nil {
		return nil, translate(err)
	}
	return &d, nil
}

// GetByName 根据名称获取（忽略大小写）
func (r *DepartmentRepository) GetByName(ctx context.Context, name string) (*models.Department, error) {
	var d models.Department
	if err := r.db.WithContext(ctx).Where("LOWER(name) = LOWER(?)", name).First(&d).Error; err != nil {
		return nil, translate(err)
	}
	return &d, nil
}

func (r *DepartmentRepository) validate(ctx context.Context, d *models.Department) error {
	if d.Code == "" || d.Name == "" {
		return invalid("部门编码和名称不能为空")
	}
	if d.CurrentRate.IsNegative() {
		return invalid("费率不能为负数")
	}
	if d.ParentID != nil {
		if d.ID != 0 && *d.ParentID == d.ID {
			return invalid("部门不能以自身为上级")
		}
		if ok, err := exists(ctx, r.db, &models.Department{}, *d.ParentID); err != nil {
			return err
		} else if !ok {
			return invalid("上级部门不存在: %d", *d.ParentID)
		}
	}
	q := r.db.WithContext(ctx).Model(&models.Department{}).Where("code = ? OR name = ?", d.Code, d.Name)
	if d.ID != 0 {
		q = q.Where("id <> ?", d.ID)
	}
	return ensureUnique(q)
}

// Add 新增部门
func (r *DepartmentRepository) Add(ctx context.Context, d *models.Department) error {
	if err := r.validate(ctx, d); err != nil {
		return err
	}
	return translate(r.db.WithContext(ctx).Omit("Fund").Create(d).Error)
}

// Update 更新部门
func (r *DepartmentRepository) Update(ctx context.Context, d *models.Department) error {
	if _, err := r.GetByID(ctx, d.ID); err != nil {
		return err
	}
	if err := r.validate(ctx, d); err != nil {
		return err
	}
	return translate(r.db.WithContext(ctx).Omit("Fund", "CreatedAt").Save(d).Error)
}

// Delete 删除部门，存在下级部门或预算明细时禁止删除
func (r *DepartmentRepository) Delete(ctx context.Context, id uint) error {
	if _, err := r.GetByID(ctx, id); err != nil {
		return err
	}
	busy, err := hasDependents(ctx, r.db, id,
		dependent{&models.Department{}, "parent_id = ?"},
		dependent{&models.BudgetEntry{}, "department_id = ?"},
	)
	if err != nil {
		return err
	}
	if busy {
		return ErrHasDependents
	}
	return r.db.WithContext(ctx).Delete(&models.Department{}, id).Error
}
