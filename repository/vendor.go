package repository

import (
	"context"

	"wileywidget/models"

	"gorm.io/gorm"
)

var vendorSortable = map[string]string{
	"name":       "name",
	"created_at": "created_at",
}

// VendorRepository 供应商仓储
type VendorRepository struct {
	db *gorm.DB
}

// NewVendorRepository 创建供应商仓储
func NewVendorRepository(db *gorm.DB) *VendorRepository {
	return &VendorRepository{db: db}
}

// GetPaged 分页查询
func (r *VendorRepository) GetPaged(ctx context.Context, q PageQuery) (Page[models.Vendor], error) {
	q = q.Normalize()
	query := r.db.Model(&models.Vendor{})
	if q.Search != "" {
		p := likePattern(q.Search)
		query = query.Where("LOWER(name) LIKE ? OR LOWER(contact_email) LIKE ?", p, p)
	}
	return paginate[models.Vendor](ctx, query, q, vendorSortable, "name ASC")
}

// GetByID 根据ID获取
func (r *VendorRepository) GetByID(ctx context.Context, id uint) (*models.Vendor, error) {
	var v models.Vendor
	if err := r.db.WithContext(ctx).First(&v, id).Error; err != nil {
		return nil, translate(err)
	}
	return &v, nil
}

func (r *VendorRepository) checkName(ctx context.Context, v *models.Vendor) error {
	if v.Name == "" {
		return invalid("供应商名称不能为空")
	}
	q := r.db.WithContext(ctx).Model(&models.Vendor{}).Where("name = ?", v.Name)
	if v.ID != 0 {
		q = q.Where("id <> ?", v.ID)
	}
	return ensureUnique(q)
}

// Add 新增供应商
func (r *VendorRepository) Add(ctx context.Context, v *models.Vendor) error {
	if err := r.checkName(ctx, v); err != nil {
		return err
	}
	return translate(r.db.WithContext(ctx).Create(v).Error)
}

// Update 更新供应商
func (r *VendorRepository) Update(ctx context.Context, v *models.Vendor) error {
	if _, err := r.GetByID(ctx, v.ID); err != nil {
		return err
	}
	if err := r.checkName(ctx, v); err != nil {
		return err
	}
	return translate(r.db.WithContext(ctx).Omit("CreatedAt").Save(v).Error)
}

// Delete 删除供应商，存在发票时禁止删除
func (r *VendorRepository) Delete(ctx context.Context, id uint) error {
	if _, err := r.GetByID(ctx, id); err != nil {
		return err
	}
	busy, err := hasDependents(ctx, r.db, id, dependent{&models.Invoice{}, "vendor_id = ?"})
	if err != nil {
		return err
	}
	if busy {
		return ErrHasDependents
	}
	return r.db.WithContext(ctx).Delete(&models.Vendor{}, id).Error
}
