package repository

import (
	"context"
	"fmt"
	"time"

	"wileywidget/models"

	"gorm.io/gorm"
)

var invoiceSortable = map[string]string{
	"invoice_number": "invoice_number",
	"amount":         "amount",
	"invoice_date":   "invoice_date",
	"due_date":       "due_date",
	"status":         "status",
}

// InvoiceRepository 发票仓储
type InvoiceRepository struct {
	db *gorm.DB
}

// NewInvoiceRepository 创建发票仓储
func NewInvoiceRepository(db *gorm.DB) *InvoiceRepository {
	return &InvoiceRepository{db: db}
}

// GetByID 根据ID获取
func (r *InvoiceRepository) GetByID(ctx context.Context, id uint) (*models.Invoice, error) {
	var inv models.Invoice
	if err := r.db.WithContext(ctx).Preload("Vendor").First(&inv, id).Error; err != nil {
		return nil, translate(err)
	}
	return &inv, nil
}

// GetPaged 分页查询，status 为空时不过滤
func (r *InvoiceRepository) GetPaged(ctx context.Context, status models.InvoiceStatus, q PageQuery) (Page[models.Invoice], error) {
	q = q.Normalize()
	query := r.db.Model(&models.Invoice{})
	if status != "" {
		query = query.Where("status = ?", status)
	}
	if q.Search != "" {
		p := likePattern(q.Search)
		query = query.Where("LOWER(invoice_number) LIKE ? OR LOWER(description) LIKE ?", p, p)
	}
	return paginate[models.Invoice](ctx, query, q, invoiceSortable, "due_date ASC", "Vendor")
}

// GetOverdue 在 asOf 之前到期且未结清的发票
func (r *InvoiceRepository) GetOverdue(ctx context.Context, asOf time.Time) ([]models.Invoice, error) {
	var list []models.Invoice
	err := r.db.WithContext(ctx).Preload("Vendor").
		Where("due_date < ? AND status NOT IN ?", asOf, []models.InvoiceStatus{models.InvoicePaid, models.InvoiceVoid}).
		Order("due_date ASC").Find(&list).Error
	return list, err
}

func (r *InvoiceRepository) validate(ctx context.Context, inv *models.Invoice) error {
	if inv.InvoiceNumber == "" {
		return invalid("发票号不能为空")
	}
	if !inv.Amount.IsPositive() {
		return invalid("发票金额必须大于 0")
	}
	if inv.InvoiceDate.IsZero() || inv.DueDate.IsZero() {
		return invalid("发票日期和到期日不能为空")
	}
	if inv.DueDate.Before(inv.InvoiceDate) {
		return invalid("到期日不能早于发票日期")
	}
	if ok, err := exists(ctx, r.db, &models.Vendor{}, inv.VendorID); err != nil {
		return err
	} else if !ok {
		return invalid("供应商不存在: %d", inv.VendorID)
	}
	if ok, err := exists(ctx, r.db, &models.MunicipalAccount{}, inv.MunicipalAccountID); err != nil {
		return err
	} else if !ok {
		return invalid("科目不存在: %d", inv.MunicipalAccountID)
	}
	q := r.db.WithContext(ctx).Model(&models.Invoice{}).Where("invoice_number = ?", inv.InvoiceNumber)
	if inv.ID != 0 {
		q = q.Where("id <> ?", inv.ID)
	}
	return ensureUnique(q)
}

// Add 新增发票，状态固定为 Pending
func (r *InvoiceRepository) Add(ctx context.Context, inv *models.Invoice) error {
	inv.Status = models.InvoicePending
	inv.PaidDate = nil
	if err := r.validate(ctx, inv); err != nil {
		return err
	}
	return translate(r.db.WithContext(ctx).Omit("Vendor").Create(inv).Error)
}

// Update 更新发票内容，状态不在此修改，终态发票不可编辑
func (r *InvoiceRepository) Update(ctx context.Context, inv *models.Invoice) error {
	existing, err := r.GetByID(ctx, inv.ID)
	if err != nil {
		return err
	}
	if existing.Status.IsTerminal() {
		return fmt.Errorf("%w: %s 状态的发票不可编辑", ErrInvalidTransition, existing.Status)
	}
	inv.Status = existing.Status
	inv.PaidDate = existing.PaidDate
	if err := r.validate(ctx, inv); err != nil {
		return err
	}
	return translate(r.db.WithContext(ctx).Omit("Vendor", "CreatedAt").Save(inv).Error)
}

// UpdateStatus 按流转规则修改状态，Paid 需通过 MarkPaid
func (r *InvoiceRepository) UpdateStatus(ctx context.Context, id uint, status models.InvoiceStatus) (*models.Invoice, error) {
	if status == models.InvoicePaid {
		return r.MarkPaid(ctx, id, time.Now())
	}
	inv, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !inv.Status.CanTransitionTo(status) {
		return nil, fmt.Errorf("%w: %s → %s", ErrInvalidTransition, inv.Status, status)
	}
	if err := r.db.WithContext(ctx).Model(&models.Invoice{}).Where("id = ?", id).Update("status", status).Error; err != nil {
		return nil, err
	}
	inv.Status = status
	return inv, nil
}

// MarkPaid 标记已付款
func (r *InvoiceRepository) MarkPaid(ctx context.Context, id uint, paidDate time.Time) (*models.Invoice, error) {
	inv, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !inv.Status.CanTransitionTo(models.InvoicePaid) {
		return nil, fmt.Errorf("%w: %s → %s", ErrInvalidTransition, inv.Status, models.InvoicePaid)
	}
	if err := r.db.WithContext(ctx).Model(&models.Invoice{}).Where("id = ?", id).Updates(map[string]any{
		"status":    models.InvoicePaid,
		"paid_date": paidDate,
	}).Error; err != nil {
		return nil, err
	}
	inv.Status = models.InvoicePaid
	inv.PaidDate = &paidDate
	return inv, nil
}

// Delete 只能删除 Pending 状态的发票
func (r *InvoiceRepository) Delete(ctx context.Context, id uint) error {
	inv, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if inv.Status != models.InvoicePending {
		return fmt.Errorf("%w: 只能删除 Pending 状态的发票", ErrInvalidTransition)
	}
	return r.db.WithContext(ctx).Delete(&models.Invoice{}, id).Error
}
