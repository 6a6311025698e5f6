package repository

import (
	"context"
	"time"

	"wileywidget/models"

	"gorm.io/gorm"
)

// TransactionRepository 交易仓储
type TransactionRepository struct {
	db *gorm.DB
}

// NewTransactionRepository 创建交易仓储
func NewTransactionRepository(db *gorm.DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

// GetByID 根据ID获取
func (r *TransactionRepository) GetByID(ctx context.Context, id uint) (*models.Transaction, error) {
	var t models.Transaction
	if err := r.db.WithContext(ctx).First(&t, id).Error; err != nil {
		return nil, translate(err)
	}
	return &t, nil
}

// GetByBudgetEntry 预算明细下的交易（日期倒序）
func (r *TransactionRepository) GetByBudgetEntry(ctx context.Context, budgetEntryID uint) ([]models.Transaction, error) {
	var list []models.Transaction
	err := r.db.WithContext(ctx).Where("budget_entry_id = ?", budgetEntryID).
		Order("transaction_date DESC, id DESC").Find(&list).Error
	return list, err
}

// GetByDateRange 日期区间内的交易，包含两端
func (r *TransactionRepository) GetByDateRange(ctx context.Context, from, to time.Time) ([]models.Transaction, error) {
	var list []models.Transaction
	err := r.db.WithContext(ctx).Where("transaction_date BETWEEN ? AND ?", from, to).
		Order("transaction_date ASC, id ASC").Find(&list).Error
	return list, err
}

// adjustActual 在数据库端按带符号金额调整预算明细的实际发生额，并发记账不会互相覆盖
func adjustActual(tx *gorm.DB, t *models.Transaction, reverse bool) error {
	delta := t.SignedAmount()
	if reverse {
		delta = delta.Neg()
	}
	res := tx.Model(&models.BudgetEntry{}).Where("id = ?", t.BudgetEntryID).
		Update("actual_amount", gorm.Expr("actual_amount + ?", delta.Round(2)))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return invalid("预算明细不存在: %d", t.BudgetEntryID)
	}
	return nil
}

// Post 记账：写入交易并调整预算明细实际发生额
func (r *TransactionRepository) Post(ctx context.Context, t *models.Transaction) error {
	if t.Amount.IsZero() {
		return invalid("交易金额不能为 0")
	}
	if t.Type != models.TransactionDebit && t.Type != models.TransactionCredit {
		return invalid("无效的交易类型: %s", t.Type)
	}
	if t.TransactionDate.IsZero() {
		t.TransactionDate = time.Now()
	}
	t.Amount = t.Amount.Abs()
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := adjustActual(tx, t, false); err != nil {
			return err
		}
		return tx.Create(t).Error
	})
}

// Delete 删除交易并冲回实际发生额
func (r *TransactionRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var t models.Transaction
		if err := tx.First(&t, id).Error; err != nil {
			return translate(err)
		}
		// 先删除再冲回，并发删除同一笔交易时只有一方能删到行
		res := tx.Delete(&models.Transaction{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return adjustActual(tx, &t, true)
	})
}
