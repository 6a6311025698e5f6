package repository

import (
	"context"
	"time"

	"wileywidget/cache"
	"wileywidget/models"

	"gorm.io/gorm"
)

const accountCachePrefix = "accounts:"

var accountSortable = map[string]string{
	"account_number": "account_number",
	"name":           "name",
	"type":           "type",
	"balance":        "balance",
}

// MunicipalAccountRepository 会计科目仓储，列表查询带缓存
type MunicipalAccountRepository struct {
	db    *gorm.DB
	cache cache.Cache
	ttl   time.Duration
}

// NewMunicipalAccountRepository 创建科目仓储，c 为 nil 时不缓存
func NewMunicipalAccountRepository(db *gorm.DB, c cache.Cache, ttl time.Duration) *MunicipalAccountRepository {
	return &MunicipalAccountRepository{db: db, cache: c, ttl: ttl}
}

func (r *MunicipalAccountRepository) cached(ctx context.Context, key string, load func() ([]models.MunicipalAccount, error)) ([]models.MunicipalAccount, error) {
	if list, ok := cache.GetJSON[[]models.MunicipalAccount](ctx, r.cache, key); ok {
		return list, nil
	}
	list, err := load()
	if err != nil {
		return nil, err
	}
	cache.SetJSON(ctx, r.cache, key, list, r.ttl)
	return list, nil
}

func (r *MunicipalAccountRepository) invalidate(ctx context.Context) {
	if r.cache != nil {
		_ = r.cache.DeletePrefix(ctx, accountCachePrefix)
	}
}

// GetAll 全部科目（按编号排序）
func (r *MunicipalAccountRepository) GetAll(ctx context.Context) ([]models.MunicipalAccount, error) {
	return r.cached(ctx, accountCachePrefix+"all", func() ([]models.MunicipalAccount, error) {
		var list []models.MunicipalAccount
		err := r.db.WithContext(ctx).Order("account_number ASC").Find(&list).Error
		return list, err
	})
}

// GetByFund 某基金下的科目
func (r *MunicipalAccountRepository) GetByFund(ctx context.Context, fundID uint) ([]models.MunicipalAccount, error) {
	return r.cached(ctx, cache.Key(accountCachePrefix+"fund", fundID), func() ([]models.MunicipalAccount, error) {
		var list []models.MunicipalAccount
		err := r.db.WithContext(ctx).Where("fund_id = ?", fundID).Order("account_number ASC").Find(&list).Error
		return list, err
	})
}

// GetByType 某类型的科目
func (r *MunicipalAccountRepository) GetByType(ctx context.Context, t models.AccountType) ([]models.MunicipalAccount, error) {
	return r.cached(ctx, cache.Key(accountCachePrefix+"type", t), func() ([]models.MunicipalAccount, error) {
		var list []models.MunicipalAccount
		err := r.db.WithContext(ctx).Where("type = ?", t).Order("account_number ASC").Find(&list).Error
		return list, err
	})
}

// GetByID 根据ID获取
func (r *MunicipalAccountRepository) GetByID(ctx context.Context, id uint) (*models.MunicipalAccount, error) {
	var a models.MunicipalAccount
	if err := r.db.WithContext(ctx).Preload("Fund").First(&a, id).Error; err != nil {
		return nil, translate(err)
	}
	return &a, nil
}

// GetByNumber 根据科目编号获取
func (r *MunicipalAccountRepository) GetByNumber(ctx context.Context, number string) (*models.MunicipalAccount, error) {
	var a models.MunicipalAccount
	if err := r.db.WithContext(ctx).Where("account_number = ?", number).First(&a).Error; err != nil {
		return nil, translate(err)
	}
	return &a, nil
}

// GetByQuickBooksID 根据 QuickBooks 科目ID获取
func (r *MunicipalAccountRepository) GetByQuickBooksID(ctx context.Context, qbID string) (*models.MunicipalAccount, error) {
	var a models.MunicipalAccount
	if err := r.db.WithContext(ctx).Where("quickbooks_id = ?", qbID).First(&a).Error; err != nil {
		return nil, translate(err)
	}
	return &a, nil
}

// GetChildren 子科目
func (r *MunicipalAccountRepository) GetChildren(ctx context.Context, id uint) ([]models.MunicipalAccount, error) {
	var list []models.MunicipalAccount
	err := r.db.WithContext(ctx).Where("parent_account_id = ?", id).Order("account_number ASC").Find(&list).Error
	return list, err
}

// GetPaged 分页查询，accountType 为空时不过滤
func (r *MunicipalAccountRepository) GetPaged(ctx context.Context, accountType models.AccountType, q PageQuery) (Page[models.MunicipalAccount], error) {
	q = q.Normalize()
	query := r.db.Model(&models.MunicipalAccount{})
	if accountType != "" {
		query = query.Where("type = ?", accountType)
	}
	if q.Search != "" {
		p := likePattern(q.Search)
		query = query.Where("LOWER(account_number) LIKE ? OR LOWER(name) LIKE ?", p, p)
	}
	return paginate[models.MunicipalAccount](ctx, query, q, accountSortable, "account_number ASC")
}

func (r *MunicipalAccountRepository) validate(ctx context.Context, a *models.MunicipalAccount) error {
	if !models.ValidAccountNumber(a.AccountNumber) {
		return invalid("科目编号格式错误: %q", a.AccountNumber)
	}
	if a.Name == "" {
		return invalid("科目名称不能为空")
	}
	if !a.Type.IsValid() {
		return invalid("无效的科目类型: %s", a.Type)
	}
	if ok, err := exists(ctx, r.db, &models.Fund{}, a.FundID); err != nil {
		return err
	} else if !ok {
		return invalid("基金不存在: %d", a.FundID)
	}
	if a.ParentAccountID != nil {
		if a.ID != 0 && *a.ParentAccountID == a.ID {
			return invalid("科目不能以自身为上级")
		}
		var parent models.MunicipalAccount
		if err := r.db.WithContext(ctx).First(&parent, *a.ParentAccountID).Error; err != nil {
			return invalid("上级科目不存在: %d", *a.ParentAccountID)
		}
		if !models.IsChildNumberOf(a.AccountNumber, parent.AccountNumber) {
			return invalid("子科目编号 %s 必须以上级编号 %s. 开头", a.AccountNumber, parent.AccountNumber)
		}
	}
	q := r.db.WithContext(ctx).Model(&models.MunicipalAccount{}).Where("account_number = ?", a.AccountNumber)
	if a.ID != 0 {
		q = q.Where("id <> ?", a.ID)
	}
	return ensureUnique(q)
}

// Add 新增科目
func (r *MunicipalAccountRepository) Add(ctx context.Context, a *models.MunicipalAccount) error {
	if err := r.validate(ctx, a); err != nil {
		return err
	}
	if err := r.db.WithContext(ctx).Omit("Fund").Create(a).Error; err != nil {
		return translate(err)
	}
	r.invalidate(ctx)
	return nil
}

// Update 更新科目，已有子科目的科目不能修改编号
func (r *MunicipalAccountRepository) Update(ctx context.Context, a *models.MunicipalAccount) error {
	existing, err := r.GetByID(ctx, a.ID)
	if err != nil {
		return err
	}
	if existing.AccountNumber != a.AccountNumber {
		n, err := countWhere(ctx, r.db, &models.MunicipalAccount{}, "parent_account_id = ?", a.ID)
		if err != nil {
			return err
		}
		if n > 0 {
			return invalid("科目 %s 存在子科目，不能修改编号", existing.AccountNumber)
		}
	}
	if err := r.validate(ctx, a); err != nil {
		return err
	}
	if err := r.db.WithContext(ctx).Omit("Fund", "CreatedAt").Save(a).Error; err != nil {
		return translate(err)
	}
	r.invalidate(ctx)
	return nil
}

// Delete 删除科目，存在子科目、预算明细或发票时禁止删除
func (r *MunicipalAccountRepository) Delete(ctx context.Context, id uint) error {
	if _, err := r.GetByID(ctx, id); err != nil {
		return err
	}
	busy, err := hasDependents(ctx, r.db, id,
		dependent{&models.MunicipalAccount{}, "parent_account_id = ?"},
		dependent{&models.BudgetEntry{}, "municipal_account_id = ?"},
		dependent{&models.Invoice{}, "municipal_account_id = ?"},
	)
	if err != nil {
		return err
	}
	if busy {
		return ErrHasDependents
	}
	if err := r.db.WithContext(ctx).Delete(&models.MunicipalAccount{}, id).Error; err != nil {
		return err
	}
	r.invalidate(ctx)
	return nil
}
