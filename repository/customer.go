package repository

import (
	"context"
	"time"

	"wileywidget/cache"
	"wileywidget/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const customerCachePrefix = "customers:"

var customerSortable = map[string]string{
	"account_number":  "account_number",
	"last_name":       "last_name",
	"company_name":    "company_name",
	"current_balance": "current_balance",
	"created_at":      "created_at",
}

// CustomerFilter 用户列表过滤条件
type CustomerFilter struct {
	Status       models.CustomerStatus `form:"status"`
	CustomerType models.CustomerType   `form:"customer_type"`
}

// UtilityCustomerRepository 公用事业用户仓储
type UtilityCustomerRepository struct {
	db    *gorm.DB
	cache cache.Cache
	ttl   time.Duration
}

// NewUtilityCustomerRepository 创建用户仓储
func NewUtilityCustomerRepository(db *gorm.DB, c cache.Cache, ttl time.Duration) *UtilityCustomerRepository {
	return &UtilityCustomerRepository{db: db, cache: c, ttl: ttl}
}

func (r *UtilityCustomerRepository) invalidate(ctx context.Context) {
	if r.cache != nil {
		_ = r.cache.DeletePrefix(ctx, customerCachePrefix)
	}
}

// GetAll 全部用户
func (r *UtilityCustomerRepository) GetAll(ctx context.Context) ([]models.UtilityCustomer, error) {
	var list []models.UtilityCustomer
	err := r.db.WithContext(ctx).Order("account_number ASC").Find(&list).Error
	return list, err
}

// GetByID 根据ID获取
func (r *UtilityCustomerRepository) GetByID(ctx context.Context, id uint) (*models.UtilityCustomer, error) {
	var c models.UtilityCustomer
	if err := r.db.WithContext(ctx).First(&c, id).Error; err != nil {
		return nil, translate(err)
	}
	return &c, nil
}

// GetByAccountNumber 根据户号获取
func (r *UtilityCustomerRepository) GetByAccountNumber(ctx context.Context, number string) (*models.UtilityCustomer, error) {
	var c models.UtilityCustomer
	if err := r.db.WithContext(ctx).Where("account_number = ?", number).First(&c).Error; err != nil {
		return nil, translate(err)
	}
	return &c, nil
}

// GetPaged 分页查询，按状态、类型过滤并模糊搜索姓名、户号、地址和公司名
func (r *UtilityCustomerRepository) GetPaged(ctx context.Context, f CustomerFilter, q PageQuery) (Page[models.UtilityCustomer], error) {
	q = q.Normalize()
	query := r.db.Model(&models.UtilityCustomer{})
	if f.Status != "" {
		query = query.Where("status = ?", f.Status)
	}
	if f.CustomerType != "" {
		query = query.Where("customer_type = ?", f.CustomerType)
	}
	if q.Search != "" {
		p := likePattern(q.Search)
		query = query.Where(
			"LOWER(first_name) LIKE ? OR LOWER(last_name) LIKE ? OR LOWER(account_number) LIKE ? OR LOWER(service_address) LIKE ? OR LOWER(company_name) LIKE ?",
			p, p, p, p, p)
	}
	return paginate[models.UtilityCustomer](ctx, query, q, customerSortable, "account_number ASC")
}

// GetActiveCount 活跃用户数（缓存）
func (r *UtilityCustomerRepository) GetActiveCount(ctx context.Context) (int64, error) {
	key := customerCachePrefix + "active_count"
	if n, ok := cache.GetJSON[int64](ctx, r.cache, key); ok {
		return n, nil
	}
	var n int64
	if err := r.db.WithContext(ctx).Model(&models.UtilityCustomer{}).
		Where("status = ?", models.CustomerActive).Count(&n).Error; err != nil {
		return 0, err
	}
	cache.SetJSON(ctx, r.cache, key, n, r.ttl)
	return n, nil
}

// GetWithBalanceOver 欠费余额大于 min 的用户
func (r *UtilityCustomerRepository) GetWithBalanceOver(ctx context.Context, min decimal.Decimal) ([]models.UtilityCustomer, error) {
	var all []models.UtilityCustomer
	if err := r.db.WithContext(ctx).Order("account_number ASC").Find(&all).Error; err != nil {
		return nil, err
	}
	// 十进制比较在 Go 中完成，不依赖各数据库的数值比较规则
	list := make([]models.UtilityCustomer, 0)
	for _, c := range all {
		if c.CurrentBalance.GreaterThan(min) {
			list = append(list, c)
		}
	}
	return list, nil
}

// GetByServiceLocation 按服务区域查询
func (r *UtilityCustomerRepository) GetByServiceLocation(ctx context.Context, loc models.ServiceLocation) ([]models.UtilityCustomer, error) {
	var list []models.UtilityCustomer
	err := r.db.WithContext(ctx).Where("service_location = ?", loc).Order("account_number ASC").Find(&list).Error
	return list, err
}

func validateCustomer(c *models.UtilityCustomer) error {
	if c.AccountNumber == "" {
		return invalid("户号不能为空")
	}
	if c.ServiceAddress == "" {
		return invalid("服务地址不能为空")
	}
	if !c.CustomerType.IsValid() {
		return invalid("无效的用户类型: %s", c.CustomerType)
	}
	if c.Status != "" && !c.Status.IsValid() {
		return invalid("无效的用户状态: %s", c.Status)
	}
	if c.ServiceLocation != "" && c.ServiceLocation != models.InsideCityLimits && c.ServiceLocation != models.OutsideCityLimits {
		return invalid("无效的服务区域: %s", c.ServiceLocation)
	}
	if c.DisplayName() == "" {
		return invalid("姓名或公司名至少填写一项")
	}
	return nil
}

func (r *UtilityCustomerRepository) checkAccountNumber(ctx context.Context, c *models.UtilityCustomer) error {
	q := r.db.WithContext(ctx).Model(&models.UtilityCustomer{}).Where("account_number = ?", c.AccountNumber)
	if c.ID != 0 {
		q = q.Where("id <> ?", c.ID)
	}
	return ensureUnique(q)
}

// Add 新增用户，户号重复返回 ErrDuplicate
func (r *UtilityCustomerRepository) Add(ctx context.Context, c *models.UtilityCustomer) error {
	if err := validateCustomer(c); err != nil {
		return err
	}
	if err := r.checkAccountNumber(ctx, c); err != nil {
		return err
	}
	if c.Status == "" {
		c.Status = models.CustomerActive
	}
	if c.ServiceLocation == "" {
		c.ServiceLocation = models.InsideCityLimits
	}
	if err := r.db.WithContext(ctx).Create(c).Error; err != nil {
		return translate(err)
	}
	r.invalidate(ctx)
	return nil
}

// Update 更新用户
func (r *UtilityCustomerRepository) Update(ctx context.Context, c *models.UtilityCustomer) error {
	if _, err := r.GetByID(ctx, c.ID); err != nil {
		return err
	}
	if err := validateCustomer(c); err != nil {
		return err
	}
	if err := r.checkAccountNumber(ctx, c); err != nil {
		return err
	}
	if err := r.db.WithContext(ctx).Omit("CreatedAt").Save(c).Error; err != nil {
		return translate(err)
	}
	r.invalidate(ctx)
	return nil
}

// Delete 删除用户
func (r *UtilityCustomerRepository) Delete(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).Delete(&models.UtilityCustomer{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	r.invalidate(ctx)
	return nil
}
