package repository

import (
	"context"
	"errors"
	"sort"

	"wileywidget/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var budgetSortable = map[string]string{
	"account_number":  "account_number",
	"budgeted_amount": "budgeted_amount",
	"actual_amount":   "actual_amount",
	"fiscal_year":     "fiscal_year",
	"created_at":      "created_at",
}

// BudgetRepository 预算明细仓储
type BudgetRepository struct {
	db *gorm.DB
}

// NewBudgetRepository 创建预算明细仓储
func NewBudgetRepository(db *gorm.DB) *BudgetRepository {
	return &BudgetRepository{db: db}
}

// GroupTotal 分组汇总
type GroupTotal struct {
	Key      string          `json:"key"`
	Budgeted decimal.Decimal `json:"budgeted"`
	Actual   decimal.Decimal `json:"actual"`
	Variance decimal.Decimal `json:"variance"`
}

// BudgetSummary 财年预算汇总
type BudgetSummary struct {
	FiscalYear       int             `json:"fiscal_year"`
	EntryCount       int             `json:"entry_count"`
	OverBudgetCount  int             `json:"over_budget_count"`
	TotalBudgeted    decimal.Decimal `json:"total_budgeted"`
	TotalActual      decimal.Decimal `json:"total_actual"`
	TotalVariance    decimal.Decimal `json:"total_variance"`
	TotalEncumbrance decimal.Decimal `json:"total_encumbrance"`
	ByFundType       []GroupTotal    `json:"by_fund_type"`
	ByDepartment     []GroupTotal    `json:"by_department"`
}

// GetByID 根据ID获取
func (r *BudgetRepository) GetByID(ctx context.Context, id uint) (*models.BudgetEntry, error) {
	var e models.BudgetEntry
	if err := r.db.WithContext(ctx).First(&e, id).Error; err != nil {
		return nil, translate(err)
	}
	return &e, nil
}

// GetByFiscalYear 获取某财年全部预算明细
func (r *BudgetRepository) GetByFiscalYear(ctx context.Context, fiscalYear int) ([]models.BudgetEntry, error) {
	var list []models.BudgetEntry
	err := r.db.WithContext(ctx).Preload("Department").
		Where("fiscal_year = ?", fiscalYear).
		Order("account_number ASC").
		Find(&list).Error
	return list, err
}

// GetByDepartment 获取部门在某财年的预算明细
func (r *BudgetRepository) GetByDepartment(ctx context.Context, departmentID uint, fiscalYear int) ([]models.BudgetEntry, error) {
	var list []models.BudgetEntry
	err := r.db.WithContext(ctx).
		Where("department_id = ? AND fiscal_year = ?", departmentID, fiscalYear).
		Order("account_number ASC").
		Find(&list).Error
	return list, err
}

// GetByAccountNumber 根据科目编号和财年获取
func (r *BudgetRepository) GetByAccountNumber(ctx context.Context, accountNumber string, fiscalYear int) (*models.BudgetEntry, error) {
	var e models.BudgetEntry
	err := r.db.WithContext(ctx).
		Where("account_number = ? AND fiscal_year = ?", accountNumber, fiscalYear).
		First(&e).Error
	if err != nil {
		return nil, translate(err)
	}
	return &e, nil
}

// GetChildren 获取子预算明细
func (r *BudgetRepository) GetChildren(ctx context.Context, id uint) ([]models.BudgetEntry, error) {
	var list []models.BudgetEntry
	err := r.db.WithContext(ctx).Where("parent_id = ?", id).Order("account_number ASC").Find(&list).Error
	return list, err
}

// GetPaged 分页查询，fiscalYear/departmentID 为 0 时不过滤
func (r *BudgetRepository) GetPaged(ctx context.Context, fiscalYear int, departmentID uint, q PageQuery) (Page[models.BudgetEntry], error) {
	q = q.Normalize()
	query := r.db.Model(&models.BudgetEntry{})
	if fiscalYear > 0 {
		query = query.Where("fiscal_year = ?", fiscalYear)
	}
	if departmentID > 0 {
		query = query.Where("department_id = ?", departmentID)
	}
	if q.Search != "" {
		p := likePattern(q.Search)
		query = query.Where("LOWER(account_number) LIKE ? OR LOWER(description) LIKE ?", p, p)
	}
	return paginate[models.BudgetEntry](ctx, query, q, budgetSortable, "fiscal_year DESC, account_number ASC")
}

func (r *BudgetRepository) validate(ctx context.Context, db *gorm.DB, e *models.BudgetEntry) error {
	if !models.ValidAccountNumber(e.AccountNumber) {
		return invalid("科目编号格式错误: %q", e.AccountNumber)
	}
	if e.FiscalYear < 1900 || e.FiscalYear > 2100 {
		return invalid("财年超出范围: %d", e.FiscalYear)
	}
	if e.BudgetedAmount.IsNegative() {
		return invalid("预算金额不能为负数")
	}
	if e.EncumbranceAmount.IsNegative() {
		return invalid("保留金额不能为负数")
	}
	if !e.StartPeriod.IsZero() && !e.EndPeriod.IsZero() && e.EndPeriod.Before(e.StartPeriod) {
		return invalid("结束期间不能早于开始期间")
	}
	if e.FundType != "" && !e.FundType.IsValid() {
		return invalid("无效的基金类型: %s", e.FundType)
	}
	if ok, err := exists(ctx, db, &models.Department{}, e.DepartmentID); err != nil {
		return err
	} else if !ok {
		return invalid("部门不存在: %d", e.DepartmentID)
	}
	if e.ParentID != nil {
		if e.ID != 0 && *e.ParentID == e.ID {
			return invalid("预算明细不能以自身为上级")
		}
		var parent models.BudgetEntry
		if err := db.WithContext(ctx).First(&parent, *e.ParentID).Error; err != nil {
			return invalid("上级预算明细不存在: %d", *e.ParentID)
		}
		if parent.FiscalYear != e.FiscalYear {
			return invalid("上级预算明细必须属于同一财年")
		}
	}
	q := db.WithContext(ctx).Model(&models.BudgetEntry{}).
		Where("account_number = ? AND fiscal_year = ?", e.AccountNumber, e.FiscalYear)
	if e.ID != 0 {
		q = q.Where("id <> ?", e.ID)
	}
	return ensureUnique(q)
}

// Add 新增预算明细
func (r *BudgetRepository) Add(ctx context.Context, e *models.BudgetEntry) error {
	if err := r.validate(ctx, r.db, e); err != nil {
		return err
	}
	return translate(r.db.WithContext(ctx).Create(e).Error)
}

// Update 更新预算明细
func (r *BudgetRepository) Update(ctx context.Context, e *models.BudgetEntry) error {
	if _, err := r.GetByID(ctx, e.ID); err != nil {
		return err
	}
	if err := r.validate(ctx, r.db, e); err != nil {
		return err
	}
	return translate(r.db.WithContext(ctx).Omit("Department", "CreatedAt").Save(e).Error)
}

// Delete 删除预算明细，存在子明细或交易时禁止删除
func (r *BudgetRepository) Delete(ctx context.Context, id uint) error {
	if _, err := r.GetByID(ctx, id); err != nil {
		return err
	}
	busy, err := hasDependents(ctx, r.db, id,
		dependent{&models.BudgetEntry{}, "parent_id = ?"},
		dependent{&models.Transaction{}, "budget_entry_id = ?"},
	)
	if err != nil {
		return err
	}
	if busy {
		return ErrHasDependents
	}
	return r.db.WithContext(ctx).Delete(&models.BudgetEntry{}, id).Error
}

// UpdateActuals 在同一事务中按科目编号写入实际发生额
// 返回更新条数和未匹配的科目编号（按字典序）
func (r *BudgetRepository) UpdateActuals(ctx context.Context, fiscalYear int, actuals map[string]decimal.Decimal) (int, []string, error) {
	updated := 0
	unmatched := make([]string, 0)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		numbers := make([]string, 0, len(actuals))
		for n := range actuals {
			numbers = append(numbers, n)
		}
		sort.Strings(numbers)
		for _, number := range numbers {
			res := tx.Model(&models.BudgetEntry{}).
				Where("account_number = ? AND fiscal_year = ?", number, fiscalYear).
				Update("actual_amount", actuals[number].Round(2))
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				unmatched = append(unmatched, number)
				continue
			}
			updated++
		}
		return nil
	})
	if err != nil {
		return 0, nil, err
	}
	return updated, unmatched, nil
}

// SumBudgeted 部门在某财年的预算总额
func (r *BudgetRepository) SumBudgeted(ctx context.Context, departmentID uint, fiscalYear int) (decimal.Decimal, error) {
	entries, err := r.GetByDepartment(ctx, departmentID, fiscalYear)
	if err != nil {
		return decimal.Zero, err
	}
	total := decimal.Zero
	for _, e := range entries {
		total = total.Add(e.BudgetedAmount)
	}
	return total, nil
}

// GetBudgetSummary 财年汇总：总额、按基金类型与部门分组
func (r *BudgetRepository) GetBudgetSummary(ctx context.Context, fiscalYear int) (*BudgetSummary, error) {
	entries, err := r.GetByFiscalYear(ctx, fiscalYear)
	if err != nil {
		return nil, err
	}
	return Summarize(fiscalYear, entries), nil
}

// Summarize 对预算明细做汇总
func Summarize(fiscalYear int, entries []models.BudgetEntry) *BudgetSummary {
	s := &BudgetSummary{
		FiscalYear:       fiscalYear,
		EntryCount:       len(entries),
		TotalBudgeted:    decimal.Zero,
		TotalActual:      decimal.Zero,
		TotalVariance:    decimal.Zero,
		TotalEncumbrance: decimal.Zero,
	}
	byFund := map[string]*GroupTotal{}
	byDept := map[string]*GroupTotal{}
	add := func(m map[string]*GroupTotal, key string, e models.BudgetEntry) {
		g, ok := m[key]
		if !ok {
			g = &GroupTotal{Key: key, Budgeted: decimal.Zero, Actual: decimal.Zero, Variance: decimal.Zero}
			m[key] = g
		}
		g.Budgeted = g.Budgeted.Add(e.BudgetedAmount)
		g.Actual = g.Actual.Add(e.ActualAmount)
		g.Variance = g.Budgeted.Sub(g.Actual)
	}
	for _, e := range entries {
		s.TotalBudgeted = s.TotalBudgeted.Add(e.BudgetedAmount)
		s.TotalActual = s.TotalActual.Add(e.ActualAmount)
		s.TotalEncumbrance = s.TotalEncumbrance.Add(e.EncumbranceAmount)
		if e.IsOverBudget() {
			s.OverBudgetCount++
		}
		fundKey := string(e.FundType)
		if fundKey == "" {
			fundKey = "Unassigned"
		}
		add(byFund, fundKey, e)
		deptKey := "Unassigned"
		if e.Department != nil {
			deptKey = e.Department.Name
		}
		add(byDept, deptKey, e)
	}
	s.TotalVariance = s.TotalBudgeted.Sub(s.TotalActual)
	s.ByFundType = sortedGroups(byFund)
	s.ByDepartment = sortedGroups(byDept)
	return s
}

func sortedGroups(m map[string]*GroupTotal) []GroupTotal {
	out := make([]GroupTotal, 0, len(m))
	for _, g := range m {
		out = append(out, *g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// IsNotFound 便于调用方判断
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
