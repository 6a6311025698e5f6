package service

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"wileywidget/metrics"
	"wileywidget/models"
	"wileywidget/quickbooks"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// leadingAccountNumber 从 "405.1 Water Sales" 中取出科目编号
var leadingAccountNumber = regexp.MustCompile(`^\s*(\d{1,6}(?:\.\d{1,4}){0,4})(?:\s|$|[-:])`)

// JournalSource 日记账来源
type JournalSource interface {
	Enabled() bool
	QueryJournalEntries(ctx context.Context, from, to time.Time) ([]quickbooks.JournalEntry, error)
}

// AccountCatalog 科目表
type AccountCatalog interface {
	GetAll(ctx context.Context) ([]models.MunicipalAccount, error)
}

// ActualsWriter 实际发生额写入
type ActualsWriter interface {
	UpdateActuals(ctx context.Context, fiscalYear int, actuals map[string]decimal.Decimal) (int, []string, error)
}

// SyncResult 一次同步的结果
type SyncResult struct {
	RunID           string                     `json:"run_id"`
	FiscalYear      int                        `json:"fiscal_year"`
	From            time.Time                  `json:"from"`
	To              time.Time                  `json:"to"`
	JournalEntries  int                        `json:"journal_entries"`
	LinesProcessed  int                        `json:"lines_processed"`
	AccountsUpdated int                        `json:"accounts_updated"`
	Actuals         map[string]decimal.Decimal `json:"actuals"`
	Unmatched       []string                   `json:"unmatched"`
	Duration        time.Duration              `json:"duration"`
}

// QuickBooksBudgetSyncService 将 QuickBooks 日记账汇总写入预算实际发生额
type QuickBooksBudgetSyncService struct {
	qb       JournalSource
	accounts AccountCatalog
	budgets  ActualsWriter
	audit    *AuditService
	logger   *zap.Logger
	metrics  *metrics.Metrics
}

// NewQuickBooksBudgetSyncService 创建同步服务
func NewQuickBooksBudgetSyncService(qb JournalSource, accounts AccountCatalog, budgets ActualsWriter, audit *AuditService, l *zap.Logger, m *metrics.Metrics) *QuickBooksBudgetSyncService {
	if l == nil {
		l = zap.NewNop()
	}
	return &QuickBooksBudgetSyncService{qb: qb, accounts: accounts, budgets: budgets, audit: audit, logger: l.Named("budget_sync"), metrics: m}
}

// AccountNumberFromName 解析引用名称开头的点分科目编号
func AccountNumberFromName(name string) (string, bool) {
	m := leadingAccountNumber.FindStringSubmatch(name)
	if m == nil {
		return "", false
	}
	return m[1], true
}

type accountIndex struct {
	byQB     map[string]models.MunicipalAccount
	byNumber map[string]models.MunicipalAccount
}

func (idx accountIndex) resolve(ref quickbooks.Ref) (string, models.AccountType, bool) {
	if a, ok := idx.byQB[ref.Value]; ok && ref.Value != "" {
		return a.AccountNumber, a.Type, true
	}
	number, ok := AccountNumberFromName(ref.Name)
	if !ok {
		return "", "", false
	}
	if a, ok := idx.byNumber[number]; ok {
		return number, a.Type, true
	}
	// 科目表中没有的编号按费用类处理
	return number, models.AccountTypeExpense, true
}

// signedLineAmount 资产、费用类借方为正，其余贷方为正
func signedLineAmount(postingType string, amount decimal.Decimal, t models.AccountType) decimal.Decimal {
	amount = amount.Abs()
	debit := strings.EqualFold(postingType, "Debit")
	if t.DebitNormal() == debit {
		return amount
	}
	return amount.Neg()
}

// SyncActuals 拉取日记账，按科目汇总后写入预算实际发生额，并记录审计
func (s *QuickBooksBudgetSyncService) SyncActuals(ctx context.Context, fiscalYear int, from, to time.Time) (*SyncResult, error) {
	if s.qb == nil || !s.qb.Enabled() {
		s.metrics.IncSync("not_configured")
		return nil, quickbooks.ErrNotConfigured
	}
	if fiscalYear < 1900 || fiscalYear > 2100 {
		return nil, fmt.Errorf("%w: 财年超出范围", ErrInvalidArgument)
	}
	if err := validateRange(from, to); err != nil {
		return nil, err
	}

	started := time.Now()
	result := &SyncResult{
		RunID:      uuid.NewString(),
		FiscalYear: fiscalYear,
		From:       from,
		To:         to,
		Actuals:    map[string]decimal.Decimal{},
		Unmatched:  []string{},
	}
	log := s.logger.With(zap.String("run_id", result.RunID), zap.Int("fiscal_year", fiscalYear))

	entries, err := s.qb.QueryJournalEntries(ctx, from, to)
	if err != nil {
		s.metrics.IncSync("error")
		return nil, fmt.Errorf("查询 QuickBooks 日记账失败: %w", err)
	}
	accounts, err := s.accounts.GetAll(ctx)
	if err != nil {
		s.metrics.IncSync("error")
		return nil, err
	}
	idx := accountIndex{byQB: map[string]models.MunicipalAccount{}, byNumber: map[string]models.MunicipalAccount{}}
	for _, a := range accounts {
		if a.QuickBooksID != "" {
			idx.byQB[a.QuickBooksID] = a
		}
		idx.byNumber[a.AccountNumber] = a
	}

	unmatched := map[string]struct{}{}
	result.JournalEntries = len(entries)
	for _, je := range entries {
		for _, line := range je.Line {
			detail := line.JournalEntryLineDetail
			if detail == nil {
				continue
			}
			result.LinesProcessed++
			number, accountType, ok := idx.resolve(detail.AccountRef)
			if !ok {
				unmatched[detail.AccountRef.Name] = struct{}{}
				continue
			}
			prev, found := result.Actuals[number]
			if !found {
				prev = decimal.Zero
			}
			result.Actuals[number] = prev.Add(signedLineAmount(detail.PostingType, line.Amount, accountType))
		}
	}

	updated, missing, err := s.budgets.UpdateActuals(ctx, fiscalYear, result.Actuals)
	if err != nil {
		s.metrics.IncSync("error")
		return nil, fmt.Errorf("写入实际发生额失败: %w", err)
	}
	result.AccountsUpdated = updated
	for _, n := range missing {
		unmatched[n] = struct{}{}
	}
	for k := range unmatched {
		result.Unmatched = append(result.Unmatched, k)
	}
	sort.Strings(result.Unmatched)
	result.Duration = time.Since(started)

	summary, _ := json.Marshal(map[string]any{
		"run_id":           result.RunID,
		"from":             from.Format("2006-01-02"),
		"to":               to.Format("2006-01-02"),
		"journal_entries":  result.JournalEntries,
		"lines_processed":  result.LinesProcessed,
		"accounts_updated": result.AccountsUpdated,
		"unmatched":        result.Unmatched,
	})
	if s.audit != nil && s.audit.repo != nil {
		entry := &models.AuditEntry{
			EntityType: "BudgetSync",
			EntityID:   uint(fiscalYear),
			Action:     models.AuditSync,
			Username:   UserFromContext(ctx),
			Changes:    string(summary),
			Timestamp:  s.audit.now(),
		}
		if err := s.audit.repo.Add(ctx, entry); err != nil {
			log.Warn("写入同步审计记录失败", zap.Error(err))
		}
	}

	s.metrics.IncSync("success")
	log.Info("QuickBooks 预算同步完成",
		zap.Int("journal_entries", result.JournalEntries),
		zap.Int("lines", result.LinesProcessed),
		zap.Int("updated", result.AccountsUpdated),
		zap.Int("unmatched", len(result.Unmatched)),
		zap.Duration("elapsed", result.Duration))
	return result, nil
}
