package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"wileywidget/models"
	"wileywidget/quickbooks"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePurchases struct {
	enabled   bool
	purchases []quickbooks.Purchase
	err       error
	calls     int
}

func (f *fakePurchases) Enabled() bool { return f.enabled }

func (f *fakePurchases) QueryPurchases(ctx context.Context, from, to time.Time) ([]quickbooks.Purchase, error) {
	f.calls++
	return f.purchases, f.err
}

type fakeDepartments []models.Department

func (f fakeDepartments) GetEnterprise(ctx context.Context) ([]models.Department, error) {
	return f, nil
}

func day(y int, m time.Month, dd int) time.Time {
	return time.Date(y, m, dd, 0, 0, 0, 0, time.UTC)
}

func TestMonthsInRange(t *testing.T) {
	assert.Equal(t, 1, MonthsInRange(day(2025, 1, 1), day(2025, 1, 31)))
	assert.Equal(t, 3, MonthsInRange(day(2025, 1, 1), day(2025, 3, 31)))
	assert.Equal(t, 12, MonthsInRange(day(2024, 7, 1), day(2025, 6, 30)))
	assert.Equal(t, 1, MonthsInRange(day(2025, 3, 1), day(2025, 1, 1)))
}

func TestDepartmentExpense_SampleWhenNotConfigured(t *testing.T) {
	s := NewDepartmentExpenseService(nil, nil, nil)
	e, err := s.GetDepartmentExpenses(context.Background(), "water", day(2025, 1, 1), day(2025, 3, 31))
	require.NoError(t, err)
	assert.Equal(t, SourceSample, e.Source)
	assert.Equal(t, "135000", e.Total.String())

	e, err = s.GetDepartmentExpenses(context.Background(), "Parks", day(2025, 1, 1), day(2025, 1, 15))
	require.NoError(t, err)
	assert.Equal(t, "15000", e.Total.String())
}

func TestDepartmentExpense_FromQuickBooks(t *testing.T) {
	qb := &fakePurchases{enabled: true, purchases: []quickbooks.Purchase{
		{ID: "1", TotalAmt: d("100.10"), DepartmentRef: &quickbooks.Ref{Name: "Water"}},
		{ID: "2", TotalAmt: d("50"), DepartmentRef: &quickbooks.Ref{Name: "WATER"}},
		{ID: "3", TotalAmt: d("75"), DepartmentRef: &quickbooks.Ref{Name: "Sewer"}},
		{ID: "4", TotalAmt: d("999")},
	}}
	s := NewDepartmentExpenseService(qb, nil, nil)
	e, err := s.GetDepartmentExpenses(context.Background(), "Water", day(2025, 1, 1), day(2025, 1, 31))
	require.NoError(t, err)
	assert.Equal(t, SourceQuickBooks, e.Source)
	assert.Equal(t, "150.1", e.Total.String())
}

func TestDepartmentExpense_QuickBooksFailureFallsBack(t *testing.T) {
	qb := &fakePurchases{enabled: true, err: errors.New("boom")}
	s := NewDepartmentExpenseService(qb, nil, nil)
	e, err := s.GetDepartmentExpenses(context.Background(), "Trash", day(2025, 1, 1), day(2025, 2, 1))
	require.NoError(t, err)
	assert.Equal(t, SourceSample, e.Source)
	assert.Equal(t, "44000", e.Total.String())
}

func TestDepartmentExpense_Validation(t *testing.T) {
	s := NewDepartmentExpenseService(nil, nil, nil)
	_, err := s.GetDepartmentExpenses(context.Background(), "  ", day(2025, 1, 1), day(2025, 2, 1))
	assert.ErrorIs(t, err, ErrInvalidArgument)
	_, err = s.GetDepartmentExpenses(context.Background(), "Water", day(2025, 2, 1), day(2025, 1, 1))
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestDepartmentExpense_All(t *testing.T) {
	qb := &fakePurchases{enabled: true, purchases: []quickbooks.Purchase{
		{TotalAmt: d("10"), DepartmentRef: &quickbooks.Ref{Name: "Sewer"}},
	}}
	depts := fakeDepartments{{Name: "Sewer"}, {Name: "Water"}}
	s := NewDepartmentExpenseService(qb, depts, nil)

	all, err := s.GetAllDepartmentExpenses(context.Background(), day(2025, 1, 1), day(2025, 1, 31))
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "Sewer", all[0].Department)
	assert.Equal(t, "10", all[0].Total.String())
	assert.Equal(t, "0", all[1].Total.String())
	assert.Equal(t, 1, qb.calls)
}

func TestDepartmentExpense_EmptyQuickBooksResultIsZero(t *testing.T) {
	s := NewDepartmentExpenseService(&fakePurchases{enabled: true}, nil, nil)
	e, err := s.GetDepartmentExpenses(context.Background(), "Water", day(2025, 1, 1), day(2025, 1, 31))
	require.NoError(t, err)
	assert.Equal(t, SourceQuickBooks, e.Source)
	assert.True(t, e.Total.IsZero())
}
