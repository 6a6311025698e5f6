package service

import (
	"context"
	"testing"

	"wileywidget/models"
	"wileywidget/repository"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeChargeInputs struct {
	dept      *models.Department
	expenses  decimal.Decimal
	customers int64
}

func (f *fakeChargeInputs) GetByID(ctx context.Context, id uint) (*models.Department, error) {
	if f.dept == nil || f.dept.ID != id {
		return nil, repository.ErrNotFound
	}
	return f.dept, nil
}

func (f *fakeChargeInputs) SumBudgeted(ctx context.Context, departmentID uint, fiscalYear int) (decimal.Decimal, error) {
	return f.expenses, nil
}

func (f *fakeChargeInputs) GetActiveCount(ctx context.Context) (int64, error) {
	return f.customers, nil
}

func newCalculator(rate, expenses string, customers int64) *ServiceChargeCalculatorService {
	f := &fakeChargeInputs{
		dept:      &models.Department{ID: 1, Name: models.DepartmentWater, CurrentRate: d(rate)},
		expenses:  d(expenses),
		customers: customers,
	}
	return NewServiceChargeCalculatorService(f, f, f)
}

func TestHealthFor(t *testing.T) {
	assert.Equal(t, HealthHealthy, HealthFor(d("1")))
	assert.Equal(t, HealthWarning, HealthFor(d("0.9")))
	assert.Equal(t, HealthWarning, HealthFor(d("0.9999")))
	assert.Equal(t, HealthCritical, HealthFor(d("0.8999")))
}

func TestCalculateRecommendedCharge(t *testing.T) {
	s := newCalculator("45", "120000", 100)
	r, err := s.CalculateRecommendedCharge(context.Background(), 1, 2025)
	require.NoError(t, err)

	assert.Equal(t, "132000", r.RequiredRevenue.String())
	assert.Equal(t, "110", r.RecommendedRate.String())
	assert.Equal(t, "51.75", r.PhasedRate.String())
	assert.Equal(t, "0.4091", r.CoverageRatio.String())
	assert.Equal(t, HealthCritical, r.Status)
	assert.Equal(t, "6500", r.MonthlyRevenueGap.String())
	assert.Equal(t, int64(100), r.CustomerCount)
}

func TestCalculateRecommendedCharge_MinimumAndZeroRate(t *testing.T) {
	s := newCalculator("0", "1000", 1000)
	r, err := s.CalculateRecommendedCharge(context.Background(), 1, 2025)
	require.NoError(t, err)
	assert.Equal(t, "5", r.RecommendedRate.String())
	assert.Equal(t, "5", r.PhasedRate.String())
	assert.Equal(t, HealthCritical, r.Status)
}

func TestCalculateRecommendedCharge_HealthBands(t *testing.T) {
	r, err := newCalculator("10", "10000", 100).CalculateRecommendedCharge(context.Background(), 1, 2025)
	require.NoError(t, err)
	assert.Equal(t, HealthHealthy, r.Status)
	assert.True(t, r.MonthlyRevenueGap.IsNegative() || r.MonthlyRevenueGap.IsZero())

	r, err = newCalculator("8.50", "10000", 100).CalculateRecommendedCharge(context.Background(), 1, 2025)
	require.NoError(t, err)
	assert.Equal(t, "0.9273", r.CoverageRatio.String())
	assert.Equal(t, HealthWarning, r.Status)
}

func TestCalculateRecommendedCharge_Errors(t *testing.T) {
	_, err := newCalculator("10", "10000", 0).CalculateRecommendedCharge(context.Background(), 1, 2025)
	assert.ErrorIs(t, err, ErrNoCustomers)

	_, err = newCalculator("10", "10000", 10).CalculateRecommendedCharge(context.Background(), 2, 2025)
	assert.ErrorIs(t, err, repository.ErrNotFound)

	_, err = newCalculator("10", "10000", 10).CalculateRecommendedCharge(context.Background(), 1, 1800)
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestGenerateWhatIfScenario(t *testing.T) {
	s := newCalculator("45", "120000", 100)
	w, err := s.GenerateWhatIfScenario(context.Background(), 1, 2025, d("10"), d("-50"))
	require.NoError(t, err)
	assert.Equal(t, "49.5", w.NewRate.String())
	assert.Equal(t, "59400", w.ProjectedAnnualRevenue.String())
	assert.Equal(t, "60000", w.ProjectedAnnualExpenses.String())
	assert.Equal(t, "-600", w.NetPosition.String())
	assert.Equal(t, "0.9", w.CoverageRatio.String())
	assert.Equal(t, HealthWarning, w.Status)

	_, err = s.GenerateWhatIfScenario(context.Background(), 1, 2025, d("100.01"), d("0"))
	assert.ErrorIs(t, err, ErrInvalidArgument)
	_, err = s.GenerateWhatIfScenario(context.Background(), 1, 2025, d("0"), d("-50.5"))
	assert.ErrorIs(t, err, ErrInvalidArgument)
	_, err = s.GenerateWhatIfScenario(context.Background(), 1, 2025, d("-50"), d("100"))
	assert.NoError(t, err)
}
