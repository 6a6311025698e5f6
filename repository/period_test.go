package repository

import (
	"context"
	"testing"
	"time"

	"wileywidget/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPeriod(year int) *models.BudgetPeriod {
	return &models.BudgetPeriod{
		Year:      year,
		StartDate: time.Date(year-1, 7, 1, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(year, 6, 30, 0, 0, 0, 0, time.UTC),
	}
}

func TestBudgetPeriodRepository_Activate(t *testing.T) {
	db := setupDB(t)
	repo := NewBudgetPeriodRepository(db)
	ctx := context.Background()

	p1, p2 := newPeriod(2025), newPeriod(2026)
	require.NoError(t, repo.Add(ctx, p1))
	require.NoError(t, repo.Add(ctx, p2))
	assert.Equal(t, "FY 2025", p1.Name)
	assert.Equal(t, models.BudgetStatusDraft, p1.Status)

	_, err := repo.GetActive(ctx)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, repo.Activate(ctx, p1.ID))
	require.NoError(t, repo.Activate(ctx, p2.ID))

	active, err := repo.GetActive(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2026, active.Year)

	var count int64
	db.Model(&models.BudgetPeriod{}).Where("is_active = ?", true).Count(&count)
	assert.Equal(t, int64(1), count)

	assert.ErrorIs(t, repo.Activate(ctx, 999), ErrNotFound)
	assert.ErrorIs(t, repo.Delete(ctx, p2.ID), ErrHasDependents)
	require.NoError(t, repo.Delete(ctx, p1.ID))
}

func TestBudgetPeriodRepository_AdvanceStatus(t *testing.T) {
	db := setupDB(t)
	repo := NewBudgetPeriodRepository(db)
	ctx := context.Background()
	p := newPeriod(2025)
	require.NoError(t, repo.Add(ctx, p))

	got, err := repo.AdvanceStatus(ctx, p.ID, models.BudgetStatusAdopted)
	require.NoError(t, err)
	assert.Equal(t, models.BudgetStatusAdopted, got.Status)

	_, err = repo.AdvanceStatus(ctx, p.ID, models.BudgetStatusProposed)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = repo.AdvanceStatus(ctx, p.ID, models.BudgetStatusAdopted)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestBudgetPeriodRepository_Validation(t *testing.T) {
	db := setupDB(t)
	repo := NewBudgetPeriodRepository(db)
	ctx := context.Background()
	require.NoError(t, repo.Add(ctx, newPeriod(2025)))

	assert.ErrorIs(t, repo.Add(ctx, newPeriod(2025)), ErrDuplicate)
	assert.ErrorIs(t, repo.Add(ctx, newPeriod(1850)), ErrInvalid)

	backwards := newPeriod(2027)
	backwards.EndDate = backwards.StartDate.AddDate(0, 0, -1)
	assert.ErrorIs(t, repo.Add(ctx, backwards), ErrInvalid)
}
