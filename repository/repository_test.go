package repository

import (
	"context"
	"testing"
	"time"

	"wileywidget/database"
	"wileywidget/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.OpenInMemory()
	require.NoError(t, err)
	require.NoError(t, database.Seed(db))
	return db
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func deptByName(t *testing.T, db *gorm.DB, name string) models.Department {
	t.Helper()
	var d models.Department
	require.NoError(t, db.Where("name = ?", name).First(&d).Error)
	return d
}

func fundByCode(t *testing.T, db *gorm.DB, code string) models.Fund {
	t.Helper()
	var f models.Fund
	require.NoError(t, db.Where("code = ?", code).First(&f).Error)
	return f
}

func addEntry(t *testing.T, repo *BudgetRepository, number string, year int, deptID uint, budgeted, actual string) *models.BudgetEntry {
	t.Helper()
	e := &models.BudgetEntry{
		AccountNumber:  number,
		FiscalYear:     year,
		DepartmentID:   deptID,
		BudgetedAmount: dec(budgeted),
		ActualAmount:   dec(actual),
		FundType:       models.FundTypeEnterprise,
		StartPeriod:    time.Date(year-1, 7, 1, 0, 0, 0, 0, time.UTC),
		EndPeriod:      time.Date(year, 6, 30, 0, 0, 0, 0, time.UTC),
	}
	require.NoError(t, repo.Add(context.Background(), e))
	return e
}
