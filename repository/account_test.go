package repository

import (
	"context"
	"testing"
	"time"

	"wileywidget/cache"
	"wileywidget/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMunicipalAccountRepository_Hierarchy(t *testing.T) {
	db := setupDB(t)
	repo := NewMunicipalAccountRepository(db, nil, 0)
	ctx := context.Background()
	fund := fundByCode(t, db, "400")

	parent := &models.MunicipalAccount{AccountNumber: "405", Name: "Water Sales", Type: models.AccountTypeRevenue, FundID: fund.ID, IsActive: true}
	require.NoError(t, repo.Add(ctx, parent))

	child := &models.MunicipalAccount{AccountNumber: "405.1", Name: "Residential", Type: models.AccountTypeRevenue, FundID: fund.ID, ParentAccountID: &parent.ID}
	require.NoError(t, repo.Add(ctx, child))

	bad := &models.MunicipalAccount{AccountNumber: "406.1", Name: "Wrong parent", Type: models.AccountTypeRevenue, FundID: fund.ID, ParentAccountID: &parent.ID}
	assert.ErrorIs(t, repo.Add(ctx, bad), ErrInvalid)

	dup := &models.MunicipalAccount{AccountNumber: "405", Name: "Dup", Type: models.AccountTypeRevenue, FundID: fund.ID}
	assert.ErrorIs(t, repo.Add(ctx, dup), ErrDuplicate)

	noFund := &models.MunicipalAccount{AccountNumber: "500", Name: "No fund", Type: models.AccountTypeExpense, FundID: 999}
	assert.ErrorIs(t, repo.Add(ctx, noFund), ErrInvalid)

	parent.ParentAccountID = &parent.ID
	assert.ErrorIs(t, repo.Update(ctx, parent), ErrInvalid)

	children, err := repo.GetChildren(ctx, parent.ID)
	require.NoError(t, err)
	assert.Len(t, children, 1)

	assert.ErrorIs(t, repo.Delete(ctx, parent.ID), ErrHasDependents)
	require.NoError(t, repo.Delete(ctx, child.ID))
	require.NoError(t, repo.Delete(ctx, parent.ID))
}

func TestMunicipalAccountRepository_CacheInvalidation(t *testing.T) {
	db := setupDB(t)
	mem := cache.NewMemory()
	repo := NewMunicipalAccountRepository(db, mem, time.Minute)
	ctx := context.Background()
	fund := fundByCode(t, db, "100")

	list, err := repo.GetAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)
	assert.Equal(t, 1, mem.Len())

	require.NoError(t, repo.Add(ctx, &models.MunicipalAccount{AccountNumber: "101", Name: "Cash", Type: models.AccountTypeAsset, FundID: fund.ID, IsActive: true}))
	assert.Equal(t, 0, mem.Len())

	list, err = repo.GetAll(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	byType, err := repo.GetByType(ctx, models.AccountTypeAsset)
	require.NoError(t, err)
	assert.Len(t, byType, 1)
	byFund, err := repo.GetByFund(ctx, fund.ID)
	require.NoError(t, err)
	assert.Len(t, byFund, 1)
	assert.Equal(t, 3, mem.Len())

	got, err := repo.GetByNumber(ctx, "101")
	require.NoError(t, err)
	got.Name = "Cash and Investments"
	require.NoError(t, repo.Update(ctx, got))
	assert.Equal(t, 0, mem.Len())

	list, err = repo.GetAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Cash and Investments", list[0].Name)
}

func TestMunicipalAccountRepository_Paged(t *testing.T) {
	db := setupDB(t)
	repo := NewMunicipalAccountRepository(db, nil, 0)
	ctx := context.Background()
	fund := fundByCode(t, db, "100")
	require.NoError(t, repo.Add(ctx, &models.MunicipalAccount{AccountNumber: "101", Name: "Cash", Type: models.AccountTypeAsset, FundID: fund.ID}))
	require.NoError(t, repo.Add(ctx, &models.MunicipalAccount{AccountNumber: "510", Name: "Salaries", Type: models.AccountTypeExpense, FundID: fund.ID}))

	page, err := repo.GetPaged(ctx, models.AccountTypeExpense, PageQuery{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), page.Total)
	assert.Equal(t, "510", page.List[0].AccountNumber)

	page, err = repo.GetPaged(ctx, "", PageQuery{Search: "CASH"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), page.Total)
}

func TestMunicipalAccountRepository_RenumberParentWithChildren(t *testing.T) {
	db := setupDB(t)
	repo := NewMunicipalAccountRepository(db, nil, 0)
	ctx := context.Background()
	fund := fundByCode(t, db, "400")

	parent := &models.MunicipalAccount{AccountNumber: "405", Name: "Water Sales", Type: models.AccountTypeRevenue, FundID: fund.ID}
	require.NoError(t, repo.Add(ctx, parent))
	child := &models.MunicipalAccount{AccountNumber: "405.1", Name: "Residential", Type: models.AccountTypeRevenue, FundID: fund.ID, ParentAccountID: &parent.ID}
	require.NoError(t, repo.Add(ctx, child))

	parent.AccountNumber = "406"
	assert.ErrorIs(t, repo.Update(ctx, parent), ErrInvalid)

	stored, err := repo.GetByID(ctx, parent.ID)
	require.NoError(t, err)
	assert.Equal(t, "405", stored.AccountNumber)

	// 改名不改编号仍然允许
	stored.Name = "Water Charges"
	require.NoError(t, repo.Update(ctx, stored))

	// 叶子科目可以改编号，但仍受上级前缀约束
	child.AccountNumber = "405.2"
	require.NoError(t, repo.Update(ctx, child))
	child.AccountNumber = "406.2"
	assert.ErrorIs(t, repo.Update(ctx, child), ErrInvalid)
}

func TestMunicipalAccountRepository_ReAddAfterDelete(t *testing.T) {
	db := setupDB(t)
	repo := NewMunicipalAccountRepository(db, nil, 0)
	ctx := context.Background()
	fund := fundByCode(t, db, "100")

	a := &models.MunicipalAccount{AccountNumber: "101", Name: "Cash", Type: models.AccountTypeAsset, FundID: fund.ID}
	require.NoError(t, repo.Add(ctx, a))
	require.NoError(t, repo.Delete(ctx, a.ID))

	again := &models.MunicipalAccount{AccountNumber: "101", Name: "Cash", Type: models.AccountTypeAsset, FundID: fund.ID}
	require.NoError(t, repo.Add(ctx, again))
}

func TestMunicipalAccountRepository_DeleteSurfacesCountErrors(t *testing.T) {
	db := setupDB(t)
	repo := NewMunicipalAccountRepository(db, nil, 0)
	ctx := context.Background()
	fund := fundByCode(t, db, "400")

	a := &models.MunicipalAccount{AccountNumber: "405", Name: "Water Sales", Type: models.AccountTypeRevenue, FundID: fund.ID}
	require.NoError(t, repo.Add(ctx, a))

	// 关联表不可读时不能当作没有依赖而删除
	require.NoError(t, db.Migrator().DropTable(&models.Invoice{}))
	assert.Error(t, repo.Delete(ctx, a.ID))
	_, err := repo.GetByID(ctx, a.ID)
	assert.NoError(t, err)
}
