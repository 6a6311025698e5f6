package repository

import (
	"context"
	"testing"
	"time"

	"wileywidget/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupInvoiceDeps(t *testing.T, ctx context.Context, repo *InvoiceRepository) (uint, uint) {
	t.Helper()
	vendors := NewVendorRepository(repo.db)
	accounts := NewMunicipalAccountRepository(repo.db, nil, 0)
	v := &models.Vendor{Name: "Acme Pipe", IsActive: true}
	require.NoError(t, vendors.Add(ctx, v))
	fund := fundByCode(t, repo.db, "400")
	a := &models.MunicipalAccount{AccountNumber: "610", Name: "Repairs", Type: models.AccountTypeExpense, FundID: fund.ID}
	require.NoError(t, accounts.Add(ctx, a))
	return v.ID, a.ID
}

func newInvoice(number string, vendorID, accountID uint, due time.Time) *models.Invoice {
	return &models.Invoice{
		InvoiceNumber:      number,
		VendorID:           vendorID,
		MunicipalAccountID: accountID,
		Amount:             dec("1250.00"),
		InvoiceDate:        due.AddDate(0, 0, -30),
		DueDate:            due,
	}
}

func TestInvoiceRepository_Lifecycle(t *testing.T) {
	db := setupDB(t)
	repo := NewInvoiceRepository(db)
	ctx := context.Background()
	vendorID, accountID := setupInvoiceDeps(t, ctx, repo)
	due := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)

	inv := newInvoice("INV-1", vendorID, accountID, due)
	inv.Status = models.InvoicePaid
	require.NoError(t, repo.Add(ctx, inv))
	assert.Equal(t, models.InvoicePending, inv.Status)

	assert.ErrorIs(t, repo.Add(ctx, newInvoice("INV-1", vendorID, accountID, due)), ErrDuplicate)

	_, err := repo.MarkPaid(ctx, inv.ID, due)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	got, err := repo.UpdateStatus(ctx, inv.ID, models.InvoiceApproved)
	require.NoError(t, err)
	assert.Equal(t, models.InvoiceApproved, got.Status)
	assert.ErrorIs(t, repo.Delete(ctx, inv.ID), ErrInvalidTransition)

	paid, err := repo.MarkPaid(ctx, inv.ID, due)
	require.NoError(t, err)
	assert.Equal(t, models.InvoicePaid, paid.Status)
	require.NotNil(t, paid.PaidDate)

	_, err = repo.UpdateStatus(ctx, inv.ID, models.InvoiceVoid)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	inv.Description = "edited"
	assert.ErrorIs(t, repo.Update(ctx, inv), ErrInvalidTransition)
}

func TestInvoiceRepository_OverdueAndPaged(t *testing.T) {
	db := setupDB(t)
	repo := NewInvoiceRepository(db)
	ctx := context.Background()
	vendorID, accountID := setupInvoiceDeps(t, ctx, repo)
	asOf := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	late := newInvoice("INV-LATE", vendorID, accountID, asOf.AddDate(0, 0, -10))
	voided := newInvoice("INV-VOID", vendorID, accountID, asOf.AddDate(0, 0, -10))
	future := newInvoice("INV-FUT", vendorID, accountID, asOf.AddDate(0, 0, 10))
	for _, inv := range []*models.Invoice{late, voided, future} {
		require.NoError(t, repo.Add(ctx, inv))
	}
	_, err := repo.UpdateStatus(ctx, voided.ID, models.InvoiceVoid)
	require.NoError(t, err)

	overdue, err := repo.GetOverdue(ctx, asOf)
	require.NoError(t, err)
	require.Len(t, overdue, 1)
	assert.Equal(t, "INV-LATE", overdue[0].InvoiceNumber)
	require.NotNil(t, overdue[0].Vendor)
	assert.Equal(t, "Acme Pipe", overdue[0].Vendor.Name)

	page, err := repo.GetPaged(ctx, models.InvoicePending, PageQuery{})
	require.NoError(t, err)
	assert.Equal(t, int64(2), page.Total)

	require.NoError(t, repo.Delete(ctx, future.ID))
	_, err = repo.GetByID(ctx, future.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	bad := newInvoice("INV-BAD", vendorID, accountID, asOf)
	bad.Amount = dec("0")
	assert.ErrorIs(t, repo.Add(ctx, bad), ErrInvalid)
}
