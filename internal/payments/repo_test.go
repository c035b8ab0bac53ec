package payments

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/shopchat-core/pkg/db/dbtest"
	"github.com/angelmondragon/shopchat-core/pkg/db/models"
	"github.com/angelmondragon/shopchat-core/pkg/enums"
)

func TestRepositoryCreateRejectsDuplicateInvoice(t *testing.T) {
	repo := NewRepository(dbtest.Open(t).DB())
	ctx := context.Background()

	newPayment := func() *models.Payment {
		return &models.Payment{
			OrderID:   uuid.New(),
			Method:    enums.PaymentMethodQR,
			Status:    enums.PaymentStatusPending,
			Amount:    decimal.RequireFromString("10.00"),
			InvoiceID: "inv-1",
			ExpiresAt: time.Now().Add(time.Hour),
		}
	}

	require.NoError(t, repo.Create(ctx, newPayment()))
	require.ErrorIs(t, repo.Create(ctx, newPayment()), ErrDuplicateInvoice)
}

func TestRepositoryMarkPaidOnlyOnce(t *testing.T) {
	repo := NewRepository(dbtest.Open(t).DB())
	ctx := context.Background()

	payment := &models.Payment{
		OrderID:   uuid.New(),
		Method:    enums.PaymentMethodQR,
		Status:    enums.PaymentStatusPending,
		Amount:    decimal.RequireFromString("10.00"),
		InvoiceID: "inv-2",
		ExpiresAt: time.Now().Add(time.Hour),
	}
	require.NoError(t, repo.Create(ctx, payment))

	paidAt := time.Now().UTC()
	applied, err := repo.MarkPaid(ctx, payment.ID, paidAt, "tx-1")
	require.NoError(t, err)
	require.True(t, applied)

	applied, err = repo.MarkPaid(ctx, payment.ID, paidAt, "tx-1")
	require.NoError(t, err)
	require.False(t, applied)

	stored, err := repo.FindByInvoiceID(ctx, "inv-2")
	require.NoError(t, err)
	require.Equal(t, enums.PaymentStatusPaid, stored.Status)
	require.NotNil(t, stored.TransactionID)
	require.Equal(t, "tx-1", *stored.TransactionID)
}
