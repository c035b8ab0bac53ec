// Package ledger owns every write to products.reserved_stock. Each operation
// is a single conditional UPDATE so concurrent callers race only inside the
// database.
package ledger

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/shopchat-core/pkg/db/models"
	pkgerrors "github.com/angelmondragon/shopchat-core/pkg/errors"
	"github.com/angelmondragon/shopchat-core/pkg/metrics"
)

// Ledger applies reservations, releases and commits. Methods accept an
// optional transaction; a nil tx runs against the ledger's own connection.
type Ledger struct {
	db      *gorm.DB
	metrics *metrics.CommerceMetrics
}

// New constructs a Ledger.
func New(db *gorm.DB, m *metrics.CommerceMetrics) *Ledger {
	return &Ledger{db: db, metrics: m}
}

func (l *Ledger) conn(ctx context.Context, tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx.WithContext(ctx)
	}
	return l.db.WithContext(ctx)
}

// TryReserve increases reserved_stock by qty only if the result stays within
// stock. It reports false, with no mutation, when availability is short.
func (l *Ledger) TryReserve(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int) (bool, error) {
	if qty <= 0 {
		return false, pkgerrors.New(pkgerrors.CodeValidation, "reservation quantity must be positive")
	}

	res := l.conn(ctx, tx).Exec(`
		UPDATE products
		SET reserved_stock = reserved_stock + ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND reserved_stock + ? <= stock
	`, qty, productID, qty)
	if res.Error != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "reserve stock")
	}

	reserved := res.RowsAffected == 1
	l.metrics.IncReservation(reserved)
	return reserved, nil
}

// Release returns qty to available stock. reserved_stock is floored at zero
// so a repeated release cannot drive it negative.
func (l *Ledger) Release(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int) error {
	if qty <= 0 {
		return nil
	}

	res := l.conn(ctx, tx).Exec(`
		UPDATE products
		SET reserved_stock = CASE WHEN reserved_stock >= ? THEN reserved_stock - ? ELSE 0 END,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, qty, qty, productID)
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "release stock")
	}
	return nil
}

// Commit finalises a sale of qty units: stock and reserved_stock drop together.
func (l *Ledger) Commit(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int) error {
	if qty <= 0 {
		return nil
	}

	res := l.conn(ctx, tx).Exec(`
		UPDATE products
		SET stock = CASE WHEN stock >= ? THEN stock - ? ELSE 0 END,
			reserved_stock = CASE WHEN reserved_stock >= ? THEN reserved_stock - ? ELSE 0 END,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, qty, qty, qty, qty, productID)
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "commit stock")
	}
	if res.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}
	return nil
}

// ReleaseOrder releases every item of order.
func (l *Ledger) ReleaseOrder(ctx context.Context, tx *gorm.DB, items []models.OrderItem) error {
	for _, item := range items {
		if err := l.Release(ctx, tx, item.ProductID, item.Quantity); err != nil {
			return err
		}
	}
	return nil
}

// CommitOrder commits every item of order and adds the sale to the
// customer's aggregate statistics.
func (l *Ledger) CommitOrder(ctx context.Context, tx *gorm.DB, order models.Order) error {
	for _, item := range order.Items {
		if err := l.Commit(ctx, tx, item.ProductID, item.Quantity); err != nil {
			return err
		}
	}
	return l.recordSale(ctx, tx, order.CustomerID, order.TotalAmount)
}

func (l *Ledger) recordSale(ctx context.Context, tx *gorm.DB, customerID uuid.UUID, amount decimal.Decimal) error {
	res := l.conn(ctx, tx).Exec(`
		UPDATE customers
		SET total_orders = total_orders + 1,
			total_spent = total_spent + ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, amount, customerID)
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "update customer stats")
	}
	return nil
}
