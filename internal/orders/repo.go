package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/shopchat-core/pkg/db/models"
	"github.com/angelmondragon/shopchat-core/pkg/enums"
)

// Repository persists orders. Status changes go through CompareAndSetStatus only.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, order *models.Order) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	FindLatestForCustomer(ctx context.Context, customerID uuid.UUID, openOnly bool) (*models.Order, error)
	CompareAndSetStatus(ctx context.Context, id uuid.UUID, from, to enums.OrderStatus, at time.Time, reason *string) (bool, error)
	FailPendingPayments(ctx context.Context, orderID uuid.UUID, reason string) (int64, error)
	FindStalePending(ctx context.Context, cutoff time.Time, limit int) ([]uuid.UUID, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds an orders repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, order *models.Order) error {
	return r.db.WithContext(ctx).Create(order).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("Items").
		Preload("Payments", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC")
		}).
		Where("id = ?", id).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) FindLatestForCustomer(ctx context.Context, customerID uuid.UUID, openOnly bool) (*models.Order, error) {
	q := r.db.WithContext(ctx).
		Preload("Items").
		Preload("Payments", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC")
		}).
		Where("customer_id = ?", customerID)
	if openOnly {
		q = q.Where("status NOT IN ?", []enums.OrderStatus{enums.OrderStatusDelivered, enums.OrderStatusCancelled})
	}

	var order models.Order
	if err := q.Order("created_at DESC").First(&order).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

// CompareAndSetStatus moves the order to `to` only while it is still in
// `from`. It reports false when another writer got there first.
func (r *repository) CompareAndSetStatus(ctx context.Context, id uuid.UUID, from, to enums.OrderStatus, at time.Time, reason *string) (bool, error) {
	updates := map[string]any{
		"status":     to,
		"updated_at": at,
	}
	switch to {
	case enums.OrderStatusConfirmed:
		updates["confirmed_at"] = at
	case enums.OrderStatusDelivered:
		updates["delivered_at"] = at
	case enums.OrderStatusCancelled:
		updates["cancelled_at"] = at
		if reason != nil {
			updates["cancel_reason"] = *reason
		}
	}

	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// FailPendingPayments marks every still-pending payment of the order failed.
func (r *repository) FailPendingPayments(ctx context.Context, orderID uuid.UUID, reason string) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Payment{}).
		Where("order_id = ? AND status = ?", orderID, enums.PaymentStatusPending).
		Updates(map[string]any{
			"status":         enums.PaymentStatusFailed,
			"failure_reason": reason,
			"updated_at":     time.Now().UTC(),
		})
	return res.RowsAffected, res.Error
}

// FindStalePending lists pending orders created before cutoff that have no paid payment, oldest first.
func (r *repository) FindStalePending(ctx context.Context, cutoff time.Time, limit int) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	q := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("status = ? AND created_at < ?", enums.OrderStatusPending, cutoff).
		Where("NOT EXISTS (SELECT 1 FROM payments p WHERE p.order_id = orders.id AND p.status = ?)", enums.PaymentStatusPaid).
		Order("created_at ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Pluck("id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}
