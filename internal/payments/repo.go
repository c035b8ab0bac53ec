package payments

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/shopchat-core/pkg/db"
	"github.com/angelmondragon/shopchat-core/pkg/db/models"
	"github.com/angelmondragon/shopchat-core/pkg/enums"
)

var (
	// ErrDuplicateInvoice is returned when the invoice id is already stored.
	ErrDuplicateInvoice = errors.New("invoice already recorded")
	// ErrOrderAlreadyPaid is returned when the database refuses a second
	// paid payment for one order.
	ErrOrderAlreadyPaid = errors.New("order already has a paid payment")
)

// Repository persists payments. Settlement goes through MarkPaid only.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, payment *models.Payment) error
	FindByInvoiceID(ctx context.Context, invoiceID string) (*models.Payment, error)
	FindLatestForOrder(ctx context.Context, orderID uuid.UUID) (*models.Payment, error)
	CountPaidForOrder(ctx context.Context, orderID uuid.UUID, exceptID uuid.UUID) (int64, error)
	MarkPaid(ctx context.Context, id uuid.UUID, paidAt time.Time, transactionID string) (bool, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a payments repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, payment *models.Payment) error {
	err := r.db.WithContext(ctx).Create(payment).Error
	if db.IsUniqueViolation(err, "") {
		return ErrDuplicateInvoice
	}
	return err
}

func (r *repository) FindByInvoiceID(ctx context.Context, invoiceID string) (*models.Payment, error) {
	var payment models.Payment
	if err := r.db.WithContext(ctx).Where("invoice_id = ?", invoiceID).First(&payment).Error; err != nil {
		return nil, err
	}
	return &payment, nil
}

func (r *repository) FindLatestForOrder(ctx context.Context, orderID uuid.UUID) (*models.Payment, error) {
	var payment models.Payment
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at DESC").
		First(&payment).Error
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

func (r *repository) CountPaidForOrder(ctx context.Context, orderID uuid.UUID, exceptID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Payment{}).
		Where("order_id = ? AND status = ? AND id <> ?", orderID, enums.PaymentStatusPaid, exceptID).
		Count(&count).Error
	return count, err
}

// MarkPaid settles the payment unless it is already paid. It reports false
// when another writer settled it first.
func (r *repository) MarkPaid(ctx context.Context, id uuid.UUID, paidAt time.Time, transactionID string) (bool, error) {
	updates := map[string]any{
		"status":         enums.PaymentStatusPaid,
		"paid_at":        paidAt,
		"failure_reason": nil,
		"updated_at":     paidAt,
	}
	if transactionID != "" {
		updates["transaction_id"] = transactionID
	}
	res := r.db.WithContext(ctx).
		Model(&models.Payment{}).
		Where("id = ? AND status <> ?", id, enums.PaymentStatusPaid).
		Updates(updates)
	if db.IsUniqueViolation(res.Error, "") {
		return false, ErrOrderAlreadyPaid
	}
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}
