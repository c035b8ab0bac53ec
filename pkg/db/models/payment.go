package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/shopchat-core/pkg/enums"
)

// Payment tracks one gateway invoice for an order. At most one payment per
// order reaches paid.
type Payment struct {
	ID            uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	OrderID       uuid.UUID           `gorm:"column:order_id;type:uuid;not null;index"`
	Method        enums.PaymentMethod `gorm:"column:method;type:text;not null;default:'qr'"`
	Status        enums.PaymentStatus `gorm:"column:status;type:text;not null;default:'pending'"`
	Amount        decimal.Decimal     `gorm:"column:amount;type:numeric(12,2);not null"`
	InvoiceID     string              `gorm:"column:invoice_id;not null;uniqueIndex"`
	QRPayload     *string             `gorm:"column:qr_payload"`
	TransactionID *string             `gorm:"column:transaction_id"`
	FailureReason *string             `gorm:"column:failure_reason"`
	ExpiresAt     time.Time           `gorm:"column:expires_at;not null"`
	PaidAt        *time.Time          `gorm:"column:paid_at"`
	CreatedAt     time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}
