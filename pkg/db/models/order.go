package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/shopchat-core/pkg/enums"
)

// Order is created by create_order or checkout and mutated only through the
// order state machine. TotalAmount equals the sum of its items' line totals.
type Order struct {
	ID           uuid.UUID         `gorm:"column:id;type:uuid;primaryKey"`
	ShopID       uuid.UUID         `gorm:"column:shop_id;type:uuid;not null;index"`
	CustomerID   uuid.UUID         `gorm:"column:customer_id;type:uuid;not null;index"`
	Status       enums.OrderStatus `gorm:"column:status;type:text;not null;default:'pending';index"`
	TotalAmount  decimal.Decimal   `gorm:"column:total_amount;type:numeric(12,2);not null"`
	CancelReason *string           `gorm:"column:cancel_reason"`
	Items        []OrderItem       `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	Payments     []Payment         `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	ConfirmedAt  *time.Time        `gorm:"column:confirmed_at"`
	DeliveredAt  *time.Time        `gorm:"column:delivered_at"`
	CancelledAt  *time.Time        `gorm:"column:cancelled_at"`
	CreatedAt    time.Time         `gorm:"column:created_at;autoCreateTime;index"`
	UpdatedAt    time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}

// OrderItem freezes the product name and unit price at order creation.
type OrderItem struct {
	ID          uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	OrderID     uuid.UUID       `gorm:"column:order_id;type:uuid;not null;index"`
	ProductID   uuid.UUID       `gorm:"column:product_id;type:uuid;not null"`
	ProductName string          `gorm:"column:product_name;not null"`
	Variant     *string         `gorm:"column:variant"`
	Quantity    int             `gorm:"column:quantity;not null"`
	UnitPrice   decimal.Decimal `gorm:"column:unit_price;type:numeric(12,2);not null"`
	CreatedAt   time.Time       `gorm:"column:created_at;autoCreateTime"`
}

// LineTotal is quantity times the frozen unit price.
func (i OrderItem) LineTotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}
