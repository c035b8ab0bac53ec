package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Cart is the per-customer staging area. It never touches stock.
type Cart struct {
	ID         uuid.UUID  `gorm:"column:id;type:uuid;primaryKey"`
	ShopID     uuid.UUID  `gorm:"column:shop_id;type:uuid;not null"`
	CustomerID uuid.UUID  `gorm:"column:customer_id;type:uuid;not null;uniqueIndex"`
	Items      []CartItem `gorm:"foreignKey:CartID;constraint:OnDelete:CASCADE"`
	CreatedAt  time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

// CartItem snapshots the unit price at the moment the item was added.
type CartItem struct {
	ID        uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	CartID    uuid.UUID       `gorm:"column:cart_id;type:uuid;not null;index"`
	ProductID uuid.UUID       `gorm:"column:product_id;type:uuid;not null"`
	Variant   *string         `gorm:"column:variant"`
	Quantity  int             `gorm:"column:quantity;not null"`
	UnitPrice decimal.Decimal `gorm:"column:unit_price;type:numeric(12,2);not null"`
	Position  int             `gorm:"column:position;not null;default:0"`
	Product   *Product        `gorm:"foreignKey:ProductID"`
	CreatedAt time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

// LineTotal is quantity times the snapshotted unit price.
func (c CartItem) LineTotal() decimal.Decimal {
	return c.UnitPrice.Mul(decimal.NewFromInt(int64(c.Quantity)))
}
