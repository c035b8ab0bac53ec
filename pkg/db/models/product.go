package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Product is a shop listing. ReservedStock is only written through the ledger.
type Product struct {
	ID            uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	ShopID        uuid.UUID       `gorm:"column:shop_id;type:uuid;not null;index"`
	Name          string          `gorm:"column:name;not null"`
	Description   *string         `gorm:"column:description"`
	Price         decimal.Decimal `gorm:"column:price;type:numeric(12,2);not null"`
	Stock         int             `gorm:"column:stock;not null;default:0"`
	ReservedStock int             `gorm:"column:reserved_stock;not null;default:0"`
	ImageURL      *string         `gorm:"column:image_url"`
	IsActive      bool            `gorm:"column:is_active;not null;default:true"`
	CreatedAt     time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

// Available is the quantity that can still be reserved.
func (p Product) Available() int {
	if p.ReservedStock >= p.Stock {
		return 0
	}
	return p.Stock - p.ReservedStock
}
