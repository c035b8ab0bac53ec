package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Customer is a chat contact of a shop, keyed by the messaging platform id.
type Customer struct {
	ID            uuid.UUID         `gorm:"column:id;type:uuid;primaryKey"`
	ShopID        uuid.UUID         `gorm:"column:shop_id;type:uuid;not null;uniqueIndex:idx_customers_shop_external"`
	ExternalID    string            `gorm:"column:external_id;not null;uniqueIndex:idx_customers_shop_external"`
	Name          *string           `gorm:"column:name"`
	Phone         *string           `gorm:"column:phone"`
	Address       *string           `gorm:"column:address"`
	Preferences   map[string]string `gorm:"column:preferences;type:jsonb;serializer:json"`
	AIPausedUntil *time.Time        `gorm:"column:ai_paused_until"`
	TotalOrders   int               `gorm:"column:total_orders;not null;default:0"`
	TotalSpent    decimal.Decimal   `gorm:"column:total_spent;type:numeric(12,2);not null;default:0"`
	CreatedAt     time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}

// AIPaused reports whether automated replies are suppressed at now.
func (c Customer) AIPaused(now time.Time) bool {
	return c.AIPausedUntil != nil && now.Before(*c.AIPausedUntil)
}
