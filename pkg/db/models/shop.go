package models

import (
	"time"

	"github.com/google/uuid"
)

// Shop owns products, customers and orders. OwnerPushToken addresses the owner's device.
type Shop struct {
	ID             uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	Name           string    `gorm:"column:name;not null"`
	PageID         string    `gorm:"column:page_id;not null;uniqueIndex"`
	OwnerPushToken *string   `gorm:"column:owner_push_token"`
	CreatedAt      time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
