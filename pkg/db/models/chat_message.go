package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/shopchat-core/pkg/enums"
)

// ChatMessage is one persisted conversation turn.
type ChatMessage struct {
	ID         uuid.UUID      `gorm:"column:id;type:uuid;primaryKey"`
	CustomerID uuid.UUID      `gorm:"column:customer_id;type:uuid;not null;index"`
	Role       enums.ChatRole `gorm:"column:role;type:text;not null"`
	Content    string         `gorm:"column:content;not null"`
	CreatedAt  time.Time      `gorm:"column:created_at;autoCreateTime;index"`
}
