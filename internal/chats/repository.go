package chats

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/shopchat-core/pkg/db/models"
	"github.com/angelmondragon/shopchat-core/pkg/enums"
	pkgerrors "github.com/angelmondragon/shopchat-core/pkg/errors"
)

const defaultHistory = 20

// Repository persists conversation turns.
type Repository interface {
	Append(ctx context.Context, customerID uuid.UUID, role enums.ChatRole, content string) (*models.ChatMessage, error)
	Recent(ctx context.Context, customerID uuid.UUID, limit int) ([]models.ChatMessage, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a chat history repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Append(ctx context.Context, customerID uuid.UUID, role enums.ChatRole, content string) (*models.ChatMessage, error) {
	if !role.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid chat role")
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "message content is required")
	}
	msg := models.ChatMessage{
		CustomerID: customerID,
		Role:       role,
		Content:    content,
	}
	if err := r.db.WithContext(ctx).Create(&msg).Error; err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append chat message")
	}
	return &msg, nil
}

// Recent returns the newest limit turns of a customer, oldest first.
func (r *repository) Recent(ctx context.Context, customerID uuid.UUID, limit int) ([]models.ChatMessage, error) {
	if limit <= 0 {
		limit = defaultHistory
	}
	var rows []models.ChatMessage
	err := r.db.WithContext(ctx).
		Where("customer_id = ?", customerID).
		Order("created_at DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load chat history")
	}
	for i, j := 0, len(rows)-1; i < j; i, j = i+1, j-1 {
		rows[i], rows[j] = rows[j], rows[i]
	}
	return rows, nil
}
