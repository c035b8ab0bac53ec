package shops

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/shopchat-core/pkg/db/models"
	pkgerrors "github.com/angelmondragon/shopchat-core/pkg/errors"
)

// Repository loads shops.
type Repository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Shop, error)
	FindByPageID(ctx context.Context, pageID string) (*models.Shop, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a shops repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Shop, error) {
	return r.first(ctx, "id = ?", id)
}

// FindByPageID resolves the shop that owns a messaging page.
func (r *repository) FindByPageID(ctx context.Context, pageID string) (*models.Shop, error) {
	return r.first(ctx, "page_id = ?", pageID)
}

func (r *repository) first(ctx context.Context, query string, arg any) (*models.Shop, error) {
	var shop models.Shop
	if err := r.db.WithContext(ctx).Where(query, arg).First(&shop).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "shop not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load shop")
	}
	return &shop, nil
}
