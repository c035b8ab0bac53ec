package products

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/shopchat-core/pkg/db/models"
	pkgerrors "github.com/angelmondragon/shopchat-core/pkg/errors"
)

const defaultSearchLimit = 10

// Repository reads the product catalog. Stock columns are never written here.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindByID(ctx context.Context, shopID, productID uuid.UUID) (*models.Product, error)
	MatchByName(ctx context.Context, shopID uuid.UUID, name string) (*models.Product, error)
	Search(ctx context.Context, shopID uuid.UUID, query string, limit int) ([]models.Product, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a products repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindByID(ctx context.Context, shopID, productID uuid.UUID) (*models.Product, error) {
	var product models.Product
	err := r.db.WithContext(ctx).
		Where("id = ? AND shop_id = ?", productID, shopID).
		First(&product).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	return &product, nil
}

// MatchByName resolves a customer-typed name to one active product: an exact
// case-insensitive match wins, otherwise the shortest name containing the
// query as a substring.
func (r *repository) MatchByName(ctx context.Context, shopID uuid.UUID, name string) (*models.Product, error) {
	needle := strings.ToLower(strings.TrimSpace(name))
	if needle == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product name is required")
	}

	var exact models.Product
	err := r.db.WithContext(ctx).
		Where("shop_id = ? AND is_active = ? AND LOWER(name) = ?", shopID, true, needle).
		First(&exact).Error
	if err == nil {
		return &exact, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "match product")
	}

	var partial models.Product
	err = r.db.WithContext(ctx).
		Where("shop_id = ? AND is_active = ? AND LOWER(name) LIKE ? ESCAPE '\\'", shopID, true, likePattern(needle)).
		Order("LENGTH(name) ASC").
		Order("name ASC").
		First(&partial).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "no product matches \""+strings.TrimSpace(name)+"\"")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "match product")
	}
	return &partial, nil
}

func (r *repository) Search(ctx context.Context, shopID uuid.UUID, query string, limit int) ([]models.Product, error) {
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	q := r.db.WithContext(ctx).
		Where("shop_id = ? AND is_active = ?", shopID, true)
	if needle := strings.ToLower(strings.TrimSpace(query)); needle != "" {
		q = q.Where("LOWER(name) LIKE ? ESCAPE '\\'", likePattern(needle))
	}

	var products []models.Product
	if err := q.Order("name ASC").Limit(limit).Find(&products).Error; err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "search products")
	}
	return products, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func likePattern(needle string) string {
	return "%" + likeEscaper.Replace(needle) + "%"
}
