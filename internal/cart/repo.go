package cart

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/shopchat-core/pkg/db/models"
)

// Repository persists carts and their items. Carts never touch stock.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Ensure(ctx context.Context, shopID, customerID uuid.UUID) (*models.Cart, error)
	FindByCustomer(ctx context.Context, customerID uuid.UUID) (*models.Cart, error)
	FindItem(ctx context.Context, cartID, productID uuid.UUID, variant *string) (*models.CartItem, error)
	CreateItem(ctx context.Context, item *models.CartItem) error
	SetItemQuantity(ctx context.Context, itemID uuid.UUID, qty int) error
	DeleteItem(ctx context.Context, itemID uuid.UUID) error
	NextPosition(ctx context.Context, cartID uuid.UUID) (int, error)
	Clear(ctx context.Context, cartID uuid.UUID) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a cart repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// Ensure creates the customer's cart if it does not exist yet and returns it with items.
func (r *repository) Ensure(ctx context.Context, shopID, customerID uuid.UUID) (*models.Cart, error) {
	cart := models.Cart{ShopID: shopID, CustomerID: customerID}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "customer_id"}}, DoNothing: true}).
		Create(&cart).Error
	if err != nil {
		return nil, err
	}
	return r.FindByCustomer(ctx, customerID)
}

func (r *repository) FindByCustomer(ctx context.Context, customerID uuid.UUID) (*models.Cart, error) {
	var cart models.Cart
	err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC")
		}).
		Preload("Items.Product").
		Where("customer_id = ?", customerID).
		First(&cart).Error
	if err != nil {
		return nil, err
	}
	return &cart, nil
}

func (r *repository) FindItem(ctx context.Context, cartID, productID uuid.UUID, variant *string) (*models.CartItem, error) {
	q := r.db.WithContext(ctx).Where("cart_id = ? AND product_id = ?", cartID, productID)
	if variant == nil {
		q = q.Where("variant IS NULL")
	} else {
		q = q.Where("variant = ?", *variant)
	}

	var item models.CartItem
	if err := q.First(&item).Error; err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *repository) CreateItem(ctx context.Context, item *models.CartItem) error {
	return r.db.WithContext(ctx).Create(item).Error
}

func (r *repository) SetItemQuantity(ctx context.Context, itemID uuid.UUID, qty int) error {
	return r.db.WithContext(ctx).
		Model(&models.CartItem{}).
		Where("id = ?", itemID).
		Update("quantity", qty).Error
}

func (r *repository) DeleteItem(ctx context.Context, itemID uuid.UUID) error {
	return r.db.WithContext(ctx).Where("id = ?", itemID).Delete(&models.CartItem{}).Error
}

func (r *repository) NextPosition(ctx context.Context, cartID uuid.UUID) (int, error) {
	var last int
	err := r.db.WithContext(ctx).
		Model(&models.CartItem{}).
		Where("cart_id = ?", cartID).
		Select("COALESCE(MAX(position), -1)").
		Row().
		Scan(&last)
	if err != nil {
		return 0, err
	}
	return last + 1, nil
}

func (r *repository) Clear(ctx context.Context, cartID uuid.UUID) error {
	return r.db.WithContext(ctx).Where("cart_id = ?", cartID).Delete(&models.CartItem{}).Error
}

// Total sums the line totals of cart.
func Total(cart *models.Cart) decimal.Decimal {
	total := decimal.Zero
	if cart == nil {
		return total
	}
	for _, item := range cart.Items {
		total = total.Add(item.LineTotal())
	}
	return total
}

func isNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
