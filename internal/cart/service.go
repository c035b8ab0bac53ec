package cart

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/shopchat-core/pkg/db/models"
	pkgerrors "github.com/angelmondragon/shopchat-core/pkg/errors"
)

// MaxLineQuantity bounds the units a single cart line can hold.
const MaxLineQuantity = 100

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service exposes the customer cart. Callers serialise mutations per customer.
type Service interface {
	Get(ctx context.Context, shopID, customerID uuid.UUID) (*models.Cart, error)
	Add(ctx context.Context, shopID, customerID uuid.UUID, product models.Product, variant *string, qty int) (*models.Cart, error)
	Remove(ctx context.Context, shopID, customerID, productID uuid.UUID, variant *string, qty int) (*models.Cart, error)
	Clear(ctx context.Context, tx *gorm.DB, cartID uuid.UUID) error
}

type service struct {
	repo Repository
	tx   txRunner
}

// NewService builds a cart service backed by the provided stack.
func NewService(repo Repository, tx txRunner) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &service{repo: repo, tx: tx}, nil
}

func (s *service) Get(ctx context.Context, shopID, customerID uuid.UUID) (*models.Cart, error) {
	cart, err := s.repo.Ensure(ctx, shopID, customerID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}
	return cart, nil
}

// Add puts qty units of product in the cart, merging with an existing line of
// the same product and variant. The unit price is snapshotted on first add.
// The product's units across every line of the cart may not exceed what is
// available, and no line may exceed MaxLineQuantity.
func (s *service) Add(ctx context.Context, shopID, customerID uuid.UUID, product models.Product, variant *string, qty int) (*models.Cart, error) {
	if qty <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		cart, err := repo.Ensure(ctx, shopID, customerID)
		if err != nil {
			return err
		}

		existing, err := repo.FindItem(ctx, cart.ID, product.ID, variant)
		switch {
		case err == nil:
			if err := checkAdd(product, cart, existing.Quantity, qty); err != nil {
				return err
			}
			return repo.SetItemQuantity(ctx, existing.ID, existing.Quantity+qty)
		case !isNotFound(err):
			return err
		}
		if err := checkAdd(product, cart, 0, qty); err != nil {
			return err
		}

		pos, err := repo.NextPosition(ctx, cart.ID)
		if err != nil {
			return err
		}
		return repo.CreateItem(ctx, &models.CartItem{
			CartID:    cart.ID,
			ProductID: product.ID,
			Variant:   variant,
			Quantity:  qty,
			UnitPrice: product.Price,
			Position:  pos,
		})
	})
	if err != nil {
		if typed := pkgerrors.As(err); typed != nil {
			return nil, typed
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "add cart item")
	}
	return s.Get(ctx, shopID, customerID)
}

func checkAdd(product models.Product, cart *models.Cart, line, qty int) error {
	if line+qty > MaxLineQuantity {
		return pkgerrors.New(
			pkgerrors.CodeValidation,
			fmt.Sprintf("a cart line holds at most %d units of %s", MaxLineQuantity, product.Name),
		).WithDetails(map[string]any{"product": product.Name, "in_cart": line, "max": MaxLineQuantity})
	}

	inCart := 0
	for _, item := range cart.Items {
		if item.ProductID == product.ID {
			inCart += item.Quantity
		}
	}
	available := product.Available()
	if inCart+qty <= available {
		return nil
	}
	msg := fmt.Sprintf("only %d of %s in stock", available, product.Name)
	if inCart > 0 {
		msg = fmt.Sprintf("only %d of %s in stock and %d already in the cart", available, product.Name, inCart)
	}
	return pkgerrors.New(pkgerrors.CodeInsufficientStock, msg).
		WithDetails(map[string]any{"product": product.Name, "available": available, "in_cart": inCart})
}

// Remove takes qty units of the product off the cart. qty <= 0 removes the whole line.
func (s *service) Remove(ctx context.Context, shopID, customerID, productID uuid.UUID, variant *string, qty int) (*models.Cart, error) {
	cart, err := s.Get(ctx, shopID, customerID)
	if err != nil {
		return nil, err
	}

	item, err := s.repo.FindItem(ctx, cart.ID, productID, variant)
	if err != nil {
		if isNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "that product is not in the cart")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart item")
	}

	if qty <= 0 || qty >= item.Quantity {
		err = s.repo.DeleteItem(ctx, item.ID)
	} else {
		err = s.repo.SetItemQuantity(ctx, item.ID, item.Quantity-qty)
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update cart item")
	}
	return s.Get(ctx, shopID, customerID)
}

// Clear empties the cart inside the caller's transaction.
func (s *service) Clear(ctx context.Context, tx *gorm.DB, cartID uuid.UUID) error {
	if err := s.repo.WithTx(tx).Clear(ctx, cartID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear cart")
	}
	return nil
}
