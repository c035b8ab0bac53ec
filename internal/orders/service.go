package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/shopchat-core/internal/ledger"
	"github.com/angelmondragon/shopchat-core/pkg/db/models"
	"github.com/angelmondragon/shopchat-core/pkg/enums"
	pkgerrors "github.com/angelmondragon/shopchat-core/pkg/errors"
	"github.com/angelmondragon/shopchat-core/pkg/logger"
	"github.com/angelmondragon/shopchat-core/pkg/metrics"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Notifier receives order events after they are committed. Implementations
// must not block and must swallow their own failures.
type Notifier interface {
	OrderCreated(ctx context.Context, order models.Order)
	OrderStatusChanged(ctx context.Context, order models.Order, from enums.OrderStatus)
}

// Line is one product requested for a new order.
type Line struct {
	Product  models.Product
	Variant  *string
	Quantity int
}

// PlaceInput describes a new order. OnPlaced runs inside the placing
// transaction after the order row exists; an error aborts the whole order.
type PlaceInput struct {
	ShopID     uuid.UUID
	CustomerID uuid.UUID
	Lines      []Line
	OnPlaced   func(tx *gorm.DB, order *models.Order) error
}

// Service owns order placement and every status change.
type Service interface {
	Place(ctx context.Context, input PlaceInput) (*models.Order, error)
	Get(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	LatestForCustomer(ctx context.Context, customerID uuid.UUID, openOnly bool) (*models.Order, error)
	Transition(ctx context.Context, orderID uuid.UUID, to enums.OrderStatus, reason *string) (*models.Order, error)
	ApplyTransition(ctx context.Context, tx *gorm.DB, order *models.Order, to enums.OrderStatus, reason *string) (bool, error)
	NotifyTransition(ctx context.Context, order models.Order, from enums.OrderStatus)
}

type service struct {
	repo     Repository
	tx       txRunner
	ledger   *ledger.Ledger
	notifier Notifier
	metrics  *metrics.CommerceMetrics
	logg     *logger.Logger
	now      func() time.Time
}

// ServiceParams groups the order service dependencies.
type ServiceParams struct {
	Repo     Repository
	Tx       txRunner
	Ledger   *ledger.Ledger
	Notifier Notifier
	Metrics  *metrics.CommerceMetrics
	Logger   *logger.Logger
	Now      func() time.Time
}

// NewService builds the order service.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Ledger == nil {
		return nil, fmt.Errorf("stock ledger required")
	}
	if params.Notifier == nil {
		return nil, fmt.Errorf("notifier required")
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		repo:     params.Repo,
		tx:       params.Tx,
		ledger:   params.Ledger,
		notifier: params.Notifier,
		metrics:  params.Metrics,
		logg:     logg,
		now:      now,
	}, nil
}

// Place reserves stock for every line and writes the order in one
// transaction. If any line cannot be reserved nothing is written.
func (s *service) Place(ctx context.Context, input PlaceInput) (*models.Order, error) {
	if input.ShopID == uuid.Nil || input.CustomerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "shop and customer are required")
	}
	if len(input.Lines) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order must contain at least one item")
	}

	var order *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		items := make([]models.OrderItem, 0, len(input.Lines))
		total := decimal.Zero

		for _, line := range input.Lines {
			if line.Quantity <= 0 {
				return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
			}

			var product models.Product
			if err := tx.WithContext(ctx).Where("id = ?", line.Product.ID).First(&product).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
				}
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
			}
			if !product.IsActive {
				return pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("%s is no longer available", product.Name))
			}
			if line.Quantity > product.Available() {
				return insufficientStock(product, line.Quantity, product.Available())
			}

			ok, err := s.ledger.TryReserve(ctx, tx, product.ID, line.Quantity)
			if err != nil {
				return err
			}
			if !ok {
				return insufficientStock(product, line.Quantity, -1)
			}

			item := models.OrderItem{
				ProductID:   product.ID,
				ProductName: product.Name,
				Variant:     line.Variant,
				Quantity:    line.Quantity,
				UnitPrice:   product.Price,
			}
			total = total.Add(item.LineTotal())
			items = append(items, item)
		}

		order = &models.Order{
			ShopID:      input.ShopID,
			CustomerID:  input.CustomerID,
			Status:      enums.OrderStatusPending,
			TotalAmount: total,
			Items:       items,
			CreatedAt:   s.now().UTC(),
		}
		if err := s.repo.WithTx(tx).Create(ctx, order); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
		}

		if input.OnPlaced != nil {
			return input.OnPlaced(tx, order)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.notifier.OrderCreated(ctx, *order)
	return order, nil
}

func insufficientStock(product models.Product, requested, available int) error {
	msg := fmt.Sprintf("not enough stock for %s: requested %d", product.Name, requested)
	details := map[string]any{
		"product_id": product.ID.String(),
		"product":    product.Name,
		"requested":  requested,
	}
	if available >= 0 {
		msg = fmt.Sprintf("%s, only %d left in stock", msg, available)
		details["available"] = available
	}
	return pkgerrors.New(pkgerrors.CodeInsufficientStock, msg).WithDetails(details)
}

func (s *service) Get(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		return nil, mapFindErr(err)
	}
	return order, nil
}

func (s *service) LatestForCustomer(ctx context.Context, customerID uuid.UUID, openOnly bool) (*models.Order, error) {
	order, err := s.repo.FindLatestForCustomer(ctx, customerID, openOnly)
	if err != nil {
		return nil, mapFindErr(err)
	}
	return order, nil
}

// Transition validates and applies a status change in its own transaction,
// then notifies. Notification failures never undo the change.
func (s *service) Transition(ctx context.Context, orderID uuid.UUID, to enums.OrderStatus, reason *string) (*models.Order, error) {
	var (
		order *models.Order
		from  enums.OrderStatus
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		found, err := s.repo.WithTx(tx).FindByID(ctx, orderID)
		if err != nil {
			return mapFindErr(err)
		}
		from = found.Status

		applied, err := s.ApplyTransition(ctx, tx, found, to, reason)
		if err != nil {
			return err
		}
		if !applied {
			return pkgerrors.New(pkgerrors.CodeConflict, "order status changed concurrently")
		}
		order = found
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.NotifyTransition(ctx, *order, from)
	return order, nil
}

// ApplyTransition performs the guarded status update and its ledger side
// effects inside tx. It returns false without error when the order was no
// longer in the status the caller observed. order is updated in place.
func (s *service) ApplyTransition(ctx context.Context, tx *gorm.DB, order *models.Order, to enums.OrderStatus, reason *string) (bool, error) {
	if order == nil {
		return false, pkgerrors.New(pkgerrors.CodeValidation, "order is required")
	}
	if err := ValidateTransition(order.Status, to); err != nil {
		return false, err
	}

	at := s.now().UTC()
	repo := s.repo.WithTx(tx)
	applied, err := repo.CompareAndSetStatus(ctx, order.ID, order.Status, to, at, reason)
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
	}
	if !applied {
		return false, nil
	}

	switch to {
	case enums.OrderStatusCancelled:
		if err := s.ledger.ReleaseOrder(ctx, tx, order.Items); err != nil {
			return false, err
		}
		failReason := "order cancelled"
		if reason != nil && *reason != "" {
			failReason = *reason
		}
		if _, err := repo.FailPendingPayments(ctx, order.ID, failReason); err != nil {
			return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "fail pending payments")
		}
		order.CancelledAt = &at
		order.CancelReason = reason
	case enums.OrderStatusDelivered:
		if err := s.ledger.CommitOrder(ctx, tx, *order); err != nil {
			return false, err
		}
		order.DeliveredAt = &at
	case enums.OrderStatusConfirmed:
		order.ConfirmedAt = &at
	}

	order.Status = to
	order.UpdatedAt = at
	s.metrics.IncTransition(to.String())
	return true, nil
}

// NotifyTransition fans out the best-effort notifications for a committed change.
func (s *service) NotifyTransition(ctx context.Context, order models.Order, from enums.OrderStatus) {
	ctx = s.logg.WithOrderID(ctx, order.ID.String())
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"from": from.String(),
		"to":   order.Status.String(),
	}), "order status changed")
	s.notifier.OrderStatusChanged(ctx, order, from)
}

func mapFindErr(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	if pkgerrors.As(err) != nil {
		return err
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
}
