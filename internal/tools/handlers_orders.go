package tools

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/shopchat-core/internal/orders"
	"github.com/angelmondragon/shopchat-core/internal/payments"
	"github.com/angelmondragon/shopchat-core/pkg/db/models"
	"github.com/angelmondragon/shopchat-core/pkg/enums"
	pkgerrors "github.com/angelmondragon/shopchat-core/pkg/errors"
)

func (e *Executor) createOrder(ctx context.Context, s Session, args CreateOrderArgs) (Result, error) {
	product, err := e.products.MatchByName(ctx, s.ShopID, args.ProductName)
	if err != nil {
		return Result{}, err
	}

	order, err := e.orders.Place(ctx, orders.PlaceInput{
		ShopID:     s.ShopID,
		CustomerID: s.CustomerID,
		Lines:      []orders.Line{{Product: *product, Variant: args.Variant, Quantity: args.Quantity}},
	})
	if err != nil {
		return Result{}, err
	}
	return e.orderPlaced(ctx, order), nil
}

func (e *Executor) checkout(ctx context.Context, s Session) (Result, error) {
	c, err := e.cart.Get(ctx, s.ShopID, s.CustomerID)
	if err != nil {
		return Result{}, err
	}
	if len(c.Items) == 0 {
		return fail("The cart is empty. Add some products first."), nil
	}

	lines := make([]orders.Line, 0, len(c.Items))
	for _, item := range c.Items {
		if item.Product == nil {
			return Result{}, pkgerrors.New(pkgerrors.CodeNotFound, "a product in the cart is no longer available")
		}
		lines = append(lines, orders.Line{Product: *item.Product, Variant: item.Variant, Quantity: item.Quantity})
	}

	order, err := e.orders.Place(ctx, orders.PlaceInput{
		ShopID:     s.ShopID,
		CustomerID: s.CustomerID,
		Lines:      lines,
		OnPlaced: func(tx *gorm.DB, _ *models.Order) error {
			return e.cart.Clear(ctx, tx, c.ID)
		},
	})
	if err != nil {
		return Result{}, err
	}
	return e.orderPlaced(ctx, order), nil
}

// orderPlaced requests the invoice for a committed order. An invoice failure
// leaves the order pending; the expiry sweeper reclaims it if never paid.
func (e *Executor) orderPlaced(ctx context.Context, order *models.Order) Result {
	payment, err := e.payments.CreateInvoice(ctx, *order)
	if err != nil {
		e.logg.Error(e.logg.WithOrderID(ctx, order.ID.String()), "invoice creation failed", err)
		return ok(
			fmt.Sprintf("Order %s placed for %s. Payment details will follow shortly.", shortID(order.ID.String()), order.TotalAmount.StringFixed(2)),
			newOrderView(order, nil),
		)
	}
	return ok(
		fmt.Sprintf("Order %s placed for %s. Scan the QR code to pay.", shortID(order.ID.String()), order.TotalAmount.StringFixed(2)),
		newOrderView(order, payment),
	)
}

func (e *Executor) cancelOrder(ctx context.Context, s Session, args CancelOrderArgs) (Result, error) {
	order, err := e.resolveOrder(ctx, s, args.OrderID, true)
	if err != nil {
		return Result{}, err
	}
	if order.Status.IsTerminal() {
		return fail(fmt.Sprintf("Order %s is already %s and cannot be cancelled.", shortID(order.ID.String()), order.Status)), nil
	}

	reason := args.Reason
	if reason == nil {
		r := "cancelled by customer"
		reason = &r
	}
	cancelled, err := e.orders.Transition(ctx, order.ID, enums.OrderStatusCancelled, reason)
	if err != nil {
		if pkgerrors.CodeOf(err) == pkgerrors.CodeInvalidTransition {
			return fail(fmt.Sprintf("Order %s can no longer be cancelled.", shortID(order.ID.String()))), nil
		}
		return Result{}, err
	}
	return ok(fmt.Sprintf("Order %s was cancelled.", shortID(cancelled.ID.String())), newOrderView(cancelled, nil)), nil
}

func (e *Executor) checkOrderStatus(ctx context.Context, s Session, args CheckOrderStatusArgs) (Result, error) {
	order, err := e.resolveOrder(ctx, s, args.OrderID, false)
	if err != nil {
		return Result{}, err
	}
	return ok(fmt.Sprintf("Order %s is %s.", shortID(order.ID.String()), order.Status), newOrderView(order, nil)), nil
}

// checkPaymentStatus asks the gateway about the order's latest invoice and
// settles it through the same path as the webhook when paid.
func (e *Executor) checkPaymentStatus(ctx context.Context, s Session, args CheckPaymentStatusArgs) (Result, error) {
	order, err := e.resolveOrder(ctx, s, args.OrderID, false)
	if err != nil {
		return Result{}, err
	}
	payment, err := e.payments.LatestForOrder(ctx, *order)
	if err != nil {
		return Result{}, err
	}

	if payment.Status == enums.PaymentStatusPending {
		res, err := e.payments.Reconcile(ctx, payment.InvoiceID)
		if err != nil {
			return Result{}, err
		}
		payment = res.Payment
		if res.Order != nil {
			order = res.Order
		}
		if res.Outcome == payments.OutcomeNotPaid {
			return ok(fmt.Sprintf("We have not received payment for order %s yet.", shortID(order.ID.String())), newOrderView(order, payment)), nil
		}
	}

	switch payment.Status {
	case enums.PaymentStatusPaid:
		return ok(fmt.Sprintf("Payment for order %s is confirmed.", shortID(order.ID.String())), newOrderView(order, payment)), nil
	case enums.PaymentStatusFailed:
		return ok(fmt.Sprintf("The payment for order %s did not go through.", shortID(order.ID.String())), newOrderView(order, payment)), nil
	}
	return ok(fmt.Sprintf("Payment for order %s is still pending.", shortID(order.ID.String())), newOrderView(order, payment)), nil
}

// resolveOrder loads the order by id, scoped to the session's customer, or
// the customer's latest order when id is nil.
func (e *Executor) resolveOrder(ctx context.Context, s Session, id *string, openOnly bool) (*models.Order, error) {
	if id == nil {
		order, err := e.orders.LatestForCustomer(ctx, s.CustomerID, openOnly)
		if err != nil && pkgerrors.CodeOf(err) == pkgerrors.CodeNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "You have no orders yet.")
		}
		return order, err
	}

	orderID, err := uuid.Parse(*id)
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id is invalid")
	}
	order, err := e.orders.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.CustomerID != s.CustomerID || order.ShopID != s.ShopID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return order, nil
}
