// Package notifications fans out best-effort customer messages and shop-owner
// pushes for order events. Delivery failures are logged, never returned.
package notifications

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/shopchat-core/pkg/db/models"
	"github.com/angelmondragon/shopchat-core/pkg/enums"
	"github.com/angelmondragon/shopchat-core/pkg/logger"
	"github.com/angelmondragon/shopchat-core/pkg/messaging"
	"github.com/angelmondragon/shopchat-core/pkg/retry"
)

const defaultSendTimeout = 30 * time.Second

type customerLookup interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Customer, error)
}

type shopLookup interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Shop, error)
}

// Pusher delivers a push notification to a shop owner's device.
type Pusher interface {
	Push(ctx context.Context, token, title, body string) error
}

// Params groups the dispatcher dependencies.
type Params struct {
	Customers   customerLookup
	Shops       shopLookup
	Sender      messaging.Sender
	Pusher      Pusher
	Retry       retry.Policy
	SendTimeout time.Duration
	Logger      *logger.Logger
}

// Dispatcher sends notifications on background goroutines.
type Dispatcher struct {
	customers customerLookup
	shops     shopLookup
	sender    messaging.Sender
	pusher    Pusher
	retry     retry.Policy
	timeout   time.Duration
	logg      *logger.Logger
	wg        sync.WaitGroup
}

func NewDispatcher(params Params) (*Dispatcher, error) {
	if params.Customers == nil {
		return nil, fmt.Errorf("customer lookup required")
	}
	if params.Shops == nil {
		return nil, fmt.Errorf("shop lookup required")
	}
	if params.Sender == nil {
		return nil, fmt.Errorf("messaging sender required")
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	pusher := params.Pusher
	if pusher == nil {
		pusher = NewLogPusher(logg)
	}
	timeout := params.SendTimeout
	if timeout <= 0 {
		timeout = defaultSendTimeout
	}
	return &Dispatcher{
		customers: params.Customers,
		shops:     params.Shops,
		sender:    params.Sender,
		pusher:    pusher,
		retry:     params.Retry,
		timeout:   timeout,
		logg:      logg,
	}, nil
}

// OrderCreated tells the shop owner a new order is waiting for payment.
func (d *Dispatcher) OrderCreated(ctx context.Context, order models.Order) {
	d.async(ctx, order, func(ctx context.Context) {
		d.pushOwner(ctx, order.ShopID, "New order", fmt.Sprintf("Order %s for %s is awaiting payment", shortID(order.ID), order.TotalAmount.StringFixed(2)))
	})
}

// OrderStatusChanged messages the customer and the owner about a committed transition.
func (d *Dispatcher) OrderStatusChanged(ctx context.Context, order models.Order, from enums.OrderStatus) {
	d.async(ctx, order, func(ctx context.Context) {
		if text := StatusMessage(order); text != "" {
			d.messageCustomer(ctx, order.CustomerID, text)
		}
		d.pushOwner(ctx, order.ShopID, "Order updated", fmt.Sprintf("Order %s moved from %s to %s", shortID(order.ID), from, order.Status))
	})
}

// PaymentConfirmed sends the payment receipt and tells the owner money arrived.
func (d *Dispatcher) PaymentConfirmed(ctx context.Context, order models.Order, payment models.Payment) {
	d.async(ctx, order, func(ctx context.Context) {
		d.messageCustomer(ctx, order.CustomerID, fmt.Sprintf("We received your payment of %s for order %s. Thank you!", payment.Amount.StringFixed(2), shortID(order.ID)))
		d.pushOwner(ctx, order.ShopID, "Payment received", fmt.Sprintf("Order %s was paid (%s)", shortID(order.ID), payment.Amount.StringFixed(2)))
	})
}

// HumanSupportRequested tells the owner a customer is waiting for a person.
func (d *Dispatcher) HumanSupportRequested(ctx context.Context, shopID uuid.UUID, customer models.Customer, reason string) {
	base := d.logg.WithCustomerID(context.WithoutCancel(ctx), customer.ID.String())
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		ctx, cancel := context.WithTimeout(base, d.timeout)
		defer cancel()

		who := customer.ExternalID
		if customer.Name != nil && *customer.Name != "" {
			who = *customer.Name
		}
		body := fmt.Sprintf("%s asked to talk to a person", who)
		if reason != "" {
			body = fmt.Sprintf("%s: %s", body, reason)
		}
		d.pushOwner(ctx, shopID, "Customer needs help", body)
	}()
}

// Wait blocks until every in-flight notification has finished.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

func (d *Dispatcher) async(ctx context.Context, order models.Order, fn func(ctx context.Context)) {
	base := d.logg.WithOrderID(context.WithoutCancel(ctx), order.ID.String())
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		ctx, cancel := context.WithTimeout(base, d.timeout)
		defer cancel()
		fn(ctx)
	}()
}

func (d *Dispatcher) messageCustomer(ctx context.Context, customerID uuid.UUID, text string) {
	customer, err := d.customers.FindByID(ctx, customerID)
	if err != nil {
		d.logg.Error(ctx, "notification: load customer", err)
		return
	}
	err = retry.Do(ctx, d.retry, func(ctx context.Context) error {
		return retry.Classify(d.sender.SendTaggedMessage(ctx, customer.ExternalID, text, messaging.TagPostPurchaseUpdate))
	})
	if err != nil {
		d.logg.Error(ctx, "notification: customer message failed", err)
	}
}

func (d *Dispatcher) pushOwner(ctx context.Context, shopID uuid.UUID, title, body string) {
	shop, err := d.shops.FindByID(ctx, shopID)
	if err != nil {
		d.logg.Error(ctx, "notification: load shop", err)
		return
	}
	if shop.OwnerPushToken == nil || *shop.OwnerPushToken == "" {
		return
	}
	err = retry.Do(ctx, d.retry, func(ctx context.Context) error {
		return retry.Classify(d.pusher.Push(ctx, *shop.OwnerPushToken, title, body))
	})
	if err != nil {
		d.logg.Error(ctx, "notification: owner push failed", err)
	}
}

// StatusMessage is the customer-facing text for an order's current status.
func StatusMessage(order models.Order) string {
	id := shortID(order.ID)
	switch order.Status {
	case enums.OrderStatusConfirmed:
		return fmt.Sprintf("Your order %s is confirmed. We will start preparing it soon.", id)
	case enums.OrderStatusProcessing:
		return fmt.Sprintf("We are preparing your order %s.", id)
	case enums.OrderStatusShipped:
		return fmt.Sprintf("Your order %s is on its way!", id)
	case enums.OrderStatusDelivered:
		return fmt.Sprintf("Your order %s was delivered. Thanks for shopping with us!", id)
	case enums.OrderStatusCancelled:
		if order.CancelReason != nil && *order.CancelReason != "" {
			return fmt.Sprintf("Your order %s was cancelled (%s).", id, *order.CancelReason)
		}
		return fmt.Sprintf("Your order %s was cancelled.", id)
	default:
		return ""
	}
}

func shortID(id uuid.UUID) string {
	return "#" + id.String()[:8]
}
