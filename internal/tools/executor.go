package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/angelmondragon/shopchat-core/internal/cart"
	"github.com/angelmondragon/shopchat-core/internal/customers"
	"github.com/angelmondragon/shopchat-core/internal/orders"
	"github.com/angelmondragon/shopchat-core/internal/payments"
	"github.com/angelmondragon/shopchat-core/internal/products"
	"github.com/angelmondragon/shopchat-core/pkg/db/models"
	"github.com/angelmondragon/shopchat-core/pkg/logger"
	"github.com/angelmondragon/shopchat-core/pkg/metrics"
)

var tracer = otel.Tracer("github.com/angelmondragon/shopchat-core/internal/tools")

// Session identifies whose conversation a tool runs in.
type Session struct {
	ShopID     uuid.UUID
	CustomerID uuid.UUID
}

type paymentService interface {
	CreateInvoice(ctx context.Context, order models.Order) (*models.Payment, error)
	LatestForOrder(ctx context.Context, order models.Order) (*models.Payment, error)
	Reconcile(ctx context.Context, invoiceID string) (*payments.Result, error)
}

// HandoffNotifier is told when a customer asks for a human.
type HandoffNotifier interface {
	HumanSupportRequested(ctx context.Context, shopID uuid.UUID, customer models.Customer, reason string)
}

// ExecutorParams groups the executor dependencies.
type ExecutorParams struct {
	Catalog        *Catalog
	Products       products.Repository
	Customers      customers.Repository
	Cart           cart.Service
	Orders         orders.Service
	Payments       paymentService
	Handoff        HandoffNotifier
	PauseDuration  time.Duration
	PlaceholderURL string
	Metrics        *metrics.AssistantMetrics
	Logger         *logger.Logger
	Now            func() time.Time
}

// Executor validates and runs tool calls. Mutating calls for the same
// customer are serialised; different customers run in parallel.
type Executor struct {
	catalog        *Catalog
	products       products.Repository
	customers      customers.Repository
	cart           cart.Service
	orders         orders.Service
	payments       paymentService
	handoff        HandoffNotifier
	pauseDuration  time.Duration
	placeholderURL string
	metrics        *metrics.AssistantMetrics
	logg           *logger.Logger
	now            func() time.Time
	locks          *keyedMutex
}

func NewExecutor(params ExecutorParams) (*Executor, error) {
	switch {
	case params.Catalog == nil:
		return nil, fmt.Errorf("tool catalog required")
	case params.Products == nil:
		return nil, fmt.Errorf("products repository required")
	case params.Customers == nil:
		return nil, fmt.Errorf("customers repository required")
	case params.Cart == nil:
		return nil, fmt.Errorf("cart service required")
	case params.Orders == nil:
		return nil, fmt.Errorf("orders service required")
	case params.Payments == nil:
		return nil, fmt.Errorf("payments service required")
	}
	pause := params.PauseDuration
	if pause <= 0 {
		pause = 30 * time.Minute
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &Executor{
		catalog:        params.Catalog,
		products:       params.Products,
		customers:      params.Customers,
		cart:           params.Cart,
		orders:         params.Orders,
		payments:       params.Payments,
		handoff:        params.Handoff,
		pauseDuration:  pause,
		placeholderURL: params.PlaceholderURL,
		metrics:        params.Metrics,
		logg:           logg,
		now:            now,
		locks:          newKeyedMutex(),
	}, nil
}

// Catalog exposes the catalog the executor validates against.
func (e *Executor) Catalog() *Catalog {
	return e.catalog
}

// Execute validates and runs one tool call. It never returns an error: every
// failure becomes an unsuccessful Result the model can explain to the user.
func (e *Executor) Execute(ctx context.Context, session Session, name string, rawArgs json.RawMessage) Result {
	ctx, span := tracer.Start(ctx, "tools.execute")
	defer span.End()
	span.SetAttributes(attribute.String("tool.name", name))

	result := e.execute(ctx, session, name, rawArgs)
	span.SetAttributes(attribute.Bool("tool.success", result.Success))
	if !result.Success {
		span.SetStatus(codes.Error, result.Error)
	}
	e.metrics.IncToolCall(name, result.Success)
	return result
}

func (e *Executor) execute(ctx context.Context, session Session, name string, rawArgs json.RawMessage) Result {
	call, err := e.catalog.Validate(name, rawArgs)
	if err != nil {
		res, _ := failureFromError(err)
		return res
	}

	def, _ := e.catalog.Lookup(name)
	if !def.ReadOnly {
		unlock := e.locks.Lock(session.CustomerID.String())
		defer unlock()
	}

	res, err := e.dispatch(ctx, session, call)
	if err != nil {
		failure, expected := failureFromError(err)
		if !expected {
			e.logg.Error(e.logg.WithField(ctx, "tool", name), "tool execution failed", err)
		}
		return failure
	}
	return res
}

func (e *Executor) dispatch(ctx context.Context, session Session, call Call) (Result, error) {
	switch args := call.(type) {
	case CreateOrderArgs:
		return e.createOrder(ctx, session, args)
	case AddToCartArgs:
		return e.addToCart(ctx, session, args)
	case RemoveFromCartArgs:
		return e.removeFromCart(ctx, session, args)
	case ViewCartArgs:
		return e.viewCart(ctx, session)
	case CheckoutArgs:
		return e.checkout(ctx, session)
	case CollectContactInfoArgs:
		return e.collectContactInfo(ctx, session, args)
	case RequestHumanSupportArgs:
		return e.requestHumanSupport(ctx, session, args)
	case RememberPreferenceArgs:
		return e.rememberPreference(ctx, session, args)
	case CancelOrderArgs:
		return e.cancelOrder(ctx, session, args)
	case ShowProductImageArgs:
		return e.showProductImage(ctx, session, args)
	case ListProductsArgs:
		return e.listProducts(ctx, session, args)
	case CheckOrderStatusArgs:
		return e.checkOrderStatus(ctx, session, args)
	case CheckPaymentStatusArgs:
		return e.checkPaymentStatus(ctx, session, args)
	}
	return Result{}, fmt.Errorf("no handler for tool %s", call.Tool())
}
