package payments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"gorm.io/gorm"

	"github.com/angelmondragon/shopchat-core/internal/orders"
	"github.com/angelmondragon/shopchat-core/pkg/db/models"
	"github.com/angelmondragon/shopchat-core/pkg/enums"
	pkgerrors "github.com/angelmondragon/shopchat-core/pkg/errors"
	"github.com/angelmondragon/shopchat-core/pkg/gateway"
	"github.com/angelmondragon/shopchat-core/pkg/logger"
	"github.com/angelmondragon/shopchat-core/pkg/metrics"
	"github.com/angelmondragon/shopchat-core/pkg/retry"
)

var tracer = otel.Tracer("github.com/angelmondragon/shopchat-core/internal/payments")

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Gateway is the payment-provider surface used here.
type Gateway interface {
	CreateInvoice(ctx context.Context, req gateway.InvoiceRequest) (*gateway.Invoice, error)
	CheckStatus(ctx context.Context, invoiceID string) (*gateway.StatusResult, error)
}

// Notifier receives settled payments after commit.
type Notifier interface {
	PaymentConfirmed(ctx context.Context, order models.Order, payment models.Payment)
}

// Outcome describes what a reconciliation did.
type Outcome string

const (
	OutcomeSettled     Outcome = "settled"
	OutcomeAlreadyPaid Outcome = "already_paid"
	OutcomeNotPaid     Outcome = "not_paid"
)

// Result is returned by Reconcile.
type Result struct {
	Outcome Outcome
	Payment *models.Payment
	Order   *models.Order
}

// ServiceParams groups the payment service dependencies.
type ServiceParams struct {
	Repo        Repository
	OrdersRepo  orders.Repository
	Orders      orders.Service
	Tx          txRunner
	Gateway     Gateway
	Notifier    Notifier
	Retry       retry.Policy
	InvoiceTTL  time.Duration
	CallbackURL string
	Metrics     *metrics.CommerceMetrics
	Logger      *logger.Logger
	Now         func() time.Time
}

// Service creates invoices and reconciles gateway settlements.
type Service struct {
	repo        Repository
	ordersRepo  orders.Repository
	orders      orders.Service
	tx          txRunner
	gateway     Gateway
	notifier    Notifier
	retry       retry.Policy
	invoiceTTL  time.Duration
	callbackURL string
	metrics     *metrics.CommerceMetrics
	logg        *logger.Logger
	now         func() time.Time
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "payments repo required")
	}
	if params.OrdersRepo == nil || params.Orders == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "orders dependencies required")
	}
	if params.Tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction runner required")
	}
	if params.Gateway == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "payment gateway required")
	}
	if params.Notifier == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "notifier required")
	}
	ttl := params.InvoiceTTL
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		repo:        params.Repo,
		ordersRepo:  params.OrdersRepo,
		orders:      params.Orders,
		tx:          params.Tx,
		gateway:     params.Gateway,
		notifier:    params.Notifier,
		retry:       params.Retry,
		invoiceTTL:  ttl,
		callbackURL: params.CallbackURL,
		metrics:     params.Metrics,
		logg:        logg,
		now:         now,
	}, nil
}

// CreateInvoice asks the gateway for a QR invoice and stores a pending
// payment for it. Gateway failures are retried before surfacing.
func (s *Service) CreateInvoice(ctx context.Context, order models.Order) (*models.Payment, error) {
	ctx, span := tracer.Start(ctx, "payments.create_invoice")
	defer span.End()
	span.SetAttributes(attribute.String("order.id", order.ID.String()))

	invoice, err := retry.DoValue(ctx, s.retry, func(ctx context.Context) (*gateway.Invoice, error) {
		inv, err := s.gateway.CreateInvoice(ctx, gateway.InvoiceRequest{
			OrderID:     order.ID.String(),
			Amount:      order.TotalAmount,
			Description: fmt.Sprintf("Order %s", shortID(order.ID.String())),
			CallbackURL: s.callbackURL,
		})
		return inv, retry.Classify(err)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "create invoice")
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create invoice")
	}

	qr := invoice.QRPayload
	payment := &models.Payment{
		OrderID:   order.ID,
		Method:    enums.PaymentMethodQR,
		Status:    enums.PaymentStatusPending,
		Amount:    order.TotalAmount,
		InvoiceID: invoice.InvoiceID,
		QRPayload: &qr,
		ExpiresAt: s.now().UTC().Add(s.invoiceTTL),
		CreatedAt: s.now().UTC(),
	}
	if err := s.repo.Create(ctx, payment); err != nil {
		if errors.Is(err, ErrDuplicateInvoice) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "store payment")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store payment")
	}
	return payment, nil
}

// LatestForOrder returns the most recent payment of the order.
func (s *Service) LatestForOrder(ctx context.Context, order models.Order) (*models.Payment, error) {
	payment, err := s.repo.FindLatestForOrder(ctx, order.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "no payment for this order")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment")
	}
	return payment, nil
}

// Reconcile settles the payment for invoiceID if, and only if, the gateway
// reports it paid. Replays of an already settled invoice change nothing.
func (s *Service) Reconcile(ctx context.Context, invoiceID string) (*Result, error) {
	ctx, span := tracer.Start(ctx, "payments.reconcile")
	defer span.End()
	span.SetAttributes(attribute.String("invoice.id", invoiceID))

	result, err := s.reconcile(ctx, invoiceID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "reconcile")
		s.metrics.IncWebhook("error")
		return nil, err
	}
	span.SetAttributes(attribute.String("outcome", string(result.Outcome)))
	s.metrics.IncWebhook(string(result.Outcome))
	return result, nil
}

func (s *Service) reconcile(ctx context.Context, invoiceID string) (*Result, error) {
	if invoiceID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invoice id is required")
	}

	payment, err := s.repo.FindByInvoiceID(ctx, invoiceID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payment not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment")
	}
	ctx = s.logg.WithOrderID(ctx, payment.OrderID.String())
	if payment.Status == enums.PaymentStatusPaid {
		return &Result{Outcome: OutcomeAlreadyPaid, Payment: payment}, nil
	}

	status, err := retry.DoValue(ctx, s.retry, func(ctx context.Context) (*gateway.StatusResult, error) {
		res, err := s.gateway.CheckStatus(ctx, invoiceID)
		return res, retry.Classify(err)
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check payment status")
	}
	row, paid := status.PaidRow()
	if !paid {
		return &Result{Outcome: OutcomeNotPaid, Payment: payment}, nil
	}

	paidAt := s.now().UTC()
	if row.PaidAt != nil {
		paidAt = row.PaidAt.UTC()
	}

	var (
		order      *models.Order
		prevStatus enums.OrderStatus
		confirmed  bool
		settled    bool
	)
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		applied, err := repo.MarkPaid(ctx, payment.ID, paidAt, row.PaymentID)
		if errors.Is(err, ErrOrderAlreadyPaid) {
			return pkgerrors.New(pkgerrors.CodeConflict, "order already has a paid payment")
		}
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark payment paid")
		}
		if !applied {
			return nil
		}
		settled = true

		others, err := repo.CountPaidForOrder(ctx, payment.OrderID, payment.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check paid payments")
		}
		if others > 0 {
			return pkgerrors.New(pkgerrors.CodeConflict, "order already has a paid payment")
		}

		order, err = s.ordersRepo.WithTx(tx).FindByID(ctx, payment.OrderID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}
		prevStatus = order.Status
		if order.Status != enums.OrderStatusPending {
			return nil
		}
		confirmed, err = s.orders.ApplyTransition(ctx, tx, order, enums.OrderStatusConfirmed, nil)
		return err
	})
	if err != nil {
		return nil, err
	}
	if !settled {
		return &Result{Outcome: OutcomeAlreadyPaid, Payment: payment}, nil
	}

	payment.Status = enums.PaymentStatusPaid
	payment.PaidAt = &paidAt
	if row.PaymentID != "" {
		txID := row.PaymentID
		payment.TransactionID = &txID
	}

	if prevStatus == enums.OrderStatusCancelled {
		s.logg.Warn(ctx, "payment settled for a cancelled order; refund required")
	}
	if confirmed {
		s.orders.NotifyTransition(ctx, *order, prevStatus)
	}
	s.notifier.PaymentConfirmed(ctx, *order, *payment)
	s.logg.Info(ctx, "payment reconciled")

	return &Result{Outcome: OutcomeSettled, Payment: payment, Order: order}, nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
