package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/angelmondragon/shopchat-core/internal/orders"
	"github.com/angelmondragon/shopchat-core/pkg/db/models"
	"github.com/angelmondragon/shopchat-core/pkg/enums"
	"github.com/angelmondragon/shopchat-core/pkg/logger"
)

const (
	// OrderExpiryJobName labels the sweeper in logs and metrics.
	OrderExpiryJobName = "order-expiry"

	defaultExpiryThreshold = 30 * time.Minute
	defaultExpiryBatch     = 200
	expiryReason           = "expired"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type orderTransitioner interface {
	ApplyTransition(ctx context.Context, tx *gorm.DB, order *models.Order, to enums.OrderStatus, reason *string) (bool, error)
	NotifyTransition(ctx context.Context, order models.Order, from enums.OrderStatus)
}

// OrderExpiryJobParams configure the stale order sweeper.
type OrderExpiryJobParams struct {
	Logger    *logger.Logger
	DB        txRunner
	Orders    orders.Repository
	Service   orderTransitioner
	Threshold time.Duration
	BatchSize int
	Now       func() time.Time
}

// SweepReport summarises one sweep.
type SweepReport struct {
	Scanned   int `json:"scanned"`
	Cancelled int `json:"cancelled"`
	Skipped   int `json:"skipped"`
	Failed    int `json:"failed"`
}

// OrderExpiryJob cancels pending orders that were never paid and returns
// their reserved stock. Each order is cancelled through the same conditional
// status update as every other transition, so concurrent sweeps, payments
// and customer cancellations never release an order twice.
type OrderExpiryJob struct {
	logg      *logger.Logger
	db        txRunner
	orders    orders.Repository
	service   orderTransitioner
	threshold time.Duration
	batchSize int
	now       func() time.Time
}

func NewOrderExpiryJob(params OrderExpiryJobParams) (*OrderExpiryJob, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db runner required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Service == nil {
		return nil, fmt.Errorf("orders service required")
	}
	threshold := params.Threshold
	if threshold <= 0 {
		threshold = defaultExpiryThreshold
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultExpiryBatch
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &OrderExpiryJob{
		logg:      params.Logger,
		db:        params.DB,
		orders:    params.Orders,
		service:   params.Service,
		threshold: threshold,
		batchSize: batch,
		now:       now,
	}, nil
}

func (j *OrderExpiryJob) Name() string { return OrderExpiryJobName }

func (j *OrderExpiryJob) Run(ctx context.Context) error {
	_, err := j.Sweep(ctx)
	return err
}

// Sweep expires one batch of stale orders. Failures on single orders are
// collected and the sweep moves on to the next one.
func (j *OrderExpiryJob) Sweep(ctx context.Context) (SweepReport, error) {
	var report SweepReport
	cutoff := j.now().UTC().Add(-j.threshold)
	ids, err := j.orders.FindStalePending(ctx, cutoff, j.batchSize)
	if err != nil {
		return report, fmt.Errorf("query stale pending orders: %w", err)
	}
	report.Scanned = len(ids)

	var errs error
	for _, id := range ids {
		if ctx.Err() != nil {
			errs = multierr.Append(errs, ctx.Err())
			break
		}
		cancelled, err := j.expire(ctx, id)
		switch {
		case err != nil:
			report.Failed++
			errs = multierr.Append(errs, fmt.Errorf("expire order %s: %w", id, err))
		case cancelled:
			report.Cancelled++
		default:
			report.Skipped++
		}
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"scanned":   report.Scanned,
		"cancelled": report.Cancelled,
		"skipped":   report.Skipped,
		"failed":    report.Failed,
	})
	j.logg.Info(logCtx, "order expiry sweep complete")
	return report, errs
}

func (j *OrderExpiryJob) expire(ctx context.Context, orderID uuid.UUID) (bool, error) {
	var (
		order   *models.Order
		applied bool
	)
	reason := expiryReason
	err := j.db.WithTx(ctx, func(tx *gorm.DB) error {
		current, err := j.orders.WithTx(tx).FindByID(ctx, orderID)
		if err != nil {
			return err
		}
		if current.Status != enums.OrderStatusPending {
			return nil
		}
		ok, err := j.service.ApplyTransition(ctx, tx, current, enums.OrderStatusCancelled, &reason)
		if err != nil {
			return err
		}
		order, applied = current, ok
		return nil
	})
	if err != nil || !applied {
		return false, err
	}
	j.service.NotifyTransition(j.logg.WithOrderID(ctx, order.ID.String()), *order, enums.OrderStatusPending)
	return true, nil
}
