package payments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/angelmondragon/shopchat-core/pkg/redis"
)

// InFlightGuard keeps two deliveries of the same invoice from reconciling at
// once across instances. It is an optimisation; MarkPaid is the real guard.
// A nil *InFlightGuard admits every delivery.
type InFlightGuard struct {
	store redis.IdempotencyStore
	ttl   time.Duration
	scope string
}

func NewInFlightGuard(store redis.IdempotencyStore, ttl time.Duration, scope string) (*InFlightGuard, error) {
	if store == nil {
		return nil, errors.New("idempotency store is required")
	}
	if ttl <= 0 {
		return nil, errors.New("ttl must be positive")
	}
	if scope == "" {
		return nil, errors.New("scope is required")
	}
	return &InFlightGuard{store: store, ttl: ttl, scope: scope}, nil
}

// Acquire reports true when the caller now owns the invoice.
func (g *InFlightGuard) Acquire(ctx context.Context, invoiceID string) (bool, error) {
	if g == nil {
		return true, nil
	}
	if invoiceID == "" {
		return false, errors.New("invoice id is required")
	}
	set, err := g.store.SetNX(ctx, g.store.IdempotencyKey(g.scope, invoiceID), "1", g.ttl)
	if err != nil {
		return false, fmt.Errorf("set in-flight key: %w", err)
	}
	return set, nil
}

func (g *InFlightGuard) Release(ctx context.Context, invoiceID string) error {
	if g == nil {
		return nil
	}
	if invoiceID == "" {
		return errors.New("invoice id is required")
	}
	return g.store.Del(ctx, g.store.IdempotencyKey(g.scope, invoiceID))
}
