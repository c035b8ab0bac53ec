package controllers

import (
	"context"
	"net/http"

	"github.com/angelmondragon/shopchat-core/api/responses"
	"github.com/angelmondragon/shopchat-core/internal/cron"
	pkgerrors "github.com/angelmondragon/shopchat-core/pkg/errors"
	"github.com/angelmondragon/shopchat-core/pkg/logger"
)

type orderSweeper interface {
	Sweep(ctx context.Context) (cron.SweepReport, error)
}

// ExpireOrders runs one sweep on demand for an external scheduler.
func ExpireOrders(sweeper orderSweeper, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := logg.WithField(r.Context(), "job", cron.OrderExpiryJobName)

		report, err := sweeper.Sweep(ctx)
		if err != nil {
			responses.WriteError(ctx, logg, w,
				pkgerrors.Wrap(pkgerrors.CodeInternal, err, "order expiry sweep failed").WithDetails(report))
			return
		}
		responses.WriteSuccess(w, report)
	}
}
