package webhooks

import (
	"context"
	"io"
	"net/http"

	"github.com/angelmondragon/shopchat-core/api/responses"
	"github.com/angelmondragon/shopchat-core/api/validators"
	"github.com/angelmondragon/shopchat-core/internal/payments"
	pkgerrors "github.com/angelmondragon/shopchat-core/pkg/errors"
	"github.com/angelmondragon/shopchat-core/pkg/logger"
)

const maxWebhookBytes = 64 << 10

type PaymentReconciler interface {
	Reconcile(ctx context.Context, invoiceID string) (*payments.Result, error)
}

// InFlightGuard serialises deliveries of one invoice. Nil disables it.
type InFlightGuard interface {
	Acquire(ctx context.Context, invoiceID string) (bool, error)
	Release(ctx context.Context, invoiceID string) error
}

type paymentEvent struct {
	InvoiceID string `json:"invoice_id" validate:"required,max=128"`
}

type paymentEventResponse struct {
	InvoiceID string           `json:"invoice_id"`
	Outcome   payments.Outcome `json:"outcome"`
	OrderID   string           `json:"order_id,omitempty"`
}

// PaymentWebhook verifies a gateway callback and reconciles the invoice it
// names. The payload only identifies the invoice; the paid state is always
// re-read from the gateway.
func PaymentWebhook(svc PaymentReconciler, secret string, guard InFlightGuard, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payment reconciler unavailable"))
			return
		}

		payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBytes))
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read request body"))
			return
		}

		if err := payments.VerifySignature(secret, payload, r.Header.Get(payments.SignatureHeader)); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		var event paymentEvent
		if err := validators.DecodeLenientJSON(payload, &event); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		if logg != nil {
			ctx = logg.WithField(ctx, "invoice_id", event.InvoiceID)
		}

		if guard != nil {
			acquired, err := guard.Acquire(ctx, event.InvoiceID)
			switch {
			case err != nil:
				if logg != nil {
					logg.Error(ctx, "webhook in-flight guard unavailable", err)
				}
			case !acquired:
				responses.WriteSuccessStatus(w, http.StatusAccepted, map[string]string{
					"invoice_id": event.InvoiceID,
					"outcome":    "in_progress",
				})
				return
			default:
				defer func() {
					if relErr := guard.Release(context.WithoutCancel(ctx), event.InvoiceID); relErr != nil && logg != nil {
						logg.Error(ctx, "release webhook in-flight guard", relErr)
					}
				}()
			}
		}

		result, err := svc.Reconcile(ctx, event.InvoiceID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		resp := paymentEventResponse{InvoiceID: event.InvoiceID, Outcome: result.Outcome}
		if result.Payment != nil {
			resp.OrderID = result.Payment.OrderID.String()
		}
		if logg != nil {
			logg.Info(logg.WithField(ctx, "outcome", string(result.Outcome)), "payment webhook processed")
		}
		responses.WriteSuccess(w, resp)
	}
}
