package controllers

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/shopchat-core/api/responses"
	"github.com/angelmondragon/shopchat-core/api/validators"
	"github.com/angelmondragon/shopchat-core/pkg/db/models"
	"github.com/angelmondragon/shopchat-core/pkg/enums"
	pkgerrors "github.com/angelmondragon/shopchat-core/pkg/errors"
	"github.com/angelmondragon/shopchat-core/pkg/logger"
)

type orderTransitioner interface {
	Get(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	Transition(ctx context.Context, orderID uuid.UUID, to enums.OrderStatus, reason *string) (*models.Order, error)
}

type transitionRequest struct {
	Status string  `json:"status" validate:"required,oneof=confirmed processing shipped delivered cancelled"`
	Reason *string `json:"reason,omitempty" validate:"omitempty,max=500"`
}

type orderStatusResponse struct {
	ID     uuid.UUID         `json:"id"`
	Status enums.OrderStatus `json:"status"`
}

// OrderTransition moves a shop's order to the requested status.
func OrderTransition(svc orderTransitioner, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		shopID, err := uuid.Parse(strings.TrimSpace(chi.URLParam(r, "shopId")))
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid shop id"))
			return
		}
		orderID, err := uuid.Parse(strings.TrimSpace(chi.URLParam(r, "orderId")))
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid order id"))
			return
		}
		ctx = logg.WithOrderID(logg.WithShopID(ctx, shopID.String()), orderID.String())

		var req transitionRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		to, err := enums.ParseOrderStatus(req.Status)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status"))
			return
		}

		current, err := svc.Get(ctx, orderID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		if current.ShopID != shopID {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "order not found"))
			return
		}

		order, err := svc.Transition(ctx, orderID, to, req.Reason)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, orderStatusResponse{ID: order.ID, Status: order.Status})
	}
}
