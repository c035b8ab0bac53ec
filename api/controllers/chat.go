package controllers

import (
	"context"
	"net/http"

	"github.com/angelmondragon/shopchat-core/api/responses"
	"github.com/angelmondragon/shopchat-core/api/validators"
	"github.com/angelmondragon/shopchat-core/internal/assistant"
	"github.com/angelmondragon/shopchat-core/pkg/logger"
)

const maxInboundText = 4000

type inboundHandler interface {
	Handle(ctx context.Context, msg assistant.InboundMessage) (*assistant.InboundResult, error)
}

// ChatInbound accepts one normalised messaging event and answers it synchronously.
func ChatInbound(svc inboundHandler, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var msg assistant.InboundMessage
		if err := validators.DecodeJSONBody(r, &msg); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		msg.Text = validators.SanitizeString(msg.Text, maxInboundText)

		result, err := svc.Handle(ctx, msg)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}
