package orders

import (
	"fmt"

	"github.com/angelmondragon/shopchat-core/pkg/enums"
	pkgerrors "github.com/angelmondragon/shopchat-core/pkg/errors"
)

// forward lists the single forward step out of each non-terminal status.
// Cancellation is allowed from every non-terminal status.
var forward = map[enums.OrderStatus]enums.OrderStatus{
	enums.OrderStatusPending:    enums.OrderStatusConfirmed,
	enums.OrderStatusConfirmed:  enums.OrderStatusProcessing,
	enums.OrderStatusProcessing: enums.OrderStatusShipped,
	enums.OrderStatusShipped:    enums.OrderStatusDelivered,
}

// CanTransition reports whether an order may move from -> to.
func CanTransition(from, to enums.OrderStatus) bool {
	if !from.IsValid() || !to.IsValid() || from.IsTerminal() {
		return false
	}
	if to == enums.OrderStatusCancelled {
		return true
	}
	return forward[from] == to
}

// ValidateTransition returns an INVALID_TRANSITION error when from -> to is not allowed.
func ValidateTransition(from, to enums.OrderStatus) error {
	if CanTransition(from, to) {
		return nil
	}
	return pkgerrors.New(
		pkgerrors.CodeInvalidTransition,
		fmt.Sprintf("order cannot move from %s to %s", from, to),
	).WithDetails(map[string]any{
		"from": from.String(),
		"to":   to.String(),
	})
}
