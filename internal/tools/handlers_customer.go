package tools

import (
	"context"
	"fmt"

	"github.com/angelmondragon/shopchat-core/internal/customers"
)

func (e *Executor) collectContactInfo(ctx context.Context, s Session, args CollectContactInfoArgs) (Result, error) {
	customer, changed, err := e.customers.UpdateContact(ctx, s.CustomerID, customers.ContactPatch{
		Name:    args.Name,
		Phone:   args.Phone,
		Address: args.Address,
	})
	if err != nil {
		return Result{}, err
	}

	data := map[string]any{"name": customer.Name, "phone": customer.Phone, "address": customer.Address}
	if !changed {
		return ok("Contact details were already up to date.", data), nil
	}
	return ok("Contact details saved.", data), nil
}

// requestHumanSupport pauses automated replies. The pause is advisory; the
// latest writer wins.
func (e *Executor) requestHumanSupport(ctx context.Context, s Session, args RequestHumanSupportArgs) (Result, error) {
	until := e.now().UTC().Add(e.pauseDuration)
	if err := e.customers.PauseAI(ctx, s.CustomerID, until); err != nil {
		return Result{}, err
	}

	if e.handoff != nil {
		customer, err := e.customers.FindByID(ctx, s.CustomerID)
		if err != nil {
			e.logg.Error(ctx, "handoff: load customer", err)
		} else {
			reason := ""
			if args.Reason != nil {
				reason = *args.Reason
			}
			e.handoff.HumanSupportRequested(ctx, s.ShopID, *customer, reason)
		}
	}
	return ok("A team member will reply shortly.", map[string]any{"paused_until": until}), nil
}

func (e *Executor) rememberPreference(ctx context.Context, s Session, args RememberPreferenceArgs) (Result, error) {
	if err := e.customers.SetPreference(ctx, s.CustomerID, args.Key, args.Value); err != nil {
		return Result{}, err
	}
	return ok(fmt.Sprintf("Noted %s: %s.", args.Key, args.Value), map[string]string{args.Key: args.Value}), nil
}
