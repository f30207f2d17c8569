package application

import "github.com/promptash/promptash/internal/domain/entity"

// Checkout lifecycle actions and the statuses they may start from.
// completed is terminal: no action leads out of it.
var checkoutTransitions = map[string][]string{
	"authorize": {entity.CheckoutPending},
	"settle":    {entity.CheckoutPending},
	"consume":   {entity.CheckoutPaid, entity.CheckoutAuthorized},
	"expire":    {entity.CheckoutPending, entity.CheckoutPaid, entity.CheckoutAuthorized},
}

// ValidCheckoutTransition reports whether an action may be applied to a
// checkout currently in fromStatus.
func ValidCheckoutTransition(action, fromStatus string) bool {
	allowed, ok := checkoutTransitions[action]
	if !ok {
		return false
	}
	for _, status := range allowed {
		if status == fromStatus {
			return true
		}
	}
	return false
}
