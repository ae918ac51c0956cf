package checkout

import (
	"testing"

	d "github.com/fjod/go_cart/checkout-flow/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var allSteps = []d.Step{d.StepShipping, d.StepBilling, d.StepConfirm, d.StepOrder}

func TestGuard_NoSkipAhead(t *testing.T) {
	for _, current := range allSteps[:3] {
		for _, requested := range allSteps {
			res := Guard(&d.Cart{Step: current}, requested)
			if requested > current {
				assert.Equal(t, d.ResultBlockedPastStep, res.Kind, "%s -> %s", current, requested)
				assert.Equal(t, d.RedirectCartView, res.Redirect)
			} else {
				assert.Equal(t, d.ResultProceed, res.Kind, "%s -> %s", current, requested)
			}
		}
	}
}

func TestGuard_TerminalLock(t *testing.T) {
	cart := &d.Cart{Step: d.StepOrder}
	for _, requested := range allSteps[:3] {
		res := Guard(cart, requested)
		assert.Equal(t, d.ResultBlockedRequiresOrderStep, res.Kind, requested.String())
		assert.Equal(t, d.RedirectOrderStep, res.Redirect)
	}
	assert.Equal(t, d.ResultProceed, Guard(cart, d.StepOrder).Kind)
}

func TestGuard_ClearedCartBlocksEverything(t *testing.T) {
	cart := &d.Cart{Step: d.StepNone}
	for _, requested := range allSteps {
		assert.Equal(t, d.ResultBlockedPastStep, Guard(cart, requested).Kind)
	}
}

func TestTransition_EnterStepNeverMutates(t *testing.T) {
	cart := &d.Cart{ID: "c", Step: d.StepBilling, Version: 2}
	next, res := Transition(cart, EnterStep{Step: d.StepShipping})
	assert.Same(t, cart, next)
	assert.Equal(t, d.ResultProceed, res.Kind)
	assert.Equal(t, int64(2), cart.Version)
}

func TestTransition_SelectAddressDoesNotTouchInput(t *testing.T) {
	cart := &d.Cart{ID: "c", Step: d.StepShipping, Items: []d.CartItem{{ProductID: 1, Quantity: 1}}}

	next, res := Transition(cart, SelectAddress{Role: d.RoleShipping, AddressID: 7})
	require.Equal(t, d.ResultMutated, res.Kind)
	assert.Equal(t, int64(7), res.AddressID)

	assert.Equal(t, d.StepShipping, cart.Step)
	assert.Zero(t, cart.ShippingAddressID)
	assert.Zero(t, cart.Version)

	assert.Equal(t, d.StepBilling, next.Step)
	assert.Equal(t, int64(7), next.ShippingAddressID)
	assert.Equal(t, int64(1), next.Version)

	next.Items[0].Quantity = 5
	assert.Equal(t, int32(1), cart.Items[0].Quantity)
}

func TestTransition_SelectAddressMonotonic(t *testing.T) {
	for _, current := range allSteps[:3] {
		for _, role := range []d.AddressRole{d.RoleShipping, d.RoleBilling} {
			cart := &d.Cart{Step: current}
			next, _ := Transition(cart, SelectAddress{Role: role, AddressID: 1})
			assert.GreaterOrEqual(t, next.Step, current, "%s at %s", role, current)
		}
	}
}

func TestTransition_SelectAddressInvalidRole(t *testing.T) {
	cart := &d.Cart{Step: d.StepConfirm}
	next, res := Transition(cart, SelectAddress{Role: "gift", AddressID: 1})
	assert.Same(t, cart, next)
	assert.True(t, res.Blocked())
}

func TestTransition_AcceptConfirmation(t *testing.T) {
	cart := &d.Cart{Step: d.StepConfirm}
	next, res := Transition(cart, AcceptConfirmation{Token: "tok"})
	assert.Equal(t, d.ResultMutated, res.Kind)
	assert.Equal(t, d.StepOrder, next.Step)
	assert.Equal(t, "tok", next.CheckoutToken)

	// accepting again at ORDER is blocked by the terminal lock
	again, res := Transition(next, AcceptConfirmation{Token: "other"})
	assert.Equal(t, d.ResultBlockedRequiresOrderStep, res.Kind)
	assert.Equal(t, "tok", again.CheckoutToken)
}

func TestTransition_OrderCreatedClearsCart(t *testing.T) {
	cart := &d.Cart{
		ID: "c", CustomerID: "u", Step: d.StepOrder,
		Items:             []d.CartItem{{ProductID: 1, Quantity: 1}},
		ShippingAddressID: 1, BillingAddressID: 2, CouponCode: "SAVE10",
		CheckoutToken: "tok", Version: 4,
	}

	next, res := Transition(cart, OrderCreated{OrderID: "o-1"})
	assert.Equal(t, d.ResultOrderPlaced, res.Kind)
	assert.Equal(t, "o-1", res.OrderID)

	assert.Equal(t, "c", next.ID)
	assert.Equal(t, "u", next.CustomerID)
	assert.Equal(t, d.StepNone, next.Step)
	assert.Empty(t, next.Items)
	assert.Zero(t, next.ShippingAddressID)
	assert.Zero(t, next.BillingAddressID)
	assert.Empty(t, next.CouponCode)
	assert.Empty(t, next.CheckoutToken)
	assert.Equal(t, "o-1", next.PlacedOrderID)
	assert.Equal(t, int64(5), next.Version)
}

func TestTransition_OrderCreatedRequiresOrderStep(t *testing.T) {
	cart := &d.Cart{Step: d.StepConfirm}
	next, res := Transition(cart, OrderCreated{OrderID: "o-1"})
	assert.Same(t, cart, next)
	assert.Equal(t, d.ResultBlockedPastStep, res.Kind)
}

func TestTransition_NoEventRewindsAnOpenCart(t *testing.T) {
	events := []Event{
		EnterStep{Step: d.StepShipping},
		EnterStep{Step: d.StepOrder},
		SelectAddress{Role: d.RoleShipping, AddressID: 1},
		SelectAddress{Role: d.RoleBilling, AddressID: 2},
		AcceptConfirmation{Token: "t"},
	}
	for _, current := range allSteps {
		for _, ev := range events {
			cart := &d.Cart{ID: "c", Step: current, ShippingAddressID: 1, BillingAddressID: 2, CheckoutToken: "t"}
			next, _ := Transition(cart, ev)
			assert.GreaterOrEqual(t, next.Step, current, "%s on %T", current, ev)
		}
	}
}
