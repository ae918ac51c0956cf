package checkout

import (
	"time"

	d "github.com/fjod/go_cart/checkout-flow/domain"
)

// Guard decides whether a cart may enter the requested step. It never
// mutates the cart.
func Guard(cart *d.Cart, requested d.Step) d.Result {
	if cart.Step.IsTerminal() && !requested.IsTerminal() {
		return d.BlockedRequiresOrderStep()
	}
	if requested > cart.Step {
		return d.BlockedPastStep()
	}
	return d.Proceed()
}

// Event is an input of the pure transition function.
type Event interface {
	event()
}

type EnterStep struct {
	Step d.Step
}

type SelectAddress struct {
	Role      d.AddressRole
	AddressID int64
}

type AcceptConfirmation struct {
	Token string
}

type OrderCreated struct {
	OrderID string
}

func (EnterStep) event()          {}
func (SelectAddress) event()      {}
func (AcceptConfirmation) event() {}
func (OrderCreated) event()       {}

// Transition applies ev to cart and returns the next cart with the outcome.
// The input cart is never modified; when the result is blocked the returned
// cart is the input itself.
func Transition(cart *d.Cart, ev Event) (*d.Cart, d.Result) {
	switch e := ev.(type) {
	case EnterStep:
		return cart, Guard(cart, e.Step)

	case SelectAddress:
		step := e.Role.Step()
		if !step.Valid() {
			return cart, d.BlockedPastStep()
		}
		if res := Guard(cart, step); res.Blocked() {
			return cart, res
		}
		next := cart.Clone()
		if e.Role == d.RoleBilling {
			next.BillingAddressID = e.AddressID
		} else {
			next.ShippingAddressID = e.AddressID
		}
		advance(next, step.Next())
		return touch(next), d.Mutated(e.AddressID)

	case AcceptConfirmation:
		if res := Guard(cart, d.StepConfirm); res.Blocked() {
			return cart, res
		}
		next := cart.Clone()
		advance(next, d.StepOrder)
		if next.CheckoutToken == "" {
			next.CheckoutToken = e.Token
		}
		return touch(next), d.Mutated(0)

	case OrderCreated:
		if res := Guard(cart, d.StepOrder); res.Blocked() {
			return cart, res
		}
		next := cleared(cart)
		next.PlacedOrderID = e.OrderID
		return touch(next), d.OrderPlaced(e.OrderID)
	}
	return cart, d.BlockedPastStep()
}

// advance moves the step pointer forward only.
func advance(cart *d.Cart, to d.Step) {
	if to > cart.Step {
		cart.Step = to
	}
}

func cleared(cart *d.Cart) *d.Cart {
	return &d.Cart{
		ID:         cart.ID,
		CustomerID: cart.CustomerID,
		Step:       d.StepNone,
		Version:    cart.Version,
		CreatedAt:  cart.CreatedAt,
		UpdatedAt:  cart.UpdatedAt,
	}
}

func touch(cart *d.Cart) *d.Cart {
	cart.Version++
	cart.UpdatedAt = time.Now().UTC()
	return cart
}
