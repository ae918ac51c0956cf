package checkout

import (
	"context"
	"errors"
	"fmt"
	"time"

	d "github.com/fjod/go_cart/checkout-flow/domain"
	"github.com/fjod/go_cart/checkout-flow/pkg/logger"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type CartStore interface {
	GetCart(ctx context.Context, id string) (*d.Cart, error)
	SaveCart(ctx context.Context, cart *d.Cart) error
	DeleteCart(ctx context.Context, id string) error
}

type AddressBook interface {
	Get(ctx context.Context, customerID string, id int64) (*d.Address, error)
	Create(ctx context.Context, customerID string, fields d.AddressFields) (int64, error)
	Delete(ctx context.Context, customerID string, id int64) error
	Reassign(ctx context.Context, from, to string, ids ...int64) error
}

type ValidityChecker interface {
	Check(ctx context.Context, cart *d.Cart) (d.Verdict, error)
}

// OrderCreator turns a cart at the order step into an order record. Calls
// with the same cart checkout token must return the same order id.
type OrderCreator interface {
	PlaceOrder(ctx context.Context, cart *d.Cart) (string, error)
}

// Locker serializes work on a single cart.
type Locker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

type Observer interface {
	ObserveTransition(operation, result string)
}

// Handle identifies the cart of one customer session.
type Handle struct {
	CartID     string
	CustomerID string
}

type Machine struct {
	carts     CartStore
	addresses AddressBook
	validity  ValidityChecker
	orders    OrderCreator
	locks     Locker
	log       *zap.Logger
	observer  Observer
	tracer    trace.Tracer
	newToken  func() string
}

type Option func(*Machine)

func WithLogger(l *zap.Logger) Option { return func(m *Machine) { m.log = l } }

func WithObserver(o Observer) Option { return func(m *Machine) { m.observer = o } }

func WithTokenGenerator(f func() string) Option { return func(m *Machine) { m.newToken = f } }

func NewMachine(carts CartStore, addresses AddressBook, validity ValidityChecker, orders OrderCreator, locks Locker, opts ...Option) *Machine {
	m := &Machine{
		carts:     carts,
		addresses: addresses,
		validity:  validity,
		orders:    orders,
		locks:     locks,
		log:       zap.NewNop(),
		tracer:    otel.Tracer("github.com/fjod/go_cart/checkout-flow/internal/checkout"),
		newToken:  func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Load returns the stored cart for h, or a fresh cart when none exists. A
// guest cart picked up by a signed-in customer takes the guest's addresses
// along with it.
func (m *Machine) Load(ctx context.Context, h Handle) (*d.Cart, error) {
	if h.CartID == "" {
		return nil, ErrMissingCartID
	}
	cart, err := m.carts.GetCart(ctx, h.CartID)
	if errors.Is(err, d.ErrCartNotFound) {
		return d.NewCart(h.CartID, h.CustomerID), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load cart: %w", err)
	}
	if h.CustomerID != "" && cart.CustomerID != h.CustomerID {
		if d.IsGuest(cart.CustomerID) {
			err := m.addresses.Reassign(ctx, cart.CustomerID, h.CustomerID, cart.ShippingAddressID, cart.BillingAddressID)
			if err != nil {
				return nil, fmt.Errorf("failed to adopt guest addresses: %w", err)
			}
		}
		cart.CustomerID = h.CustomerID
	}
	return cart, nil
}

// EnterStep guards entry to a step view. Entering the confirmation step
// also re-checks cart validity.
func (m *Machine) EnterStep(ctx context.Context, h Handle, step d.Step) (res d.Result, cart *d.Cart, err error) {
	ctx, span := m.tracer.Start(ctx, "checkout.EnterStep")
	defer func() { m.finish(ctx, span, "enter_"+step.String(), h, res, err) }()

	cart, err = m.Load(ctx, h)
	if err != nil {
		return d.Result{}, nil, err
	}
	if _, res = Transition(cart, EnterStep{Step: step}); res.Blocked() {
		return res, cart, nil
	}
	if step == d.StepConfirm {
		res, err = m.CheckCartValidity(ctx, cart)
		if err != nil {
			return d.Result{}, nil, err
		}
	}
	return res, cart, nil
}

// SelectAddress attaches an address to the cart for role and advances the
// step pointer. With addressID 0 and non-empty fields a new address is
// created first; with neither the reference is cleared.
func (m *Machine) SelectAddress(ctx context.Context, h Handle, role d.AddressRole, addressID int64, fields *d.AddressFields) (res d.Result, err error) {
	ctx, span := m.tracer.Start(ctx, "checkout.SelectAddress")
	defer func() { m.finish(ctx, span, "select_"+string(role), h, res, err) }()

	if !role.Step().Valid() {
		return d.Result{}, ErrInvalidRole
	}

	unlock, err := m.locks.Lock(ctx, h.CartID)
	if err != nil {
		return d.Result{}, fmt.Errorf("failed to lock cart: %w", err)
	}
	defer unlock()

	cart, err := m.Load(ctx, h)
	if err != nil {
		return d.Result{}, err
	}
	if res = Guard(cart, role.Step()); res.Blocked() {
		return res, nil
	}

	resolved, created, err := m.resolveAddress(ctx, cart.CustomerID, addressID, fields)
	if err != nil {
		return d.Result{}, err
	}

	next, res := Transition(cart, SelectAddress{Role: role, AddressID: resolved})
	if err := m.carts.SaveCart(ctx, next); err != nil {
		if created {
			m.dropAddress(ctx, cart.CustomerID, resolved)
		}
		return d.Result{}, fmt.Errorf("failed to save cart: %w", err)
	}
	return res, nil
}

// resolveAddress returns the address id to store for the role and whether
// it was created by this call.
func (m *Machine) resolveAddress(ctx context.Context, customerID string, addressID int64, fields *d.AddressFields) (int64, bool, error) {
	if addressID == 0 {
		if fields == nil || fields.IsZero() {
			return 0, false, nil
		}
		id, err := m.addresses.Create(ctx, customerID, *fields)
		if err != nil {
			return 0, false, fmt.Errorf("failed to create address: %w", err)
		}
		return id, true, nil
	}

	_, err := m.addresses.Get(ctx, customerID, addressID)
	if errors.Is(err, d.ErrAddressNotFound) {
		logger.WithContext(ctx, m.log).Info("selected address does not resolve, clearing reference",
			zap.Int64("address_id", addressID))
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to get address: %w", err)
	}
	return addressID, false, nil
}

// dropAddress removes an address created for a cart save that failed. It
// runs even when ctx is already cancelled.
func (m *Machine) dropAddress(ctx context.Context, customerID string, id int64) {
	cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
	defer cancel()
	if err := m.addresses.Delete(cleanupCtx, customerID, id); err != nil {
		logger.WithContext(ctx, m.log).Warn("failed to remove address of unsaved cart",
			zap.Int64("address_id", id),
			zap.Error(err))
	}
}

// CheckCartValidity asks the validity collaborator about cart. An invalid
// verdict without a redirect target lets the caller proceed.
func (m *Machine) CheckCartValidity(ctx context.Context, cart *d.Cart) (d.Result, error) {
	verdict, err := m.validity.Check(ctx, cart)
	if err != nil {
		return d.Result{}, fmt.Errorf("failed to check cart: %w", err)
	}
	if verdict.Valid {
		return d.Proceed(), nil
	}
	if verdict.Redirect == "" {
		logger.WithContext(ctx, m.log).Warn("cart reported invalid without redirect target, proceeding",
			zap.String("cart_id", cart.ID),
			zap.String("reason", verdict.Reason))
		return d.Proceed(), nil
	}
	return d.CartInvalid(verdict.Redirect), nil
}

// AcceptConfirmation commits the reviewed cart: it pins navigation to the
// order step and assigns the checkout token used to place the order once.
func (m *Machine) AcceptConfirmation(ctx context.Context, h Handle) (res d.Result, err error) {
	ctx, span := m.tracer.Start(ctx, "checkout.AcceptConfirmation")
	defer func() { m.finish(ctx, span, "accept_confirmation", h, res, err) }()

	unlock, err := m.locks.Lock(ctx, h.CartID)
	if err != nil {
		return d.Result{}, fmt.Errorf("failed to lock cart: %w", err)
	}
	defer unlock()

	cart, err := m.Load(ctx, h)
	if err != nil {
		return d.Result{}, err
	}
	if res = Guard(cart, d.StepConfirm); res.Blocked() {
		return res, nil
	}
	if res, err = m.CheckCartValidity(ctx, cart); err != nil || res.Blocked() {
		return res, err
	}

	next, res := Transition(cart, AcceptConfirmation{Token: m.newToken()})
	if err := m.carts.SaveCart(ctx, next); err != nil {
		return d.Result{}, fmt.Errorf("failed to save cart: %w", err)
	}
	return res, nil
}

// PlaceOrder performs the terminal transition. Authentication is checked
// before anything else. The order is created before the cart is reset, and
// the order collaborator is idempotent on the checkout token, so a retry
// after a failed reset never creates a second order.
func (m *Machine) PlaceOrder(ctx context.Context, h Handle, authenticated bool) (res d.Result, err error) {
	ctx, span := m.tracer.Start(ctx, "checkout.PlaceOrder")
	defer func() { m.finish(ctx, span, "place_order", h, res, err) }()

	if !authenticated {
		return d.RequiresAuth(), nil
	}

	unlock, err := m.locks.Lock(ctx, h.CartID)
	if err != nil {
		return d.Result{}, fmt.Errorf("failed to lock cart: %w", err)
	}
	defer unlock()

	cart, err := m.Load(ctx, h)
	if err != nil {
		return d.Result{}, err
	}
	if res = Guard(cart, d.StepOrder); res.Blocked() {
		return res, nil
	}
	if res, err = m.CheckCartValidity(ctx, cart); err != nil || res.Blocked() {
		return res, err
	}

	if cart.CheckoutToken == "" {
		return d.Result{}, ErrMissingCheckoutToken
	}

	orderID, err := m.orders.PlaceOrder(ctx, cart)
	if err != nil {
		return d.Result{}, fmt.Errorf("failed to create order: %w", err)
	}

	next, res := Transition(cart, OrderCreated{OrderID: orderID})
	if err := m.carts.SaveCart(ctx, next); err != nil {
		return d.Result{}, fmt.Errorf("failed to reset cart after order %s: %w", orderID, err)
	}
	logger.WithContext(ctx, m.log).Info("order placed",
		zap.String("cart_id", cart.ID),
		zap.String("order_id", orderID))
	return res, nil
}

// EnterOrderComplete shows the completion step. A cart carrying a placed
// order is returned as it was and then reset; a cart still waiting at the
// order step is only guarded.
func (m *Machine) EnterOrderComplete(ctx context.Context, h Handle) (res d.Result, cart *d.Cart, err error) {
	ctx, span := m.tracer.Start(ctx, "checkout.EnterOrderComplete")
	defer func() { m.finish(ctx, span, "enter_order", h, res, err) }()

	unlock, err := m.locks.Lock(ctx, h.CartID)
	if err != nil {
		return d.Result{}, nil, fmt.Errorf("failed to lock cart: %w", err)
	}
	defer unlock()

	cart, err = m.Load(ctx, h)
	if err != nil {
		return d.Result{}, nil, err
	}
	if cart.PlacedOrderID == "" {
		return Guard(cart, d.StepOrder), cart, nil
	}

	res = d.Result{Kind: d.ResultProceed, OrderID: cart.PlacedOrderID}
	if err := m.reset(ctx, cart); err != nil {
		return d.Result{}, nil, err
	}
	return res, cart, nil
}

// ResetToInitial clears the cart entirely. It is the only operation that
// moves the step pointer backwards.
func (m *Machine) ResetToInitial(ctx context.Context, h Handle) (err error) {
	ctx, span := m.tracer.Start(ctx, "checkout.ResetToInitial")
	defer func() { m.finish(ctx, span, "reset", h, d.Mutated(0), err) }()

	unlock, err := m.locks.Lock(ctx, h.CartID)
	if err != nil {
		return fmt.Errorf("failed to lock cart: %w", err)
	}
	defer unlock()

	cart, err := m.Load(ctx, h)
	if err != nil {
		return err
	}
	return m.reset(ctx, cart)
}

// reset drops the stored record; the next Load starts a fresh cart.
func (m *Machine) reset(ctx context.Context, cart *d.Cart) error {
	if err := m.carts.DeleteCart(ctx, cart.ID); err != nil && !errors.Is(err, d.ErrCartNotFound) {
		return fmt.Errorf("failed to reset cart: %w", err)
	}
	return nil
}

func (m *Machine) finish(ctx context.Context, span trace.Span, op string, h Handle, res d.Result, err error) {
	defer span.End()
	span.SetAttributes(
		attribute.String("cart.id", h.CartID),
		attribute.String("checkout.operation", op),
	)

	outcome := res.String()
	if err != nil {
		outcome = "ERROR"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.WithContext(ctx, m.log).Error("checkout transition failed",
			zap.String("operation", op),
			zap.String("cart_id", h.CartID),
			zap.Error(err))
	} else {
		span.SetAttributes(attribute.String("checkout.result", outcome))
		logger.WithContext(ctx, m.log).Debug("checkout transition",
			zap.String("operation", op),
			zap.String("cart_id", h.CartID),
			zap.String("result", outcome),
			zap.String("redirect", res.Redirect))
	}
	if m.observer != nil {
		m.observer.ObserveTransition(op, outcome)
	}
}
