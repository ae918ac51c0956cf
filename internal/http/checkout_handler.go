package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	d "github.com/fjod/go_cart/checkout-flow/domain"
	"github.com/fjod/go_cart/checkout-flow/internal/checkout"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type Machine interface {
	EnterStep(ctx context.Context, h checkout.Handle, step d.Step) (d.Result, *d.Cart, error)
	SelectAddress(ctx context.Context, h checkout.Handle, role d.AddressRole, addressID int64, fields *d.AddressFields) (d.Result, error)
	AcceptConfirmation(ctx context.Context, h checkout.Handle) (d.Result, error)
	PlaceOrder(ctx context.Context, h checkout.Handle, authenticated bool) (d.Result, error)
	EnterOrderComplete(ctx context.Context, h checkout.Handle) (d.Result, *d.Cart, error)
	ResetToInitial(ctx context.Context, h checkout.Handle) error
}

type AddressBook interface {
	Get(ctx context.Context, customerID string, id int64) (*d.Address, error)
	Delete(ctx context.Context, customerID string, id int64) error
	ListForCustomer(ctx context.Context, customerID string) ([]*d.Address, error)
}

type Pricer interface {
	Totals(ctx context.Context, cart *d.Cart) (d.Totals, error)
}

type OrderReader interface {
	Get(ctx context.Context, customerID, orderID string) (*d.Order, error)
	List(ctx context.Context, customerID string) ([]*d.Order, error)
}

type CheckoutHandler struct {
	machine   Machine
	addresses AddressBook
	pricer    Pricer
	orders    OrderReader
	csrf      *CSRF
	timeout   time.Duration
	log       *zap.Logger
}

func NewCheckoutHandler(machine Machine, addresses AddressBook, pricer Pricer, orders OrderReader, csrf *CSRF, timeout time.Duration, log *zap.Logger) *CheckoutHandler {
	return &CheckoutHandler{
		machine:   machine,
		addresses: addresses,
		pricer:    pricer,
		orders:    orders,
		csrf:      csrf,
		timeout:   timeout,
		log:       log,
	}
}

// AddressStepView is the shipping or billing page model.
type AddressStepView struct {
	Step           string       `json:"step"`
	StepLabel      string       `json:"step_label"`
	CurrentAddress any          `json:"current_address"`
	Addresses      []*d.Address `json:"addresses"`
	CSRFToken      string       `json:"csrf_token"`
}

type ConfirmationView struct {
	StepLabel       string       `json:"step_label"`
	Cart            *d.Cart      `json:"cart"`
	Items           []d.CartItem `json:"items"`
	ShippingAddress any          `json:"shipping_address"`
	BillingAddress  any          `json:"billing_address"`
	Totals          d.Totals     `json:"totals"`
	CSRFToken       string       `json:"csrf_token"`
}

type OrderView struct {
	StepLabel string   `json:"step_label"`
	OrderID   string   `json:"order_id,omitempty"`
	Order     *d.Order `json:"order,omitempty"`
	CSRFToken string   `json:"csrf_token,omitempty"`
}

func handleFor(id Identity) checkout.Handle {
	return checkout.Handle{CartID: id.SessionID, CustomerID: id.CustomerID}
}

// GET /checkout/{step}
func (h *CheckoutHandler) EnterAddressStep(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	step, err := d.ParseStep(chi.URLParam(r, "step"))
	if err != nil {
		respondError(w, http.StatusNotFound, "not_found", err.Error())
		return
	}
	role := roleForStep(step)
	if role == "" {
		respondError(w, http.StatusNotFound, "not_found", "unknown checkout step")
		return
	}

	id := getIdentity(r.Context())
	res, cart, err := h.machine.EnterStep(ctx, handleFor(id), step)
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}
	if res.Blocked() {
		renderResult(w, r, res, "")
		return
	}

	current, err := h.currentAddress(ctx, id.CustomerID, cart.AddressRef(role))
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}
	addresses, err := h.addresses.ListForCustomer(ctx, id.CustomerID)
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}

	form := FormShipping
	if role == d.RoleBilling {
		form = FormBilling
	}
	respondJSON(w, http.StatusOK, AddressStepView{
		Step:           step.String(),
		StepLabel:      cart.Step.String(),
		CurrentAddress: current,
		Addresses:      addresses,
		CSRFToken:      h.csrf.Token(id.SessionID, form),
	})
}

// POST /checkout/shipping
func (h *CheckoutHandler) SubmitShipping(w http.ResponseWriter, r *http.Request) {
	h.submitAddress(w, r, d.RoleShipping, FormShipping, "/checkout/billing")
}

// POST /checkout/billing
func (h *CheckoutHandler) SubmitBilling(w http.ResponseWriter, r *http.Request) {
	h.submitAddress(w, r, d.RoleBilling, FormBilling, d.RedirectConfirmation)
}

func (h *CheckoutHandler) submitAddress(w http.ResponseWriter, r *http.Request, role d.AddressRole, form, next string) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	id := getIdentity(r.Context())
	if err := h.csrf.Verify(r, id.SessionID, form); err != nil {
		handleError(w, r, h.log, err)
		return
	}

	in, err := decodeAddressInput(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid address body")
		return
	}

	res, err := h.machine.SelectAddress(ctx, handleFor(id), role, in.AddressID, &in.AddressFields)
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}
	renderResult(w, r, res, next)
}

// POST /checkout/address/get
func (h *CheckoutHandler) GetAddress(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	in, err := decodeAddressInput(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid address body")
		return
	}

	id := getIdentity(r.Context())
	current, err := h.currentAddress(ctx, id.CustomerID, in.AddressID)
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, current)
}

// POST /checkout/address/delete
func (h *CheckoutHandler) DeleteAddress(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	in, err := decodeAddressInput(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid address body")
		return
	}

	id := getIdentity(r.Context())
	if err := h.addresses.Delete(ctx, id.CustomerID, in.AddressID); err != nil {
		handleError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]int{"success": 1})
}

// GET /checkout/confirmation
func (h *CheckoutHandler) EnterConfirmation(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	id := getIdentity(r.Context())
	res, cart, err := h.machine.EnterStep(ctx, handleFor(id), d.StepConfirm)
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}
	if res.Blocked() {
		renderResult(w, r, res, "")
		return
	}

	shipping, err := h.currentAddress(ctx, id.CustomerID, cart.ShippingAddressID)
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}
	billing, err := h.currentAddress(ctx, id.CustomerID, cart.BillingAddressID)
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}
	totals, err := h.pricer.Totals(ctx, cart)
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}

	items := cart.Items
	if items == nil {
		items = []d.CartItem{}
	}
	respondJSON(w, http.StatusOK, ConfirmationView{
		StepLabel:       cart.Step.String(),
		Cart:            cart,
		Items:           items,
		ShippingAddress: shipping,
		BillingAddress:  billing,
		Totals:          totals,
		CSRFToken:       h.csrf.Token(id.SessionID, FormConfirmation),
	})
}

// POST /checkout/confirmation
func (h *CheckoutHandler) AcceptConfirmation(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	id := getIdentity(r.Context())
	if err := h.csrf.Verify(r, id.SessionID, FormConfirmation); err != nil {
		handleError(w, r, h.log, err)
		return
	}

	res, err := h.machine.AcceptConfirmation(ctx, handleFor(id))
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}
	renderResult(w, r, res, d.RedirectOrderStep)
}

// POST /checkout/place-order
func (h *CheckoutHandler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	id := getIdentity(r.Context())
	// guests are sent to login before the form is looked at
	if id.Authenticated {
		if err := h.csrf.Verify(r, id.SessionID, FormConfirmation); err != nil {
			handleError(w, r, h.log, err)
			return
		}
	}

	res, err := h.machine.PlaceOrder(ctx, handleFor(id), id.Authenticated)
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}
	renderResult(w, r, res, d.RedirectOrderStep)
}

// GET /checkout/order
func (h *CheckoutHandler) EnterOrderComplete(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	id := getIdentity(r.Context())
	res, cart, err := h.machine.EnterOrderComplete(ctx, handleFor(id))
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}
	if res.Blocked() {
		renderResult(w, r, res, "")
		return
	}

	if res.OrderID == "" {
		respondJSON(w, http.StatusOK, OrderView{
			StepLabel: cart.Step.String(),
			CSRFToken: h.csrf.Token(id.SessionID, FormConfirmation),
		})
		return
	}

	view := OrderView{StepLabel: d.StepOrder.String(), OrderID: res.OrderID}
	order, err := h.orders.Get(ctx, id.CustomerID, res.OrderID)
	switch {
	case err == nil:
		view.Order = order
	case errors.Is(err, d.ErrOrderNotFound):
	default:
		h.log.Warn("failed to load placed order for completion view",
			zap.String("order_id", res.OrderID),
			zap.Error(err))
	}
	respondJSON(w, http.StatusOK, view)
}

// POST /cart/clear
func (h *CheckoutHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	id := getIdentity(r.Context())
	if err := h.machine.ResetToInitial(ctx, handleFor(id)); err != nil {
		handleError(w, r, h.log, err)
		return
	}
	renderResult(w, r, d.Mutated(0), d.RedirectCartView)
}

// GET /checkout/csrf/{form}
func (h *CheckoutHandler) IssueCSRF(w http.ResponseWriter, r *http.Request) {
	form := chi.URLParam(r, "form")
	if !knownForms[form] {
		respondError(w, http.StatusNotFound, "not_found", "unknown form")
		return
	}
	id := getIdentity(r.Context())
	respondJSON(w, http.StatusOK, map[string]string{
		"form":       form,
		"csrf_token": h.csrf.Token(id.SessionID, form),
	})
}

// currentAddress resolves ref for display. No reference or a dangling one
// renders as an empty object.
func (h *CheckoutHandler) currentAddress(ctx context.Context, customerID string, ref int64) (any, error) {
	if ref == 0 {
		return struct{}{}, nil
	}
	a, err := h.addresses.Get(ctx, customerID, ref)
	if errors.Is(err, d.ErrAddressNotFound) {
		return struct{}{}, nil
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}

func roleForStep(step d.Step) d.AddressRole {
	switch step {
	case d.StepShipping:
		return d.RoleShipping
	case d.StepBilling:
		return d.RoleBilling
	}
	return ""
}
