package domain

// ResultKind is the outcome of a checkout transition.
type ResultKind string

const (
	ResultProceed                  ResultKind = "PROCEED"
	ResultMutated                  ResultKind = "MUTATED"
	ResultBlockedPastStep          ResultKind = "BLOCKED_PAST_STEP"
	ResultBlockedRequiresOrderStep ResultKind = "BLOCKED_REQUIRES_ORDER_STEP"
	ResultRequiresAuth             ResultKind = "REQUIRES_AUTH"
	ResultCartInvalid              ResultKind = "CART_INVALID"
	ResultOrderPlaced              ResultKind = "ORDER_PLACED"
)

const (
	RedirectCartView     = "/cart/view"
	RedirectOrderStep    = "/checkout/order"
	RedirectConfirmation = "/checkout/confirmation"
	RedirectLogin        = "/user/login?return_url=" + RedirectConfirmation
)

// Result is what every checkout operation hands back to the gateway.
type Result struct {
	Kind      ResultKind
	Redirect  string
	AddressID int64
	OrderID   string
}

func Proceed() Result { return Result{Kind: ResultProceed} }

func Mutated(addressID int64) Result {
	return Result{Kind: ResultMutated, AddressID: addressID}
}

func BlockedPastStep() Result {
	return Result{Kind: ResultBlockedPastStep, Redirect: RedirectCartView}
}

func BlockedRequiresOrderStep() Result {
	return Result{Kind: ResultBlockedRequiresOrderStep, Redirect: RedirectOrderStep}
}

func RequiresAuth() Result {
	return Result{Kind: ResultRequiresAuth, Redirect: RedirectLogin}
}

func CartInvalid(redirect string) Result {
	return Result{Kind: ResultCartInvalid, Redirect: redirect}
}

func OrderPlaced(orderID string) Result {
	return Result{Kind: ResultOrderPlaced, OrderID: orderID}
}

// Blocked reports whether the caller has to stop and follow Redirect.
func (r Result) Blocked() bool {
	switch r.Kind {
	case ResultBlockedPastStep, ResultBlockedRequiresOrderStep, ResultRequiresAuth, ResultCartInvalid:
		return true
	}
	return false
}

func (r Result) String() string {
	return string(r.Kind)
}
