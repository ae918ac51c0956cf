package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"strconv"

	d "github.com/fjod/go_cart/checkout-flow/domain"
	"github.com/fjod/go_cart/checkout-flow/internal/cart"
	"github.com/fjod/go_cart/checkout-flow/internal/checkout"
	"github.com/fjod/go_cart/checkout-flow/internal/lock"
	"github.com/fjod/go_cart/checkout-flow/internal/pricing"
	"go.uber.org/zap"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

func isAjax(r *http.Request) bool {
	return r.Header.Get("X-Requested-With") == "XMLHttpRequest"
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, ErrorResponse{Error: message, Code: code})
}

// renderResult turns a checkout result into a response. Full page requests
// are redirected; ajax requests get a JSON instruction. next is where a
// full page goes after a mutation.
func renderResult(w http.ResponseWriter, r *http.Request, res d.Result, next string) {
	ajax := isAjax(r)
	switch {
	case res.Blocked():
		if !ajax {
			http.Redirect(w, r, res.Redirect, http.StatusFound)
			return
		}
		if res.Kind == d.ResultBlockedPastStep {
			respondJSON(w, http.StatusOK, map[string]int{"success": 1})
			return
		}
		respondJSON(w, http.StatusOK, map[string]string{"location": res.Redirect})

	case res.Kind == d.ResultOrderPlaced:
		if !ajax {
			http.Redirect(w, r, d.RedirectOrderStep, http.StatusFound)
			return
		}
		respondJSON(w, http.StatusOK, map[string]any{
			"success":  1,
			"order_id": res.OrderID,
			"location": d.RedirectOrderStep,
		})

	case res.Kind == d.ResultMutated:
		if !ajax {
			http.Redirect(w, r, next, http.StatusFound)
			return
		}
		respondJSON(w, http.StatusOK, map[string]any{"success": 1, "address_id": res.AddressID})

	default:
		if !ajax {
			http.Redirect(w, r, next, http.StatusFound)
			return
		}
		respondJSON(w, http.StatusOK, map[string]int{"success": 1})
	}
}

// handleError maps service errors to HTTP status codes.
func handleError(w http.ResponseWriter, r *http.Request, log *zap.Logger, err error) {
	var status int
	var code string

	switch {
	case errors.Is(err, ErrInvalidCSRF):
		status, code = http.StatusForbidden, "invalid_csrf_token"
	case errors.Is(err, checkout.ErrInvalidRole), errors.Is(err, d.ErrIncompleteAddress),
		errors.Is(err, cart.ErrInvalidQuantity):
		status, code = http.StatusBadRequest, "invalid_argument"
	case errors.Is(err, d.ErrAddressNotFound), errors.Is(err, d.ErrOrderNotFound),
		errors.Is(err, d.ErrProductNotFound), errors.Is(err, d.ErrItemNotFound),
		errors.Is(err, d.ErrCouponNotFound):
		status, code = http.StatusNotFound, "not_found"
	case errors.Is(err, pricing.ErrCouponNotApplicable):
		status, code = http.StatusUnprocessableEntity, "coupon_not_applicable"
	case errors.Is(err, pricing.ErrCouponExpired):
		status, code = http.StatusUnprocessableEntity, "coupon_expired"
	case errors.Is(err, cart.ErrCheckoutInProgress), errors.Is(err, d.ErrVersionConflict):
		status, code = http.StatusConflict, "conflict"
	case errors.Is(err, lock.ErrLockNotAcquired):
		status, code = http.StatusServiceUnavailable, "cart_busy"
	case errors.Is(err, context.DeadlineExceeded):
		status, code = http.StatusGatewayTimeout, "timeout"
	default:
		log.Error("request failed",
			zap.String("request_id", getRequestID(r.Context())),
			zap.String("path", r.URL.Path),
			zap.Error(err))
		respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
		return
	}
	respondError(w, status, code, err.Error())
}

func isJSON(r *http.Request) bool {
	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return ct == "application/json"
}

// addressInput is the body of address submissions, as JSON or form fields.
type addressInput struct {
	AddressID int64 `json:"address_id"`
	d.AddressFields
}

func decodeAddressInput(r *http.Request) (addressInput, error) {
	var in addressInput
	if isJSON(r) {
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil && !errors.Is(err, io.EOF) {
			return in, err
		}
		return in, nil
	}
	if err := r.ParseForm(); err != nil {
		return in, err
	}
	if v := r.PostFormValue("address_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return in, err
		}
		in.AddressID = id
	}
	in.FirstName = r.PostFormValue("first_name")
	in.LastName = r.PostFormValue("last_name")
	in.Address1 = r.PostFormValue("address1")
	in.Address2 = r.PostFormValue("address2")
	in.City = r.PostFormValue("city")
	in.State = r.PostFormValue("state")
	in.Zip = r.PostFormValue("zip")
	in.Country = r.PostFormValue("country")
	in.Phone = r.PostFormValue("phone")
	return in, nil
}
