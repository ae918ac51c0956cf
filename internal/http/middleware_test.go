package http

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	d "github.com/fjod/go_cart/checkout-flow/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var testSecret = []byte("test-secret")

func identityEcho() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, getIdentity(r.Context()))
	})
}

func TestRequestIDMiddleware(t *testing.T) {
	h := RequestIDMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NotEmpty(t, getRequestID(r.Context()))
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "req-1")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "req-1", rec.Header().Get("X-Request-ID"))
}

func TestSessionMiddleware_IssuesCookie(t *testing.T) {
	rec := httptest.NewRecorder()
	SessionMiddleware(identityEcho()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, SessionCookie, cookies[0].Name)
	assert.True(t, cookies[0].HttpOnly)
	assert.Contains(t, rec.Body.String(), `"CustomerID":"guest:`+cookies[0].Value+`"`)
}

func TestSessionMiddleware_KeepsValidCookie(t *testing.T) {
	const sid = "6f1c1a52-8a0e-4d2b-9d55-2c1b9f0e8a11"
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookie, Value: sid})

	rec := httptest.NewRecorder()
	SessionMiddleware(identityEcho()).ServeHTTP(rec, req)

	assert.Empty(t, rec.Result().Cookies())
	assert.Contains(t, rec.Body.String(), sid)
}

func TestSessionMiddleware_ReplacesForgedCookie(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookie, Value: "../../etc"})

	rec := httptest.NewRecorder()
	SessionMiddleware(identityEcho()).ServeHTTP(rec, req)

	require.Len(t, rec.Result().Cookies(), 1)
	assert.NotContains(t, rec.Body.String(), "etc")
}

func TestAuthMiddleware(t *testing.T) {
	token, err := IssueToken("customer-7", testSecret, time.Hour)
	require.NoError(t, err)
	expired, err := IssueToken("customer-7", testSecret, -time.Hour)
	require.NoError(t, err)
	foreign, err := IssueToken("customer-7", []byte("other"), time.Hour)
	require.NoError(t, err)

	h := SessionMiddleware(AuthMiddleware(testSecret, zap.NewNop())(identityEcho()))

	tests := []struct {
		name   string
		header string
		cookie string
		authed bool
	}{
		{"bearer header", "Bearer " + token, "", true},
		{"auth cookie", "", token, true},
		{"no token", "", "", false},
		{"expired", "Bearer " + expired, "", false},
		{"wrong key", "Bearer " + foreign, "", false},
		{"garbage", "Bearer nope", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: AuthCookie, Value: tt.cookie})
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			if tt.authed {
				assert.Contains(t, rec.Body.String(), `"CustomerID":"customer-7","Authenticated":true`)
			} else {
				assert.Contains(t, rec.Body.String(), `"Authenticated":false`)
			}
		})
	}
}

func TestCSRF(t *testing.T) {
	c := NewCSRF(testSecret)
	token := c.Token("session-1", FormShipping)

	assert.NotEqual(t, token, c.Token("session-2", FormShipping))
	assert.NotEqual(t, token, c.Token("session-1", FormBilling))

	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.Header.Set("X-CSRF-Token", token)
	assert.NoError(t, c.Verify(req, "session-1", FormShipping))
	assert.ErrorIs(t, c.Verify(req, "session-1", FormBilling), ErrInvalidCSRF)

	form := url.Values{csrfField: {token}}
	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	assert.NoError(t, c.Verify(req, "session-1", FormShipping))

	req = httptest.NewRequest(http.MethodPost, "/", nil)
	assert.ErrorIs(t, c.Verify(req, "session-1", FormShipping), ErrInvalidCSRF)
}

func TestRenderResult(t *testing.T) {
	tests := []struct {
		name     string
		res      d.Result
		ajax     bool
		status   int
		location string
		body     string
	}{
		{"past step page", d.BlockedPastStep(), false, http.StatusFound, "/cart/view", ""},
		{"past step ajax", d.BlockedPastStep(), true, http.StatusOK, "", `{"success":1}`},
		{"order step ajax", d.BlockedRequiresOrderStep(), true, http.StatusOK, "", `{"location":"/checkout/order"}`},
		{"auth ajax", d.RequiresAuth(), true, http.StatusOK, "", `{"location":"/user/login?return_url=/checkout/confirmation"}`},
		{"auth page", d.RequiresAuth(), false, http.StatusFound, "/user/login?return_url=/checkout/confirmation", ""},
		{"invalid ajax", d.CartInvalid("/cart/view"), true, http.StatusOK, "", `{"location":"/cart/view"}`},
		{"mutated ajax", d.Mutated(12), true, http.StatusOK, "", `{"address_id":12,"success":1}`},
		{"mutated page", d.Mutated(12), false, http.StatusFound, "/next", ""},
		{"placed page", d.OrderPlaced("o-1"), false, http.StatusFound, "/checkout/order", ""},
		{"placed ajax", d.OrderPlaced("o-1"), true, http.StatusOK, "", `{"location":"/checkout/order","order_id":"o-1","success":1}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", nil)
			if tt.ajax {
				req.Header.Set("X-Requested-With", "XMLHttpRequest")
			}
			rec := httptest.NewRecorder()
			renderResult(rec, req, tt.res, "/next")

			assert.Equal(t, tt.status, rec.Code)
			if tt.location != "" {
				assert.Equal(t, tt.location, rec.Header().Get("Location"))
			}
			if tt.body != "" {
				assert.JSONEq(t, tt.body, rec.Body.String())
			}
		})
	}
}
