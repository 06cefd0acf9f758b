package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/virtualmegamall/api/internal/services"
)

func newCheckoutRouter(svc services.CheckoutService) chi.Router {
	handlers := NewCheckoutHandlers(svc, "")
	r := chi.NewRouter()
	r.Route("/checkout", handlers.Routes)
	return r
}

func TestCheckoutCreateSession(t *testing.T) {
	svc := &stubCheckoutService{result: services.CheckoutSessionResult{
		SessionID:   "cs_test_123",
		URL:         "https://checkout.stripe.com/c/pay/cs_test_123",
		AmountMinor: 1650000,
		Currency:    "pkr",
		ItemCount:   3,
	}}
	router := newCheckoutRouter(svc)

	payload := `{"userId":"user-1","userEmail":"ayesha@example.com","items":[{"productId":"prod-1","name":"Lawn Suit","price":"Rs. 5,500","quantity":3}]}`
	req := httptest.NewRequest(http.MethodPost, "/checkout/session", strings.NewReader(payload))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("expected open CORS origin, got %q", got)
	}

	var body checkoutSessionResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body.SessionID != "cs_test_123" {
		t.Fatalf("unexpected session id %q", body.SessionID)
	}
	if !strings.HasPrefix(body.URL, "https://checkout.stripe.com/") {
		t.Fatalf("unexpected redirect url %q", body.URL)
	}

	if svc.lastCmd.UserID != "user-1" || svc.lastCmd.CustomerEmail != "ayesha@example.com" {
		t.Fatalf("unexpected command: %+v", svc.lastCmd)
	}
	if len(svc.lastCmd.Items) != 1 || svc.lastCmd.Items[0].PriceDisplay != "Rs. 5,500" {
		t.Fatalf("unexpected items: %+v", svc.lastCmd.Items)
	}
}

func TestCheckoutForwardsRedirectOverrides(t *testing.T) {
	svc := &stubCheckoutService{}
	router := newCheckoutRouter(svc)

	payload := `{"userId":"user-1","items":[{"name":"Suit","price":"Rs. 100","quantity":1}],"successUrl":"https://shop.example.com/thanks","cancelUrl":"https://shop.example.com/cart"}`
	req := httptest.NewRequest(http.MethodPost, "/checkout/session", strings.NewReader(payload))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if svc.lastCmd.SuccessURL != "https://shop.example.com/thanks" {
		t.Fatalf("unexpected success url %q", svc.lastCmd.SuccessURL)
	}
	if svc.lastCmd.CancelURL != "https://shop.example.com/cart" {
		t.Fatalf("unexpected cancel url %q", svc.lastCmd.CancelURL)
	}
}

func TestCheckoutPreflightShortCircuits(t *testing.T) {
	router := newCheckoutRouter(&stubCheckoutService{})

	req := httptest.NewRequest(http.MethodOptions, "/checkout/session", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected 204 for preflight, got %d", rr.Code)
	}
	if got := rr.Header().Get("Access-Control-Allow-Methods"); got != "POST, OPTIONS" {
		t.Fatalf("unexpected allow methods %q", got)
	}
	if got := rr.Header().Get("Access-Control-Allow-Headers"); got != "Content-Type" {
		t.Fatalf("unexpected allow headers %q", got)
	}
}

func TestCheckoutCustomOrigin(t *testing.T) {
	handlers := NewCheckoutHandlers(&stubCheckoutService{}, "https://shop.example.com")
	r := chi.NewRouter()
	r.Route("/checkout", handlers.Routes)

	req := httptest.NewRequest(http.MethodOptions, "/checkout/session", nil)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "https://shop.example.com" {
		t.Fatalf("expected configured origin, got %q", got)
	}
}

func TestCheckoutEmptyCartMapsTo400(t *testing.T) {
	router := newCheckoutRouter(&stubCheckoutService{err: services.ErrCheckoutEmptyCart})

	req := httptest.NewRequest(http.MethodPost, "/checkout/session", strings.NewReader(`{"items":[]}`))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "empty_cart") {
		t.Fatalf("expected empty_cart code, got %s", rr.Body.String())
	}
}

func TestCheckoutProviderFailureMapsTo502(t *testing.T) {
	router := newCheckoutRouter(&stubCheckoutService{err: services.ErrCheckoutPaymentFailed})

	payload := `{"items":[{"productId":"prod-1","name":"Suit","price":"Rs. 100","quantity":1}]}`
	req := httptest.NewRequest(http.MethodPost, "/checkout/session", strings.NewReader(payload))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "payment_session_failed") {
		t.Fatalf("expected payment_session_failed code, got %s", rr.Body.String())
	}
}

func TestCheckoutRejectsMalformedBody(t *testing.T) {
	router := newCheckoutRouter(&stubCheckoutService{})

	req := httptest.NewRequest(http.MethodPost, "/checkout/session", strings.NewReader("not json"))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}
