package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/virtualmegamall/api/internal/services"
)

func newCartRouter(svc services.CartService) chi.Router {
	handlers := NewCartHandlers(testAuthenticator("user-1"), svc)
	r := chi.NewRouter()
	r.Route("/cart", handlers.Routes)
	return r
}

func TestCartGetReturnsView(t *testing.T) {
	svc := &stubCartService{view: services.CartView{
		Items: []services.CartLineItem{
			{
				ProductID:    "prod-1",
				Name:         "Embroidered Lawn Suit",
				Brand:        "Khaadi",
				PriceDisplay: "Rs. 5,500",
				Quantity:     2,
				AddedAt:      time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC),
			},
		},
		Summary: services.CartSummary{Count: 2, TotalMinor: 1100000},
	}}
	router := newCartRouter(svc)

	rr := serveAuthed(router, httptest.NewRequest(http.MethodGet, "/cart", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var body cartResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(body.Cart.Items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(body.Cart.Items))
	}
	if body.Cart.Items[0].ProductID != "prod-1" || body.Cart.Items[0].Price != "Rs. 5,500" {
		t.Fatalf("unexpected item payload: %+v", body.Cart.Items[0])
	}
	if body.Cart.Count != 2 || body.Cart.Total != 1100000 {
		t.Fatalf("unexpected summary: count=%d total=%d", body.Cart.Count, body.Cart.Total)
	}
}

func TestCartSummaryReturnsAggregates(t *testing.T) {
	svc := &stubCartService{view: services.CartView{
		Summary: services.CartSummary{Count: 5, TotalMinor: 750000},
	}}
	router := newCartRouter(svc)

	rr := serveAuthed(router, httptest.NewRequest(http.MethodGet, "/cart/summary", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var body cartSummaryPayload
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body.Count != 5 || body.Total != 750000 {
		t.Fatalf("unexpected summary: count=%d total=%d", body.Count, body.Total)
	}
}

func TestCartRequiresAuthentication(t *testing.T) {
	router := newCartRouter(&stubCartService{})

	req := httptest.NewRequest(http.MethodGet, "/cart", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without bearer token, got %d", rr.Code)
	}
}

func TestCartAddItemForwardsCommand(t *testing.T) {
	svc := &stubCartService{}
	router := newCartRouter(svc)

	payload := `{"productId":"prod-9","name":"Kurta","brand":"Sapphire","price":"Rs. 2,500","quantity":3,"size":"M","color":"Blue"}`
	req := httptest.NewRequest(http.MethodPost, "/cart/items", strings.NewReader(payload))
	rr := serveAuthed(router, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if svc.lastCmd.UserID != "user-1" {
		t.Fatalf("expected user from identity, got %q", svc.lastCmd.UserID)
	}
	if svc.lastCmd.ProductID != "prod-9" || svc.lastCmd.Quantity != 3 {
		t.Fatalf("unexpected command: %+v", svc.lastCmd)
	}
	if svc.lastCmd.Size != "M" || svc.lastCmd.Color != "Blue" {
		t.Fatalf("variant fields not forwarded: %+v", svc.lastCmd)
	}
}

func TestCartAddItemRejectsInvalidJSON(t *testing.T) {
	router := newCartRouter(&stubCartService{})

	req := httptest.NewRequest(http.MethodPost, "/cart/items", strings.NewReader("{not json"))
	rr := serveAuthed(router, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

func TestCartSetQuantityRequiresQuantityField(t *testing.T) {
	router := newCartRouter(&stubCartService{})

	req := httptest.NewRequest(http.MethodPut, "/cart/items/prod-1", strings.NewReader(`{}`))
	rr := serveAuthed(router, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing quantity, got %d", rr.Code)
	}
}

func TestCartSetQuantityForwardsPathProduct(t *testing.T) {
	svc := &stubCartService{}
	router := newCartRouter(svc)

	req := httptest.NewRequest(http.MethodPut, "/cart/items/prod-4", strings.NewReader(`{"quantity":7}`))
	rr := serveAuthed(router, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if svc.lastSet.ProductID != "prod-4" || svc.lastSet.Quantity != 7 {
		t.Fatalf("unexpected command: %+v", svc.lastSet)
	}
}

func TestCartSetQuantityMissingLineMapsToNotFound(t *testing.T) {
	router := newCartRouter(&stubCartService{err: services.ErrCartNotFound})

	req := httptest.NewRequest(http.MethodPut, "/cart/items/prod-4", strings.NewReader(`{"quantity":2}`))
	rr := serveAuthed(router, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "cart_item_not_found") {
		t.Fatalf("expected cart_item_not_found code, got %s", rr.Body.String())
	}
}

func TestCartServiceUnavailableMapsTo503(t *testing.T) {
	router := newCartRouter(&stubCartService{err: services.ErrCartUnavailable})

	rr := serveAuthed(router, httptest.NewRequest(http.MethodGet, "/cart", nil))
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rr.Code)
	}
}

func TestCartClearReturnsEmptyCart(t *testing.T) {
	svc := &stubCartService{}
	router := newCartRouter(svc)

	rr := serveAuthed(router, httptest.NewRequest(http.MethodDelete, "/cart", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if !svc.cleared {
		t.Fatal("expected ClearCart to be invoked")
	}

	var body cartResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(body.Cart.Items) != 0 || body.Cart.Count != 0 {
		t.Fatalf("expected empty cart payload, got %+v", body.Cart)
	}
}
