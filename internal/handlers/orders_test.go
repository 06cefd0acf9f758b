package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	domain "github.com/virtualmegamall/api/internal/domain"
	"github.com/virtualmegamall/api/internal/services"
)

func newOrderRouter(svc services.OrderService) chi.Router {
	handlers := NewOrderHandlers(testAuthenticator("user-1"), svc)
	r := chi.NewRouter()
	r.Route("/orders", handlers.Routes)
	return r
}

func sampleOrder() services.Order {
	return services.Order{
		ID:        "cs_test_123",
		SessionID: "cs_test_123",
		UserID:    "user-1",
		Status:    domain.OrderStatusPaid,
		Currency:  "pkr",
		Items: []services.OrderLineItem{
			{Name: "Embroidered Lawn Suit", Quantity: 3, AmountMinor: 1650000},
		},
		TotalMinor:    1650000,
		CustomerEmail: "ayesha@example.com",
		ShippingAddress: &domain.PostalAddress{
			Name:    "Ayesha Khan",
			Line1:   "14-B Gulberg III",
			City:    "Lahore",
			Country: "PK",
		},
		CreatedAt: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestOrdersListReturnsHistory(t *testing.T) {
	svc := &stubOrderService{page: services.OrderPage{Orders: []services.Order{sampleOrder()}}}
	router := newOrderRouter(svc)

	rr := serveAuthed(router, httptest.NewRequest(http.MethodGet, "/orders", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if svc.lastList.UserID != "user-1" {
		t.Fatalf("expected list scoped to identity, got %q", svc.lastList.UserID)
	}

	var body struct {
		Orders []orderPayload `json:"orders"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(body.Orders) != 1 {
		t.Fatalf("expected 1 order, got %d", len(body.Orders))
	}
	got := body.Orders[0]
	if got.ID != "cs_test_123" || got.Status != "paid" || got.Total != 1650000 {
		t.Fatalf("unexpected order payload: %+v", got)
	}
	if got.Shipping == nil || got.Shipping.City != "Lahore" {
		t.Fatalf("expected shipping city Lahore, got %+v", got.Shipping)
	}
	if got.CreatedAt == "" {
		t.Fatal("expected createdAt to be populated")
	}
}

func TestOrdersListEmptyIsArray(t *testing.T) {
	router := newOrderRouter(&stubOrderService{page: services.OrderPage{Orders: []services.Order{}}})

	rr := serveAuthed(router, httptest.NewRequest(http.MethodGet, "/orders", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), `"orders":[]`) {
		t.Fatalf("expected empty array, got %s", rr.Body.String())
	}
}

func TestOrdersListLimitValidation(t *testing.T) {
	svc := &stubOrderService{page: services.OrderPage{Orders: []services.Order{}}}
	router := newOrderRouter(svc)

	rr := serveAuthed(router, httptest.NewRequest(http.MethodGet, "/orders?limit=25", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if svc.lastList.Limit != 25 {
		t.Fatalf("expected limit 25, got %d", svc.lastList.Limit)
	}

	rr = serveAuthed(router, httptest.NewRequest(http.MethodGet, "/orders?limit=500", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if svc.lastList.Limit != maxOrderListLimit {
		t.Fatalf("expected limit capped at %d, got %d", maxOrderListLimit, svc.lastList.Limit)
	}

	rr = serveAuthed(router, httptest.NewRequest(http.MethodGet, "/orders?limit=abc", nil))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for non-numeric limit, got %d", rr.Code)
	}
}

func TestOrdersListForwardsPageToken(t *testing.T) {
	svc := &stubOrderService{page: services.OrderPage{
		Orders:        []services.Order{sampleOrder()},
		NextPageToken: "next-token",
	}}
	router := newOrderRouter(svc)

	rr := serveAuthed(router, httptest.NewRequest(http.MethodGet, "/orders?pageToken=prev-token", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if svc.lastList.PageToken != "prev-token" {
		t.Fatalf("expected page token forwarded, got %q", svc.lastList.PageToken)
	}
	if !strings.Contains(rr.Body.String(), `"nextPageToken":"next-token"`) {
		t.Fatalf("expected nextPageToken in body, got %s", rr.Body.String())
	}
}

func TestOrdersGetByID(t *testing.T) {
	svc := &stubOrderService{order: sampleOrder()}
	router := newOrderRouter(svc)

	rr := serveAuthed(router, httptest.NewRequest(http.MethodGet, "/orders/cs_test_123", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if svc.lastGet.UserID != "user-1" || svc.lastGet.OrderID != "cs_test_123" {
		t.Fatalf("unexpected command: %+v", svc.lastGet)
	}

	var body struct {
		Order orderPayload `json:"order"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body.Order.SessionID != "cs_test_123" || body.Order.CustomerEmail != "ayesha@example.com" {
		t.Fatalf("unexpected order payload: %+v", body.Order)
	}
}

func TestOrdersGetNotFoundMapsTo404(t *testing.T) {
	router := newOrderRouter(&stubOrderService{err: services.ErrOrderNotFound})

	rr := serveAuthed(router, httptest.NewRequest(http.MethodGet, "/orders/cs_missing", nil))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "order_not_found") {
		t.Fatalf("expected order_not_found code, got %s", rr.Body.String())
	}
}

func TestOrdersRequireAuthentication(t *testing.T) {
	router := newOrderRouter(&stubOrderService{})

	req := httptest.NewRequest(http.MethodGet, "/orders", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without bearer token, got %d", rr.Code)
	}
}
