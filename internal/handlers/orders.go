package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	domain "github.com/virtualmegamall/api/internal/domain"
	"github.com/virtualmegamall/api/internal/platform/auth"
	"github.com/virtualmegamall/api/internal/platform/httpx"
	"github.com/virtualmegamall/api/internal/platform/pagination"
	"github.com/virtualmegamall/api/internal/services"
)

// OrderHandlers exposes the authenticated order history endpoints.
type OrderHandlers struct {
	authn  *auth.Authenticator
	orders services.OrderService
}

const maxOrderListLimit = 100

// NewOrderHandlers constructs handlers serving the current user's orders.
func NewOrderHandlers(authn *auth.Authenticator, orders services.OrderService) *OrderHandlers {
	return &OrderHandlers{
		authn:  authn,
		orders: orders,
	}
}

// Routes wires the /orders endpoints onto the provided router.
func (h *OrderHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.RequireFirebaseAuth())
	}
	r.Get("/", h.listOrders)
	r.Get("/{orderID}", h.getOrder)
}

func (h *OrderHandlers) listOrders(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	uid, ok := h.requireUser(ctx, w)
	if !ok {
		return
	}

	params, err := pagination.FromRequest(r, pagination.Options{MaxLimit: maxOrderListLimit})
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "limit must be a positive integer", http.StatusBadRequest))
		return
	}

	page, err := h.orders.ListOrders(ctx, services.ListOrdersCommand{
		UserID:    uid,
		Limit:     params.Limit,
		PageToken: params.PageToken,
	})
	if err != nil {
		h.writeOrderError(ctx, w, err)
		return
	}

	payload := make([]orderPayload, 0, len(page.Orders))
	for _, order := range page.Orders {
		payload = append(payload, buildOrderPayload(order))
	}
	body := map[string]any{"orders": payload}
	if page.NextPageToken != "" {
		body["nextPageToken"] = page.NextPageToken
	}
	writeJSONResponse(w, http.StatusOK, body)
}

func (h *OrderHandlers) getOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	uid, ok := h.requireUser(ctx, w)
	if !ok {
		return
	}

	order, err := h.orders.GetOrder(ctx, services.GetOrderCommand{
		UserID:  uid,
		OrderID: chi.URLParam(r, "orderID"),
	})
	if err != nil {
		h.writeOrderError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{"order": buildOrderPayload(order)})
}

func (h *OrderHandlers) requireUser(ctx context.Context, w http.ResponseWriter) (string, bool) {
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service is unavailable", http.StatusServiceUnavailable))
		return "", false
	}
	identity, ok := auth.IdentityFromContext(ctx)
	if !ok || identity == nil || strings.TrimSpace(identity.UID) == "" {
		httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
		return "", false
	}
	return identity.UID, true
}

func (h *OrderHandlers) writeOrderError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	switch {
	case errors.Is(err, services.ErrOrderInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrOrderNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("order_not_found", "order not found", http.StatusNotFound))
	case errors.Is(err, services.ErrOrderUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service is unavailable", http.StatusServiceUnavailable))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("order_error", "order operation failed", http.StatusInternalServerError))
	}
}

type orderPayload struct {
	ID            string             `json:"id"`
	SessionID     string             `json:"sessionId"`
	Status        string             `json:"status"`
	Currency      string             `json:"currency"`
	Total         int64              `json:"total"`
	Items         []orderItemPayload `json:"items"`
	Shipping      *shippingPayload   `json:"shipping,omitempty"`
	CustomerEmail string             `json:"customerEmail,omitempty"`
	CreatedAt     string             `json:"createdAt,omitempty"`
}

type orderItemPayload struct {
	Name     string `json:"name"`
	Quantity int64  `json:"quantity"`
	Amount   int64  `json:"amount"`
}

type shippingPayload struct {
	Name       string `json:"name,omitempty"`
	Line1      string `json:"line1,omitempty"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city,omitempty"`
	State      string `json:"state,omitempty"`
	PostalCode string `json:"postalCode,omitempty"`
	Country    string `json:"country,omitempty"`
}

func buildOrderPayload(order domain.Order) orderPayload {
	payload := orderPayload{
		ID:            order.ID,
		SessionID:     order.SessionID,
		Status:        string(order.Status),
		Currency:      order.Currency,
		Total:         order.TotalMinor,
		Items:         make([]orderItemPayload, 0, len(order.Items)),
		CustomerEmail: order.CustomerEmail,
		CreatedAt:     formatTime(order.CreatedAt),
	}
	for _, item := range order.Items {
		payload.Items = append(payload.Items, orderItemPayload{
			Name:     item.Name,
			Quantity: item.Quantity,
			Amount:   item.AmountMinor,
		})
	}
	if addr := order.ShippingAddress; addr != nil {
		payload.Shipping = &shippingPayload{
			Name:       addr.Name,
			Line1:      addr.Line1,
			Line2:      addr.Line2,
			City:       addr.City,
			State:      addr.State,
			PostalCode: addr.PostalCode,
			Country:    addr.Country,
		}
	}
	return payload
}
