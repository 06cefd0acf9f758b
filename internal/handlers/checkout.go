package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/virtualmegamall/api/internal/platform/httpx"
	"github.com/virtualmegamall/api/internal/services"
)

// CheckoutHandlers exposes the public checkout session endpoint consumed by
// the storefront. The endpoint is unauthenticated and CORS-open so static
// storefront pages can call it directly.
type CheckoutHandlers struct {
	checkout services.CheckoutService
	origin   string
}

const maxCheckoutBodySize = 64 * 1024

// NewCheckoutHandlers constructs the checkout endpoint handlers. origin is
// the value served in Access-Control-Allow-Origin; blank defaults to "*".
func NewCheckoutHandlers(checkout services.CheckoutService, origin string) *CheckoutHandlers {
	origin = strings.TrimSpace(origin)
	if origin == "" {
		origin = "*"
	}
	return &CheckoutHandlers{
		checkout: checkout,
		origin:   origin,
	}
}

// Routes wires the /checkout endpoints onto the provided router.
func (h *CheckoutHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Use(h.corsMiddleware)
	r.Post("/session", h.createSession)
	r.Options("/session", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
}

// corsMiddleware sets the permissive headers the storefront relies on and
// short-circuits preflight requests.
func (h *CheckoutHandlers) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", h.origin)
		w.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type checkoutSessionRequest struct {
	UserID     string                `json:"userId"`
	UserEmail  string                `json:"userEmail"`
	Items      []checkoutItemRequest `json:"items"`
	SuccessURL string                `json:"successUrl"`
	CancelURL  string                `json:"cancelUrl"`
}

type checkoutItemRequest struct {
	ProductID string `json:"productId"`
	Name      string `json:"name"`
	Brand     string `json:"brand"`
	Price     string `json:"price"`
	ImageURL  string `json:"imageUrl"`
	Quantity  int64  `json:"quantity"`
}

type checkoutSessionResponse struct {
	SessionID string `json:"sessionId"`
	URL       string `json:"url"`
}

func (h *CheckoutHandlers) createSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.checkout == nil {
		httpx.WriteError(ctx, w, httpx.NewError("checkout_service_unavailable", "checkout service is unavailable", http.StatusServiceUnavailable))
		return
	}

	body, err := readLimitedBody(r, maxCheckoutBodySize)
	if err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	var req checkoutSessionRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid JSON payload", http.StatusBadRequest))
		return
	}

	cmd := services.CreateCheckoutSessionCommand{
		UserID:        req.UserID,
		CustomerEmail: req.UserEmail,
		SuccessURL:    req.SuccessURL,
		CancelURL:     req.CancelURL,
	}
	for _, item := range req.Items {
		cmd.Items = append(cmd.Items, services.CheckoutItemInput{
			ProductID:    item.ProductID,
			Name:         item.Name,
			Brand:        item.Brand,
			PriceDisplay: item.Price,
			ImageURL:     item.ImageURL,
			Quantity:     item.Quantity,
		})
	}

	result, err := h.checkout.CreateSession(ctx, cmd)
	if err != nil {
		h.writeCheckoutError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, checkoutSessionResponse{
		SessionID: result.SessionID,
		URL:       result.URL,
	})
}

func (h *CheckoutHandlers) writeCheckoutError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrCheckoutEmptyCart):
		httpx.WriteError(ctx, w, httpx.NewError("empty_cart", "checkout requires at least one item", http.StatusBadRequest))
	case errors.Is(err, services.ErrCheckoutInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrCheckoutPaymentFailed):
		httpx.WriteError(ctx, w, httpx.NewError("payment_session_failed", "could not create payment session", http.StatusBadGateway))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("checkout_error", "checkout failed", http.StatusInternalServerError))
	}
}
