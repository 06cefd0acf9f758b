package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/virtualmegamall/api/internal/payments"
	"github.com/virtualmegamall/api/internal/platform/httpx"
	"github.com/virtualmegamall/api/internal/services"
)

// WebhookHandlers ingests PSP webhook deliveries. Payloads are read raw so
// signature verification sees the exact bytes the PSP signed.
type WebhookHandlers struct {
	verifier payments.WebhookVerifier
	orders   services.OrderService
}

const maxWebhookBodySize = 1 << 20

// NewWebhookHandlers constructs the webhook ingestion handlers.
func NewWebhookHandlers(verifier payments.WebhookVerifier, orders services.OrderService) *WebhookHandlers {
	return &WebhookHandlers{
		verifier: verifier,
		orders:   orders,
	}
}

// Routes wires the /webhooks endpoints onto the provided router.
func (h *WebhookHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/stripe", h.handleStripe)
}

func (h *WebhookHandlers) handleStripe(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.verifier == nil || h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("webhook_unavailable", "webhook processing is unavailable", http.StatusServiceUnavailable))
		return
	}

	payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBodySize+1))
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "could not read request body", http.StatusBadRequest))
		return
	}
	if len(payload) > maxWebhookBodySize {
		httpx.WriteError(ctx, w, httpx.NewError("payload_too_large", "webhook payload exceeds allowed size", http.StatusRequestEntityTooLarge))
		return
	}

	signature := strings.TrimSpace(r.Header.Get("Stripe-Signature"))
	event, err := h.verifier.VerifyEvent(payload, signature)
	if err != nil {
		if errors.Is(err, payments.ErrInvalidSignature) {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_signature", "webhook signature verification failed", http.StatusBadRequest))
			return
		}
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "could not parse webhook event", http.StatusBadRequest))
		return
	}

	// Unhandled event types are acknowledged so the PSP stops retrying them.
	if event.Session == nil {
		writeJSONResponse(w, http.StatusOK, map[string]any{"received": true})
		return
	}

	if _, err := h.orders.MaterializeOrder(ctx, completedCommandFrom(event.Session)); err != nil {
		h.writeWebhookError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, map[string]any{"received": true})
}

func (h *WebhookHandlers) writeWebhookError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrOrderInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	default:
		// 5xx keeps the delivery in the PSP retry queue.
		httpx.WriteError(ctx, w, httpx.NewError("order_write_failed", "could not materialize order", http.StatusInternalServerError))
	}
}

func completedCommandFrom(session *payments.CompletedSession) services.CompletedCheckoutCommand {
	cmd := services.CompletedCheckoutCommand{
		SessionID:       session.SessionID,
		UserID:          session.OwnerID,
		CustomerEmail:   session.CustomerEmail,
		CustomerName:    session.CustomerName,
		AmountMinor:     session.AmountTotal,
		Currency:        session.Currency,
		PaymentIntentID: session.PaymentIntentID,
		ShippingName:    session.ShippingName,
	}
	if addr := session.ShippingAddress; addr != nil {
		cmd.ShippingAddress = &services.PostalAddress{
			Name:       session.ShippingName,
			Line1:      addr.Line1,
			Line2:      addr.Line2,
			City:       addr.City,
			State:      addr.State,
			PostalCode: addr.PostalCode,
			Country:    addr.Country,
		}
	}
	return cmd
}
