package payments

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/webhook"

	"github.com/virtualmegamall/api/internal/platform/textutil"
)

// EventCheckoutSessionCompleted is the event type that triggers order materialization.
const EventCheckoutSessionCompleted = "checkout.session.completed"

// StripeWebhookVerifier authenticates Stripe webhook deliveries against the
// endpoint signing secret and extracts completed-session facts.
type StripeWebhookVerifier struct {
	secret string
}

var _ WebhookVerifier = (*StripeWebhookVerifier)(nil)

// NewStripeWebhookVerifier constructs a verifier for the given signing secret.
func NewStripeWebhookVerifier(secret string) (*StripeWebhookVerifier, error) {
	trimmed := strings.TrimSpace(secret)
	if trimmed == "" {
		return nil, errors.New("stripe: webhook signing secret is required")
	}
	return &StripeWebhookVerifier{secret: trimmed}, nil
}

// VerifyEvent checks the Stripe-Signature header against the raw payload. Any
// verification failure maps to ErrInvalidSignature so handlers can reject the
// delivery without acting on it.
func (v *StripeWebhookVerifier) VerifyEvent(payload []byte, signature string) (WebhookEvent, error) {
	if v == nil {
		return WebhookEvent{}, errors.New("stripe: verifier is nil")
	}

	event, err := webhook.ConstructEvent(payload, signature, v.secret)
	if err != nil {
		return WebhookEvent{}, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	result := WebhookEvent{
		ID:   event.ID,
		Type: string(event.Type),
	}
	if result.Type != EventCheckoutSessionCompleted {
		return result, nil
	}

	var sess stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
		return WebhookEvent{}, fmt.Errorf("stripe: decode checkout session: %w", err)
	}

	completed := completedSessionFrom(&sess)
	result.Session = &completed
	return result, nil
}

func completedSessionFrom(sess *stripe.CheckoutSession) CompletedSession {
	completed := CompletedSession{
		SessionID:   sess.ID,
		AmountTotal: sess.AmountTotal,
		Currency:    string(sess.Currency),
	}

	completed.Metadata = textutil.NormalizeStringMap(sess.Metadata)

	completed.OwnerID = strings.TrimSpace(completed.Metadata["userId"])
	if completed.OwnerID == "" {
		completed.OwnerID = strings.TrimSpace(sess.ClientReferenceID)
	}

	completed.CustomerEmail = strings.TrimSpace(sess.CustomerEmail)
	if details := sess.CustomerDetails; details != nil {
		if completed.CustomerEmail == "" {
			completed.CustomerEmail = strings.TrimSpace(details.Email)
		}
		completed.CustomerName = strings.TrimSpace(details.Name)
	}

	if sess.PaymentIntent != nil {
		completed.PaymentIntentID = sess.PaymentIntent.ID
	}

	if shipping := sess.ShippingDetails; shipping != nil {
		completed.ShippingName = strings.TrimSpace(shipping.Name)
		completed.ShippingAddress = addressFrom(shipping.Address)
	}
	if completed.ShippingAddress == nil && sess.CustomerDetails != nil {
		completed.ShippingAddress = addressFrom(sess.CustomerDetails.Address)
	}

	return completed
}

func addressFrom(addr *stripe.Address) *Address {
	if addr == nil {
		return nil
	}
	out := &Address{
		Line1:      addr.Line1,
		Line2:      addr.Line2,
		City:       addr.City,
		State:      addr.State,
		PostalCode: addr.PostalCode,
		Country:    addr.Country,
	}
	if (Address{}) == *out {
		return nil
	}
	return out
}
