package payments

import (
	"context"
	"testing"
	"time"

	"github.com/stripe/stripe-go/v78"
)

type stubSessionAPI struct {
	lastParams     *stripe.CheckoutSessionParams
	lastListParams *stripe.CheckoutSessionListLineItemsParams
	session        *stripe.CheckoutSession
	lineItems      []*stripe.LineItem
	err            error
}

func (s *stubSessionAPI) New(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
	s.lastParams = params
	return s.session, s.err
}

func (s *stubSessionAPI) ListLineItems(params *stripe.CheckoutSessionListLineItemsParams) ([]*stripe.LineItem, error) {
	s.lastListParams = params
	return s.lineItems, s.err
}

func newTestStripeProvider(t *testing.T, api *stubSessionAPI) *StripeProvider {
	t.Helper()
	provider, err := NewStripeProvider(StripeProviderConfig{
		Clients: &stripeClients{sessions: api},
		Clock: func() time.Time {
			return time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
		},
	})
	if err != nil {
		t.Fatalf("new stripe provider: %v", err)
	}
	return provider
}

func TestStripeCreateCheckoutSessionBuildsParams(t *testing.T) {
	api := &stubSessionAPI{
		session: &stripe.CheckoutSession{
			ID:          "cs_test_123",
			URL:         "https://checkout.stripe.com/pay/cs_test_123",
			AmountTotal: 1650000,
			Currency:    stripe.CurrencyPKR,
			ExpiresAt:   time.Date(2024, 6, 1, 12, 30, 0, 0, time.UTC).Unix(),
		},
	}
	provider := newTestStripeProvider(t, api)

	session, err := provider.CreateCheckoutSession(context.Background(), CheckoutSessionRequest{
		OwnerID:           "user-1",
		CustomerEmail:     "buyer@example.com",
		Currency:          "pkr",
		SuccessURL:        "https://mall.example.com/success.html?session_id={CHECKOUT_SESSION_ID}",
		CancelURL:         "https://mall.example.com/cart.html",
		ClientReferenceID: "user-1",
		Metadata: map[string]string{
			"userId":      "user-1",
			"itemCount":   "3",
			"totalAmount": "1650000",
		},
		Items: []CheckoutLineItem{
			{Name: "Leather Jacket", Brand: "Outfitters", ImageURL: "https://img.example.com/jacket.jpg", Quantity: 3, UnitAmount: 550000},
			{Name: "Denim Shirt", Quantity: 0, UnitAmount: 250000},
		},
	})
	if err != nil {
		t.Fatalf("create checkout session: %v", err)
	}

	if session.ID != "cs_test_123" {
		t.Fatalf("unexpected session id %q", session.ID)
	}
	if session.RedirectURL != "https://checkout.stripe.com/pay/cs_test_123" {
		t.Fatalf("unexpected redirect url %q", session.RedirectURL)
	}
	if session.AmountTotal != 1650000 {
		t.Fatalf("unexpected amount total %d", session.AmountTotal)
	}
	if session.ExpiresAt != time.Date(2024, 6, 1, 12, 30, 0, 0, time.UTC) {
		t.Fatalf("unexpected expiry %v", session.ExpiresAt)
	}

	params := api.lastParams
	if params == nil {
		t.Fatal("expected session params to be sent")
	}
	if got := stripe.StringValue(params.Mode); got != string(stripe.CheckoutSessionModePayment) {
		t.Fatalf("unexpected mode %q", got)
	}
	if got := stripe.StringValue(params.CustomerEmail); got != "buyer@example.com" {
		t.Fatalf("unexpected customer email %q", got)
	}
	if got := stripe.StringValue(params.ClientReferenceID); got != "user-1" {
		t.Fatalf("unexpected client reference id %q", got)
	}
	if got := params.Metadata["totalAmount"]; got != "1650000" {
		t.Fatalf("unexpected totalAmount metadata %q", got)
	}
	if len(params.LineItems) != 2 {
		t.Fatalf("expected 2 line items, got %d", len(params.LineItems))
	}

	first := params.LineItems[0]
	if got := stripe.Int64Value(first.Quantity); got != 3 {
		t.Fatalf("unexpected quantity %d", got)
	}
	if got := stripe.Int64Value(first.PriceData.UnitAmount); got != 550000 {
		t.Fatalf("unexpected unit amount %d", got)
	}
	if got := stripe.StringValue(first.PriceData.Currency); got != "pkr" {
		t.Fatalf("unexpected currency %q", got)
	}
	if got := stripe.StringValue(first.PriceData.ProductData.Name); got != "Leather Jacket" {
		t.Fatalf("unexpected product name %q", got)
	}
	if got := stripe.StringValue(first.PriceData.ProductData.Description); got != "Outfitters" {
		t.Fatalf("unexpected product description %q", got)
	}
	if len(first.PriceData.ProductData.Images) != 1 {
		t.Fatalf("expected product image to be forwarded")
	}

	// Zero quantities clamp to one so the session never rejects the cart line.
	second := params.LineItems[1]
	if got := stripe.Int64Value(second.Quantity); got != 1 {
		t.Fatalf("unexpected clamped quantity %d", got)
	}
}

func TestStripeCreateCheckoutSessionRejectsEmptyItems(t *testing.T) {
	provider := newTestStripeProvider(t, &stubSessionAPI{})
	if _, err := provider.CreateCheckoutSession(context.Background(), CheckoutSessionRequest{Currency: "pkr"}); err == nil {
		t.Fatal("expected error for empty line items")
	}
}

func TestStripeListSessionLineItems(t *testing.T) {
	api := &stubSessionAPI{
		lineItems: []*stripe.LineItem{
			{Description: "Leather Jacket", Quantity: 3, AmountTotal: 1650000},
			nil,
			{Description: "Denim Shirt", Quantity: 1, AmountTotal: 250000},
		},
	}
	provider := newTestStripeProvider(t, api)

	items, err := provider.ListSessionLineItems(context.Background(), "cs_test_123")
	if err != nil {
		t.Fatalf("list session line items: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}
	if items[0].Description != "Leather Jacket" || items[0].Quantity != 3 || items[0].AmountMinor != 1650000 {
		t.Fatalf("unexpected first item: %+v", items[0])
	}
	if api.lastListParams == nil || stripe.StringValue(api.lastListParams.Session) != "cs_test_123" {
		t.Fatalf("expected session id to be passed through")
	}
}

func TestStripeListSessionLineItemsRequiresID(t *testing.T) {
	provider := newTestStripeProvider(t, &stubSessionAPI{})
	if _, err := provider.ListSessionLineItems(context.Background(), "  "); err == nil {
		t.Fatal("expected error for blank session id")
	}
}
