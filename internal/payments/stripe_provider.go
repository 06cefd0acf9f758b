package payments

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v78"
	session "github.com/stripe/stripe-go/v78/checkout/session"
	"github.com/stripe/stripe-go/v78/client"

	"github.com/virtualmegamall/api/internal/platform/textutil"
)

// StripeLogger defines the logging contract for Stripe provider operations.
type StripeLogger func(ctx context.Context, event string, fields map[string]any)

type stripeSessionAPI interface {
	New(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
	ListLineItems(params *stripe.CheckoutSessionListLineItemsParams) ([]*stripe.LineItem, error)
}

type stripeClients struct {
	sessions stripeSessionAPI
}

// stripeSessionClient adapts the SDK session client to stripeSessionAPI,
// draining the line-item iterator into a slice.
type stripeSessionClient struct {
	sessions *session.Client
}

func (c stripeSessionClient) New(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
	return c.sessions.New(params)
}

func (c stripeSessionClient) ListLineItems(params *stripe.CheckoutSessionListLineItemsParams) ([]*stripe.LineItem, error) {
	iter := c.sessions.ListLineItems(params)
	var items []*stripe.LineItem
	for iter.Next() {
		items = append(items, iter.LineItem())
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

// StripeProviderConfig configures the StripeProvider.
type StripeProviderConfig struct {
	APIKey    string
	AccountID string
	Backends  *stripe.Backends
	Logger    StripeLogger
	Clock     func() time.Time
	Clients   *stripeClients
}

// StripeProvider implements the Provider interface using Stripe Checkout APIs.
type StripeProvider struct {
	api     stripeClients
	account string
	clock   func() time.Time
	logger  StripeLogger
}

var _ Provider = (*StripeProvider)(nil)

// NewStripeProvider constructs a Stripe Provider using the given configuration.
func NewStripeProvider(cfg StripeProviderConfig) (*StripeProvider, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" && cfg.Clients == nil {
		return nil, errors.New("stripe: api key is required")
	}

	var clients stripeClients
	if cfg.Clients != nil {
		clients = *cfg.Clients
	} else {
		sc := client.New(apiKey, cfg.Backends)
		clients = stripeClients{
			sessions: stripeSessionClient{sessions: sc.CheckoutSessions},
		}
	}

	if clients.sessions == nil {
		return nil, errors.New("stripe: incomplete client configuration")
	}

	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}

	logger := cfg.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &StripeProvider{
		api:     clients,
		account: strings.TrimSpace(cfg.AccountID),
		clock: func() time.Time {
			return clock().UTC()
		},
		logger: logger,
	}, nil
}

// CreateCheckoutSession creates a hosted Stripe Checkout session in payment mode.
func (p *StripeProvider) CreateCheckoutSession(ctx context.Context, req CheckoutSessionRequest) (CheckoutSession, error) {
	if p == nil {
		return CheckoutSession{}, errors.New("stripe: provider is nil")
	}
	if len(req.Items) == 0 {
		return CheckoutSession{}, errors.New("stripe: checkout session requires at least one line item")
	}

	params := &stripe.CheckoutSessionParams{
		Mode:       stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL: stripe.String(req.SuccessURL),
		CancelURL:  stripe.String(req.CancelURL),
	}

	params.Context = ctx
	if key := strings.TrimSpace(req.IdempotencyKey); key != "" {
		params.SetIdempotencyKey(key)
	}
	if p.account != "" {
		params.SetStripeAccount(p.account)
	}
	if email := strings.TrimSpace(req.CustomerEmail); email != "" {
		params.CustomerEmail = stripe.String(email)
	}
	if ref := strings.TrimSpace(req.ClientReferenceID); ref != "" {
		params.ClientReferenceID = stripe.String(ref)
	}
	params.Metadata = textutil.NormalizeStringMap(req.Metadata)

	lineItems := make([]*stripe.CheckoutSessionLineItemParams, 0, len(req.Items))
	for _, item := range req.Items {
		line := &stripe.CheckoutSessionLineItemParams{
			Quantity: stripe.Int64(max64(item.Quantity, 1)),
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:   stripe.String(strings.ToLower(defaultString(item.Currency, req.Currency))),
				UnitAmount: stripe.Int64(item.UnitAmount),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String(item.Name),
				},
			},
		}
		if item.Brand != "" {
			line.PriceData.ProductData.Description = stripe.String(item.Brand)
		}
		if url := strings.TrimSpace(item.ImageURL); url != "" {
			line.PriceData.ProductData.Images = []*string{stripe.String(url)}
		}
		lineItems = append(lineItems, line)
	}
	params.LineItems = lineItems

	sess, err := p.api.sessions.New(params)
	if err != nil {
		return CheckoutSession{}, fmt.Errorf("stripe: create checkout session: %w", err)
	}

	p.logger(ctx, "payments.stripe.session.created", map[string]any{
		"sessionId": sess.ID,
		"currency":  sess.Currency,
		"items":     len(req.Items),
	})

	expiresAt := p.clock().Add(30 * time.Minute)
	if sess.ExpiresAt != 0 {
		expiresAt = time.Unix(sess.ExpiresAt, 0).UTC()
	}

	return CheckoutSession{
		ID:          sess.ID,
		Provider:    "stripe",
		RedirectURL: sess.URL,
		AmountTotal: sess.AmountTotal,
		Currency:    string(sess.Currency),
		ExpiresAt:   expiresAt,
	}, nil
}

// ListSessionLineItems fetches the settled line items for a checkout session.
func (p *StripeProvider) ListSessionLineItems(ctx context.Context, sessionID string) ([]SessionLineItem, error) {
	if p == nil {
		return nil, errors.New("stripe: provider is nil")
	}
	id := strings.TrimSpace(sessionID)
	if id == "" {
		return nil, errors.New("stripe: session id is required")
	}

	params := &stripe.CheckoutSessionListLineItemsParams{
		Session: stripe.String(id),
	}
	params.Context = ctx
	if p.account != "" {
		params.SetStripeAccount(p.account)
	}

	raw, err := p.api.sessions.ListLineItems(params)
	if err != nil {
		return nil, fmt.Errorf("stripe: list session line items: %w", err)
	}

	items := make([]SessionLineItem, 0, len(raw))
	for _, li := range raw {
		if li == nil {
			continue
		}
		items = append(items, SessionLineItem{
			Description: li.Description,
			Quantity:    li.Quantity,
			AmountMinor: li.AmountTotal,
		})
	}
	return items, nil
}

func max64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}

func defaultString(value, fallback string) string {
	if strings.TrimSpace(value) != "" {
		return value
	}
	return fallback
}
