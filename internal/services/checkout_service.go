package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/virtualmegamall/api/internal/payments"
	"github.com/virtualmegamall/api/internal/pricing"
)

var (
	errCheckoutProviderRequired = errors.New("checkout service: payment provider is required")
	errCheckoutClockRequired    = errors.New("checkout service: clock is required")
)

// ErrCheckoutInvalidInput indicates the checkout payload is malformed.
var ErrCheckoutInvalidInput = errors.New("checkout service: invalid input")

// ErrCheckoutEmptyCart indicates a session was requested without line items.
var ErrCheckoutEmptyCart = errors.New("checkout service: cart is empty")

// ErrCheckoutPaymentFailed indicates the PSP rejected or failed session creation.
var ErrCheckoutPaymentFailed = errors.New("checkout service: payment session failed")

// CheckoutPaymentProvider is the slice of the payments surface the checkout flow needs.
type CheckoutPaymentProvider interface {
	CreateCheckoutSession(ctx context.Context, paymentCtx payments.PaymentContext, req payments.CheckoutSessionRequest) (payments.CheckoutSession, error)
}

// CheckoutServiceDeps wires payment, policy, and redirect configuration.
type CheckoutServiceDeps struct {
	Payments          CheckoutPaymentProvider
	Clock             func() time.Time
	Currency          string
	DefaultSuccessURL string
	DefaultCancelURL  string
	Logger            func(context.Context, string, map[string]any)
}

type checkoutService struct {
	payments   CheckoutPaymentProvider
	now        func() time.Time
	currency   string
	successURL string
	cancelURL  string
	logger     func(context.Context, string, map[string]any)
}

var _ CheckoutService = (*checkoutService)(nil)

// NewCheckoutService constructs a CheckoutService enforcing dependency validation.
func NewCheckoutService(deps CheckoutServiceDeps) (CheckoutService, error) {
	if deps.Payments == nil {
		return nil, errCheckoutProviderRequired
	}
	if deps.Clock == nil {
		return nil, errCheckoutClockRequired
	}

	currency := strings.ToLower(strings.TrimSpace(deps.Currency))
	if currency == "" {
		currency = "pkr"
	}

	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &checkoutService{
		payments:   deps.Payments,
		now:        func() time.Time { return deps.Clock().UTC() },
		currency:   currency,
		successURL: strings.TrimSpace(deps.DefaultSuccessURL),
		cancelURL:  strings.TrimSpace(deps.DefaultCancelURL),
		logger:     logger,
	}, nil
}

// CreateSession normalizes the submitted display prices and opens a hosted
// payment session for the whole cart.
func (s *checkoutService) CreateSession(ctx context.Context, cmd CreateCheckoutSessionCommand) (CheckoutSessionResult, error) {
	if len(cmd.Items) == 0 {
		return CheckoutSessionResult{}, ErrCheckoutEmptyCart
	}

	userID := strings.TrimSpace(cmd.UserID)

	var (
		lineItems  []payments.CheckoutLineItem
		itemCount  int64
		totalMinor int64
	)
	for i, item := range cmd.Items {
		name := strings.TrimSpace(item.Name)
		if name == "" {
			return CheckoutSessionResult{}, fmt.Errorf("%w: item %d has no name", ErrCheckoutInvalidInput, i)
		}

		quantity := item.Quantity
		if quantity <= 0 {
			quantity = 1
		}

		unitAmount, err := pricing.NormalizeDisplayPrice(item.PriceDisplay)
		if err != nil {
			return CheckoutSessionResult{}, fmt.Errorf("%w: item %q has unparseable price %q", ErrCheckoutInvalidInput, name, item.PriceDisplay)
		}

		lineItems = append(lineItems, payments.CheckoutLineItem{
			Name:       name,
			Brand:      strings.TrimSpace(item.Brand),
			ImageURL:   strings.TrimSpace(item.ImageURL),
			Quantity:   quantity,
			UnitAmount: unitAmount,
			Currency:   s.currency,
		})
		itemCount += quantity
		totalMinor += unitAmount * quantity
	}

	successURL := strings.TrimSpace(cmd.SuccessURL)
	if successURL == "" {
		successURL = s.successURL
	}
	cancelURL := strings.TrimSpace(cmd.CancelURL)
	if cancelURL == "" {
		cancelURL = s.cancelURL
	}
	if successURL == "" || cancelURL == "" {
		return CheckoutSessionResult{}, fmt.Errorf("%w: redirect urls are required", ErrCheckoutInvalidInput)
	}

	req := payments.CheckoutSessionRequest{
		OwnerID:           userID,
		CustomerEmail:     strings.TrimSpace(cmd.CustomerEmail),
		Currency:          s.currency,
		SuccessURL:        successURL,
		CancelURL:         cancelURL,
		ClientReferenceID: userID,
		Metadata: map[string]string{
			"itemCount":   strconv.FormatInt(itemCount, 10),
			"totalAmount": strconv.FormatInt(totalMinor, 10),
		},
		Items: lineItems,
	}
	if userID != "" {
		req.Metadata["userId"] = userID
	}

	session, err := s.payments.CreateCheckoutSession(ctx, payments.PaymentContext{Currency: s.currency}, req)
	if err != nil {
		s.logger(ctx, "checkout.session_failed", map[string]any{
			"userId": userID,
			"error":  err.Error(),
		})
		return CheckoutSessionResult{}, fmt.Errorf("%w: %v", ErrCheckoutPaymentFailed, err)
	}

	s.logger(ctx, "checkout.session_created", map[string]any{
		"userId":     userID,
		"sessionId":  session.ID,
		"itemCount":  itemCount,
		"totalMinor": totalMinor,
	})

	amount := session.AmountTotal
	if amount == 0 {
		amount = totalMinor
	}
	currency := strings.ToLower(strings.TrimSpace(session.Currency))
	if currency == "" {
		currency = s.currency
	}

	return CheckoutSessionResult{
		SessionID:   session.ID,
		URL:         session.RedirectURL,
		AmountMinor: amount,
		Currency:    currency,
		ItemCount:   itemCount,
	}, nil
}
