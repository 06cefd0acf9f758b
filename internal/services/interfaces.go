package services

import (
	"context"
	"errors"
	"time"

	domain "github.com/virtualmegamall/api/internal/domain"
	"github.com/virtualmegamall/api/internal/repositories"
)

// Type aliases expose domain models to the services package without reversing dependency direction.
type (
	CartLineItem       = domain.CartLineItem
	CartSummary        = domain.CartSummary
	Order              = domain.Order
	OrderLineItem      = domain.OrderLineItem
	OrderStatus        = domain.OrderStatus
	PostalAddress      = domain.PostalAddress
	SystemHealthCheck  = domain.SystemHealthCheck
	SystemHealthReport = domain.SystemHealthReport
)

// CartView is the cart surface returned to callers: the ordered lines plus
// the derived count and total.
type CartView struct {
	Items   []CartLineItem
	Summary CartSummary
}

// AddCartItemCommand adds quantity to a cart line, creating it when absent.
type AddCartItemCommand struct {
	UserID       string
	ProductID    string
	Name         string
	Brand        string
	PriceDisplay string
	ImageURL     string
	Size         string
	Color        string
	Quantity     int64
}

// SetCartQuantityCommand replaces the quantity of an existing cart line.
// Quantities at or below zero remove the line.
type SetCartQuantityCommand struct {
	UserID    string
	ProductID string
	Quantity  int64
}

// CartService manages per-user cart lines and derived totals.
type CartService interface {
	GetCart(ctx context.Context, userID string) (CartView, error)
	AddItem(ctx context.Context, cmd AddCartItemCommand) (CartView, error)
	SetQuantity(ctx context.Context, cmd SetCartQuantityCommand) (CartView, error)
	RemoveItem(ctx context.Context, userID, productID string) (CartView, error)
	ClearCart(ctx context.Context, userID string) error
	WatchCart(ctx context.Context, userID string, fn func(CartView)) (stop func(), err error)
}

// CheckoutItemInput is a display-priced line item submitted for checkout.
type CheckoutItemInput struct {
	ProductID    string
	Name         string
	Brand        string
	PriceDisplay string
	ImageURL     string
	Quantity     int64
}

// CreateCheckoutSessionCommand carries the checkout payload for session creation.
type CreateCheckoutSessionCommand struct {
	UserID        string
	CustomerEmail string
	Items         []CheckoutItemInput
	SuccessURL    string
	CancelURL     string
}

// CheckoutSessionResult is the created PSP session handed back to the client.
type CheckoutSessionResult struct {
	SessionID   string
	URL         string
	AmountMinor int64
	Currency    string
	ItemCount   int64
}

// CheckoutService coordinates price normalization and PSP session creation.
type CheckoutService interface {
	CreateSession(ctx context.Context, cmd CreateCheckoutSessionCommand) (CheckoutSessionResult, error)
}

// CompletedCheckoutCommand carries the verified facts of a paid checkout session.
type CompletedCheckoutCommand struct {
	SessionID       string
	UserID          string
	CustomerEmail   string
	CustomerName    string
	AmountMinor     int64
	Currency        string
	PaymentIntentID string
	ShippingName    string
	ShippingAddress *PostalAddress
}

// ListOrdersCommand bounds an order history read. PageToken resumes a prior
// listing; an empty token starts from the newest order.
type ListOrdersCommand struct {
	UserID    string
	Limit     int
	PageToken string
}

// OrderPage is one page of order history. NextPageToken is empty on the
// final page.
type OrderPage struct {
	Orders        []Order
	NextPageToken string
}

// GetOrderCommand identifies a single order read scoped to its owner.
type GetOrderCommand struct {
	UserID  string
	OrderID string
}

// OrderService materializes orders from completed checkout sessions and
// exposes the order history surface.
type OrderService interface {
	MaterializeOrder(ctx context.Context, cmd CompletedCheckoutCommand) (Order, error)
	ListOrders(ctx context.Context, cmd ListOrdersCommand) (OrderPage, error)
	GetOrder(ctx context.Context, cmd GetOrderCommand) (Order, error)
}

// SystemService surfaces dependency health for readiness probes.
type SystemService interface {
	HealthReport(ctx context.Context) (SystemHealthReport, error)
}

// OrderEventMessage is the payload published when an order is materialized.
// Customer contact details stay out of the message on purpose.
type OrderEventMessage struct {
	EventID    string    `json:"eventId"`
	EventType  string    `json:"eventType"`
	OrderID    string    `json:"orderId"`
	SessionID  string    `json:"sessionId"`
	UserID     string    `json:"userId,omitempty"`
	TotalMinor int64     `json:"totalMinor"`
	Currency   string    `json:"currency"`
	OccurredAt time.Time `json:"occurredAt"`
}

// OrderEventPublisher delivers order lifecycle events to downstream consumers.
type OrderEventPublisher interface {
	PublishOrderCreated(ctx context.Context, message OrderEventMessage) (string, error)
}

func isRepoNotFound(err error) bool {
	var repoErr repositories.RepositoryError
	return errors.As(err, &repoErr) && repoErr.IsNotFound()
}

func isRepoConflict(err error) bool {
	var repoErr repositories.RepositoryError
	return errors.As(err, &repoErr) && repoErr.IsConflict()
}
