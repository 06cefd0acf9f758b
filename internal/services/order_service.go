package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	domain "github.com/virtualmegamall/api/internal/domain"
	"github.com/virtualmegamall/api/internal/payments"
	"github.com/virtualmegamall/api/internal/platform/pagination"
	"github.com/virtualmegamall/api/internal/repositories"
)

var (
	errOrderRepositoryRequired = errors.New("order service: order repository is required")
	errOrderClockRequired      = errors.New("order service: clock is required")
)

// OrderEventTypeCreated labels the event published after materialization.
const OrderEventTypeCreated = "order.created"

// ErrOrderInvalidInput indicates the caller supplied invalid input.
var ErrOrderInvalidInput = errors.New("order service: invalid input")

// ErrOrderNotFound indicates the requested order does not exist for the caller.
var ErrOrderNotFound = errors.New("order service: not found")

// ErrOrderUnavailable indicates the order backend cannot fulfil the request.
var ErrOrderUnavailable = errors.New("order service: unavailable")

// ErrOrderWriteFailed indicates the order document could not be persisted.
// Webhook handlers surface it as a retryable failure to the PSP.
var ErrOrderWriteFailed = errors.New("order service: write failed")

// OrderLineItemLister fetches the settled line items for a checkout session.
type OrderLineItemLister interface {
	ListSessionLineItems(ctx context.Context, paymentCtx payments.PaymentContext, sessionID string) ([]payments.SessionLineItem, error)
}

// OrderServiceDeps wires persistence, payments, and eventing for order flows.
type OrderServiceDeps struct {
	Orders      repositories.OrderRepository
	Cart        repositories.CartRepository
	LineItems   OrderLineItemLister
	Publisher   OrderEventPublisher
	Clock       func() time.Time
	IDGenerator func() string
	Logger      func(context.Context, string, map[string]any)
}

type orderService struct {
	orders    repositories.OrderRepository
	cart      repositories.CartRepository
	lineItems OrderLineItemLister
	publisher OrderEventPublisher
	now       func() time.Time
	newID     func() string
	logger    func(context.Context, string, map[string]any)
}

var _ OrderService = (*orderService)(nil)

// NewOrderService constructs an OrderService enforcing dependency validation.
func NewOrderService(deps OrderServiceDeps) (OrderService, error) {
	if deps.Orders == nil {
		return nil, errOrderRepositoryRequired
	}
	if deps.Clock == nil {
		return nil, errOrderClockRequired
	}

	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string { return ulid.Make().String() }
	}

	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &orderService{
		orders:    deps.Orders,
		cart:      deps.Cart,
		lineItems: deps.LineItems,
		publisher: deps.Publisher,
		now:       func() time.Time { return deps.Clock().UTC() },
		newID:     idGen,
		logger:    logger,
	}, nil
}

// MaterializeOrder persists an order for a paid checkout session, clears the
// owner's cart, and announces the order. The document is keyed by session id,
// so redelivered webhooks resolve to the already-written order.
func (s *orderService) MaterializeOrder(ctx context.Context, cmd CompletedCheckoutCommand) (Order, error) {
	sessionID := strings.TrimSpace(cmd.SessionID)
	if sessionID == "" {
		return Order{}, fmt.Errorf("%w: session id is required", ErrOrderInvalidInput)
	}
	userID := strings.TrimSpace(cmd.UserID)

	order := Order{
		ID:              sessionID,
		SessionID:       sessionID,
		UserID:          userID,
		CustomerEmail:   strings.TrimSpace(cmd.CustomerEmail),
		Currency:        strings.ToLower(strings.TrimSpace(cmd.Currency)),
		TotalMinor:      cmd.AmountMinor,
		Status:          domain.OrderStatusPaid,
		PaymentIntentID: strings.TrimSpace(cmd.PaymentIntentID),
		CreatedAt:       s.now(),
	}
	if cmd.ShippingAddress != nil {
		addr := *cmd.ShippingAddress
		if addr.Name == "" {
			addr.Name = strings.TrimSpace(cmd.ShippingName)
		}
		order.ShippingAddress = &addr
	}

	if s.lineItems != nil {
		items, err := s.lineItems.ListSessionLineItems(ctx, payments.PaymentContext{Currency: order.Currency}, sessionID)
		if err != nil {
			// No order exists yet at this point, so the PSP redelivers the
			// event and the retry fetches the full item breakdown.
			s.logger(ctx, "order.line_items_failed", map[string]any{
				"sessionId": sessionID,
				"error":     err.Error(),
			})
			return Order{}, fmt.Errorf("%w: list line items: %v", ErrOrderWriteFailed, err)
		}
		for _, item := range items {
			order.Items = append(order.Items, OrderLineItem{
				Name:        item.Description,
				Quantity:    item.Quantity,
				AmountMinor: item.AmountMinor,
			})
		}
	}

	if err := s.orders.Create(ctx, order); err != nil {
		if isRepoConflict(err) {
			s.logger(ctx, "order.duplicate_delivery", map[string]any{
				"sessionId": sessionID,
			})
			existing, findErr := s.orders.FindBySessionID(ctx, sessionID)
			if findErr != nil {
				return Order{}, s.translateRepoError(findErr)
			}
			return existing, nil
		}
		s.logger(ctx, "order.write_failed", map[string]any{
			"sessionId": sessionID,
			"error":     err.Error(),
		})
		return Order{}, fmt.Errorf("%w: %v", ErrOrderWriteFailed, err)
	}

	s.logger(ctx, "order.created", map[string]any{
		"sessionId":  sessionID,
		"userId":     userID,
		"totalMinor": order.TotalMinor,
	})

	s.clearCart(ctx, userID, sessionID)
	s.publishCreated(ctx, order)

	return order, nil
}

// ListOrders returns one page of the caller's orders newest-first.
func (s *orderService) ListOrders(ctx context.Context, cmd ListOrdersCommand) (OrderPage, error) {
	uid := strings.TrimSpace(cmd.UserID)
	if uid == "" {
		return OrderPage{}, fmt.Errorf("%w: user id is required", ErrOrderInvalidInput)
	}

	limit := cmd.Limit
	if limit <= 0 {
		limit = pagination.DefaultPageSize
	}

	filter := repositories.OrderListFilter{Limit: limit + 1}
	startAfter, err := decodeOrderPageToken(cmd.PageToken)
	if err != nil {
		return OrderPage{}, err
	}
	filter.StartAfterCreatedAt = startAfter

	orders, err := s.orders.ListByOwner(ctx, uid, filter)
	if err != nil {
		return OrderPage{}, s.translateRepoError(err)
	}

	page := OrderPage{Orders: orders}
	if len(orders) > limit {
		page.Orders = orders[:limit]
		token, err := encodeOrderPageToken(page.Orders[limit-1].CreatedAt)
		if err != nil {
			return OrderPage{}, fmt.Errorf("%w: %v", ErrOrderUnavailable, err)
		}
		page.NextPageToken = token
	}
	if page.Orders == nil {
		page.Orders = []Order{}
	}
	return page, nil
}

func encodeOrderPageToken(createdAt time.Time) (string, error) {
	return pagination.EncodeToken(pagination.Cursor{
		StartAfter: []any{createdAt.UTC().Format(time.RFC3339Nano)},
	})
}

func decodeOrderPageToken(token string) (time.Time, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return time.Time{}, nil
	}
	cursor, err := pagination.DecodeToken(token)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %v", ErrOrderInvalidInput, err)
	}
	if len(cursor.StartAfter) != 1 {
		return time.Time{}, fmt.Errorf("%w: malformed page token", ErrOrderInvalidInput)
	}
	raw, ok := cursor.StartAfter[0].(string)
	if !ok {
		return time.Time{}, fmt.Errorf("%w: malformed page token", ErrOrderInvalidInput)
	}
	createdAt, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: malformed page token", ErrOrderInvalidInput)
	}
	return createdAt, nil
}

// GetOrder loads a single order scoped to its owner. Orders belonging to a
// different user read as not found.
func (s *orderService) GetOrder(ctx context.Context, cmd GetOrderCommand) (Order, error) {
	uid := strings.TrimSpace(cmd.UserID)
	if uid == "" {
		return Order{}, fmt.Errorf("%w: user id is required", ErrOrderInvalidInput)
	}
	orderID := strings.TrimSpace(cmd.OrderID)
	if orderID == "" {
		return Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}

	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return Order{}, s.translateRepoError(err)
	}
	if !strings.EqualFold(strings.TrimSpace(order.UserID), uid) {
		return Order{}, ErrOrderNotFound
	}
	return order, nil
}

// clearCart empties the owner's cart after a successful order write. Failures
// are logged and swallowed: the paid order always wins.
func (s *orderService) clearCart(ctx context.Context, userID, sessionID string) {
	if s.cart == nil || userID == "" {
		return
	}
	if err := s.cart.Clear(ctx, userID); err != nil {
		s.logger(ctx, "order.cart_clear_failed", map[string]any{
			"sessionId": sessionID,
			"userId":    userID,
			"error":     err.Error(),
		})
	}
}

// publishCreated announces the order on the event topic. Publishing is
// best-effort and never fails the materialization.
func (s *orderService) publishCreated(ctx context.Context, order Order) {
	if s.publisher == nil {
		return
	}
	message := OrderEventMessage{
		EventID:    s.newID(),
		EventType:  OrderEventTypeCreated,
		OrderID:    order.ID,
		SessionID:  order.SessionID,
		UserID:     order.UserID,
		TotalMinor: order.TotalMinor,
		Currency:   order.Currency,
		OccurredAt: s.now(),
	}
	if _, err := s.publisher.PublishOrderCreated(ctx, message); err != nil {
		s.logger(ctx, "order.event_publish_failed", map[string]any{
			"orderId": order.ID,
			"error":   err.Error(),
		})
	}
}

func (s *orderService) translateRepoError(err error) error {
	if err == nil {
		return nil
	}
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return ErrOrderNotFound
		case repoErr.IsUnavailable():
			return ErrOrderUnavailable
		}
	}
	return ErrOrderUnavailable
}
