package services

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	domain "github.com/virtualmegamall/api/internal/domain"
	"github.com/virtualmegamall/api/internal/payments"
	"github.com/virtualmegamall/api/internal/repositories"
)

type memoryOrderRepo struct {
	orders    map[string]domain.Order
	createErr error
	findErr   error
}

func newMemoryOrderRepo() *memoryOrderRepo {
	return &memoryOrderRepo{orders: map[string]domain.Order{}}
}

func (r *memoryOrderRepo) Create(ctx context.Context, order domain.Order) error {
	if r.createErr != nil {
		return r.createErr
	}
	id := order.ID
	if id == "" {
		id = order.SessionID
	}
	if _, ok := r.orders[id]; ok {
		return &stubRepoError{conflict: true}
	}
	r.orders[id] = order
	return nil
}

func (r *memoryOrderRepo) FindBySessionID(ctx context.Context, sessionID string) (domain.Order, error) {
	return r.FindByID(ctx, sessionID)
}

func (r *memoryOrderRepo) FindByID(ctx context.Context, orderID string) (domain.Order, error) {
	if r.findErr != nil {
		return domain.Order{}, r.findErr
	}
	if order, ok := r.orders[orderID]; ok {
		return order, nil
	}
	return domain.Order{}, &stubRepoError{notFound: true}
}

func (r *memoryOrderRepo) ListByOwner(ctx context.Context, userID string, filter repositories.OrderListFilter) ([]domain.Order, error) {
	var out []domain.Order
	for _, order := range r.orders {
		if order.UserID != userID {
			continue
		}
		if !filter.StartAfterCreatedAt.IsZero() && !order.CreatedAt.Before(filter.StartAfterCreatedAt) {
			continue
		}
		out = append(out, order)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

var _ repositories.OrderRepository = (*memoryOrderRepo)(nil)

type stubLineItemLister struct {
	items []payments.SessionLineItem
	err   error
	calls int
}

func (s *stubLineItemLister) ListSessionLineItems(ctx context.Context, paymentCtx payments.PaymentContext, sessionID string) ([]payments.SessionLineItem, error) {
	s.calls++
	return s.items, s.err
}

type stubPublisher struct {
	messages []OrderEventMessage
	err      error
}

func (p *stubPublisher) PublishOrderCreated(ctx context.Context, message OrderEventMessage) (string, error) {
	if p.err != nil {
		return "", p.err
	}
	p.messages = append(p.messages, message)
	return "msg-1", nil
}

type orderServiceFixture struct {
	orders    *memoryOrderRepo
	cart      *memoryCartRepo
	lineItems *stubLineItemLister
	publisher *stubPublisher
	service   OrderService
}

func newOrderServiceFixture(t *testing.T) *orderServiceFixture {
	t.Helper()
	f := &orderServiceFixture{
		orders:    newMemoryOrderRepo(),
		cart:      newMemoryCartRepo(),
		lineItems: &stubLineItemLister{},
		publisher: &stubPublisher{},
	}
	svc, err := NewOrderService(OrderServiceDeps{
		Orders:      f.orders,
		Cart:        f.cart,
		LineItems:   f.lineItems,
		Publisher:   f.publisher,
		Clock:       fixedClock,
		IDGenerator: func() string { return "evt_fixed" },
	})
	if err != nil {
		t.Fatalf("new order service: %v", err)
	}
	f.service = svc
	return f
}

func completedCheckout() CompletedCheckoutCommand {
	return CompletedCheckoutCommand{
		SessionID:       "cs_test_123",
		UserID:          "user-1",
		CustomerEmail:   "buyer@example.com",
		AmountMinor:     1650000,
		Currency:        "PKR",
		PaymentIntentID: "pi_123",
		ShippingAddress: &domain.PostalAddress{Line1: "12 Mall Road", City: "Lahore", Country: "PK"},
	}
}

func TestMaterializeOrderWritesAndClearsCart(t *testing.T) {
	ctx := context.Background()
	f := newOrderServiceFixture(t)
	f.cart.lines["user-1"] = map[string]domain.CartLineItem{
		"prod-1": {ProductID: "prod-1", Name: "Denim Shirt", PriceDisplay: "Rs. 2,500", Quantity: 2},
	}
	f.lineItems.items = []payments.SessionLineItem{
		{Description: "Leather Jacket", Quantity: 3, AmountMinor: 1650000},
	}

	order, err := f.service.MaterializeOrder(ctx, completedCheckout())
	if err != nil {
		t.Fatalf("materialize order: %v", err)
	}

	if order.ID != "cs_test_123" || order.SessionID != "cs_test_123" {
		t.Fatalf("unexpected order ids: %+v", order)
	}
	if order.Status != domain.OrderStatusPaid {
		t.Fatalf("expected status paid, got %q", order.Status)
	}
	if order.Currency != "pkr" {
		t.Fatalf("expected lowercased currency, got %q", order.Currency)
	}
	if len(order.Items) != 1 || order.Items[0].Name != "Leather Jacket" {
		t.Fatalf("unexpected items: %+v", order.Items)
	}
	if order.ShippingAddress == nil || order.ShippingAddress.City != "Lahore" {
		t.Fatalf("unexpected shipping address: %+v", order.ShippingAddress)
	}
	if len(f.cart.cleared) != 1 || f.cart.cleared[0] != "user-1" {
		t.Fatalf("expected cart to be cleared for user-1, got %v", f.cart.cleared)
	}
	if len(f.publisher.messages) != 1 {
		t.Fatalf("expected 1 published event, got %d", len(f.publisher.messages))
	}
	msg := f.publisher.messages[0]
	if msg.EventType != OrderEventTypeCreated || msg.OrderID != "cs_test_123" || msg.EventID != "evt_fixed" {
		t.Fatalf("unexpected event message: %+v", msg)
	}
}

func TestMaterializeOrderIdempotentOnRedelivery(t *testing.T) {
	ctx := context.Background()
	f := newOrderServiceFixture(t)

	first, err := f.service.MaterializeOrder(ctx, completedCheckout())
	if err != nil {
		t.Fatalf("first delivery: %v", err)
	}
	second, err := f.service.MaterializeOrder(ctx, completedCheckout())
	if err != nil {
		t.Fatalf("redelivery: %v", err)
	}

	if second.ID != first.ID {
		t.Fatalf("expected same order on redelivery, got %q and %q", first.ID, second.ID)
	}
	if len(f.orders.orders) != 1 {
		t.Fatalf("expected exactly one stored order, got %d", len(f.orders.orders))
	}
	if len(f.publisher.messages) != 1 {
		t.Fatalf("redelivery must not publish a second event, got %d", len(f.publisher.messages))
	}
}

func TestMaterializeOrderSurvivesCartClearFailure(t *testing.T) {
	ctx := context.Background()
	f := newOrderServiceFixture(t)
	f.cart.clearErr = &stubRepoError{unavailable: true}

	if _, err := f.service.MaterializeOrder(ctx, completedCheckout()); err != nil {
		t.Fatalf("materialize order should swallow cart clear failure, got %v", err)
	}
	if len(f.orders.orders) != 1 {
		t.Fatalf("expected stored order despite cart failure")
	}
}

func TestMaterializeOrderRetriesLineItemFailure(t *testing.T) {
	ctx := context.Background()
	f := newOrderServiceFixture(t)
	f.lineItems.err = errors.New("stripe timeout")

	_, err := f.service.MaterializeOrder(ctx, completedCheckout())
	if !errors.Is(err, ErrOrderWriteFailed) {
		t.Fatalf("expected ErrOrderWriteFailed, got %v", err)
	}
	if len(f.orders.orders) != 0 {
		t.Fatalf("no order may be written before the breakdown is known, got %d", len(f.orders.orders))
	}
	if len(f.publisher.messages) != 0 {
		t.Fatalf("failed delivery must not publish events")
	}

	// The PSP redelivers; the recovered fetch materializes the full order.
	f.lineItems.err = nil
	f.lineItems.items = []payments.SessionLineItem{
		{Description: "Leather Jacket", Quantity: 3, AmountMinor: 1650000},
	}
	order, err := f.service.MaterializeOrder(ctx, completedCheckout())
	if err != nil {
		t.Fatalf("redelivery: %v", err)
	}
	if len(order.Items) != 1 || order.Items[0].Name != "Leather Jacket" {
		t.Fatalf("expected item breakdown on redelivery, got %+v", order.Items)
	}
	if len(f.orders.orders) != 1 {
		t.Fatalf("expected exactly one stored order, got %d", len(f.orders.orders))
	}
}

func TestMaterializeOrderSurvivesPublishFailure(t *testing.T) {
	ctx := context.Background()
	f := newOrderServiceFixture(t)
	f.publisher.err = errors.New("topic gone")

	if _, err := f.service.MaterializeOrder(ctx, completedCheckout()); err != nil {
		t.Fatalf("materialize order should swallow publish failure, got %v", err)
	}
}

func TestMaterializeOrderWriteFailure(t *testing.T) {
	ctx := context.Background()
	f := newOrderServiceFixture(t)
	f.orders.createErr = &stubRepoError{unavailable: true}

	_, err := f.service.MaterializeOrder(ctx, completedCheckout())
	if !errors.Is(err, ErrOrderWriteFailed) {
		t.Fatalf("expected ErrOrderWriteFailed, got %v", err)
	}
	if len(f.publisher.messages) != 0 {
		t.Fatalf("failed write must not publish events")
	}
}

func TestMaterializeOrderRequiresSessionID(t *testing.T) {
	ctx := context.Background()
	f := newOrderServiceFixture(t)

	cmd := completedCheckout()
	cmd.SessionID = "  "
	if _, err := f.service.MaterializeOrder(ctx, cmd); !errors.Is(err, ErrOrderInvalidInput) {
		t.Fatalf("expected ErrOrderInvalidInput, got %v", err)
	}
}

func TestGetOrderScopedToOwner(t *testing.T) {
	ctx := context.Background()
	f := newOrderServiceFixture(t)
	f.orders.orders["cs_test_123"] = domain.Order{ID: "cs_test_123", UserID: "user-1"}

	order, err := f.service.GetOrder(ctx, GetOrderCommand{UserID: "user-1", OrderID: "cs_test_123"})
	if err != nil {
		t.Fatalf("get order: %v", err)
	}
	if order.ID != "cs_test_123" {
		t.Fatalf("unexpected order: %+v", order)
	}

	// Another user's order reads as not found.
	if _, err := f.service.GetOrder(ctx, GetOrderCommand{UserID: "user-2", OrderID: "cs_test_123"}); !errors.Is(err, ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound for foreign order, got %v", err)
	}
}

func TestListOrdersReturnsEmptySlice(t *testing.T) {
	ctx := context.Background()
	f := newOrderServiceFixture(t)

	page, err := f.service.ListOrders(ctx, ListOrdersCommand{UserID: "user-1"})
	if err != nil {
		t.Fatalf("list orders: %v", err)
	}
	if page.Orders == nil || len(page.Orders) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v", page.Orders)
	}
	if page.NextPageToken != "" {
		t.Fatalf("expected no continuation token, got %q", page.NextPageToken)
	}
}

func TestListOrdersAppliesLimit(t *testing.T) {
	ctx := context.Background()
	f := newOrderServiceFixture(t)
	f.orders.orders["a"] = domain.Order{ID: "a", UserID: "user-1", CreatedAt: fixedClock()}
	f.orders.orders["b"] = domain.Order{ID: "b", UserID: "user-1", CreatedAt: fixedClock().Add(time.Minute)}

	page, err := f.service.ListOrders(ctx, ListOrdersCommand{UserID: "user-1", Limit: 1})
	if err != nil {
		t.Fatalf("list orders: %v", err)
	}
	if len(page.Orders) != 1 {
		t.Fatalf("expected 1 order, got %d", len(page.Orders))
	}
	if page.Orders[0].ID != "b" {
		t.Fatalf("expected newest order first, got %q", page.Orders[0].ID)
	}
	if page.NextPageToken == "" {
		t.Fatal("expected continuation token when more orders remain")
	}
}

func TestListOrdersPaginatesWithToken(t *testing.T) {
	ctx := context.Background()
	f := newOrderServiceFixture(t)
	f.orders.orders["a"] = domain.Order{ID: "a", UserID: "user-1", CreatedAt: fixedClock()}
	f.orders.orders["b"] = domain.Order{ID: "b", UserID: "user-1", CreatedAt: fixedClock().Add(time.Minute)}
	f.orders.orders["c"] = domain.Order{ID: "c", UserID: "user-1", CreatedAt: fixedClock().Add(2 * time.Minute)}

	first, err := f.service.ListOrders(ctx, ListOrdersCommand{UserID: "user-1", Limit: 2})
	if err != nil {
		t.Fatalf("first page: %v", err)
	}
	if len(first.Orders) != 2 || first.Orders[0].ID != "c" || first.Orders[1].ID != "b" {
		t.Fatalf("unexpected first page: %+v", first.Orders)
	}
	if first.NextPageToken == "" {
		t.Fatal("expected continuation token on first page")
	}

	second, err := f.service.ListOrders(ctx, ListOrdersCommand{
		UserID:    "user-1",
		Limit:     2,
		PageToken: first.NextPageToken,
	})
	if err != nil {
		t.Fatalf("second page: %v", err)
	}
	if len(second.Orders) != 1 || second.Orders[0].ID != "a" {
		t.Fatalf("unexpected second page: %+v", second.Orders)
	}
	if second.NextPageToken != "" {
		t.Fatalf("expected final page, got token %q", second.NextPageToken)
	}
}

func TestListOrdersRejectsMalformedPageToken(t *testing.T) {
	ctx := context.Background()
	f := newOrderServiceFixture(t)

	_, err := f.service.ListOrders(ctx, ListOrdersCommand{UserID: "user-1", PageToken: "%%%not-a-token"})
	if !errors.Is(err, ErrOrderInvalidInput) {
		t.Fatalf("expected ErrOrderInvalidInput, got %v", err)
	}
}
