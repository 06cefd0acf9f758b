package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	"cloud.google.com/go/firestore"

	domain "github.com/virtualmegamall/api/internal/domain"
	pfirestore "github.com/virtualmegamall/api/internal/platform/firestore"
	"github.com/virtualmegamall/api/internal/repositories"
)

const (
	ordersCollection = "orders"
)

// OrderRepository persists materialized orders within Firestore. Documents are
// keyed by checkout session id, which is what makes order creation idempotent
// under webhook redelivery.
type OrderRepository struct {
	base *pfirestore.BaseRepository[orderDocument]
}

var _ repositories.OrderRepository = (*OrderRepository)(nil)

// NewOrderRepository constructs a Firestore-backed order repository.
func NewOrderRepository(provider *pfirestore.Provider) (*OrderRepository, error) {
	if provider == nil {
		return nil, errors.New("order repository requires firestore provider")
	}
	base := pfirestore.NewBaseRepository[orderDocument](provider, ordersCollection, nil, nil)
	return &OrderRepository{base: base}, nil
}

type orderDocument struct {
	SessionID       string              `firestore:"sessionId"`
	UserID          string              `firestore:"userId"`
	CustomerEmail   string              `firestore:"customerEmail,omitempty"`
	Currency        string              `firestore:"currency"`
	TotalMinor      int64               `firestore:"totalMinor"`
	Status          string              `firestore:"status"`
	PaymentIntentID string              `firestore:"paymentIntent,omitempty"`
	Items           []orderItemDocument `firestore:"items,omitempty"`
	Shipping        *orderShippingDoc   `firestore:"shippingDetails,omitempty"`
	CreatedAt       time.Time           `firestore:"createdAt"`
}

type orderItemDocument struct {
	Name        string `firestore:"name"`
	Quantity    int64  `firestore:"quantity"`
	AmountMinor int64  `firestore:"amountMinor"`
}

type orderShippingDoc struct {
	Name       string `firestore:"name,omitempty"`
	Line1      string `firestore:"line1,omitempty"`
	Line2      string `firestore:"line2,omitempty"`
	City       string `firestore:"city,omitempty"`
	State      string `firestore:"state,omitempty"`
	PostalCode string `firestore:"postalCode,omitempty"`
	Country    string `firestore:"country,omitempty"`
}

// Create writes the order document keyed by session id. A second create for
// the same session surfaces as a conflict RepositoryError.
func (r *OrderRepository) Create(ctx context.Context, order domain.Order) error {
	if r == nil || r.base == nil {
		return errors.New("order repository not initialised")
	}
	id := strings.TrimSpace(order.ID)
	if id == "" {
		id = strings.TrimSpace(order.SessionID)
	}
	if id == "" {
		return errors.New("order repository: order id is required")
	}

	_, err := r.base.Create(ctx, id, encodeOrder(order))
	return err
}

// FindBySessionID loads the order materialized for the given checkout session.
func (r *OrderRepository) FindBySessionID(ctx context.Context, sessionID string) (domain.Order, error) {
	// The document id is the session id.
	return r.FindByID(ctx, sessionID)
}

// FindByID loads an order by document id.
func (r *OrderRepository) FindByID(ctx context.Context, orderID string) (domain.Order, error) {
	if r == nil || r.base == nil {
		return domain.Order{}, errors.New("order repository not initialised")
	}
	id := strings.TrimSpace(orderID)
	if id == "" {
		return domain.Order{}, errors.New("order repository: order id is required")
	}

	doc, err := r.base.Get(ctx, id)
	if err != nil {
		return domain.Order{}, err
	}
	return decodeOrder(doc.ID, doc.Data), nil
}

// ListByOwner returns the user's orders newest-first.
func (r *OrderRepository) ListByOwner(ctx context.Context, userID string, filter repositories.OrderListFilter) ([]domain.Order, error) {
	if r == nil || r.base == nil {
		return nil, errors.New("order repository not initialised")
	}
	uid := strings.TrimSpace(userID)
	if uid == "" {
		return nil, errors.New("order repository: user id is required")
	}

	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		q = q.Where("userId", "==", uid).OrderBy("createdAt", firestore.Desc)
		if !filter.StartAfterCreatedAt.IsZero() {
			q = q.StartAfter(filter.StartAfterCreatedAt.UTC())
		}
		if filter.Limit > 0 {
			q = q.Limit(filter.Limit)
		}
		return q
	})
	if err != nil {
		return nil, err
	}

	orders := make([]domain.Order, 0, len(docs))
	for _, doc := range docs {
		orders = append(orders, decodeOrder(doc.ID, doc.Data))
	}
	return orders, nil
}

func encodeOrder(order domain.Order) orderDocument {
	doc := orderDocument{
		SessionID:       strings.TrimSpace(order.SessionID),
		UserID:          strings.TrimSpace(order.UserID),
		CustomerEmail:   strings.TrimSpace(order.CustomerEmail),
		Currency:        strings.ToLower(strings.TrimSpace(order.Currency)),
		TotalMinor:      order.TotalMinor,
		Status:          string(order.Status),
		PaymentIntentID: strings.TrimSpace(order.PaymentIntentID),
		CreatedAt:       order.CreatedAt.UTC(),
	}
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now().UTC()
	}
	for _, item := range order.Items {
		doc.Items = append(doc.Items, orderItemDocument{
			Name:        item.Name,
			Quantity:    item.Quantity,
			AmountMinor: item.AmountMinor,
		})
	}
	if addr := order.ShippingAddress; addr != nil {
		doc.Shipping = &orderShippingDoc{
			Name:       addr.Name,
			Line1:      addr.Line1,
			Line2:      addr.Line2,
			City:       addr.City,
			State:      addr.State,
			PostalCode: addr.PostalCode,
			Country:    addr.Country,
		}
	}
	return doc
}

func decodeOrder(id string, doc orderDocument) domain.Order {
	order := domain.Order{
		ID:              id,
		SessionID:       doc.SessionID,
		UserID:          doc.UserID,
		CustomerEmail:   doc.CustomerEmail,
		Currency:        doc.Currency,
		TotalMinor:      doc.TotalMinor,
		Status:          domain.OrderStatus(doc.Status),
		PaymentIntentID: doc.PaymentIntentID,
		CreatedAt:       doc.CreatedAt,
	}
	if order.SessionID == "" {
		order.SessionID = id
	}
	for _, item := range doc.Items {
		order.Items = append(order.Items, domain.OrderLineItem{
			Name:        item.Name,
			Quantity:    item.Quantity,
			AmountMinor: item.AmountMinor,
		})
	}
	if doc.Shipping != nil {
		order.ShippingAddress = &domain.PostalAddress{
			Name:       doc.Shipping.Name,
			Line1:      doc.Shipping.Line1,
			Line2:      doc.Shipping.Line2,
			City:       doc.Shipping.City,
			State:      doc.Shipping.State,
			PostalCode: doc.Shipping.PostalCode,
			Country:    doc.Shipping.Country,
		}
	}
	return order
}
