package domain

import "time"

// OrderStatus represents the lifecycle state of a materialized order.
type OrderStatus string

// OrderStatusPaid indicates payment completed and the order document exists.
// Orders are only ever materialized from completed checkout sessions, so no
// other status value exists.
const OrderStatusPaid OrderStatus = "paid"

// CartLineItem is a single product entry in a shopper's cart. The document id
// is derived from the product name, so re-adding the same product increments
// the existing line instead of creating a duplicate.
type CartLineItem struct {
	ProductID    string
	Name         string
	Brand        string
	PriceDisplay string
	ImageURL     string
	Quantity     int64
	Size         string
	Color        string
	AddedAt      time.Time
	UpdatedAt    time.Time
}

// CartSummary aggregates a cart for badges and checkout metadata.
type CartSummary struct {
	Count      int64
	TotalMinor int64
}

// OrderLineItem is the per-product breakdown recorded on a materialized order.
type OrderLineItem struct {
	Name        string
	Quantity    int64
	AmountMinor int64
}

// Order is the durable record written once per completed checkout session.
type Order struct {
	ID              string
	SessionID       string
	UserID          string
	CustomerEmail   string
	Currency        string
	TotalMinor      int64
	Status          OrderStatus
	PaymentIntentID string
	Items           []OrderLineItem
	ShippingAddress *PostalAddress
	CreatedAt       time.Time
}

// PostalAddress carries the shipping details collected by the payment page.
type PostalAddress struct {
	Name       string
	Line1      string
	Line2      string
	City       string
	State      string
	PostalCode string
	Country    string
}
