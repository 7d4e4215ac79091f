package domain

import (
	"strings"
	"time"
)

// OrderStatus enumerates the lifecycle states an order can be in.
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusPaid       OrderStatus = "paid"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

// ParseOrderStatus validates a raw status string against the known set.
func ParseOrderStatus(raw string) (OrderStatus, bool) {
	status := OrderStatus(strings.ToLower(strings.TrimSpace(raw)))
	switch status {
	case OrderStatusPending, OrderStatusPaid, OrderStatusProcessing, OrderStatusShipped, OrderStatusCancelled:
		return status, true
	}
	return "", false
}

// OrderItem is a priced line captured at order creation. Unit prices are
// server-derived; client-submitted prices never reach this struct.
type OrderItem struct {
	ProductID     string            `firestore:"productId" json:"productId"`
	Name          string            `firestore:"name" json:"name"`
	Quantity      int64             `firestore:"quantity" json:"quantity"`
	UnitPrice     int64             `firestore:"unitPrice" json:"unitPrice"`
	Customization map[string]string `firestore:"customization,omitempty" json:"customization,omitempty"`
}

// Total returns the line total in minor units.
func (i OrderItem) Total() int64 {
	return i.UnitPrice * i.Quantity
}

// Address captures the delivery destination for an order.
type Address struct {
	Name      string `firestore:"name" json:"name"`
	Street    string `firestore:"street" json:"street"`
	Apartment string `firestore:"apartment,omitempty" json:"apartment,omitempty"`
	City      string `firestore:"city" json:"city"`
	Postcode  string `firestore:"postcode" json:"postcode"`
	Country   string `firestore:"country" json:"country"`
}

// Order is the durable record of a purchase. The document id doubles as the
// customer-facing order number. Items and totals are immutable after
// creation; status and fulfilment fields change over the order's life.
type Order struct {
	ID              string      `firestore:"-" json:"id"`
	UserID          string      `firestore:"userId,omitempty" json:"userId,omitempty"`
	Email           string      `firestore:"email" json:"email"`
	Items           []OrderItem `firestore:"items" json:"items"`
	Subtotal        int64       `firestore:"amountSubtotal" json:"subtotal"`
	Tax             int64       `firestore:"amountTax" json:"tax"`
	Shipping        int64       `firestore:"amountShipping" json:"shipping"`
	Total           int64       `firestore:"amountTotal" json:"total"`
	Currency        string      `firestore:"currency" json:"currency"`
	Status          OrderStatus `firestore:"status" json:"status"`
	ShippingAddress Address     `firestore:"shippingAddress" json:"shippingAddress"`

	StripeSessionID string `firestore:"stripeSessionId,omitempty" json:"stripeSessionId,omitempty"`

	TrackingNumber    string     `firestore:"trackingNumber,omitempty" json:"trackingNumber,omitempty"`
	Carrier           string     `firestore:"carrier,omitempty" json:"carrier,omitempty"`
	EstimatedDelivery *time.Time `firestore:"estimatedDelivery,omitempty" json:"estimatedDelivery,omitempty"`

	CreatedAt time.Time  `firestore:"createdAt" json:"createdAt"`
	PaidAt    *time.Time `firestore:"paidAt,omitempty" json:"paidAt,omitempty"`
}

// IsGuest reports whether the order was placed without an authenticated account.
func (o Order) IsGuest() bool {
	return strings.TrimSpace(o.UserID) == ""
}
