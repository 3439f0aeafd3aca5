package models

import "time"

// OrderStatus is the lifecycle state of an order. Rejected orders are
// deleted rather than stored with a terminal status.
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "Pending"
	OrderStatusAccepted  OrderStatus = "Accepted"
	OrderStatusCompleted OrderStatus = "Completed"
)

// OrderItem is a single ordered line.
type OrderItem struct {
	ProductID string  `json:"product_id"`
	Title     string  `json:"title"`
	Quantity  int     `json:"quantity"`
	Price     float64 `json:"price"`
	Image     string  `json:"image,omitempty"`
	Subtotal  float64 `json:"subtotal"`
}

// Order is a buyer's order against a single vendor.
type Order struct {
	ID         string      `json:"id"`
	BuyerID    string      `json:"buyer_id"`
	VendorID   string      `json:"vendor_id"`
	Items      []OrderItem `json:"items"`
	TotalPrice float64     `json:"total_price"`
	Status     OrderStatus `json:"status"`
	OrderDate  time.Time   `json:"order_date"`

	// QRURL is the download path of the order's QR image. Derived by the
	// API layer, never persisted.
	QRURL string `json:"qr_url,omitempty"`
}

// SecretStatus tracks whether an order secret has been redeemed by a
// completed fulfillment.
type SecretStatus string

const (
	SecretStatusPending  SecretStatus = "pending"
	SecretStatusRedeemed SecretStatus = "redeemed"
)

// OrderSecret is the single-use secret minted when a vendor accepts an
// order, together with its rendered QR image. One per order, never
// regenerated.
type OrderSecret struct {
	OrderID   string       `json:"order_id"`
	VendorID  string       `json:"vendor_id"`
	SecretKey string       `json:"-"`
	QRImage   []byte       `json:"-"`
	Status    SecretStatus `json:"status"`
	CreatedAt time.Time    `json:"created_at"`
}

// Product carries the slice of the product document this service mutates:
// the stock counter.
type Product struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Stock int    `json:"stock"`
}

// ScanToken is the transient (orderId, secretKey) pair recovered from a
// scanned QR payload.
type ScanToken struct {
	OrderID   string
	SecretKey string
}
