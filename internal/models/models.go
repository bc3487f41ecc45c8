package models

import (
	"time"

	"github.com/shopspring/decimal"
)

func init() {
	// Money goes over the wire as a JSON number, not a quoted string.
	decimal.MarshalJSONWithoutQuotes = true
}

// Product represents a product in the catalog
type Product struct {
	ID          int64           `db:"id" json:"id"`
	Name        string          `db:"name" json:"name"`
	Description *string         `db:"description" json:"description,omitempty"`
	Price       decimal.Decimal `db:"price" json:"price"`
	Stock       int             `db:"stock" json:"stock"`
	SKU         *string         `db:"sku" json:"sku,omitempty"`
	Category    *string         `db:"category" json:"category,omitempty"`
	ImageURL    *string         `db:"image_url" json:"imageUrl,omitempty"`
	IsActive    bool            `db:"is_active" json:"isActive"`
	CreatedAt   time.Time       `db:"created_at" json:"createdAt"`
	UpdatedAt   time.Time       `db:"updated_at" json:"updatedAt"`
	DeletedAt   *time.Time      `db:"deleted_at" json:"deletedAt,omitempty"`
}

// Order represents a customer order header
type Order struct {
	ID             int64           `db:"id" json:"id"`
	CustomerName   string          `db:"customer_name" json:"customerName"`
	CustomerEmail  string          `db:"customer_email" json:"customerEmail"`
	Status         OrderStatus     `db:"status" json:"status"`
	TotalAmount    decimal.Decimal `db:"total_amount" json:"totalAmount"`
	Notes          *string         `db:"notes" json:"notes,omitempty"`
	IsActive       bool            `db:"is_active" json:"isActive"`
	IdempotencyKey *string         `db:"idempotency_key" json:"-"`
	CreatedAt      time.Time       `db:"created_at" json:"createdAt"`
	UpdatedAt      time.Time       `db:"updated_at" json:"updatedAt"`
}

// OrderItem is a line of an order. PriceAtOrder is the product price captured
// when the order was placed.
type OrderItem struct {
	ID           int64           `db:"id" json:"id"`
	OrderID      int64           `db:"order_id" json:"orderId"`
	ProductID    int64           `db:"product_id" json:"productId"`
	Quantity     int             `db:"quantity" json:"quantity"`
	PriceAtOrder decimal.Decimal `db:"price_at_order" json:"priceAtOrder"`
	Subtotal     decimal.Decimal `db:"subtotal" json:"subtotal"`
	CreatedAt    time.Time       `db:"created_at" json:"-"`
}

// OrderItemDetail is an order item joined with the referenced product's name
type OrderItemDetail struct {
	ID           int64           `db:"id" json:"id"`
	ProductID    int64           `db:"product_id" json:"productId"`
	ProductName  string          `db:"product_name" json:"productName"`
	Quantity     int             `db:"quantity" json:"quantity"`
	PriceAtOrder decimal.Decimal `db:"price_at_order" json:"priceAtOrder"`
	Subtotal     decimal.Decimal `db:"subtotal" json:"subtotal"`
}

// OrderDetail is the full order view returned by lookups and mutations
type OrderDetail struct {
	ID            int64             `json:"id"`
	CustomerName  string            `json:"customerName"`
	CustomerEmail string            `json:"customerEmail"`
	Status        OrderStatus       `json:"status"`
	TotalAmount   decimal.Decimal   `json:"totalAmount"`
	Notes         *string           `json:"notes,omitempty"`
	IsActive      bool              `json:"isActive"`
	Items         []OrderItemDetail `json:"items"`
	ItemCount     int               `json:"itemCount"`
	CreatedAt     time.Time         `json:"createdAt"`
	UpdatedAt     time.Time         `json:"updatedAt"`
}

// NewOrderDetail composes the detail view from a header and its items
func NewOrderDetail(order *Order, items []OrderItemDetail) *OrderDetail {
	if items == nil {
		items = []OrderItemDetail{}
	}
	return &OrderDetail{
		ID:            order.ID,
		CustomerName:  order.CustomerName,
		CustomerEmail: order.CustomerEmail,
		Status:        order.Status,
		TotalAmount:   order.TotalAmount,
		Notes:         order.Notes,
		IsActive:      order.IsActive,
		Items:         items,
		ItemCount:     len(items),
		CreatedAt:     order.CreatedAt,
		UpdatedAt:     order.UpdatedAt,
	}
}

// OrderSummary is the list projection of an order
type OrderSummary struct {
	ID            int64           `db:"id" json:"id"`
	CustomerName  string          `db:"customer_name" json:"customerName"`
	CustomerEmail string          `db:"customer_email" json:"customerEmail"`
	Status        OrderStatus     `db:"status" json:"status"`
	TotalAmount   decimal.Decimal `db:"total_amount" json:"totalAmount"`
	ItemCount     int             `db:"item_count" json:"itemCount"`
	CreatedAt     time.Time       `db:"created_at" json:"createdAt"`
}

// OrderStatistic is one row of the per-status order report
type OrderStatistic struct {
	Status       OrderStatus     `db:"status" json:"status"`
	Count        int64           `db:"count" json:"count"`
	TotalRevenue decimal.Decimal `db:"total_revenue" json:"totalRevenue"`
}

// CategoryCount is one row of the per-category product report
type CategoryCount struct {
	Category string `db:"category" json:"category"`
	Count    int64  `db:"count" json:"count"`
}

// UncategorizedLabel groups products without a category
const UncategorizedLabel = "Uncategorized"

// OrderHistoryEntry records one lifecycle event of an order
type OrderHistoryEntry struct {
	ID         int64        `db:"id" json:"id"`
	OrderID    int64        `db:"order_id" json:"orderId"`
	EventID    string       `db:"event_id" json:"eventId"`
	EventType  string       `db:"event_type" json:"eventType"`
	FromStatus *OrderStatus `db:"from_status" json:"fromStatus,omitempty"`
	ToStatus   OrderStatus  `db:"to_status" json:"toStatus"`
	OccurredAt time.Time    `db:"occurred_at" json:"occurredAt"`
}

// ProcessedEvent for idempotency
type ProcessedEvent struct {
	EventID     string    `db:"event_id"`
	EventType   string    `db:"event_type"`
	ProcessedAt time.Time `db:"processed_at"`
}
