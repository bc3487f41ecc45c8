package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"storefront-service/internal/models"
)

const orderColumns = `id, customer_name, customer_email, status, total_amount, notes,
	is_active, idempotency_key, created_at, updated_at`

// UnknownProductName labels items whose product row no longer exists
const UnknownProductName = "Unknown Product"

// CreateOrder creates a new order header
func (c conn) CreateOrder(ctx context.Context, order *models.Order) error {
	ts := now()
	query := `
		INSERT INTO orders (customer_name, customer_email, status, total_amount, notes, is_active, idempotency_key, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id`

	if err := c.get(ctx, &order.ID, query,
		order.CustomerName, order.CustomerEmail, order.Status, order.TotalAmount, order.Notes,
		order.IsActive, order.IdempotencyKey, ts, ts); err != nil {
		return err
	}
	order.CreatedAt, order.UpdatedAt = ts, ts
	return nil
}

// CreateOrderItem creates a new order item
func (c conn) CreateOrderItem(ctx context.Context, item *models.OrderItem) error {
	ts := now()
	query := `
		INSERT INTO order_items (order_id, product_id, quantity, price_at_order, subtotal, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		RETURNING id`

	if err := c.get(ctx, &item.ID, query,
		item.OrderID, item.ProductID, item.Quantity, item.PriceAtOrder, item.Subtotal, ts); err != nil {
		return err
	}
	item.CreatedAt = ts
	return nil
}

// GetOrderByID retrieves an order. Soft-deleted orders are only returned
// when includeInactive is set.
func (c conn) GetOrderByID(ctx context.Context, id int64, includeInactive bool) (*models.Order, error) {
	query := "SELECT " + orderColumns + " FROM orders WHERE id = ?"
	if !includeInactive {
		query += " AND is_active = TRUE"
	}

	var order models.Order
	err := c.get(ctx, &order, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("order %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// GetOrderByIdempotencyKey retrieves an order by idempotency key
func (c conn) GetOrderByIdempotencyKey(ctx context.Context, key string) (*models.Order, error) {
	var order models.Order
	err := c.get(ctx, &order, "SELECT "+orderColumns+" FROM orders WHERE idempotency_key = ?", key)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// GetOrderItemDetails retrieves the items of an order with product names
func (c conn) GetOrderItemDetails(ctx context.Context, orderID int64) ([]models.OrderItemDetail, error) {
	query := `
		SELECT oi.id, oi.product_id, COALESCE(p.name, '` + UnknownProductName + `') AS product_name,
			oi.quantity, oi.price_at_order, oi.subtotal
		FROM order_items oi
		LEFT JOIN products p ON p.id = oi.product_id
		WHERE oi.order_id = ?
		ORDER BY oi.id`

	items := []models.OrderItemDetail{}
	err := c.selectRows(ctx, &items, query, orderID)
	return items, err
}

// UpdateOrder writes the mutable header fields of an order
func (c conn) UpdateOrder(ctx context.Context, order *models.Order) error {
	ts := now()
	n, err := c.exec(ctx,
		"UPDATE orders SET status = ?, notes = ?, is_active = ?, updated_at = ? WHERE id = ?",
		order.Status, order.Notes, order.IsActive, ts, order.ID)
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("order %d: %w", order.ID, ErrNotFound)
	}
	order.UpdatedAt = ts
	return nil
}

// ListOrders returns one page of active orders matching filter and the total
// number of matches
func (c conn) ListOrders(ctx context.Context, filter OrderFilter) ([]models.OrderSummary, int64, error) {
	page := filter.Pagination.normalized()

	w := &where{}
	w.add("o.is_active = TRUE")
	if filter.Status != "" {
		w.add("o.status = ?", filter.Status)
	}
	if filter.Search != "" {
		w.search(filter.Search, "o.customer_name", "o.customer_email")
	}
	if filter.FromDate != nil {
		w.add("o.created_at >= ?", filter.FromDate.UTC())
	}
	if filter.ToDate != nil {
		w.add("o.created_at <= ?", filter.ToDate.UTC())
	}

	var total int64
	if err := c.get(ctx, &total, "SELECT COUNT(*) FROM orders o"+w.sql(), w.args...); err != nil {
		return nil, 0, fmt.Errorf("failed to count orders: %w", err)
	}

	query := `
		SELECT o.id, o.customer_name, o.customer_email, o.status, o.total_amount, o.created_at,
			(SELECT COUNT(*) FROM order_items oi WHERE oi.order_id = o.id) AS item_count
		FROM orders o` + w.sql() +
		orderBy(OrderSortColumns, filter.SortBy, filter.SortOrder, "o.created_at", "o.id") +
		" LIMIT ? OFFSET ?"
	args := append(append([]interface{}{}, w.args...), page.Limit, page.offset())

	orders := []models.OrderSummary{}
	if err := c.selectRows(ctx, &orders, query, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to list orders: %w", err)
	}
	return orders, total, nil
}

// OrderStatistics groups active orders by status with count and revenue
func (c conn) OrderStatistics(ctx context.Context) ([]models.OrderStatistic, error) {
	query := `
		SELECT status, COUNT(id) AS count, COALESCE(SUM(total_amount), 0) AS total_revenue
		FROM orders
		WHERE is_active = TRUE
		GROUP BY status
		ORDER BY status`

	stats := []models.OrderStatistic{}
	if err := c.selectRows(ctx, &stats, query); err != nil {
		return nil, err
	}
	// SQLite sums NUMERIC columns as REAL
	for i := range stats {
		stats[i].TotalRevenue = stats[i].TotalRevenue.Round(2)
	}
	return stats, nil
}
