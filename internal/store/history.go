package store

import (
	"context"

	"storefront-service/internal/models"
)

// IsEventProcessed checks if an event has been processed
func (c conn) IsEventProcessed(ctx context.Context, eventID string) (bool, error) {
	var exists bool
	err := c.get(ctx, &exists,
		"SELECT EXISTS(SELECT 1 FROM processed_events WHERE event_id = ?)", eventID)
	return exists, err
}

// MarkEventProcessed marks an event as processed
func (c conn) MarkEventProcessed(ctx context.Context, eventID, eventType string) error {
	_, err := c.exec(ctx,
		"INSERT INTO processed_events (event_id, event_type, processed_at) VALUES (?, ?, ?) ON CONFLICT (event_id) DO NOTHING",
		eventID, eventType, now())
	return err
}

// CreateOrderHistory appends a lifecycle entry for an order
func (c conn) CreateOrderHistory(ctx context.Context, entry *models.OrderHistoryEntry) error {
	query := `
		INSERT INTO order_history (order_id, event_id, event_type, from_status, to_status, occurred_at)
		VALUES (?, ?, ?, ?, ?, ?)
		RETURNING id`

	return c.get(ctx, &entry.ID, query,
		entry.OrderID, entry.EventID, entry.EventType, entry.FromStatus, entry.ToStatus, entry.OccurredAt.UTC())
}

// ListOrderHistory returns the lifecycle entries of an order, oldest first
func (c conn) ListOrderHistory(ctx context.Context, orderID int64) ([]models.OrderHistoryEntry, error) {
	entries := []models.OrderHistoryEntry{}
	err := c.selectRows(ctx, &entries, `
		SELECT id, order_id, event_id, event_type, from_status, to_status, occurred_at
		FROM order_history
		WHERE order_id = ?
		ORDER BY occurred_at, id`, orderID)
	return entries, err
}
