package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"storefront-service/internal/models"
	"storefront-service/internal/store"
	"storefront-service/internal/util"
)

// HistoryRecorder appends consumed order events to the order history.
// Each event is recorded at most once.
type HistoryRecorder struct {
	store  *store.Store
	logger *zap.Logger
}

// NewHistoryRecorder creates a new history recorder
func NewHistoryRecorder(store *store.Store) *HistoryRecorder {
	return &HistoryRecorder{
		store:  store,
		logger: util.GetLogger(),
	}
}

// HandleOrderCreated records the initial pending status
func (r *HistoryRecorder) HandleOrderCreated(ctx context.Context, event *models.OrderCreatedEvent) error {
	return r.record(ctx, event.BaseEvent, event.OrderID, nil, models.OrderStatusPending)
}

// HandleOrderStatusChanged records a status transition
func (r *HistoryRecorder) HandleOrderStatusChanged(ctx context.Context, event *models.OrderStatusChangedEvent) error {
	from := event.FromStatus
	return r.record(ctx, event.BaseEvent, event.OrderID, &from, event.ToStatus)
}

// HandleOrderCancelled records a cancellation
func (r *HistoryRecorder) HandleOrderCancelled(ctx context.Context, event *models.OrderCancelledEvent) error {
	from := event.FromStatus
	return r.record(ctx, event.BaseEvent, event.OrderID, &from, models.OrderStatusCancelled)
}

func (r *HistoryRecorder) record(ctx context.Context, base models.BaseEvent, orderID int64, from *models.OrderStatus, to models.OrderStatus) error {
	ctx, span := util.StartSpan(ctx, "HistoryRecorder.record")
	defer span.End()

	return r.store.WithTx(ctx, func(tx *store.Tx) error {
		processed, err := tx.IsEventProcessed(ctx, base.EventID)
		if err != nil {
			return fmt.Errorf("failed to check processed event: %w", err)
		}
		if processed {
			r.logger.Info("Event already processed, skipping", zap.String("event_id", base.EventID))
			return nil
		}

		entry := &models.OrderHistoryEntry{
			OrderID:    orderID,
			EventID:    base.EventID,
			EventType:  base.EventType,
			FromStatus: from,
			ToStatus:   to,
			OccurredAt: base.Timestamp,
		}
		if err := tx.CreateOrderHistory(ctx, entry); err != nil {
			return fmt.Errorf("failed to record order history: %w", err)
		}

		if err := tx.MarkEventProcessed(ctx, base.EventID, base.EventType); err != nil {
			return fmt.Errorf("failed to mark event processed: %w", err)
		}

		r.logger.Debug("Order history recorded",
			zap.Int64("order_id", orderID),
			zap.String("event_type", base.EventType),
			zap.String("to", to.String()))
		return nil
	})
}
