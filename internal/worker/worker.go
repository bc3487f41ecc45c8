package worker

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"storefront-service/internal/broker"
	"storefront-service/internal/service"
	"storefront-service/internal/util"
)

type messageConsumer interface {
	StartConsuming(ctx context.Context, handler broker.MessageHandler) error
	Close() error
}

// HistoryWorker consumes order events and records them in the order history
type HistoryWorker struct {
	consumer     messageConsumer
	eventHandler *broker.EventHandler
	logger       *zap.Logger
	done         chan struct{}
}

// NewHistoryWorker creates a new history worker
func NewHistoryWorker(consumer *broker.Consumer, recorder *service.HistoryRecorder) *HistoryWorker {
	return newHistoryWorker(consumer, NewHistoryHandler(recorder))
}

func newHistoryWorker(consumer messageConsumer, eventHandler *broker.EventHandler) *HistoryWorker {
	return &HistoryWorker{
		consumer:     consumer,
		eventHandler: eventHandler,
		logger:       util.GetLogger(),
		done:         make(chan struct{}),
	}
}

// NewHistoryHandler routes every order event type to recorder
func NewHistoryHandler(recorder *service.HistoryRecorder) *broker.EventHandler {
	eventHandler := broker.NewEventHandler()

	eventHandler.OnOrderCreated(recorder.HandleOrderCreated)
	eventHandler.OnOrderStatusChanged(recorder.HandleOrderStatusChanged)
	eventHandler.OnOrderCancelled(recorder.HandleOrderCancelled)

	return eventHandler
}

// Start blocks consuming until ctx is cancelled. Cancellation is a normal
// stop and returns nil. Start must be called at most once.
func (w *HistoryWorker) Start(ctx context.Context) error {
	defer close(w.done)

	w.logger.Info("Starting history worker")
	err := w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Stop waits for Start to return, or for ctx to expire, then closes the
// consumer
func (w *HistoryWorker) Stop(ctx context.Context) error {
	w.logger.Info("Stopping history worker")

	select {
	case <-w.done:
	case <-ctx.Done():
		w.logger.Warn("History worker did not stop in time")
	}
	return w.consumer.Close()
}
