package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"storefront-service/internal/apperror"
	"storefront-service/internal/broker"
	"storefront-service/internal/models"
	"storefront-service/internal/store"
	"storefront-service/internal/util"
)

// EventPublisher publishes order lifecycle events
type EventPublisher interface {
	PublishOrderCreated(ctx context.Context, event *models.OrderCreatedEvent) error
	PublishOrderStatusChanged(ctx context.Context, event *models.OrderStatusChangedEvent) error
	PublishOrderCancelled(ctx context.Context, event *models.OrderCancelledEvent) error
}

// OrderService handles order business logic
type OrderService struct {
	store          *store.Store
	cache          Cache
	eventPublisher EventPublisher
	logger         *zap.Logger
}

// NewOrderService creates a new order service. cache may be nil; a nil
// publisher drops events.
func NewOrderService(store *store.Store, cache Cache, eventPublisher EventPublisher) *OrderService {
	if eventPublisher == nil {
		eventPublisher = broker.NopPublisher{}
	}
	return &OrderService{
		store:          store,
		cache:          cache,
		eventPublisher: eventPublisher,
		logger:         util.GetLogger(),
	}
}

// CreateOrderRequest represents a request to create an order
type CreateOrderRequest struct {
	CustomerName   string             `json:"customerName" binding:"required,max=100"`
	CustomerEmail  string             `json:"customerEmail" binding:"required,email,max=200"`
	Notes          *string            `json:"notes" binding:"omitempty,max=500"`
	Items          []OrderItemRequest `json:"items" binding:"required,min=1,dive"`
	IdempotencyKey string             `json:"-"`
}

// OrderItemRequest represents an item in an order
type OrderItemRequest struct {
	ProductID int64 `json:"productId" binding:"required,min=1"`
	Quantity  int   `json:"quantity" binding:"required,min=1"`
}

// UpdateOrderRequest changes the status and/or notes of an order
type UpdateOrderRequest struct {
	Status *models.OrderStatus `json:"status" binding:"omitempty,oneof=pending processing completed cancelled"`
	Notes  *string             `json:"notes" binding:"omitempty,max=500"`
}

// productLine is the total quantity requested of one product
type productLine struct {
	ProductID int64
	Quantity  int
}

// Create places an order. The stock check, the order rows and the stock
// decrements commit together or not at all.
//
// When the request carries an idempotency key that an earlier order already
// used, that order is returned and created is false.
func (s *OrderService) Create(ctx context.Context, req *CreateOrderRequest) (detail *models.OrderDetail, created bool, err error) {
	ctx, span := util.StartSpan(ctx, "OrderService.Create", attribute.Int("order.items", len(req.Items)))
	defer span.End()

	start := time.Now()
	defer func() {
		util.OrderCreateLatency.Observe(time.Since(start).Seconds())
	}()

	if err := checkItems(req.Items); err != nil {
		util.OrdersFailedTotal.WithLabelValues("invalid_items").Inc()
		return nil, false, err
	}

	var (
		order    *models.Order
		items    []models.OrderItem
		details  []models.OrderItemDetail
		replayed bool
	)

	err = s.store.WithTx(ctx, func(tx *store.Tx) error {
		if req.IdempotencyKey != "" {
			existing, err := tx.GetOrderByIdempotencyKey(ctx, req.IdempotencyKey)
			if err != nil {
				return fmt.Errorf("failed to check idempotency: %w", err)
			}
			if existing != nil {
				order, replayed = existing, true
				details, err = tx.GetOrderItemDetails(ctx, existing.ID)
				return err
			}
		}

		var err error
		order, items, err = placeOrder(ctx, tx, req)
		if err != nil {
			return err
		}

		details, err = tx.GetOrderItemDetails(ctx, order.ID)
		return err
	})
	if err != nil {
		if req.IdempotencyKey != "" && store.IsUniqueViolation(err) {
			// A concurrent request with the same key committed first.
			return s.replay(ctx, req.IdempotencyKey)
		}
		if !isClassified(err) {
			util.OrdersFailedTotal.WithLabelValues("db_error").Inc()
			util.RecordError(span, err)
		}
		return nil, false, internal(err, "failed to create order")
	}

	if replayed {
		s.logger.Info("Duplicate order request detected",
			zap.String("idempotency_key", req.IdempotencyKey),
			zap.Int64("order_id", order.ID))
		return models.NewOrderDetail(order, details), false, nil
	}

	util.OrdersCreatedTotal.Inc()
	keys := []string{orderStatsKey}
	for _, line := range mergeLines(req.Items) {
		util.StockUnitsSoldTotal.Add(float64(line.Quantity))
		keys = append(keys, productKey(line.ProductID))
	}
	cacheDelete(ctx, s.cache, s.logger, keys...)

	s.logger.Info("Order created",
		zap.Int64("order_id", order.ID),
		zap.String("total_amount", order.TotalAmount.StringFixed(2)),
		zap.Int("items", len(items)))

	s.publishCreated(ctx, order, items)

	return models.NewOrderDetail(order, details), true, nil
}

// placeOrder validates the request against the locked product rows and
// writes the order, its items and the stock decrements through tx
func placeOrder(ctx context.Context, tx *store.Tx, req *CreateOrderRequest) (*models.Order, []models.OrderItem, error) {
	lines := mergeLines(req.Items)
	ids := make([]int64, len(lines))
	for i, line := range lines {
		ids[i] = line.ProductID
	}

	products, err := tx.GetActiveProductsByIDs(ctx, ids)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load products: %w", err)
	}
	if len(products) != len(ids) {
		util.OrdersFailedTotal.WithLabelValues("invalid_items").Inc()
		return nil, nil, apperror.Validation("One or more products not found or inactive")
	}

	byID := make(map[int64]*models.Product, len(products))
	for i := range products {
		byID[products[i].ID] = &products[i]
	}

	for _, line := range lines {
		if product := byID[line.ProductID]; line.Quantity > product.Stock {
			util.OrdersFailedTotal.WithLabelValues("insufficient_stock").Inc()
			return nil, nil, insufficientStock(product, line.Quantity)
		}
	}

	items, total := priceItems(req.Items, byID)

	var idempotencyKey *string
	if req.IdempotencyKey != "" {
		idempotencyKey = &req.IdempotencyKey
	}

	order := &models.Order{
		CustomerName:   req.CustomerName,
		CustomerEmail:  req.CustomerEmail,
		Status:         models.OrderStatusPending,
		TotalAmount:    total,
		Notes:          optional(req.Notes),
		IsActive:       true,
		IdempotencyKey: idempotencyKey,
	}
	if err := tx.CreateOrder(ctx, order); err != nil {
		return nil, nil, fmt.Errorf("failed to insert order: %w", err)
	}

	for i := range items {
		items[i].OrderID = order.ID
		if err := tx.CreateOrderItem(ctx, &items[i]); err != nil {
			return nil, nil, fmt.Errorf("failed to insert order item: %w", err)
		}
	}

	for _, line := range lines {
		ok, err := tx.DecrementStock(ctx, line.ProductID, line.Quantity)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to decrement stock of product %d: %w", line.ProductID, err)
		}
		if !ok {
			util.OrdersFailedTotal.WithLabelValues("insufficient_stock").Inc()
			return nil, nil, insufficientStock(byID[line.ProductID], line.Quantity)
		}
	}

	return order, items, nil
}

// checkItems rejects empty orders and non-positive ids or quantities
func checkItems(items []OrderItemRequest) error {
	if len(items) == 0 {
		return apperror.Validation("Order must contain at least one item").
			WithDetails(apperror.Detail{Field: "items", Message: "must contain at least 1 item"})
	}
	for i, item := range items {
		if item.ProductID < 1 {
			return apperror.Validation("Invalid product id").
				WithDetails(apperror.Detail{Field: fmt.Sprintf("items[%d].productId", i), Message: "must be a positive integer", Value: item.ProductID})
		}
		if item.Quantity < 1 {
			return apperror.Validation("Quantity must be at least 1").
				WithDetails(apperror.Detail{Field: fmt.Sprintf("items[%d].quantity", i), Message: "must be at least 1", Value: item.Quantity})
		}
	}
	return nil
}

// mergeLines sums quantities per product, keeping first-seen order
func mergeLines(items []OrderItemRequest) []productLine {
	index := make(map[int64]int, len(items))
	lines := make([]productLine, 0, len(items))
	for _, item := range items {
		if i, ok := index[item.ProductID]; ok {
			lines[i].Quantity += item.Quantity
			continue
		}
		index[item.ProductID] = len(lines)
		lines = append(lines, productLine{ProductID: item.ProductID, Quantity: item.Quantity})
	}
	return lines
}

// priceItems snapshots each product's price onto its item and sums the
// subtotals
func priceItems(requested []OrderItemRequest, products map[int64]*models.Product) ([]models.OrderItem, decimal.Decimal) {
	items := make([]models.OrderItem, len(requested))
	total := decimal.Zero
	for i, req := range requested {
		price := products[req.ProductID].Price
		subtotal := price.Mul(decimal.NewFromInt(int64(req.Quantity)))
		items[i] = models.OrderItem{
			ProductID:    req.ProductID,
			Quantity:     req.Quantity,
			PriceAtOrder: price,
			Subtotal:     subtotal,
		}
		total = total.Add(subtotal)
	}
	return items, total
}

func insufficientStock(product *models.Product, requested int) error {
	return apperror.Validation("Insufficient stock for product \"%s\". Available: %d, Requested: %d",
		product.Name, product.Stock, requested).
		WithDetails(apperror.Detail{
			Field:   "items",
			Message: "insufficient stock",
			Value: map[string]interface{}{
				"productId": product.ID,
				"available": product.Stock,
				"requested": requested,
			},
		})
}

func (s *OrderService) replay(ctx context.Context, key string) (*models.OrderDetail, bool, error) {
	order, err := s.store.GetOrderByIdempotencyKey(ctx, key)
	if err != nil {
		return nil, false, apperror.Internal(err, "failed to load order")
	}
	if order == nil {
		return nil, false, apperror.Internal(errors.New("idempotency key vanished"), "failed to load order")
	}

	items, err := s.store.GetOrderItemDetails(ctx, order.ID)
	if err != nil {
		return nil, false, apperror.Internal(err, "failed to load order items")
	}
	return models.NewOrderDetail(order, items), false, nil
}

// FindOne returns an order with its items. Cancelled orders stay reachable
// by id.
func (s *OrderService) FindOne(ctx context.Context, id int64) (*models.OrderDetail, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.FindOne", attribute.Int64("order.id", id))
	defer span.End()

	order, err := s.store.GetOrderByID(ctx, id, true)
	if errors.Is(err, store.ErrNotFound) {
		return nil, orderNotFound(id)
	}
	if err != nil {
		util.RecordError(span, err)
		return nil, apperror.Internal(err, "failed to load order")
	}

	items, err := s.store.GetOrderItemDetails(ctx, id)
	if err != nil {
		util.RecordError(span, err)
		return nil, apperror.Internal(err, "failed to load order items")
	}

	return models.NewOrderDetail(order, items), nil
}

// FindAll returns one page of active orders with its pagination metadata
func (s *OrderService) FindAll(ctx context.Context, filter store.OrderFilter) ([]models.OrderSummary, store.PageMeta, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.FindAll")
	defer span.End()

	orders, total, err := s.store.ListOrders(ctx, filter)
	if err != nil {
		util.RecordError(span, err)
		return nil, store.PageMeta{}, apperror.Internal(err, "failed to list orders")
	}

	return orders, store.NewPageMeta(filter.Pagination, total), nil
}

// Update changes the status and/or notes of an active order. Items are never
// touched.
func (s *OrderService) Update(ctx context.Context, id int64, req *UpdateOrderRequest) (*models.OrderDetail, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.Update", attribute.Int64("order.id", id))
	defer span.End()

	var (
		detail *models.OrderDetail
		from   models.OrderStatus
	)

	err := s.store.WithTx(ctx, func(tx *store.Tx) error {
		order, err := tx.GetOrderByID(ctx, id, false)
		if errors.Is(err, store.ErrNotFound) {
			return orderNotFound(id)
		}
		if err != nil {
			return err
		}

		if err := checkUpdate(order.Status, req.Status); err != nil {
			return err
		}

		from = order.Status
		if req.Status != nil {
			order.Status = *req.Status
		}
		if req.Notes != nil {
			order.Notes = optional(req.Notes)
		}

		if err := tx.UpdateOrder(ctx, order); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return orderNotFound(id)
			}
			return err
		}

		items, err := tx.GetOrderItemDetails(ctx, id)
		if err != nil {
			return err
		}
		detail = models.NewOrderDetail(order, items)
		return nil
	})
	if err != nil {
		if !isClassified(err) {
			util.RecordError(span, err)
		}
		return nil, internal(err, "failed to update order")
	}

	cacheDelete(ctx, s.cache, s.logger, orderStatsKey)

	if detail.Status != from {
		util.OrderStatusTransitionsTotal.WithLabelValues(from.String(), detail.Status.String()).Inc()
		s.logger.Info("Order status changed",
			zap.Int64("order_id", id),
			zap.String("from", from.String()),
			zap.String("to", detail.Status.String()))

		event := &models.OrderStatusChangedEvent{
			BaseEvent:  newBaseEvent(models.EventTypeOrderStatusChanged),
			OrderID:    id,
			FromStatus: from,
			ToStatus:   detail.Status,
		}
		if err := s.eventPublisher.PublishOrderStatusChanged(ctx, event); err != nil {
			s.logger.Error("Failed to publish OrderStatusChanged event", zap.Int64("order_id", id), zap.Error(err))
		}
	}

	return detail, nil
}

// Remove cancels an order and hides it from listings
func (s *OrderService) Remove(ctx context.Context, id int64) error {
	ctx, span := util.StartSpan(ctx, "OrderService.Remove", attribute.Int64("order.id", id))
	defer span.End()

	var from models.OrderStatus

	err := s.store.WithTx(ctx, func(tx *store.Tx) error {
		order, err := tx.GetOrderByID(ctx, id, false)
		if errors.Is(err, store.ErrNotFound) {
			return orderNotFound(id)
		}
		if err != nil {
			return err
		}

		if err := checkCancel(order.Status); err != nil {
			return err
		}

		from = order.Status
		order.Status = models.OrderStatusCancelled
		order.IsActive = false

		if err := tx.UpdateOrder(ctx, order); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return orderNotFound(id)
			}
			return err
		}
		return nil
	})
	if err != nil {
		if !isClassified(err) {
			util.RecordError(span, err)
		}
		return internal(err, "failed to cancel order")
	}

	util.OrdersCancelledTotal.Inc()
	util.OrderStatusTransitionsTotal.WithLabelValues(from.String(), models.OrderStatusCancelled.String()).Inc()
	cacheDelete(ctx, s.cache, s.logger, orderStatsKey)
	s.logger.Info("Order cancelled", zap.Int64("order_id", id), zap.String("from", from.String()))

	event := &models.OrderCancelledEvent{
		BaseEvent:  newBaseEvent(models.EventTypeOrderCancelled),
		OrderID:    id,
		FromStatus: from,
	}
	if err := s.eventPublisher.PublishOrderCancelled(ctx, event); err != nil {
		s.logger.Error("Failed to publish OrderCancelled event", zap.Int64("order_id", id), zap.Error(err))
	}

	return nil
}

// Statistics groups active orders by status
func (s *OrderService) Statistics(ctx context.Context) ([]models.OrderStatistic, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.Statistics")
	defer span.End()

	var stats []models.OrderStatistic
	if cacheGet(ctx, s.cache, s.logger, "order_statistics", orderStatsKey, &stats) {
		return stats, nil
	}

	stats, err := s.store.OrderStatistics(ctx)
	if err != nil {
		util.RecordError(span, err)
		return nil, apperror.Internal(err, "failed to compute order statistics")
	}

	cacheSet(ctx, s.cache, s.logger, orderStatsKey, stats)
	return stats, nil
}

// History lists the recorded lifecycle events of an order, oldest first
func (s *OrderService) History(ctx context.Context, id int64) ([]models.OrderHistoryEntry, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.History", attribute.Int64("order.id", id))
	defer span.End()

	if _, err := s.store.GetOrderByID(ctx, id, true); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, orderNotFound(id)
		}
		return nil, apperror.Internal(err, "failed to load order")
	}

	entries, err := s.store.ListOrderHistory(ctx, id)
	if err != nil {
		util.RecordError(span, err)
		return nil, apperror.Internal(err, "failed to load order history")
	}
	return entries, nil
}

func (s *OrderService) publishCreated(ctx context.Context, order *models.Order, items []models.OrderItem) {
	data := make([]models.OrderItemData, len(items))
	for i, item := range items {
		data[i] = models.OrderItemData{
			ProductID:    item.ProductID,
			Quantity:     item.Quantity,
			PriceAtOrder: item.PriceAtOrder,
		}
	}

	event := &models.OrderCreatedEvent{
		BaseEvent:     newBaseEvent(models.EventTypeOrderCreated),
		OrderID:       order.ID,
		CustomerEmail: order.CustomerEmail,
		TotalAmount:   order.TotalAmount,
		Items:         data,
	}

	if err := s.eventPublisher.PublishOrderCreated(ctx, event); err != nil {
		s.logger.Error("Failed to publish OrderCreated event", zap.Int64("order_id", order.ID), zap.Error(err))
	}
}

func newBaseEvent(eventType string) models.BaseEvent {
	return models.BaseEvent{
		EventID:   uuid.New().String(),
		EventType: eventType,
		Timestamp: time.Now().UTC(),
	}
}

func orderNotFound(id int64) error {
	return apperror.NotFound("Order with ID %d not found", id)
}
