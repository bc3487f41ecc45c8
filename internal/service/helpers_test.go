package service

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"storefront-service/internal/models"
	"storefront-service/internal/store"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()

	s, err := store.NewStore(store.Options{Driver: "sqlite3", URL: "file::memory:?_foreign_keys=on"})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	_, err = s.Migrate(context.Background())
	require.NoError(t, err)
	return s
}

// mapCache is an in-process Cache that round-trips values through JSON like
// the Redis client does
type mapCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMapCache() *mapCache {
	return &mapCache{data: map[string][]byte{}}
}

func (c *mapCache) GetJSON(_ context.Context, key string, dest interface{}) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	raw, ok := c.data[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(raw, dest)
}

func (c *mapCache) SetJSON(_ context.Context, key string, value interface{}) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = raw
	return nil
}

func (c *mapCache) Delete(_ context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range keys {
		delete(c.data, k)
	}
	return nil
}

func (c *mapCache) has(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.data[key]
	return ok
}

// recordingPublisher keeps every published event
type recordingPublisher struct {
	mu            sync.Mutex
	created       []*models.OrderCreatedEvent
	statusChanged []*models.OrderStatusChangedEvent
	cancelled     []*models.OrderCancelledEvent
	failWith      error
}

func (p *recordingPublisher) PublishOrderCreated(_ context.Context, e *models.OrderCreatedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.created = append(p.created, e)
	return p.failWith
}

func (p *recordingPublisher) PublishOrderStatusChanged(_ context.Context, e *models.OrderStatusChangedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.statusChanged = append(p.statusChanged, e)
	return p.failWith
}

func (p *recordingPublisher) PublishOrderCancelled(_ context.Context, e *models.OrderCancelledEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cancelled = append(p.cancelled, e)
	return p.failWith
}

type fixture struct {
	store     *store.Store
	cache     *mapCache
	publisher *recordingPublisher
	products  *ProductService
	orders    *OrderService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	s := newTestStore(t)
	c := newMapCache()
	p := &recordingPublisher{}
	return &fixture{
		store:     s,
		cache:     c,
		publisher: p,
		products:  NewProductService(s, c),
		orders:    NewOrderService(s, c, p),
	}
}

func (f *fixture) product(t *testing.T, name, price string, stock int) *models.Product {
	t.Helper()
	d := decimal.RequireFromString(price)
	p, err := f.products.Create(context.Background(), &CreateProductRequest{
		Name:  name,
		Price: &d,
		Stock: &stock,
	})
	require.NoError(t, err)
	return p
}

func (f *fixture) stockOf(t *testing.T, id int64) int {
	t.Helper()
	p, err := f.store.GetProductByID(context.Background(), id)
	require.NoError(t, err)
	return p.Stock
}

func (f *fixture) countRows(t *testing.T, table string) int {
	t.Helper()
	var n int
	require.NoError(t, f.store.GetDB().Get(&n, "SELECT COUNT(*) FROM "+table))
	return n
}

func orderRequest(items ...OrderItemRequest) *CreateOrderRequest {
	return &CreateOrderRequest{
		CustomerName:  "Jane Doe",
		CustomerEmail: "jane@example.com",
		Items:         items,
	}
}

func strPtr(s string) *string { return &s }

func intPtr(n int) *int { return &n }

func decPtr(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func statusPtr(s models.OrderStatus) *models.OrderStatus { return &s }
