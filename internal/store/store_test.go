package store

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront-service/internal/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	s, err := NewStore(Options{Driver: "sqlite3", URL: "file::memory:?_foreign_keys=on"})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	_, err = s.Migrate(context.Background())
	require.NoError(t, err)
	return s
}

func strPtr(s string) *string { return &s }

func seedProduct(t *testing.T, s *Store, name string, price string, stock int, sku, category *string) *models.Product {
	t.Helper()
	p := &models.Product{
		Name:     name,
		Price:    decimal.RequireFromString(price),
		Stock:    stock,
		SKU:      sku,
		Category: category,
		IsActive: true,
	}
	require.NoError(t, s.CreateProduct(context.Background(), p))
	return p
}

func TestMigrateIsIdempotent(t *testing.T) {
	s := newTestStore(t)

	ran, err := s.Migrate(context.Background())
	require.NoError(t, err)
	assert.Empty(t, ran)
}

func TestLoadMigrationsOrdered(t *testing.T) {
	for _, d := range []Dialect{DialectPostgres, DialectSQLite} {
		migrations, err := LoadMigrations(d)
		require.NoError(t, err)
		require.NotEmpty(t, migrations)
		for i := 1; i < len(migrations); i++ {
			assert.Less(t, migrations[i-1].Version, migrations[i].Version)
		}
	}
}

func TestProductLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	p := seedProduct(t, s, "Laptop", "1299.99", 10, strPtr("LAP-1"), strPtr("Electronics"))
	assert.NotZero(t, p.ID)

	got, err := s.GetProductByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Laptop", got.Name)
	assert.True(t, got.Price.Equal(decimal.RequireFromString("1299.99")))
	assert.True(t, got.IsActive)

	exists, err := s.SKUExists(ctx, "LAP-1")
	require.NoError(t, err)
	assert.True(t, exists)

	got.Stock = 4
	require.NoError(t, s.UpdateProduct(ctx, got))

	require.NoError(t, s.SoftDeleteProduct(ctx, p.ID))
	_, err = s.GetProductByID(ctx, p.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	// The sku stays taken after soft deletion
	exists, err = s.SKUExists(ctx, "LAP-1")
	require.NoError(t, err)
	assert.True(t, exists)

	assert.ErrorIs(t, s.SoftDeleteProduct(ctx, p.ID), ErrNotFound)
}

func TestDuplicateSKUIsUniqueViolation(t *testing.T) {
	s := newTestStore(t)
	seedProduct(t, s, "First", "1.00", 1, strPtr("DUP"), nil)

	err := s.CreateProduct(context.Background(), &models.Product{
		Name: "Second", Price: decimal.NewFromInt(1), SKU: strPtr("DUP"), IsActive: true,
	})
	require.Error(t, err)
	assert.True(t, IsUniqueViolation(err))
}

func TestDecrementStockIsConditional(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	p := seedProduct(t, s, "Widget", "5.00", 3, nil, nil)

	ok, err := s.DecrementStock(ctx, p.ID, 2)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.DecrementStock(ctx, p.ID, 2)
	require.NoError(t, err)
	assert.False(t, ok)

	got, err := s.GetProductByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Stock)
}

func TestGetActiveProductsByIDs(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	a := seedProduct(t, s, "A", "1.00", 1, nil, nil)
	b := seedProduct(t, s, "B", "1.00", 1, nil, nil)
	b.IsActive = false
	require.NoError(t, s.UpdateProduct(ctx, b))
	c := seedProduct(t, s, "C", "1.00", 1, nil, nil)
	require.NoError(t, s.SoftDeleteProduct(ctx, c.ID))

	products, err := s.GetActiveProductsByIDs(ctx, []int64{a.ID, b.ID, c.ID, 999})
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, a.ID, products[0].ID)
}

func TestListProductsFilters(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	seedProduct(t, s, "Gaming Laptop", "2000.00", 5, strPtr("GL-1"), strPtr("Computers"))
	seedProduct(t, s, "Office Laptop", "800.00", 0, strPtr("OL-1"), strPtr("Computers"))
	seedProduct(t, s, "Headphones", "150.00", 20, strPtr("HP_1"), strPtr("Audio"))
	seedProduct(t, s, "Cable 100%", "10.00", 100, nil, nil)

	tests := []struct {
		name   string
		filter ProductFilter
		want   []string
	}{
		{"search is case insensitive", ProductFilter{Search: "LAPTOP", SortBy: "name", SortOrder: SortAsc}, []string{"Gaming Laptop", "Office Laptop"}},
		{"search matches sku", ProductFilter{Search: "hp_"}, []string{"Headphones"}},
		{"percent is literal", ProductFilter{Search: "100%"}, []string{"Cable 100%"}},
		{"underscore is literal", ProductFilter{Search: "_"}, []string{"Headphones"}},
		{"category", ProductFilter{Category: "Audio"}, []string{"Headphones"}},
		{"price range inclusive", ProductFilter{
			MinPrice: decPtr("150"), MaxPrice: decPtr("800"), SortBy: "price", SortOrder: SortAsc,
		}, []string{"Headphones", "Office Laptop"}},
		{"in stock", ProductFilter{InStock: boolPtr(true), Category: "Computers"}, []string{"Gaming Laptop"}},
		{"out of stock", ProductFilter{InStock: boolPtr(false)}, []string{"Office Laptop"}},
		{"sort by stock desc", ProductFilter{SortBy: "stock", SortOrder: SortDesc}, []string{"Cable 100%", "Headphones", "Gaming Laptop", "Office Laptop"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			products, total, err := s.ListProducts(ctx, tt.filter)
			require.NoError(t, err)
			assert.Equal(t, int64(len(tt.want)), total)
			names := make([]string, len(products))
			for i, p := range products {
				names[i] = p.Name
			}
			assert.Equal(t, tt.want, names)
		})
	}
}

func TestListProductsPagesPartitionResult(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	// Same price everywhere forces the id tie-breaker
	for i := 0; i < 7; i++ {
		seedProduct(t, s, "P", "9.99", i, nil, nil)
	}

	all, total, err := s.ListProducts(ctx, ProductFilter{Pagination: Pagination{Page: 1, Limit: 100}, SortBy: "price"})
	require.NoError(t, err)
	require.Equal(t, int64(7), total)

	var paged []int64
	for page := 1; page <= 3; page++ {
		products, _, err := s.ListProducts(ctx, ProductFilter{Pagination: Pagination{Page: page, Limit: 3}, SortBy: "price"})
		require.NoError(t, err)
		for _, p := range products {
			paged = append(paged, p.ID)
		}
	}

	want := make([]int64, len(all))
	for i, p := range all {
		want[i] = p.ID
	}
	assert.Equal(t, want, paged)
}

func TestCountProductsByCategory(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	seedProduct(t, s, "A", "1.00", 1, nil, strPtr("Books"))
	seedProduct(t, s, "B", "1.00", 1, nil, strPtr("Books"))
	seedProduct(t, s, "C", "1.00", 1, nil, nil)
	seedProduct(t, s, "D", "1.00", 1, nil, strPtr(""))
	gone := seedProduct(t, s, "E", "1.00", 1, nil, strPtr("Toys"))
	require.NoError(t, s.SoftDeleteProduct(ctx, gone.ID))

	counts, err := s.CountProductsByCategory(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []models.CategoryCount{
		{Category: "Books", Count: 2},
		{Category: models.UncategorizedLabel, Count: 2},
	}, counts)
}

func TestNewPageMeta(t *testing.T) {
	tests := []struct {
		page, limit int
		total       int64
		want        PageMeta
	}{
		{1, 10, 0, PageMeta{Page: 1, Limit: 10, Total: 0, TotalPages: 0}},
		{1, 10, 25, PageMeta{Page: 1, Limit: 10, Total: 25, TotalPages: 3, HasNextPage: true}},
		{3, 10, 25, PageMeta{Page: 3, Limit: 10, Total: 25, TotalPages: 3, HasPreviousPage: true}},
		{2, 5, 10, PageMeta{Page: 2, Limit: 5, Total: 10, TotalPages: 2, HasPreviousPage: true}},
		{0, 0, 11, PageMeta{Page: 1, Limit: 10, Total: 11, TotalPages: 2, HasNextPage: true}},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, NewPageMeta(Pagination{Page: tt.page, Limit: tt.limit}, tt.total))
	}
}

func TestOrderHistoryAndProcessedEvents(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	order := &models.Order{
		CustomerName: "Jane", CustomerEmail: "jane@example.com",
		Status: models.OrderStatusPending, TotalAmount: decimal.Zero, IsActive: true,
	}
	require.NoError(t, s.CreateOrder(ctx, order))

	processed, err := s.IsEventProcessed(ctx, "evt-1")
	require.NoError(t, err)
	assert.False(t, processed)

	require.NoError(t, s.MarkEventProcessed(ctx, "evt-1", models.EventTypeOrderCreated))
	require.NoError(t, s.MarkEventProcessed(ctx, "evt-1", models.EventTypeOrderCreated))

	processed, err = s.IsEventProcessed(ctx, "evt-1")
	require.NoError(t, err)
	assert.True(t, processed)

	from := models.OrderStatusPending
	entries := []*models.OrderHistoryEntry{
		{OrderID: order.ID, EventID: "evt-1", EventType: models.EventTypeOrderCreated, ToStatus: models.OrderStatusPending, OccurredAt: time.Now().Add(-time.Minute)},
		{OrderID: order.ID, EventID: "evt-2", EventType: models.EventTypeOrderStatusChanged, FromStatus: &from, ToStatus: models.OrderStatusProcessing, OccurredAt: time.Now()},
	}
	for _, e := range entries {
		require.NoError(t, s.CreateOrderHistory(ctx, e))
	}

	history, err := s.ListOrderHistory(ctx, order.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Nil(t, history[0].FromStatus)
	assert.Equal(t, models.OrderStatusProcessing, history[1].ToStatus)
	require.NotNil(t, history[1].FromStatus)
	assert.Equal(t, models.OrderStatusPending, *history[1].FromStatus)
}

func TestWithTxRollsBack(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	p := seedProduct(t, s, "Widget", "5.00", 3, nil, nil)

	err := s.WithTx(ctx, func(tx *Tx) error {
		ok, err := tx.DecrementStock(ctx, p.ID, 3)
		require.NoError(t, err)
		require.True(t, ok)
		return assert.AnError
	})
	assert.ErrorIs(t, err, assert.AnError)

	got, err := s.GetProductByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, got.Stock)
}

func decPtr(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func boolPtr(b bool) *bool { return &b }
