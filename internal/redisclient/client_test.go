package redisclient

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()

	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}

	c, err := NewClient(addr, "", 0, "test:"+t.Name()+":", time.Minute)
	if err != nil {
		t.Skipf("Redis not available at %s: %v", addr, err)
	}

	ctx := context.Background()
	t.Cleanup(func() {
		_ = c.DeletePattern(ctx, "*")
		c.Close()
	})
	return c
}

type cachedProduct struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Stock int    `json:"stock"`
}

func TestSetAndGetJSON(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	require.NoError(t, c.SetJSON(ctx, "product:1", cachedProduct{ID: 1, Name: "Laptop", Stock: 3}))

	var got cachedProduct
	found, err := c.GetJSON(ctx, "product:1", &got)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, cachedProduct{ID: 1, Name: "Laptop", Stock: 3}, got)
}

func TestGetJSONMiss(t *testing.T) {
	c := newTestClient(t)

	var got cachedProduct
	found, err := c.GetJSON(context.Background(), "missing", &got)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestDeleteAndDeletePattern(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	for _, k := range []string{"product:1", "product:2", "orders:statistics"} {
		require.NoError(t, c.SetJSON(ctx, k, 1))
	}

	require.NoError(t, c.Delete(ctx, "orders:statistics"))
	require.NoError(t, c.DeletePattern(ctx, "product:*"))

	var v int
	for _, k := range []string{"product:1", "product:2", "orders:statistics"} {
		found, err := c.GetJSON(ctx, k, &v)
		require.NoError(t, err)
		assert.False(t, found, k)
	}
}
