package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"storefront-service/internal/models"
)

const productColumns = `id, name, description, price, stock, sku, category, image_url,
	is_active, created_at, updated_at, deleted_at`

// CreateProduct inserts a product and fills in its id and timestamps
func (c conn) CreateProduct(ctx context.Context, p *models.Product) error {
	ts := now()
	query := `
		INSERT INTO products (name, description, price, stock, sku, category, image_url, is_active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id`

	if err := c.get(ctx, &p.ID, query,
		p.Name, p.Description, p.Price, p.Stock, p.SKU, p.Category, p.ImageURL, p.IsActive, ts, ts); err != nil {
		return err
	}
	p.CreatedAt, p.UpdatedAt = ts, ts
	return nil
}

// GetProductByID retrieves a product that has not been soft-deleted
func (c conn) GetProductByID(ctx context.Context, id int64) (*models.Product, error) {
	var product models.Product
	err := c.get(ctx, &product,
		"SELECT "+productColumns+" FROM products WHERE id = ? AND deleted_at IS NULL", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("product %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// SKUExists reports whether any product row, soft-deleted ones included,
// carries the sku
func (c conn) SKUExists(ctx context.Context, sku string) (bool, error) {
	var exists bool
	err := c.get(ctx, &exists, "SELECT EXISTS(SELECT 1 FROM products WHERE sku = ?)", sku)
	return exists, err
}

// UpdateProduct writes every mutable column of p
func (c conn) UpdateProduct(ctx context.Context, p *models.Product) error {
	ts := now()
	n, err := c.exec(ctx, `
		UPDATE products
		SET name = ?, description = ?, price = ?, stock = ?, sku = ?, category = ?,
			image_url = ?, is_active = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL`,
		p.Name, p.Description, p.Price, p.Stock, p.SKU, p.Category, p.ImageURL, p.IsActive, ts, p.ID)
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("product %d: %w", p.ID, ErrNotFound)
	}
	p.UpdatedAt = ts
	return nil
}

// SoftDeleteProduct sets the deletion marker of a product
func (c conn) SoftDeleteProduct(ctx context.Context, id int64) error {
	ts := now()
	n, err := c.exec(ctx,
		"UPDATE products SET deleted_at = ?, updated_at = ? WHERE id = ? AND deleted_at IS NULL",
		ts, ts, id)
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("product %d: %w", id, ErrNotFound)
	}
	return nil
}

// GetActiveProductsByIDs loads the active, non-deleted products among ids.
// Inside a transaction on PostgreSQL the rows stay locked until commit.
func (c conn) GetActiveProductsByIDs(ctx context.Context, ids []int64) ([]models.Product, error) {
	if len(ids) == 0 {
		return []models.Product{}, nil
	}

	query, args, err := sqlx.In(
		"SELECT "+productColumns+" FROM products WHERE id IN (?) AND is_active = TRUE AND deleted_at IS NULL ORDER BY id"+c.lockClause(),
		ids)
	if err != nil {
		return nil, err
	}

	var products []models.Product
	err = c.selectRows(ctx, &products, query, args...)
	return products, err
}

// DecrementStock removes quantity units from a product's stock only when
// enough remain. It reports false when the stock was insufficient.
func (c conn) DecrementStock(ctx context.Context, productID int64, quantity int) (bool, error) {
	n, err := c.exec(ctx, `
		UPDATE products SET stock = stock - ?, updated_at = ?
		WHERE id = ? AND stock >= ? AND deleted_at IS NULL`,
		quantity, now(), productID, quantity)
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// ListProducts returns one page of active products matching filter and the
// total number of matches
func (c conn) ListProducts(ctx context.Context, filter ProductFilter) ([]models.Product, int64, error) {
	page := filter.Pagination.normalized()

	w := &where{}
	w.add("is_active = TRUE")
	w.add("deleted_at IS NULL")
	if filter.Search != "" {
		w.search(filter.Search, "name", "description", "sku")
	}
	if filter.Category != "" {
		w.add("category = ?", filter.Category)
	}
	if filter.MinPrice != nil {
		w.add("price >= ?", *filter.MinPrice)
	}
	if filter.MaxPrice != nil {
		w.add("price <= ?", *filter.MaxPrice)
	}
	if filter.InStock != nil {
		if *filter.InStock {
			w.add("stock > 0")
		} else {
			w.add("stock = 0")
		}
	}

	var total int64
	if err := c.get(ctx, &total, "SELECT COUNT(*) FROM products"+w.sql(), w.args...); err != nil {
		return nil, 0, fmt.Errorf("failed to count products: %w", err)
	}

	query := "SELECT " + productColumns + " FROM products" + w.sql() +
		orderBy(ProductSortColumns, filter.SortBy, filter.SortOrder, "created_at", "id") +
		" LIMIT ? OFFSET ?"
	args := append(append([]interface{}{}, w.args...), page.Limit, page.offset())

	products := []models.Product{}
	if err := c.selectRows(ctx, &products, query, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to list products: %w", err)
	}
	return products, total, nil
}

// CountProductsByCategory groups active products by category
func (c conn) CountProductsByCategory(ctx context.Context) ([]models.CategoryCount, error) {
	label := "'" + models.UncategorizedLabel + "'"
	query := `
		SELECT COALESCE(NULLIF(category, ''), ` + label + `) AS category, COUNT(id) AS count
		FROM products
		WHERE is_active = TRUE AND deleted_at IS NULL
		GROUP BY 1
		ORDER BY count DESC, category ASC`

	counts := []models.CategoryCount{}
	err := c.selectRows(ctx, &counts, query)
	return counts, err
}
