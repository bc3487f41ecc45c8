package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"storefront-service/internal/apperror"
	"storefront-service/internal/models"
	"storefront-service/internal/store"
	"storefront-service/internal/util"
)

const sharedLoadTimeout = 5 * time.Second

// ProductService handles catalog business logic
type ProductService struct {
	store  *store.Store
	cache  Cache
	loads  singleflight.Group
	logger *zap.Logger
}

// NewProductService creates a new product service. cache may be nil.
func NewProductService(store *store.Store, cache Cache) *ProductService {
	return &ProductService{
		store:  store,
		cache:  cache,
		logger: util.GetLogger(),
	}
}

// CreateProductRequest represents a request to create a product
type CreateProductRequest struct {
	Name        string           `json:"name" binding:"required,max=100"`
	Description *string          `json:"description" binding:"omitempty,max=500"`
	Price       *decimal.Decimal `json:"price" binding:"required"`
	Stock       *int             `json:"stock" binding:"required,min=0"`
	SKU         *string          `json:"sku" binding:"omitempty,max=50"`
	Category    *string          `json:"category" binding:"omitempty,max=50"`
	ImageURL    *string          `json:"imageUrl" binding:"omitempty,url"`
	IsActive    *bool            `json:"isActive"`
}

// UpdateProductRequest carries a partial product update. Nil fields are left
// unchanged; an empty string clears an optional text field.
type UpdateProductRequest struct {
	Name        *string          `json:"name" binding:"omitempty,min=1,max=100"`
	Description *string          `json:"description" binding:"omitempty,max=500"`
	Price       *decimal.Decimal `json:"price"`
	Stock       *int             `json:"stock" binding:"omitempty,min=0"`
	SKU         *string          `json:"sku" binding:"omitempty,max=50"`
	Category    *string          `json:"category" binding:"omitempty,max=50"`
	ImageURL    *string          `json:"imageUrl" binding:"omitempty,url"`
	IsActive    *bool            `json:"isActive"`
}

// Create adds a product to the catalog
func (s *ProductService) Create(ctx context.Context, req *CreateProductRequest) (*models.Product, error) {
	ctx, span := util.StartSpan(ctx, "ProductService.Create")
	defer span.End()

	if req.Price == nil {
		return nil, apperror.Validation("price is required")
	}
	if err := checkPrice(*req.Price); err != nil {
		return nil, err
	}
	if req.Stock == nil || *req.Stock < 0 {
		return nil, apperror.Validation("stock must be a non-negative integer")
	}

	sku := optional(req.SKU)
	if sku != nil {
		if err := s.ensureSKUFree(ctx, *sku); err != nil {
			return nil, err
		}
	}

	product := &models.Product{
		Name:        strings.TrimSpace(req.Name),
		Description: optional(req.Description),
		Price:       *req.Price,
		Stock:       *req.Stock,
		SKU:         sku,
		Category:    optional(req.Category),
		ImageURL:    optional(req.ImageURL),
		IsActive:    true,
	}
	if req.IsActive != nil {
		product.IsActive = *req.IsActive
	}

	if err := s.store.CreateProduct(ctx, product); err != nil {
		if store.IsUniqueViolation(err) && sku != nil {
			return nil, skuConflict(*sku)
		}
		util.RecordError(span, err)
		return nil, apperror.Internal(err, "failed to create product")
	}

	util.ProductsCreatedTotal.Inc()
	cacheDelete(ctx, s.cache, s.logger, categoryCountsKey)
	s.logger.Info("Product created", zap.Int64("product_id", product.ID), zap.String("name", product.Name))

	return product, nil
}

// FindOne returns a product that has not been deleted. Concurrent misses for
// the same id share one database read.
func (s *ProductService) FindOne(ctx context.Context, id int64) (*models.Product, error) {
	ctx, span := util.StartSpan(ctx, "ProductService.FindOne", attribute.Int64("product.id", id))
	defer span.End()

	key := productKey(id)

	var cached models.Product
	if cacheGet(ctx, s.cache, s.logger, "product", key, &cached) {
		return &cached, nil
	}

	// The flight is shared, so it must outlive the caller that started it.
	v, err, _ := s.loads.Do(key, func() (interface{}, error) {
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sharedLoadTimeout)
		defer cancel()

		product, err := s.load(loadCtx, id)
		if err != nil {
			return nil, err
		}
		cacheSet(loadCtx, s.cache, s.logger, key, product)
		return product, nil
	})
	if err != nil {
		return nil, err
	}

	product := *v.(*models.Product)
	return &product, nil
}

// Update applies a partial update to a product
func (s *ProductService) Update(ctx context.Context, id int64, req *UpdateProductRequest) (*models.Product, error) {
	ctx, span := util.StartSpan(ctx, "ProductService.Update", attribute.Int64("product.id", id))
	defer span.End()

	product, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.SKU != nil {
		sku := optional(req.SKU)
		if sku != nil && (product.SKU == nil || *product.SKU != *sku) {
			if err := s.ensureSKUFree(ctx, *sku); err != nil {
				return nil, err
			}
		}
		product.SKU = sku
	}
	if req.Price != nil {
		if err := checkPrice(*req.Price); err != nil {
			return nil, err
		}
		product.Price = *req.Price
	}
	if req.Name != nil {
		product.Name = strings.TrimSpace(*req.Name)
	}
	if req.Description != nil {
		product.Description = optional(req.Description)
	}
	if req.Stock != nil {
		product.Stock = *req.Stock
	}
	if req.Category != nil {
		product.Category = optional(req.Category)
	}
	if req.ImageURL != nil {
		product.ImageURL = optional(req.ImageURL)
	}
	if req.IsActive != nil {
		product.IsActive = *req.IsActive
	}

	if err := s.store.UpdateProduct(ctx, product); err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			return nil, productNotFound(id)
		case store.IsUniqueViolation(err) && product.SKU != nil:
			return nil, skuConflict(*product.SKU)
		}
		util.RecordError(span, err)
		return nil, apperror.Internal(err, "failed to update product")
	}

	cacheDelete(ctx, s.cache, s.logger, productKey(id), categoryCountsKey)
	s.logger.Info("Product updated", zap.Int64("product_id", id))

	return product, nil
}

// Remove soft-deletes a product. Orders that reference it keep their items.
func (s *ProductService) Remove(ctx context.Context, id int64) error {
	ctx, span := util.StartSpan(ctx, "ProductService.Remove", attribute.Int64("product.id", id))
	defer span.End()

	if _, err := s.load(ctx, id); err != nil {
		return err
	}

	if err := s.store.SoftDeleteProduct(ctx, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return productNotFound(id)
		}
		util.RecordError(span, err)
		return apperror.Internal(err, "failed to delete product")
	}

	cacheDelete(ctx, s.cache, s.logger, productKey(id), categoryCountsKey)
	s.logger.Info("Product deleted", zap.Int64("product_id", id))

	return nil
}

// FindAll returns one page of the catalog with its pagination metadata
func (s *ProductService) FindAll(ctx context.Context, filter store.ProductFilter) ([]models.Product, store.PageMeta, error) {
	ctx, span := util.StartSpan(ctx, "ProductService.FindAll")
	defer span.End()

	products, total, err := s.store.ListProducts(ctx, filter)
	if err != nil {
		util.RecordError(span, err)
		return nil, store.PageMeta{}, apperror.Internal(err, "failed to list products")
	}

	return products, store.NewPageMeta(filter.Pagination, total), nil
}

// CountByCategory reports how many active products each category holds
func (s *ProductService) CountByCategory(ctx context.Context) ([]models.CategoryCount, error) {
	ctx, span := util.StartSpan(ctx, "ProductService.CountByCategory")
	defer span.End()

	var counts []models.CategoryCount
	if cacheGet(ctx, s.cache, s.logger, "category_counts", categoryCountsKey, &counts) {
		return counts, nil
	}

	counts, err := s.store.CountProductsByCategory(ctx)
	if err != nil {
		util.RecordError(span, err)
		return nil, apperror.Internal(err, "failed to count products by category")
	}

	cacheSet(ctx, s.cache, s.logger, categoryCountsKey, counts)
	return counts, nil
}

func (s *ProductService) load(ctx context.Context, id int64) (*models.Product, error) {
	product, err := s.store.GetProductByID(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, productNotFound(id)
	}
	if err != nil {
		return nil, apperror.Internal(err, "failed to load product")
	}
	return product, nil
}

func (s *ProductService) ensureSKUFree(ctx context.Context, sku string) error {
	exists, err := s.store.SKUExists(ctx, sku)
	if err != nil {
		return apperror.Internal(err, "failed to check sku")
	}
	if exists {
		return skuConflict(sku)
	}
	return nil
}

func checkPrice(price decimal.Decimal) error {
	if price.IsNegative() {
		return apperror.Validation("price must not be negative").
			WithDetails(apperror.Detail{Field: "price", Message: "must be greater than or equal to 0", Value: price})
	}
	if !price.Equal(price.Round(2)) {
		return apperror.Validation("price must have at most 2 decimal places").
			WithDetails(apperror.Detail{Field: "price", Message: "at most 2 decimal places", Value: price})
	}
	return nil
}

func productNotFound(id int64) error {
	return apperror.NotFound("Product with ID %d not found", id)
}

func skuConflict(sku string) error {
	return apperror.Conflict("Product with SKU '%s' already exists", sku)
}

// optional trims s and maps blank input to nil
func optional(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}
