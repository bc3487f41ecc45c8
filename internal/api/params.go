package api

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"storefront-service/internal/apperror"
	"storefront-service/internal/models"
	"storefront-service/internal/store"
)

const dateOnly = "2006-01-02"

type productQuery struct {
	Page      int    `form:"page" binding:"omitempty,min=1"`
	Limit     int    `form:"limit" binding:"omitempty,min=1"`
	Search    string `form:"search" binding:"omitempty,max=100"`
	Category  string `form:"category" binding:"omitempty,max=50"`
	MinPrice  string `form:"minPrice"`
	MaxPrice  string `form:"maxPrice"`
	InStock   *bool  `form:"inStock"`
	SortBy    string `form:"sortBy" binding:"omitempty,oneof=name price stock createdAt"`
	SortOrder string `form:"sortOrder" binding:"omitempty,oneof=ASC DESC asc desc"`
}

type orderQuery struct {
	Page      int    `form:"page" binding:"omitempty,min=1"`
	Limit     int    `form:"limit" binding:"omitempty,min=1"`
	Status    string `form:"status" binding:"omitempty,oneof=pending processing completed cancelled"`
	Search    string `form:"search" binding:"omitempty,max=100"`
	FromDate  string `form:"fromDate"`
	ToDate    string `form:"toDate"`
	SortBy    string `form:"sortBy" binding:"omitempty,oneof=createdAt totalAmount customerName status"`
	SortOrder string `form:"sortOrder" binding:"omitempty,oneof=ASC DESC asc desc"`
}

func parseID(c *gin.Context) (int64, error) {
	raw := c.Param("id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id < 1 {
		return 0, apperror.Validation("Invalid ID").
			WithDetails(apperror.Detail{Field: "id", Message: "must be a positive integer", Value: raw})
	}
	return id, nil
}

func (h *Handler) pagination(page, limit int) (store.Pagination, error) {
	if page == 0 {
		page = store.DefaultPage
	}
	if limit == 0 {
		limit = h.cfg.DefaultPageLimit
	}
	if limit > h.cfg.MaxPageLimit {
		return store.Pagination{}, apperror.Validation("limit must not exceed %d", h.cfg.MaxPageLimit).
			WithDetails(apperror.Detail{Field: "limit", Message: "must be at most " + strconv.Itoa(h.cfg.MaxPageLimit), Value: limit})
	}
	return store.Pagination{Page: page, Limit: limit}, nil
}

func sortOrder(raw string) store.SortOrder {
	if raw == "ASC" || raw == "asc" {
		return store.SortAsc
	}
	return store.SortDesc
}

func parseDecimal(field, raw string) (*decimal.Decimal, error) {
	if raw == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil || d.IsNegative() {
		return nil, apperror.Validation("Invalid %s", field).
			WithDetails(apperror.Detail{Field: field, Message: "must be a non-negative number", Value: raw})
	}
	return &d, nil
}

// parseDate accepts RFC 3339 timestamps and plain dates. A plain date used
// as an upper bound covers the whole day.
func parseDate(field, raw string, upperBound bool) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return &t, nil
	}
	t, err := time.Parse(dateOnly, raw)
	if err != nil {
		return nil, apperror.Validation("Invalid %s", field).
			WithDetails(apperror.Detail{Field: field, Message: "must be a date (YYYY-MM-DD) or RFC 3339 timestamp", Value: raw})
	}
	if upperBound {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return &t, nil
}

func (h *Handler) productFilter(c *gin.Context) (store.ProductFilter, error) {
	var q productQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		return store.ProductFilter{}, bindingError(err)
	}

	page, err := h.pagination(q.Page, q.Limit)
	if err != nil {
		return store.ProductFilter{}, err
	}
	minPrice, err := parseDecimal("minPrice", q.MinPrice)
	if err != nil {
		return store.ProductFilter{}, err
	}
	maxPrice, err := parseDecimal("maxPrice", q.MaxPrice)
	if err != nil {
		return store.ProductFilter{}, err
	}
	if minPrice != nil && maxPrice != nil && minPrice.GreaterThan(*maxPrice) {
		return store.ProductFilter{}, apperror.Validation("minPrice must not exceed maxPrice")
	}

	return store.ProductFilter{
		Pagination: page,
		Search:     q.Search,
		Category:   q.Category,
		MinPrice:   minPrice,
		MaxPrice:   maxPrice,
		InStock:    q.InStock,
		SortBy:     q.SortBy,
		SortOrder:  sortOrder(q.SortOrder),
	}, nil
}

func (h *Handler) orderFilter(c *gin.Context) (store.OrderFilter, error) {
	var q orderQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		return store.OrderFilter{}, bindingError(err)
	}

	page, err := h.pagination(q.Page, q.Limit)
	if err != nil {
		return store.OrderFilter{}, err
	}
	from, err := parseDate("fromDate", q.FromDate, false)
	if err != nil {
		return store.OrderFilter{}, err
	}
	to, err := parseDate("toDate", q.ToDate, true)
	if err != nil {
		return store.OrderFilter{}, err
	}
	if from != nil && to != nil && from.After(*to) {
		return store.OrderFilter{}, apperror.Validation("fromDate must not be after toDate")
	}

	return store.OrderFilter{
		Pagination: page,
		Status:     models.OrderStatus(q.Status),
		Search:     q.Search,
		FromDate:   from,
		ToDate:     to,
		SortBy:     q.SortBy,
		SortOrder:  sortOrder(q.SortOrder),
	}, nil
}
