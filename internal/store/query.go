package store

import (
	"math"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"storefront-service/internal/models"
)

const (
	DefaultPage  = 1
	DefaultLimit = 10
)

// SortOrder is the direction of a sort
type SortOrder string

const (
	SortAsc  SortOrder = "ASC"
	SortDesc SortOrder = "DESC"
)

func (o SortOrder) sql() string {
	if strings.EqualFold(string(o), string(SortAsc)) {
		return "ASC"
	}
	return "DESC"
}

// Pagination selects one page of a result set
type Pagination struct {
	Page  int
	Limit int
}

func (p Pagination) normalized() Pagination {
	if p.Page < 1 {
		p.Page = DefaultPage
	}
	if p.Limit < 1 {
		p.Limit = DefaultLimit
	}
	return p
}

func (p Pagination) offset() int {
	return (p.Page - 1) * p.Limit
}

// PageMeta describes where a page sits in the full result set
type PageMeta struct {
	Page            int   `json:"page"`
	Limit           int   `json:"limit"`
	Total           int64 `json:"total"`
	TotalPages      int   `json:"totalPages"`
	HasNextPage     bool  `json:"hasNextPage"`
	HasPreviousPage bool  `json:"hasPreviousPage"`
}

// NewPageMeta computes pagination metadata for total matching rows
func NewPageMeta(p Pagination, total int64) PageMeta {
	p = p.normalized()
	totalPages := int(math.Ceil(float64(total) / float64(p.Limit)))
	return PageMeta{
		Page:            p.Page,
		Limit:           p.Limit,
		Total:           total,
		TotalPages:      totalPages,
		HasNextPage:     p.Page < totalPages,
		HasPreviousPage: p.Page > 1,
	}
}

// ProductFilter narrows a product listing
type ProductFilter struct {
	Pagination
	Search    string
	Category  string
	MinPrice  *decimal.Decimal
	MaxPrice  *decimal.Decimal
	InStock   *bool
	SortBy    string
	SortOrder SortOrder
}

// OrderFilter narrows an order listing
type OrderFilter struct {
	Pagination
	Status    models.OrderStatus
	Search    string
	FromDate  *time.Time
	ToDate    *time.Time
	SortBy    string
	SortOrder SortOrder
}

// ProductSortColumns maps API sort fields to product columns
var ProductSortColumns = map[string]string{
	"name":      "name",
	"price":     "price",
	"stock":     "stock",
	"createdAt": "created_at",
}

// OrderSortColumns maps API sort fields to order columns
var OrderSortColumns = map[string]string{
	"createdAt":    "o.created_at",
	"totalAmount":  "o.total_amount",
	"customerName": "o.customer_name",
	"status":       "o.status",
}

// orderBy renders an ORDER BY clause with id as tie-breaker, so pages over
// equal sort keys never overlap
func orderBy(columns map[string]string, field string, order SortOrder, fallback, idColumn string) string {
	column, ok := columns[field]
	if !ok {
		column = fallback
	}
	dir := order.sql()
	return " ORDER BY " + column + " " + dir + ", " + idColumn + " " + dir
}

// where accumulates AND-ed conditions and their arguments
type where struct {
	conds []string
	args  []interface{}
}

func (w *where) add(cond string, args ...interface{}) {
	w.conds = append(w.conds, cond)
	w.args = append(w.args, args...)
}

// search adds a case-insensitive substring match OR-ed across columns
func (w *where) search(term string, columns ...string) {
	pattern := "%" + escapeLike(strings.ToLower(term)) + "%"
	parts := make([]string, len(columns))
	for i, col := range columns {
		parts[i] = "LOWER(" + col + ") LIKE ? ESCAPE '\\'"
		w.args = append(w.args, pattern)
	}
	w.conds = append(w.conds, "("+strings.Join(parts, " OR ")+")")
}

func (w *where) sql() string {
	if len(w.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.conds, " AND ")
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
