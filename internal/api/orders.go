package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"storefront-service/internal/apperror"
	"storefront-service/internal/service"
)

const idempotencyHeader = "Idempotency-Key"

// createOrder answers 201 for a new order and 200 when the idempotency key
// matched an existing one
func (h *Handler) createOrder(c *gin.Context) {
	var req service.CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, bindingError(err))
		return
	}

	req.IdempotencyKey = c.GetHeader(idempotencyHeader)
	if len(req.IdempotencyKey) > 100 {
		respondError(c, apperror.Validation("Idempotency-Key must be at most 100 characters"))
		return
	}

	order, created, err := h.orderService.Create(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	status := http.StatusCreated
	if !created {
		status = http.StatusOK
	}
	respond(c, status, order)
}

func (h *Handler) listOrders(c *gin.Context) {
	filter, err := h.orderFilter(c)
	if err != nil {
		respondError(c, err)
		return
	}

	orders, meta, err := h.orderService.FindAll(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}

	respondList(c, orders, meta)
}

func (h *Handler) orderStatistics(c *gin.Context) {
	stats, err := h.orderService.Statistics(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	respond(c, http.StatusOK, stats)
}

func (h *Handler) getOrder(c *gin.Context) {
	id, err := parseID(c)
	if err != nil {
		respondError(c, err)
		return
	}

	order, err := h.orderService.FindOne(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	respond(c, http.StatusOK, order)
}

func (h *Handler) updateOrder(c *gin.Context) {
	id, err := parseID(c)
	if err != nil {
		respondError(c, err)
		return
	}

	var req service.UpdateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, bindingError(err))
		return
	}

	order, err := h.orderService.Update(c.Request.Context(), id, &req)
	if err != nil {
		respondError(c, err)
		return
	}

	respond(c, http.StatusOK, order)
}

func (h *Handler) deleteOrder(c *gin.Context) {
	id, err := parseID(c)
	if err != nil {
		respondError(c, err)
		return
	}

	if err := h.orderService.Remove(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *Handler) orderHistory(c *gin.Context) {
	id, err := parseID(c)
	if err != nil {
		respondError(c, err)
		return
	}

	entries, err := h.orderService.History(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	respond(c, http.StatusOK, entries)
}
