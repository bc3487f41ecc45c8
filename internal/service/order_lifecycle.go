package service

import (
	"storefront-service/internal/apperror"
	"storefront-service/internal/models"
)

// checkUpdate decides whether an order in status current accepts an update
// that may move it to next. A nil next means the status is left alone.
//
// Cancelled orders are frozen. Completed orders may not go back to pending;
// other moves out of completed are allowed.
func checkUpdate(current models.OrderStatus, next *models.OrderStatus) error {
	if current == models.OrderStatusCancelled {
		return apperror.Conflict("Cannot update cancelled orders")
	}
	if next == nil {
		return nil
	}
	if !next.Valid() {
		return apperror.Validation("invalid order status %q", string(*next)).
			WithDetails(apperror.Detail{Field: "status", Message: "must be one of pending, processing, completed, cancelled", Value: string(*next)})
	}
	if current == models.OrderStatusCompleted && *next == models.OrderStatusPending {
		return apperror.Conflict("Cannot change completed order back to pending")
	}
	return nil
}

// checkCancel decides whether an order in status current may be cancelled
// through removal
func checkCancel(current models.OrderStatus) error {
	if current == models.OrderStatusCompleted {
		return apperror.Conflict("Cannot cancel completed orders")
	}
	return nil
}
