package service

import (
	"errors"

	"storefront-service/internal/apperror"
)

func isClassified(err error) bool {
	var appErr *apperror.Error
	return errors.As(err, &appErr)
}

// internal passes classified errors through and wraps anything else as an
// internal error
func internal(err error, message string) error {
	var appErr *apperror.Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return apperror.Internal(err, message)
}
