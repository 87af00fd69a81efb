package account

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrDuplicateUsername = errors.New("username already exists")
	ErrNotFound          = errors.New("user not found")
	ErrInvalidCredential = errors.New("incorrect password")
	ErrForbidden         = errors.New("not allowed to modify this user")
	ErrInvalidInput      = errors.New("invalid input")
	ErrInvalidUpdate     = errors.New("invalid update")
	ErrPersistence       = errors.New("persistence failure")
)

func persistenceErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrPersistence, op, err)
}

// statusFor maps a service error onto an HTTP status code.
func statusFor(err error) int {
	switch {
	case errors.Is(err, ErrDuplicateUsername):
		return http.StatusConflict
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrInvalidCredential):
		return http.StatusUnauthorized
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrInvalidUpdate):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
