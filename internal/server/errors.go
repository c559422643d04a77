package server

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrValidation indicates request validation failure
type ErrValidation struct {
	Field   string
	Message string
}

func (e *ErrValidation) Error() string {
	return fmt.Sprintf("validation error: %s - %s", e.Field, e.Message)
}

// ErrNotFound indicates a missing run or entry
type ErrNotFound struct {
	Kind string
	ID   string
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.ID)
}

// ErrBusy is returned while another run holds the store
var ErrBusy = errors.New("another run is in progress")

// ErrNoRunLog is returned by run log endpoints when no database is configured
var ErrNoRunLog = errors.New("run log is not configured")

// HTTPStatus returns the appropriate HTTP status code for an error
func HTTPStatus(err error) int {
	var (
		valErr      *ErrValidation
		notFoundErr *ErrNotFound
	)
	switch {
	case errors.As(err, &valErr):
		return http.StatusBadRequest
	case errors.As(err, &notFoundErr):
		return http.StatusNotFound
	case errors.Is(err, ErrBusy):
		return http.StatusConflict
	case errors.Is(err, ErrNoRunLog):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
