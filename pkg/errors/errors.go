package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a resource does not exist or is not visible
// to the caller.
type ErrNotFound struct {
	Resource string
	ID       string
}

func (e *ErrNotFound) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("%s not found", e.Resource)
	}
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// ErrInvalidArgument is returned for malformed or out-of-range input.
type ErrInvalidArgument struct {
	Field   string
	Message string
}

func (e *ErrInvalidArgument) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ErrInsufficientStock is returned when a requested quantity exceeds the
// product's available stock.
type ErrInsufficientStock struct {
	ProductID uuid.UUID
	Requested int
	Available int
}

func (e *ErrInsufficientStock) Error() string {
	return fmt.Sprintf("insufficient stock for product %s: requested %d, available %d",
		e.ProductID, e.Requested, e.Available)
}

// ErrInvalidState is returned when an operation is not allowed in the
// current state of an aggregate, e.g. checking out an empty cart.
type ErrInvalidState struct {
	Message string
}

func (e *ErrInvalidState) Error() string {
	return e.Message
}

// ErrConflict is returned when a concurrent write won or a uniqueness rule
// was violated.
type ErrConflict struct {
	Resource string
	Message  string
}

func (e *ErrConflict) Error() string {
	return fmt.Sprintf("%s conflict: %s", e.Resource, e.Message)
}

// ErrDependency wraps a failure of the persistence layer or another
// collaborator.
type ErrDependency struct {
	Op  string
	Err error
}

func (e *ErrDependency) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ErrDependency) Unwrap() error {
	return e.Err
}

type ErrUnauthorized struct {
	Message string
}

func (e *ErrUnauthorized) Error() string {
	return e.Message
}

type ErrForbidden struct {
	Message string
}

func (e *ErrForbidden) Error() string {
	return e.Message
}

// Dependency wraps err as an ErrDependency unless it already carries one of
// the typed errors of this package.
func Dependency(op string, err error) error {
	if err == nil {
		return nil
	}
	if HTTPStatus(err) != http.StatusInternalServerError {
		return err
	}
	return &ErrDependency{Op: op, Err: err}
}

// HTTPStatus maps an error to the status code the API responds with.
func HTTPStatus(err error) int {
	var (
		notFound     *ErrNotFound
		invalidArg   *ErrInvalidArgument
		stock        *ErrInsufficientStock
		invalidState *ErrInvalidState
		conflict     *ErrConflict
		dependency   *ErrDependency
		unauthorized *ErrUnauthorized
		forbidden    *ErrForbidden
	)

	switch {
	case err == nil:
		return http.StatusOK
	case stderrors.As(err, &notFound):
		return http.StatusNotFound
	case stderrors.As(err, &invalidArg),
		stderrors.As(err, &stock),
		stderrors.As(err, &invalidState):
		return http.StatusBadRequest
	case stderrors.As(err, &conflict):
		return http.StatusConflict
	case stderrors.As(err, &unauthorized):
		return http.StatusUnauthorized
	case stderrors.As(err, &forbidden):
		return http.StatusForbidden
	case stderrors.As(err, &dependency):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
