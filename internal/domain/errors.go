package domain

import "errors"

// Error taxonomy shared by repositories, services and handlers.
// Repositories wrap these with fmt.Errorf("...: %w", ErrX) so callers can use errors.Is.
var (
	ErrNotFound            = errors.New("not found")
	ErrConstraintViolation = errors.New("constraint violation")
	ErrUnavailable         = errors.New("backend unavailable")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrForbidden           = errors.New("forbidden")
	ErrInvalidArgument     = errors.New("invalid argument")
	ErrInvalidTransition   = errors.New("invalid status transition")
	ErrInsufficientFunds   = errors.New("insufficient funds")
	ErrHasDependents       = errors.New("has dependents")
	ErrDuplicateRequest    = errors.New("duplicate request in flight")
)
