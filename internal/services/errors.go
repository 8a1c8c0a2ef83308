package services

import "errors"

// Business-rule violations. Handlers map them to 4xx responses with errors.Is;
// wrapped errors carry the human-readable detail.
var (
	ErrNotFound           = errors.New("not found")
	ErrForbidden          = errors.New("forbidden")
	ErrValidation         = errors.New("validation failed")
	ErrInsufficientFunds  = errors.New("insufficient funds")
	ErrAlreadyPaid        = errors.New("order already paid")
	ErrInvalidTransition  = errors.New("invalid status transition")
	ErrServiceUnavailable = errors.New("service is unavailable")
	ErrSelfOrder          = errors.New("cannot order your own service")
	ErrBanned             = errors.New("user is banned")
	ErrNotCompleted       = errors.New("order is not completed")
	ErrReviewExists       = errors.New("review already exists for this order")
	ErrConflict           = errors.New("concurrent modification")
	ErrEditWindowClosed   = errors.New("message can no longer be edited")
)
