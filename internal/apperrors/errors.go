// Package apperrors defines the sentinel errors shared by the core services.
// Callers classify failures with errors.Is; the HTTP layer maps them to
// status codes. Idempotent operations (referral code lookup, cashback
// crediting) never return a duplicate error: they return the existing result.
package apperrors

import "errors"

var (
	ErrNotFound            = errors.New("not found")
	ErrInvalidInput        = errors.New("invalid input")
	ErrChannelUnavailable  = errors.New("no delivery channel available")
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
)
