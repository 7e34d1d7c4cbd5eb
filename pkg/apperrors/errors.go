package apperrors

import "errors"

// Standardized venue errors. Adapters translate wire-level failures into
// these so the engine can classify without parsing venue strings.
var (
	ErrNoOrderID             = errors.New("no order id in venue response")
	ErrOrderNotFound         = errors.New("order not found")
	ErrOrderRejected         = errors.New("order rejected")
	ErrInsufficientFunds     = errors.New("insufficient funds")
	ErrRateLimitExceeded     = errors.New("rate limit exceeded")
	ErrNetwork               = errors.New("network error")
	ErrInvalidSymbol         = errors.New("invalid symbol")
	ErrAuthenticationFailed  = errors.New("authentication failed")
	ErrInvalidOrderParameter = errors.New("invalid order parameter")
	ErrStreamClosed          = errors.New("user stream closed")
)

// Reconciliation errors.
var (
	ErrPositionMismatch = errors.New("venue positions inconsistent, refusing to start")
)
