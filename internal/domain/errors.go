package domain

import "errors"

// Sentinel errors for engine-level failure modes. The session layer maps
// these to ExecutionReport statuses; they never cross the RPC boundary as
// raw errors.
var (
	ErrOrderNotFound = errors.New("can not find order")
	ErrImproperMatch = errors.New("improper matched order")
	ErrSessionGone   = errors.New("owning session has gone away")
)

// ValidationError represents a new-order request validation failure. Its
// message is carried verbatim in the ORDER_REJECT report.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}
