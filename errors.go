package mqnicgo

import "github.com/mqnic-project/mqnicgo/internal/errs"

// Error is the structured error type returned by every fallible operation
// in this package.
type Error = errs.Error

// ErrorCode categorizes an Error.
type ErrorCode = errs.Code

const (
	ErrCodeConfiguration      = errs.CodeConfiguration
	ErrCodeResourceExhaustion = errs.CodeResourceExhaustion
	ErrCodeBackpressure       = errs.CodeBackpressure
	ErrCodeInvariantViolation = errs.CodeInvariantViolation
	ErrCodeMMIOFailure        = errs.CodeMMIOFailure
)
