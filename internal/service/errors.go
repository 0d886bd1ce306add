package service

import (
	"errors"
	"fmt"
)

var (
	ErrValidation      = errors.New("validation failed")
	ErrUnauthorized    = errors.New("unauthorized")
	ErrForbidden       = errors.New("forbidden")
	ErrNotFound        = errors.New("not found")
	ErrLimitReached    = errors.New("meal generation limit reached")
	ErrImageInProgress = errors.New("image generation in progress")
)

// validationError wraps ErrValidation with a client-facing message
func validationError(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// UpstreamError reports a non-2xx response from a vendor API
type UpstreamError struct {
	Service    string
	StatusCode int
	Payload    string
}

func (e *UpstreamError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("%s request failed: %s", e.Service, e.Payload)
	}
	return fmt.Sprintf("%s returned status %d: %s", e.Service, e.StatusCode, e.Payload)
}

// Retryable reports whether the failure is worth another attempt
func (e *UpstreamError) Retryable() bool {
	return e.StatusCode == 0 || e.StatusCode == 429 || e.StatusCode >= 500
}

// LimitReachedError carries the quota state for the upgrade prompt
type LimitReachedError struct {
	Tier        string
	Used        int
	Limit       int
	NextResetAt string
}

func (e *LimitReachedError) Error() string {
	return fmt.Sprintf("%s tier used %d of %d meal generations", e.Tier, e.Used, e.Limit)
}

func (e *LimitReachedError) Unwrap() error {
	return ErrLimitReached
}
