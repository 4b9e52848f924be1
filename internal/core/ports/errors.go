package ports

import (
	"errors"
	"fmt"
)

// ErrProvider matches every ProviderError.
var ErrProvider = errors.New("provider error")

// ProviderReason classifies upstream agent failures.
type ProviderReason string

const (
	ReasonTimeout     ProviderReason = "timeout"
	ReasonUnavailable ProviderReason = "unavailable"
	ReasonBadStatus   ProviderReason = "bad_status"
	ReasonRunFailed   ProviderReason = "run_failed"
	ReasonEmpty       ProviderReason = "empty"
	ReasonCircuitOpen ProviderReason = "circuit_open"
	ReasonCanceled    ProviderReason = "canceled"
)

// ProviderError wraps a failed, timed out or unusable agent call.
type ProviderError struct {
	Provider string
	Reason   ProviderReason
	Err      error
}

func (e *ProviderError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Provider, e.Reason)
	}
	return fmt.Sprintf("%s: %s: %v", e.Provider, e.Reason, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

func (e *ProviderError) Is(target error) bool {
	return target == ErrProvider
}

// NewProviderError builds a ProviderError.
func NewProviderError(provider string, reason ProviderReason, err error) *ProviderError {
	return &ProviderError{Provider: provider, Reason: reason, Err: err}
}
