package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound = errors.New("domain: not found")

	// ErrExtractionExhausted is returned when there is no text to salvage.
	ErrExtractionExhausted = errors.New("domain: extraction exhausted: empty response text")

	ErrIllegalTransition = errors.New("domain: illegal session transition")

	// ErrSessionBusy rejects a second in-flight call on the same session.
	ErrSessionBusy = errors.New("domain: session has a request in flight")

	ErrValidation = errors.New("domain: validation failed")
)

// ValidationError reports malformed caller input.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// IllegalTransitionError is raised when an operation does not fit the session state.
type IllegalTransitionError struct {
	Op   string
	From SessionState
	To   SessionState
}

func (e *IllegalTransitionError) Error() string {
	if e.To == "" {
		return fmt.Sprintf("illegal session operation %q in state %s", e.Op, e.From)
	}
	return fmt.Sprintf("illegal session transition %s -> %s", e.From, e.To)
}

func (e *IllegalTransitionError) Is(target error) bool {
	return target == ErrIllegalTransition
}
