// Resonate - Emotion-Aware Content Recommendation Engine
// Copyright 2026 Affect Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/affectlab/resonate

package engine

import (
	"errors"
	"fmt"
)

// Fault classes for the engine boundary. The core raises StorageFault and
// ErrRetrieverUnavailable; ValidationFault exists for the API layer, which
// owns range checking. Degraded retrieval is a condition, not an error:
// ranking proceeds with whatever candidates were returned and an empty set
// yields an empty list.
var (
	// ErrRetrieverUnavailable means the vector retriever timed out or its
	// circuit breaker is open. The request is retryable.
	ErrRetrieverUnavailable = errors.New("vector retriever unavailable")

	// ErrEngineClosed means the engine has been shut down.
	ErrEngineClosed = errors.New("engine closed")
)

// StorageFault wraps a Q-table or experience-log failure. The engine
// propagates it unmodified and never retries internally; retries are the
// collaborator's responsibility.
type StorageFault struct {
	// Op names the failed operation ("q update", "experience append", ...).
	Op string

	// Err is the underlying storage error.
	Err error
}

// Error implements the error interface.
func (f *StorageFault) Error() string {
	return fmt.Sprintf("storage fault during %s: %v", f.Op, f.Err)
}

// Unwrap supports errors.Is and errors.As against the underlying error.
func (f *StorageFault) Unwrap() error { return f.Err }

// NewStorageFault wraps err as a StorageFault. Returns nil for nil err.
func NewStorageFault(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StorageFault{Op: op, Err: err}
}

// IsStorageFault reports whether err is or wraps a StorageFault.
func IsStorageFault(err error) bool {
	var f *StorageFault
	return errors.As(err, &f)
}

// ValidationFault marks malformed or out-of-range input. The core never
// raises it on its own paths; the API boundary constructs it so callers
// can distinguish contract violations from internal failures.
type ValidationFault struct {
	// Field is the offending input field.
	Field string

	// Reason describes the violated constraint.
	Reason string
}

// Error implements the error interface.
func (f *ValidationFault) Error() string {
	return fmt.Sprintf("invalid %s: %s", f.Field, f.Reason)
}

// NewValidationFault builds a ValidationFault for one field.
func NewValidationFault(field, reason string) error {
	return &ValidationFault{Field: field, Reason: reason}
}

// IsValidationFault reports whether err is or wraps a ValidationFault.
func IsValidationFault(err error) bool {
	var f *ValidationFault
	return errors.As(err, &f)
}
