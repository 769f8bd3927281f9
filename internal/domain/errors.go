package domain

import (
	"errors"
	"fmt"
)

// Common domain errors that can occur during aggregation and ranking.
var (
	// ErrInvalidState indicates that a State operation received invalid input.
	ErrInvalidState = errors.New("invalid state")

	// ErrKeyNotFound indicates that a requested state key does not exist.
	ErrKeyNotFound = errors.New("key not found")

	// ErrInvalidMeasurement indicates a negative weight or a non-finite value
	// reaching the aggregator or combiner.
	ErrInvalidMeasurement = errors.New("invalid measurement")

	// ErrMissingCategory indicates that a composite term or ranking source
	// is absent from a subject's aggregates.
	ErrMissingCategory = errors.New("missing category")

	// ErrEmptyGroup indicates a lookup of a group that has no members.
	// Summaries never contain such groups; the error only surfaces on lookup.
	ErrEmptyGroup = errors.New("empty group")

	// ErrInvalidConfiguration indicates that configuration is invalid or incomplete.
	ErrInvalidConfiguration = errors.New("invalid configuration")
)

// StateError represents an error that occurred during State operations.
// It provides context about which key and operation caused the error.
type StateError struct {
	// Key is the name of the state key involved in the failed operation.
	Key string

	// Operation describes what operation was being performed when the error occurred.
	Operation string

	// Err is the underlying error that caused the operation to fail.
	Err error
}

// Error implements the error interface for StateError.
func (e *StateError) Error() string {
	return fmt.Sprintf("state error: operation=%s, key=%s, err=%v", e.Operation, e.Key, e.Err)
}

// Unwrap returns the underlying error.
func (e *StateError) Unwrap() error { return e.Err }

// NewStateError creates a new StateError with the given details.
func NewStateError(key, operation string, err error) *StateError {
	return &StateError{
		Key:       key,
		Operation: operation,
		Err:       err,
	}
}

// MissingStateError builds the StateError returned when a unit cannot find
// an input it requires.
func MissingStateError[T any](key Key[T], operation string) *StateError {
	return NewStateError(key.name, operation, ErrKeyNotFound)
}

// MeasurementError describes a measurement rejected by validation.
// It unwraps to ErrInvalidMeasurement.
type MeasurementError struct {
	SubjectID string
	Category  string
	Metric    string
	Reason    string
}

// Error implements the error interface for MeasurementError.
func (e *MeasurementError) Error() string {
	return fmt.Sprintf("invalid measurement: subject=%s, category=%s, metric=%s: %s",
		e.SubjectID, e.Category, e.Metric, e.Reason)
}

// Unwrap returns ErrInvalidMeasurement.
func (e *MeasurementError) Unwrap() error { return ErrInvalidMeasurement }

// NewMeasurementError creates a MeasurementError for m.
func NewMeasurementError(m Measurement, reason string) *MeasurementError {
	return &MeasurementError{
		SubjectID: m.SubjectID,
		Category:  m.Category,
		Metric:    m.Metric,
		Reason:    reason,
	}
}

// ValidationError represents an error that occurred during validation.
// It can contain multiple validation failures.
type ValidationError struct {
	// Entity is the name of the entity that failed validation.
	Entity string

	// Errors contains the list of validation error messages.
	Errors []string
}

// Error implements the error interface for ValidationError.
func (e *ValidationError) Error() string {
	if len(e.Errors) == 1 {
		return fmt.Sprintf("validation error for %s: %s", e.Entity, e.Errors[0])
	}
	return fmt.Sprintf("validation errors for %s: %v", e.Entity, e.Errors)
}

// Unwrap lets callers match ErrInvalidConfiguration.
func (e *ValidationError) Unwrap() error { return ErrInvalidConfiguration }

// AddError adds a new error message to the validation error.
func (e *ValidationError) AddError(msg string) { e.Errors = append(e.Errors, msg) }

// HasErrors returns true if there are any validation errors.
func (e *ValidationError) HasErrors() bool { return len(e.Errors) > 0 }

// NewValidationError creates a new ValidationError for the given entity.
func NewValidationError(entity string) *ValidationError {
	return &ValidationError{
		Entity: entity,
		Errors: make([]string, 0),
	}
}
