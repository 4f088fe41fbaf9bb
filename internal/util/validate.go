package util

import (
	"errors"
	"fmt"
	"time"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string `json:"field"`   // Field that failed validation
	Value   any    `json:"value"`   // Value that was provided
	Message string `json:"message"` // Human-readable error message
}

// Error implements the error interface for ValidationError.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

// Validator collects validation errors.
type Validator struct {
	errs []error
}

// Add records a failure for field.
func (v *Validator) Add(field string, value any, format string, args ...any) {
	v.errs = append(v.errs, &ValidationError{Field: field, Value: value, Message: fmt.Sprintf(format, args...)})
}

// Positive requires d > 0.
func (v *Validator) Positive(field string, d time.Duration) {
	if d <= 0 {
		v.Add(field, d, "must be positive")
	}
}

// NonNegative requires d >= 0.
func (v *Validator) NonNegative(field string, d time.Duration) {
	if d < 0 {
		v.Add(field, d, "must not be negative")
	}
}

// Probability requires 0 <= p <= 1.
func (v *Validator) Probability(field string, p float64) {
	if p < 0 || p > 1 {
		v.Add(field, p, "must be within [0, 1]")
	}
}

// Min requires n >= lo.
func (v *Validator) Min(field string, n, lo int) {
	if n < lo {
		v.Add(field, n, "must be at least %d", lo)
	}
}

// OneOf requires s to be one of allowed.
func (v *Validator) OneOf(field, s string, allowed ...string) {
	for _, a := range allowed {
		if s == a {
			return
		}
	}
	v.Add(field, s, "must be one of %v", allowed)
}

// Err returns the joined errors, or nil.
func (v *Validator) Err() error { return errors.Join(v.errs...) }
