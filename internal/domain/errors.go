package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidParameter matches both ValidationError and InvalidParameterError
	ErrInvalidParameter = errors.New("invalid parameter")
	ErrUnknownUser      = errors.New("unknown user")
	ErrInsufficientData = errors.New("insufficient data")
)

// ValidationError reports a missing or out-of-range parameter
type ValidationError struct {
	Field   string
	Value   float64
	Min     float64
	Max     float64
	Message string
}

func (e *ValidationError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("%s must be between %g and %g (got %g)", e.Field, e.Min, e.Max, e.Value)
}

func (e *ValidationError) Unwrap() error { return ErrInvalidParameter }

// InvalidParameterError reports an unknown technique or malformed parameter
type InvalidParameterError struct {
	Field  string
	Reason string
}

func (e *InvalidParameterError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *InvalidParameterError) Unwrap() error { return ErrInvalidParameter }

// UnknownUserError is returned when a user id is not part of a dataset
type UnknownUserError struct {
	UserID string
}

func (e *UnknownUserError) Error() string {
	return fmt.Sprintf("user %s not found", e.UserID)
}

func (e *UnknownUserError) Unwrap() error { return ErrUnknownUser }

// InsufficientDataError is returned by operations that cannot degrade
// gracefully when a user has too few points
type InsufficientDataError struct {
	UserID string
	Have   int
	Need   int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("user %s has %d points, need at least %d", e.UserID, e.Have, e.Need)
}

func (e *InsufficientDataError) Unwrap() error { return ErrInsufficientData }

// FieldOf extracts the offending field name from a parameter error
func FieldOf(err error) string {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.Field
	}
	var ie *InvalidParameterError
	if errors.As(err, &ie) {
		return ie.Field
	}
	return ""
}
