package outliers

import (
	"errors"
	"fmt"
)

// Sentinel errors, match with errors.Is. The concrete error types below
// carry the details and can be extracted with errors.As.
var (
	ErrInvalidMethod    = errors.New("invalid method")
	ErrInvalidParameter = errors.New("invalid parameter")
	ErrInsufficientData = errors.New("insufficient data")
	ErrEmptyBound       = errors.New("empty bound")
)

// InvalidMethodError is returned when the method name is not recognized.
type InvalidMethodError struct {
	Method string
}

func (e *InvalidMethodError) Error() string {
	return fmt.Sprintf("invalid method %q (want one of %s)", e.Method, methodNames())
}

// Is reports ErrInvalidMethod.
func (e *InvalidMethodError) Is(target error) bool { return target == ErrInvalidMethod }

// InvalidParameterError is returned when a method parameter is out of range.
type InvalidParameterError struct {
	Name   string
	Value  any
	Reason string
}

func (e *InvalidParameterError) Error() string {
	return fmt.Sprintf("invalid %s=%v: %s", e.Name, e.Value, e.Reason)
}

// Is reports ErrInvalidParameter.
func (e *InvalidParameterError) Is(target error) bool { return target == ErrInvalidParameter }

// InsufficientDataError is returned when the data frame can't support the
// requested computation. Column is empty for frame level problems.
type InsufficientDataError struct {
	Column string
	Reason string
}

func (e *InsufficientDataError) Error() string {
	if e.Column == "" {
		return "insufficient data: " + e.Reason
	}
	return fmt.Sprintf("insufficient data in %q: %s", e.Column, e.Reason)
}

// Is reports ErrInsufficientData.
func (e *InsufficientDataError) Is(target error) bool { return target == ErrInsufficientData }

// EmptyBoundError is returned in strict mode when no bound can be derived
// for a column, e.g. when every z-score is above the threshold.
type EmptyBoundError struct {
	Column string
	Method Method
}

func (e *EmptyBoundError) Error() string {
	return fmt.Sprintf("%s: no bound for %q", e.Method, e.Column)
}

// Is reports ErrEmptyBound.
func (e *EmptyBoundError) Is(target error) bool { return target == ErrEmptyBound }
