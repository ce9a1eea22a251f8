// Package geoerr holds the error types shared by the tiling core.
package geoerr

import (
	"errors"
	"fmt"
)

var (
	ErrValidation = errors.New("validation error")
	ErrRange      = errors.New("range error")
)

// ValidationError reports malformed input: a bad grid cell symbol, an
// unsupported precision, a sampling rate outside [0,1] or a GeoJSON feature of
// the wrong type.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// RangeError reports a coordinate outside its latitude or longitude bounds.
type RangeError struct {
	Field string
	Value float64
	Min   float64
	Max   float64
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("%s %v out of range [%v, %v]", e.Field, e.Value, e.Min, e.Max)
}

func (e *RangeError) Is(target error) bool {
	return target == ErrRange
}

func Validation(field, format string, args ...interface{}) error {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

func Range(field string, value, min, max float64) error {
	return &RangeError{Field: field, Value: value, Min: min, Max: max}
}
