package settings

import "fmt"

// UnknownFieldError is returned for a key that names no settings field.
type UnknownFieldError struct {
	Key string
}

func (e *UnknownFieldError) Error() string {
	return fmt.Sprintf("unknown setting %q", e.Key)
}

// TypeError is returned when a value does not match the field's kind.
type TypeError struct {
	Key  string
	Want Kind
	Got  any
}

func (e *TypeError) Error() string {
	return fmt.Sprintf("setting %q: want %s, got %T", e.Key, e.Want, e.Got)
}

// RangeError is returned by Validate for an out-of-range value.
type RangeError struct {
	Key      string
	Value    float64
	Min, Max float64
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("setting %q: %g outside [%g, %g]", e.Key, e.Value, e.Min, e.Max)
}

// ParseError is returned by ParseValue when raw text does not parse as the
// field's kind.
type ParseError struct {
	Key string
	Raw string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("setting %q: cannot parse %q", e.Key, e.Raw)
}

func (e *ParseError) Unwrap() error { return e.Err }
