package finder

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrorKind classifies a finder error so callers (an HTTP layer, the CLI)
// can map it to a status code without inspecting messages.
type ErrorKind string

const (
	KindMalformedLocator      ErrorKind = "malformed_locator"
	KindInvalidDimensionValue ErrorKind = "invalid_dimension_value"
	KindUnknownDimension      ErrorKind = "unknown_dimension"
	KindUnusedDimensions      ErrorKind = "unused_dimensions"
	KindNotFound              ErrorKind = "not_found"
	KindAmbiguousResult       ErrorKind = "ambiguous_result"
	KindConfiguration         ErrorKind = "configuration"
	KindHelpRequested         ErrorKind = "help_requested"
)

// Sentinel errors, one per kind. Every *Error matches its kind's sentinel
// with errors.Is.
var (
	ErrMalformedLocator      = errors.New("malformed locator")
	ErrInvalidDimensionValue = errors.New("invalid dimension value")
	ErrUnknownDimension      = errors.New("unknown dimension")
	ErrUnusedDimensions      = errors.New("unused dimensions")
	ErrNotFound              = errors.New("not found")
	ErrAmbiguousResult       = errors.New("ambiguous result")
	ErrConfiguration         = errors.New("finder configuration error")
	ErrHelpRequested         = errors.New("help requested")
)

// ErrSkipRule is returned by a source or filter rule callback to signal that
// the rule does not apply to the locator at hand. The engine then moves on to
// the next rule as if the rule's condition had not matched.
var ErrSkipRule = errors.New("skip rule")

var kindSentinels = map[ErrorKind]error{
	KindMalformedLocator:      ErrMalformedLocator,
	KindInvalidDimensionValue: ErrInvalidDimensionValue,
	KindUnknownDimension:      ErrUnknownDimension,
	KindUnusedDimensions:      ErrUnusedDimensions,
	KindNotFound:              ErrNotFound,
	KindAmbiguousResult:       ErrAmbiguousResult,
	KindConfiguration:         ErrConfiguration,
	KindHelpRequested:         ErrHelpRequested,
}

// Error is the structured error returned by every finder operation.
type Error struct {
	Kind ErrorKind
	// Dimension and Value identify the offending dimension for
	// InvalidDimensionValue errors.
	Dimension string
	Value     string
	// Names lists the dimensions for UnknownDimension and UnusedDimensions.
	Names   []string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Kind == KindHelpRequested {
		return e.Message
	}
	var b strings.Builder
	if s, ok := kindSentinels[e.Kind]; ok {
		b.WriteString(s.Error())
	} else {
		b.WriteString(string(e.Kind))
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap exposes the kind sentinel and the underlying cause, if any.
func (e *Error) Unwrap() []error {
	errs := make([]error, 0, 2)
	if s, ok := kindSentinels[e.Kind]; ok {
		errs = append(errs, s)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// KindOf returns the kind of the outermost *Error in err's chain, or "" if
// err is not a finder error.
func KindOf(err error) ErrorKind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return ""
}

// IsUserError reports whether err was caused by the query text rather than
// by the data or the finder definition.
func IsUserError(err error) bool {
	switch KindOf(err) {
	case KindMalformedLocator, KindInvalidDimensionValue, KindUnknownDimension, KindUnusedDimensions:
		return true
	}
	return false
}

func malformedf(format string, args ...any) error {
	return &Error{Kind: KindMalformedLocator, Message: fmt.Sprintf(format, args...)}
}

// InvalidValue builds the InvalidDimensionValue error for rule callbacks
// that parse dimension values themselves.
func InvalidValue(dimension, value string, cause error) error {
	return invalidValue(dimension, value, cause)
}

func invalidValue(dimension, value string, cause error) error {
	return &Error{
		Kind:      KindInvalidDimensionValue,
		Dimension: dimension,
		Value:     value,
		Message:   fmt.Sprintf("dimension %q: cannot use %q", dimension, value),
		Err:       cause,
	}
}

func unknownDimensions(names []string) error {
	sort.Strings(names)
	return &Error{
		Kind:    KindUnknownDimension,
		Names:   names,
		Message: fmt.Sprintf("%s (use $help to list supported dimensions)", strings.Join(names, ", ")),
	}
}

func unusedDimensions(names []string) error {
	sort.Strings(names)
	return &Error{
		Kind:    KindUnusedDimensions,
		Names:   names,
		Message: fmt.Sprintf("dimensions were ignored: %s", strings.Join(names, ", ")),
	}
}

func notFoundf(format string, args ...any) error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

func configErrorf(format string, args ...any) error {
	return &Error{Kind: KindConfiguration, Message: fmt.Sprintf(format, args...)}
}

func helpRequested(text string) error {
	return &Error{Kind: KindHelpRequested, Message: text}
}
