package types

import "fmt"

// ErrorType categorizes metric recording failures. Each category maps to an
// error counter submitted alongside the offending metric.
type ErrorType string

const (
	// InvalidValue signals a value outside the metric's accepted range.
	InvalidValue ErrorType = "invalid_value"
	// InvalidType signals a stored value of the wrong shape.
	InvalidType ErrorType = "invalid_type"
	// InvalidState signals an API call in the wrong order (e.g. stopping a
	// timespan that was never started).
	InvalidState ErrorType = "invalid_state"
	// InvalidLabel signals a label that failed validation.
	InvalidLabel ErrorType = "invalid_label"
	// InvalidOverflow signals a value over the metric's size limit.
	InvalidOverflow ErrorType = "invalid_overflow"
)

// RecordingError is a metric validation failure. The metric APIs convert
// these into error-counter increments rather than surfacing them to callers.
type RecordingError struct {
	Type    ErrorType
	Message string
}

// Error implements the error interface.
func (e *RecordingError) Error() string {
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Errorf builds a RecordingError with a formatted message.
func Errorf(t ErrorType, format string, args ...any) *RecordingError {
	return &RecordingError{Type: t, Message: fmt.Sprintf(format, args...)}
}
