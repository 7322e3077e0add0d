package analytics

import (
	"errors"
	"fmt"
)

// ErrorCode identifies a class of analytics failure.
type ErrorCode string

const (
	ErrValidation       ErrorCode = "VALIDATION"
	ErrMissingField     ErrorCode = "MISSING_FIELD"
	ErrInsufficientData ErrorCode = "INSUFFICIENT_DATA"
	ErrModelUnavailable ErrorCode = "MODEL_UNAVAILABLE"
	ErrNotFound         ErrorCode = "NOT_FOUND"
	ErrUntrainedModel   ErrorCode = "UNTRAINED_MODEL"
	ErrTrainingTimeout  ErrorCode = "TRAINING_TIMEOUT"
)

// Error is a structured error for analytics failures.
type Error struct {
	Code      ErrorCode
	Message   string
	Field     string // set for MISSING_FIELD
	Retryable bool
	Cause     error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// IsRetryable returns whether this error is retryable.
func (e *Error) IsRetryable() bool {
	return e.Retryable
}

// CodeOf returns the ErrorCode of the first *Error in err's chain, or "" if there is none.
func CodeOf(err error) ErrorCode {
	var aerr *Error
	if errors.As(err, &aerr) {
		return aerr.Code
	}
	return ""
}

// IsRetryable reports whether err carries a retryable *Error.
func IsRetryable(err error) bool {
	var aerr *Error
	return errors.As(err, &aerr) && aerr.Retryable
}

func ValidationError(format string, args ...any) *Error {
	return &Error{Code: ErrValidation, Message: fmt.Sprintf(format, args...)}
}

func MissingFieldError(field string) *Error {
	return &Error{
		Code:    ErrMissingField,
		Message: fmt.Sprintf("required field %q is missing", field),
		Field:   field,
	}
}

func InsufficientDataError(have, need int) *Error {
	return &Error{
		Code:    ErrInsufficientData,
		Message: fmt.Sprintf("not enough data: %d usable records, at least %d required", have, need),
	}
}

func NotFoundError(format string, args ...any) *Error {
	return &Error{Code: ErrNotFound, Message: fmt.Sprintf(format, args...)}
}

func ModelUnavailableError(msg string, cause error) *Error {
	return &Error{Code: ErrModelUnavailable, Message: msg, Cause: cause}
}

func UntrainedModelError(format string, args ...any) *Error {
	return &Error{Code: ErrUntrainedModel, Message: fmt.Sprintf(format, args...)}
}

func TrainingTimeoutError(key string, cause error) *Error {
	return &Error{
		Code:      ErrTrainingTimeout,
		Message:   fmt.Sprintf("training %s did not finish in time", key),
		Retryable: true,
		Cause:     cause,
	}
}
