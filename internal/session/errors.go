package session

import (
	"errors"
	"fmt"
	"strings"
)

type ErrorType int

const (
	ErrBusy ErrorType = iota
	ErrValidation
	ErrPricing
	ErrSubmission
	ErrTranslationFailed
	ErrPollingTimeout
	ErrStatusRegressed
	ErrSave
	ErrUnknown
)

// SessionError carries a typed reason plus free-form context so the
// HTTP layer can map failures to responses without string matching.
type SessionError struct {
	Type    ErrorType
	Message string
	Context map[string]any
	Cause   error
}

func NewError(errorType ErrorType, message string) *SessionError {
	return &SessionError{
		Type:    errorType,
		Message: message,
		Context: make(map[string]any),
	}
}

func NewErrorWithCause(errorType ErrorType, message string, cause error) *SessionError {
	return &SessionError{
		Type:    errorType,
		Message: message,
		Context: make(map[string]any),
		Cause:   cause,
	}
}

func (e *SessionError) Error() string {
	var parts []string
	parts = append(parts, fmt.Sprintf("[%s] %s", e.Type.String(), e.Message))

	if len(e.Context) > 0 {
		var ctxParts []string
		for k, v := range e.Context {
			ctxParts = append(ctxParts, fmt.Sprintf("%s=%v", k, v))
		}
		parts = append(parts, fmt.Sprintf("context: %s", strings.Join(ctxParts, ", ")))
	}

	if e.Cause != nil {
		parts = append(parts, fmt.Sprintf("cause: %v", e.Cause))
	}

	return strings.Join(parts, " | ")
}

func (e *SessionError) Unwrap() error {
	return e.Cause
}

func (e *SessionError) WithContext(key string, value any) *SessionError {
	e.Context[key] = value
	return e
}

func (t ErrorType) String() string {
	switch t {
	case ErrBusy:
		return "Busy"
	case ErrValidation:
		return "Validation"
	case ErrPricing:
		return "Pricing"
	case ErrSubmission:
		return "Submission"
	case ErrTranslationFailed:
		return "TranslationFailed"
	case ErrPollingTimeout:
		return "PollingTimeout"
	case ErrStatusRegressed:
		return "StatusRegressed"
	case ErrSave:
		return "Save"
	default:
		return "Unknown"
	}
}

func IsErrorType(err error, errorType ErrorType) bool {
	var sessionErr *SessionError
	if errors.As(err, &sessionErr) {
		return sessionErr.Type == errorType
	}
	return false
}

func WrapError(err error, errorType ErrorType, message string) *SessionError {
	return NewErrorWithCause(errorType, message, err)
}
