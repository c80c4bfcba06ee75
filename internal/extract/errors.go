package extract

import (
	"errors"
	"net/http"
	"strings"
)

// Kind identifies one failure class in the extraction taxonomy. Every failure
// path in the service resolves to exactly one Error carrying a Kind.
type Kind string

const (
	KindNoFile               Kind = "no_file"
	KindInvalidType          Kind = "invalid_type"
	KindTooLarge             Kind = "too_large"
	KindPasswordProtected    Kind = "password_protected"
	KindCorrupted            Kind = "corrupted"
	KindUnsupportedFormat    Kind = "unsupported_format"
	KindNoTextContent        Kind = "no_text_content"
	KindUpstreamUnavailable  Kind = "upstream_unavailable"
	KindConfigurationMissing Kind = "configuration_missing"
	KindUnknown              Kind = "unknown"
)

// Error is the single user-facing failure value. Message is always a stable,
// user-safe string; Original carries raw upstream error text for diagnostics.
type Error struct {
	Kind       Kind
	Message    string
	HTTPStatus int
	Pages      int    // page count, when known at failure time
	Method     Method // which chain member failed, when relevant
	Original   string
	Suggestion string
}

func (e *Error) Error() string { return e.Message }

// NewError builds an Error with the default HTTP status for its kind.
func NewError(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message, HTTPStatus: StatusFor(kind)}
}

// StatusFor maps a failure kind to its HTTP status code.
func StatusFor(kind Kind) int {
	switch kind {
	case KindNoFile, KindInvalidType, KindTooLarge:
		return http.StatusBadRequest
	case KindPasswordProtected:
		return http.StatusForbidden
	case KindCorrupted, KindUnsupportedFormat, KindNoTextContent:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// AsError returns err as *Error if it already is one, otherwise classifies it.
func AsError(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Classify(err)
}

// Classify maps an opaque error message onto the taxonomy by case-insensitive
// substring match. Adapters that can distinguish causes natively return typed
// *Error values directly; this is the last resort for third-party error
// strings that carry no structure.
func Classify(err error) *Error {
	if err == nil {
		return nil
	}
	msg := strings.ToLower(err.Error())

	switch {
	case strings.Contains(msg, "password") || strings.Contains(msg, "encrypted"):
		return &Error{
			Kind:       KindPasswordProtected,
			Message:    "The PDF is password protected. Please remove the password and try again.",
			HTTPStatus: http.StatusForbidden,
			Original:   err.Error(),
		}
	case strings.Contains(msg, "invalid") || strings.Contains(msg, "corrupted"):
		return &Error{
			Kind:       KindCorrupted,
			Message:    "The file appears to be corrupted or uses an invalid format.",
			HTTPStatus: http.StatusUnprocessableEntity,
			Original:   err.Error(),
		}
	case strings.Contains(msg, "unsupported"):
		return &Error{
			Kind:       KindUnsupportedFormat,
			Message:    "The file uses an unsupported format.",
			HTTPStatus: http.StatusUnprocessableEntity,
			Original:   err.Error(),
		}
	default:
		return &Error{
			Kind:       KindUnknown,
			Message:    "Failed to extract text from the file.",
			HTTPStatus: http.StatusInternalServerError,
			Original:   err.Error(),
			Suggestion: "The file may be corrupted, password-protected, or in an unsupported format.",
		}
	}
}
