package errors

import "fmt"

// ErrorType classifies failures so that callers can pick a recovery path
// without string-matching error messages.
type ErrorType string

const (
	ErrorTypeNetwork           ErrorType = "network"
	ErrorTypeTimeout           ErrorType = "timeout"
	ErrorTypeRateLimit         ErrorType = "rate_limit"
	ErrorTypeAuth              ErrorType = "auth"
	ErrorTypeBlocked           ErrorType = "blocked"
	ErrorTypeParsing           ErrorType = "parsing"
	ErrorTypeMalformedResponse ErrorType = "malformed_response"
	ErrorTypeNotFound          ErrorType = "not_found"
	ErrorTypeServerError       ErrorType = "server_error"
	ErrorTypeConfiguration     ErrorType = "configuration"
	ErrorTypeUnknown           ErrorType = "unknown"
)

// Error is a typed error carrying the HTTP status (when one exists) and an
// optional snippet of the offending response body.
type Error struct {
	Type    ErrorType
	Message string
	Code    int
	// Snippet holds the first bytes of a malformed response body for diagnosis.
	Snippet string
	// Cause is the underlying error, if any.
	Cause error
}

func (e *Error) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("%s error (code %d): %s", e.Type, e.Code, e.Message)
	}
	return fmt.Sprintf("%s error: %s", e.Type, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// New creates a typed error.
func New(t ErrorType, msg string) *Error {
	return &Error{Type: t, Message: msg}
}

// Newf creates a typed error with a formatted message.
func Newf(t ErrorType, format string, args ...interface{}) *Error {
	return &Error{Type: t, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates a typed error around an underlying cause.
func Wrap(t ErrorType, msg string, cause error) *Error {
	return &Error{Type: t, Message: msg, Cause: cause}
}

// WithCode attaches an HTTP status code.
func (e *Error) WithCode(code int) *Error {
	e.Code = code
	return e
}

// WithSnippet attaches a body snippet, truncated to 200 bytes.
func (e *Error) WithSnippet(body string) *Error {
	if len(body) > 200 {
		body = body[:200]
	}
	e.Snippet = body
	return e
}

// IsRetryable reports whether an error of the given type is worth retrying
// with the same inputs. Auth and block conditions need a different credential
// or a different strategy, not another attempt.
func IsRetryable(t ErrorType) bool {
	switch t {
	case ErrorTypeNetwork, ErrorTypeTimeout, ErrorTypeRateLimit, ErrorTypeServerError:
		return true
	default:
		return false
	}
}

// IsRetryableStatusCode reports whether an HTTP status code indicates a
// retryable condition.
func IsRetryableStatusCode(statusCode int) bool {
	switch statusCode {
	case 0: // transport failure
		return true
	case 429:
		return true
	case 500, 502, 503, 504:
		return true
	case 401, 403, 404:
		return false
	default:
		return statusCode >= 500
	}
}
