package errors

import (
	"context"
	stdErrors "errors"
	"net"
	"strings"
)

// Codes returned by Categorize. They appear in logs and Sentry tags.
const (
	ErrorCodeUnknown       = "UNKNOWN_ERROR"
	ErrorCodeTimeout       = "TIMEOUT_ERROR"
	ErrorCodeNetwork       = "NETWORK_ERROR"
	ErrorCodeValidation    = "VALIDATION_ERROR"
	ErrorCodeNotFound      = "NOT_FOUND_ERROR"
	ErrorCodeUnauthorized  = "UNAUTHORIZED_ERROR"
	ErrorCodeInternal      = "INTERNAL_ERROR"
	ErrorCodeConfiguration = "CONFIGURATION_ERROR"
	ErrorCodeCancelled     = "CANCELLED_ERROR"
)

var codeByType = map[ErrorType]string{
	Configuration:    ErrorCodeConfiguration,
	Unauthorized:     ErrorCodeUnauthorized,
	NotFound:         ErrorCodeNotFound,
	ValidationFailed: ErrorCodeValidation,
	Transient:        ErrorCodeNetwork,
	Internal:         ErrorCodeInternal,
}

var codeBySentinel = []struct {
	target error
	code   string
}{
	{ErrMissingCredentials, ErrorCodeConfiguration},
	{ErrNotFound, ErrorCodeNotFound},
	{ErrMalformedPayload, ErrorCodeNotFound},
	{context.DeadlineExceeded, ErrorCodeTimeout},
	{context.Canceled, ErrorCodeCancelled},
}

// Last resort for errors from libraries that only describe themselves in text.
var codeByMessage = []struct {
	fragments []string
	code      string
}{
	{[]string{"timeout", "timed out"}, ErrorCodeTimeout},
	{[]string{"network", "connection"}, ErrorCodeNetwork},
}

// Categorize maps err to one of the ErrorCode constants, or "" for nil.
func Categorize(err error) string {
	if err == nil {
		return ""
	}

	var appErr *AppError
	if stdErrors.As(err, &appErr) {
		if appErr.Type == Transient && stdErrors.Is(appErr.Err, context.DeadlineExceeded) {
			return ErrorCodeTimeout
		}
		if code, ok := codeByType[appErr.Type]; ok {
			return code
		}
	}

	for _, s := range codeBySentinel {
		if stdErrors.Is(err, s.target) {
			return s.code
		}
	}

	var netErr net.Error
	if stdErrors.As(err, &netErr) {
		if netErr.Timeout() {
			return ErrorCodeTimeout
		}
		return ErrorCodeNetwork
	}

	msg := strings.ToLower(err.Error())
	for _, m := range codeByMessage {
		for _, f := range m.fragments {
			if strings.Contains(msg, f) {
				return m.code
			}
		}
	}
	return ErrorCodeUnknown
}
