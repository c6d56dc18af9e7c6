package errors

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppErrorFormatting(t *testing.T) {
	err := NewConfigurationError("project alias is required", ErrMissingCredentials)
	assert.Equal(t, "[CONFIGURATION_ERROR] project alias is required: missing Heartcore credentials", err.Error())
	assert.ErrorIs(t, err, ErrMissingCredentials)

	bare := NewValidationError("ids must not be empty", nil)
	assert.Equal(t, "[VALIDATION_ERROR] ids must not be empty", bare.Error())
}

func TestClassificationHelpers(t *testing.T) {
	wrappedConfig := fmt.Errorf("enhance: %w", NewConfigurationError("bad key", nil))
	assert.True(t, IsConfiguration(wrappedConfig))
	assert.True(t, IsFatal(wrappedConfig))

	unauthorized := NewUnauthorizedError("rejected", nil)
	assert.True(t, IsFatal(unauthorized))
	assert.False(t, IsConfiguration(unauthorized))

	notFound := NewNotFoundError("abc", nil)
	assert.True(t, IsNotFound(notFound))
	assert.False(t, IsFatal(notFound))
	assert.ErrorIs(t, notFound, ErrNotFound)

	assert.True(t, IsNotFound(fmt.Errorf("decode: %w", ErrMalformedPayload)))

	transient := NewTransientError("search failed", context.DeadlineExceeded)
	assert.True(t, IsTransient(transient))
	assert.False(t, IsFatal(transient))

	assert.False(t, IsFatal(nil))
	assert.Equal(t, Internal, TypeOf(New("plain")))
}

func TestCategorize(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"configuration", NewConfigurationError("x", nil), ErrorCodeConfiguration},
		{"missing credentials sentinel", fmt.Errorf("wrap: %w", ErrMissingCredentials), ErrorCodeConfiguration},
		{"unauthorized", NewUnauthorizedError("x", nil), ErrorCodeUnauthorized},
		{"not found", NewNotFoundError("x", nil), ErrorCodeNotFound},
		{"malformed", ErrMalformedPayload, ErrorCodeNotFound},
		{"transient", NewTransientError("x", New("boom")), ErrorCodeNetwork},
		{"transient timeout", NewTransientError("x", context.DeadlineExceeded), ErrorCodeTimeout},
		{"deadline", context.DeadlineExceeded, ErrorCodeTimeout},
		{"cancelled", context.Canceled, ErrorCodeCancelled},
		{"message timeout", New("request timed out"), ErrorCodeTimeout},
		{"message connection", New("connection refused"), ErrorCodeNetwork},
		{"unknown", New("boom"), ErrorCodeUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Categorize(tt.err))
		})
	}
}
