package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewAndError(t *testing.T) {
	err := New(ErrorTypeDiscovery, "listing endpoint unreachable")

	assert.Equal(t, ErrorTypeDiscovery, err.Type)
	assert.Equal(t, "discovery: listing endpoint unreachable", err.Error())
	assert.NotEmpty(t, err.Stack)
}

func TestWrapPreservesCause(t *testing.T) {
	cause := fmt.Errorf("connection refused")
	err := Wrap(cause, ErrorTypeConnection, "fetch failed")

	assert.Equal(t, "connection: fetch failed: connection refused", err.Error())
	assert.Equal(t, cause, stderrors.Unwrap(err))
}

func TestWrapNil(t *testing.T) {
	assert.Nil(t, Wrap(nil, ErrorTypeInternal, "ignored"))
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		errType   ErrorType
		retryable bool
	}{
		{ErrorTypeRateLimit, true},
		{ErrorTypeTimeout, true},
		{ErrorTypeConnection, true},
		{ErrorTypeServer, true},
		{ErrorTypeData, true},
		{ErrorTypeAuthentication, false},
		{ErrorTypeConfig, false},
		{ErrorTypeNotFound, false},
		{ErrorTypeFlattenConflict, false},
		{ErrorTypeSchema, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.errType), func(t *testing.T) {
			assert.Equal(t, tt.retryable, IsRetryable(New(tt.errType, "x")))
		})
	}

	// Plain errors are never retryable
	assert.False(t, IsRetryable(fmt.Errorf("plain")))
}

func TestIsRetryableThroughWrapping(t *testing.T) {
	inner := New(ErrorTypeServer, "upstream 503")
	outer := fmt.Errorf("page fetch: %w", inner)

	assert.True(t, IsRetryable(outer))
}

func TestEntityAndStatusDetails(t *testing.T) {
	err := New(ErrorTypeServer, "upstream error").
		WithEntity("order_hdr").
		WithStatus(503).
		WithHint("retry later or check upstream status page")

	assert.Equal(t, "order_hdr", Entity(err))
	assert.Equal(t, 503, Status(err))
	assert.Equal(t, "retry later or check upstream status page", err.Details["hint"])

	// Absent details
	plain := New(ErrorTypeInternal, "x")
	assert.Equal(t, "", Entity(plain))
	assert.Equal(t, 0, Status(plain))
}

func TestIsType(t *testing.T) {
	err := Wrap(New(ErrorTypeNotFound, "no metadata"), ErrorTypeDiscovery, "describe failed")

	assert.True(t, IsType(err, ErrorTypeDiscovery))
	assert.False(t, IsType(err, ErrorTypeNotFound))
	assert.False(t, IsType(fmt.Errorf("plain"), ErrorTypeDiscovery))
}
