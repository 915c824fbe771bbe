package errors

import (
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewAppError(t *testing.T) {
	err := NewAppError(ErrCodeInvalidInput, "test error", nil)

	assert.Equal(t, ErrCodeInvalidInput, err.Code)
	assert.Equal(t, "test error", err.Message)
	assert.Equal(t, SeverityLow, err.Severity)
}

func TestAppErrorHTTPStatus(t *testing.T) {
	tests := []struct {
		code           ErrorCode
		expectedStatus int
	}{
		{ErrCodeNotFound, http.StatusNotFound},
		{ErrCodeInvalidInput, http.StatusBadRequest},
		{ErrCodeInternal, http.StatusInternalServerError},
		{ErrCodeRateLimit, http.StatusTooManyRequests},
		{ErrCodeRateLimited, http.StatusTooManyRequests},
		{ErrCodeCircuitBreaker, http.StatusForbidden},
	}

	for _, tt := range tests {
		err := NewAppError(tt.code, "test", nil)
		assert.Equal(t, tt.expectedStatus, err.HTTPStatus(), "code %s", tt.code)
	}
}

func TestAppErrorWithContext(t *testing.T) {
	err := NewAppError(ErrCodeInternal, "test error", nil)
	err = err.WithContext("order_key", "123_EURUSD")
	err = err.WithRequestID("req_456")
	err = err.WithUserID("user_789")

	assert.Equal(t, "123_EURUSD", err.Context["order_key"])
	assert.Equal(t, "req_456", err.RequestID)
	assert.Equal(t, "user_789", err.UserID)
}

func TestAppErrorIsRetryable(t *testing.T) {
	assert.True(t, NewAppError(ErrCodeTimeout, "timeout", nil).IsRetryable())
	assert.True(t, NewAppError(ErrCodeBrokerTransient, "requote", nil).IsRetryable())
	assert.False(t, NewAppError(ErrCodeInvalidInput, "bad input", nil).IsRetryable())
	assert.False(t, NewAppError(ErrCodeBrokerPermanent, "invalid volume", nil).IsRetryable())
}

func TestWrapError(t *testing.T) {
	originalErr := fmt.Errorf("dial tcp: timeout")
	wrapped := WrapError(originalErr, ErrCodeBrokerTransient, "broker call failed")

	assert.Equal(t, ErrCodeBrokerTransient, wrapped.Code)
	assert.Equal(t, "broker call failed", wrapped.Message)
	assert.Equal(t, originalErr, wrapped.Cause)
}

func TestWrapErrorPassesThroughAppError(t *testing.T) {
	appErr := NewAppError(ErrCodeTriangleInvalid, "bad triangle", nil)
	assert.Same(t, appErr, WrapError(appErr, ErrCodeInternal, "ignored"))
}

func TestErrorResponse(t *testing.T) {
	err := NewAppError(ErrCodeNotFound, "order not found", nil)
	response := NewErrorResponse(err, "tracker.get")

	assert.Same(t, err, response.Error)
	assert.False(t, response.Success)
	assert.Equal(t, "tracker.get", response.Path)
	assert.WithinDuration(t, time.Now(), response.Timestamp, time.Second)
}

func TestGetSeverityByCode(t *testing.T) {
	tests := []struct {
		code     ErrorCode
		expected ErrorSeverity
	}{
		{ErrCodeInternal, SeverityCritical},
		{ErrCodeBrokerUnavailable, SeverityCritical},
		{ErrCodeOrderExecution, SeverityHigh},
		{ErrCodeCacheOperation, SeverityMedium},
		{ErrCodeInvalidInput, SeverityLow},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, getSeverityByCode(tt.code), "code %s", tt.code)
	}
}

func TestIsAppError(t *testing.T) {
	appErr := NewAppError(ErrCodeInternal, "test", nil)
	standardErr := fmt.Errorf("standard error")

	assert.True(t, IsAppError(appErr))
	assert.False(t, IsAppError(standardErr))
}

func TestGetAppError(t *testing.T) {
	appErr := NewAppError(ErrCodeInternal, "test", nil)
	standardErr := fmt.Errorf("standard error")

	assert.Same(t, appErr, GetAppError(appErr))
	assert.Nil(t, GetAppError(standardErr))
}
