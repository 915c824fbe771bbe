package broker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithRetrySucceedsAfterTransientFailures(t *testing.T) {
	attempts := 0
	err := WithRetry(context.Background(), func(ctx context.Context) error {
		attempts++
		if attempts < 3 {
			return &Error{Retcode: 10052, Message: "requote"}
		}
		return nil
	}, &RetryConfig{MaxRetries: 5, InitialWait: time.Millisecond, MaxWait: 10 * time.Millisecond, Factor: 2, Jitter: 0})

	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestWithRetryDoesNotRetryPermanentError(t *testing.T) {
	attempts := 0
	err := WithRetry(context.Background(), func(ctx context.Context) error {
		attempts++
		return &Error{Retcode: 10004, Message: "invalid volume"}
	}, DefaultRetryConfig())

	require.Error(t, err)
	assert.Equal(t, 1, attempts)
}

func TestWithRetryGivesUpAfterMaxRetries(t *testing.T) {
	attempts := 0
	err := WithRetry(context.Background(), func(ctx context.Context) error {
		attempts++
		return &Error{Retcode: 10046, Message: "trade disabled"}
	}, &RetryConfig{MaxRetries: 2, InitialWait: time.Millisecond, MaxWait: time.Millisecond, Factor: 1, Jitter: 0})

	require.Error(t, err)
	assert.Equal(t, 3, attempts)
}

func TestIsRetryableErrorClassification(t *testing.T) {
	assert.True(t, IsRetryableError(&Error{Retcode: 10047}))
	assert.False(t, IsRetryableError(&Error{Retcode: 10014}))
	assert.False(t, IsRetryableError(errors.New("plain error")))
}
