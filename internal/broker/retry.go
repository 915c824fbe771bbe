package broker

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"
)

// RetryConfig controls the exponential backoff applied to broker calls.
type RetryConfig struct {
	MaxRetries  int
	InitialWait time.Duration
	MaxWait     time.Duration
	Factor      float64
	Jitter      float64
}

// DefaultRetryConfig mirrors the teacher's conservative defaults.
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxRetries:  3,
		InitialWait: 100 * time.Millisecond,
		MaxWait:     5 * time.Second,
		Factor:      2.0,
		Jitter:      0.1,
	}
}

// IsRetryableError reports whether err is a transient broker condition.
func IsRetryableError(err error) bool {
	var brokerErr *Error
	if errors.As(err, &brokerErr) {
		return brokerErr.IsTransient()
	}
	return false
}

// RetryableFunc is a broker call that may be retried.
type RetryableFunc func(ctx context.Context) error

// WithRetry retries fn on transient broker errors with exponential backoff
// and jitter, per spec §7 (transient: skip and continue; permanent: never
// retried here, the caller must abort the group).
func WithRetry(ctx context.Context, fn RetryableFunc, config *RetryConfig) error {
	if config == nil {
		config = DefaultRetryConfig()
	}

	var err error
	wait := config.InitialWait

	for attempt := 0; attempt <= config.MaxRetries; attempt++ {
		err = fn(ctx)
		if err == nil {
			return nil
		}

		if !IsRetryableError(err) {
			return err
		}

		if attempt == config.MaxRetries {
			return fmt.Errorf("max retries exceeded: %w", err)
		}

		jitter := 1.0 + (config.Jitter * (2*rand.Float64() - 1))
		wait = time.Duration(float64(wait) * config.Factor * jitter)
		if wait > config.MaxWait {
			wait = config.MaxWait
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
			continue
		}
	}

	return err
}

// RetryWithResult is WithRetry for calls that return a value.
func RetryWithResult[T any](ctx context.Context, fn func(context.Context) (T, error), config *RetryConfig) (T, error) {
	if config == nil {
		config = DefaultRetryConfig()
	}

	var (
		result T
		err    error
		wait   = config.InitialWait
	)

	for attempt := 0; attempt <= config.MaxRetries; attempt++ {
		result, err = fn(ctx)
		if err == nil {
			return result, nil
		}

		if !IsRetryableError(err) {
			return result, err
		}

		if attempt == config.MaxRetries {
			return result, fmt.Errorf("max retries exceeded: %w", err)
		}

		jitter := 1.0 + (config.Jitter * (2*rand.Float64() - 1))
		wait = time.Duration(float64(wait) * config.Factor * jitter)
		if wait > config.MaxWait {
			wait = config.MaxWait
		}

		select {
		case <-ctx.Done():
			return result, ctx.Err()
		case <-time.After(wait):
			continue
		}
	}

	return result, err
}
