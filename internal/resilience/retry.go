// Package resilience provides generic retry and circuit-breaker helpers for
// outbound backend calls made by task kinds (e.g. the http task). This is
// deliberately separate from the chain/task retry policy in internal/task,
// which follows the fixed-delay, regex-gated contract described by the
// chain specification; this package backs ambient resilience for the
// backend calls a task kind makes underneath that contract.
package resilience

import (
	"context"

	"github.com/cenkalti/backoff/v4"
)

// Retry runs fn with exponential backoff until it succeeds, ctx is
// cancelled, or maxAttempts retries after the first call have failed.
func Retry[T any](ctx context.Context, fn func() (T, error), maxAttempts uint64) (T, error) {
	var result T

	bo := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), maxAttempts), ctx)

	err := backoff.Retry(func() error {
		var err error
		result, err = fn()
		return err
	}, bo)

	return result, err
}
