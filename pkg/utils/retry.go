package utils

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Retry runs fn up to attempts times with exponential backoff, stopping early
// when ctx is done. Wrap an error in backoff.Permanent to stop retrying
// immediately (caller errors such as malformed input).
func Retry(ctx context.Context, attempts int, fn func() error) error {
	if attempts < 1 {
		attempts = 1
	}
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 200 * time.Millisecond
	bo.MaxElapsedTime = 0
	return backoff.Retry(fn, backoff.WithContext(backoff.WithMaxRetries(bo, uint64(attempts-1)), ctx))
}
