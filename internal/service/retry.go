package service

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/obsimg/obsimg/internal/logger"
)

const defaultRetries = 3

// WithRetry runs op with bounded exponential backoff. This covers transient
// transport failures on a single, already-resolved artifact; it is a much
// narrower retry scope than the condition-wait polling loop, which
// re-resolves the artifact entirely. Wrap an error in backoff.Permanent to
// stop retrying early.
func WithRetry(ctx context.Context, op func() error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 3 * time.Second
	b.Multiplier = 2
	b.RandomizationFactor = 0

	wrapped := func() error {
		err := op()
		var status *StatusError
		if errors.As(err, &status) && status.Permanent() {
			return backoff.Permanent(err)
		}
		return err
	}

	return backoff.RetryNotify(
		wrapped,
		backoff.WithContext(backoff.WithMaxRetries(b, defaultRetries), ctx),
		func(err error, wait time.Duration) {
			logger.Warn("%v, retrying in %s...", err, wait.Truncate(time.Second))
		},
	)
}
