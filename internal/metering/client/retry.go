package client

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/lotshot/lotshot/internal/clock"
	meteringdomain "github.com/lotshot/lotshot/internal/metering/domain"
)

// retryDo runs fn up to attempts times, pausing delay between tries.
// Only transport errors and retryable API errors are retried; the last
// error is wrapped so callers can tell exhausted retries from a hard
// failure.
func retryDo(ctx context.Context, clk clock.Clock, attempts int, delay time.Duration, fn func() error) error {
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}

		var apiErr *meteringdomain.APIError
		if errors.As(lastErr, &apiErr) && !apiErr.Retryable() {
			return lastErr
		}

		if attempt == attempts {
			break
		}
		if err := clk.Sleep(ctx, delay); err != nil {
			return err
		}
	}
	return fmt.Errorf("retries exhausted after %d attempts: %w", attempts, lastErr)
}
