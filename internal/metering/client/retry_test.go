package client

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/lotshot/lotshot/internal/clock"
	meteringdomain "github.com/lotshot/lotshot/internal/metering/domain"
	"github.com/stretchr/testify/assert"
)

func TestRetrySucceedsAfterTransientFailures(t *testing.T) {
	clk := clock.NewFakeClock(time.Unix(0, 0))
	calls := 0

	err := retryDo(context.Background(), clk, 3, 500*time.Millisecond, func() error {
		calls++
		if calls < 3 {
			return &meteringdomain.APIError{Status: 503}
		}
		return nil
	})

	assert.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Len(t, clk.Sleeps(), 2)
}

func TestRetryStopsOnNonRetryableError(t *testing.T) {
	clk := clock.NewFakeClock(time.Unix(0, 0))
	calls := 0
	apiErr := &meteringdomain.APIError{Status: 400, Code: "invalid_request"}

	err := retryDo(context.Background(), clk, 3, 500*time.Millisecond, func() error {
		calls++
		return apiErr
	})

	assert.Equal(t, 1, calls)
	var got *meteringdomain.APIError
	assert.ErrorAs(t, err, &got)
	assert.Empty(t, clk.Sleeps())
}

func TestRetryExhaustionIsDistinguishable(t *testing.T) {
	clk := clock.NewFakeClock(time.Unix(0, 0))

	err := retryDo(context.Background(), clk, 2, time.Second, func() error {
		return &meteringdomain.APIError{Status: 429}
	})

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "retries exhausted after 2 attempts")
	var apiErr *meteringdomain.APIError
	assert.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 429, apiErr.Status)
}

func TestRetryRespectsCancellation(t *testing.T) {
	clk := clock.NewFakeClock(time.Unix(0, 0))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := retryDo(ctx, clk, 3, time.Second, func() error {
		return errors.New("transport down")
	})

	assert.ErrorIs(t, err, context.Canceled)
}
