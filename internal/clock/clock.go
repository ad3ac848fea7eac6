// Package clock abstracts wall time so pacing and period math are testable.
package clock

import (
	"context"
	"time"

	"go.uber.org/fx"
)

type Clock interface {
	Now() time.Time
	// Sleep blocks for d or until ctx is canceled.
	Sleep(ctx context.Context, d time.Duration) error
}

type systemClock struct{}

func NewSystemClock() Clock {
	return systemClock{}
}

func (systemClock) Now() time.Time {
	return time.Now().UTC()
}

func (systemClock) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Module provides the system clock.
var Module = fx.Module("clock",
	fx.Provide(NewSystemClock),
)
