package scheduler

import (
	"context"

	"go.uber.org/fx"
)

var Module = fx.Module("scheduler",
	fx.Provide(New),
	fx.Invoke(func(lc fx.Lifecycle, s *Scheduler) {
		lc.Append(fx.Hook{
			OnStart: func(ctx context.Context) error {
				_ = ctx
				s.Start()
				return nil
			},
			OnStop: func(ctx context.Context) error {
				_ = ctx
				s.Stop()
				return nil
			},
		})
	}),
)
