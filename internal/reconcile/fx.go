package reconcile

import (
	"github.com/lotshot/lotshot/internal/reconcile/service"
	"go.uber.org/fx"
)

var Module = fx.Module("reconcile.service",
	fx.Provide(service.NewService),
)
