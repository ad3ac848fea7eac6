package metering

import (
	"github.com/lotshot/lotshot/internal/metering/client"
	"go.uber.org/fx"
)

var Module = fx.Module("metering",
	fx.Provide(client.New),
)
