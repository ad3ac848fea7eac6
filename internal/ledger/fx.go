package ledger

import (
	"github.com/lotshot/lotshot/internal/ledger/repository"
	"go.uber.org/fx"
)

var Module = fx.Module("ledger",
	fx.Provide(repository.Provide),
)
