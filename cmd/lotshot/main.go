package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/lotshot/lotshot/internal/clock"
	"github.com/lotshot/lotshot/internal/config"
	"github.com/lotshot/lotshot/internal/ledger"
	"github.com/lotshot/lotshot/internal/logger"
	"github.com/lotshot/lotshot/internal/metering"
	"github.com/lotshot/lotshot/internal/metrics"
	"github.com/lotshot/lotshot/internal/migration"
	"github.com/lotshot/lotshot/internal/ratelimit"
	"github.com/lotshot/lotshot/internal/reconcile"
	"github.com/lotshot/lotshot/internal/scheduler"
	"github.com/lotshot/lotshot/internal/server"
	"github.com/lotshot/lotshot/internal/tenant"
	"github.com/lotshot/lotshot/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		// Core infrastructure
		config.Module,
		logger.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		metrics.Module,
		migration.Module,
		ratelimit.Module,

		// Functional domains
		tenant.Module,
		ledger.Module,
		metering.Module,
		reconcile.Module,
		scheduler.Module,

		server.Module,
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
