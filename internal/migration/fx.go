package migration

import (
	"github.com/lotshot/lotshot/internal/config"
	ledgerdomain "github.com/lotshot/lotshot/internal/ledger/domain"
	tenantdomain "github.com/lotshot/lotshot/internal/tenant/domain"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config) error {
		if cfg.DBType != "postgres" {
			// Non-postgres deployments (sqlite dev databases) get the
			// schema straight from the models.
			return conn.AutoMigrate(
				&tenantdomain.Tenant{},
				&tenantdomain.Subscription{},
				&ledgerdomain.EditLedgerEntry{},
			)
		}

		sqlDB, err := conn.DB()
		if err != nil {
			return err
		}
		return RunMigrations(sqlDB)
	}),
)
