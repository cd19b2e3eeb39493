package migration

import (
	"go.uber.org/fx"
	"gorm.io/gorm"

	"github.com/hearthshare/hearth/internal/config"
	"github.com/hearthshare/hearth/internal/seed"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, household *config.HouseholdConfigHolder) error {
		if conn.Dialector.Name() == "postgres" {
			sqlDB, err := conn.DB()
			if err != nil {
				return err
			}
			if err := RunMigrations(sqlDB); err != nil {
				return err
			}
		} else {
			if err := AutoMigrate(conn); err != nil {
				return err
			}
		}

		return seed.EnsureChartOfAccounts(conn, household.Current().Currency)
	}),
)
