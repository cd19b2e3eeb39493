package migration

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"gorm.io/gorm"

	billingcycledomain "github.com/hearthshare/hearth/internal/billingcycle/domain"
	costdomain "github.com/hearthshare/hearth/internal/cost/domain"
	housematedomain "github.com/hearthshare/hearth/internal/housemate/domain"
	ledgerdomain "github.com/hearthshare/hearth/internal/ledger/domain"
	statementdomain "github.com/hearthshare/hearth/internal/statement/domain"
)

//go:embed migrations/*.sql
var embeddedMigrations embed.FS

const migrationsDir = "migrations"

// This migration package makes a fresh install usable out of the box:
// all ledger and billing tables are created automatically on startup.
func RunMigrations(db *sql.DB) error {
	if db == nil {
		return errors.New("migration database handle is required")
	}

	sub, err := fs.Sub(embeddedMigrations, migrationsDir)
	if err != nil {
		return fmt.Errorf("open migrations: %w", err)
	}

	source, err := iofs.New(sub, ".")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("create migration driver: %w", err)
	}

	migrator, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	upErr := migrator.Up()
	if upErr != nil && !errors.Is(upErr, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", upErr)
	}
	// Do not call migrator.Close here because it would close the shared *sql.DB.

	return nil
}

// AutoMigrate builds the schema through gorm for the sqlite dev setup, where
// the versioned SQL files (written for postgres) do not apply.
func AutoMigrate(conn *gorm.DB) error {
	return conn.AutoMigrate(
		&ledgerdomain.Account{},
		&ledgerdomain.Transaction{},
		&ledgerdomain.Leg{},
		&billingcycledomain.BillingCycle{},
		&costdomain.RecurringCost{},
		&costdomain.RecurringCostSplit{},
		&costdomain.RecurredCost{},
		&housematedomain.Housemate{},
		&statementdomain.StatementImport{},
		&statementdomain.StatementLine{},
	)
}
