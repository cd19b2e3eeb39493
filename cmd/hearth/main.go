package main

import (
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"

	"github.com/hearthshare/hearth/internal/billingcycle"
	"github.com/hearthshare/hearth/internal/clock"
	"github.com/hearthshare/hearth/internal/config"
	"github.com/hearthshare/hearth/internal/cost"
	"github.com/hearthshare/hearth/internal/cycle"
	"github.com/hearthshare/hearth/internal/housemate"
	"github.com/hearthshare/hearth/internal/ledger"
	"github.com/hearthshare/hearth/internal/logger"
	"github.com/hearthshare/hearth/internal/migration"
	"github.com/hearthshare/hearth/internal/observability/metrics"
	"github.com/hearthshare/hearth/internal/orchestrator"
	"github.com/hearthshare/hearth/internal/providers/email"
	"github.com/hearthshare/hearth/internal/scheduler"
	"github.com/hearthshare/hearth/internal/server"
	"github.com/hearthshare/hearth/internal/statement"
	"github.com/hearthshare/hearth/pkg/db"
)

func main() {
	app := fx.New(
		config.Module,
		logger.Module,
		metrics.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		migration.Module,

		// Functional domains
		cycle.Module,
		ledger.Module,
		billingcycle.Module,
		cost.Module,
		housemate.Module,
		statement.Module,
		email.Module,
		orchestrator.Module,
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
