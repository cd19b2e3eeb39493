package metrics

import (
	"go.uber.org/fx"

	"github.com/hearthshare/hearth/internal/config"
)

var Module = fx.Module("observability.metrics",
	fx.Provide(FromConfig),
)

func FromConfig(cfg config.Config) *Metrics {
	return WithConfig(Config{
		ServiceName: cfg.AppName,
		Environment: cfg.Environment,
	})
}
