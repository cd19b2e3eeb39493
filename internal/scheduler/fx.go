package scheduler

import (
	"context"

	"go.uber.org/fx"

	"github.com/hearthshare/hearth/internal/config"
)

var Module = fx.Module("scheduler",
	fx.Provide(ProvideConfig),
	fx.Provide(New),
	fx.Invoke(Register),
)

func ProvideConfig(cfg config.Config) Config {
	return Config{Spec: cfg.SchedulerSpec}.withDefaults()
}

func Register(lc fx.Lifecycle, cfg config.Config, sched *Scheduler) {
	if !cfg.SchedulerEnabled {
		return
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return sched.Start()
		},
		OnStop: func(ctx context.Context) error {
			return sched.Stop(ctx)
		},
	})
}
