package cost

import (
	"github.com/hearthshare/hearth/internal/cost/service"
	"go.uber.org/fx"
)

var Module = fx.Module("cost.service",
	fx.Provide(service.NewService),
)
