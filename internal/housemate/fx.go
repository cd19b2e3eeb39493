package housemate

import (
	"github.com/hearthshare/hearth/internal/housemate/service"
	"go.uber.org/fx"
)

var Module = fx.Module("housemate.service",
	fx.Provide(service.NewService),
)
