package liquidation

import (
	"github.com/odontia/odontia/internal/liquidation/repository"
	"github.com/odontia/odontia/internal/liquidation/service"
	"go.uber.org/fx"
)

var Module = fx.Module("liquidation.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
