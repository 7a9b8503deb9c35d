package financing

import (
	"github.com/odontia/odontia/internal/financing/service"
	"go.uber.org/fx"
)

var Module = fx.Module("financing.service",
	fx.Provide(service.New),
)
