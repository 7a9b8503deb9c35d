package conversion

import (
	"github.com/odontia/odontia/internal/conversion/service"
	"go.uber.org/fx"
)

var Module = fx.Module("conversion.service",
	fx.Provide(service.New),
)
