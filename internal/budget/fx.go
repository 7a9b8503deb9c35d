package budget

import (
	"github.com/odontia/odontia/internal/budget/repository"
	"github.com/odontia/odontia/internal/budget/service"
	"go.uber.org/fx"
)

var Module = fx.Module("budget.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
