package wallet

import (
	"github.com/odontia/odontia/internal/wallet/repository"
	"github.com/odontia/odontia/internal/wallet/service"
	"go.uber.org/fx"
)

var Module = fx.Module("wallet.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
