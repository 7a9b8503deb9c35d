package issuer

import (
	"github.com/odontia/odontia/internal/config"
	"github.com/odontia/odontia/internal/issuer/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

func Provide(cfg config.Config, log *zap.Logger) domain.Issuer {
	if cfg.IssuerBaseURL == "" {
		log.Warn("no e-invoicing provider configured, using in-process issuer")
		return NewFake()
	}
	return NewClient(cfg.IssuerBaseURL, cfg.IssuerAPIKey, cfg.IssuerTimeout, log)
}

var Module = fx.Module("issuer",
	fx.Provide(Provide),
)
