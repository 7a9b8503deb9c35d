package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/odontia/odontia/internal/budget"
	"github.com/odontia/odontia/internal/clock"
	"github.com/odontia/odontia/internal/config"
	"github.com/odontia/odontia/internal/conversion"
	"github.com/odontia/odontia/internal/financing"
	"github.com/odontia/odontia/internal/invoice"
	"github.com/odontia/odontia/internal/issuer"
	"github.com/odontia/odontia/internal/liquidation"
	"github.com/odontia/odontia/internal/logger"
	"github.com/odontia/odontia/internal/migration"
	"github.com/odontia/odontia/internal/scheduler"
	"github.com/odontia/odontia/internal/server"
	"github.com/odontia/odontia/internal/transfer"
	"github.com/odontia/odontia/internal/wallet"
	"github.com/odontia/odontia/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		// Core infrastructure
		config.Module,
		logger.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		migration.Module,

		// Domain services
		issuer.Module,
		invoice.Module,
		budget.Module,
		wallet.Module,
		financing.Module,
		liquidation.Module,
		transfer.Module,
		conversion.Module,

		// Inbound surfaces
		server.Module,
		scheduler.Module,
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
