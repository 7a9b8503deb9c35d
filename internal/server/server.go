// Package server exposes the clinic billing HTTP surface.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	budgetdomain "github.com/odontia/odontia/internal/budget/domain"
	"github.com/odontia/odontia/internal/config"
	conversiondomain "github.com/odontia/odontia/internal/conversion/domain"
	financingdomain "github.com/odontia/odontia/internal/financing/domain"
	invoicedomain "github.com/odontia/odontia/internal/invoice/domain"
	issuerdomain "github.com/odontia/odontia/internal/issuer/domain"
	liquidationdomain "github.com/odontia/odontia/internal/liquidation/domain"
	transferdomain "github.com/odontia/odontia/internal/transfer/domain"
	walletdomain "github.com/odontia/odontia/internal/wallet/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(log *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestLogger(log))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(log *zap.Logger) *gin.Engine {
	return NewEngine(log)
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					panic(err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine         *gin.Engine
	cfg            config.Config
	db             *gorm.DB
	budgetSvc      budgetdomain.Service
	walletSvc      walletdomain.Service
	transferSvc    transferdomain.Service
	financingSvc   financingdomain.Service
	liquidationSvc liquidationdomain.Service
	conversionSvc  conversiondomain.Service
	invoiceRepo    invoicedomain.Repository
	issuer         issuerdomain.Issuer
}

type ServerParams struct {
	fx.In

	Gin            *gin.Engine
	Cfg            config.Config
	DB             *gorm.DB
	BudgetSvc      budgetdomain.Service
	WalletSvc      walletdomain.Service
	TransferSvc    transferdomain.Service
	FinancingSvc   financingdomain.Service
	LiquidationSvc liquidationdomain.Service
	ConversionSvc  conversiondomain.Service
	InvoiceRepo    invoicedomain.Repository
	Issuer         issuerdomain.Issuer
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:         p.Gin,
		cfg:            p.Cfg,
		db:             p.DB,
		budgetSvc:      p.BudgetSvc,
		walletSvc:      p.WalletSvc,
		transferSvc:    p.TransferSvc,
		financingSvc:   p.FinancingSvc,
		liquidationSvc: p.LiquidationSvc,
		conversionSvc:  p.ConversionSvc,
		invoiceRepo:    p.InvoiceRepo,
		issuer:         p.Issuer,
	}

	svc.registerAPIRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api")

	staff := s.RequireRole(RoleAdmin, RoleReception)
	admin := s.RequireRole(RoleAdmin)

	// -------- Budgets --------
	api.POST("/budgets", staff, s.CreateBudget)
	api.GET("/budgets/:id", staff, s.GetBudgetByID)
	api.POST("/budgets/:id/status", staff, s.SetBudgetStatus)
	api.POST("/budgets/:id/convert", staff, s.ConvertBudget)
	api.POST("/budgets/:id/financing", staff, s.CreateFinancingFromBudget)
	api.GET("/patients/:id/budgets", staff, s.ListBudgetsByPatient)
	api.POST("/patients/:id/budget-items", staff, s.AddBudgetLineItem)

	// -------- Payments & wallet --------
	api.POST("/payments", staff, s.RecordPayment)
	api.GET("/patients/:id/payments", staff, s.ListPayments)
	api.GET("/patients/:id/wallet", staff, s.GetWalletBalance)
	api.POST("/patients/:id/wallet/recompute", admin, s.RecomputeWallet)

	// -------- Transfers --------
	api.POST("/transfers", staff, s.CreateTransfer)

	// -------- Financing --------
	api.GET("/financing-plans/:id", staff, s.GetFinancingPlan)
	api.GET("/patients/:id/financing-plans", staff, s.ListFinancingPlans)
	api.POST("/financing/process-due", admin, s.ProcessDueInstallments)

	// -------- Invoices --------
	api.GET("/invoices/:id", staff, s.GetInvoiceByID)
	api.GET("/invoices/:id/links", staff, s.GetInvoiceLinks)
	api.GET("/patients/:id/invoices", staff, s.ListInvoicesByPatient)

	// -------- Liquidations --------
	api.POST("/appointments/:id/liquidation", admin, s.CalculateLiquidation)
	api.GET("/liquidations/payroll", admin, s.GetPayroll)
	api.POST("/liquidations/:id/pay", admin, s.MarkLiquidationPaid)
}
