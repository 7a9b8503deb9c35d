// Package scheduler drives the recurring billing jobs: invoicing due
// installments and reconciling cached wallet balances against the ledger.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/odontia/odontia/internal/clock"
	financingdomain "github.com/odontia/odontia/internal/financing/domain"
	obsmetrics "github.com/odontia/odontia/internal/observability/metrics"
	walletdomain "github.com/odontia/odontia/internal/wallet/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var ErrInvalidConfig = errors.New("scheduler: invalid configuration")

type Params struct {
	fx.In

	DB           *gorm.DB
	Log          *zap.Logger
	Clock        clock.Clock
	FinancingSvc financingdomain.Service
	WalletSvc    walletdomain.Service
	Config       Config `optional:"true"`
}

type Scheduler struct {
	db           *gorm.DB
	log          *zap.Logger
	cfg          Config
	clock        clock.Clock
	financingSvc financingdomain.Service
	walletSvc    walletdomain.Service
}

func New(p Params) (*Scheduler, error) {
	if p.DB == nil || p.Log == nil || p.Clock == nil || p.FinancingSvc == nil || p.WalletSvc == nil {
		return nil, ErrInvalidConfig
	}
	return &Scheduler{
		db:           p.DB,
		log:          p.Log.Named("scheduler").With(zap.String("component", "scheduler")),
		cfg:          p.Config.withDefaults(),
		clock:        p.Clock,
		financingSvc: p.FinancingSvc,
		walletSvc:    p.WalletSvc,
	}, nil
}

func (s *Scheduler) runJob(parent context.Context, name string, fn func(ctx context.Context) error) error {
	start := s.clock.Now()
	ctx, cancel := context.WithTimeout(parent, s.cfg.JobTimeout)
	defer cancel()

	schedMetrics := obsmetrics.Scheduler()
	schedMetrics.IncJobRun(name)

	err := fn(ctx)
	schedMetrics.ObserveJobDuration(name, time.Since(start))
	if err == nil {
		return nil
	}

	// deadline is a soft failure; the next run picks the work back up
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		schedMetrics.IncJobTimeout(name)
		s.log.Warn("job timed out",
			zap.String("job", name),
			zap.Duration("timeout", s.cfg.JobTimeout),
			zap.Error(err),
		)
		return nil
	}

	schedMetrics.IncJobError(name, err)
	return fmt.Errorf("%s: %w", name, err)
}

func (s *Scheduler) RunOnce(parent context.Context) error {
	var err error
	err = errors.Join(err, s.runJob(parent, "due_installments", s.DueInstallmentsJob))
	err = errors.Join(err, s.runJob(parent, "wallet_reconcile", s.WalletReconcileJob))
	return err
}

func (s *Scheduler) RunForever(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.RunInterval)
	defer ticker.Stop()
	nextRun := s.clock.Now().Add(s.cfg.RunInterval)
	schedMetrics := obsmetrics.Scheduler()

	for {
		if lag := time.Since(nextRun); lag > 0 {
			schedMetrics.ObserveRunLoopLag(lag)
		}
		if err := s.RunOnce(ctx); err != nil {
			s.log.Warn("scheduler run failed", zap.Error(err))
		}
		nextRun = nextRun.Add(s.cfg.RunInterval)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// DueInstallmentsJob invoices every installment that has come due. Issuer
// failures are swallowed inside ProcessDue; a PENDING unstamped installment
// is retried on the next run.
func (s *Scheduler) DueInstallmentsJob(ctx context.Context) error {
	billed, err := s.financingSvc.ProcessDue(ctx, s.clock.Now())
	if billed > 0 {
		obsmetrics.Scheduler().AddItemsBilled("due_installments", billed)
		s.log.Info("due installments billed", zap.Int("count", billed))
	}
	return err
}

// WalletReconcileJob rewrites the cached wallet for patients whose cache has
// drifted from the derived balance. Drift should never happen; when it does,
// the log entry is the signal to go find the write that bypassed the ledger.
func (s *Scheduler) WalletReconcileJob(ctx context.Context) error {
	var patientIDs []snowflake.ID
	err := s.db.WithContext(ctx).Raw(
		`SELECT DISTINCT patient_id FROM payments ORDER BY patient_id LIMIT ?`,
		s.cfg.ReconcileBatch,
	).Scan(&patientIDs).Error
	if err != nil {
		return err
	}

	var jobErr error
	for _, patientID := range patientIDs {
		if ctx.Err() != nil {
			return errors.Join(jobErr, ctx.Err())
		}

		var cached float64
		if err := s.db.WithContext(ctx).Raw(
			`SELECT wallet FROM patients WHERE id = ?`,
			patientID,
		).Scan(&cached).Error; err != nil {
			jobErr = errors.Join(jobErr, err)
			continue
		}
		derived, err := s.walletSvc.Balance(ctx, patientID)
		if err != nil {
			jobErr = errors.Join(jobErr, err)
			continue
		}
		if cached == derived {
			continue
		}

		s.log.Warn("wallet cache drift detected",
			zap.String("patient_id", patientID.String()),
			zap.Float64("cached", cached),
			zap.Float64("derived", derived),
		)
		if _, err := s.walletSvc.RecomputeBalance(ctx, patientID); err != nil {
			jobErr = errors.Join(jobErr, err)
		}
	}
	return jobErr
}
