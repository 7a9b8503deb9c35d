package service

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/odontia/odontia/internal/money"
	"github.com/odontia/odontia/internal/wallet/domain"
	"github.com/odontia/odontia/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Repo  domain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	repo  domain.Repository
}

func New(p Params) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("wallet.service"),
		genID: p.GenID,
		repo:  p.Repo,
	}
}

func (s *Service) RecordPayment(ctx context.Context, req domain.RecordPaymentRequest) (domain.Payment, error) {
	if req.PatientID == 0 {
		return domain.Payment{}, domain.ErrInvalidPatient
	}
	if req.Amount <= 0 {
		return domain.Payment{}, domain.ErrInvalidAmount
	}
	switch req.Method {
	case domain.PaymentMethodCash, domain.PaymentMethodCard, domain.PaymentMethodBank, domain.PaymentMethodWallet:
	default:
		return domain.Payment{}, domain.ErrInvalidMethod
	}
	switch req.Type {
	case domain.PaymentTypeAdvance, domain.PaymentTypeDirectCharge, domain.PaymentTypeInvoice:
	case domain.PaymentTypeTransfer:
		// Transfers carry liquidation side effects and belong to the
		// transfer engine.
		return domain.Payment{}, domain.ErrInvalidType
	default:
		return domain.Payment{}, domain.ErrInvalidType
	}

	now := time.Now().UTC()
	payment := domain.Payment{
		ID:          s.genID.Generate(),
		PatientID:   req.PatientID,
		BudgetID:    req.BudgetID,
		Amount:      money.Round2(req.Amount),
		Method:      req.Method,
		Type:        req.Type,
		TreatmentID: req.TreatmentID,
		DoctorID:    req.DoctorID,
		InvoiceID:   req.InvoiceID,
		Notes:       req.Notes,
		CreatedAt:   now,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		exists, err := s.repo.LockPatient(ctx, tx, req.PatientID)
		if err != nil {
			return err
		}
		if !exists {
			return domain.ErrPatientMissing
		}
		if err := s.repo.Insert(ctx, tx, &payment); err != nil {
			return err
		}
		_, err = s.recomputeTx(ctx, tx, req.PatientID, now)
		return err
	})
	if err != nil {
		return domain.Payment{}, err
	}

	s.log.Info("payment recorded",
		zap.String("payment_id", payment.ID.String()),
		zap.String("patient_id", payment.PatientID.String()),
		zap.String("type", string(payment.Type)),
		zap.Float64("amount", payment.Amount),
	)
	return payment, nil
}

// RecomputeBalance derives the wallet from the full log and overwrites the
// cached column. It is a pure read+write and safe to retry.
func (s *Service) RecomputeBalance(ctx context.Context, patientID snowflake.ID) (float64, error) {
	if patientID == 0 {
		return 0, domain.ErrInvalidPatient
	}
	var balance float64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		exists, err := s.repo.LockPatient(ctx, tx, patientID)
		if err != nil {
			return err
		}
		if !exists {
			return domain.ErrPatientMissing
		}
		balance, err = s.recomputeTx(ctx, tx, patientID, time.Now().UTC())
		return err
	})
	return balance, err
}

func (s *Service) recomputeTx(ctx context.Context, tx *gorm.DB, patientID snowflake.ID, now time.Time) (float64, error) {
	payments, err := s.repo.ListByPatient(ctx, tx, patientID)
	if err != nil {
		return 0, err
	}
	balance := domain.DeriveBalance(payments)
	if err := s.repo.UpdateWallet(ctx, tx, patientID, balance, now); err != nil {
		return 0, err
	}
	return balance, nil
}

func (s *Service) Balance(ctx context.Context, patientID snowflake.ID) (float64, error) {
	if patientID == 0 {
		return 0, domain.ErrInvalidPatient
	}
	payments, err := s.repo.ListByPatient(ctx, s.db, patientID)
	if err != nil {
		return 0, err
	}
	return domain.DeriveBalance(payments), nil
}

func (s *Service) History(ctx context.Context, patientID snowflake.ID) ([]domain.Payment, error) {
	if patientID == 0 {
		return nil, domain.ErrInvalidPatient
	}
	payments, err := s.repo.ListByPatient(ctx, s.db, patientID)
	if err != nil {
		return nil, err
	}
	// newest first for display
	for i, j := 0, len(payments)-1; i < j; i, j = i+1, j-1 {
		payments[i], payments[j] = payments[j], payments[i]
	}
	return payments, nil
}

func (s *Service) HistoryPage(ctx context.Context, patientID snowflake.ID, page pagination.Pagination) ([]domain.Payment, pagination.PageInfo, error) {
	if patientID == 0 {
		return nil, pagination.PageInfo{}, domain.ErrInvalidPatient
	}
	size := page.PageSize
	if size < 1 {
		size = 50
	}
	if size > 250 {
		size = 250
	}

	var before *domain.PaymentCursor
	if page.PageToken != "" {
		cursor, err := pagination.DecodeCursor(page.PageToken)
		if err != nil {
			return nil, pagination.PageInfo{}, domain.ErrInvalidPageToken
		}
		id, err := snowflake.ParseString(cursor.ID)
		if err != nil {
			return nil, pagination.PageInfo{}, domain.ErrInvalidPageToken
		}
		createdAt, err := time.Parse(time.RFC3339Nano, cursor.CreatedAt)
		if err != nil {
			return nil, pagination.PageInfo{}, domain.ErrInvalidPageToken
		}
		before = &domain.PaymentCursor{ID: id, CreatedAt: createdAt}
	}

	// fetch one extra row to learn whether another page exists
	payments, err := s.repo.ListByPatientPage(ctx, s.db, patientID, before, size+1)
	if err != nil {
		return nil, pagination.PageInfo{}, err
	}

	info := pagination.PageInfo{}
	if len(payments) > size {
		payments = payments[:size]
		last := payments[len(payments)-1]
		token, err := pagination.EncodeCursor(pagination.Cursor{
			ID:        last.ID.String(),
			CreatedAt: last.CreatedAt.Format(time.RFC3339Nano),
		})
		if err != nil {
			return nil, pagination.PageInfo{}, err
		}
		info.NextPageToken = token
		info.HasMore = true
	}
	return payments, info, nil
}
