package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	clinicdomain "github.com/odontia/odontia/internal/clinic/domain"
	liqdomain "github.com/odontia/odontia/internal/liquidation/domain"
	"github.com/odontia/odontia/internal/money"
	"github.com/odontia/odontia/internal/transfer/domain"
	walletdomain "github.com/odontia/odontia/internal/wallet/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	WalletRepo walletdomain.Repository
	LiqRepo    liqdomain.Repository
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	walletRepo walletdomain.Repository
	liqRepo    liqdomain.Repository
}

func New(p Params) domain.Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("transfer.service"),
		genID:      p.GenID,
		walletRepo: p.WalletRepo,
		liqRepo:    p.LiqRepo,
	}
}

func (s *Service) Transfer(ctx context.Context, req domain.TransferRequest) (walletdomain.Payment, error) {
	if req.PatientID == 0 {
		return walletdomain.Payment{}, domain.ErrInvalidPatient
	}
	if req.Amount <= 0 {
		return walletdomain.Payment{}, domain.ErrInvalidAmount
	}
	if req.DoctorID == 0 {
		return walletdomain.Payment{}, domain.ErrInvalidDoctor
	}
	if req.SourcePaymentID == 0 {
		return walletdomain.Payment{}, domain.ErrInvalidSource
	}

	now := time.Now().UTC()
	sourceID := req.SourcePaymentID
	payment := walletdomain.Payment{
		ID:              s.genID.Generate(),
		PatientID:       req.PatientID,
		Amount:          money.Round2(req.Amount),
		Method:          walletdomain.PaymentMethodWallet,
		Type:            walletdomain.PaymentTypeTransfer,
		SourcePaymentID: &sourceID,
		TreatmentID:     req.TreatmentID,
		Notes:           strings.TrimSpace(req.Notes),
		CreatedAt:       now,
	}
	doctorID := req.DoctorID
	payment.DoctorID = &doctorID

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		found, err := s.walletRepo.LockPatient(ctx, tx, req.PatientID)
		if err != nil {
			return err
		}
		if !found {
			return domain.ErrPatientMissing
		}

		var doctor clinicdomain.Doctor
		if err := tx.WithContext(ctx).Raw(
			`SELECT id, commission_rate FROM doctors WHERE id = ?`,
			req.DoctorID,
		).Scan(&doctor).Error; err != nil {
			return err
		}
		if doctor.ID == 0 {
			return domain.ErrInvalidDoctor
		}

		source, err := s.walletRepo.FindByID(ctx, tx, req.SourcePaymentID)
		if err != nil {
			return err
		}
		if source == nil ||
			source.PatientID != req.PatientID ||
			source.Type != walletdomain.PaymentTypeAdvance {
			return domain.ErrInvalidSource
		}

		history, err := s.walletRepo.ListByPatient(ctx, tx, req.PatientID)
		if err != nil {
			return err
		}
		if payment.Amount > walletdomain.DeriveBalance(history) {
			return domain.ErrInsufficientBalance
		}

		if err := s.walletRepo.Insert(ctx, tx, &payment); err != nil {
			return err
		}
		balance := walletdomain.DeriveBalance(append(history, payment))
		if err := s.walletRepo.UpdateWallet(ctx, tx, req.PatientID, balance, now); err != nil {
			return err
		}

		if req.TreatmentID != nil {
			if err := tx.WithContext(ctx).Exec(
				`UPDATE treatments SET status = ? WHERE id = ? AND patient_id = ?`,
				clinicdomain.TreatmentStatusPagado,
				*req.TreatmentID,
				req.PatientID,
			).Error; err != nil {
				return err
			}
		}

		if err := s.syncLiquidation(ctx, tx, req, doctor, now); err != nil {
			return err
		}

		note := clinicdomain.HistoryNote{
			ID:        s.genID.Generate(),
			PatientID: req.PatientID,
			Note:      historyNote(payment.Amount, req.Notes),
			CreatedAt: now,
		}
		if err := tx.WithContext(ctx).Exec(
			`INSERT INTO history_notes (id, patient_id, note, created_at) VALUES (?, ?, ?, ?)`,
			note.ID, note.PatientID, note.Note, note.CreatedAt,
		).Error; err != nil {
			// the annotation is a courtesy, not part of the money movement
			s.log.Warn("history note insert failed",
				zap.String("patient_id", req.PatientID.String()),
				zap.Error(err),
			)
		}
		return nil
	})
	if err != nil {
		return walletdomain.Payment{}, err
	}

	s.log.Info("transfer recorded",
		zap.String("payment_id", payment.ID.String()),
		zap.String("patient_id", req.PatientID.String()),
		zap.String("doctor_id", req.DoctorID.String()),
		zap.Float64("amount", payment.Amount),
	)
	return payment, nil
}

// syncLiquidation keeps the doctor's payroll in step with the transfer.
// When the treatment already has a PENDING liquidation it is re-pointed to
// the receiving doctor; otherwise a synthetic completed appointment is
// created so a fresh liquidation has something to hang off.
func (s *Service) syncLiquidation(ctx context.Context, tx *gorm.DB, req domain.TransferRequest, doctor clinicdomain.Doctor, now time.Time) error {
	if req.TreatmentID != nil {
		existing, err := s.liqRepo.FindPendingForTreatment(ctx, tx, req.PatientID, *req.TreatmentID)
		if err != nil {
			return err
		}
		if existing != nil {
			if existing.DoctorID == req.DoctorID {
				return nil
			}
			return s.liqRepo.RepointDoctor(ctx, tx, existing.ID, req.DoctorID, now)
		}
	}

	gross := money.Round2(req.Amount)
	labCost := 0.0
	if req.TreatmentID != nil {
		var treatment clinicdomain.Treatment
		if err := tx.WithContext(ctx).Raw(
			`SELECT id, price, lab_cost FROM treatments WHERE id = ?`,
			*req.TreatmentID,
		).Scan(&treatment).Error; err != nil {
			return err
		}
		if treatment.ID != 0 {
			gross = treatment.Price
			labCost = treatment.LabCost
		}
	}

	appt := clinicdomain.Appointment{
		ID:          s.genID.Generate(),
		PatientID:   req.PatientID,
		DoctorID:    req.DoctorID,
		TreatmentID: req.TreatmentID,
		Status:      clinicdomain.AppointmentStatusCompleted,
		Synthetic:   true,
		Date:        now,
		CreatedAt:   now,
	}
	if err := tx.WithContext(ctx).Exec(
		`INSERT INTO appointments (id, patient_id, doctor_id, treatment_id, status, synthetic, date, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		appt.ID, appt.PatientID, appt.DoctorID, appt.TreatmentID, appt.Status, appt.Synthetic, appt.Date, appt.CreatedAt,
	).Error; err != nil {
		return err
	}

	liq := liqdomain.Liquidation{
		ID:             s.genID.Generate(),
		DoctorID:       req.DoctorID,
		AppointmentID:  appt.ID,
		GrossAmount:    money.Round2(gross),
		LabCost:        money.Round2(labCost),
		CommissionRate: doctor.CommissionRate,
		FinalAmount:    liqdomain.Commission(gross, labCost, doctor.CommissionRate),
		Status:         liqdomain.LiquidationStatusPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	return s.liqRepo.Insert(ctx, tx, &liq)
}

func historyNote(amount float64, notes string) string {
	note := fmt.Sprintf("Traspaso de anticipo aplicado: %.2f", amount)
	if trimmed := strings.TrimSpace(notes); trimmed != "" {
		note += " (" + trimmed + ")"
	}
	return note
}
