package service

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	clinicdomain "github.com/odontia/odontia/internal/clinic/domain"
	"github.com/odontia/odontia/internal/liquidation/domain"
	"github.com/odontia/odontia/internal/money"
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
		log:   p.Log.Named("liquidation.service"),
		genID: p.GenID,
		repo:  p.Repo,
	}
}

type appointmentRow struct {
	ID          snowflake.ID
	DoctorID    snowflake.ID
	TreatmentID *snowflake.ID
}

func (s *Service) Calculate(ctx context.Context, appointmentID snowflake.ID) (domain.Liquidation, error) {
	if appointmentID == 0 {
		return domain.Liquidation{}, domain.ErrInvalidAppointment
	}

	var appt appointmentRow
	if err := s.db.WithContext(ctx).Raw(
		`SELECT id, doctor_id, treatment_id FROM appointments WHERE id = ?`,
		appointmentID,
	).Scan(&appt).Error; err != nil {
		return domain.Liquidation{}, err
	}
	if appt.ID == 0 {
		return domain.Liquidation{}, domain.ErrInvalidAppointment
	}

	var doctor clinicdomain.Doctor
	if err := s.db.WithContext(ctx).Raw(
		`SELECT id, name, commission_rate, created_at FROM doctors WHERE id = ?`,
		appt.DoctorID,
	).Scan(&doctor).Error; err != nil {
		return domain.Liquidation{}, err
	}
	if doctor.ID == 0 {
		return domain.Liquidation{}, domain.ErrDoctorNotFound
	}

	gross := 0.0
	labCost := 0.0
	if appt.TreatmentID != nil {
		var treatment clinicdomain.Treatment
		if err := s.db.WithContext(ctx).Raw(
			`SELECT id, price, lab_cost FROM treatments WHERE id = ?`,
			*appt.TreatmentID,
		).Scan(&treatment).Error; err != nil {
			return domain.Liquidation{}, err
		}
		gross = treatment.Price
		labCost = treatment.LabCost
	}

	now := time.Now().UTC()
	liq := domain.Liquidation{
		ID:             s.genID.Generate(),
		DoctorID:       doctor.ID,
		AppointmentID:  appt.ID,
		GrossAmount:    money.Round2(gross),
		LabCost:        money.Round2(labCost),
		CommissionRate: doctor.CommissionRate,
		FinalAmount:    domain.Commission(gross, labCost, doctor.CommissionRate),
		Status:         domain.LiquidationStatusPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.repo.Insert(ctx, s.db, &liq); err != nil {
		return domain.Liquidation{}, err
	}

	s.log.Info("liquidation calculated",
		zap.String("liquidation_id", liq.ID.String()),
		zap.String("doctor_id", liq.DoctorID.String()),
		zap.Float64("final_amount", liq.FinalAmount),
	)
	return liq, nil
}

func (s *Service) Payroll(ctx context.Context, req domain.PayrollRequest) (domain.PayrollResponse, error) {
	query := `SELECT l.id, l.doctor_id, l.appointment_id, l.gross_amount, l.lab_cost,
	                 l.commission_rate, l.final_amount, l.status, l.created_at, l.updated_at,
	                 COALESCE(d.name, '') AS doctor_name,
	                 COALESCE(p.name, '') AS patient_name,
	                 COALESCE(t.name, '') AS treatment_name
	          FROM liquidations l
	          LEFT JOIN doctors d ON d.id = l.doctor_id
	          LEFT JOIN appointments a ON a.id = l.appointment_id
	          LEFT JOIN patients p ON p.id = a.patient_id
	          LEFT JOIN treatments t ON t.id = a.treatment_id
	          WHERE 1 = 1`
	args := []interface{}{}
	if req.DoctorID != 0 {
		query += ` AND l.doctor_id = ?`
		args = append(args, req.DoctorID)
	}
	if req.Month != nil {
		from := time.Date(req.Month.Year(), req.Month.Month(), 1, 0, 0, 0, 0, time.UTC)
		query += ` AND l.created_at >= ? AND l.created_at < ?`
		args = append(args, from, from.AddDate(0, 1, 0))
	}
	query += ` ORDER BY l.created_at ASC, l.id ASC`

	var records []domain.PayrollRecord
	if err := s.db.WithContext(ctx).Raw(query, args...).Scan(&records).Error; err != nil {
		return domain.PayrollResponse{}, err
	}

	total := 0.0
	for _, rec := range records {
		if rec.Status == domain.LiquidationStatusPending {
			total += rec.FinalAmount
		}
	}
	return domain.PayrollResponse{
		Records:    records,
		TotalToPay: money.Round2(total),
	}, nil
}

func (s *Service) MarkPaid(ctx context.Context, liquidationID snowflake.ID) (domain.Liquidation, error) {
	liq, err := s.repo.FindByID(ctx, s.db, liquidationID)
	if err != nil {
		return domain.Liquidation{}, err
	}
	if liq == nil {
		return domain.Liquidation{}, domain.ErrNotFound
	}

	now := time.Now().UTC()
	result := s.db.WithContext(ctx).Exec(
		`UPDATE liquidations SET status = ?, updated_at = ? WHERE id = ? AND status = ?`,
		domain.LiquidationStatusPaid,
		now,
		liquidationID,
		domain.LiquidationStatusPending,
	)
	if result.Error != nil {
		return domain.Liquidation{}, result.Error
	}
	if result.RowsAffected == 0 {
		return domain.Liquidation{}, domain.ErrAlreadyPaid
	}

	liq.Status = domain.LiquidationStatusPaid
	liq.UpdatedAt = now
	return *liq, nil
}
