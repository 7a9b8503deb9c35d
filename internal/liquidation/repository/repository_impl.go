package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/odontia/odontia/internal/liquidation/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, tx *gorm.DB, liq *domain.Liquidation) error {
	return tx.WithContext(ctx).Exec(
		`INSERT INTO liquidations (
			id, doctor_id, appointment_id, gross_amount, lab_cost,
			commission_rate, final_amount, status, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		liq.ID,
		liq.DoctorID,
		liq.AppointmentID,
		liq.GrossAmount,
		liq.LabCost,
		liq.CommissionRate,
		liq.FinalAmount,
		liq.Status,
		liq.CreatedAt,
		liq.UpdatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, tx *gorm.DB, id snowflake.ID) (*domain.Liquidation, error) {
	var liq domain.Liquidation
	err := tx.WithContext(ctx).Raw(
		`SELECT id, doctor_id, appointment_id, gross_amount, lab_cost,
		        commission_rate, final_amount, status, created_at, updated_at
		 FROM liquidations WHERE id = ?`,
		id,
	).Scan(&liq).Error
	if err != nil {
		return nil, err
	}
	if liq.ID == 0 {
		return nil, nil
	}
	return &liq, nil
}

func (r *repo) FindPendingForTreatment(ctx context.Context, tx *gorm.DB, patientID, treatmentID snowflake.ID) (*domain.Liquidation, error) {
	var liq domain.Liquidation
	err := tx.WithContext(ctx).Raw(
		`SELECT l.id, l.doctor_id, l.appointment_id, l.gross_amount, l.lab_cost,
		        l.commission_rate, l.final_amount, l.status, l.created_at, l.updated_at
		 FROM liquidations l
		 JOIN appointments a ON a.id = l.appointment_id
		 WHERE a.patient_id = ? AND a.treatment_id = ? AND l.status = ?
		 ORDER BY l.created_at ASC, l.id ASC
		 LIMIT 1`,
		patientID,
		treatmentID,
		domain.LiquidationStatusPending,
	).Scan(&liq).Error
	if err != nil {
		return nil, err
	}
	if liq.ID == 0 {
		return nil, nil
	}
	return &liq, nil
}

func (r *repo) RepointDoctor(ctx context.Context, tx *gorm.DB, id, doctorID snowflake.ID, now time.Time) error {
	return tx.WithContext(ctx).Exec(
		`UPDATE liquidations SET doctor_id = ?, updated_at = ? WHERE id = ?`,
		doctorID,
		now,
		id,
	).Error
}
