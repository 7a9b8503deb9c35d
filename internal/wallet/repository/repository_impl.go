package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/odontia/odontia/internal/wallet/domain"
	"github.com/odontia/odontia/pkg/db"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, tx *gorm.DB, payment *domain.Payment) error {
	return tx.WithContext(ctx).Exec(
		`INSERT INTO payments (
			id, patient_id, budget_id, amount, method, type,
			source_payment_id, treatment_id, doctor_id, invoice_id, notes, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		payment.ID,
		payment.PatientID,
		payment.BudgetID,
		payment.Amount,
		payment.Method,
		payment.Type,
		payment.SourcePaymentID,
		payment.TreatmentID,
		payment.DoctorID,
		payment.InvoiceID,
		payment.Notes,
		payment.CreatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, tx *gorm.DB, id snowflake.ID) (*domain.Payment, error) {
	var payment domain.Payment
	err := tx.WithContext(ctx).Raw(
		`SELECT id, patient_id, budget_id, amount, method, type,
		        source_payment_id, treatment_id, doctor_id, invoice_id, notes, created_at
		 FROM payments WHERE id = ?`,
		id,
	).Scan(&payment).Error
	if err != nil {
		return nil, err
	}
	if payment.ID == 0 {
		return nil, nil
	}
	return &payment, nil
}

func (r *repo) ListByPatient(ctx context.Context, tx *gorm.DB, patientID snowflake.ID) ([]domain.Payment, error) {
	var payments []domain.Payment
	err := tx.WithContext(ctx).Raw(
		`SELECT id, patient_id, budget_id, amount, method, type,
		        source_payment_id, treatment_id, doctor_id, invoice_id, notes, created_at
		 FROM payments
		 WHERE patient_id = ?
		 ORDER BY created_at ASC, id ASC`,
		patientID,
	).Scan(&payments).Error
	if err != nil {
		return nil, err
	}
	return payments, nil
}

func (r *repo) ListByPatientPage(ctx context.Context, tx *gorm.DB, patientID snowflake.ID, before *domain.PaymentCursor, limit int) ([]domain.Payment, error) {
	query := `SELECT id, patient_id, budget_id, amount, method, type,
	                 source_payment_id, treatment_id, doctor_id, invoice_id, notes, created_at
	          FROM payments
	          WHERE patient_id = ?`
	args := []interface{}{patientID}
	if before != nil {
		query += ` AND (created_at < ? OR (created_at = ? AND id < ?))`
		args = append(args, before.CreatedAt, before.CreatedAt, before.ID)
	}
	query += ` ORDER BY created_at DESC, id DESC LIMIT ?`
	args = append(args, limit)

	var payments []domain.Payment
	if err := tx.WithContext(ctx).Raw(query, args...).Scan(&payments).Error; err != nil {
		return nil, err
	}
	return payments, nil
}

func (r *repo) CountByPatient(ctx context.Context, tx *gorm.DB, patientID snowflake.ID) (int64, error) {
	var count int64
	err := tx.WithContext(ctx).Raw(
		`SELECT COUNT(1) FROM payments WHERE patient_id = ?`,
		patientID,
	).Scan(&count).Error
	return count, err
}

func (r *repo) LockPatient(ctx context.Context, tx *gorm.DB, patientID snowflake.ID) (bool, error) {
	var id snowflake.ID
	err := tx.WithContext(ctx).
		Raw(`SELECT id FROM patients WHERE id = ?`+db.ForUpdate(tx), patientID).
		Scan(&id).Error
	if err != nil {
		return false, err
	}
	return id != 0, nil
}

func (r *repo) UpdateWallet(ctx context.Context, tx *gorm.DB, patientID snowflake.ID, balance float64, now time.Time) error {
	return tx.WithContext(ctx).Exec(
		`UPDATE patients SET wallet = ?, updated_at = ? WHERE id = ?`,
		balance,
		now,
		patientID,
	).Error
}
