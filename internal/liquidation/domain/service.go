package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type PayrollRequest struct {
	DoctorID snowflake.ID // zero means all doctors
	Month    *time.Time   // any instant inside the wanted calendar month
}

// PayrollRecord joins a liquidation with display names resolved through the
// appointment. Synthetic appointments (transfer-created) may lack a
// treatment; names degrade to empty strings rather than failing the report.
type PayrollRecord struct {
	Liquidation
	DoctorName    string `json:"doctor_name"`
	PatientName   string `json:"patient_name"`
	TreatmentName string `json:"treatment_name"`
}

type PayrollResponse struct {
	Records    []PayrollRecord `json:"records"`
	TotalToPay float64         `json:"total_to_pay"`
}

type Service interface {
	// Calculate snapshots the doctor's rate and inserts a new PENDING
	// liquidation for the appointment. Not idempotent by appointment:
	// callers must guard against duplicate invocation.
	Calculate(ctx context.Context, appointmentID snowflake.ID) (Liquidation, error)
	Payroll(ctx context.Context, req PayrollRequest) (PayrollResponse, error)
	MarkPaid(ctx context.Context, liquidationID snowflake.ID) (Liquidation, error)
}

// Repository is shared with the transfer engine, which synchronizes
// liquidations inside its own transaction.
type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, liq *Liquidation) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Liquidation, error)
	// FindPendingForTreatment locates the PENDING liquidation whose
	// appointment matches the patient+treatment pair, if any.
	FindPendingForTreatment(ctx context.Context, db *gorm.DB, patientID, treatmentID snowflake.ID) (*Liquidation, error)
	RepointDoctor(ctx context.Context, db *gorm.DB, id, doctorID snowflake.ID, now time.Time) error
}

var (
	ErrInvalidAppointment = errors.New("invalid_appointment")
	ErrDoctorNotFound     = errors.New("doctor_not_found")
	ErrNotFound           = errors.New("not_found")
	ErrAlreadyPaid        = errors.New("already_paid")
)
