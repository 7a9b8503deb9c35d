package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type CreatePlanRequest struct {
	PatientID         snowflake.ID
	Name              string
	TotalAmount       float64
	DownPayment       float64
	InstallmentsCount int
	StartDate         time.Time
}

type Service interface {
	// CreatePlan persists the plan and its schedule. When a down payment is
	// present it is invoiced immediately through the external issuer;
	// issuer failure is logged and the plan is still returned with the
	// down-payment installment left PENDING.
	CreatePlan(ctx context.Context, req CreatePlanRequest) (TreatmentPlan, error)
	// CreatePlanTx persists the plan inside the caller's transaction so plan
	// creation can be coupled with the caller's own state change. No invoice
	// is issued; callers bill after commit via BillDownPayment.
	CreatePlanTx(ctx context.Context, tx *gorm.DB, req CreatePlanRequest) (TreatmentPlan, error)
	// BillDownPayment invoices the plan's down payment when one is still
	// unstamped. Issuer failure leaves the installment PENDING for the due
	// processor to retry.
	BillDownPayment(ctx context.Context, planID snowflake.ID) error
	GetPlan(ctx context.Context, planID snowflake.ID) (TreatmentPlan, error)
	ListByPatient(ctx context.Context, patientID snowflake.ID) ([]TreatmentPlan, error)
	// ProcessDue invoices installments due at now that carry no invoice yet.
	// Idempotent: a stamped installment is never reprocessed. Returns how
	// many installments were billed.
	ProcessDue(ctx context.Context, now time.Time) (int, error)
}

var (
	ErrInvalidPatient      = errors.New("invalid_patient")
	ErrInvalidAmount       = errors.New("invalid_amount")
	ErrInvalidDownPayment  = errors.New("invalid_down_payment")
	ErrInvalidInstallments = errors.New("invalid_installments")
	ErrNotFound            = errors.New("not_found")
)
