package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/odontia/odontia/pkg/db/pagination"
)

type RecordPaymentRequest struct {
	PatientID   snowflake.ID
	Amount      float64
	Method      PaymentMethod
	Type        PaymentType
	BudgetID    *snowflake.ID
	TreatmentID *snowflake.ID
	DoctorID    *snowflake.ID
	InvoiceID   *snowflake.ID
	Notes       string
}

type Service interface {
	// RecordPayment appends a ledger entry and recomputes the cached wallet
	// inside the same transaction. TRANSFER rows are rejected here; they are
	// owned by the transfer engine.
	RecordPayment(ctx context.Context, req RecordPaymentRequest) (Payment, error)
	// RecomputeBalance derives the balance from the full log and persists it
	// to patients.wallet. Idempotent: no rows are ever inserted.
	RecomputeBalance(ctx context.Context, patientID snowflake.ID) (float64, error)
	// Balance returns the live derived balance without trusting the cache.
	Balance(ctx context.Context, patientID snowflake.ID) (float64, error)
	// History lists the patient's ledger, newest first.
	History(ctx context.Context, patientID snowflake.ID) ([]Payment, error)
	// HistoryPage lists the ledger newest first in token-paged slices.
	HistoryPage(ctx context.Context, patientID snowflake.ID, page pagination.Pagination) ([]Payment, pagination.PageInfo, error)
}

var (
	ErrInvalidPatient   = errors.New("invalid_patient")
	ErrInvalidAmount    = errors.New("invalid_amount")
	ErrInvalidMethod    = errors.New("invalid_method")
	ErrInvalidType      = errors.New("invalid_type")
	ErrInvalidPageToken = errors.New("invalid_page_token")
	ErrPatientMissing   = errors.New("not_found")
)
