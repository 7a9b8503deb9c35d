package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// PaymentCursor marks a position in the newest-first ledger listing.
type PaymentCursor struct {
	ID        snowflake.ID
	CreatedAt time.Time
}

// Repository is shared with the transfer engine so multi-step ledger
// mutations can run inside one transaction.
type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, payment *Payment) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Payment, error)
	ListByPatient(ctx context.Context, db *gorm.DB, patientID snowflake.ID) ([]Payment, error)
	// ListByPatientPage returns up to limit rows newest first, strictly
	// before the cursor when one is given.
	ListByPatientPage(ctx context.Context, db *gorm.DB, patientID snowflake.ID, before *PaymentCursor, limit int) ([]Payment, error)
	CountByPatient(ctx context.Context, db *gorm.DB, patientID snowflake.ID) (int64, error)
	// LockPatient takes the per-patient write lock, serializing ledger
	// writers, and reports whether the patient exists.
	LockPatient(ctx context.Context, db *gorm.DB, patientID snowflake.ID) (bool, error)
	UpdateWallet(ctx context.Context, db *gorm.DB, patientID snowflake.ID, balance float64, now time.Time) error
}
