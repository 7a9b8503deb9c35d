// Package domain defines the transfer engine: moving advance money to a
// treatment and doctor without issuing a new invoice.
package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	walletdomain "github.com/odontia/odontia/internal/wallet/domain"
)

type TransferRequest struct {
	PatientID       snowflake.ID
	SourcePaymentID snowflake.ID
	Amount          float64
	TreatmentID     *snowflake.ID
	DoctorID        snowflake.ID
	Notes           string
}

type Service interface {
	// Transfer reassigns advance money to a treatment/doctor in one
	// transaction: a TRANSFER ledger row is appended, the wallet recomputed,
	// the treatment marked PAGADO and the doctor's liquidation synchronized.
	// No invoice is ever created; the money was already invoiced when the
	// advance came in.
	Transfer(ctx context.Context, req TransferRequest) (walletdomain.Payment, error)
}

var (
	ErrInvalidPatient      = errors.New("invalid_patient")
	ErrInvalidAmount       = errors.New("invalid_amount")
	ErrInvalidDoctor       = errors.New("invalid_doctor")
	ErrInvalidSource       = errors.New("invalid_source")
	ErrInsufficientBalance = errors.New("insufficient_balance")
	ErrPatientMissing      = errors.New("not_found")
)
