// Package domain contains the patient payment log and wallet balance rules.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/odontia/odontia/internal/money"
)

// PaymentType classifies a ledger entry.
type PaymentType string

const (
	// PaymentTypeAdvance is money paid on account, not yet assigned to a
	// treatment. It is the only type that credits the wallet.
	PaymentTypeAdvance PaymentType = "ADVANCE_PAYMENT"
	// PaymentTypeTransfer reassigns advance money to a treatment/doctor.
	// Always carries source_payment_id and doctor_id.
	PaymentTypeTransfer PaymentType = "TRANSFER"
	// PaymentTypeDirectCharge is a charge settled at the desk.
	PaymentTypeDirectCharge PaymentType = "DIRECT_CHARGE"
	// PaymentTypeInvoice is a payment recorded against an issued invoice.
	PaymentTypeInvoice PaymentType = "INVOICE"
)

// PaymentMethod is how the money moved.
type PaymentMethod string

const (
	PaymentMethodCash   PaymentMethod = "CASH"
	PaymentMethodCard   PaymentMethod = "CARD"
	PaymentMethodBank   PaymentMethod = "BANK_TRANSFER"
	PaymentMethodWallet PaymentMethod = "WALLET"
)

// Payment is an append-only ledger entry. Rows are never updated or deleted
// in normal operation; the wallet balance is always derived from the full
// log, never maintained incrementally.
type Payment struct {
	ID              snowflake.ID  `gorm:"primaryKey" json:"id"`
	PatientID       snowflake.ID  `gorm:"not null;index" json:"patient_id"`
	BudgetID        *snowflake.ID `gorm:"index" json:"budget_id,omitempty"`
	Amount          float64       `gorm:"not null" json:"amount"`
	Method          PaymentMethod `gorm:"type:text;not null" json:"method"`
	Type            PaymentType   `gorm:"type:text;not null;index" json:"type"`
	SourcePaymentID *snowflake.ID `gorm:"index" json:"source_payment_id,omitempty"`
	TreatmentID     *snowflake.ID `gorm:"index" json:"treatment_id,omitempty"`
	DoctorID        *snowflake.ID `gorm:"index" json:"doctor_id,omitempty"`
	InvoiceID       *snowflake.ID `gorm:"index" json:"invoice_id,omitempty"`
	Notes           string        `gorm:"type:text" json:"notes,omitempty"`
	CreatedAt       time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName sets the database table name.
func (Payment) TableName() string { return "payments" }

// DeriveBalance folds the full payment history into the available advance
// balance:
//
//	+ ADVANCE_PAYMENT
//	- TRANSFER
//	- anything else paid from the wallet (DIRECT_CHARGE, INVOICE, ...)
//
// Each row is counted exactly once. This is the single source of truth for
// patients.wallet; the cached column is overwritten with this value after
// every ledger write.
func DeriveBalance(payments []Payment) float64 {
	balance := 0.0
	for _, p := range payments {
		switch {
		case p.Type == PaymentTypeAdvance:
			balance += p.Amount
		case p.Type == PaymentTypeTransfer:
			balance -= p.Amount
		case p.Method == PaymentMethodWallet:
			balance -= p.Amount
		}
	}
	return money.Round2(balance)
}
