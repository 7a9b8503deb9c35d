// Package domain defines the conversion engine: the single doorway from an
// accepted budget to a billable artifact.
package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	financingdomain "github.com/odontia/odontia/internal/financing/domain"
	invoicedomain "github.com/odontia/odontia/internal/invoice/domain"
)

type ConvertToInvoiceRequest struct {
	BudgetID      snowflake.ID
	PaymentMethod string
}

type CreatePlanRequest struct {
	BudgetID          snowflake.ID
	DownPayment       float64
	InstallmentsCount int
	StartDate         time.Time
}

type Service interface {
	// ConvertToInvoice turns an ACCEPTED budget into an invoice mirror and
	// marks the budget CONVERTED, atomically. External issuance happens after
	// commit and is non-fatal; the external identity is backfilled when it
	// succeeds.
	ConvertToInvoice(ctx context.Context, req ConvertToInvoiceRequest) (invoicedomain.Invoice, error)
	// CreatePlan turns an ACCEPTED budget into a financing plan. The plan
	// total is the budget total; invoices then flow installment by
	// installment instead of all at once.
	CreatePlan(ctx context.Context, req CreatePlanRequest) (financingdomain.TreatmentPlan, error)
}

var (
	ErrNotFound      = errors.New("not_found")
	ErrNotAcceptable = errors.New("not_acceptable")
)
