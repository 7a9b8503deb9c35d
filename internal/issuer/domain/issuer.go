// Package domain defines the contract the billing core needs from the
// external tax-compliant e-invoicing provider. Failures of this collaborator
// are always recoverable: the money has already moved, so the ledger is
// recorded regardless and issuance is retried later.
package domain

import (
	"context"
	"errors"
	"time"
)

// Party identifies the billed party for contact resolution.
type Party struct {
	Name  string
	Email string
	TaxID string
}

// InvoiceLine is one line sent to the issuer.
type InvoiceLine struct {
	Name  string  `json:"name"`
	Price float64 `json:"price"`
	Units int     `json:"units"`
}

// CreateInvoiceRequest describes one billable cash event.
type CreateInvoiceRequest struct {
	ContactID     string        `json:"contact_id"`
	Lines         []InvoiceLine `json:"lines"`
	IssueDate     time.Time     `json:"issue_date"`
	DueDate       time.Time     `json:"due_date"`
	PaymentMethod string        `json:"payment_method"`
}

// IssueResult is the issuer's record of a created invoice. ExternalID is the
// authoritative identity for re-fetching documents.
type IssueResult struct {
	ExternalID string `json:"external_id"`
	Number     string `json:"number"`
	PDFURL     string `json:"pdf_url,omitempty"`
}

// InvoiceURLs are the document links for an issued invoice.
type InvoiceURLs struct {
	PreviewURL  string `json:"preview_url"`
	DownloadURL string `json:"download_url"`
}

type Issuer interface {
	GetOrCreateContact(ctx context.Context, party Party) (string, error)
	CreateInvoice(ctx context.Context, req CreateInvoiceRequest) (IssueResult, error)
	GetInvoiceURLs(ctx context.Context, externalID string) (InvoiceURLs, error)
}

var (
	ErrUnavailable = errors.New("issuer_unavailable")
	ErrRejected    = errors.New("issuer_rejected")
)
