// Package domain contains the local invoice mirror. The external issuer is
// the legal source of truth for tax purposes; rows here exist for reporting
// continuity and are written exactly once per billable cash event.
package domain

import (
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

// InvoiceStatus represents invoice lifecycle states.
type InvoiceStatus string

const (
	InvoiceStatusPending InvoiceStatus = "PENDING"
	InvoiceStatusPaid    InvoiceStatus = "PAID"
	InvoiceStatusVoid    InvoiceStatus = "VOID"
)

// Invoice mirrors a billable cash event. ExternalID links the record in the
// external tax-compliant issuer and is the authoritative identity for
// re-fetching a PDF. Only URL may be updated after creation.
type Invoice struct {
	ID            snowflake.ID  `gorm:"primaryKey" json:"id"`
	InvoiceNumber string        `gorm:"type:text;not null;uniqueIndex" json:"invoice_number"`
	PatientID     snowflake.ID  `gorm:"not null;index" json:"patient_id"`
	Amount        float64       `gorm:"not null" json:"amount"`
	Date          time.Time     `gorm:"not null" json:"date"`
	Status        InvoiceStatus `gorm:"type:text;not null;default:'PENDING'" json:"status"`
	ExternalID    string        `gorm:"type:text;index" json:"external_id,omitempty"`
	URL           string        `gorm:"type:text" json:"url,omitempty"`
	PaymentMethod string        `gorm:"type:text" json:"payment_method,omitempty"`
	Items         []InvoiceItem `gorm:"foreignKey:InvoiceID;constraint:OnDelete:CASCADE" json:"items,omitempty"`
	CreatedAt     time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName sets the database table name.
func (Invoice) TableName() string { return "invoices" }

// InvoiceItem is a line on a mirrored invoice.
type InvoiceItem struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	InvoiceID snowflake.ID `gorm:"not null;index" json:"invoice_id"`
	Name      string       `gorm:"type:text;not null" json:"name"`
	Price     float64      `gorm:"not null" json:"price"`
	CreatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName sets the database table name.
func (InvoiceItem) TableName() string { return "invoice_items" }

var (
	ErrNotFound = errors.New("not_found")
)
