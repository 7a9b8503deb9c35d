// Package domain contains persistence models for treatment budgets.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// BudgetStatus represents budget lifecycle states.
type BudgetStatus string

const (
	BudgetStatusDraft     BudgetStatus = "DRAFT"
	BudgetStatusPending   BudgetStatus = "PENDING"
	BudgetStatusAccepted  BudgetStatus = "ACCEPTED"
	BudgetStatusRejected  BudgetStatus = "REJECTED"
	BudgetStatusConverted BudgetStatus = "CONVERTED"
)

// Budget is a quote for treatment work. It is not a tax document; it becomes
// one through conversion, exactly once.
type Budget struct {
	ID          snowflake.ID     `gorm:"primaryKey" json:"id"`
	PatientID   snowflake.ID     `gorm:"not null;index" json:"patient_id"`
	Status      BudgetStatus     `gorm:"type:text;not null;default:'DRAFT'" json:"status"`
	Title       string           `gorm:"type:text" json:"title,omitempty"`
	TotalAmount float64          `gorm:"not null;default:0" json:"total_amount"`
	Items       []BudgetLineItem `gorm:"foreignKey:BudgetID;constraint:OnDelete:CASCADE" json:"items,omitempty"`
	CreatedAt   time.Time        `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt   time.Time        `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Budget) TableName() string { return "budgets" }

// BudgetLineItem is one quoted procedure on a budget.
type BudgetLineItem struct {
	ID          snowflake.ID  `gorm:"primaryKey" json:"id"`
	BudgetID    snowflake.ID  `gorm:"not null;index" json:"budget_id"`
	Name        string        `gorm:"type:text;not null" json:"name"`
	Price       float64       `gorm:"not null" json:"price"`
	Quantity    int           `gorm:"not null;default:1" json:"quantity"`
	Tooth       string        `gorm:"type:text" json:"tooth,omitempty"`
	Face        string        `gorm:"type:text" json:"face,omitempty"`
	TreatmentID *snowflake.ID `gorm:"index" json:"treatment_id,omitempty"`
	CreatedAt   time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName sets the database table name.
func (BudgetLineItem) TableName() string { return "budget_line_items" }

// Editable reports whether line items may still be appended.
func (b Budget) Editable() bool {
	return b.Status == BudgetStatusDraft || b.Status == BudgetStatusPending
}
