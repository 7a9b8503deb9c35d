// Package domain contains financing plans and their installment schedules.
package domain

import (
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/odontia/odontia/internal/money"
)

// PlanStatus represents financing plan lifecycle states.
type PlanStatus string

const (
	PlanStatusActive    PlanStatus = "ACTIVE"
	PlanStatusCompleted PlanStatus = "COMPLETED"
	PlanStatusCancelled PlanStatus = "CANCELLED"
)

// InstallmentStatus represents per-installment states.
type InstallmentStatus string

const (
	InstallmentStatusPending InstallmentStatus = "PENDING"
	InstallmentStatusPaid    InstallmentStatus = "PAID"
)

// TreatmentPlan is a financed treatment: a down payment plus N monthly
// installments summing exactly to TotalCost.
type TreatmentPlan struct {
	ID        snowflake.ID  `gorm:"primaryKey" json:"id"`
	PatientID snowflake.ID  `gorm:"not null;index" json:"patient_id"`
	Name      string        `gorm:"type:text;not null" json:"name"`
	TotalCost float64       `gorm:"not null" json:"total_cost"`
	StartDate time.Time     `gorm:"not null" json:"start_date"`
	Duration  int           `gorm:"not null" json:"duration"`
	Status    PlanStatus    `gorm:"type:text;not null;default:'ACTIVE'" json:"status"`
	Items     []Installment `gorm:"foreignKey:PlanID;constraint:OnDelete:CASCADE" json:"installments,omitempty"`
	CreatedAt time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (TreatmentPlan) TableName() string { return "treatment_plans" }

// Installment is one scheduled partial payment. An installment carrying an
// invoice_id has been billed and is never reprocessed.
type Installment struct {
	ID          snowflake.ID      `gorm:"primaryKey" json:"id"`
	PlanID      snowflake.ID      `gorm:"not null;index" json:"plan_id"`
	DueDate     time.Time         `gorm:"not null;index" json:"due_date"`
	Amount      float64           `gorm:"not null" json:"amount"`
	Status      InstallmentStatus `gorm:"type:text;not null;default:'PENDING'" json:"status"`
	Description string            `gorm:"type:text;not null" json:"description"`
	InvoiceID   *snowflake.ID     `gorm:"index" json:"invoice_id,omitempty"`
	InvoicedAt  *time.Time        `json:"invoiced_at,omitempty"`
	PaidDate    *time.Time        `json:"paid_date,omitempty"`
	CreatedAt   time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName sets the database table name.
func (Installment) TableName() string { return "installments" }

// ScheduledItem is one computed row of an amortization schedule.
type ScheduledItem struct {
	DueDate     time.Time
	Amount      float64
	Description string
	DownPayment bool
}

// BuildSchedule computes the amortization schedule. The down payment (when
// present) is due immediately; installments 1..n fall on startDate plus i
// calendar months (standard time.AddDate day-overflow normalization). The
// final installment absorbs the division residue so the schedule sums
// exactly to totalAmount. n = 0 is legal and yields only the down payment.
func BuildSchedule(totalAmount, downPayment float64, n int, now, startDate time.Time) []ScheduledItem {
	var items []ScheduledItem
	if downPayment > 0 {
		items = append(items, ScheduledItem{
			DueDate:     now,
			Amount:      money.Round2(downPayment),
			Description: "Entrada Inicial",
			DownPayment: true,
		})
	}
	if n <= 0 {
		return items
	}

	financed := money.Round2(totalAmount - downPayment)
	per := money.Round2(financed / float64(n))
	for i := 1; i <= n; i++ {
		amount := per
		if i == n {
			amount = money.Round2(financed - per*float64(n-1))
		}
		items = append(items, ScheduledItem{
			DueDate:     startDate.AddDate(0, i, 0),
			Amount:      amount,
			Description: fmt.Sprintf("Cuota %d/%d", i, n),
		})
	}
	return items
}
