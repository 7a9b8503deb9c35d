// Package domain contains doctor commission (liquidation) models and math.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/odontia/odontia/internal/money"
)

// LiquidationStatus represents payout states.
type LiquidationStatus string

const (
	LiquidationStatusPending LiquidationStatus = "PENDING"
	LiquidationStatusPaid    LiquidationStatus = "PAID"
)

// Liquidation is a doctor's computed commission for one billable unit of
// work. The commission rate is snapshotted from the Doctor row at
// calculation time; later rate changes never reprice issued liquidations.
type Liquidation struct {
	ID             snowflake.ID      `gorm:"primaryKey" json:"id"`
	DoctorID       snowflake.ID      `gorm:"not null;index" json:"doctor_id"`
	AppointmentID  snowflake.ID      `gorm:"not null;index" json:"appointment_id"`
	GrossAmount    float64           `gorm:"not null" json:"gross_amount"`
	LabCost        float64           `gorm:"not null;default:0" json:"lab_cost"`
	CommissionRate float64           `gorm:"not null" json:"commission_rate"`
	FinalAmount    float64           `gorm:"not null" json:"final_amount"`
	Status         LiquidationStatus `gorm:"type:text;not null;default:'PENDING'" json:"status"`
	CreatedAt      time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt      time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Liquidation) TableName() string { return "liquidations" }

// Commission computes the payable amount: (gross - labCost) clamped at zero,
// times the doctor's rate, to 2 decimals.
func Commission(gross, labCost, rate float64) float64 {
	net := gross - labCost
	if net < 0 {
		net = 0
	}
	return money.Round2(net * rate)
}
