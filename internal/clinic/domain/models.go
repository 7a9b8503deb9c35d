// Package domain contains the clinical entities the billing core bills
// against: patients, doctors, treatments and appointments.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Patient carries the cached wallet balance. The wallet column is a
// materialized view over the payments log and is only ever written by the
// wallet service; it must never be used as an input to a balance decision.
type Patient struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	Name      string       `gorm:"type:text;not null" json:"name"`
	Email     string       `gorm:"type:text" json:"email"`
	TaxID     string       `gorm:"type:text" json:"tax_id"`
	Wallet    float64      `gorm:"not null;default:0" json:"wallet"`
	ContactID string       `gorm:"type:text" json:"contact_id,omitempty"`
	CreatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Patient) TableName() string { return "patients" }

// Doctor holds the commission rate snapshotted into liquidations at
// calculation time. Later rate changes never touch issued liquidations.
type Doctor struct {
	ID             snowflake.ID `gorm:"primaryKey" json:"id"`
	Name           string       `gorm:"type:text;not null" json:"name"`
	CommissionRate float64      `gorm:"not null;default:0" json:"commission_rate"`
	CreatedAt      time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName sets the database table name.
func (Doctor) TableName() string { return "doctors" }

// TreatmentStatus represents treatment payment states.
type TreatmentStatus string

const (
	TreatmentStatusPendiente TreatmentStatus = "PENDIENTE"
	TreatmentStatusPagado    TreatmentStatus = "PAGADO"
)

// Treatment is a unit of clinical work with its price and lab cost.
type Treatment struct {
	ID        snowflake.ID    `gorm:"primaryKey" json:"id"`
	PatientID snowflake.ID    `gorm:"not null;index" json:"patient_id"`
	Name      string          `gorm:"type:text;not null" json:"name"`
	Price     float64         `gorm:"not null" json:"price"`
	LabCost   float64         `gorm:"not null;default:0" json:"lab_cost"`
	Status    TreatmentStatus `gorm:"type:text;not null;default:'PENDIENTE'" json:"status"`
	CreatedAt time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName sets the database table name.
func (Treatment) TableName() string { return "treatments" }

// AppointmentStatus represents appointment lifecycle states.
type AppointmentStatus string

const (
	AppointmentStatusScheduled AppointmentStatus = "SCHEDULED"
	AppointmentStatusCompleted AppointmentStatus = "COMPLETED"
)

// Appointment links a doctor, a patient and a treatment. Synthetic rows are
// created by the transfer engine so a liquidation always has an appointment
// to hang off; payroll must tolerate them.
type Appointment struct {
	ID          snowflake.ID      `gorm:"primaryKey" json:"id"`
	PatientID   snowflake.ID      `gorm:"not null;index" json:"patient_id"`
	DoctorID    snowflake.ID      `gorm:"not null;index" json:"doctor_id"`
	TreatmentID *snowflake.ID     `gorm:"index" json:"treatment_id,omitempty"`
	Status      AppointmentStatus `gorm:"type:text;not null;default:'SCHEDULED'" json:"status"`
	Synthetic   bool              `gorm:"not null;default:false" json:"synthetic"`
	Date        time.Time         `gorm:"not null" json:"date"`
	CreatedAt   time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName sets the database table name.
func (Appointment) TableName() string { return "appointments" }

// HistoryNote is a clinical-history annotation. The billing core only
// appends; the clinical record UI owns everything else.
type HistoryNote struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	PatientID snowflake.ID `gorm:"not null;index" json:"patient_id"`
	Note      string       `gorm:"type:text;not null" json:"note"`
	CreatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName sets the database table name.
func (HistoryNote) TableName() string { return "history_notes" }
