package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// Repository is shared with the conversion engine and the financing
// scheduler so invoice mirrors are written inside their transactions.
type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, invoice *Invoice) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Invoice, error)
	ListByPatient(ctx context.Context, db *gorm.DB, patientID snowflake.ID) ([]Invoice, error)
	CountByPatient(ctx context.Context, db *gorm.DB, patientID snowflake.ID) (int64, error)
	// UpdateExternal caches the issuer identity and PDF URL. The only legal
	// mutation after creation.
	UpdateExternal(ctx context.Context, db *gorm.DB, id snowflake.ID, externalID, url string) error
	NextNumber(ctx context.Context, db *gorm.DB, year int) (string, error)
}
