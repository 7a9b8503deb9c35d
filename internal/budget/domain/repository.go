package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, budget *Budget) error
	InsertItem(ctx context.Context, db *gorm.DB, item *BudgetLineItem) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Budget, error)
	FindLatestEditable(ctx context.Context, db *gorm.DB, patientID snowflake.ID) (*Budget, error)
	ListByPatient(ctx context.Context, db *gorm.DB, patientID snowflake.ID) ([]Budget, error)
	AddToTotal(ctx context.Context, db *gorm.DB, budgetID snowflake.ID, delta float64, now time.Time) (bool, error)
	UpdateStatusIf(ctx context.Context, db *gorm.DB, budgetID snowflake.ID, from []BudgetStatus, to BudgetStatus, now time.Time) (bool, error)
	SumItems(ctx context.Context, db *gorm.DB, budgetID snowflake.ID) (float64, error)
}
