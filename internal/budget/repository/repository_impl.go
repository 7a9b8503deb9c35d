package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/odontia/odontia/internal/budget/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, budget *domain.Budget) error {
	if err := db.WithContext(ctx).Exec(
		`INSERT INTO budgets (id, patient_id, status, title, total_amount, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		budget.ID,
		budget.PatientID,
		budget.Status,
		budget.Title,
		budget.TotalAmount,
		budget.CreatedAt,
		budget.UpdatedAt,
	).Error; err != nil {
		return err
	}
	for i := range budget.Items {
		if err := r.InsertItem(ctx, db, &budget.Items[i]); err != nil {
			return err
		}
	}
	return nil
}

func (r *repo) InsertItem(ctx context.Context, db *gorm.DB, item *domain.BudgetLineItem) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO budget_line_items (id, budget_id, name, price, quantity, tooth, face, treatment_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		item.ID,
		item.BudgetID,
		item.Name,
		item.Price,
		item.Quantity,
		item.Tooth,
		item.Face,
		item.TreatmentID,
		item.CreatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Budget, error) {
	var budget domain.Budget
	err := db.WithContext(ctx).Raw(
		`SELECT id, patient_id, status, title, total_amount, created_at, updated_at
		 FROM budgets WHERE id = ?`,
		id,
	).Scan(&budget).Error
	if err != nil {
		return nil, err
	}
	if budget.ID == 0 {
		return nil, nil
	}
	if err := db.WithContext(ctx).Raw(
		`SELECT id, budget_id, name, price, quantity, tooth, face, treatment_id, created_at
		 FROM budget_line_items WHERE budget_id = ? ORDER BY created_at ASC, id ASC`,
		id,
	).Scan(&budget.Items).Error; err != nil {
		return nil, err
	}
	return &budget, nil
}

// FindLatestEditable returns the most recent DRAFT budget for the patient, or
// nil when the patient has none.
func (r *repo) FindLatestEditable(ctx context.Context, db *gorm.DB, patientID snowflake.ID) (*domain.Budget, error) {
	var budget domain.Budget
	err := db.WithContext(ctx).Raw(
		`SELECT id, patient_id, status, title, total_amount, created_at, updated_at
		 FROM budgets
		 WHERE patient_id = ? AND status = ?
		 ORDER BY created_at DESC, id DESC
		 LIMIT 1`,
		patientID,
		domain.BudgetStatusDraft,
	).Scan(&budget).Error
	if err != nil {
		return nil, err
	}
	if budget.ID == 0 {
		return nil, nil
	}
	return &budget, nil
}

func (r *repo) ListByPatient(ctx context.Context, db *gorm.DB, patientID snowflake.ID) ([]domain.Budget, error) {
	var budgets []domain.Budget
	err := db.WithContext(ctx).Raw(
		`SELECT id, patient_id, status, title, total_amount, created_at, updated_at
		 FROM budgets
		 WHERE patient_id = ?
		 ORDER BY created_at DESC, id DESC`,
		patientID,
	).Scan(&budgets).Error
	if err != nil {
		return nil, err
	}
	return budgets, nil
}

// AddToTotal bumps the cached total by the new line's amount. The guard on
// status keeps totals frozen once a budget leaves the editable states.
func (r *repo) AddToTotal(ctx context.Context, db *gorm.DB, budgetID snowflake.ID, delta float64, now time.Time) (bool, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE budgets
		 SET total_amount = total_amount + ?, updated_at = ?
		 WHERE id = ? AND status IN (?, ?)`,
		delta,
		now,
		budgetID,
		domain.BudgetStatusDraft,
		domain.BudgetStatusPending,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// UpdateStatusIf transitions from -> to and reports whether a row changed.
// Zero rows means the budget was not in the expected state (lost race or
// illegal transition); callers map that to invalid_transition.
func (r *repo) UpdateStatusIf(ctx context.Context, db *gorm.DB, budgetID snowflake.ID, from []domain.BudgetStatus, to domain.BudgetStatus, now time.Time) (bool, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE budgets
		 SET status = ?, updated_at = ?
		 WHERE id = ? AND status IN ?`,
		to,
		now,
		budgetID,
		from,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// SumItems recomputes the total from the line items. Used to re-validate the
// incremental total maintained by AddToTotal.
func (r *repo) SumItems(ctx context.Context, db *gorm.DB, budgetID snowflake.ID) (float64, error) {
	var total float64
	err := db.WithContext(ctx).Raw(
		`SELECT COALESCE(SUM(price * quantity), 0) FROM budget_line_items WHERE budget_id = ?`,
		budgetID,
	).Scan(&total).Error
	return total, err
}
