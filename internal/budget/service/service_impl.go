package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/odontia/odontia/internal/budget/domain"
	"github.com/odontia/odontia/internal/money"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Repo  domain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	repo  domain.Repository
}

func New(p Params) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("budget.service"),
		genID: p.GenID,
		repo:  p.Repo,
	}
}

func validateItem(item domain.LineItemInput) error {
	if strings.TrimSpace(item.Name) == "" {
		return domain.ErrInvalidName
	}
	if item.Price < 0 {
		return domain.ErrInvalidPrice
	}
	if item.Quantity <= 0 {
		return domain.ErrInvalidQuantity
	}
	return nil
}

// Create opens a budget in DRAFT. Items may be empty (manual draft); the
// total is always computed server side, never taken from the client.
func (s *Service) Create(ctx context.Context, req domain.CreateBudgetRequest) (domain.Budget, error) {
	if req.PatientID == 0 {
		return domain.Budget{}, domain.ErrInvalidPatient
	}
	for _, item := range req.Items {
		if err := validateItem(item); err != nil {
			return domain.Budget{}, err
		}
	}

	now := time.Now().UTC()
	budget := domain.Budget{
		ID:        s.genID.Generate(),
		PatientID: req.PatientID,
		Status:    domain.BudgetStatusDraft,
		Title:     strings.TrimSpace(req.Title),
		CreatedAt: now,
		UpdatedAt: now,
	}

	total := 0.0
	for _, item := range req.Items {
		total = money.Round2(total + money.Line(item.Price, item.Quantity))
		budget.Items = append(budget.Items, domain.BudgetLineItem{
			ID:          s.genID.Generate(),
			BudgetID:    budget.ID,
			Name:        strings.TrimSpace(item.Name),
			Price:       money.Round2(item.Price),
			Quantity:    item.Quantity,
			Tooth:       item.Tooth,
			Face:        item.Face,
			TreatmentID: item.TreatmentID,
			CreatedAt:   now,
		})
	}
	budget.TotalAmount = total

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.repo.Insert(ctx, tx, &budget)
	})
	if err != nil {
		return domain.Budget{}, err
	}

	s.log.Info("budget created",
		zap.String("budget_id", budget.ID.String()),
		zap.String("patient_id", budget.PatientID.String()),
		zap.Float64("total_amount", budget.TotalAmount),
	)
	return budget, nil
}

// AddLineItem appends to the patient's most recent DRAFT budget, creating one
// when none exists. The total is bumped incrementally; SumItems re-validates
// it in tests since incremental maintenance is where drift bugs live.
func (s *Service) AddLineItem(ctx context.Context, req domain.AddLineItemRequest) (domain.Budget, error) {
	if req.PatientID == 0 {
		return domain.Budget{}, domain.ErrInvalidPatient
	}
	if err := validateItem(req.Item); err != nil {
		return domain.Budget{}, err
	}

	var budgetID snowflake.ID
	now := time.Now().UTC()
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		budget, err := s.repo.FindLatestEditable(ctx, tx, req.PatientID)
		if err != nil {
			return err
		}
		if budget == nil {
			budget = &domain.Budget{
				ID:        s.genID.Generate(),
				PatientID: req.PatientID,
				Status:    domain.BudgetStatusDraft,
				CreatedAt: now,
				UpdatedAt: now,
			}
			if err := s.repo.Insert(ctx, tx, budget); err != nil {
				return err
			}
		}
		budgetID = budget.ID

		item := domain.BudgetLineItem{
			ID:          s.genID.Generate(),
			BudgetID:    budget.ID,
			Name:        strings.TrimSpace(req.Item.Name),
			Price:       money.Round2(req.Item.Price),
			Quantity:    req.Item.Quantity,
			Tooth:       req.Item.Tooth,
			Face:        req.Item.Face,
			TreatmentID: req.Item.TreatmentID,
			CreatedAt:   now,
		}
		if err := s.repo.InsertItem(ctx, tx, &item); err != nil {
			return err
		}

		updated, err := s.repo.AddToTotal(ctx, tx, budget.ID, money.Line(item.Price, item.Quantity), now)
		if err != nil {
			return err
		}
		if !updated {
			return domain.ErrInvalidTransition
		}
		return nil
	})
	if err != nil {
		return domain.Budget{}, err
	}

	return s.GetByID(ctx, budgetID)
}

// SetStatus applies owner transitions: DRAFT/PENDING -> ACCEPTED or REJECTED.
// CONVERTED is reserved for the conversion engine.
func (s *Service) SetStatus(ctx context.Context, budgetID snowflake.ID, status domain.BudgetStatus) (domain.Budget, error) {
	if status != domain.BudgetStatusAccepted && status != domain.BudgetStatusRejected {
		return domain.Budget{}, domain.ErrInvalidStatus
	}

	now := time.Now().UTC()
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		budget, err := s.repo.FindByID(ctx, tx, budgetID)
		if err != nil {
			return err
		}
		if budget == nil {
			return domain.ErrNotFound
		}
		updated, err := s.repo.UpdateStatusIf(ctx, tx, budgetID,
			[]domain.BudgetStatus{domain.BudgetStatusDraft, domain.BudgetStatusPending},
			status, now)
		if err != nil {
			return err
		}
		if !updated {
			return domain.ErrInvalidTransition
		}
		return nil
	})
	if err != nil {
		return domain.Budget{}, err
	}

	s.log.Info("budget status changed",
		zap.String("budget_id", budgetID.String()),
		zap.String("status", string(status)),
	)
	return s.GetByID(ctx, budgetID)
}

func (s *Service) GetByID(ctx context.Context, budgetID snowflake.ID) (domain.Budget, error) {
	budget, err := s.repo.FindByID(ctx, s.db, budgetID)
	if err != nil {
		return domain.Budget{}, err
	}
	if budget == nil {
		return domain.Budget{}, domain.ErrNotFound
	}
	return *budget, nil
}

func (s *Service) ListByPatient(ctx context.Context, patientID snowflake.ID) ([]domain.Budget, error) {
	if patientID == 0 {
		return nil, domain.ErrInvalidPatient
	}
	return s.repo.ListByPatient(ctx, s.db, patientID)
}
