package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/odontia/odontia/internal/financing/domain"
	invoicedomain "github.com/odontia/odontia/internal/invoice/domain"
	issuerdomain "github.com/odontia/odontia/internal/issuer/domain"
	"github.com/odontia/odontia/internal/money"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	GenID       *snowflake.Node
	Issuer      issuerdomain.Issuer
	InvoiceRepo invoicedomain.Repository
}

type Service struct {
	db          *gorm.DB
	log         *zap.Logger
	genID       *snowflake.Node
	issuer      issuerdomain.Issuer
	invoiceRepo invoicedomain.Repository
}

func New(p Params) domain.Service {
	return &Service{
		db:          p.DB,
		log:         p.Log.Named("financing.service"),
		genID:       p.GenID,
		issuer:      p.Issuer,
		invoiceRepo: p.InvoiceRepo,
	}
}

func (s *Service) CreatePlan(ctx context.Context, req domain.CreatePlanRequest) (domain.TreatmentPlan, error) {
	var plan domain.TreatmentPlan
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		plan, err = s.CreatePlanTx(ctx, tx, req)
		return err
	})
	if err != nil {
		return domain.TreatmentPlan{}, err
	}

	// The down payment is billed right away. A failing issuer must not fail
	// plan creation: the row stays PENDING for the due processor to retry.
	if err := s.BillDownPayment(ctx, plan.ID); err != nil {
		s.log.Warn("down payment invoice failed, plan kept",
			zap.String("plan_id", plan.ID.String()),
			zap.Error(err),
		)
	}

	return s.GetPlan(ctx, plan.ID)
}

func (s *Service) CreatePlanTx(ctx context.Context, tx *gorm.DB, req domain.CreatePlanRequest) (domain.TreatmentPlan, error) {
	if req.PatientID == 0 {
		return domain.TreatmentPlan{}, domain.ErrInvalidPatient
	}
	if req.TotalAmount <= 0 {
		return domain.TreatmentPlan{}, domain.ErrInvalidAmount
	}
	if req.DownPayment < 0 || req.DownPayment > req.TotalAmount {
		return domain.TreatmentPlan{}, domain.ErrInvalidDownPayment
	}
	if req.InstallmentsCount < 0 {
		return domain.TreatmentPlan{}, domain.ErrInvalidInstallments
	}

	now := time.Now().UTC()
	startDate := req.StartDate
	if startDate.IsZero() {
		startDate = now
	}

	plan := domain.TreatmentPlan{
		ID:        s.genID.Generate(),
		PatientID: req.PatientID,
		Name:      strings.TrimSpace(req.Name),
		TotalCost: money.Round2(req.TotalAmount),
		StartDate: startDate,
		Duration:  req.InstallmentsCount,
		Status:    domain.PlanStatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if plan.Name == "" {
		plan.Name = "Plan de tratamiento"
	}

	schedule := domain.BuildSchedule(req.TotalAmount, req.DownPayment, req.InstallmentsCount, now, startDate)
	for _, item := range schedule {
		plan.Items = append(plan.Items, domain.Installment{
			ID:          s.genID.Generate(),
			PlanID:      plan.ID,
			DueDate:     item.DueDate,
			Amount:      item.Amount,
			Status:      domain.InstallmentStatusPending,
			Description: item.Description,
			CreatedAt:   now,
		})
	}

	if err := tx.WithContext(ctx).Exec(
		`INSERT INTO treatment_plans (id, patient_id, name, total_cost, start_date, duration, status, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		plan.ID, plan.PatientID, plan.Name, plan.TotalCost, plan.StartDate, plan.Duration, plan.Status, plan.CreatedAt, plan.UpdatedAt,
	).Error; err != nil {
		return domain.TreatmentPlan{}, err
	}
	for _, inst := range plan.Items {
		if err := tx.WithContext(ctx).Exec(
			`INSERT INTO installments (id, plan_id, due_date, amount, status, description, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			inst.ID, inst.PlanID, inst.DueDate, inst.Amount, inst.Status, inst.Description, inst.CreatedAt,
		).Error; err != nil {
			return domain.TreatmentPlan{}, err
		}
	}

	s.log.Info("financing plan created",
		zap.String("plan_id", plan.ID.String()),
		zap.String("patient_id", plan.PatientID.String()),
		zap.Float64("total_cost", plan.TotalCost),
		zap.Int("installments", len(plan.Items)),
	)
	return plan, nil
}

func (s *Service) BillDownPayment(ctx context.Context, planID snowflake.ID) error {
	plan, err := s.GetPlan(ctx, planID)
	if err != nil {
		return err
	}
	if len(plan.Items) == 0 {
		return nil
	}
	down := plan.Items[0]
	if down.Description != "Entrada Inicial" || down.InvoiceID != nil || down.Status != domain.InstallmentStatusPending {
		return nil
	}
	return s.issueInstallment(ctx, plan.PatientID, &down, time.Now().UTC())
}

func (s *Service) GetPlan(ctx context.Context, planID snowflake.ID) (domain.TreatmentPlan, error) {
	var plan domain.TreatmentPlan
	err := s.db.WithContext(ctx).Raw(
		`SELECT id, patient_id, name, total_cost, start_date, duration, status, created_at, updated_at
		 FROM treatment_plans WHERE id = ?`,
		planID,
	).Scan(&plan).Error
	if err != nil {
		return domain.TreatmentPlan{}, err
	}
	if plan.ID == 0 {
		return domain.TreatmentPlan{}, domain.ErrNotFound
	}
	if err := s.db.WithContext(ctx).Raw(
		`SELECT id, plan_id, due_date, amount, status, description, invoice_id, invoiced_at, paid_date, created_at
		 FROM installments WHERE plan_id = ? ORDER BY due_date ASC, id ASC`,
		planID,
	).Scan(&plan.Items).Error; err != nil {
		return domain.TreatmentPlan{}, err
	}
	return plan, nil
}

func (s *Service) ListByPatient(ctx context.Context, patientID snowflake.ID) ([]domain.TreatmentPlan, error) {
	if patientID == 0 {
		return nil, domain.ErrInvalidPatient
	}
	var plans []domain.TreatmentPlan
	err := s.db.WithContext(ctx).Raw(
		`SELECT id, patient_id, name, total_cost, start_date, duration, status, created_at, updated_at
		 FROM treatment_plans WHERE patient_id = ? ORDER BY created_at DESC, id DESC`,
		patientID,
	).Scan(&plans).Error
	if err != nil {
		return nil, err
	}
	return plans, nil
}

type dueInstallment struct {
	ID          snowflake.ID
	PlanID      snowflake.ID
	PatientID   snowflake.ID
	DueDate     time.Time
	Amount      float64
	Description string
}

// ProcessDue bills every installment due at now that has not been invoiced.
// Safe to run concurrently with manual operations: the stamp is a
// conditional update keyed on invoice_id IS NULL, not a table lock.
func (s *Service) ProcessDue(ctx context.Context, now time.Time) (int, error) {
	var due []dueInstallment
	err := s.db.WithContext(ctx).Raw(
		`SELECT i.id, i.plan_id, p.patient_id, i.due_date, i.amount, i.description
		 FROM installments i
		 JOIN treatment_plans p ON p.id = i.plan_id
		 WHERE i.due_date <= ?
		   AND i.invoice_id IS NULL
		   AND i.status = ?
		   AND p.status = ?
		 ORDER BY i.due_date ASC, i.id ASC`,
		now,
		domain.InstallmentStatusPending,
		domain.PlanStatusActive,
	).Scan(&due).Error
	if err != nil {
		return 0, err
	}

	billed := 0
	for _, row := range due {
		if ctx.Err() != nil {
			return billed, ctx.Err()
		}
		inst := domain.Installment{
			ID:          row.ID,
			PlanID:      row.PlanID,
			Amount:      row.Amount,
			DueDate:     row.DueDate,
			Description: row.Description,
		}
		if err := s.issueInstallment(ctx, row.PatientID, &inst, now); err != nil {
			s.log.Warn("installment invoice failed",
				zap.String("installment_id", row.ID.String()),
				zap.String("plan_id", row.PlanID.String()),
				zap.Error(err),
			)
			continue
		}
		billed++
	}
	return billed, nil
}

type patientBilling struct {
	ID        snowflake.ID
	Name      string
	Email     string
	TaxID     string
	ContactID string
}

// issueInstallment bills one installment through the external issuer and
// stamps it. The stamp is guarded on invoice_id IS NULL so a concurrent
// processor run cannot bill the same installment twice.
func (s *Service) issueInstallment(ctx context.Context, patientID snowflake.ID, inst *domain.Installment, now time.Time) error {
	var patient patientBilling
	if err := s.db.WithContext(ctx).Raw(
		`SELECT id, name, email, tax_id, contact_id FROM patients WHERE id = ?`,
		patientID,
	).Scan(&patient).Error; err != nil {
		return err
	}
	if patient.ID == 0 {
		return domain.ErrInvalidPatient
	}

	contactID := patient.ContactID
	if contactID == "" {
		var err error
		contactID, err = s.issuer.GetOrCreateContact(ctx, issuerdomain.Party{
			Name:  patient.Name,
			Email: patient.Email,
			TaxID: patient.TaxID,
		})
		if err != nil {
			return err
		}
		if err := s.db.WithContext(ctx).Exec(
			`UPDATE patients SET contact_id = ?, updated_at = ? WHERE id = ?`,
			contactID, now, patientID,
		).Error; err != nil {
			return err
		}
	}

	description := inst.Description
	if description == "" {
		description = "Cuota de financiación"
	}
	result, err := s.issuer.CreateInvoice(ctx, issuerdomain.CreateInvoiceRequest{
		ContactID:     contactID,
		Lines:         []issuerdomain.InvoiceLine{{Name: description, Price: inst.Amount, Units: 1}},
		IssueDate:     now,
		DueDate:       inst.DueDate,
		PaymentMethod: "financed",
	})
	if err != nil {
		return err
	}

	mirror := invoicedomain.Invoice{
		ID:            s.genID.Generate(),
		InvoiceNumber: result.Number,
		PatientID:     patientID,
		Amount:        inst.Amount,
		Date:          now,
		Status:        invoicedomain.InvoiceStatusPaid,
		ExternalID:    result.ExternalID,
		URL:           result.PDFURL,
		PaymentMethod: "financed",
		Items: []invoicedomain.InvoiceItem{{
			ID:        s.genID.Generate(),
			Name:      description,
			Price:     inst.Amount,
			CreatedAt: now,
		}},
		CreatedAt: now,
	}
	mirror.Items[0].InvoiceID = mirror.ID

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		stamp := tx.WithContext(ctx).Exec(
			`UPDATE installments
			 SET invoice_id = ?, invoiced_at = ?, status = ?, paid_date = ?
			 WHERE id = ? AND invoice_id IS NULL`,
			mirror.ID,
			now,
			domain.InstallmentStatusPaid,
			now,
			inst.ID,
		)
		if stamp.Error != nil {
			return stamp.Error
		}
		if stamp.RowsAffected == 0 {
			// lost the race: another run already billed it
			s.log.Warn("installment already stamped, skipping mirror",
				zap.String("installment_id", inst.ID.String()),
				zap.String("external_id", result.ExternalID),
			)
			return nil
		}
		if err := s.invoiceRepo.Insert(ctx, tx, &mirror); err != nil {
			return err
		}
		return s.completePlanIfPaid(ctx, tx, inst.PlanID, now)
	})
}

func (s *Service) completePlanIfPaid(ctx context.Context, tx *gorm.DB, planID snowflake.ID, now time.Time) error {
	var pending int64
	if err := tx.WithContext(ctx).Raw(
		`SELECT COUNT(1) FROM installments WHERE plan_id = ? AND status <> ?`,
		planID,
		domain.InstallmentStatusPaid,
	).Scan(&pending).Error; err != nil {
		return err
	}
	if pending > 0 {
		return nil
	}
	return tx.WithContext(ctx).Exec(
		`UPDATE treatment_plans SET status = ?, updated_at = ? WHERE id = ? AND status = ?`,
		domain.PlanStatusCompleted,
		now,
		planID,
		domain.PlanStatusActive,
	).Error
}
