package service

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	budgetdomain "github.com/odontia/odontia/internal/budget/domain"
	"github.com/odontia/odontia/internal/conversion/domain"
	financingdomain "github.com/odontia/odontia/internal/financing/domain"
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
	BudgetRepo  budgetdomain.Repository
	InvoiceRepo invoicedomain.Repository
	Issuer      issuerdomain.Issuer
	Financing   financingdomain.Service
}

type Service struct {
	db          *gorm.DB
	log         *zap.Logger
	genID       *snowflake.Node
	budgetRepo  budgetdomain.Repository
	invoiceRepo invoicedomain.Repository
	issuer      issuerdomain.Issuer
	financing   financingdomain.Service
}

func New(p Params) domain.Service {
	return &Service{
		db:          p.DB,
		log:         p.Log.Named("conversion.service"),
		genID:       p.GenID,
		budgetRepo:  p.BudgetRepo,
		invoiceRepo: p.InvoiceRepo,
		issuer:      p.Issuer,
		financing:   p.Financing,
	}
}

func (s *Service) ConvertToInvoice(ctx context.Context, req domain.ConvertToInvoiceRequest) (invoicedomain.Invoice, error) {
	budget, err := s.budgetRepo.FindByID(ctx, s.db, req.BudgetID)
	if err != nil {
		return invoicedomain.Invoice{}, err
	}
	if budget == nil {
		return invoicedomain.Invoice{}, domain.ErrNotFound
	}
	if budget.Status != budgetdomain.BudgetStatusAccepted {
		return invoicedomain.Invoice{}, domain.ErrNotAcceptable
	}

	now := time.Now().UTC()
	// the invoice starts PENDING; collection is a separate ledger event
	invoice := invoicedomain.Invoice{
		ID:            s.genID.Generate(),
		PatientID:     budget.PatientID,
		Amount:        money.Round2(budget.TotalAmount),
		Date:          now,
		Status:        invoicedomain.InvoiceStatusPending,
		PaymentMethod: req.PaymentMethod,
		CreatedAt:     now,
	}
	for _, item := range budget.Items {
		invoice.Items = append(invoice.Items, invoicedomain.InvoiceItem{
			ID:        s.genID.Generate(),
			InvoiceID: invoice.ID,
			Name:      item.Name,
			Price:     money.Line(item.Price, item.Quantity),
			CreatedAt: now,
		})
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// the status flip is the conversion lock: of two concurrent calls
		// only one sees RowsAffected > 0
		converted, err := s.budgetRepo.UpdateStatusIf(ctx, tx, budget.ID,
			[]budgetdomain.BudgetStatus{budgetdomain.BudgetStatusAccepted},
			budgetdomain.BudgetStatusConverted, now)
		if err != nil {
			return err
		}
		if !converted {
			return domain.ErrNotAcceptable
		}
		number, err := s.invoiceRepo.NextNumber(ctx, tx, now.Year())
		if err != nil {
			return err
		}
		invoice.InvoiceNumber = number
		return s.invoiceRepo.Insert(ctx, tx, &invoice)
	})
	if err != nil {
		return invoicedomain.Invoice{}, err
	}

	s.log.Info("budget converted to invoice",
		zap.String("budget_id", budget.ID.String()),
		zap.String("invoice_id", invoice.ID.String()),
		zap.String("invoice_number", invoice.InvoiceNumber),
		zap.Float64("amount", invoice.Amount),
	)

	// External issuance after commit. Failure leaves a valid local invoice
	// without an external identity; a later GetInvoiceURLs call or manual
	// retry backfills it.
	if err := s.issueExternal(ctx, &invoice, now); err != nil {
		s.log.Warn("external invoice issuance failed",
			zap.String("invoice_id", invoice.ID.String()),
			zap.Error(err),
		)
	}
	return invoice, nil
}

func (s *Service) CreatePlan(ctx context.Context, req domain.CreatePlanRequest) (financingdomain.TreatmentPlan, error) {
	budget, err := s.budgetRepo.FindByID(ctx, s.db, req.BudgetID)
	if err != nil {
		return financingdomain.TreatmentPlan{}, err
	}
	if budget == nil {
		return financingdomain.TreatmentPlan{}, domain.ErrNotFound
	}
	if budget.Status != budgetdomain.BudgetStatusAccepted {
		return financingdomain.TreatmentPlan{}, domain.ErrNotAcceptable
	}

	now := time.Now().UTC()
	name := budget.Title
	if name == "" {
		name = "Plan de tratamiento"
	}

	// the status flip and the plan rows commit or roll back together, so a
	// CONVERTED budget always has a plan behind it
	var plan financingdomain.TreatmentPlan
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		converted, err := s.budgetRepo.UpdateStatusIf(ctx, tx, budget.ID,
			[]budgetdomain.BudgetStatus{budgetdomain.BudgetStatusAccepted},
			budgetdomain.BudgetStatusConverted, now)
		if err != nil {
			return err
		}
		if !converted {
			return domain.ErrNotAcceptable
		}
		plan, err = s.financing.CreatePlanTx(ctx, tx, financingdomain.CreatePlanRequest{
			PatientID:         budget.PatientID,
			Name:              name,
			TotalAmount:       budget.TotalAmount,
			DownPayment:       req.DownPayment,
			InstallmentsCount: req.InstallmentsCount,
			StartDate:         req.StartDate,
		})
		return err
	})
	if err != nil {
		return financingdomain.TreatmentPlan{}, err
	}

	// external issuance after commit, never inside the transaction
	if req.DownPayment > 0 {
		if err := s.financing.BillDownPayment(ctx, plan.ID); err != nil {
			s.log.Warn("down payment invoice failed, plan kept",
				zap.String("plan_id", plan.ID.String()),
				zap.Error(err),
			)
		}
	}

	s.log.Info("budget converted to financing plan",
		zap.String("budget_id", budget.ID.String()),
		zap.String("plan_id", plan.ID.String()),
		zap.Int("installments", len(plan.Items)),
	)
	return s.financing.GetPlan(ctx, plan.ID)
}

func (s *Service) issueExternal(ctx context.Context, invoice *invoicedomain.Invoice, now time.Time) error {
	var patient struct {
		ID        snowflake.ID
		Name      string
		Email     string
		TaxID     string
		ContactID string
	}
	if err := s.db.WithContext(ctx).Raw(
		`SELECT id, name, email, tax_id, contact_id FROM patients WHERE id = ?`,
		invoice.PatientID,
	).Scan(&patient).Error; err != nil {
		return err
	}
	if patient.ID == 0 {
		return domain.ErrNotFound
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
			contactID, now, patient.ID,
		).Error; err != nil {
			return err
		}
	}

	lines := make([]issuerdomain.InvoiceLine, 0, len(invoice.Items))
	for _, item := range invoice.Items {
		lines = append(lines, issuerdomain.InvoiceLine{
			Name:  item.Name,
			Price: item.Price,
			Units: 1,
		})
	}
	result, err := s.issuer.CreateInvoice(ctx, issuerdomain.CreateInvoiceRequest{
		ContactID:     contactID,
		Lines:         lines,
		IssueDate:     now,
		DueDate:       now,
		PaymentMethod: invoice.PaymentMethod,
	})
	if err != nil {
		return err
	}

	invoice.ExternalID = result.ExternalID
	invoice.URL = result.PDFURL
	return s.invoiceRepo.UpdateExternal(ctx, s.db, invoice.ID, result.ExternalID, result.PDFURL)
}
