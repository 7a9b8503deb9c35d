package service_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/odontia/odontia/internal/financing/domain"
	financingservice "github.com/odontia/odontia/internal/financing/service"
	"github.com/odontia/odontia/internal/issuer"
	issuerdomain "github.com/odontia/odontia/internal/issuer/domain"
	invoicerepo "github.com/odontia/odontia/internal/invoice/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:memdb_financing_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}

	schema := []string{
		`CREATE TABLE patients (
			id BIGINT PRIMARY KEY,
			name TEXT NOT NULL,
			email TEXT,
			tax_id TEXT,
			wallet DOUBLE PRECISION NOT NULL DEFAULT 0,
			contact_id TEXT,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE treatment_plans (
			id BIGINT PRIMARY KEY,
			patient_id BIGINT NOT NULL,
			name TEXT NOT NULL,
			total_cost DOUBLE PRECISION NOT NULL,
			start_date TIMESTAMP NOT NULL,
			duration INTEGER NOT NULL,
			status TEXT NOT NULL DEFAULT 'ACTIVE',
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE installments (
			id BIGINT PRIMARY KEY,
			plan_id BIGINT NOT NULL,
			due_date TIMESTAMP NOT NULL,
			amount DOUBLE PRECISION NOT NULL,
			status TEXT NOT NULL DEFAULT 'PENDING',
			description TEXT NOT NULL,
			invoice_id BIGINT,
			invoiced_at TIMESTAMP,
			paid_date TIMESTAMP,
			created_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE invoices (
			id BIGINT PRIMARY KEY,
			invoice_number TEXT NOT NULL UNIQUE,
			patient_id BIGINT NOT NULL,
			amount DOUBLE PRECISION NOT NULL,
			date TIMESTAMP NOT NULL,
			status TEXT NOT NULL DEFAULT 'PENDING',
			external_id TEXT,
			url TEXT,
			payment_method TEXT,
			created_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE invoice_items (
			id BIGINT PRIMARY KEY,
			invoice_id BIGINT NOT NULL,
			name TEXT NOT NULL,
			price DOUBLE PRECISION NOT NULL,
			created_at TIMESTAMP NOT NULL
		)`,
	}
	for _, stmt := range schema {
		if err := db.Exec(stmt).Error; err != nil {
			t.Fatalf("create schema: %v", err)
		}
	}
	return db
}

func newService(t *testing.T, db *gorm.DB) (domain.Service, *issuer.Fake, *snowflake.Node) {
	t.Helper()
	node, err := snowflake.NewNode(13)
	if err != nil {
		t.Fatalf("new node: %v", err)
	}
	fake := issuer.NewFake()
	svc := financingservice.New(financingservice.Params{
		DB:          db,
		Log:         zap.NewNop(),
		GenID:       node,
		Issuer:      fake,
		InvoiceRepo: invoicerepo.Provide(),
	})
	return svc, fake, node
}

func seedPatient(t *testing.T, db *gorm.DB, id snowflake.ID) {
	t.Helper()
	now := time.Now().UTC()
	if err := db.Exec(
		`INSERT INTO patients (id, name, email, tax_id, wallet, created_at, updated_at)
		 VALUES (?, ?, ?, ?, 0, ?, ?)`,
		id, "Luis Romero", "luis@example.com", "12345678Z", now, now,
	).Error; err != nil {
		t.Fatalf("seed patient: %v", err)
	}
}

func invoiceCount(t *testing.T, db *gorm.DB) int64 {
	t.Helper()
	var count int64
	if err := db.Raw(`SELECT COUNT(1) FROM invoices`).Scan(&count).Error; err != nil {
		t.Fatalf("count invoices: %v", err)
	}
	return count
}

func TestCreatePlanBillsDownPayment(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	svc, fake, node := newService(t, db)

	patientID := node.Generate()
	seedPatient(t, db, patientID)

	plan, err := svc.CreatePlan(ctx, domain.CreatePlanRequest{
		PatientID:         patientID,
		Name:              "Ortodoncia completa",
		TotalAmount:       2400,
		DownPayment:       400,
		InstallmentsCount: 10,
	})
	if err != nil {
		t.Fatalf("create plan: %v", err)
	}
	if len(plan.Items) != 11 {
		t.Fatalf("installments = %d, want 11", len(plan.Items))
	}

	down := plan.Items[0]
	if down.Description != "Entrada Inicial" {
		t.Fatalf("first item = %q, want down payment", down.Description)
	}
	if down.Status != domain.InstallmentStatusPaid {
		t.Fatalf("down payment status = %s, want PAID", down.Status)
	}
	if down.InvoiceID == nil {
		t.Fatal("down payment not stamped with invoice")
	}

	// mirror row exists and is PAID
	var mirror struct {
		Status string
		Amount float64
	}
	if err := db.Raw(`SELECT status, amount FROM invoices WHERE id = ?`, *down.InvoiceID).Scan(&mirror).Error; err != nil {
		t.Fatalf("read mirror: %v", err)
	}
	if mirror.Status != "PAID" || mirror.Amount != 400 {
		t.Fatalf("mirror = %+v, want PAID 400", mirror)
	}
	if len(fake.Created) != 1 {
		t.Fatalf("issuer calls = %d, want 1", len(fake.Created))
	}

	// monthly cuotas stay pending
	for _, inst := range plan.Items[1:] {
		if inst.Status != domain.InstallmentStatusPending || inst.InvoiceID != nil {
			t.Fatalf("future installment billed early: %+v", inst)
		}
	}
}

func TestCreatePlanSurvivesIssuerOutage(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	svc, fake, node := newService(t, db)

	patientID := node.Generate()
	seedPatient(t, db, patientID)

	fake.FailNext = issuerdomain.ErrUnavailable
	plan, err := svc.CreatePlan(ctx, domain.CreatePlanRequest{
		PatientID:         patientID,
		TotalAmount:       1000,
		DownPayment:       200,
		InstallmentsCount: 4,
	})
	if err != nil {
		t.Fatalf("create plan: %v", err)
	}
	if plan.Name != "Plan de tratamiento" {
		t.Fatalf("default name = %q", plan.Name)
	}

	// plan kept, down payment left for the due processor
	down := plan.Items[0]
	if down.Status != domain.InstallmentStatusPending || down.InvoiceID != nil {
		t.Fatalf("down payment should stay pending: %+v", down)
	}
	if got := invoiceCount(t, db); got != 0 {
		t.Fatalf("invoices = %d, want 0", got)
	}

	// the retry picks it up
	billed, err := svc.ProcessDue(ctx, time.Now().UTC())
	if err != nil {
		t.Fatalf("process due: %v", err)
	}
	if billed != 1 {
		t.Fatalf("billed = %d, want 1", billed)
	}
}

func TestCreatePlanValidation(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	svc, _, node := newService(t, db)

	cases := []struct {
		name string
		req  domain.CreatePlanRequest
		want error
	}{
		{"zero patient", domain.CreatePlanRequest{TotalAmount: 100}, domain.ErrInvalidPatient},
		{"zero amount", domain.CreatePlanRequest{PatientID: node.Generate()}, domain.ErrInvalidAmount},
		{"down above total", domain.CreatePlanRequest{PatientID: node.Generate(), TotalAmount: 100, DownPayment: 150}, domain.ErrInvalidDownPayment},
		{"negative installments", domain.CreatePlanRequest{PatientID: node.Generate(), TotalAmount: 100, InstallmentsCount: -1}, domain.ErrInvalidInstallments},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := svc.CreatePlan(ctx, tc.req); err != tc.want {
				t.Fatalf("err = %v, want %v", err, tc.want)
			}
		})
	}
}

func TestProcessDueBillsOnce(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	svc, fake, node := newService(t, db)

	patientID := node.Generate()
	seedPatient(t, db, patientID)

	start := time.Now().UTC().AddDate(0, -3, 0)
	plan, err := svc.CreatePlan(ctx, domain.CreatePlanRequest{
		PatientID:         patientID,
		TotalAmount:       600,
		InstallmentsCount: 6,
		StartDate:         start,
	})
	if err != nil {
		t.Fatalf("create plan: %v", err)
	}

	now := time.Now().UTC()
	billed, err := svc.ProcessDue(ctx, now)
	if err != nil {
		t.Fatalf("process due: %v", err)
	}
	// installments 1..3 are at start+1..start+3 months, all past
	if billed != 3 {
		t.Fatalf("billed = %d, want 3", billed)
	}
	if got := invoiceCount(t, db); got != 3 {
		t.Fatalf("invoices = %d, want 3", got)
	}

	again, err := svc.ProcessDue(ctx, now)
	if err != nil {
		t.Fatalf("process due again: %v", err)
	}
	if again != 0 {
		t.Fatalf("second run billed = %d, want 0", again)
	}
	if got := invoiceCount(t, db); got != 3 {
		t.Fatalf("invoices after rerun = %d, want 3", got)
	}
	if len(fake.Created) != 3 {
		t.Fatalf("issuer calls = %d, want 3", len(fake.Created))
	}

	refreshed, err := svc.GetPlan(ctx, plan.ID)
	if err != nil {
		t.Fatalf("get plan: %v", err)
	}
	if refreshed.Status != domain.PlanStatusActive {
		t.Fatalf("plan status = %s, want ACTIVE", refreshed.Status)
	}
}

func TestProcessDueCompletesPlan(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	svc, _, node := newService(t, db)

	patientID := node.Generate()
	seedPatient(t, db, patientID)

	start := time.Now().UTC().AddDate(0, -4, 0)
	plan, err := svc.CreatePlan(ctx, domain.CreatePlanRequest{
		PatientID:         patientID,
		TotalAmount:       300,
		DownPayment:       100,
		InstallmentsCount: 2,
		StartDate:         start,
	})
	if err != nil {
		t.Fatalf("create plan: %v", err)
	}

	billed, err := svc.ProcessDue(ctx, time.Now().UTC())
	if err != nil {
		t.Fatalf("process due: %v", err)
	}
	if billed != 2 {
		t.Fatalf("billed = %d, want 2", billed)
	}

	refreshed, err := svc.GetPlan(ctx, plan.ID)
	if err != nil {
		t.Fatalf("get plan: %v", err)
	}
	if refreshed.Status != domain.PlanStatusCompleted {
		t.Fatalf("plan status = %s, want COMPLETED", refreshed.Status)
	}
	for _, inst := range refreshed.Items {
		if inst.Status != domain.InstallmentStatusPaid {
			t.Fatalf("installment %s not paid", inst.ID)
		}
	}
}

func TestIssuerContactCached(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	svc, _, node := newService(t, db)

	patientID := node.Generate()
	seedPatient(t, db, patientID)

	if _, err := svc.CreatePlan(ctx, domain.CreatePlanRequest{
		PatientID:         patientID,
		TotalAmount:       500,
		DownPayment:       500,
		InstallmentsCount: 0,
	}); err != nil {
		t.Fatalf("create plan: %v", err)
	}

	var contactID string
	if err := db.Raw(`SELECT contact_id FROM patients WHERE id = ?`, patientID).Scan(&contactID).Error; err != nil {
		t.Fatalf("read contact: %v", err)
	}
	if contactID == "" {
		t.Fatal("contact_id not cached on patient")
	}
}
