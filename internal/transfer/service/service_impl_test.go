package service_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	liquidationrepo "github.com/odontia/odontia/internal/liquidation/repository"
	"github.com/odontia/odontia/internal/transfer/domain"
	transferservice "github.com/odontia/odontia/internal/transfer/service"
	walletdomain "github.com/odontia/odontia/internal/wallet/domain"
	walletrepo "github.com/odontia/odontia/internal/wallet/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:memdb_transfer_%d?mode=memory&cache=shared", time.Now().UnixNano())
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
		`CREATE TABLE doctors (
			id BIGINT PRIMARY KEY,
			name TEXT NOT NULL,
			commission_rate DOUBLE PRECISION NOT NULL DEFAULT 0,
			created_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE treatments (
			id BIGINT PRIMARY KEY,
			patient_id BIGINT NOT NULL,
			name TEXT NOT NULL,
			price DOUBLE PRECISION NOT NULL,
			lab_cost DOUBLE PRECISION NOT NULL DEFAULT 0,
			status TEXT NOT NULL DEFAULT 'PENDIENTE',
			created_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE appointments (
			id BIGINT PRIMARY KEY,
			patient_id BIGINT NOT NULL,
			doctor_id BIGINT NOT NULL,
			treatment_id BIGINT,
			status TEXT NOT NULL DEFAULT 'SCHEDULED',
			synthetic BOOLEAN NOT NULL DEFAULT FALSE,
			date TIMESTAMP NOT NULL,
			created_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE history_notes (
			id BIGINT PRIMARY KEY,
			patient_id BIGINT NOT NULL,
			note TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE payments (
			id BIGINT PRIMARY KEY,
			patient_id BIGINT NOT NULL,
			budget_id BIGINT,
			amount DOUBLE PRECISION NOT NULL,
			method TEXT NOT NULL,
			type TEXT NOT NULL,
			source_payment_id BIGINT,
			treatment_id BIGINT,
			doctor_id BIGINT,
			invoice_id BIGINT,
			notes TEXT,
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
		`CREATE TABLE liquidations (
			id BIGINT PRIMARY KEY,
			doctor_id BIGINT NOT NULL,
			appointment_id BIGINT NOT NULL,
			gross_amount DOUBLE PRECISION NOT NULL,
			lab_cost DOUBLE PRECISION NOT NULL DEFAULT 0,
			commission_rate DOUBLE PRECISION NOT NULL,
			final_amount DOUBLE PRECISION NOT NULL,
			status TEXT NOT NULL DEFAULT 'PENDING',
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`,
	}
	for _, stmt := range schema {
		if err := db.Exec(stmt).Error; err != nil {
			t.Fatalf("create schema: %v", err)
		}
	}
	return db
}

type fixture struct {
	svc  domain.Service
	db   *gorm.DB
	node *snowflake.Node
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	db := setupTestDB(t)
	node, err := snowflake.NewNode(15)
	if err != nil {
		t.Fatalf("new node: %v", err)
	}
	svc := transferservice.New(transferservice.Params{
		DB:         db,
		Log:        zap.NewNop(),
		GenID:      node,
		WalletRepo: walletrepo.Provide(),
		LiqRepo:    liquidationrepo.Provide(),
	})
	return fixture{svc: svc, db: db, node: node}
}

func (f fixture) seedPatient(t *testing.T) snowflake.ID {
	t.Helper()
	id := f.node.Generate()
	now := time.Now().UTC()
	if err := f.db.Exec(
		`INSERT INTO patients (id, name, wallet, created_at, updated_at) VALUES (?, 'Ana Torres', 0, ?, ?)`,
		id, now, now,
	).Error; err != nil {
		t.Fatalf("seed patient: %v", err)
	}
	return id
}

func (f fixture) seedDoctor(t *testing.T, rate float64) snowflake.ID {
	t.Helper()
	id := f.node.Generate()
	if err := f.db.Exec(
		`INSERT INTO doctors (id, name, commission_rate, created_at) VALUES (?, 'Dra. Vidal', ?, ?)`,
		id, rate, time.Now().UTC(),
	).Error; err != nil {
		t.Fatalf("seed doctor: %v", err)
	}
	return id
}

func (f fixture) seedTreatment(t *testing.T, patientID snowflake.ID, price, labCost float64) snowflake.ID {
	t.Helper()
	id := f.node.Generate()
	if err := f.db.Exec(
		`INSERT INTO treatments (id, patient_id, name, price, lab_cost, status, created_at)
		 VALUES (?, ?, 'Implante', ?, ?, 'PENDIENTE', ?)`,
		id, patientID, price, labCost, time.Now().UTC(),
	).Error; err != nil {
		t.Fatalf("seed treatment: %v", err)
	}
	return id
}

func (f fixture) seedAdvance(t *testing.T, patientID snowflake.ID, amount float64) snowflake.ID {
	t.Helper()
	id := f.node.Generate()
	if err := f.db.Exec(
		`INSERT INTO payments (id, patient_id, amount, method, type, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		id, patientID, amount, walletdomain.PaymentMethodCash, walletdomain.PaymentTypeAdvance, time.Now().UTC(),
	).Error; err != nil {
		t.Fatalf("seed advance: %v", err)
	}
	if err := f.db.Exec(`UPDATE patients SET wallet = wallet + ? WHERE id = ?`, amount, patientID).Error; err != nil {
		t.Fatalf("bump wallet: %v", err)
	}
	return id
}

func (f fixture) count(t *testing.T, query string, args ...interface{}) int64 {
	t.Helper()
	var n int64
	if err := f.db.Raw(query, args...).Scan(&n).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	return n
}

func TestTransferMovesWalletWithoutInvoicing(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	patientID := f.seedPatient(t)
	doctorID := f.seedDoctor(t, 0.4)
	treatmentID := f.seedTreatment(t, patientID, 200, 50)
	sourceID := f.seedAdvance(t, patientID, 500)

	payment, err := f.svc.Transfer(ctx, domain.TransferRequest{
		PatientID:       patientID,
		SourcePaymentID: sourceID,
		Amount:          200,
		TreatmentID:     &treatmentID,
		DoctorID:        doctorID,
	})
	if err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if payment.Type != walletdomain.PaymentTypeTransfer || payment.Method != walletdomain.PaymentMethodWallet {
		t.Fatalf("payment = %+v", payment)
	}

	// exactly one new ledger row and no invoice
	if got := f.count(t, `SELECT COUNT(1) FROM payments WHERE patient_id = ?`, patientID); got != 2 {
		t.Fatalf("payments = %d, want 2", got)
	}
	if got := f.count(t, `SELECT COUNT(1) FROM invoices`); got != 0 {
		t.Fatalf("invoices = %d, want 0", got)
	}

	var wallet float64
	if err := f.db.Raw(`SELECT wallet FROM patients WHERE id = ?`, patientID).Scan(&wallet).Error; err != nil {
		t.Fatalf("read wallet: %v", err)
	}
	if wallet != 300 {
		t.Fatalf("wallet = %v, want 300", wallet)
	}

	var status string
	if err := f.db.Raw(`SELECT status FROM treatments WHERE id = ?`, treatmentID).Scan(&status).Error; err != nil {
		t.Fatalf("read treatment: %v", err)
	}
	if status != "PAGADO" {
		t.Fatalf("treatment status = %s, want PAGADO", status)
	}

	// synthetic appointment backs the new liquidation
	if got := f.count(t, `SELECT COUNT(1) FROM appointments WHERE patient_id = ? AND synthetic`, patientID); got != 1 {
		t.Fatalf("synthetic appointments = %d, want 1", got)
	}
	var liq struct {
		FinalAmount float64
		Status      string
	}
	if err := f.db.Raw(`SELECT final_amount, status FROM liquidations WHERE doctor_id = ?`, doctorID).Scan(&liq).Error; err != nil {
		t.Fatalf("read liquidation: %v", err)
	}
	// (200 price - 50 lab) * 0.4
	if liq.FinalAmount != 60 || liq.Status != "PENDING" {
		t.Fatalf("liquidation = %+v", liq)
	}

	var note string
	if err := f.db.Raw(`SELECT note FROM history_notes WHERE patient_id = ?`, patientID).Scan(&note).Error; err != nil {
		t.Fatalf("read note: %v", err)
	}
	if note != "Traspaso de anticipo aplicado: 200.00" {
		t.Fatalf("note = %q", note)
	}
}

func TestTransferRejectsBadSource(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	patientID := f.seedPatient(t)
	doctorID := f.seedDoctor(t, 0.4)
	f.seedAdvance(t, patientID, 500)

	// a direct charge is not transferable
	chargeID := f.node.Generate()
	if err := f.db.Exec(
		`INSERT INTO payments (id, patient_id, amount, method, type, created_at) VALUES (?, ?, 100, ?, ?, ?)`,
		chargeID, patientID, walletdomain.PaymentMethodCash, walletdomain.PaymentTypeDirectCharge, time.Now().UTC(),
	).Error; err != nil {
		t.Fatalf("seed charge: %v", err)
	}
	_, err := f.svc.Transfer(ctx, domain.TransferRequest{
		PatientID:       patientID,
		SourcePaymentID: chargeID,
		Amount:          50,
		DoctorID:        doctorID,
	})
	if err != domain.ErrInvalidSource {
		t.Fatalf("err = %v, want %v", err, domain.ErrInvalidSource)
	}

	// an advance belonging to someone else is not transferable either
	other := f.seedPatient(t)
	otherAdvance := f.seedAdvance(t, other, 300)
	_, err = f.svc.Transfer(ctx, domain.TransferRequest{
		PatientID:       patientID,
		SourcePaymentID: otherAdvance,
		Amount:          50,
		DoctorID:        doctorID,
	})
	if err != domain.ErrInvalidSource {
		t.Fatalf("err = %v, want %v", err, domain.ErrInvalidSource)
	}

	if got := f.count(t, `SELECT COUNT(1) FROM payments WHERE type = ?`, walletdomain.PaymentTypeTransfer); got != 0 {
		t.Fatalf("transfer rows = %d, want 0", got)
	}
}

func TestTransferInsufficientBalance(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	patientID := f.seedPatient(t)
	doctorID := f.seedDoctor(t, 0.4)
	sourceID := f.seedAdvance(t, patientID, 100)

	_, err := f.svc.Transfer(ctx, domain.TransferRequest{
		PatientID:       patientID,
		SourcePaymentID: sourceID,
		Amount:          150,
		DoctorID:        doctorID,
	})
	if err != domain.ErrInsufficientBalance {
		t.Fatalf("err = %v, want %v", err, domain.ErrInsufficientBalance)
	}

	var wallet float64
	if err := f.db.Raw(`SELECT wallet FROM patients WHERE id = ?`, patientID).Scan(&wallet).Error; err != nil {
		t.Fatalf("read wallet: %v", err)
	}
	if wallet != 100 {
		t.Fatalf("wallet touched on failure: %v", wallet)
	}
}

func TestTransferRepointsExistingLiquidation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	patientID := f.seedPatient(t)
	oldDoctor := f.seedDoctor(t, 0.4)
	newDoctor := f.seedDoctor(t, 0.5)
	treatmentID := f.seedTreatment(t, patientID, 400, 0)
	sourceID := f.seedAdvance(t, patientID, 500)

	// existing PENDING liquidation hangs off a real appointment
	now := time.Now().UTC()
	apptID := f.node.Generate()
	if err := f.db.Exec(
		`INSERT INTO appointments (id, patient_id, doctor_id, treatment_id, status, synthetic, date, created_at)
		 VALUES (?, ?, ?, ?, 'COMPLETED', FALSE, ?, ?)`,
		apptID, patientID, oldDoctor, treatmentID, now, now,
	).Error; err != nil {
		t.Fatalf("seed appointment: %v", err)
	}
	liqID := f.node.Generate()
	if err := f.db.Exec(
		`INSERT INTO liquidations (id, doctor_id, appointment_id, gross_amount, lab_cost, commission_rate, final_amount, status, created_at, updated_at)
		 VALUES (?, ?, ?, 400, 0, 0.4, 160, 'PENDING', ?, ?)`,
		liqID, oldDoctor, apptID, now, now,
	).Error; err != nil {
		t.Fatalf("seed liquidation: %v", err)
	}

	if _, err := f.svc.Transfer(ctx, domain.TransferRequest{
		PatientID:       patientID,
		SourcePaymentID: sourceID,
		Amount:          400,
		TreatmentID:     &treatmentID,
		DoctorID:        newDoctor,
	}); err != nil {
		t.Fatalf("transfer: %v", err)
	}

	// re-pointed, not duplicated
	if got := f.count(t, `SELECT COUNT(1) FROM liquidations`); got != 1 {
		t.Fatalf("liquidations = %d, want 1", got)
	}
	var owner snowflake.ID
	if err := f.db.Raw(`SELECT doctor_id FROM liquidations WHERE id = ?`, liqID).Scan(&owner).Error; err != nil {
		t.Fatalf("read liquidation: %v", err)
	}
	if owner != newDoctor {
		t.Fatalf("liquidation doctor = %v, want %v", owner, newDoctor)
	}
	if got := f.count(t, `SELECT COUNT(1) FROM appointments WHERE synthetic`); got != 0 {
		t.Fatalf("synthetic appointments = %d, want 0", got)
	}
}

func TestTransferValidation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	id := f.node.Generate()

	cases := []struct {
		name string
		req  domain.TransferRequest
		want error
	}{
		{"zero patient", domain.TransferRequest{SourcePaymentID: id, Amount: 10, DoctorID: id}, domain.ErrInvalidPatient},
		{"zero amount", domain.TransferRequest{PatientID: id, SourcePaymentID: id, DoctorID: id}, domain.ErrInvalidAmount},
		{"zero doctor", domain.TransferRequest{PatientID: id, SourcePaymentID: id, Amount: 10}, domain.ErrInvalidDoctor},
		{"zero source", domain.TransferRequest{PatientID: id, Amount: 10, DoctorID: id}, domain.ErrInvalidSource},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := f.svc.Transfer(ctx, tc.req); err != tc.want {
				t.Fatalf("err = %v, want %v", err, tc.want)
			}
		})
	}

	_, err := f.svc.Transfer(ctx, domain.TransferRequest{
		PatientID:       f.node.Generate(),
		SourcePaymentID: id,
		Amount:          10,
		DoctorID:        id,
	})
	if err != domain.ErrPatientMissing {
		t.Fatalf("err = %v, want %v", err, domain.ErrPatientMissing)
	}
}
