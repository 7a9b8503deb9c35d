package service_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/odontia/odontia/internal/wallet/domain"
	walletrepo "github.com/odontia/odontia/internal/wallet/repository"
	walletservice "github.com/odontia/odontia/internal/wallet/service"
	"github.com/odontia/odontia/pkg/db/pagination"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:memdb_wallet_%d?mode=memory&cache=shared", time.Now().UnixNano())
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
	}
	for _, stmt := range schema {
		if err := db.Exec(stmt).Error; err != nil {
			t.Fatalf("create schema: %v", err)
		}
	}
	return db
}

func newService(t *testing.T, db *gorm.DB) (domain.Service, *snowflake.Node) {
	t.Helper()
	node, err := snowflake.NewNode(11)
	if err != nil {
		t.Fatalf("new node: %v", err)
	}
	svc := walletservice.New(walletservice.Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Repo:  walletrepo.Provide(),
	})
	return svc, node
}

func seedPatient(t *testing.T, db *gorm.DB, id snowflake.ID) {
	t.Helper()
	now := time.Now().UTC()
	if err := db.Exec(
		`INSERT INTO patients (id, name, wallet, created_at, updated_at) VALUES (?, ?, 0, ?, ?)`,
		id, "Ana Torres", now, now,
	).Error; err != nil {
		t.Fatalf("seed patient: %v", err)
	}
}

func cachedWallet(t *testing.T, db *gorm.DB, patientID snowflake.ID) float64 {
	t.Helper()
	var wallet float64
	if err := db.Raw(`SELECT wallet FROM patients WHERE id = ?`, patientID).Scan(&wallet).Error; err != nil {
		t.Fatalf("read wallet: %v", err)
	}
	return wallet
}

func paymentCount(t *testing.T, db *gorm.DB, patientID snowflake.ID) int64 {
	t.Helper()
	var count int64
	if err := db.Raw(`SELECT COUNT(1) FROM payments WHERE patient_id = ?`, patientID).Scan(&count).Error; err != nil {
		t.Fatalf("count payments: %v", err)
	}
	return count
}

func TestRecordPaymentKeepsWalletConsistent(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	svc, node := newService(t, db)

	patientID := node.Generate()
	seedPatient(t, db, patientID)

	if _, err := svc.RecordPayment(ctx, domain.RecordPaymentRequest{
		PatientID: patientID,
		Amount:    500,
		Method:    domain.PaymentMethodCash,
		Type:      domain.PaymentTypeAdvance,
	}); err != nil {
		t.Fatalf("record advance: %v", err)
	}
	if got := cachedWallet(t, db, patientID); got != 500 {
		t.Fatalf("wallet after advance = %v, want 500", got)
	}

	// desk charge paid from the wallet debits the balance
	if _, err := svc.RecordPayment(ctx, domain.RecordPaymentRequest{
		PatientID: patientID,
		Amount:    120.50,
		Method:    domain.PaymentMethodWallet,
		Type:      domain.PaymentTypeDirectCharge,
	}); err != nil {
		t.Fatalf("record direct charge: %v", err)
	}
	if got := cachedWallet(t, db, patientID); got != 379.50 {
		t.Fatalf("wallet after charge = %v, want 379.50", got)
	}

	// desk charge paid in cash does not touch the wallet
	if _, err := svc.RecordPayment(ctx, domain.RecordPaymentRequest{
		PatientID: patientID,
		Amount:    60,
		Method:    domain.PaymentMethodCash,
		Type:      domain.PaymentTypeDirectCharge,
	}); err != nil {
		t.Fatalf("record cash charge: %v", err)
	}
	if got := cachedWallet(t, db, patientID); got != 379.50 {
		t.Fatalf("wallet after cash charge = %v, want 379.50", got)
	}

	balance, err := svc.Balance(ctx, patientID)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance != 379.50 {
		t.Fatalf("derived balance = %v, want 379.50", balance)
	}
}

func TestRecordPaymentValidation(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	svc, node := newService(t, db)

	patientID := node.Generate()
	seedPatient(t, db, patientID)

	cases := []struct {
		name string
		req  domain.RecordPaymentRequest
		want error
	}{
		{"zero patient", domain.RecordPaymentRequest{Amount: 10, Method: domain.PaymentMethodCash, Type: domain.PaymentTypeAdvance}, domain.ErrInvalidPatient},
		{"zero amount", domain.RecordPaymentRequest{PatientID: patientID, Method: domain.PaymentMethodCash, Type: domain.PaymentTypeAdvance}, domain.ErrInvalidAmount},
		{"negative amount", domain.RecordPaymentRequest{PatientID: patientID, Amount: -5, Method: domain.PaymentMethodCash, Type: domain.PaymentTypeAdvance}, domain.ErrInvalidAmount},
		{"bad method", domain.RecordPaymentRequest{PatientID: patientID, Amount: 10, Method: "CHEQUE", Type: domain.PaymentTypeAdvance}, domain.ErrInvalidMethod},
		{"transfer rejected", domain.RecordPaymentRequest{PatientID: patientID, Amount: 10, Method: domain.PaymentMethodWallet, Type: domain.PaymentTypeTransfer}, domain.ErrInvalidType},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := svc.RecordPayment(ctx, tc.req); err != tc.want {
				t.Fatalf("err = %v, want %v", err, tc.want)
			}
		})
	}

	if got := paymentCount(t, db, patientID); got != 0 {
		t.Fatalf("payments inserted on validation failure: %d", got)
	}
}

func TestRecordPaymentUnknownPatient(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	svc, node := newService(t, db)

	_, err := svc.RecordPayment(ctx, domain.RecordPaymentRequest{
		PatientID: node.Generate(),
		Amount:    10,
		Method:    domain.PaymentMethodCash,
		Type:      domain.PaymentTypeAdvance,
	})
	if err != domain.ErrPatientMissing {
		t.Fatalf("err = %v, want %v", err, domain.ErrPatientMissing)
	}
}

func TestRecomputeBalanceIdempotent(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	svc, node := newService(t, db)

	patientID := node.Generate()
	seedPatient(t, db, patientID)

	if _, err := svc.RecordPayment(ctx, domain.RecordPaymentRequest{
		PatientID: patientID,
		Amount:    300,
		Method:    domain.PaymentMethodCard,
		Type:      domain.PaymentTypeAdvance,
	}); err != nil {
		t.Fatalf("record advance: %v", err)
	}
	rows := paymentCount(t, db, patientID)

	first, err := svc.RecomputeBalance(ctx, patientID)
	if err != nil {
		t.Fatalf("recompute: %v", err)
	}
	second, err := svc.RecomputeBalance(ctx, patientID)
	if err != nil {
		t.Fatalf("recompute again: %v", err)
	}

	if first != second || first != 300 {
		t.Fatalf("recompute not stable: first=%v second=%v", first, second)
	}
	if got := paymentCount(t, db, patientID); got != rows {
		t.Fatalf("recompute inserted rows: before=%d after=%d", rows, got)
	}
	if got := cachedWallet(t, db, patientID); got != 300 {
		t.Fatalf("cached wallet = %v, want 300", got)
	}
}

func TestHistoryNewestFirst(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	svc, node := newService(t, db)

	patientID := node.Generate()
	seedPatient(t, db, patientID)

	first, err := svc.RecordPayment(ctx, domain.RecordPaymentRequest{
		PatientID: patientID,
		Amount:    100,
		Method:    domain.PaymentMethodCash,
		Type:      domain.PaymentTypeAdvance,
	})
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	second, err := svc.RecordPayment(ctx, domain.RecordPaymentRequest{
		PatientID: patientID,
		Amount:    50,
		Method:    domain.PaymentMethodCash,
		Type:      domain.PaymentTypeAdvance,
	})
	if err != nil {
		t.Fatalf("record: %v", err)
	}

	history, err := svc.History(ctx, patientID)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("history length = %d, want 2", len(history))
	}
	if history[0].ID != second.ID || history[1].ID != first.ID {
		t.Fatalf("history not newest first: %v then %v", history[0].ID, history[1].ID)
	}
}

func TestHistoryPageWalksWholeLedger(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	svc, node := newService(t, db)

	patientID := node.Generate()
	seedPatient(t, db, patientID)

	for i := 0; i < 7; i++ {
		if _, err := svc.RecordPayment(ctx, domain.RecordPaymentRequest{
			PatientID: patientID,
			Amount:    float64(10 * (i + 1)),
			Method:    domain.PaymentMethodCash,
			Type:      domain.PaymentTypeAdvance,
		}); err != nil {
			t.Fatalf("record %d: %v", i, err)
		}
	}

	var seen []domain.Payment
	page := pagination.Pagination{PageSize: 3}
	for {
		rows, info, err := svc.HistoryPage(ctx, patientID, page)
		if err != nil {
			t.Fatalf("history page: %v", err)
		}
		seen = append(seen, rows...)
		if !info.HasMore {
			break
		}
		page.PageToken = info.NextPageToken
	}

	if len(seen) != 7 {
		t.Fatalf("pages covered %d rows, want 7", len(seen))
	}
	for i := 1; i < len(seen); i++ {
		prev, cur := seen[i-1], seen[i]
		if cur.CreatedAt.After(prev.CreatedAt) ||
			(cur.CreatedAt.Equal(prev.CreatedAt) && cur.ID > prev.ID) {
			t.Fatalf("page order broken at %d", i)
		}
	}

	if _, _, err := svc.HistoryPage(ctx, patientID, pagination.Pagination{PageToken: "not-base64!"}); err != domain.ErrInvalidPageToken {
		t.Fatalf("err = %v, want %v", err, domain.ErrInvalidPageToken)
	}
}
