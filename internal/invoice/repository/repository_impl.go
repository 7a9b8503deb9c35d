package repository

import (
	"context"
	"fmt"

	"github.com/bwmarrin/snowflake"
	"github.com/odontia/odontia/internal/invoice/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, tx *gorm.DB, invoice *domain.Invoice) error {
	if err := tx.WithContext(ctx).Exec(
		`INSERT INTO invoices (
			id, invoice_number, patient_id, amount, date, status,
			external_id, url, payment_method, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		invoice.ID,
		invoice.InvoiceNumber,
		invoice.PatientID,
		invoice.Amount,
		invoice.Date,
		invoice.Status,
		invoice.ExternalID,
		invoice.URL,
		invoice.PaymentMethod,
		invoice.CreatedAt,
	).Error; err != nil {
		return err
	}
	for _, item := range invoice.Items {
		if err := tx.WithContext(ctx).Exec(
			`INSERT INTO invoice_items (id, invoice_id, name, price, created_at)
			 VALUES (?, ?, ?, ?, ?)`,
			item.ID,
			item.InvoiceID,
			item.Name,
			item.Price,
			item.CreatedAt,
		).Error; err != nil {
			return err
		}
	}
	return nil
}

func (r *repo) FindByID(ctx context.Context, tx *gorm.DB, id snowflake.ID) (*domain.Invoice, error) {
	var invoice domain.Invoice
	err := tx.WithContext(ctx).Raw(
		`SELECT id, invoice_number, patient_id, amount, date, status,
		        external_id, url, payment_method, created_at
		 FROM invoices WHERE id = ?`,
		id,
	).Scan(&invoice).Error
	if err != nil {
		return nil, err
	}
	if invoice.ID == 0 {
		return nil, nil
	}
	if err := tx.WithContext(ctx).Raw(
		`SELECT id, invoice_id, name, price, created_at
		 FROM invoice_items WHERE invoice_id = ? ORDER BY id ASC`,
		id,
	).Scan(&invoice.Items).Error; err != nil {
		return nil, err
	}
	return &invoice, nil
}

func (r *repo) ListByPatient(ctx context.Context, tx *gorm.DB, patientID snowflake.ID) ([]domain.Invoice, error) {
	var invoices []domain.Invoice
	err := tx.WithContext(ctx).Raw(
		`SELECT id, invoice_number, patient_id, amount, date, status,
		        external_id, url, payment_method, created_at
		 FROM invoices
		 WHERE patient_id = ?
		 ORDER BY date DESC, id DESC`,
		patientID,
	).Scan(&invoices).Error
	if err != nil {
		return nil, err
	}
	return invoices, nil
}

func (r *repo) CountByPatient(ctx context.Context, tx *gorm.DB, patientID snowflake.ID) (int64, error) {
	var count int64
	err := tx.WithContext(ctx).Raw(
		`SELECT COUNT(1) FROM invoices WHERE patient_id = ?`,
		patientID,
	).Scan(&count).Error
	return count, err
}

func (r *repo) UpdateExternal(ctx context.Context, tx *gorm.DB, id snowflake.ID, externalID, url string) error {
	return tx.WithContext(ctx).Exec(
		`UPDATE invoices SET external_id = ?, url = ? WHERE id = ?`,
		externalID,
		url,
		id,
	).Error
}

func (r *repo) NextNumber(ctx context.Context, tx *gorm.DB, year int) (string, error) {
	var count int64
	if err := tx.WithContext(ctx).Raw(
		`SELECT COUNT(1) FROM invoices WHERE invoice_number LIKE ?`,
		fmt.Sprintf("FAC-%d-%%", year),
	).Scan(&count).Error; err != nil {
		return "", err
	}
	return fmt.Sprintf("FAC-%d-%05d", year, count+1), nil
}
