package issuer

import (
	"context"
	"fmt"
	"sync"

	"github.com/odontia/odontia/internal/issuer/domain"
)

// Fake is an in-process issuer used in tests and when no provider is
// configured. It numbers invoices sequentially and can be told to fail.
type Fake struct {
	mu       sync.Mutex
	seq      int
	contacts map[string]string

	FailNext error
	Created  []domain.CreateInvoiceRequest
}

func NewFake() *Fake {
	return &Fake{contacts: map[string]string{}}
}

func (f *Fake) GetOrCreateContact(ctx context.Context, party domain.Party) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.takeFailure(); err != nil {
		return "", err
	}
	key := party.TaxID
	if key == "" {
		key = party.Email
	}
	if id, ok := f.contacts[key]; ok {
		return id, nil
	}
	id := fmt.Sprintf("contact-%d", len(f.contacts)+1)
	f.contacts[key] = id
	return id, nil
}

func (f *Fake) CreateInvoice(ctx context.Context, req domain.CreateInvoiceRequest) (domain.IssueResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.takeFailure(); err != nil {
		return domain.IssueResult{}, err
	}
	f.seq++
	f.Created = append(f.Created, req)
	return domain.IssueResult{
		ExternalID: fmt.Sprintf("ext-%d", f.seq),
		Number:     fmt.Sprintf("F%06d", f.seq),
		PDFURL:     fmt.Sprintf("https://issuer.local/pdf/ext-%d", f.seq),
	}, nil
}

func (f *Fake) GetInvoiceURLs(ctx context.Context, externalID string) (domain.InvoiceURLs, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.takeFailure(); err != nil {
		return domain.InvoiceURLs{}, err
	}
	return domain.InvoiceURLs{
		PreviewURL:  "https://issuer.local/preview/" + externalID,
		DownloadURL: "https://issuer.local/pdf/" + externalID,
	}, nil
}

func (f *Fake) takeFailure() error {
	if f.FailNext != nil {
		err := f.FailNext
		f.FailNext = nil
		return err
	}
	return nil
}
