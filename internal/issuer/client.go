package issuer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/odontia/odontia/internal/issuer/domain"
	"go.uber.org/zap"
)

// Client talks to the external e-invoicing provider over HTTP. Every call is
// bounded by the configured timeout; transport and 5xx failures map to
// ErrUnavailable, 4xx to ErrRejected.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	log     *zap.Logger
}

func NewClient(baseURL, apiKey string, timeout time.Duration, log *zap.Logger) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		http:    &http.Client{Timeout: timeout},
		log:     log.Named("issuer.client"),
	}
}

func (c *Client) GetOrCreateContact(ctx context.Context, party domain.Party) (string, error) {
	body := map[string]string{
		"name":   party.Name,
		"email":  party.Email,
		"tax_id": party.TaxID,
	}
	var out struct {
		ContactID string `json:"contact_id"`
	}
	if err := c.do(ctx, http.MethodPost, "/contacts", body, &out); err != nil {
		return "", err
	}
	return out.ContactID, nil
}

func (c *Client) CreateInvoice(ctx context.Context, req domain.CreateInvoiceRequest) (domain.IssueResult, error) {
	var out struct {
		Success    bool   `json:"success"`
		ExternalID string `json:"external_id"`
		Number     string `json:"number"`
		PDFURL     string `json:"pdf_url"`
	}
	if err := c.do(ctx, http.MethodPost, "/invoices", req, &out); err != nil {
		return domain.IssueResult{}, err
	}
	if !out.Success {
		return domain.IssueResult{}, domain.ErrRejected
	}
	return domain.IssueResult{
		ExternalID: out.ExternalID,
		Number:     out.Number,
		PDFURL:     out.PDFURL,
	}, nil
}

func (c *Client) GetInvoiceURLs(ctx context.Context, externalID string) (domain.InvoiceURLs, error) {
	var out domain.InvoiceURLs
	if err := c.do(ctx, http.MethodGet, "/invoices/"+externalID+"/urls", nil, &out); err != nil {
		return domain.InvoiceURLs{}, err
	}
	return out, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var reqBody *bytes.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return err
		}
		reqBody = bytes.NewReader(raw)
	} else {
		reqBody = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Warn("issuer request failed", zap.String("path", path), zap.Error(err))
		return fmt.Errorf("%w: %v", domain.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 500:
		return fmt.Errorf("%w: status %d", domain.ErrUnavailable, resp.StatusCode)
	case resp.StatusCode >= 400:
		return fmt.Errorf("%w: status %d", domain.ErrRejected, resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
