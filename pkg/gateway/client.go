// Package gateway talks to the QR payment gateway: invoice creation and
// settlement status checks.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	pkgerrors "github.com/angelmondragon/shopchat-core/pkg/errors"
)

const (
	defaultTimeout             = 10 * time.Second
	responseBodyReadLimit int64 = 1024

	// StatusPaid is the row status the gateway reports for a settled payment.
	StatusPaid = "PAID"
)

var errTokenRequired = errors.New("payment gateway token is required")

// Client wraps the gateway invoice and status APIs.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
}

// Option configures optional client behavior.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithTimeout sets the per-request timeout of the default HTTP client.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.httpClient = &http.Client{Timeout: timeout}
		}
	}
}

// NewClient builds a gateway client for baseURL authenticated with token.
func NewClient(baseURL, token string, opts ...Option) (*Client, error) {
	trimmedToken := strings.TrimSpace(token)
	if trimmedToken == "" {
		return nil, errTokenRequired
	}
	trimmedURL := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if trimmedURL == "" {
		return nil, errors.New("payment gateway base url is required")
	}

	client := &Client{
		baseURL:    trimmedURL,
		token:      trimmedToken,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	return client, nil
}

// InvoiceRequest describes an invoice for one order.
type InvoiceRequest struct {
	OrderID     string
	Amount      decimal.Decimal
	Description string
	CallbackURL string
}

// Invoice is the gateway's answer to CreateInvoice.
type Invoice struct {
	InvoiceID string
	QRPayload string
}

// PaymentRow is one settlement attempt reported by CheckStatus.
type PaymentRow struct {
	PaymentID string
	Status    string
	Amount    decimal.Decimal
	Currency  string
	PaidAt    *time.Time
}

// StatusResult lists every payment row the gateway holds for an invoice.
type StatusResult struct {
	Count int
	Rows  []PaymentRow
}

// PaidRow returns the first row reporting a settled payment.
func (s *StatusResult) PaidRow() (PaymentRow, bool) {
	if s == nil {
		return PaymentRow{}, false
	}
	for _, row := range s.Rows {
		if strings.EqualFold(row.Status, StatusPaid) {
			return row, true
		}
	}
	return PaymentRow{}, false
}

// CreateInvoice registers an invoice and returns its id and QR payload.
func (c *Client) CreateInvoice(ctx context.Context, req InvoiceRequest) (*Invoice, error) {
	if c == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "payment gateway client not configured")
	}
	if strings.TrimSpace(req.OrderID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invoice order id is required")
	}
	if !req.Amount.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invoice amount must be positive")
	}

	payload, err := json.Marshal(map[string]any{
		"sender_invoice_no":   req.OrderID,
		"amount":              req.Amount.StringFixed(2),
		"invoice_description": req.Description,
		"callback_url":        req.CallbackURL,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "marshal invoice request")
	}

	var apiResp struct {
		InvoiceID string `json:"invoice_id"`
		QRText    string `json:"qr_text"`
	}
	if err := c.do(ctx, http.MethodPost, "invoice", bytes.NewReader(payload), &apiResp); err != nil {
		return nil, err
	}
	if apiResp.InvoiceID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "gateway returned empty invoice id")
	}
	return &Invoice{InvoiceID: apiResp.InvoiceID, QRPayload: apiResp.QRText}, nil
}

// CheckStatus fetches the settlement rows for invoiceID.
func (c *Client) CheckStatus(ctx context.Context, invoiceID string) (*StatusResult, error) {
	if c == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "payment gateway client not configured")
	}
	trimmed := strings.TrimSpace(invoiceID)
	if trimmed == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invoice id is required")
	}

	var apiResp struct {
		Count int `json:"count"`
		Rows  []struct {
			PaymentID     string          `json:"payment_id"`
			PaymentStatus string          `json:"payment_status"`
			PaymentAmount decimal.Decimal `json:"payment_amount"`
			Currency      string          `json:"payment_currency"`
			PaymentDate   *time.Time      `json:"payment_date"`
		} `json:"rows"`
	}
	if err := c.do(ctx, http.MethodGet, "payment/check/"+url.PathEscape(trimmed), nil, &apiResp); err != nil {
		return nil, err
	}

	rows := make([]PaymentRow, 0, len(apiResp.Rows))
	for _, r := range apiResp.Rows {
		rows = append(rows, PaymentRow{
			PaymentID: r.PaymentID,
			Status:    r.PaymentStatus,
			Amount:    r.PaymentAmount,
			Currency:  r.Currency,
			PaidAt:    r.PaymentDate,
		})
	}
	return &StatusResult{Count: apiResp.Count, Rows: rows}, nil
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, out any) error {
	httpReq, err := http.NewRequestWithContext(ctx, method, c.baseURL+"/"+strings.TrimLeft(path, "/"), body)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build gateway request")
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.token)
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "execute gateway request")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= http.StatusBadRequest {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, responseBodyReadLimit))
		cause := fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
		code := pkgerrors.CodeDependency
		if resp.StatusCode < http.StatusInternalServerError && resp.StatusCode != http.StatusTooManyRequests {
			code = pkgerrors.CodeValidation
		}
		return pkgerrors.Wrap(code, cause, "gateway request failed")
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode gateway response")
	}
	return nil
}
