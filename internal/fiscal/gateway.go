// Package fiscal talks to the external government invoicing gateway.
// Submissions are slow network calls and are always made outside any
// database transaction; errors are classified retryable or permanent
// so the invoice state machine can decide what to do.
package fiscal

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"go-retail-pos/internal/apperr"
)

// PayloadItem is one invoice line as the gateway expects it.
type PayloadItem struct {
	Description string          `json:"description"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	TaxRate     decimal.Decimal `json:"tax_rate"`
	Total       decimal.Decimal `json:"total"`
}

// TaxBracket aggregates tax by rate for the payload.
type TaxBracket struct {
	Rate   decimal.Decimal `json:"rate"`
	Net    decimal.Decimal `json:"net"`
	Amount decimal.Decimal `json:"amount"`
}

// CustomerSnapshot is the receiver's fiscal identity at emission time.
type CustomerSnapshot struct {
	Name            string `json:"name"`
	TaxID           string `json:"tax_id"`
	FiscalCondition string `json:"fiscal_condition"`
	Address         string `json:"address"`
}

// DocumentRef identifies an already-issued document, used by credit
// notes to reference their original invoice.
type DocumentRef struct {
	Type        string `json:"type"`
	PointOfSale int    `json:"point_of_sale"`
	Number      int64  `json:"number"`
}

// InvoicePayload is the submission body for an invoice.
type InvoicePayload struct {
	Type        string           `json:"type"`
	PointOfSale int              `json:"point_of_sale"`
	Number      int64            `json:"number"`
	Customer    CustomerSnapshot `json:"customer"`
	Items       []PayloadItem    `json:"items"`
	TaxTotals   []TaxBracket     `json:"tax_totals"`
	NetAmount   decimal.Decimal  `json:"net_amount"`
	TaxAmount   decimal.Decimal  `json:"tax_amount"`
	TotalAmount decimal.Decimal  `json:"total_amount"`
}

// CreditNotePayload mirrors InvoicePayload plus the original invoice.
type CreditNotePayload struct {
	InvoicePayload
	OriginalInvoice DocumentRef `json:"original_invoice"`
}

// Result is a successful gateway acceptance.
type Result struct {
	CAE           string    `json:"cae"`
	CAEExpiration time.Time `json:"cae_expiration"`
	GatewayID     string    `json:"gateway_id"`
	RawResponse   string    `json:"-"`
}

// Gateway submits fiscal documents. A nil error means the document was
// accepted; otherwise the error is an *apperr.GatewayError.
type Gateway interface {
	SubmitInvoice(ctx context.Context, payload InvoicePayload) (*Result, error)
	SubmitCreditNote(ctx context.Context, payload CreditNotePayload) (*Result, error)
}

// HTTPGateway is the JSON-over-HTTP client for the real gateway.
type HTTPGateway struct {
	baseURL string
	token   string
	client  *http.Client
}

func NewHTTPGateway(baseURL, token string, timeout time.Duration) *HTTPGateway {
	return &HTTPGateway{
		baseURL: baseURL,
		token:   token,
		client:  &http.Client{Timeout: timeout},
	}
}

type gatewayResponse struct {
	Success       bool       `json:"success"`
	CAE           string     `json:"cae"`
	CAEExpiration *time.Time `json:"cae_expiration"`
	GatewayID     string     `json:"gateway_id"`
	Error         string     `json:"error"`
	ErrorCode     string     `json:"error_code"`
	Retryable     bool       `json:"retryable"`
}

func (g *HTTPGateway) SubmitInvoice(ctx context.Context, payload InvoicePayload) (*Result, error) {
	return g.submit(ctx, "/v1/invoices", payload)
}

func (g *HTTPGateway) SubmitCreditNote(ctx context.Context, payload CreditNotePayload) (*Result, error) {
	return g.submit(ctx, "/v1/credit-notes", payload)
}

func (g *HTTPGateway) submit(ctx context.Context, path string, payload interface{}) (*Result, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, apperr.Gateway("ENCODE", err.Error(), false)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, apperr.Gateway("REQUEST", err.Error(), false)
	}
	req.Header.Set("Content-Type", "application/json")
	if g.token != "" {
		req.Header.Set("Authorization", "Bearer "+g.token)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		// Timeouts and transport failures are transient: the document
		// may still go through on a later attempt.
		return nil, apperr.Gateway("NETWORK", err.Error(), true)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperr.Gateway("READ", err.Error(), true)
	}

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return nil, apperr.Gateway(
			fmt.Sprintf("HTTP_%d", resp.StatusCode),
			fmt.Sprintf("gateway returned status %d", resp.StatusCode),
			true,
		)
	}

	var gr gatewayResponse
	if err := json.Unmarshal(raw, &gr); err != nil {
		return nil, apperr.Gateway("DECODE", "unparseable gateway response", false)
	}

	if !gr.Success {
		code := gr.ErrorCode
		if code == "" {
			code = fmt.Sprintf("HTTP_%d", resp.StatusCode)
		}
		return nil, apperr.Gateway(code, gr.Error, gr.Retryable)
	}

	result := &Result{
		CAE:         gr.CAE,
		GatewayID:   gr.GatewayID,
		RawResponse: string(raw),
	}
	if gr.CAEExpiration != nil {
		result.CAEExpiration = *gr.CAEExpiration
	}
	return result, nil
}
