package asaas

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/RafaelMassi/CorridaPass/internal/pkg/apperr"
	"github.com/RafaelMassi/CorridaPass/internal/pkg/env"
)

const defaultBaseURL = "https://api.asaas.com/v3"

const maxChargeRetries = 3

// Client talks to the Asaas payment REST API. It owns no business state; the
// reconciler and payments service drive it.
type Client struct {
	APIKey  string
	BaseURL string

	HTTPClient *http.Client
}

// CreateChargeInput describes one charge intent. Value is carried in centavos
// and converted to the gateway's decimal representation on the wire.
type CreateChargeInput struct {
	CustomerRef       string
	BillingType       string
	ValueCents        int64
	DueDate           time.Time
	ExternalReference string
	Description       string
}

// Charge is the normalized gateway charge shape used internally.
type Charge struct {
	ID                string
	Status            string
	ValueCents        int64
	ExternalReference string
	PixQRCode         string
	InvoiceURL        string
	PaymentDate       *time.Time
}

func NewClientFromEnv() *Client {
	return &Client{
		APIKey:  strings.TrimSpace(env.GetEnv("ASAAS_API_KEY", "")),
		BaseURL: strings.TrimRight(env.GetEnv("ASAAS_BASE_URL", defaultBaseURL), "/"),
		HTTPClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

type chargeRequest struct {
	Customer          string  `json:"customer"`
	BillingType       string  `json:"billingType"`
	Value             float64 `json:"value"`
	DueDate           string  `json:"dueDate"`
	ExternalReference string  `json:"externalReference,omitempty"`
	Description       string  `json:"description,omitempty"`
}

type chargeResponse struct {
	ID                string  `json:"id"`
	Status            string  `json:"status"`
	Value             float64 `json:"value"`
	ExternalReference string  `json:"externalReference"`
	InvoiceURL        string  `json:"invoiceUrl"`
	PixQRCode         string  `json:"pixQrCode"`
	PaymentDate       string  `json:"paymentDate"`
}

// CreateCharge creates a charge at the gateway. 5xx responses and transport
// errors are retried with exponential backoff and surface as GatewayError, so
// the caller's intent record stays pending.
func (c *Client) CreateCharge(ctx context.Context, in CreateChargeInput) (*Charge, error) {
	if c.APIKey == "" {
		return nil, apperr.Gateway("ASAAS_API_KEY is not configured", nil)
	}
	if in.CustomerRef == "" || in.BillingType == "" || in.ValueCents <= 0 {
		return nil, apperr.Validation("charge requires customer, billing type and a positive value")
	}

	body, err := json.Marshal(chargeRequest{
		Customer:          in.CustomerRef,
		BillingType:       in.BillingType,
		Value:             centsToValue(in.ValueCents),
		DueDate:           in.DueDate.Format("2006-01-02"),
		ExternalReference: in.ExternalReference,
		Description:       in.Description,
	})
	if err != nil {
		return nil, err
	}

	var out chargeResponse
	op := func() error {
		return c.doJSON(ctx, http.MethodPost, "/payments", bytes.NewReader(body), &out)
	}
	if err := backoff.Retry(op, c.newBackOff(ctx)); err != nil {
		return nil, err
	}
	return chargeFromResponse(&out), nil
}

// GetCharge queries current charge state; used by the reconciliation sweep.
func (c *Client) GetCharge(ctx context.Context, chargeID string) (*Charge, error) {
	if strings.TrimSpace(chargeID) == "" {
		return nil, apperr.Validation("charge id is required")
	}

	var out chargeResponse
	op := func() error {
		return c.doJSON(ctx, http.MethodGet, "/payments/"+chargeID, nil, &out)
	}
	if err := backoff.Retry(op, c.newBackOff(ctx)); err != nil {
		return nil, err
	}
	return chargeFromResponse(&out), nil
}

func (c *Client) newBackOff(ctx context.Context) backoff.BackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 200 * time.Millisecond
	bo.MaxElapsedTime = 0
	return backoff.WithContext(backoff.WithMaxRetries(bo, maxChargeRetries), ctx)
}

func (c *Client) doJSON(ctx context.Context, method, path string, body io.Reader, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return backoff.Permanent(apperr.Gateway("build request", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("access_token", c.APIKey)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		// Transport failures and timeouts are retryable.
		return apperr.Gateway("gateway request failed", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return apperr.Gateway("read gateway response", err)
	}

	switch {
	case resp.StatusCode >= 500:
		return apperr.Gateway(fmt.Sprintf("gateway returned %d", resp.StatusCode), nil)
	case resp.StatusCode >= 400:
		// Client errors never resolve by retrying.
		return backoff.Permanent(apperr.Gateway(fmt.Sprintf("gateway rejected request: %d %s", resp.StatusCode, strings.TrimSpace(string(data))), nil))
	}

	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return backoff.Permanent(apperr.Gateway("decode gateway response", err))
		}
	}
	return nil
}

func chargeFromResponse(r *chargeResponse) *Charge {
	ch := &Charge{
		ID:                r.ID,
		Status:            r.Status,
		ValueCents:        valueToCents(r.Value),
		ExternalReference: r.ExternalReference,
		PixQRCode:         r.PixQRCode,
		InvoiceURL:        r.InvoiceURL,
	}
	if r.PaymentDate != "" {
		if t, err := time.Parse("2006-01-02", r.PaymentDate); err == nil {
			ch.PaymentDate = &t
		}
	}
	return ch
}

func centsToValue(cents int64) float64 {
	return float64(cents) / 100
}

func valueToCents(value float64) int64 {
	if value >= 0 {
		return int64(value*100 + 0.5)
	}
	return int64(value*100 - 0.5)
}
