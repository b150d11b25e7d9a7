package asaas

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RafaelMassi/CorridaPass/internal/pkg/apperr"
)

func newTestClient(url string) *Client {
	return &Client{
		APIKey:     "test-key",
		BaseURL:    url,
		HTTPClient: &http.Client{Timeout: 2 * time.Second},
	}
}

func TestCreateCharge(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/payments", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("access_token"))

		var req map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "PIX", req["billingType"])
		assert.InDelta(t, 150.0, req["value"], 0.001)

		json.NewEncoder(w).Encode(map[string]interface{}{
			"id":                "pay_001",
			"status":            "PENDING",
			"value":             150.0,
			"externalReference": "reg:7",
			"invoiceUrl":        "https://pay.example/inv/pay_001",
			"pixQrCode":         "qr-data",
		})
	}))
	defer srv.Close()

	ch, err := newTestClient(srv.URL).CreateCharge(context.Background(), CreateChargeInput{
		CustomerRef:       "cus_9",
		BillingType:       "PIX",
		ValueCents:        15000,
		DueDate:           time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		ExternalReference: "reg:7",
	})
	require.NoError(t, err)

	assert.Equal(t, "pay_001", ch.ID)
	assert.Equal(t, int64(15000), ch.ValueCents)
	assert.Equal(t, "qr-data", ch.PixQRCode)
}

func TestCreateChargeRetriesServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		json.NewEncoder(w).Encode(map[string]interface{}{"id": "pay_002", "status": "PENDING", "value": 10.0})
	}))
	defer srv.Close()

	ch, err := newTestClient(srv.URL).CreateCharge(context.Background(), CreateChargeInput{
		CustomerRef: "cus_1",
		BillingType: "BOLETO",
		ValueCents:  1000,
		DueDate:     time.Now(),
	})
	require.NoError(t, err)
	assert.Equal(t, "pay_002", ch.ID)
	assert.EqualValues(t, 3, atomic.LoadInt32(&calls))
}

func TestCreateChargeDoesNotRetryClientErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"errors":[{"description":"invalid customer"}]}`))
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).CreateCharge(context.Background(), CreateChargeInput{
		CustomerRef: "cus_bad",
		BillingType: "PIX",
		ValueCents:  1000,
		DueDate:     time.Now(),
	})
	require.Error(t, err)
	assert.True(t, apperr.IsGateway(err))
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
}

func TestCreateChargeValidatesInput(t *testing.T) {
	_, err := newTestClient("http://unused").CreateCharge(context.Background(), CreateChargeInput{
		CustomerRef: "cus_1",
		BillingType: "PIX",
		ValueCents:  0,
		DueDate:     time.Now(),
	})
	require.Error(t, err)
	assert.True(t, apperr.IsValidation(err))
}

func TestGetCharge(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/payments/pay_003", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"id":          "pay_003",
			"status":      "RECEIVED",
			"value":       55.5,
			"paymentDate": "2026-04-02",
		})
	}))
	defer srv.Close()

	ch, err := newTestClient(srv.URL).GetCharge(context.Background(), "pay_003")
	require.NoError(t, err)
	assert.Equal(t, "RECEIVED", ch.Status)
	assert.Equal(t, int64(5550), ch.ValueCents)
	require.NotNil(t, ch.PaymentDate)
}
