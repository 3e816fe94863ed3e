package paymentclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_Charge_HappyPath(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/payments", r.URL.Path)
		assert.Equal(t, "idem-123", r.Header.Get("Idempotency-Key"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"payment_id":"pay-1","order_id":"order-1","amount":"47.50","status":"SUCCESS","reference":"ref-1"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 5*time.Second)
	result, err := c.Charge(context.Background(), ChargeRequest{
		OrderID:        "order-1",
		Amount:         decimal.NewFromFloat(47.50),
		Method:         "card",
		IdempotencyKey: "idem-123",
	})

	require.NoError(t, err)
	assert.True(t, result.Succeeded())
	assert.Equal(t, "pay-1", result.PaymentID)
}

func TestClient_Charge_MissingIdempotencyKey(t *testing.T) {
	c := NewClient("http://unused.invalid", 5*time.Second)
	_, err := c.Charge(context.Background(), ChargeRequest{OrderID: "order-1", Amount: decimal.NewFromInt(10)})
	assert.ErrorIs(t, err, ErrMissingIdempotencyKey)
}

func TestClient_Charge_NonSuccessStatusIsNotAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"payment_id":"pay-1","status":"FAILED"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 5*time.Second)
	result, err := c.Charge(context.Background(), ChargeRequest{
		OrderID: "order-1", Amount: decimal.NewFromInt(10), IdempotencyKey: "idem-1",
	})

	require.NoError(t, err)
	assert.False(t, result.Succeeded())
	assert.Equal(t, StatusFailed, result.Status)
}

func TestClient_Charge_MissingPaymentIDIsNotSucceeded(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"SUCCESS"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 5*time.Second)
	result, err := c.Charge(context.Background(), ChargeRequest{
		OrderID: "order-1", Amount: decimal.NewFromInt(10), IdempotencyKey: "idem-1",
	})

	require.NoError(t, err)
	assert.False(t, result.Succeeded())
}

func TestClient_Charge_GatewayUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 5*time.Second)
	_, err := c.Charge(context.Background(), ChargeRequest{
		OrderID: "order-1", Amount: decimal.NewFromInt(10), IdempotencyKey: "idem-1",
	})

	assert.ErrorIs(t, err, ErrPaymentUnavailable)
}
