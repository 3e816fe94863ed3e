package inventoryclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_Reserve_HappyPath(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/inventory/reserve", r.URL.Path)
		assert.Equal(t, "idem-1", r.Header.Get("Idempotency-Key"))
		_, _ = w.Write([]byte(`{"status":"RESERVED","orderId":"order-1","items":[{"productId":"p1","sku":"SKU-1","warehouse":"WH-A","reservedQty":2,"requestedQty":2,"reservationId":"res-1"}],"expiresAt":"2026-07-30T12:00:00Z"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 8*time.Second)
	result, err := c.Reserve(context.Background(), "order-1", "idem-1", []ReserveItem{{ProductID: "p1", Quantity: 2, SKU: "SKU-1"}})

	require.NoError(t, err)
	assert.True(t, result.Succeeded())
	require.Len(t, result.Items, 1)
	assert.Equal(t, "res-1", result.Items[0].ReservationID)
}

func TestClient_Reserve_Partial(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"PARTIAL","orderId":"order-1","items":[]}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 8*time.Second)
	result, err := c.Reserve(context.Background(), "order-1", "idem-1", []ReserveItem{{ProductID: "p1", Quantity: 2}})

	require.NoError(t, err)
	assert.False(t, result.Succeeded())
	assert.Equal(t, StatusPartial, result.Status)
}

func TestClient_Reserve_DuplicateIdempotencyKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 8*time.Second)
	_, err := c.Reserve(context.Background(), "order-1", "idem-1", []ReserveItem{{ProductID: "p1", Quantity: 2}})

	assert.ErrorIs(t, err, ErrDuplicateIdempotencyKey)
}

func TestClient_Release_HappyPath(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/inventory/release", r.URL.Path)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 8*time.Second)
	err := c.Release(context.Background(), "order-1")

	require.NoError(t, err)
}

func TestClient_Reserve_Unavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 8*time.Second)
	_, err := c.Reserve(context.Background(), "order-1", "idem-1", []ReserveItem{{ProductID: "p1", Quantity: 2}})

	assert.ErrorIs(t, err, ErrInventoryUnavailable)
}
