// Package catalogclient implements the read-only Catalog Adapter consumed
// by the order saga (§4.4, §6): pricing and product-detail lookup. The
// Catalog service itself is out of scope — this package is only the client.
package catalogclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ordercore/saga-platform/internal/platform/logger"
	"github.com/ordercore/saga-platform/internal/platform/resilience"
)

// Details holds a product's SKU and display name.
type Details struct {
	SKU  string
	Name string
}

// PriceMap maps product identifier to current unit price.
type PriceMap map[string]decimal.Decimal

// Adapter is the narrow contract the saga depends on; implemented here by
// Client (real HTTP) and swappable for a test double in saga tests.
type Adapter interface {
	// Prices returns current unit prices for the given product identifiers
	// in a single round trip. A missing identifier in the response is
	// reported via ErrPriceNotFound.
	Prices(ctx context.Context, productIDs []string) (PriceMap, error)
	// Details returns SKU and name for a single product.
	Details(ctx context.Context, productID string) (Details, error)
}

// Client is an Adapter backed by the Catalog service's HTTP API (§6).
type Client struct {
	baseURL string
	http    *http.Client
	breaker *resilience.Breaker
}

// NewClient builds a Client with a per-hop timeout and a Circuit Breaker
// around both operations (§5: Catalog default 5s).
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		breaker: resilience.New("catalog"),
	}
}

// Prices calls GET /v1/products/prices?productIds=...&productIds=...
func (c *Client) Prices(ctx context.Context, productIDs []string) (PriceMap, error) {
	if len(productIDs) == 0 {
		return PriceMap{}, nil
	}

	q := url.Values{}
	for _, id := range productIDs {
		q.Add("productIds", id)
	}
	endpoint := fmt.Sprintf("%s/v1/products/prices?%s", c.baseURL, q.Encode())

	raw, err := resilience.Execute(ctx, c.breaker, isTransportFailure, func(ctx context.Context) (map[string]string, error) {
		return doGET[map[string]string](ctx, c.http, endpoint)
	})
	if err != nil {
		logUnavailable(ctx, "prices", err.Error())
		return nil, fmt.Errorf("%w: %v", ErrCatalogUnavailable, err)
	}

	prices := make(PriceMap, len(productIDs))
	for _, id := range productIDs {
		v, ok := raw[id]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrPriceNotFound, id)
		}
		price, err := decimal.NewFromString(v)
		if err != nil {
			return nil, fmt.Errorf("%w: цена товара %s некорректна: %v", ErrCatalogUnavailable, id, err)
		}
		prices[id] = price
	}

	return prices, nil
}

// Details calls GET /v1/products/{id}
func (c *Client) Details(ctx context.Context, productID string) (Details, error) {
	endpoint := fmt.Sprintf("%s/v1/products/%s", c.baseURL, url.PathEscape(productID))

	type detailsResponse struct {
		SKU  string `json:"sku"`
		Name string `json:"name"`
	}

	resp, err := resilience.Execute(ctx, c.breaker, isTransportFailure, func(ctx context.Context) (detailsResponse, error) {
		return doGET[detailsResponse](ctx, c.http, endpoint)
	})
	if errors.Is(err, ErrDetailsNotFound) {
		return Details{}, err
	}
	if err != nil {
		logUnavailable(ctx, "details", err.Error())
		return Details{}, fmt.Errorf("%w: %v", ErrCatalogUnavailable, err)
	}

	if resp.SKU == "" || resp.Name == "" {
		return Details{}, fmt.Errorf("%w: %s", ErrDetailsNotFound, productID)
	}

	return Details{SKU: resp.SKU, Name: resp.Name}, nil
}

func doGET[T any](ctx context.Context, client *http.Client, endpoint string) (T, error) {
	var zero T

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return zero, err
	}

	resp, err := client.Do(req)
	if err != nil {
		return zero, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotFound {
		return zero, ErrDetailsNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return zero, fmt.Errorf("catalog ответил статусом %s", strconv.Itoa(resp.StatusCode))
	}

	var out T
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return zero, fmt.Errorf("некорректный ответ catalog: %w", err)
	}
	return out, nil
}

// isTransportFailure classifies an error as a breaker-relevant failure
// (network/5xx) as opposed to a business-level miss (price/details not
// found), which should not trip the breaker.
func isTransportFailure(err error) bool {
	return err != nil && !strings.Contains(err.Error(), "не найден")
}

func logUnavailable(ctx context.Context, op, err string) {
	logger.FromContext(ctx).Warn().Str("op", op).Str("error", err).Msg("Catalog недоступен")
}
