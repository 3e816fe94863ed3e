// Package totals computes the authoritative order total (§4.5) and the
// tamper-evident signature the orchestrator stores alongside each order.
package totals

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"

	"github.com/shopspring/decimal"
)

// DefaultTaxRate applies when the caller does not override it.
var DefaultTaxRate = decimal.NewFromFloat(0.05)

// BaseShipping and PerUnitShipping implement the default shipping formula
// from §4.5: 10.00 + Σ(quantity) * 2.00.
var (
	BaseShipping    = decimal.NewFromInt(10)
	PerUnitShipping = decimal.NewFromInt(2)
)

// LineItem is one priced, quantified order line fed into the calculator.
type LineItem struct {
	ProductID string
	Quantity  int64
	UnitPrice decimal.Decimal
}

// Options overrides the calculator's defaults.
type Options struct {
	// TaxRate overrides DefaultTaxRate when non-nil.
	TaxRate *decimal.Decimal
	// ShippingCost overrides the computed shipping cost when non-nil.
	ShippingCost *decimal.Decimal
}

// Breakdown is the full, rounded totals result plus its tamper signature.
type Breakdown struct {
	Subtotal     decimal.Decimal
	TaxRate      decimal.Decimal
	TaxAmount    decimal.Decimal
	ShippingCost decimal.Decimal
	Total        decimal.Decimal
	Signature    string
}

// roundingPlaces is the fixed-point precision mandated by §3 (2 decimals).
const roundingPlaces = 2

// Calculate computes subtotal, tax, shipping and total under banker's
// rounding (round-half-to-even), then derives a SHA-256 signature over the
// canonical breakdown. items must be non-empty.
func Calculate(items []LineItem, opts Options) (Breakdown, error) {
	if len(items) == 0 {
		return Breakdown{}, ErrNoItems
	}

	subtotal := decimal.Zero
	var totalQty int64
	for _, it := range items {
		if it.Quantity <= 0 {
			return Breakdown{}, ErrInvalidQuantity
		}
		lineTotal := it.UnitPrice.Mul(decimal.NewFromInt(it.Quantity))
		subtotal = subtotal.Add(lineTotal)
		totalQty += it.Quantity
	}
	subtotal = subtotal.RoundBank(roundingPlaces)

	taxRate := DefaultTaxRate
	if opts.TaxRate != nil {
		taxRate = *opts.TaxRate
	}
	taxAmount := subtotal.Mul(taxRate).RoundBank(roundingPlaces)

	shipping := BaseShipping.Add(PerUnitShipping.Mul(decimal.NewFromInt(totalQty)))
	if opts.ShippingCost != nil {
		shipping = *opts.ShippingCost
	}
	shipping = shipping.RoundBank(roundingPlaces)

	total := subtotal.Add(taxAmount).Add(shipping).RoundBank(roundingPlaces)

	sig, err := signature(items, subtotal, taxRate, taxAmount, shipping, total)
	if err != nil {
		return Breakdown{}, err
	}

	return Breakdown{
		Subtotal:     subtotal,
		TaxRate:      taxRate,
		TaxAmount:    taxAmount,
		ShippingCost: shipping,
		Total:        total,
		Signature:    sig,
	}, nil
}

// signedLineItem is the canonical, sorted line-item shape hashed into the signature.
type signedLineItem struct {
	ProductID string `json:"product_id"`
	Quantity  int64  `json:"quantity"`
	UnitPrice string `json:"unit_price"`
}

type signedBreakdown struct {
	Items        []signedLineItem `json:"items"`
	Subtotal     string           `json:"subtotal"`
	TaxRate      string           `json:"tax_rate"`
	TaxAmount    string           `json:"tax_amount"`
	ShippingCost string           `json:"shipping_cost"`
	Total        string           `json:"total"`
}

// signature hashes a deterministic JSON encoding of the breakdown: items
// sorted by product identifier, all monetary values as canonical decimal
// strings so the signature is stable across re-derivation (§4.5, §9).
func signature(items []LineItem, subtotal, taxRate, taxAmount, shipping, total decimal.Decimal) (string, error) {
	sorted := make([]LineItem, len(items))
	copy(sorted, items)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ProductID < sorted[j].ProductID })

	signed := signedBreakdown{
		Items:        make([]signedLineItem, len(sorted)),
		Subtotal:     subtotal.StringFixed(roundingPlaces),
		TaxRate:      taxRate.String(),
		TaxAmount:    taxAmount.StringFixed(roundingPlaces),
		ShippingCost: shipping.StringFixed(roundingPlaces),
		Total:        total.StringFixed(roundingPlaces),
	}
	for i, it := range sorted {
		signed.Items[i] = signedLineItem{
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice.StringFixed(roundingPlaces),
		}
	}

	encoded, err := json.Marshal(signed)
	if err != nil {
		return "", err
	}

	sum := sha256.Sum256(encoded)
	return hex.EncodeToString(sum[:]), nil
}
