package cart

import "github.com/shopspring/decimal"

// Totals is derived from the line items and never stored. Subtotal and tax are
// rounded half-up to cents.
type Totals struct {
	Subtotal decimal.Decimal
	Shipping decimal.Decimal
	Tax      decimal.Decimal
	Total    decimal.Decimal
}

// Totals computes subtotal, flat shipping (only for a non-empty subtotal),
// tax on the subtotal and the grand total.
func (s *Store) Totals() Totals {
	return computeTotals(s.items, s.pricing)
}

func computeTotals(items []LineItem, pricing Pricing) Totals {
	subtotal := decimal.Zero
	for _, item := range items {
		line := decimal.NewFromFloat(item.Price).Mul(decimal.NewFromInt(int64(item.Quantity)))
		subtotal = subtotal.Add(line)
	}
	if subtotal.IsNegative() {
		subtotal = decimal.Zero
	}
	subtotal = subtotal.Round(2)

	shipping := decimal.Zero
	if subtotal.IsPositive() && pricing.Shipping.IsPositive() {
		shipping = pricing.Shipping.Round(2)
	}

	tax := decimal.Zero
	if pricing.TaxRate.IsPositive() {
		tax = subtotal.Mul(pricing.TaxRate).Round(2)
	}

	return Totals{
		Subtotal: subtotal,
		Shipping: shipping,
		Tax:      tax,
		Total:    subtotal.Add(shipping).Add(tax),
	}
}
