package pricing

import "github.com/shopspring/decimal"

// CalculateSubtotal sums line totals of a raw item list and rounds to cents.
// Anything that is not a list yields zero; entries that are not objects or
// have a non-positive quantity contribute nothing. The result is never
// negative.
func CalculateSubtotal(raw any) decimal.Decimal {
	return SubtotalOf(NormalizeItems(raw))
}

// SubtotalOf sums canonical line items and rounds to cents. Carts use it so
// that client-side totals match the server recomputation.
func SubtotalOf(items []LineItem) decimal.Decimal {
	total := decimal.Zero
	for _, li := range items {
		total = total.Add(li.Total())
	}
	return RoundCents(total)
}
