package pricing

import "github.com/shopspring/decimal"

// Totals is the result of RecalculateTotals. Items is the input passed
// through untouched.
type Totals struct {
	Items       any
	Subtotal    decimal.Decimal
	DeliveryFee decimal.Decimal
	ServiceFee  decimal.Decimal
	Discount    decimal.Decimal
	Total       decimal.Decimal
}

// RecalculateTotals derives every money field of an order from its items and
// raw fee/discount values. It is the only place order totals are computed;
// client-supplied subtotal and total values are never consulted.
//
//	total = max(0, round(subtotal + deliveryFee + serviceFee - discount, 2))
func RecalculateTotals(items, deliveryFee, serviceFee, discount any) Totals {
	t := Totals{
		Items:       items,
		Subtotal:    CalculateSubtotal(items),
		DeliveryFee: NormalizeMoney(deliveryFee),
		ServiceFee:  NormalizeMoney(serviceFee),
		Discount:    NormalizeMoney(discount),
	}
	t.Total = RoundCents(t.Subtotal.Add(t.DeliveryFee).Add(t.ServiceFee).Sub(t.Discount))
	if t.Total.IsNegative() {
		t.Total = decimal.Zero
	}
	return t
}
