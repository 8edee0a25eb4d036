package pricing

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRecalculateTotals_Example(t *testing.T) {
	items := decodeItems(t, `[{"quantidade":2,"preco":10.00,"adicionais":[{"preco":1.50}]}]`)

	got := RecalculateTotals(items, 2.50, 0, 0)

	assertMoney(t, "23.00", got.Subtotal)
	assertMoney(t, "2.50", got.DeliveryFee)
	assertMoney(t, "0.00", got.ServiceFee)
	assertMoney(t, "0.00", got.Discount)
	assertMoney(t, "25.50", got.Total)
	assert.Equal(t, items, got.Items)
}

func TestRecalculateTotals_DiscountClampsToZero(t *testing.T) {
	items := []any{map[string]any{"quantity": 1, "price": 20}}

	got := RecalculateTotals(items, 2, 0, 50)

	assertMoney(t, "20.00", got.Subtotal)
	assertMoney(t, "0.00", got.Total)
}

func TestRecalculateTotals_NormalizesFees(t *testing.T) {
	items := []any{map[string]any{"quantity": 1, "price": 10}}

	got := RecalculateTotals(items, "-3", "1,999", "oops")

	assertMoney(t, "0.00", got.DeliveryFee)
	assertMoney(t, "2.00", got.ServiceFee)
	assertMoney(t, "0.00", got.Discount)
	assertMoney(t, "12.00", got.Total)
}

func TestRecalculateTotals_Idempotent(t *testing.T) {
	items := decodeItems(t, `[{"quantity":3,"price":"0.1"},{"quantidade":1,"valor":"9.99","adicionais":[{"valor":"0.01"}]}]`)

	first := RecalculateTotals(items, "1.25", 0.75, "0.30")
	second := RecalculateTotals(items, "1.25", 0.75, "0.30")

	assert.True(t, first.Subtotal.Equal(second.Subtotal))
	assert.True(t, first.Total.Equal(second.Total))
	assertMoney(t, "10.30", first.Subtotal)
	assertMoney(t, "12.00", first.Total)
}
