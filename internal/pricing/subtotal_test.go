package pricing

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// decodeItems parses items the same way the HTTP layer does.
func decodeItems(t *testing.T, s string) []any {
	t.Helper()
	var items []any
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()
	require.NoError(t, dec.Decode(&items))
	return items
}

func TestCalculateSubtotal_LegacyFieldNames(t *testing.T) {
	items := decodeItems(t, `[{"quantidade":2,"preco":10.00,"adicionais":[{"preco":1.50}]}]`)
	assertMoney(t, "23.00", CalculateSubtotal(items))
}

func TestCalculateSubtotal_ZeroQuantitySkipped(t *testing.T) {
	items := decodeItems(t, `[{"quantidade":0,"preco":100}]`)
	assertMoney(t, "0.00", CalculateSubtotal(items))
}

func TestCalculateSubtotal_Surcharge(t *testing.T) {
	items := decodeItems(t, `[
		{"quantity":3,"unitPrice":"4.10","selectedAddons":[{"price":0.5},{"price":"0.40"}],"customizationSurcharge":1}
	]`)
	// (4.10 + 0.90 + 1.00) * 3
	assertMoney(t, "18.00", CalculateSubtotal(items))
}

func TestCalculateSubtotal_AliasPriority(t *testing.T) {
	items := []any{
		map[string]any{"unitPrice": 5, "preco": 7, "price": 9, "quantity": 1, "quantidade": 4},
		map[string]any{"unitPrice": "", "preco": nil, "price": 2, "qty": 1},
		map[string]any{"valor": 3, "quantity": 1},
	}
	// 5*1 + 2*1 + 3*1
	assertMoney(t, "10.00", CalculateSubtotal(items))
}

func TestCalculateSubtotal_NotAList(t *testing.T) {
	for _, in := range []any{nil, "items", 42, map[string]any{"quantity": 1, "price": 10}} {
		assertMoney(t, "0.00", CalculateSubtotal(in))
	}
}

func TestCalculateSubtotal_MalformedFieldsDegrade(t *testing.T) {
	items := []any{
		"not an item",
		map[string]any{"quantity": "two", "price": 10},
		map[string]any{"quantity": 1, "price": "ten"},
		map[string]any{"quantity": 1, "price": -20, "addons": "nope"},
		map[string]any{"quantity": -3, "price": 100},
		map[string]any{"quantity": 1, "price": 4, "addons": []any{map[string]any{"price": "x"}, 7}, "extra": true},
	}
	assertMoney(t, "4.00", CalculateSubtotal(items))
}

func TestCalculateSubtotal_NeverNegativeAndCentPrecise(t *testing.T) {
	inputs := [][]any{
		{map[string]any{"quantity": 3, "price": 0.1}},
		{map[string]any{"quantity": 7, "price": "0.333"}},
		{map[string]any{"quantity": 1, "price": -0.01}},
		{map[string]any{"quantity": 1, "price": 1.005, "adicionais": []any{map[string]any{"valor": 0.015}}}},
	}
	for _, items := range inputs {
		got := CalculateSubtotal(items)
		assert.False(t, got.IsNegative())
		assert.True(t, got.Equal(got.Round(2)), "residue beyond cents: %s", got)
	}
	assertMoney(t, "0.30", CalculateSubtotal(inputs[0]))
	assertMoney(t, "2.33", CalculateSubtotal(inputs[1]))
}

func TestSubtotalOf_MatchesRawCalculation(t *testing.T) {
	raw := decodeItems(t, `[
		{"nome":"Pizza","quantidade":2,"preco":"32.90","adicionais":[{"nome":"Borda","preco":6}]},
		{"name":"Soda","quantity":3,"price":5.5}
	]`)
	items := NormalizeItems(raw)
	require.Len(t, items, 2)
	assert.Equal(t, "Pizza", items[0].Name)
	assert.Equal(t, "Borda", items[0].Addons[0].Name)
	assert.True(t, SubtotalOf(items).Equal(CalculateSubtotal(raw)))
	assertMoney(t, "94.30", SubtotalOf(items))
}

func TestLineItemTotal(t *testing.T) {
	li := LineItem{
		Quantity:               2,
		UnitPrice:              decimal.RequireFromString("10"),
		Addons:                 []Addon{{Price: decimal.RequireFromString("1.5")}},
		CustomizationSurcharge: decimal.RequireFromString("0.25"),
	}
	assertMoney(t, "23.50", li.Total())

	li.Quantity = 0
	assertMoney(t, "0.00", li.Total())
}
