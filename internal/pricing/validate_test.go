package pricing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateItems_Accepts(t *testing.T) {
	items := decodeItems(t, `[
		{"quantidade":2,"preco":10.00,"adicionais":[{"preco":1.50},{"nome":"free"}]},
		{"quantity":0,"unitPrice":"3.00"},
		{"quantity":"1","price":"4,50","customizationSurcharge":""}
	]`)
	require.NoError(t, ValidateItems(items))
}

func TestValidateItems_Rejects(t *testing.T) {
	tests := []struct {
		name      string
		items     string
		wantIndex int
		wantField string
		wantErr   error
	}{
		{"not an object", `[1]`, 0, "", ErrNotAnObject},
		{"missing quantity", `[{"preco":1}]`, 0, "quantity", ErrMissingAmount},
		{"malformed quantity", `[{"quantidade":"dois","preco":1}]`, 0, "quantidade", ErrMalformedAmount},
		{"fractional quantity", `[{"quantity":1.5,"price":1}]`, 0, "quantity", ErrInvalidQuantity},
		{"negative quantity", `[{"quantity":-1,"price":1}]`, 0, "quantity", ErrNegativeAmount},
		{"quantity above limit", `[{"quantidade":10001,"preco":"10.00"}]`, 0, "quantidade", ErrQuantityTooLarge},
		{"quantity with huge exponent", `[{"quantity":"1e30000000","price":1}]`, 0, "quantity", ErrAmountTooLarge},
		{"price with huge exponent", `[{"quantidade":1,"preco":"1e30000000"}]`, 0, "preco", ErrAmountTooLarge},
		{"price above column limit", `[{"quantidade":1,"preco":"10000000000"}]`, 0, "preco", ErrAmountTooLarge},
		{"price with tiny exponent", `[{"quantidade":1,"preco":"1e-30000000"}]`, 0, "preco", ErrMalformedAmount},
		{"overlong price", `[{"quantidade":1,"preco":"1000000000000000000000000000000000000000"}]`, 0, "preco", ErrMalformedAmount},
		{"missing price", `[{"quantity":1}]`, 0, "unitPrice", ErrMissingAmount},
		{"malformed price", `[{"quantity":1,"price":1},{"quantity":1,"valor":"abc"}]`, 1, "valor", ErrMalformedAmount},
		{"negative price", `[{"quantity":1,"preco":-2}]`, 0, "preco", ErrNegativeAmount},
		{"addons not a list", `[{"quantity":1,"preco":2,"adicionais":{}}]`, 0, "adicionais", ErrNotAList},
		{"malformed addon", `[{"quantity":1,"preco":2,"adicionais":[{"preco":"x"}]}]`, 0, "adicionais[0].preco", ErrMalformedAmount},
		{"negative surcharge", `[{"quantity":1,"preco":2,"customizationTotal":-1}]`, 0, "customizationTotal", ErrNegativeAmount},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateItems(decodeItems(t, tc.items))
			require.ErrorIs(t, err, tc.wantErr)

			var itemErr *ItemError
			require.ErrorAs(t, err, &itemErr)
			assert.Equal(t, tc.wantIndex, itemErr.Index)
			assert.Equal(t, tc.wantField, itemErr.Field)
		})
	}
}

func TestValidateAmount(t *testing.T) {
	assert.NoError(t, ValidateAmount("taxaEntrega", nil))
	assert.NoError(t, ValidateAmount("taxaEntrega", ""))
	assert.NoError(t, ValidateAmount("taxaEntrega", "2.50"))

	err := ValidateAmount("desconto", "-1")
	require.ErrorIs(t, err, ErrNegativeAmount)
	assert.EqualError(t, err, "desconto: must not be negative")

	require.ErrorIs(t, ValidateAmount("desconto", "lots"), ErrMalformedAmount)
	require.ErrorIs(t, ValidateAmount("taxaEntrega", "1e30000000"), ErrAmountTooLarge)
}

func TestValidateItems_QuantityLimitIsInclusive(t *testing.T) {
	items := decodeItems(t, `[{"quantidade":10000,"preco":"1.00"}]`)
	require.NoError(t, ValidateItems(items))
	assertMoney(t, "10000.00", CalculateSubtotal(items))
}
