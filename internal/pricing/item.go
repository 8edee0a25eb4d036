package pricing

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Accepted field names per canonical field, in resolution priority:
// explicit name, legacy (Portuguese) name, generic name.
var (
	quantityKeys   = []string{"quantity", "quantidade", "qty"}
	unitPriceKeys  = []string{"unitPrice", "precoUnitario", "preco", "price", "valor"}
	addonListKeys  = []string{"selectedAddons", "adicionais", "addons"}
	addonPriceKeys = []string{"price", "preco", "valor"}
	addonNameKeys  = []string{"name", "nome"}
	surchargeKeys  = []string{"customizationSurcharge", "customizationTotal", "personalizacaoTotal"}
	nameKeys       = []string{"name", "nome"}
	menuItemIDKeys = []string{"menuItemId", "produtoId", "productId"}
	notesKeys      = []string{"notes", "observacao"}
)

// Addon is one priced extra attached to a line item.
type Addon struct {
	Name  string          `json:"name,omitempty"`
	Price decimal.Decimal `json:"price"`
}

// LineItem is the canonical form of an ordered menu item. Money fields are
// never negative.
type LineItem struct {
	MenuItemID             string          `json:"menu_item_id,omitempty"`
	Name                   string          `json:"name,omitempty"`
	Quantity               int32           `json:"quantity"`
	UnitPrice              decimal.Decimal `json:"unit_price"`
	Addons                 []Addon         `json:"addons"`
	CustomizationSurcharge decimal.Decimal `json:"customization_surcharge"`
	Notes                  string          `json:"notes,omitempty"`
}

// AddonTotal is the sum of add-on prices for a single unit.
func (li LineItem) AddonTotal() decimal.Decimal {
	sum := decimal.Zero
	for _, a := range li.Addons {
		sum = sum.Add(a.Price)
	}
	return sum
}

// Total is (unit price + add-ons + surcharge) × quantity, or zero when the
// quantity is not positive. It is not rounded.
func (li LineItem) Total() decimal.Decimal {
	if li.Quantity <= 0 {
		return decimal.Zero
	}
	q := decimal.NewFromInt32(li.Quantity)
	return li.UnitPrice.Add(li.AddonTotal()).Add(li.CustomizationSurcharge).Mul(q)
}

// NormalizeItem resolves field aliases of a raw client item into a LineItem.
// Unknown fields are ignored and unparseable numbers become zero.
func NormalizeItem(raw map[string]any) LineItem {
	li := LineItem{
		MenuItemID:             stringField(raw, menuItemIDKeys),
		Name:                   stringField(raw, nameKeys),
		Quantity:               quantityOf(lookup(raw, quantityKeys)),
		UnitPrice:              nonNegative(Coerce(lookup(raw, unitPriceKeys))),
		CustomizationSurcharge: nonNegative(Coerce(lookup(raw, surchargeKeys))),
		Notes:                  stringField(raw, notesKeys),
	}

	addons, _ := asList(lookup(raw, addonListKeys))
	li.Addons = make([]Addon, 0, len(addons))
	for _, a := range addons {
		obj, ok := a.(map[string]any)
		if !ok {
			continue
		}
		li.Addons = append(li.Addons, Addon{
			Name:  stringField(obj, addonNameKeys),
			Price: nonNegative(Coerce(lookup(obj, addonPriceKeys))),
		})
	}
	return li
}

// NormalizeItems normalizes every object in a raw item list, preserving
// order. Non-object entries are dropped; a non-list input yields nil.
func NormalizeItems(raw any) []LineItem {
	if items, ok := raw.([]LineItem); ok {
		return items
	}
	list, ok := asList(raw)
	if !ok {
		return nil
	}
	out := make([]LineItem, 0, len(list))
	for _, el := range list {
		obj, ok := el.(map[string]any)
		if !ok {
			continue
		}
		out = append(out, NormalizeItem(obj))
	}
	return out
}

// lookup returns the first non-empty value among keys.
func lookup(raw map[string]any, keys []string) any {
	for _, k := range keys {
		v, ok := raw[k]
		if !ok || isEmpty(v) {
			continue
		}
		return v
	}
	return nil
}

func lookupKey(raw map[string]any, keys []string) (string, any) {
	for _, k := range keys {
		v, ok := raw[k]
		if !ok || isEmpty(v) {
			continue
		}
		return k, v
	}
	return "", nil
}

func isEmpty(v any) bool {
	if v == nil {
		return true
	}
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s) == ""
	}
	return false
}

func stringField(raw map[string]any, keys []string) string {
	s, _ := lookup(raw, keys).(string)
	return strings.TrimSpace(s)
}

// MaxQuantity is the largest quantity a single line may carry. Orders and
// carts share it so both price the same lines identically.
const MaxQuantity = 10000

// quantityOf truncates to a whole number of units; anything outside
// 1..MaxQuantity counts as zero.
func quantityOf(v any) int32 {
	q := Coerce(v).IntPart()
	if q <= 0 || q > MaxQuantity {
		return 0
	}
	return int32(q)
}

func asList(v any) ([]any, bool) {
	switch t := v.(type) {
	case []any:
		return t, true
	case []map[string]any:
		out := make([]any, len(t))
		for i := range t {
			out[i] = t[i]
		}
		return out, true
	}
	return nil, false
}
