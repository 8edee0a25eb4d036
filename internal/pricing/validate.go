package pricing

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Errors wrapped by ItemError and AmountError.
var (
	ErrNotAnObject      = errors.New("must be an object")
	ErrNotAList         = errors.New("must be a list")
	ErrNegativeAmount   = errors.New("must not be negative")
	ErrInvalidQuantity  = errors.New("must be a whole number")
	ErrQuantityTooLarge = fmt.Errorf("must not exceed %d", MaxQuantity)
)

// ItemError locates a rejected field inside an item list.
type ItemError struct {
	Index int
	Field string
	Err   error
}

func (e *ItemError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("itens[%d]: %v", e.Index, e.Err)
	}
	return fmt.Sprintf("itens[%d].%s: %v", e.Index, e.Field, e.Err)
}

func (e *ItemError) Unwrap() error { return e.Err }

// AmountError names a rejected top-level money field.
type AmountError struct {
	Field string
	Err   error
}

func (e *AmountError) Error() string { return fmt.Sprintf("%s: %v", e.Field, e.Err) }

func (e *AmountError) Unwrap() error { return e.Err }

// ValidateItems is the strict counterpart of CalculateSubtotal. Quantity and
// unit price must be present, numeric and non-negative; add-on prices and the
// customization surcharge may be absent but, when present, must be valid.
func ValidateItems(items []any) error {
	for i, el := range items {
		obj, ok := el.(map[string]any)
		if !ok {
			return &ItemError{Index: i, Err: ErrNotAnObject}
		}

		key, v := lookupKey(obj, quantityKeys)
		if key == "" {
			key = quantityKeys[0]
		}
		q, err := ParseAmount(v)
		if err != nil {
			return &ItemError{Index: i, Field: key, Err: err}
		}
		if q.IsNegative() {
			return &ItemError{Index: i, Field: key, Err: ErrNegativeAmount}
		}
		if !q.Equal(q.Truncate(0)) {
			return &ItemError{Index: i, Field: key, Err: ErrInvalidQuantity}
		}
		if q.GreaterThan(decimal.NewFromInt(MaxQuantity)) {
			return &ItemError{Index: i, Field: key, Err: ErrQuantityTooLarge}
		}

		key, v = lookupKey(obj, unitPriceKeys)
		if key == "" {
			key = unitPriceKeys[0]
		}
		if err := checkAmount(v, true); err != nil {
			return &ItemError{Index: i, Field: key, Err: err}
		}

		if key, v = lookupKey(obj, surchargeKeys); key != "" {
			if err := checkAmount(v, false); err != nil {
				return &ItemError{Index: i, Field: key, Err: err}
			}
		}

		key, v = lookupKey(obj, addonListKeys)
		if key == "" {
			continue
		}
		addons, ok := asList(v)
		if !ok {
			return &ItemError{Index: i, Field: key, Err: ErrNotAList}
		}
		for j, a := range addons {
			field := fmt.Sprintf("%s[%d]", key, j)
			aobj, ok := a.(map[string]any)
			if !ok {
				return &ItemError{Index: i, Field: field, Err: ErrNotAnObject}
			}
			if pkey, pv := lookupKey(aobj, addonPriceKeys); pkey != "" {
				if err := checkAmount(pv, false); err != nil {
					return &ItemError{Index: i, Field: field + "." + pkey, Err: err}
				}
			}
		}
	}
	return nil
}

// ValidateAmount checks an optional top-level money field such as a fee or
// discount. Absent values are accepted.
func ValidateAmount(field string, v any) error {
	if isEmpty(v) {
		return nil
	}
	if err := checkAmount(v, false); err != nil {
		return &AmountError{Field: field, Err: err}
	}
	return nil
}

func checkAmount(v any, required bool) error {
	d, err := ParseAmount(v)
	if err != nil {
		if errors.Is(err, ErrMissingAmount) && !required {
			return nil
		}
		return err
	}
	if d.IsNegative() {
		return ErrNegativeAmount
	}
	return nil
}
