// Package cart holds a customer's in-progress order. Its subtotal uses the
// same arithmetic as server-side order pricing so the two always agree.
package cart

import (
	"errors"
	"fmt"
	"time"

	"github.com/hidangan/delivery-api/internal/pricing"
	"github.com/shopspring/decimal"
)

var (
	ErrItemNotFound = errors.New("cart item not found")
	ErrInvalidItem  = errors.New("invalid cart item")
)

type Cart struct {
	OwnerID   string             `json:"owner_id"`
	Items     []pricing.LineItem `json:"items"`
	UpdatedAt time.Time          `json:"updated_at"`
}

// View is the response shape of a cart.
type View struct {
	Items     []pricing.LineItem `json:"items"`
	ItemCount int32              `json:"item_count"`
	Subtotal  decimal.Decimal    `json:"subtotal"`
	UpdatedAt time.Time          `json:"updated_at"`
}

// Add appends item, or bumps the quantity of an identical line already in
// the cart. A line never holds more than pricing.MaxQuantity; an add that
// would exceed it leaves the cart unchanged.
func (c *Cart) Add(item pricing.LineItem) error {
	if err := checkQuantity(int64(item.Quantity)); err != nil {
		return err
	}
	for i := range c.Items {
		if sameLine(c.Items[i], item) {
			merged := int64(c.Items[i].Quantity) + int64(item.Quantity)
			if err := checkQuantity(merged); err != nil {
				return err
			}
			c.Items[i].Quantity = int32(merged)
			return nil
		}
	}
	c.Items = append(c.Items, item)
	return nil
}

// SetQuantity replaces the quantity at index. A quantity of zero or less
// removes the line.
func (c *Cart) SetQuantity(index int, qty int32) error {
	if index < 0 || index >= len(c.Items) {
		return ErrItemNotFound
	}
	if qty <= 0 {
		return c.Remove(index)
	}
	if err := checkQuantity(int64(qty)); err != nil {
		return err
	}
	c.Items[index].Quantity = qty
	return nil
}

func (c *Cart) Remove(index int) error {
	if index < 0 || index >= len(c.Items) {
		return ErrItemNotFound
	}
	c.Items = append(c.Items[:index], c.Items[index+1:]...)
	return nil
}

func (c *Cart) Clear() { c.Items = nil }

func (c *Cart) Subtotal() decimal.Decimal {
	return pricing.SubtotalOf(c.Items)
}

func (c *Cart) ItemCount() int32 {
	var n int32
	for _, it := range c.Items {
		if it.Quantity > 0 {
			n += it.Quantity
		}
	}
	return n
}

func (c *Cart) View() View {
	items := c.Items
	if items == nil {
		items = []pricing.LineItem{}
	}
	return View{
		Items:     items,
		ItemCount: c.ItemCount(),
		Subtotal:  c.Subtotal(),
		UpdatedAt: c.UpdatedAt,
	}
}

func (c *Cart) clone() *Cart {
	out := *c
	out.Items = make([]pricing.LineItem, len(c.Items))
	for i, it := range c.Items {
		it.Addons = append([]pricing.Addon(nil), it.Addons...)
		out.Items[i] = it
	}
	return &out
}

func checkQuantity(n int64) error {
	if n < 1 || n > pricing.MaxQuantity {
		return fmt.Errorf("%w: quantity must be between 1 and %d", ErrInvalidItem, pricing.MaxQuantity)
	}
	return nil
}

func sameLine(a, b pricing.LineItem) bool {
	if a.MenuItemID == "" || a.MenuItemID != b.MenuItemID {
		return false
	}
	if a.Name != b.Name || a.Notes != b.Notes ||
		!a.UnitPrice.Equal(b.UnitPrice) ||
		!a.CustomizationSurcharge.Equal(b.CustomizationSurcharge) ||
		len(a.Addons) != len(b.Addons) {
		return false
	}
	for i := range a.Addons {
		if a.Addons[i].Name != b.Addons[i].Name || !a.Addons[i].Price.Equal(b.Addons[i].Price) {
			return false
		}
	}
	return true
}
