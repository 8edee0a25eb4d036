// Package access scopes order reads and writes to the authenticated actor.
package access

import (
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/hidangan/delivery-api/internal/enum"
)

// ErrForbidden is returned when an actor has no scope that could match any
// order. Callers must deny rather than fall back to an unfiltered query.
var ErrForbidden = errors.New("forbidden")

// Actor is the authenticated principal behind a request.
type Actor struct {
	UserID       uuid.UUID
	Role         string
	RestaurantID uuid.UUID
	Email        string
}

// IsAdmin reports whether the actor bypasses scoping.
func (a Actor) IsAdmin() bool { return a.Role == enum.UserRoleAdmin }

// Filter narrows order queries. Zero-valued fields do not constrain. A
// Filter produced by BuildFilter without error always has All set or exactly
// one scoping field set.
type Filter struct {
	All           bool
	RestaurantID  uuid.UUID
	CourierID     uuid.UUID
	CustomerEmail string
}

// OrderRef carries the ownership fields of an order.
type OrderRef struct {
	RestaurantID  uuid.UUID
	CourierID     uuid.UUID
	CustomerEmail string
}

// BuildFilter derives the query scope for an actor. Rules, in order:
// admins see everything; restaurants see their restaurant's orders;
// couriers see orders assigned to them; customers see orders placed with
// their email. Missing identity or an unknown role yields ErrForbidden.
func BuildFilter(a Actor) (Filter, error) {
	switch a.Role {
	case enum.UserRoleAdmin:
		return Filter{All: true}, nil
	case enum.UserRoleRestaurant:
		if a.RestaurantID == uuid.Nil {
			return Filter{}, ErrForbidden
		}
		return Filter{RestaurantID: a.RestaurantID}, nil
	case enum.UserRoleCourier:
		if a.UserID == uuid.Nil {
			return Filter{}, ErrForbidden
		}
		return Filter{CourierID: a.UserID}, nil
	case enum.UserRoleCustomer, enum.UserRoleUser:
		email := NormalizeEmail(a.Email)
		if email == "" {
			return Filter{}, ErrForbidden
		}
		return Filter{CustomerEmail: email}, nil
	}
	return Filter{}, ErrForbidden
}

// Matches reports whether o falls inside the filter.
func (f Filter) Matches(o OrderRef) bool {
	if f.All {
		return true
	}
	if f.RestaurantID != uuid.Nil && o.RestaurantID != f.RestaurantID {
		return false
	}
	if f.CourierID != uuid.Nil && o.CourierID != f.CourierID {
		return false
	}
	if f.CustomerEmail != "" && NormalizeEmail(o.CustomerEmail) != f.CustomerEmail {
		return false
	}
	return f.RestaurantID != uuid.Nil || f.CourierID != uuid.Nil || f.CustomerEmail != ""
}

// CanViewOrder is the single-order form of BuildFilter.
func CanViewOrder(a Actor, o OrderRef) bool {
	f, err := BuildFilter(a)
	if err != nil {
		return false
	}
	return f.Matches(o)
}

// NormalizeEmail lower-cases and trims an address for comparison.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
