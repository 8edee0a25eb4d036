// Package orderstatus defines the order lifecycle and the transitions allowed
// between its states.
package orderstatus

import (
	"errors"
	"fmt"
	"slices"
)

// Status is an order lifecycle state.
type Status string

const (
	PendingPayment Status = "pending_payment"
	Pending        Status = "pending"
	Confirmed      Status = "confirmed"
	Preparing      Status = "preparing"
	Ready          Status = "ready"
	OutForDelivery Status = "out_for_delivery"
	Delivered      Status = "delivered"
	Cancelled      Status = "cancelled"
	Rejected       Status = "rejected"
)

// Initial is the status of an order created by the ordering app.
const Initial = Pending

var (
	ErrUnknownStatus     = errors.New("unknown order status")
	ErrInvalidTransition = errors.New("invalid status transition")
)

// TransitionError reports a rejected from → to move.
type TransitionError struct {
	From Status
	To   Status
}

func (e *TransitionError) Error() string {
	if IsTerminal(e.From) {
		return fmt.Sprintf("cannot transition from %s: order is closed", e.From)
	}
	return fmt.Sprintf("cannot transition from %s to %s", e.From, e.To)
}

func (e *TransitionError) Unwrap() error { return ErrInvalidTransition }

var rank = map[Status]int{
	PendingPayment: 0,
	Pending:        1,
	Confirmed:      2,
	Preparing:      3,
	Ready:          4,
	OutForDelivery: 5,
	Delivered:      6,
	Cancelled:      7,
	Rejected:       8,
}

// allowedTransitions defines valid status transitions.
// Key is current status, value is the set of statuses it can transition to.
var allowedTransitions = map[Status][]Status{
	PendingPayment: {Pending, Cancelled},
	Pending:        {Confirmed, Rejected, Cancelled},
	Confirmed:      {Preparing, Cancelled},
	Preparing:      {Ready, Cancelled},
	Ready:          {OutForDelivery, Delivered, Cancelled},
	OutForDelivery: {Delivered, Cancelled},
}

// All lists every status in pipeline order.
func All() []Status {
	return []Status{PendingPayment, Pending, Confirmed, Preparing, Ready, OutForDelivery, Delivered, Cancelled, Rejected}
}

// Parse validates s as a Status.
func Parse(s string) (Status, error) {
	st := Status(s)
	if _, ok := rank[st]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownStatus, s)
	}
	return st, nil
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	_, ok := rank[s]
	return ok
}

func (s Status) String() string { return string(s) }

// Rank orders statuses for dashboard sorting. Unknown statuses sort last.
func Rank(s Status) int {
	if r, ok := rank[s]; ok {
		return r
	}
	return 99
}

// Less reports whether a is displayed before b.
func Less(a, b Status) bool { return Rank(a) < Rank(b) }

// Sort orders statuses by Rank, keeping the relative order of equal ranks.
func Sort(statuses []Status) {
	slices.SortStableFunc(statuses, func(a, b Status) int {
		return Rank(a) - Rank(b)
	})
}

// IsTerminal reports whether no further transition is possible.
func IsTerminal(s Status) bool {
	switch s {
	case Delivered, Cancelled, Rejected:
		return true
	}
	return false
}

// InProgress reports whether an order is still moving through the pipeline.
// These orders are excluded from completed/failed reporting.
func InProgress(s Status) bool {
	switch s {
	case Pending, Confirmed, Preparing, Ready, OutForDelivery:
		return true
	}
	return false
}

// RestaurantActionable reports whether a restaurant operator can still act
// on the order.
func RestaurantActionable(s Status) bool {
	switch s {
	case Pending, Confirmed, Preparing, Ready:
		return true
	}
	return false
}

// CourierSettable reports whether a courier may move an order into s.
func CourierSettable(s Status) bool {
	return s == OutForDelivery || s == Delivered
}

// Next returns the statuses reachable from s.
func Next(s Status) []Status {
	return slices.Clone(allowedTransitions[s])
}

// CanTransition reports whether from → to is allowed.
func CanTransition(from, to Status) bool {
	return slices.Contains(allowedTransitions[from], to)
}

// Validate returns a *TransitionError when from → to is not allowed, and
// ErrUnknownStatus when either side is not a known status.
func Validate(from, to Status) error {
	if !from.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownStatus, from)
	}
	if !to.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownStatus, to)
	}
	if !CanTransition(from, to) {
		return &TransitionError{From: from, To: to}
	}
	return nil
}
