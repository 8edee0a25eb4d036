// Package notify deduplicates new-order alerts for restaurant operators.
//
// A restaurant has at most one outstanding alert. Further pending orders
// that arrive while it is unacknowledged are queued and surfaced one by one
// as the operator acknowledges.
package notify

import (
	"context"

	"github.com/google/uuid"
	"github.com/hidangan/delivery-api/internal/orderstatus"
)

type Tracker struct {
	store StateStore
}

func NewTracker(store StateStore) *Tracker {
	return &Tracker{store: store}
}

// Observe records a newly seen order and reports whether an alert should
// fire now. Only pending orders alert, each order id at most once.
func (t *Tracker) Observe(ctx context.Context, restaurantID, orderID uuid.UUID, status orderstatus.Status) (bool, error) {
	if status != orderstatus.Pending || restaurantID == uuid.Nil || orderID == uuid.Nil {
		return false, nil
	}

	id := orderID.String()
	var fire bool
	err := t.store.Update(ctx, restaurantID.String(), func(st *State) error {
		fire = false
		if st.seen(id) {
			return nil
		}
		st.markSeen(id)
		if st.Outstanding != "" && st.Outstanding != id {
			st.Deferred = append(st.Deferred, id)
			return nil
		}
		st.Outstanding = id
		fire = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return fire, nil
}

// Acknowledge clears the alert for orderID. When it was the outstanding
// alert, the next deferred order (if any) becomes outstanding and is
// returned so the caller can announce it. Otherwise uuid.Nil is returned.
func (t *Tracker) Acknowledge(ctx context.Context, restaurantID, orderID uuid.UUID) (uuid.UUID, error) {
	id := orderID.String()
	next := uuid.Nil
	err := t.store.Update(ctx, restaurantID.String(), func(st *State) error {
		next = uuid.Nil
		if st.Outstanding != id {
			st.dropDeferred(id)
			return nil
		}
		st.Outstanding = ""
		for len(st.Deferred) > 0 {
			head := st.Deferred[0]
			st.Deferred = st.Deferred[1:]
			parsed, err := uuid.Parse(head)
			if err != nil {
				continue
			}
			st.Outstanding = head
			next = parsed
			break
		}
		return nil
	})
	if err != nil {
		return uuid.Nil, err
	}
	return next, nil
}

// Outstanding returns the order currently alerting for the restaurant.
func (t *Tracker) Outstanding(ctx context.Context, restaurantID uuid.UUID) (uuid.UUID, error) {
	st, err := t.store.Get(ctx, restaurantID.String())
	if err != nil {
		return uuid.Nil, err
	}
	if st.Outstanding == "" {
		return uuid.Nil, nil
	}
	return uuid.Parse(st.Outstanding)
}
