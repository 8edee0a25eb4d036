// Package events carries order lifecycle notifications to subscribers.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Event is one order lifecycle notification. Payload is the JSON body sent
// to subscribers unchanged.
type Event struct {
	Type         string          `json:"type"`
	RestaurantID uuid.UUID       `json:"restaurant_id"`
	OrderID      uuid.UUID       `json:"order_id"`
	Payload      json.RawMessage `json:"payload,omitempty"`
	OccurredAt   time.Time       `json:"occurred_at"`
}

// New builds an event, encoding payload as JSON.
func New(eventType string, restaurantID, orderID uuid.UUID, payload any) (Event, error) {
	ev := Event{
		Type:         eventType,
		RestaurantID: restaurantID,
		OrderID:      orderID,
		OccurredAt:   time.Now().UTC(),
	}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return Event{}, err
		}
		ev.Payload = data
	}
	return ev, nil
}

// Publisher delivers events. Implementations must be safe for concurrent use.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

// Nop discards events.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }

// Multi fans an event out to every publisher and joins their errors.
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, ev Event) error {
	var errs []error
	for _, p := range m {
		if p == nil {
			continue
		}
		if err := p.Publish(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
