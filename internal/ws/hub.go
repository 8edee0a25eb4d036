package ws

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"github.com/hidangan/delivery-api/internal/access"
	"github.com/hidangan/delivery-api/internal/events"
	"go.uber.org/zap"
)

// Event is the frame sent to dashboard clients.
type Event struct {
	Type    string          `json:"type"`
	OrderID uuid.UUID       `json:"order_id,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type roomEvent struct {
	RestaurantID uuid.UUID
	Event        Event
}

// AckFunc handles an alert acknowledgement sent over a socket.
type AckFunc func(ctx context.Context, actor access.Actor, orderID uuid.UUID) error

// Hub fans order events out to the dashboards subscribed to a restaurant.
type Hub struct {
	// Registered clients by restaurant ID
	rooms map[uuid.UUID]map[*Client]bool

	register   chan *Client
	unregister chan *Client
	broadcast  chan *roomEvent
	done       chan struct{}

	mu     sync.RWMutex
	onAck  AckFunc
	logger *zap.Logger
}

func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		rooms:      make(map[uuid.UUID]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *roomEvent, 256),
		done:       make(chan struct{}),
		logger:     logger,
	}
}

// OnAck sets the handler for order.ack messages. Must be called before Run.
func (h *Hub) OnAck(fn AckFunc) {
	h.onAck = fn
}

// Run processes registrations and broadcasts until ctx is cancelled, then
// closes every client.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for rid, clients := range h.rooms {
				for client := range clients {
					close(client.send)
				}
				delete(h.rooms, rid)
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			if h.rooms[client.restaurantID] == nil {
				h.rooms[client.restaurantID] = make(map[*Client]bool)
			}
			h.rooms[client.restaurantID][client] = true
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			h.remove(client)
			h.mu.Unlock()

		case ev := <-h.broadcast:
			message, err := json.Marshal(ev.Event)
			if err != nil {
				h.logger.Error("failed to encode ws event", zap.String("type", ev.Event.Type), zap.Error(err))
				continue
			}

			h.mu.Lock()
			for client := range h.rooms[ev.RestaurantID] {
				select {
				case client.send <- message:
				default:
					// Slow consumer; drop it rather than stall the room.
					h.remove(client)
				}
			}
			h.mu.Unlock()
		}
	}
}

// remove must be called with h.mu held.
func (h *Hub) remove(client *Client) {
	clients, ok := h.rooms[client.restaurantID]
	if !ok {
		return
	}
	if _, exists := clients[client]; !exists {
		return
	}
	delete(clients, client)
	close(client.send)
	if len(clients) == 0 {
		delete(h.rooms, client.restaurantID)
	}
}

// BroadcastToRestaurant queues event for every client in the restaurant's
// room. It drops the event once the hub has stopped.
func (h *Hub) BroadcastToRestaurant(restaurantID uuid.UUID, event Event) {
	select {
	case h.broadcast <- &roomEvent{RestaurantID: restaurantID, Event: event}:
	case <-h.done:
	}
}

// Publish implements events.Publisher.
func (h *Hub) Publish(_ context.Context, ev events.Event) error {
	h.BroadcastToRestaurant(ev.RestaurantID, Event{
		Type:    ev.Type,
		OrderID: ev.OrderID,
		Payload: ev.Payload,
	})
	return nil
}

// Subscribers returns the number of clients connected for a restaurant.
func (h *Hub) Subscribers(restaurantID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[restaurantID])
}
