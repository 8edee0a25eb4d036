package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// seenLimit bounds the per-restaurant history of alerted order ids.
const seenLimit = 256

// State is the alert bookkeeping for one restaurant.
type State struct {
	LastSeen    string   `json:"last_seen,omitempty"`
	Outstanding string   `json:"outstanding,omitempty"`
	Deferred    []string `json:"deferred,omitempty"`
	Seen        []string `json:"seen,omitempty"`
}

func (s *State) seen(id string) bool {
	for _, v := range s.Seen {
		if v == id {
			return true
		}
	}
	return false
}

func (s *State) markSeen(id string) {
	s.Seen = append(s.Seen, id)
	if len(s.Seen) > seenLimit {
		s.Seen = append([]string(nil), s.Seen[len(s.Seen)-seenLimit:]...)
	}
	s.LastSeen = id
}

func (s *State) dropDeferred(id string) {
	out := s.Deferred[:0]
	for _, v := range s.Deferred {
		if v != id {
			out = append(out, v)
		}
	}
	s.Deferred = out
}

// StateStore persists State per restaurant. Update must apply fn atomically
// with respect to other Update calls for the same restaurant.
type StateStore interface {
	Get(ctx context.Context, restaurantID string) (State, error)
	Update(ctx context.Context, restaurantID string, fn func(*State) error) error
}

// MemoryStore keeps state in process. Used when no Redis is configured.
type MemoryStore struct {
	mu     sync.Mutex
	states map[string]State
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{states: make(map[string]State)}
}

func (m *MemoryStore) Get(_ context.Context, restaurantID string) (State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return cloneState(m.states[restaurantID]), nil
}

func (m *MemoryStore) Update(_ context.Context, restaurantID string, fn func(*State) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	st := cloneState(m.states[restaurantID])
	if err := fn(&st); err != nil {
		return err
	}
	m.states[restaurantID] = st
	return nil
}

func cloneState(s State) State {
	s.Deferred = append([]string(nil), s.Deferred...)
	s.Seen = append([]string(nil), s.Seen...)
	return s
}

// ErrContention is returned when a Redis update keeps losing the optimistic
// WATCH race.
var ErrContention = errors.New("notify: alert state contention")

const maxUpdateAttempts = 5

// RedisStore keeps state as JSON under alerts:<restaurantID> so that every
// API replica shares one view of outstanding alerts.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// NewRedisStore returns a store backed by client. A zero ttl keeps keys
// forever.
func NewRedisStore(client redis.UniversalClient, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, prefix: "alerts", ttl: ttl}
}

func (r *RedisStore) key(restaurantID string) string {
	return fmt.Sprintf("%s:%s", r.prefix, restaurantID)
}

func (r *RedisStore) Get(ctx context.Context, restaurantID string) (State, error) {
	return readState(ctx, r.client, r.key(restaurantID))
}

func (r *RedisStore) Update(ctx context.Context, restaurantID string, fn func(*State) error) error {
	key := r.key(restaurantID)

	txf := func(tx *redis.Tx) error {
		st, err := readState(ctx, tx, key)
		if err != nil {
			return err
		}
		if err := fn(&st); err != nil {
			return err
		}
		data, err := json.Marshal(st)
		if err != nil {
			return fmt.Errorf("encode alert state: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.Set(ctx, key, data, r.ttl)
			return nil
		})
		return err
	}

	for i := 0; i < maxUpdateAttempts; i++ {
		err := r.client.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}
	return ErrContention
}

func readState(ctx context.Context, c redis.Cmdable, key string) (State, error) {
	var st State
	data, err := c.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return st, nil
	}
	if err != nil {
		return st, fmt.Errorf("read alert state: %w", err)
	}
	if err := json.Unmarshal(data, &st); err != nil {
		return st, fmt.Errorf("decode alert state: %w", err)
	}
	return st, nil
}
