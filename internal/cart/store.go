package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store persists carts. Load returns (nil, nil) when the owner has none.
type Store interface {
	Load(ctx context.Context, ownerID string) (*Cart, error)
	Save(ctx context.Context, c *Cart) error
	Delete(ctx context.Context, ownerID string) error
}

type MemoryStore struct {
	mu    sync.Mutex
	carts map[string]*Cart
	saves int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{carts: make(map[string]*Cart)}
}

func (m *MemoryStore) Load(_ context.Context, ownerID string) (*Cart, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.carts[ownerID]
	if !ok {
		return nil, nil
	}
	return c.clone(), nil
}

func (m *MemoryStore) Save(_ context.Context, c *Cart) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.carts[c.OwnerID] = c.clone()
	m.saves++
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, ownerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.carts, ownerID)
	return nil
}

// Saves returns the number of Save calls so far.
func (m *MemoryStore) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}

// RedisStore keeps each cart as JSON under cart:<owner>, refreshed to ttl on
// every save.
type RedisStore struct {
	client redis.UniversalClient
	ttl    time.Duration
}

func NewRedisStore(client redis.UniversalClient, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

func (r *RedisStore) key(ownerID string) string {
	return "cart:" + ownerID
}

func (r *RedisStore) Load(ctx context.Context, ownerID string) (*Cart, error) {
	data, err := r.client.Get(ctx, r.key(ownerID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load cart: %w", err)
	}
	var c Cart
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("decode cart: %w", err)
	}
	return &c, nil
}

func (r *RedisStore) Save(ctx context.Context, c *Cart) error {
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode cart: %w", err)
	}
	if err := r.client.Set(ctx, r.key(c.OwnerID), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("save cart: %w", err)
	}
	return nil
}

func (r *RedisStore) Delete(ctx context.Context, ownerID string) error {
	if err := r.client.Del(ctx, r.key(ownerID)).Err(); err != nil {
		return fmt.Errorf("delete cart: %w", err)
	}
	return nil
}
