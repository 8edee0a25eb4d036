package cart

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hidangan/delivery-api/internal/pricing"
	"go.uber.org/zap"
)

// Service keeps live carts in memory and writes them through to a Store,
// debounced so a burst of edits costs one write.
type Service struct {
	store    Store
	debounce *Debouncer
	logger   *zap.Logger
	now      func() time.Time

	mu    sync.Mutex
	carts map[string]*Cart
	// revs counts mutations per live cart. A cart leaves memory once the
	// revision it was saved at is still current.
	revs map[string]uint64
}

func NewService(store Store, saveDelay time.Duration, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:    store,
		debounce: NewDebouncer(saveDelay),
		logger:   logger,
		now:      time.Now,
		carts:    make(map[string]*Cart),
		revs:     make(map[string]uint64),
	}
}

// Get reads a cart without keeping it in memory; only carts with unsaved
// edits live there.
func (s *Service) Get(ctx context.Context, ownerID string) (View, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c, ok := s.carts[ownerID]; ok {
		return c.View(), nil
	}
	c, err := s.store.Load(ctx, ownerID)
	if err != nil {
		return View{}, err
	}
	if c == nil {
		c = &Cart{OwnerID: ownerID}
	}
	return c.View(), nil
}

// AddItem validates and normalizes a raw client item before adding it.
func (s *Service) AddItem(ctx context.Context, ownerID string, raw map[string]any) (View, error) {
	if err := pricing.ValidateItems([]any{raw}); err != nil {
		return View{}, fmt.Errorf("%w: %v", ErrInvalidItem, err)
	}
	item := pricing.NormalizeItem(raw)
	if item.Quantity <= 0 {
		return View{}, fmt.Errorf("%w: quantity must be positive", ErrInvalidItem)
	}
	return s.mutate(ctx, ownerID, func(c *Cart) error {
		return c.Add(item)
	})
}

func (s *Service) SetQuantity(ctx context.Context, ownerID string, index int, qty int32) (View, error) {
	return s.mutate(ctx, ownerID, func(c *Cart) error {
		return c.SetQuantity(index, qty)
	})
}

func (s *Service) RemoveItem(ctx context.Context, ownerID string, index int) (View, error) {
	return s.mutate(ctx, ownerID, func(c *Cart) error {
		return c.Remove(index)
	})
}

// Clear empties the cart and deletes it from the store immediately.
func (s *Service) Clear(ctx context.Context, ownerID string) error {
	s.mu.Lock()
	delete(s.carts, ownerID)
	delete(s.revs, ownerID)
	s.mu.Unlock()

	s.debounce.Cancel(ownerID)
	return s.store.Delete(ctx, ownerID)
}

// Flush writes every cart with a pending save. Call on shutdown.
func (s *Service) Flush() {
	s.debounce.Flush()
}

func (s *Service) mutate(ctx context.Context, ownerID string, fn func(*Cart) error) (View, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, live := s.carts[ownerID]
	c, err := s.load(ctx, ownerID)
	if err != nil {
		return View{}, err
	}
	if err := fn(c); err != nil {
		if !live {
			delete(s.carts, ownerID)
		}
		return View{}, err
	}
	c.UpdatedAt = s.now().UTC()
	s.revs[ownerID]++
	s.debounce.Trigger(ownerID, func() { s.save(ownerID) })
	return c.View(), nil
}

// load must be called with s.mu held.
func (s *Service) load(ctx context.Context, ownerID string) (*Cart, error) {
	if c, ok := s.carts[ownerID]; ok {
		return c, nil
	}
	c, err := s.store.Load(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if c == nil {
		c = &Cart{OwnerID: ownerID}
	}
	s.carts[ownerID] = c
	return c, nil
}

// save writes the cart through and drops it from memory unless it was
// edited while the write was in flight. A failed write keeps it live.
func (s *Service) save(ownerID string) {
	s.mu.Lock()
	c, ok := s.carts[ownerID]
	rev := s.revs[ownerID]
	if ok {
		c = c.clone()
	}
	s.mu.Unlock()
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.store.Save(ctx, c); err != nil {
		s.logger.Error("failed to persist cart", zap.String("owner_id", ownerID), zap.Error(err))
		return
	}

	s.mu.Lock()
	if s.revs[ownerID] == rev {
		delete(s.carts, ownerID)
		delete(s.revs, ownerID)
	}
	s.mu.Unlock()
}

// Live reports how many carts are held in memory.
func (s *Service) Live() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.carts)
}
