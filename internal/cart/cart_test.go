package cart

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/hidangan/delivery-api/internal/pricing"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func burger() pricing.LineItem {
	return pricing.LineItem{
		MenuItemID: "burger",
		Name:       "Burger",
		Quantity:   1,
		UnitPrice:  dec("10.00"),
		Addons:     []pricing.Addon{{Name: "Cheese", Price: dec("1.50")}},
	}
}

func TestAddMergesIdenticalLines(t *testing.T) {
	var c Cart
	c.Add(burger())
	c.Add(burger())

	plain := burger()
	plain.Addons = nil
	c.Add(plain)

	require.Len(t, c.Items, 2)
	assert.Equal(t, int32(2), c.Items[0].Quantity)
	assert.Equal(t, int32(3), c.ItemCount())
	assert.True(t, dec("33.00").Equal(c.Subtotal()), c.Subtotal().String())
}

func TestAddWithoutMenuItemIDNeverMerges(t *testing.T) {
	var c Cart
	item := pricing.LineItem{Quantity: 1, UnitPrice: dec("5")}
	c.Add(item)
	c.Add(item)
	assert.Len(t, c.Items, 2)
}

func TestSetQuantityAndRemove(t *testing.T) {
	var c Cart
	c.Add(burger())

	require.NoError(t, c.SetQuantity(0, 4))
	assert.Equal(t, int32(4), c.Items[0].Quantity)

	assert.ErrorIs(t, c.SetQuantity(3, 1), ErrItemNotFound)
	assert.ErrorIs(t, c.Remove(-1), ErrItemNotFound)

	require.NoError(t, c.SetQuantity(0, 0))
	assert.Empty(t, c.Items)
}

func TestQuantityIsCappedPerLine(t *testing.T) {
	big := burger()
	big.Quantity = 6000

	var c Cart
	require.NoError(t, c.Add(big))
	assert.ErrorIs(t, c.Add(big), ErrInvalidItem)
	require.Len(t, c.Items, 1)
	assert.Equal(t, int32(6000), c.Items[0].Quantity)

	rest := burger()
	rest.Quantity = pricing.MaxQuantity - 6000
	require.NoError(t, c.Add(rest))
	assert.Equal(t, int32(pricing.MaxQuantity), c.Items[0].Quantity)

	assert.ErrorIs(t, c.SetQuantity(0, pricing.MaxQuantity+1), ErrInvalidItem)
	assert.Equal(t, int32(pricing.MaxQuantity), c.Items[0].Quantity)

	raw := []any{map[string]any{
		"menuItemId": "burger", "nome": "Burger", "quantidade": pricing.MaxQuantity,
		"preco": "10.00", "adicionais": []any{map[string]any{"nome": "Cheese", "preco": "1.50"}},
	}}
	assert.True(t, pricing.CalculateSubtotal(raw).Equal(c.Subtotal()), c.Subtotal().String())
}

func TestServiceRejectsMergeAboveLimit(t *testing.T) {
	svc := NewService(NewMemoryStore(), time.Hour, zap.NewNop())
	t.Cleanup(svc.Flush)
	ctx := context.Background()
	raw := map[string]any{"menuItemId": "x", "quantity": 6000, "price": "2.00"}

	_, err := svc.AddItem(ctx, "u1", raw)
	require.NoError(t, err)
	_, err = svc.AddItem(ctx, "u1", raw)
	assert.ErrorIs(t, err, ErrInvalidItem)

	view, err := svc.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int32(6000), view.ItemCount)
	assert.True(t, dec("12000.00").Equal(view.Subtotal), view.Subtotal.String())
}

func TestCartSubtotalMatchesOrderPricing(t *testing.T) {
	raw := []any{
		map[string]any{"menuItemId": "a", "quantidade": 2, "preco": "10.00", "adicionais": []any{map[string]any{"preco": 1.5}}},
		map[string]any{"menuItemId": "b", "quantity": 1, "unitPrice": 7.25, "customizationSurcharge": "0.75"},
	}

	var c Cart
	for _, it := range pricing.NormalizeItems(raw) {
		require.NoError(t, c.Add(it))
	}
	assert.True(t, pricing.CalculateSubtotal(raw).Equal(c.Subtotal()))
	assert.True(t, dec("31.00").Equal(c.Subtotal()), c.Subtotal().String())
}

func TestDebouncerCoalesces(t *testing.T) {
	d := NewDebouncer(20 * time.Millisecond)
	var calls, last atomic.Int32

	for i := int32(1); i <= 10; i++ {
		v := i
		d.Trigger("k", func() {
			calls.Add(1)
			last.Store(v)
		})
	}

	assert.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(40 * time.Millisecond)
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, int32(10), last.Load())
}

func TestDebouncerFlushAndCancel(t *testing.T) {
	d := NewDebouncer(time.Hour)
	var calls atomic.Int32

	d.Trigger("a", func() { calls.Add(1) })
	d.Trigger("b", func() { calls.Add(1) })
	d.Trigger("c", func() { calls.Add(1) })
	d.Cancel("c")
	assert.Equal(t, 2, d.Pending())

	d.Flush()
	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, 0, d.Pending())
}

func TestServiceDebouncesWrites(t *testing.T) {
	store := NewMemoryStore()
	svc := NewService(store, time.Hour, zap.NewNop())
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := svc.AddItem(ctx, "u1", map[string]any{"menuItemId": "x", "quantity": 1, "price": "2.00"})
		require.NoError(t, err)
	}
	assert.Equal(t, 0, store.Saves())

	svc.Flush()
	assert.Equal(t, 1, store.Saves())

	saved, err := store.Load(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, saved.Items, 1)
	assert.Equal(t, int32(5), saved.Items[0].Quantity)
}

func TestServiceRejectsInvalidItems(t *testing.T) {
	svc := NewService(NewMemoryStore(), time.Hour, zap.NewNop())
	ctx := context.Background()

	_, err := svc.AddItem(ctx, "u1", map[string]any{"quantity": 1, "price": "-3"})
	assert.ErrorIs(t, err, ErrInvalidItem)

	_, err = svc.AddItem(ctx, "u1", map[string]any{"quantity": 0, "price": "3"})
	assert.ErrorIs(t, err, ErrInvalidItem)

	_, err = svc.AddItem(ctx, "u1", map[string]any{"price": "3"})
	assert.ErrorIs(t, err, ErrInvalidItem)
}

func TestServiceEvictsSavedCarts(t *testing.T) {
	store := NewMemoryStore()
	svc := NewService(store, time.Hour, zap.NewNop())
	ctx := context.Background()

	for _, owner := range []string{"u1", "u2", "u3"} {
		_, err := svc.AddItem(ctx, owner, map[string]any{"menuItemId": "x", "quantity": 1, "price": "2.00"})
		require.NoError(t, err)
	}
	assert.Equal(t, 3, svc.Live())

	svc.Flush()
	assert.Equal(t, 0, svc.Live())

	view, err := svc.Get(ctx, "u2")
	require.NoError(t, err)
	assert.Equal(t, int32(1), view.ItemCount)
	assert.Equal(t, 0, svc.Live())

	// Editing an evicted cart resumes from the stored copy.
	view, err = svc.AddItem(ctx, "u2", map[string]any{"menuItemId": "x", "quantity": 2, "price": "2.00"})
	require.NoError(t, err)
	assert.Equal(t, int32(3), view.ItemCount)

	_, err = svc.SetQuantity(ctx, "u3", 5, 1)
	assert.ErrorIs(t, err, ErrItemNotFound)
	assert.Equal(t, 1, svc.Live())
}

func TestServiceKeepsCartEditedDuringSave(t *testing.T) {
	store := &blockingStore{MemoryStore: NewMemoryStore(), entered: make(chan struct{}), release: make(chan struct{})}
	svc := NewService(store, time.Hour, zap.NewNop())
	ctx := context.Background()

	_, err := svc.AddItem(ctx, "u1", map[string]any{"menuItemId": "x", "quantity": 1, "price": "2.00"})
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		svc.Flush()
		close(done)
	}()
	<-store.entered
	_, err = svc.AddItem(ctx, "u1", map[string]any{"menuItemId": "x", "quantity": 1, "price": "2.00"})
	require.NoError(t, err)
	close(store.release)
	<-done

	assert.Equal(t, 1, svc.Live())
	view, err := svc.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int32(2), view.ItemCount)

	svc.Flush()
	assert.Equal(t, 0, svc.Live())
	saved, err := store.Load(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int32(2), saved.ItemCount())
}

// blockingStore holds the first Save until release is closed.
type blockingStore struct {
	*MemoryStore
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func (b *blockingStore) Save(ctx context.Context, c *Cart) error {
	b.once.Do(func() {
		close(b.entered)
		<-b.release
	})
	return b.MemoryStore.Save(ctx, c)
}

func TestServiceClearDropsPendingSave(t *testing.T) {
	store := NewMemoryStore()
	svc := NewService(store, time.Hour, zap.NewNop())
	ctx := context.Background()

	_, err := svc.AddItem(ctx, "u1", map[string]any{"quantity": 1, "price": "2.00"})
	require.NoError(t, err)
	require.NoError(t, svc.Clear(ctx, "u1"))
	svc.Flush()

	assert.Equal(t, 0, store.Saves())
	view, err := svc.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, view.Items)
	assert.True(t, view.Subtotal.IsZero())
}

func TestRedisStoreRoundTrip(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	store := NewRedisStore(client, time.Hour)
	ctx := context.Background()

	missing, err := store.Load(ctx, "nobody")
	require.NoError(t, err)
	assert.Nil(t, missing)

	c := &Cart{OwnerID: "u1"}
	c.Add(burger())
	require.NoError(t, store.Save(ctx, c))
	assert.Equal(t, time.Hour, mr.TTL("cart:u1"))

	loaded, err := store.Load(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, loaded.Items, 1)
	assert.True(t, c.Subtotal().Equal(loaded.Subtotal()))

	require.NoError(t, store.Delete(ctx, "u1"))
	assert.False(t, mr.Exists("cart:u1"))
}

func TestServiceLoadsPersistedCart(t *testing.T) {
	store := NewMemoryStore()
	c := &Cart{OwnerID: "u1"}
	c.Add(burger())
	require.NoError(t, store.Save(context.Background(), c))

	svc := NewService(store, time.Hour, zap.NewNop())
	view, err := svc.Get(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, int32(1), view.ItemCount)
	assert.True(t, dec("11.50").Equal(view.Subtotal))
}
