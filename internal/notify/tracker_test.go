package notify

import (
	"context"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/hidangan/delivery-api/internal/orderstatus"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisStore(t *testing.T) *RedisStore {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisStore(client, 0)
}

func stores(t *testing.T) map[string]StateStore {
	return map[string]StateStore{
		"memory": NewMemoryStore(),
		"redis":  newRedisStore(t),
	}
}

func TestObserveFiresOncePerOrder(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			tr := NewTracker(store)
			rid, oid := uuid.New(), uuid.New()

			fire, err := tr.Observe(ctx, rid, oid, orderstatus.Pending)
			require.NoError(t, err)
			assert.True(t, fire)

			fire, err = tr.Observe(ctx, rid, oid, orderstatus.Pending)
			require.NoError(t, err)
			assert.False(t, fire)

			out, err := tr.Outstanding(ctx, rid)
			require.NoError(t, err)
			assert.Equal(t, oid, out)
		})
	}
}

func TestObserveIgnoresNonPending(t *testing.T) {
	tr := NewTracker(NewMemoryStore())
	for _, s := range []orderstatus.Status{orderstatus.PendingPayment, orderstatus.Confirmed, orderstatus.Delivered} {
		fire, err := tr.Observe(context.Background(), uuid.New(), uuid.New(), s)
		require.NoError(t, err)
		assert.False(t, fire, s)
	}
}

func TestObserveSuppressedWhileUnacknowledged(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			tr := NewTracker(store)
			rid := uuid.New()
			first, second, third := uuid.New(), uuid.New(), uuid.New()

			fire, _ := tr.Observe(ctx, rid, first, orderstatus.Pending)
			require.True(t, fire)
			fire, _ = tr.Observe(ctx, rid, second, orderstatus.Pending)
			assert.False(t, fire)
			fire, _ = tr.Observe(ctx, rid, third, orderstatus.Pending)
			assert.False(t, fire)

			next, err := tr.Acknowledge(ctx, rid, first)
			require.NoError(t, err)
			assert.Equal(t, second, next)

			next, err = tr.Acknowledge(ctx, rid, second)
			require.NoError(t, err)
			assert.Equal(t, third, next)

			next, err = tr.Acknowledge(ctx, rid, third)
			require.NoError(t, err)
			assert.Equal(t, uuid.Nil, next)

			fire, _ = tr.Observe(ctx, rid, uuid.New(), orderstatus.Pending)
			assert.True(t, fire)
		})
	}
}

func TestAcknowledgeDeferredOrderDropsIt(t *testing.T) {
	ctx := context.Background()
	tr := NewTracker(NewMemoryStore())
	rid := uuid.New()
	first, second := uuid.New(), uuid.New()

	tr.Observe(ctx, rid, first, orderstatus.Pending)
	tr.Observe(ctx, rid, second, orderstatus.Pending)

	next, err := tr.Acknowledge(ctx, rid, second)
	require.NoError(t, err)
	assert.Equal(t, uuid.Nil, next)

	next, err = tr.Acknowledge(ctx, rid, first)
	require.NoError(t, err)
	assert.Equal(t, uuid.Nil, next)
}

func TestRestaurantsAreIndependent(t *testing.T) {
	ctx := context.Background()
	tr := NewTracker(NewMemoryStore())

	fire, _ := tr.Observe(ctx, uuid.New(), uuid.New(), orderstatus.Pending)
	assert.True(t, fire)
	fire, _ = tr.Observe(ctx, uuid.New(), uuid.New(), orderstatus.Pending)
	assert.True(t, fire)
}

func TestSeenHistoryIsBounded(t *testing.T) {
	st := &State{}
	for i := 0; i < seenLimit+10; i++ {
		st.markSeen(uuid.NewString())
	}
	assert.Len(t, st.Seen, seenLimit)
	assert.Equal(t, st.Seen[len(st.Seen)-1], st.LastSeen)
}

func TestConcurrentObserveFiresExactlyOnce(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			tr := NewTracker(store)
			rid, oid := uuid.New(), uuid.New()

			var (
				wg    sync.WaitGroup
				mu    sync.Mutex
				fired int
			)
			for i := 0; i < 8; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					fire, err := tr.Observe(ctx, rid, oid, orderstatus.Pending)
					if err != nil {
						return
					}
					if fire {
						mu.Lock()
						fired++
						mu.Unlock()
					}
				}()
			}
			wg.Wait()
			assert.Equal(t, 1, fired)
		})
	}
}
