package correlation

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/biyshop/payments-backend/internal/models"
)

func intent(handle, orderID string, expiresAt time.Time) models.PaymentIntent {
	return models.PaymentIntent{
		CheckoutRequestID: handle,
		MerchantRequestID: "m-" + handle,
		OrderID:           orderID,
		Amount:            500,
		Phone:             "254712345678",
		Status:            models.IntentAwaitingCallback,
		CreatedAt:         time.Now(),
		ExpiresAt:         expiresAt,
	}
}

func TestInsertConflicts(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	exp := time.Now().Add(time.Minute)

	require.NoError(t, s.Insert(ctx, intent("h1", "o1", exp)))

	assert.ErrorIs(t, s.Insert(ctx, intent("h1", "o2", exp)), ErrConflict)
	assert.ErrorIs(t, s.Insert(ctx, intent("h2", "o1", exp)), ErrDuplicateOrder)

	// the failed inserts must not have left anything behind
	got, err := s.FindByOrder(ctx, "o2")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestLookupAndRemoveSingleConsumer(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.Insert(ctx, intent("h1", "o1", time.Now().Add(time.Minute))))

	var won atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := s.LookupAndRemove(ctx, "h1")
			assert.NoError(t, err)
			if got != nil {
				won.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(1), won.Load(), "exactly one caller may observe the intent")

	// the order index must be cleared too
	got, err := s.FindByOrder(ctx, "o1")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestLookupAndRemoveUnknownHandle(t *testing.T) {
	s := NewMemoryStore()
	got, err := s.LookupAndRemove(context.Background(), "never-issued")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestExpireOlderThan(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	now := time.Now()

	require.NoError(t, s.Insert(ctx, intent("old1", "o1", now.Add(-time.Minute))))
	require.NoError(t, s.Insert(ctx, intent("old2", "o2", now.Add(-time.Second))))
	require.NoError(t, s.Insert(ctx, intent("live", "o3", now.Add(time.Minute))))

	expired, err := s.ExpireOlderThan(ctx, now)
	require.NoError(t, err)
	assert.Len(t, expired, 2)

	// repeated sweeps are no-ops for already-popped intents
	expired, err = s.ExpireOlderThan(ctx, now)
	require.NoError(t, err)
	assert.Empty(t, expired)

	// the live intent is untouched
	got, err := s.LookupAndRemove(ctx, "live")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "o3", got.OrderID)
}

func TestExpiredIntentNotResurrected(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	now := time.Now()

	require.NoError(t, s.Insert(ctx, intent("h1", "o1", now.Add(-time.Second))))

	expired, err := s.ExpireOlderThan(ctx, now)
	require.NoError(t, err)
	require.Len(t, expired, 1)

	// a late callback for the swept handle finds nothing
	got, err := s.LookupAndRemove(ctx, "h1")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestFindByOrder(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.Insert(ctx, intent("h1", "o1", time.Now().Add(time.Minute))))

	got, err := s.FindByOrder(ctx, "o1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "h1", got.CheckoutRequestID)
}

func TestFindByOrderIgnoresExpired(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.Insert(ctx, intent("h1", "o1", time.Now().Add(-time.Second))))

	// past its TTL but not yet swept: not a live intent
	got, err := s.FindByOrder(ctx, "o1")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestInsertReplacesExpiredIntent(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.Insert(ctx, intent("h1", "o1", time.Now().Add(-time.Second))))

	// a retry for the order must not be blocked by the stale leftover
	require.NoError(t, s.Insert(ctx, intent("h2", "o1", time.Now().Add(time.Minute))))

	got, err := s.FindByOrder(ctx, "o1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "h2", got.CheckoutRequestID)

	// the evicted handle is gone; a late callback for it is a no-op
	old, err := s.LookupAndRemove(ctx, "h1")
	require.NoError(t, err)
	assert.Nil(t, old)
}
