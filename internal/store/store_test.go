package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agrikonek/internal/domain"
)

func TestMemoryKV_TTL(t *testing.T) {
	ctx := context.Background()
	kv := NewMemoryKV()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	kv.SetClock(func() time.Time { return now })

	require.NoError(t, kv.Set(ctx, "a", "1", time.Minute))
	v, err := kv.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "1", v)

	ok, err := kv.SetNX(ctx, "a", "2", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	now = now.Add(time.Minute)
	_, err = kv.Get(ctx, "a")
	assert.ErrorIs(t, err, ErrMiss)

	ok, err = kv.SetNX(ctx, "a", "2", 0)
	require.NoError(t, err)
	assert.True(t, ok)

	keys, err := kv.ScanKeys(ctx, "a*")
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, keys)

	require.NoError(t, kv.Delete(ctx, "a"))
	_, err = kv.Get(ctx, "a")
	assert.ErrorIs(t, err, ErrMiss)
}

func TestIdempotency_Lifecycle(t *testing.T) {
	ctx := context.Background()
	idem := NewIdempotency(NewMemoryKV(), time.Hour)

	replay, err := idem.Begin(ctx, "u-1:POST:/api/v1/budgets/expenses", "k1")
	require.NoError(t, err)
	assert.Nil(t, replay, "first caller owns the request")

	_, err = idem.Begin(ctx, "u-1:POST:/api/v1/budgets/expenses", "k1")
	assert.ErrorIs(t, err, domain.ErrDuplicateRequest)

	// other scopes do not collide
	replay, err = idem.Begin(ctx, "u-2:POST:/api/v1/budgets/expenses", "k1")
	require.NoError(t, err)
	assert.Nil(t, replay)

	require.NoError(t, idem.Complete(ctx, "u-1:POST:/api/v1/budgets/expenses", "k1", 200, []byte(`{"code":2000}`)))
	replay, err = idem.Begin(ctx, "u-1:POST:/api/v1/budgets/expenses", "k1")
	require.NoError(t, err)
	require.NotNil(t, replay)
	assert.Equal(t, 200, replay.Status)
	assert.JSONEq(t, `{"code":2000}`, string(replay.Body))

	require.NoError(t, idem.Abort(ctx, "u-2:POST:/api/v1/budgets/expenses", "k1"))
	replay, err = idem.Begin(ctx, "u-2:POST:/api/v1/budgets/expenses", "k1")
	require.NoError(t, err)
	assert.Nil(t, replay, "aborted key can be claimed again")
}

func TestIdempotency_ConcurrentClaims(t *testing.T) {
	ctx := context.Background()
	idem := NewIdempotency(NewMemoryKV(), time.Hour)

	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		owned int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			replay, err := idem.Begin(ctx, "scope", "same")
			if err == nil && replay == nil {
				mu.Lock()
				owned++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, owned)
}
