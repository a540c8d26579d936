package idempotency

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/yDkay/payment-system/pkg/errors"
)

func newTestManager(t *testing.T) (*Manager, *MemoryStore) {
	t.Helper()
	store := NewMemoryStore()
	manager, err := NewManager(store, time.Hour)
	require.NoError(t, err)
	return manager, store
}

func okRecord(body string) func(context.Context) (*Record, error) {
	return func(context.Context) (*Record, error) {
		return &Record{
			Status:      http.StatusCreated,
			ContentType: "application/json",
			Body:        []byte(body),
		}, nil
	}
}

func TestManagerExecutesOnceAndReplaysVerbatim(t *testing.T) {
	manager, _ := newTestManager(t)
	ctx := context.Background()
	fingerprint := Fingerprint([]byte(`{"amount":2599}`))

	calls := 0
	fn := func(ctx context.Context) (*Record, error) {
		calls++
		return okRecord(`{"id":"pi_1"}`)(ctx)
	}

	first, replayed, err := manager.Execute(ctx, "key-1", fingerprint, fn)
	require.NoError(t, err)
	assert.False(t, replayed)
	assert.Equal(t, http.StatusCreated, first.Status)

	second, replayed, err := manager.Execute(ctx, "key-1", fingerprint, fn)
	require.NoError(t, err)
	assert.True(t, replayed)
	assert.Equal(t, first.Status, second.Status)
	assert.Equal(t, first.Body, second.Body)
	assert.Equal(t, 1, calls)
}

func TestManagerRejectsReusedKeyWithDifferentBody(t *testing.T) {
	manager, _ := newTestManager(t)
	ctx := context.Background()

	_, _, err := manager.Execute(ctx, "key-1", Fingerprint([]byte(`{"amount":2599}`)), okRecord(`{"id":"pi_1"}`))
	require.NoError(t, err)

	_, _, err = manager.Execute(ctx, "key-1", Fingerprint([]byte(`{"amount":100}`)), okRecord(`{"id":"pi_2"}`))
	require.Error(t, err)
	appErr := pkgerrors.As(err)
	require.NotNil(t, appErr)
	assert.Equal(t, pkgerrors.CodeIdempotencyKeyReused, appErr.Code())
	assert.Equal(t, "idempotency_key", appErr.Param())
}

func TestManagerDoesNotCacheFailedOperations(t *testing.T) {
	manager, _ := newTestManager(t)
	ctx := context.Background()
	fingerprint := Fingerprint([]byte(`{}`))

	calls := 0
	_, _, err := manager.Execute(ctx, "key-1", fingerprint, func(context.Context) (*Record, error) {
		calls++
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "boom")
	})
	require.Error(t, err)

	_, replayed, err := manager.Execute(ctx, "key-1", fingerprint, func(ctx context.Context) (*Record, error) {
		calls++
		return okRecord(`{"id":"pi_1"}`)(ctx)
	})
	require.NoError(t, err)
	assert.False(t, replayed)
	assert.Equal(t, 2, calls)
}

func TestManagerDoesNotCacheServerFaults(t *testing.T) {
	manager, store := newTestManager(t)
	ctx := context.Background()
	fingerprint := Fingerprint([]byte(`{}`))

	_, _, err := manager.Execute(ctx, "key-1", fingerprint, func(context.Context) (*Record, error) {
		return &Record{Status: http.StatusInternalServerError, Body: []byte(`{}`)}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 0, store.Len())
}

func TestManagerConcurrentFreshKeyRunsOperationOnce(t *testing.T) {
	manager, _ := newTestManager(t)
	ctx := context.Background()
	fingerprint := Fingerprint([]byte(`{"amount":2599}`))

	var mu sync.Mutex
	calls := 0
	fn := func(ctx context.Context) (*Record, error) {
		mu.Lock()
		calls++
		mu.Unlock()
		time.Sleep(10 * time.Millisecond)
		return okRecord(`{"id":"pi_1"}`)(ctx)
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := manager.Execute(ctx, "key-1", fingerprint, fn)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, calls)
}

func TestMemoryStoreExpiryAndSweep(t *testing.T) {
	store := NewMemoryStore()
	now := time.Now()
	store.now = func() time.Time { return now }
	ctx := context.Background()

	stored, err := store.PutNX(ctx, "key-1", &Record{Status: 200, Body: []byte(`{}`)}, time.Minute)
	require.NoError(t, err)
	assert.True(t, stored)

	now = now.Add(2 * time.Minute)

	record, err := store.Get(ctx, "key-1")
	require.NoError(t, err)
	assert.Nil(t, record)

	// An expired entry no longer blocks a fresh write.
	stored, err = store.PutNX(ctx, "key-1", &Record{Status: 200, Body: []byte(`{}`)}, time.Minute)
	require.NoError(t, err)
	assert.True(t, stored)

	now = now.Add(2 * time.Minute)
	purged, err := store.SweepExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, purged)
	assert.Equal(t, 0, store.Len())
}
