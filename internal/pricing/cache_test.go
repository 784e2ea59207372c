package pricing

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeFetcher struct {
	mu    sync.Mutex
	table Table
	err   error
	calls int
}

func (f *fakeFetcher) Fetch(ctx context.Context) (Table, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.table.Clone(), nil
}

type memStore struct {
	mu     sync.Mutex
	tables map[string]Table
	saved  map[string]time.Time
}

func newMemStore() *memStore {
	return &memStore{tables: make(map[string]Table), saved: make(map[string]time.Time)}
}

func (s *memStore) LoadPriceTable(ctx context.Context, source string) (Table, time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tables[source].Clone(), s.saved[source], nil
}

func (s *memStore) SavePriceTable(ctx context.Context, source string, table Table) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tables[source] = table.Clone()
	s.saved[source] = time.Now()
	return nil
}

func TestCache_FetchesOnceWithinTTL(t *testing.T) {
	fetcher := &fakeFetcher{table: Table{"m": {InputPerThousand: 0.01}}}
	cache := NewCache(fetcher, nil, time.Hour)

	for range 3 {
		table, err := cache.Get(context.Background())
		require.NoError(t, err)
		assert.Contains(t, table, "m")
	}
	assert.Equal(t, 1, fetcher.calls)
}

func TestCache_ServesStaleOnFetchFailure(t *testing.T) {
	fetcher := &fakeFetcher{table: Table{"m": {InputPerThousand: 0.01}}}
	cache := NewCache(fetcher, nil, time.Nanosecond)

	_, err := cache.Get(context.Background())
	require.NoError(t, err)

	fetcher.mu.Lock()
	fetcher.err = fmt.Errorf("catalog down")
	fetcher.mu.Unlock()
	time.Sleep(time.Millisecond)

	table, err := cache.Get(context.Background())
	require.NoError(t, err)
	assert.Contains(t, table, "m")
}

func TestCache_FailsWhenNothingAnywhere(t *testing.T) {
	fetcher := &fakeFetcher{err: fmt.Errorf("catalog down")}
	cache := NewCache(fetcher, nil, time.Hour)

	_, err := cache.Get(context.Background())
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestCache_HydratesFromStore(t *testing.T) {
	store := newMemStore()
	require.NoError(t, store.SavePriceTable(context.Background(), sourceRemote, Table{"m": {InputPerThousand: 0.02}}))

	fetcher := &fakeFetcher{err: fmt.Errorf("catalog down")}
	cache := NewCache(fetcher, store, time.Hour)

	table, err := cache.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0.02, table["m"].InputPerThousand)
}

func TestCache_ManualOverridesShadowCatalogAndSurviveRefresh(t *testing.T) {
	store := newMemStore()
	fetcher := &fakeFetcher{table: Table{"m": {InputPerThousand: 0.01}}}
	cache := NewCache(fetcher, store, time.Hour)

	require.NoError(t, cache.SetOverrides(context.Background(), Table{"m": {InputPerThousand: 0.05}}))
	require.NoError(t, cache.Refresh(context.Background()))

	table, err := cache.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0.05, table["m"].InputPerThousand)

	// Overrides were persisted under their own source.
	saved, _, err := store.LoadPriceTable(context.Background(), sourceManual)
	require.NoError(t, err)
	assert.Equal(t, 0.05, saved["m"].InputPerThousand)
}
