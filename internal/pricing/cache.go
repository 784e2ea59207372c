package pricing

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/hseol/chapter-translator/pkg/log"
)

// DefaultTTL bounds how long a fetched catalog is considered fresh.
const DefaultTTL = 24 * time.Hour

// Fetcher retrieves the remote price catalog.
type Fetcher interface {
	Fetch(ctx context.Context) (Table, error)
}

// Store persists price tables across restarts. Sources are kept
// separate so manual overrides survive catalog refreshes.
type Store interface {
	LoadPriceTable(ctx context.Context, source string) (Table, time.Time, error)
	SavePriceTable(ctx context.Context, source string, table Table) error
}

const (
	sourceRemote = "remote"
	sourceManual = "manual"
)

// Cache is a read-through price-table cache.
//
// Staleness policy: a table fetched within TTL is served from memory;
// past TTL a refetch is attempted (collapsed through singleflight); if
// the refetch fails, the last persisted table of any age is served with
// a warning; only when no table exists anywhere does Get fail.
type Cache struct {
	fetcher Fetcher
	store   Store
	ttl     time.Duration

	sf singleflight.Group

	mu        sync.RWMutex
	remote    Table
	manual    Table
	fetchedAt time.Time
}

func NewCache(fetcher Fetcher, store Store, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	c := &Cache{
		fetcher: fetcher,
		store:   store,
		ttl:     ttl,
	}
	c.hydrate()
	return c
}

func (c *Cache) hydrate() {
	if c.store == nil {
		return
	}
	ctx := context.Background()
	if table, fetchedAt, err := c.store.LoadPriceTable(ctx, sourceRemote); err != nil {
		log.Error("Failed to load persisted price table: %v", err)
	} else if len(table) > 0 {
		c.remote = table
		c.fetchedAt = fetchedAt
	}
	if table, _, err := c.store.LoadPriceTable(ctx, sourceManual); err != nil {
		log.Error("Failed to load manual price overrides: %v", err)
	} else if len(table) > 0 {
		c.manual = table
	}
}

// Get returns the merged price table (remote catalog overlaid by manual
// overrides), refreshing the catalog when stale.
func (c *Cache) Get(ctx context.Context) (Table, error) {
	c.mu.RLock()
	remote, manual, fetchedAt := c.remote, c.manual, c.fetchedAt
	c.mu.RUnlock()

	if len(remote) > 0 && time.Since(fetchedAt) < c.ttl {
		return remote.Merge(manual), nil
	}

	refreshed, err, _ := c.sf.Do("refresh", func() (any, error) {
		return c.refresh(ctx)
	})
	if err == nil {
		c.mu.RLock()
		manual = c.manual
		c.mu.RUnlock()
		return refreshed.(Table).Merge(manual), nil
	}

	// Remote unavailable: fall back to whatever we had, however old.
	if len(remote) > 0 || len(manual) > 0 {
		log.Warn("Price catalog refresh failed, serving stale table: %v", err)
		return remote.Merge(manual), nil
	}
	return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
}

// Refresh force-fetches the remote catalog, ignoring TTL.
func (c *Cache) Refresh(ctx context.Context) error {
	_, err, _ := c.sf.Do("refresh", func() (any, error) {
		return c.refresh(ctx)
	})
	return err
}

func (c *Cache) refresh(ctx context.Context) (Table, error) {
	if c.fetcher == nil {
		return nil, fmt.Errorf("no catalog fetcher configured")
	}
	table, err := c.fetcher.Fetch(ctx)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.remote = table
	c.fetchedAt = time.Now()
	c.mu.Unlock()

	if c.store != nil {
		if err := c.store.SavePriceTable(ctx, sourceRemote, table); err != nil {
			log.Error("Failed to persist price table: %v", err)
		}
	}
	log.Info("Refreshed price catalog: %d models", len(table))
	return table, nil
}

// SetOverrides merges user-supplied entries into the manual layer and
// persists them. Overrides shadow catalog entries for the same model.
func (c *Cache) SetOverrides(ctx context.Context, overrides Table) error {
	c.mu.Lock()
	c.manual = c.manual.Merge(overrides)
	merged := c.manual
	c.mu.Unlock()

	if c.store == nil {
		return nil
	}
	return c.store.SavePriceTable(ctx, sourceManual, merged)
}

// Overrides returns a copy of the manual layer.
func (c *Cache) Overrides() Table {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.manual.Clone()
}
