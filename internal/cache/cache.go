// Package cache is a read-through, per-table row cache in front of the
// store adapter. The change pipeline invalidates a table the moment it
// writes to it, so dashboard reads served from here never show pre-change
// data after a mutation commits.
package cache

import (
	"context"
	"sync"
	"time"

	"github.com/fundwise/steward/internal/models"
	"github.com/fundwise/steward/internal/sheets"
)

type entry struct {
	rows      []models.Row
	fetchedAt time.Time
}

// TableCache caches full-table reads with a TTL. Writes do not go through
// the cache; mutation paths call Invalidate via the pipeline's notifier.
type TableCache struct {
	client sheets.ClientInterface
	ttl    time.Duration

	mu      sync.RWMutex
	entries map[models.Table]entry

	// hit/miss counters, exposed for the status endpoint
	hits   int64
	misses int64
}

// New creates a table cache in front of client. A ttl of zero disables
// expiry, entries then live until invalidated.
func New(client sheets.ClientInterface, ttl time.Duration) *TableCache {
	return &TableCache{
		client:  client,
		ttl:     ttl,
		entries: make(map[models.Table]entry),
	}
}

// GetRows returns the cached rows for table, fetching on a miss or after
// the entry's TTL has lapsed.
func (c *TableCache) GetRows(ctx context.Context, table models.Table) ([]models.Row, error) {
	c.mu.RLock()
	e, ok := c.entries[table]
	c.mu.RUnlock()

	if ok && !c.expired(e) {
		c.mu.Lock()
		c.hits++
		c.mu.Unlock()
		return cloneRows(e.rows), nil
	}

	rows, err := c.client.GetRows(ctx, table)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.misses++
	c.entries[table] = entry{rows: cloneRows(rows), fetchedAt: time.Now()}
	c.mu.Unlock()

	return rows, nil
}

// Invalidate drops the cached entry for table. The all pseudo-table drops
// everything.
func (c *TableCache) Invalidate(table models.Table) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if table == models.TableAll {
		clear(c.entries)
		return
	}
	delete(c.entries, table)
}

// Stats reports cache hit/miss counts and the tables currently held.
func (c *TableCache) Stats() (hits, misses int64, cached []models.Table) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for t := range c.entries {
		cached = append(cached, t)
	}
	return c.hits, c.misses, cached
}

func (c *TableCache) expired(e entry) bool {
	return c.ttl > 0 && time.Since(e.fetchedAt) > c.ttl
}

func cloneRows(rows []models.Row) []models.Row {
	out := make([]models.Row, len(rows))
	for i, r := range rows {
		out[i] = r.Clone()
	}
	return out
}
