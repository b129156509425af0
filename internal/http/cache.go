package http

import (
	"fmt"
	"sync"

	"github.com/dgraph-io/ristretto/v2"

	"fintrack/internal/core"
)

// statsCache memoizes computed statistics per owner. Entries are keyed
// by a per-owner mutation generation: every mutation bumps the owner's
// generation, so an aggregate computed from a pre-mutation snapshot is
// cached under a key no later read will ever ask for. Plain eviction
// cannot give that guarantee, a slow read could re-cache its stale
// result after the eviction.
type statsCache struct {
	cache *ristretto.Cache[string, core.Stats]

	mu   sync.Mutex
	gens map[int64]uint64
}

func newStatsCache() (*statsCache, error) {
	cache, err := ristretto.NewCache(&ristretto.Config[string, core.Stats]{
		NumCounters: 10_000,
		MaxCost:     1_000,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("initialize stats cache: %w", err)
	}
	return &statsCache{cache: cache, gens: make(map[int64]uint64)}, nil
}

// generation returns the owner's current mutation generation. Readers
// take it before snapshotting the list so their cache entry is tied to
// the state they actually aggregated.
func (c *statsCache) generation(ownerID int64) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gens[ownerID]
}

// bump invalidates the owner's cached stats by moving to a fresh key.
func (c *statsCache) bump(ownerID int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gens[ownerID]++
}

func statsKey(ownerID int64, gen uint64, day core.Date) string {
	// The day keeps cached windows rolling over at midnight.
	return fmt.Sprintf("stats:%d:%d:%s", ownerID, gen, day.Key())
}

func (c *statsCache) get(ownerID int64, gen uint64, day core.Date) (core.Stats, bool) {
	return c.cache.Get(statsKey(ownerID, gen, day))
}

func (c *statsCache) set(ownerID int64, gen uint64, day core.Date, stats core.Stats) {
	c.cache.Set(statsKey(ownerID, gen, day), stats, 1)
	c.cache.Wait()
}

func (c *statsCache) close() {
	c.cache.Close()
}
