package http

import (
	"testing"

	"fintrack/internal/core"
)

func newTestStatsCache(t *testing.T) *statsCache {
	t.Helper()
	c, err := newStatsCache()
	if err != nil {
		t.Fatalf("new stats cache: %v", err)
	}
	t.Cleanup(c.close)
	return c
}

func TestStatsCacheRoundTrip(t *testing.T) {
	c := newTestStatsCache(t)
	day := core.Today()

	gen := c.generation(1)
	if _, ok := c.get(1, gen, day); ok {
		t.Fatal("empty cache returned a hit")
	}

	want := core.Stats{Income: core.Money{Cents: 500}}
	c.set(1, gen, day, want)
	got, ok := c.get(1, gen, day)
	if !ok || got.Income.Cents != 500 {
		t.Fatalf("get = %+v ok=%v", got, ok)
	}

	// A mutation moves the owner to a fresh key.
	c.bump(1)
	if _, ok := c.get(1, c.generation(1), day); ok {
		t.Fatal("cache hit survived a mutation")
	}

	// Other owners are untouched.
	c.set(2, c.generation(2), day, want)
	if _, ok := c.get(2, c.generation(2), day); !ok {
		t.Fatal("unrelated owner lost its entry")
	}
}

func TestStatsCacheSlowReaderCannotCacheStaleAggregate(t *testing.T) {
	c := newTestStatsCache(t)
	day := core.Today()

	// A reader takes the generation, snapshots the list, and computes.
	gen := c.generation(1)
	stale := core.Stats{Expenses: core.Money{Cents: 100}}

	// A mutation lands before the reader stores its result.
	c.bump(1)
	c.set(1, gen, day, stale)

	// Readers arriving after the mutation ask for the new generation and
	// must never see the pre-mutation aggregate.
	if got, ok := c.get(1, c.generation(1), day); ok {
		t.Fatalf("post-mutation read hit stale entry %+v", got)
	}
}
