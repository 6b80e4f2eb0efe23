package gtfs

import (
	"strings"
	"sync"
	"sync/atomic"
)

// IndexCache memoizes one FeedIndex per bundle path. Concurrent first-time
// callers for the same path may each run a build; LoadOrStore keeps exactly
// one result and everyone gets that instance. A build is never published
// half-done and cached indices live for the process lifetime.
type IndexCache struct {
	entries sync.Map // lowercased path -> *FeedIndex

	builds atomic.Int64
	hits   atomic.Int64
}

// NewIndexCache creates an empty cache.
func NewIndexCache() *IndexCache { return &IndexCache{} }

// GetOrLoad returns the cached index for zipPath, building it on first use.
// The returned index is shared, not copied.
func (c *IndexCache) GetOrLoad(zipPath string) (*FeedIndex, error) {
	k := strings.ToLower(zipPath)
	if v, ok := c.entries.Load(k); ok {
		c.hits.Add(1)
		return v.(*FeedIndex), nil
	}

	// Deliberately not locked across the build: duplicate builds are cheaper
	// than serializing every caller behind one slow parse.
	idx, err := BuildIndexFromZip(zipPath)
	if err != nil {
		return nil, err
	}
	c.builds.Add(1)
	actual, _ := c.entries.LoadOrStore(k, idx)
	return actual.(*FeedIndex), nil
}

// CacheStats are cumulative counters since process start.
type CacheStats struct {
	Builds int64
	Hits   int64
}

// Stats reports build and hit counts, for metrics scraping.
func (c *IndexCache) Stats() CacheStats {
	return CacheStats{Builds: c.builds.Load(), Hits: c.hits.Load()}
}
