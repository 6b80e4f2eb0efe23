package gtfs

import (
	"path/filepath"
	"strings"
	"sync"
)

// MultiIndexCache resolves a set of bundle paths to their indices and assigns
// each a short feed id for disambiguation in merged results.
type MultiIndexCache struct {
	single  *IndexCache
	feedIDs sync.Map // lowercased path -> feed id
}

// NewMultiIndexCache wraps a single-bundle cache.
func NewMultiIndexCache(single *IndexCache) *MultiIndexCache {
	return &MultiIndexCache{single: single}
}

// GetOrLoadMany loads every requested bundle and returns feed id -> index.
// One malformed bundle fails the whole call; already-cached bundles are
// untouched.
func (m *MultiIndexCache) GetOrLoadMany(zipPaths []string) (map[string]*FeedIndex, error) {
	out := make(map[string]*FeedIndex, len(zipPaths))
	for _, p := range zipPaths {
		idx, err := m.single.GetOrLoad(p)
		if err != nil {
			return nil, err
		}
		out[m.FeedID(p)] = idx
	}
	return out, nil
}

// FeedID derives the stable feed id for a bundle path: its base name without
// the extension, e.g. "GTFS_KRK_T" for ".../GTFS_KRK_T.zip".
func (m *MultiIndexCache) FeedID(zipPath string) string {
	k := strings.ToLower(zipPath)
	if v, ok := m.feedIDs.Load(k); ok {
		return v.(string)
	}
	base := filepath.Base(zipPath)
	id := strings.TrimSuffix(base, filepath.Ext(base))
	if id == "" {
		id = zipPath
	}
	actual, _ := m.feedIDs.LoadOrStore(k, id)
	return actual.(string)
}
