package index

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/spaolacci/murmur3"

	"github.com/bundlebase/bundlebase/pkg/types"
)

// DefaultCacheCapacity is the LRU's default entry count (spec.md §4.6).
const DefaultCacheCapacity = 100

// cacheKey formats the "{index_path}#{column}#{hash(predicate)}" key
// spec.md §4.6 specifies, hashing the predicate with murmur3 so distinct
// predicate shapes (exact/in/range, and their operand values) land in
// distinct buckets without building a full canonical string form.
func cacheKey(indexPath, column string, p types.IndexPredicate) string {
	h := murmur3.New64()
	fmt.Fprintf(h, "%d", p.Kind)
	switch p.Kind {
	case types.PredicateExact:
		fmt.Fprintf(h, "|%s", p.Exact.String())
	case types.PredicateIn:
		for _, v := range p.Values {
			fmt.Fprintf(h, "|%s", v.String())
		}
	case types.PredicateRange:
		if p.Min != nil {
			fmt.Fprintf(h, "|min:%s:%v", p.Min.String(), p.MinInclusive)
		}
		if p.Max != nil {
			fmt.Fprintf(h, "|max:%s:%v", p.Max.String(), p.MaxInclusive)
		}
	}
	return fmt.Sprintf("%s#%s#%x", indexPath, column, h.Sum64())
}

// CacheEntry is a cached lookup result bound to the covered-block version
// set it was computed against.
type CacheEntry struct {
	RowIDs  []types.RowId
	Covered []types.VersionedBlockId
}

// stale reports whether entry was computed against a block-version set
// that no longer matches covered — a version-binding miss (spec.md §4.6).
func (e CacheEntry) stale(covered []types.VersionedBlockId) bool {
	if len(e.Covered) != len(covered) {
		return true
	}
	for i, v := range covered {
		if !e.Covered[i].Equal(v) {
			return true
		}
	}
	return false
}

// Cache is the decoded-lookup LRU C7 consults before recomputing a
// lookup against a loaded File. A Miss (absent or version-stale) is not
// an error — callers fall back to Lookup and then Put the result.
type Cache struct {
	lru *lru.Cache[string, CacheEntry]
}

func NewCache(capacity int) (*Cache, error) {
	if capacity <= 0 {
		capacity = DefaultCacheCapacity
	}
	l, err := lru.New[string, CacheEntry](capacity)
	if err != nil {
		return nil, err
	}
	return &Cache{lru: l}, nil
}

// Get returns the cached row-ids for (indexPath, column, predicate) if
// present and still version-bound to covered; otherwise a Miss.
func (c *Cache) Get(indexPath, column string, p types.IndexPredicate, covered []types.VersionedBlockId) ([]types.RowId, bool) {
	entry, ok := c.lru.Get(cacheKey(indexPath, column, p))
	if !ok || entry.stale(covered) {
		return nil, false
	}
	return entry.RowIDs, true
}

func (c *Cache) Put(indexPath, column string, p types.IndexPredicate, covered []types.VersionedBlockId, rowIDs []types.RowId) {
	c.lru.Add(cacheKey(indexPath, column, p), CacheEntry{RowIDs: rowIDs, Covered: covered})
}

func (c *Cache) Len() int { return c.lru.Len() }

func (c *Cache) Purge() { c.lru.Purge() }
