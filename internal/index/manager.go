package index

import (
	"context"

	"github.com/google/uuid"

	"github.com/bundlebase/bundlebase/internal/bberrors"
	"github.com/bundlebase/bundlebase/internal/block"
	"github.com/bundlebase/bundlebase/internal/storage"
	"github.com/bundlebase/bundlebase/pkg/types"
)

// Manager owns the decode cache and mediates every build/load against a
// bundle root's Store, so C8 never touches storage or the wire format
// directly.
type Manager struct {
	store storage.Store
	cache *Cache
}

func NewManager(store storage.Store, cacheCapacity int) (*Manager, error) {
	c, err := NewCache(cacheCapacity)
	if err != nil {
		return nil, err
	}
	return &Manager{store: store, cache: c}, nil
}

// BuildAndStore scans covered, encodes the result, and writes it to a
// freshly allocated "idx_{index_id}_{uuid}.idx" path, returning the
// path and the CoveredBlock entries the caller should fold into the
// IndexDefinition.
func (m *Manager) BuildAndStore(ctx context.Context, indexID types.ObjectId, column string, covered []*block.Block) (string, []types.CoveredBlock, error) {
	f, err := Build(ctx, column, covered)
	if err != nil {
		return "", nil, err
	}
	encoded, err := f.Encode()
	if err != nil {
		return "", nil, bberrors.Wrap(bberrors.IO, "index.BuildAndStore", "encoding index file", err)
	}
	path := types.IndexFilePath(indexID, uuid.NewString())
	if err := m.store.Put(ctx, path, encoded); err != nil {
		return "", nil, bberrors.Wrap(bberrors.IO, "index.BuildAndStore", "writing index file", err)
	}
	cb := make([]types.CoveredBlock, 0, len(covered))
	for _, b := range covered {
		cb = append(cb, types.CoveredBlock{Block: b.VersionedID(), Path: path})
	}
	return path, cb, nil
}

// BuildAndStoreAt is BuildAndStore with the path chosen by the caller
// rather than freshly allocated, so a manifest-recorded IndexBlocks
// operation rebuilds to the exact same storage location on replay.
func (m *Manager) BuildAndStoreAt(ctx context.Context, path, column string, covered []*block.Block) ([]types.CoveredBlock, error) {
	f, err := Build(ctx, column, covered)
	if err != nil {
		return nil, err
	}
	encoded, err := f.Encode()
	if err != nil {
		return nil, bberrors.Wrap(bberrors.IO, "index.BuildAndStoreAt", "encoding index file", err)
	}
	if err := m.store.Put(ctx, path, encoded); err != nil {
		return nil, bberrors.Wrap(bberrors.IO, "index.BuildAndStoreAt", "writing index file", err)
	}
	cb := make([]types.CoveredBlock, 0, len(covered))
	for _, b := range covered {
		cb = append(cb, types.CoveredBlock{Block: b.VersionedID(), Path: path})
	}
	return cb, nil
}

// Lookup resolves predicate against the index at path, version-bound to
// covered, consulting the cache first. It returns no error value: a nil
// row set with OutcomeMiss (file unreadable) or OutcomeError (file fails
// to load, or the lookup fails) means "fall back to full scan" — per
// spec.md §4.6, index problems never fail a query.
func (m *Manager) Lookup(ctx context.Context, path, column string, predicate types.IndexPredicate, covered []types.VersionedBlockId) ([]types.RowId, Outcome) {
	if rows, ok := m.cache.Get(path, column, predicate, covered); ok {
		return rows, OutcomeHit
	}
	data, err := m.store.Get(ctx, path)
	if err != nil {
		return nil, OutcomeMiss
	}
	f, err := Load(data, covered)
	if err != nil {
		return nil, OutcomeError
	}
	rows, err := f.Lookup(predicate)
	if err != nil {
		return nil, OutcomeError
	}
	m.cache.Put(path, column, predicate, covered, rows)
	return rows, OutcomeHit
}

// Selectivity loads and estimates selectivity for predicate without
// consulting or populating the row-id cache — C8 calls this once per
// candidate before committing to a Lookup. It also reports the index
// file's on-disk size, already in hand from the same Get, so C8 can
// populate Candidate.FileSize for the "smaller index file" tie-break
// without a second fetch.
func (m *Manager) Selectivity(ctx context.Context, path string, predicate types.IndexPredicate, covered []types.VersionedBlockId) (float64, int64, Outcome) {
	data, err := m.store.Get(ctx, path)
	if err != nil {
		return 0, 0, OutcomeMiss
	}
	f, err := Load(data, covered)
	if err != nil {
		return 0, 0, OutcomeError
	}
	return f.Selectivity(predicate), int64(len(data)), OutcomeHit
}

// Delete removes the index files at paths from the backing Store. A
// missing path is not an error, matching Store.Delete's own contract, so
// dropping an index whose build was never completed still succeeds.
func (m *Manager) Delete(ctx context.Context, paths []string) error {
	for _, p := range paths {
		if err := m.store.Delete(ctx, p); err != nil {
			return bberrors.Wrap(bberrors.IO, "index.Delete", "deleting index file", err).
				WithDetails(map[string]string{"path": p})
		}
	}
	return nil
}

// Outcome classifies a lookup/selectivity attempt for the observability
// events C8 emits (spec.md §4.8).
type Outcome int

const (
	OutcomeHit Outcome = iota
	OutcomeMiss
	OutcomeFallback
	OutcomeError
)

func (o Outcome) String() string {
	switch o {
	case OutcomeHit:
		return "Hit"
	case OutcomeMiss:
		return "Miss"
	case OutcomeFallback:
		return "Fallback"
	case OutcomeError:
		return "Error"
	default:
		return "Unknown"
	}
}
