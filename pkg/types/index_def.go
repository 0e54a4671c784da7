package types

import "fmt"

// CoveredBlock names one (block, version) an index covers and the
// storage-relative path of the build that covers it.
type CoveredBlock struct {
	Block VersionedBlockId
	Path  string
}

// IndexDefinition is the logical record of a column index: the source
// of truth for which blocks it covers, independent of the physical
// ColumnIndex bytes on disk (spec.md §3 "IndexDefinition").
type IndexDefinition struct {
	ID            ObjectId
	Column        string
	IndexedBlocks []CoveredBlock
}

// Covers reports whether v is one of the blocks this definition has
// already indexed.
func (d IndexDefinition) Covers(v VersionedBlockId) bool {
	for _, c := range d.IndexedBlocks {
		if c.Block.Equal(v) {
			return true
		}
	}
	return false
}

// PathFor returns the storage path recorded for v, if indexed.
func (d IndexDefinition) PathFor(v VersionedBlockId) (string, bool) {
	for _, c := range d.IndexedBlocks {
		if c.Block.Equal(v) {
			return c.Path, true
		}
	}
	return "", false
}

// WithCovered returns a copy of d with cb appended, replacing any
// existing entry for the same block.
func (d IndexDefinition) WithCovered(cb CoveredBlock) IndexDefinition {
	next := IndexDefinition{ID: d.ID, Column: d.Column}
	next.IndexedBlocks = make([]CoveredBlock, 0, len(d.IndexedBlocks)+1)
	replaced := false
	for _, c := range d.IndexedBlocks {
		if c.Block.Equal(cb.Block) {
			next.IndexedBlocks = append(next.IndexedBlocks, cb)
			replaced = true
			continue
		}
		next.IndexedBlocks = append(next.IndexedBlocks, c)
	}
	if !replaced {
		next.IndexedBlocks = append(next.IndexedBlocks, cb)
	}
	return next
}

// IndexFilePath renders the "{root}/idx_{index_id}_{uuid}.idx" naming
// convention from spec.md §6.
func IndexFilePath(indexID ObjectId, buildUUID string) string {
	return fmt.Sprintf("idx_%s_%s.idx", indexID, buildUUID)
}

// RowIDLayoutPath renders the "{block_id}-{version}.rowid.idx" naming
// convention from spec.md §6.
func RowIDLayoutPath(v VersionedBlockId) string {
	return fmt.Sprintf("%s-%s.rowid.idx", v.BlockID, v.Version)
}
