package types

import (
	"fmt"
	"sort"
)

// VersionedBlockId pairs a block's stable identity with a version token
// that changes whenever the block's logical data changes. Equal
// (BlockId, Version) pairs denote identical data — this is the unit
// column indexes bind to (spec.md §3, §4.6 "version binding").
type VersionedBlockId struct {
	BlockID ObjectId `yaml:"blockId" json:"blockId"`
	Version string   `yaml:"version" json:"version"`
}

// String renders "{block_id}-{version}", matching the row-id layout
// filename convention in spec.md §6.
func (v VersionedBlockId) String() string {
	return fmt.Sprintf("%s-%s", v.BlockID, v.Version)
}

// Equal reports whether two VersionedBlockIds address the same data.
func (v VersionedBlockId) Equal(other VersionedBlockId) bool {
	return v.BlockID == other.BlockID && v.Version == other.Version
}

// RowId uniquely addresses one logical row within one block version:
// (block_id, offset). Ordering is lexicographic by (block_id, offset)
// wherever a sorted row-id sequence is required (spec.md §3).
type RowId struct {
	BlockID ObjectId
	Offset  uint64
}

// Less implements the RowId ordering spec.md §3 requires for sorted
// row-id sequences: lexicographic by (block_id, offset).
func (r RowId) Less(other RowId) bool {
	if r.BlockID != other.BlockID {
		return r.BlockID < other.BlockID
	}
	return r.Offset < other.Offset
}

// SortRowIds sorts ids in place by the RowId ordering.
func SortRowIds(ids []RowId) {
	sort.Slice(ids, func(i, j int) bool { return ids[i].Less(ids[j]) })
}
