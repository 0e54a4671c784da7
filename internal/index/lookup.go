package index

import (
	"encoding/binary"
	"sort"

	"github.com/bundlebase/bundlebase/internal/bberrors"
	"github.com/bundlebase/bundlebase/pkg/types"
)

// Load decodes a previously-encoded index file. covered identifies the
// exact (block_id, version) set the index was built against — the
// version-binding check a caller must run before trusting a Load'd File
// against its current bundle state (spec.md §4.6 "version binding").
func Load(data []byte, covered []types.VersionedBlockId) (*File, error) {
	header, err := decodeHeader(data)
	if err != nil {
		return nil, err
	}
	if len(data) < headerSize {
		return nil, ErrCorrupt
	}

	f := &File{
		DType:     header.DType,
		TotalRows: header.TotalRows,
		Covered:   covered,
		fpToBlock: make(map[uint64]types.ObjectId, len(covered)),
	}
	for _, v := range covered {
		f.fpToBlock[v.BlockID.Fingerprint()] = v.BlockID
	}

	cursor := data[headerSize:]
	dirEntries := make([]DirectoryEntry, 0, header.EntryCount)
	for i := uint32(0); i < header.EntryCount; i++ {
		minV, n1, err := decodeIndexedValue(cursor)
		if err != nil {
			return nil, err
		}
		cursor = cursor[n1:]
		maxV, n2, err := decodeIndexedValue(cursor)
		if err != nil {
			return nil, err
		}
		cursor = cursor[n2:]
		if len(cursor) < 12 {
			return nil, ErrCorrupt
		}
		offset := binary.LittleEndian.Uint64(cursor[0:8])
		length := binary.LittleEndian.Uint32(cursor[8:12])
		cursor = cursor[12:]
		dirEntries = append(dirEntries, DirectoryEntry{Min: minV, Max: maxV, Offset: offset, Length: length})
	}

	blocksRegion := cursor
	f.entries = make([]valueEntry, 0, len(dirEntries))
	for _, d := range dirEntries {
		if uint64(len(blocksRegion)) < d.Offset+uint64(d.Length) {
			return nil, ErrCorrupt
		}
		rec := blocksRegion[d.Offset : d.Offset+uint64(d.Length)]
		val, n, err := decodeIndexedValue(rec)
		if err != nil {
			return nil, err
		}
		rec = rec[n:]
		if len(rec) < 4 {
			return nil, ErrCorrupt
		}
		count := binary.LittleEndian.Uint32(rec[0:4])
		rec = rec[4:]
		rowIDs := make([]types.RowId, 0, count)
		for j := uint32(0); j < count; j++ {
			if len(rec) < 16 {
				return nil, ErrCorrupt
			}
			fp := binary.LittleEndian.Uint64(rec[0:8])
			off := binary.LittleEndian.Uint64(rec[8:16])
			rec = rec[16:]
			blockID, ok := f.fpToBlock[fp]
			if !ok {
				return nil, bberrors.New(bberrors.VersionMismatch, "index.Load",
					"row-id references a block fingerprint outside the covered set")
			}
			rowIDs = append(rowIDs, types.RowId{BlockID: blockID, Offset: off})
		}
		f.entries = append(f.entries, valueEntry{Value: val, RowIDs: rowIDs})
	}
	return f, nil
}

// Lookup dispatches p to the matching lookup algorithm (spec.md §4.6).
func (f *File) Lookup(p types.IndexPredicate) ([]types.RowId, error) {
	switch p.Kind {
	case types.PredicateExact:
		return f.exactLookup(p.Exact), nil
	case types.PredicateIn:
		return f.inLookup(p.Values), nil
	case types.PredicateRange:
		return f.rangeLookup(p), nil
	default:
		return nil, bberrors.New(bberrors.Validation, "index.Lookup", "unrecognized predicate kind")
	}
}

func (f *File) exactLookup(v types.IndexedValue) []types.RowId {
	i := sort.Search(len(f.entries), func(i int) bool { return !f.entries[i].Value.Less(v) })
	if i < len(f.entries) && f.entries[i].Value.Equal(v) {
		out := make([]types.RowId, len(f.entries[i].RowIDs))
		copy(out, f.entries[i].RowIDs)
		return out
	}
	return nil
}

func (f *File) inLookup(values []types.IndexedValue) []types.RowId {
	var out []types.RowId
	for _, v := range values {
		out = append(out, f.exactLookup(v)...)
	}
	types.SortRowIds(out)
	return dedupeRowIds(out)
}

func (f *File) rangeLookup(p types.IndexPredicate) []types.RowId {
	lo := 0
	if p.Min != nil {
		lo = sort.Search(len(f.entries), func(i int) bool { return !f.entries[i].Value.Less(*p.Min) })
		if lo < len(f.entries) && !p.MinInclusive && f.entries[lo].Value.Equal(*p.Min) {
			lo++
		}
	}
	hi := len(f.entries)
	if p.Max != nil {
		hi = sort.Search(len(f.entries), func(i int) bool {
			if p.MaxInclusive {
				return p.Max.Less(f.entries[i].Value)
			}
			return !f.entries[i].Value.Less(*p.Max)
		})
	}
	var out []types.RowId
	for i := lo; i < hi && i < len(f.entries); i++ {
		out = append(out, f.entries[i].RowIDs...)
	}
	types.SortRowIds(out)
	return out
}

func dedupeRowIds(sorted []types.RowId) []types.RowId {
	if len(sorted) == 0 {
		return sorted
	}
	out := sorted[:1]
	for _, r := range sorted[1:] {
		if r != out[len(out)-1] {
			out = append(out, r)
		}
	}
	return out
}

// Selectivity estimates the fraction of rows p matches, used by the
// index selection policy's 0.20 threshold (spec.md §4.8).
func (f *File) Selectivity(p types.IndexPredicate) float64 {
	if f.TotalRows == 0 {
		return 0
	}
	rows, err := f.Lookup(p)
	if err != nil {
		return 1
	}
	return float64(len(rows)) / float64(f.TotalRows)
}
