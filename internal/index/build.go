package index

import (
	"bytes"
	"context"
	"encoding/binary"
	"sort"

	"github.com/bundlebase/bundlebase/internal/bberrors"
	"github.com/bundlebase/bundlebase/internal/block"
	"github.com/bundlebase/bundlebase/internal/stream"
	"github.com/bundlebase/bundlebase/pkg/types"
)

// File is a fully decoded column index: one (index_id, block_id,
// version) build, keyed for lookup by the exact distinct value it
// covers.
type File struct {
	Column     string
	DType      types.IndexedValueKind
	TotalRows  uint64
	Covered    []types.VersionedBlockId
	fpToBlock  map[uint64]types.ObjectId
	entries    []valueEntry // sorted by Value under total order
}

type valueEntry struct {
	Value  types.IndexedValue
	RowIDs []types.RowId
}

// Build scans every covered block once, projects column, and groups rows
// by distinct value (spec.md §4.6 "Build").
func Build(ctx context.Context, column string, covered []*block.Block) (*File, error) {
	if len(covered) == 0 {
		return nil, bberrors.New(bberrors.Validation, "index.Build", "no blocks to index")
	}

	f := &File{
		Column:    column,
		Covered:   make([]types.VersionedBlockId, 0, len(covered)),
		fpToBlock: map[uint64]types.ObjectId{},
	}

	byValue := map[types.IndexedValue]*valueEntry{}
	var totalRows uint64

	for _, b := range covered {
		f.Covered = append(f.Covered, b.VersionedID())
		f.fpToBlock[b.ID.Fingerprint()] = b.ID

		typ, ok := b.Schema.TypeOf(column)
		if !ok {
			return nil, bberrors.New(bberrors.Validation, "index.Build", "column not in block schema").
				WithDetails(map[string]string{"column": column, "block": string(b.ID)})
		}
		dtype := logicalKindToIndexed(typ.Kind)
		if f.DType != 0 && f.DType != dtype {
			return nil, bberrors.New(bberrors.SchemaErr, "index.Build", "covered blocks disagree on column type")
		}
		f.DType = dtype

		s, err := b.Adapter.Scan(ctx, block.ScanOptions{})
		if err != nil {
			return nil, err
		}
		var offset uint64
		scanErr := stream.Drain(ctx, s, func(batch stream.Batch) error {
			col, ok := batch.Columns[column]
			if !ok {
				return bberrors.New(bberrors.Validation, "index.Build", "scanned batch missing indexed column")
			}
			for i := 0; i < batch.NumRows; i++ {
				v, ok := goValueToIndexed(col[i], dtype)
				if !ok {
					offset++
					continue
				}
				e, ok := byValue[v]
				if !ok {
					e = &valueEntry{Value: v}
					byValue[v] = e
				}
				e.RowIDs = append(e.RowIDs, types.RowId{BlockID: b.ID, Offset: offset})
				offset++
				totalRows++
			}
			return nil
		})
		if scanErr != nil {
			return nil, scanErr
		}
	}

	f.entries = make([]valueEntry, 0, len(byValue))
	for _, e := range byValue {
		types.SortRowIds(e.RowIDs)
		f.entries = append(f.entries, *e)
	}
	sort.Slice(f.entries, func(i, j int) bool { return f.entries[i].Value.Less(f.entries[j].Value) })
	f.TotalRows = totalRows
	return f, nil
}

func logicalKindToIndexed(k types.LogicalKind) types.IndexedValueKind {
	switch k {
	case types.KindInt64:
		return types.IndexedInt64
	case types.KindFloat64:
		return types.IndexedFloat64
	case types.KindUtf8:
		return types.IndexedUtf8
	case types.KindBoolean:
		return types.IndexedBoolean
	case types.KindTimestamp:
		return types.IndexedTimestamp
	default:
		return types.IndexedNull
	}
}

func goValueToIndexed(raw any, dtype types.IndexedValueKind) (types.IndexedValue, bool) {
	if raw == nil {
		return types.IndexedFromNull(), true
	}
	switch dtype {
	case types.IndexedInt64:
		v, ok := raw.(int64)
		return types.IndexedFromInt64(v), ok
	case types.IndexedFloat64:
		v, ok := raw.(float64)
		return types.IndexedFromFloat64(v), ok
	case types.IndexedUtf8:
		v, ok := raw.(string)
		return types.IndexedFromUtf8(v), ok
	case types.IndexedBoolean:
		v, ok := raw.(bool)
		return types.IndexedFromBoolean(v), ok
	case types.IndexedTimestamp:
		v, ok := raw.(int64)
		return types.IndexedFromTimestamp(v), ok
	default:
		return types.IndexedFromNull(), true
	}
}

// Encode serializes f into the on-disk format (spec.md §4.7).
func (f *File) Encode() ([]byte, error) {
	var blocksRegion bytes.Buffer
	dirEntries := make([]DirectoryEntry, 0, len(f.entries))

	for _, e := range f.entries {
		start := blocksRegion.Len()
		var rec bytes.Buffer
		if err := encodeIndexedValue(&rec, e.Value); err != nil {
			return nil, err
		}
		if err := writeUint32(&rec, uint32(len(e.RowIDs))); err != nil {
			return nil, err
		}
		for _, rid := range e.RowIDs {
			if err := writeUint64(&rec, rid.BlockID.Fingerprint()); err != nil {
				return nil, err
			}
			if err := writeUint64(&rec, rid.Offset); err != nil {
				return nil, err
			}
		}
		blocksRegion.Write(rec.Bytes())
		dirEntries = append(dirEntries, DirectoryEntry{
			Min: e.Value, Max: e.Value,
			Offset: uint64(start), Length: uint32(rec.Len()),
		})
	}

	header := encodeHeader(Header{
		DType:         f.DType,
		EntryCount:    uint32(len(dirEntries)),
		TotalRows:     f.TotalRows,
		BlockDirCount: uint32(len(dirEntries)),
	})

	var dir bytes.Buffer
	for _, d := range dirEntries {
		if err := encodeIndexedValue(&dir, d.Min); err != nil {
			return nil, err
		}
		if err := encodeIndexedValue(&dir, d.Max); err != nil {
			return nil, err
		}
		if err := writeUint64(&dir, d.Offset); err != nil {
			return nil, err
		}
		if err := writeUint32(&dir, d.Length); err != nil {
			return nil, err
		}
	}

	out := make([]byte, 0, len(header)+dir.Len()+blocksRegion.Len())
	out = append(out, header...)
	out = append(out, dir.Bytes()...)
	out = append(out, blocksRegion.Bytes()...)
	return out, nil
}

func writeUint32(buf *bytes.Buffer, v uint32) error {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, v)
	_, err := buf.Write(b)
	return err
}

func writeUint64(buf *bytes.Buffer, v uint64) error {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint64(b, v)
	_, err := buf.Write(b)
	return err
}
