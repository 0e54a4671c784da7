package sqlengine

import (
	"context"

	"github.com/bundlebase/bundlebase/internal/stream"
	"github.com/bundlebase/bundlebase/pkg/types"
)

// batchToRows converts one columnar Batch into row-major maps, the
// shape insertRows and the generic row-wrapping streams below work
// with. Used only on the Filter/Project/Join materialization paths,
// never on the base per-block scan.
func batchToRows(b stream.Batch) []map[string]any {
	names := b.Schema.Names()
	rows := make([]map[string]any, b.NumRows)
	for i := 0; i < b.NumRows; i++ {
		row := make(map[string]any, len(names))
		for _, n := range names {
			row[n] = b.Columns[n][i]
		}
		rows[i] = row
	}
	return rows
}

// rowsToBatch builds a single Batch over schema from row-major maps.
func rowsToBatch(rows []map[string]any, schema types.Schema) stream.Batch {
	b := stream.NewBatch(schema, len(rows))
	for _, n := range schema.Names() {
		col := b.Columns[n]
		for i, row := range rows {
			col[i] = row[n]
		}
	}
	return b
}

// rowsToBatches chunks row-major maps into Batches of at most size rows
// each, bounding peak memory the way a direct adapter scan already does
// (spec.md I7).
func rowsToBatches(rows []map[string]any, schema types.Schema, size int) []stream.Batch {
	if size <= 0 {
		size = len(rows)
		if size == 0 {
			size = 1
		}
	}
	var out []stream.Batch
	for start := 0; start < len(rows); start += size {
		end := start + size
		if end > len(rows) {
			end = len(rows)
		}
		out = append(out, rowsToBatch(rows[start:end], schema))
	}
	return out
}

// drainAll pulls every batch from s into one row-major slice.
func drainAll(ctx context.Context, s stream.BatchStream) ([]map[string]any, error) {
	var rows []map[string]any
	err := stream.Drain(ctx, s, func(b stream.Batch) error {
		rows = append(rows, batchToRows(b)...)
		return nil
	})
	return rows, err
}
