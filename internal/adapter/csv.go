package adapter

import (
	"bytes"
	"context"
	"encoding/csv"
	"strconv"

	"github.com/bundlebase/bundlebase/internal/bberrors"
	"github.com/bundlebase/bundlebase/internal/block"
	"github.com/bundlebase/bundlebase/internal/stream"
	"github.com/bundlebase/bundlebase/pkg/types"
)

// csvAdapter parses a comma-separated file with a header row, inferring
// each column's LogicalType field-by-field (try int64, then float64,
// then bool, else leave as Utf8) and widening across rows as needed.
type csvAdapter struct {
	loader  func(ctx context.Context) ([]byte, error)
	schema  types.Schema
	records [][]string
	loaded  bool
}

func newCSVAdapter(loader func(ctx context.Context) ([]byte, error)) *csvAdapter {
	return &csvAdapter{loader: loader}
}

func (a *csvAdapter) ensureLoaded(ctx context.Context) error {
	if a.loaded {
		return nil
	}
	raw, err := a.loader(ctx)
	if err != nil {
		return bberrors.Wrap(bberrors.DataSource, "adapter.csv", "reading source", err)
	}
	reader := csv.NewReader(bytes.NewReader(raw))
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	if err != nil {
		return bberrors.Wrap(bberrors.DataSource, "adapter.csv", "parsing csv", err)
	}
	if len(rows) == 0 {
		a.schema = types.NewSchema()
		a.loaded = true
		return nil
	}
	header := rows[0]
	body := rows[1:]
	a.schema = inferCSVSchema(header, body)
	a.records = body
	a.loaded = true
	return nil
}

func inferCSVSchema(header []string, body [][]string) types.Schema {
	kinds := make([]types.LogicalKind, len(header))
	nullable := make([]bool, len(header))
	for i := range header {
		kinds[i] = types.KindInt64
	}
	for _, row := range body {
		for i := range header {
			if i >= len(row) || row[i] == "" {
				nullable[i] = true
				continue
			}
			kinds[i] = widenCSVKind(kinds[i], row[i])
		}
	}
	schema := types.NewSchema()
	for i, name := range header {
		schema = schema.WithColumn(name, scalarType(kinds[i]), nullable[i])
	}
	return schema
}

// widenCSVKind narrows the running kind estimate for one column given a
// new observed value, never moving back toward a stricter kind once a
// looser one has been seen.
func widenCSVKind(current types.LogicalKind, value string) types.LogicalKind {
	switch current {
	case types.KindUtf8:
		return types.KindUtf8
	case types.KindFloat64:
		if _, err := strconv.ParseFloat(value, 64); err == nil {
			return types.KindFloat64
		}
		return types.KindUtf8
	case types.KindBoolean:
		if _, err := strconv.ParseBool(value); err == nil {
			return types.KindBoolean
		}
		if _, err := strconv.ParseInt(value, 10, 64); err == nil {
			return types.KindInt64
		}
		if _, err := strconv.ParseFloat(value, 64); err == nil {
			return types.KindFloat64
		}
		return types.KindUtf8
	default: // KindInt64, the default starting guess
		if _, err := strconv.ParseInt(value, 10, 64); err == nil {
			return types.KindInt64
		}
		if _, err := strconv.ParseFloat(value, 64); err == nil {
			return types.KindFloat64
		}
		if _, err := strconv.ParseBool(value); err == nil {
			return types.KindBoolean
		}
		return types.KindUtf8
	}
}

func (a *csvAdapter) Schema(ctx context.Context) (types.Schema, error) {
	if err := a.ensureLoaded(ctx); err != nil {
		return types.Schema{}, err
	}
	return a.schema, nil
}

func (a *csvAdapter) ApproxRowCount(ctx context.Context) (uint64, error) {
	if err := a.ensureLoaded(ctx); err != nil {
		return 0, err
	}
	return uint64(len(a.records)), nil
}

func (a *csvAdapter) ByteSize(ctx context.Context) (uint64, error) {
	if err := a.ensureLoaded(ctx); err != nil {
		return 0, err
	}
	var n uint64
	for _, row := range a.records {
		for _, cell := range row {
			n += uint64(len(cell))
		}
	}
	return n, nil
}

func (a *csvAdapter) Scan(ctx context.Context, opts block.ScanOptions) (stream.BatchStream, error) {
	if err := a.ensureLoaded(ctx); err != nil {
		return nil, err
	}
	if opts.RowIDs != nil {
		return nil, block.ErrRowIDProjectionUnsupported
	}
	names := opts.Projection
	if len(names) == 0 {
		names = a.schema.Names()
	}
	colIndex := make(map[string]int, a.schema.Len())
	for i, n := range a.schema.Names() {
		colIndex[n] = i
	}
	schema := a.schema
	if len(opts.Projection) > 0 {
		narrowed := types.NewSchema()
		for _, n := range names {
			typ, ok := a.schema.TypeOf(n)
			if !ok {
				return nil, bberrors.New(bberrors.Validation, "adapter.csv", "unknown projected column").
					WithDetails(map[string]string{"column": n})
			}
			narrowed = narrowed.WithColumn(n, typ, a.schema.Nullable(n))
		}
		schema = narrowed
	}
	batch := stream.NewBatch(schema, len(a.records))
	for rowIdx, row := range a.records {
		for _, n := range names {
			i := colIndex[n]
			var raw string
			if i < len(row) {
				raw = row[i]
			}
			typ, _ := schema.TypeOf(n)
			v, err := parseCSVValue(raw, typ.Kind)
			if err != nil {
				return nil, bberrors.Wrap(bberrors.DataSource, "adapter.csv", "parsing cell", err)
			}
			batch.Columns[n][rowIdx] = v
		}
	}
	return stream.FromSlice([]stream.Batch{batch}), nil
}

func parseCSVValue(raw string, kind types.LogicalKind) (any, error) {
	if raw == "" {
		return nil, nil
	}
	switch kind {
	case types.KindInt64:
		return strconv.ParseInt(raw, 10, 64)
	case types.KindFloat64:
		return strconv.ParseFloat(raw, 64)
	case types.KindBoolean:
		return strconv.ParseBool(raw)
	default:
		return raw, nil
	}
}
