package adapter

import (
	"bytes"
	"context"
	"encoding/json"
	"sort"

	"github.com/bundlebase/bundlebase/internal/bberrors"
	"github.com/bundlebase/bundlebase/internal/block"
	"github.com/bundlebase/bundlebase/internal/stream"
	"github.com/bundlebase/bundlebase/pkg/types"
)

// jsonAdapter backs a newline-delimited-JSON or JSON-array source:
// one parse pass, column types inferred from the union of every row's
// keys, coercing each field in turn and widening to nullable wherever a
// key is absent or null in some row.
type jsonAdapter struct {
	loader func(ctx context.Context) ([]byte, error)
	rows   []map[string]any
	schema types.Schema
	loaded bool
}

func newJSONAdapter(loader func(ctx context.Context) ([]byte, error)) *jsonAdapter {
	return &jsonAdapter{loader: loader}
}

func (a *jsonAdapter) ensureLoaded(ctx context.Context) error {
	if a.loaded {
		return nil
	}
	raw, err := a.loader(ctx)
	if err != nil {
		return bberrors.Wrap(bberrors.DataSource, "adapter.json", "reading source", err)
	}
	rows, err := decodeJSONRows(raw)
	if err != nil {
		return bberrors.Wrap(bberrors.DataSource, "adapter.json", "decoding json", err)
	}
	a.rows = rows
	a.schema = inferSchema(rows)
	a.loaded = true
	return nil
}

// decodeJSONRows accepts either a top-level JSON array of objects or
// newline-delimited JSON objects.
func decodeJSONRows(raw []byte) ([]map[string]any, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, nil
	}
	if trimmed[0] == '[' {
		var rows []map[string]any
		dec := json.NewDecoder(bytes.NewReader(trimmed))
		dec.UseNumber()
		if err := dec.Decode(&rows); err != nil {
			return nil, err
		}
		return rows, nil
	}
	var rows []map[string]any
	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()
	for {
		var row map[string]any
		if err := dec.Decode(&row); err != nil {
			if err.Error() == "EOF" {
				break
			}
			return nil, err
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// inferSchema builds a Schema from the union of every row's keys, in
// order of first appearance across rows (a row's new keys are taken in
// alphabetical order, since map order is not defined), widening a column to nullable the moment any row
// omits it or carries an explicit null.
func inferSchema(rows []map[string]any) types.Schema {
	order := make([]string, 0)
	seen := map[string]bool{}
	kinds := map[string]types.LogicalKind{}
	nullable := map[string]bool{}

	for _, row := range rows {
		for _, name := range sortedKeys(row) {
			if !seen[name] {
				seen[name] = true
				order = append(order, name)
				kinds[name] = jsonKind(row[name])
			}
		}
	}
	for _, name := range order {
		for _, row := range rows {
			v, ok := row[name]
			if !ok || v == nil {
				nullable[name] = true
			}
		}
	}

	schema := types.NewSchema()
	for _, name := range order {
		schema = schema.WithColumn(name, scalarType(kinds[name]), nullable[name])
	}
	return schema
}

func sortedKeys(row map[string]any) []string {
	keys := make([]string, 0, len(row))
	for k := range row {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func jsonKind(v any) types.LogicalKind {
	switch v.(type) {
	case json.Number:
		return types.KindFloat64
	case string:
		return types.KindUtf8
	case bool:
		return types.KindBoolean
	case []any:
		return types.KindList
	case map[string]any:
		return types.KindStruct
	default:
		return types.KindNull
	}
}

func scalarType(k types.LogicalKind) types.LogicalType {
	switch k {
	case types.KindInt64:
		return types.Int64Type()
	case types.KindFloat64:
		return types.Float64Type()
	case types.KindUtf8:
		return types.Utf8Type()
	case types.KindBoolean:
		return types.BooleanType()
	case types.KindTimestamp:
		return types.TimestampType()
	case types.KindList:
		return types.ListType(types.Utf8Type())
	case types.KindStruct:
		return types.StructType()
	default:
		return types.NullType()
	}
}

func (a *jsonAdapter) Schema(ctx context.Context) (types.Schema, error) {
	if err := a.ensureLoaded(ctx); err != nil {
		return types.Schema{}, err
	}
	return a.schema, nil
}

func (a *jsonAdapter) ApproxRowCount(ctx context.Context) (uint64, error) {
	if err := a.ensureLoaded(ctx); err != nil {
		return 0, err
	}
	return uint64(len(a.rows)), nil
}

func (a *jsonAdapter) ByteSize(ctx context.Context) (uint64, error) {
	if err := a.ensureLoaded(ctx); err != nil {
		return 0, err
	}
	raw, err := json.Marshal(a.rows)
	if err != nil {
		return 0, err
	}
	return uint64(len(raw)), nil
}

func (a *jsonAdapter) Scan(ctx context.Context, opts block.ScanOptions) (stream.BatchStream, error) {
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
	schema := a.schema
	if len(opts.Projection) > 0 {
		narrowed := types.NewSchema()
		for _, n := range names {
			typ, ok := a.schema.TypeOf(n)
			if !ok {
				return nil, bberrors.New(bberrors.Validation, "adapter.json", "unknown projected column").
					WithDetails(map[string]string{"column": n})
			}
			narrowed = narrowed.WithColumn(n, typ, a.schema.Nullable(n))
		}
		schema = narrowed
	}
	batch := stream.NewBatch(schema, len(a.rows))
	for i, row := range a.rows {
		for _, n := range names {
			batch.Columns[n][i] = coerceJSONValue(row[n])
		}
	}
	return stream.FromSlice([]stream.Batch{batch}), nil
}

// coerceJSONValue converts the json.Number decoding-time placeholder
// into the float64 value inferSchema already committed the column to.
func coerceJSONValue(v any) any {
	n, ok := v.(json.Number)
	if !ok {
		return v
	}
	f, _ := n.Float64()
	return f
}
