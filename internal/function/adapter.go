package function

import (
	"context"
	"strings"

	"github.com/bundlebase/bundlebase/internal/bberrors"
	"github.com/bundlebase/bundlebase/internal/block"
	"github.com/bundlebase/bundlebase/internal/stream"
	"github.com/bundlebase/bundlebase/pkg/types"
)

// RegisterAdapter binds the function:// scheme onto into so AttachBlock
// can resolve a "function://name" source URL to a DataAdapter backed by
// registry. Resolution always succeeds; a missing implementation is
// reported by the adapter's Schema and Scan calls, so attaching a
// function:// block (which probes Schema) already fails (spec.md §4.11).
func RegisterAdapter(into *block.Registry, registry *Registry) {
	into.RegisterScheme("function", func(ctx context.Context, sourceURL, adapterHint string) (block.DataAdapter, error) {
		name := strings.TrimPrefix(sourceURL, "function://")
		return &adapter{name: name, registry: registry}, nil
	})
}

// adapter is the block.DataAdapter a function://name source URL resolves
// to. Its schema and row count are unknown until the implementation is
// actually registered, since the declaration (DefineFunction) and the
// registration (SetImpl) can happen at different times.
type adapter struct {
	name     string
	registry *Registry
}

func (a *adapter) Schema(ctx context.Context) (types.Schema, error) {
	schema, _, err := a.registry.Require(a.name)
	if err != nil {
		return types.Schema{}, err
	}
	return schema, nil
}

// ApproxRowCount is always unknown: a paginated generator has no upfront
// count without draining it, so callers must treat this source's
// contribution to the bundle row-count estimate as approximate.
func (a *adapter) ApproxRowCount(ctx context.Context) (uint64, error) {
	return 0, nil
}

func (a *adapter) ByteSize(ctx context.Context) (uint64, error) {
	return 0, nil
}

// Scan drains impl page by page, each page becoming one stream.Batch,
// until Next reports exhaustion. Row-id narrowing and residual
// predicates are not supported by function sources — any such request
// falls back to a full scan with the same residual filter, per
// block.ErrRowIDProjectionUnsupported's contract.
func (a *adapter) Scan(ctx context.Context, opts block.ScanOptions) (stream.BatchStream, error) {
	if len(opts.RowIDs) > 0 {
		return nil, block.ErrRowIDProjectionUnsupported
	}
	schema, impl, err := a.registry.Require(a.name)
	if err != nil {
		return nil, err
	}
	return &pagedStream{ctx: ctx, impl: impl, schema: schema, name: a.name}, nil
}

// pagedStream adapts Impl.Next's (schema, rows) pagination into
// BatchStream.Next, converting each page's row-major values into the
// batch's column-major representation.
type pagedStream struct {
	ctx    context.Context
	impl   Impl
	schema types.Schema
	name   string
	page   int
	done   bool
}

func (p *pagedStream) Next(ctx context.Context) (*stream.Batch, error) {
	if p.done {
		return nil, nil
	}
	schema, rows, err := p.impl.Next(ctx, p.page)
	if err != nil {
		return nil, bberrors.Wrap(bberrors.Execution, "function.Scan", "generating page", err).
			WithDetails(map[string]string{"name": p.name})
	}
	if schema == nil || len(rows) == 0 {
		p.done = true
		return nil, nil
	}
	p.page++
	batch := stream.NewBatch(*schema, len(rows))
	for _, name := range schema.Names() {
		col := batch.Columns[name]
		idx, _ := indexOf(schema.Names(), name)
		for r, row := range rows {
			col[r] = row[idx]
		}
	}
	return &batch, nil
}

func (p *pagedStream) Close() error { return nil }

func indexOf(names []string, target string) (int, bool) {
	for i, n := range names {
		if n == target {
			return i, true
		}
	}
	return -1, false
}
