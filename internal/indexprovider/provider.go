// Package indexprovider implements C8: the index-aware table provider
// that sits between a scan request and C6's DataAdapter, consulting C7
// to narrow the scan to a row-id set whenever a qualifying index exists.
package indexprovider

import (
	"context"

	"github.com/bundlebase/bundlebase/internal/block"
	"github.com/bundlebase/bundlebase/internal/index"
	"github.com/bundlebase/bundlebase/internal/observability"
	"github.com/bundlebase/bundlebase/internal/sqlparser"
	"github.com/bundlebase/bundlebase/internal/stream"
	"github.com/bundlebase/bundlebase/pkg/types"
)

// Provider mediates scans through the column index engine.
type Provider struct {
	idx   *index.Manager
	stats *observability.ScanStats
}

func New(idx *index.Manager, stats *observability.ScanStats) *Provider {
	return &Provider{idx: idx, stats: stats}
}

// Scan executes the decision process of spec.md §4.8 for one block: it
// extracts indexable sub-predicates from whereSQL, consults defs for a
// qualifying index, and narrows the adapter scan to the matched row-ids
// when one is found. An empty whereSQL skips straight to a full scan.
func (p *Provider) Scan(ctx context.Context, b *block.Block, defs []types.IndexDefinition, whereSQL string, params []any, projection []string) (stream.BatchStream, error) {
	if whereSQL == "" {
		return b.Adapter.Scan(ctx, block.ScanOptions{Projection: projection})
	}

	expr, err := sqlparser.ParseExpr(whereSQL)
	if err != nil {
		return b.Adapter.Scan(ctx, block.ScanOptions{
			ResidualPredicate: whereSQL, ResidualParams: params, Projection: projection,
		})
	}

	extracted, residual := sqlparser.ExtractIndexable(expr, params)
	var candidates []scanCandidate
	for _, e := range extracted {
		p.stats.RecordPredicate(e.Column, predicateOperator(e.Predicate))
		def, path, ok := findDefinition(defs, e.Column, b.VersionedID())
		if !ok {
			for _, d := range defs {
				if d.Column == e.Column {
					p.recordEvent(observability.EventMiss, e.Column, "stale")
					break
				}
			}
			continue
		}
		sel, size, outcome := p.idx.Selectivity(ctx, path, e.Predicate, []types.VersionedBlockId{b.VersionedID()})
		if outcome == index.OutcomeError {
			p.recordEvent(observability.EventError, e.Column, "corrupt index")
			continue
		}
		if outcome != index.OutcomeHit {
			p.recordEvent(observability.EventMiss, e.Column, "index unavailable")
			continue
		}
		candidates = append(candidates, scanCandidate{
			extracted: e, def: def, path: path, selectivity: sel, fileSize: size,
		})
	}

	if len(candidates) == 0 {
		p.recordEvent(observability.EventMiss, "", "no qualifying index")
		return fullScan(ctx, b, expr, params, projection)
	}

	policyCandidates := make([]index.Candidate, len(candidates))
	for i, c := range candidates {
		policyCandidates[i] = index.Candidate{
			Column: c.extracted.Column, IndexPath: c.path, Selectivity: c.selectivity, FileSize: c.fileSize,
		}
	}
	winner, ok := index.SelectCandidate(policyCandidates)
	if !ok {
		p.recordEvent(observability.EventFallback, "", "all candidates exceeded selectivity threshold")
		return fullScan(ctx, b, expr, params, projection)
	}

	var chosen *scanCandidate
	for i := range candidates {
		if candidates[i].extracted.Column == winner.Column && candidates[i].path == winner.IndexPath {
			chosen = &candidates[i]
			break
		}
	}

	rows, outcome := p.idx.Lookup(ctx, chosen.path, chosen.extracted.Column, chosen.extracted.Predicate,
		[]types.VersionedBlockId{b.VersionedID()})
	if outcome != index.OutcomeHit {
		p.recordEvent(observability.EventError, chosen.extracted.Column, "lookup failed after selectivity check")
		return fullScan(ctx, b, expr, params, projection)
	}

	residualSQL, err := sqlparser.RenderSQLite(residual, 0)
	if err != nil {
		p.recordEvent(observability.EventError, chosen.extracted.Column, "rendering residual predicate")
		return fullScan(ctx, b, expr, params, projection)
	}

	offsets := make([]uint64, len(rows))
	for i, r := range rows {
		offsets[i] = r.Offset
	}
	s, err := b.Adapter.Scan(ctx, block.ScanOptions{
		RowIDs: offsets, ResidualPredicate: residualSQL, ResidualParams: params, Projection: projection,
	})
	if err == block.ErrRowIDProjectionUnsupported {
		p.recordEvent(observability.EventFallback, chosen.extracted.Column, "adapter lacks row-id projection")
		return fullScan(ctx, b, expr, params, projection)
	}
	if err != nil {
		return nil, err
	}
	p.recordEvent(observability.EventHit, chosen.extracted.Column, "")
	return s, nil
}

type scanCandidate struct {
	extracted   sqlparser.Extracted
	def         types.IndexDefinition
	path        string
	selectivity float64
	fileSize    int64
}

func fullScan(ctx context.Context, b *block.Block, expr sqlparser.Expression, params []any, projection []string) (stream.BatchStream, error) {
	sql, err := sqlparser.RenderSQLite(expr, 0)
	if err != nil {
		return nil, err
	}
	return b.Adapter.Scan(ctx, block.ScanOptions{ResidualPredicate: sql, ResidualParams: params, Projection: projection})
}

func findDefinition(defs []types.IndexDefinition, column string, v types.VersionedBlockId) (types.IndexDefinition, string, bool) {
	for _, d := range defs {
		if d.Column != column {
			continue
		}
		if path, ok := d.PathFor(v); ok {
			return d, path, true
		}
	}
	return types.IndexDefinition{}, "", false
}

func (p *Provider) recordEvent(kind observability.EventKind, column, reason string) {
	p.stats.RecordEvent(observability.ScanEvent{Kind: kind, Column: column, Reason: reason})
}

func predicateOperator(p types.IndexPredicate) string {
	switch p.Kind {
	case types.PredicateExact:
		return "="
	case types.PredicateIn:
		return "IN"
	case types.PredicateRange:
		return "range"
	default:
		return "?"
	}
}
