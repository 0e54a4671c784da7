// Package bundlebase is a versioned, content-addressed columnar data
// bundle engine: a bundle is a manifest of commits, each commit a
// sequence of schema/data operations replayed in order to reconstruct
// a bundle's current schema, row-count estimate, and logical query
// plan. This package re-exports the library's public surface; the
// actual implementation lives under internal/.
package bundlebase

import (
	"context"

	"github.com/bundlebase/bundlebase/internal/bbconfig"
	"github.com/bundlebase/bundlebase/internal/block"
	"github.com/bundlebase/bundlebase/internal/bundle"
	"github.com/bundlebase/bundlebase/internal/function"
	"github.com/bundlebase/bundlebase/internal/indexadvisor"
	"github.com/bundlebase/bundlebase/internal/manifest"
	"github.com/bundlebase/bundlebase/internal/observability"
	"github.com/bundlebase/bundlebase/internal/runtime"
	"github.com/bundlebase/bundlebase/internal/state"
	"github.com/bundlebase/bundlebase/internal/stream"
	"github.com/bundlebase/bundlebase/pkg/types"
)

// Config tunes a Runtime: index cache capacity, stream batch size,
// scan concurrency, the scratch directory for temporary work, and the
// index advisor's create threshold.
type Config = bbconfig.Config

// DefaultConfig returns a Config with bbconfig.Default's baseline
// settings applied.
func DefaultConfig() *Config { return bbconfig.Default() }

// Runtime is the process-wide handle owning the shared adapter
// registry, function registry, scan observability recorder, and index
// advisor every Bundle opened through it reuses.
type Runtime = runtime.Runtime

// NewRuntime builds a Runtime from cfg, or from DefaultConfig if cfg is
// nil.
func NewRuntime(cfg *Config) (*Runtime, error) { return runtime.New(cfg) }

// Bundle is the read-only view over a fully replayed bundle root.
type Bundle = bundle.Bundle

// BundleBuilder is the mutable façade: every method records one
// operation, validates and folds it into a pending change that Commit
// persists as a single manifest commit.
type BundleBuilder = bundle.BundleBuilder

// Schema is a bundle's column schema: an ordered set of
// name/LogicalType/nullable triples.
type Schema = types.Schema

// LogicalType and LogicalKind describe one column's type.
type LogicalType = types.LogicalType
type LogicalKind = types.LogicalKind

// ObjectId is a content-addressed identifier (block, index, view).
type ObjectId = types.ObjectId

// IndexDefinition describes one declared column index.
type IndexDefinition = types.IndexDefinition

// RowCount is a bundle's row-count estimate, flagged approximate
// whenever it was derived from an adapter's ApproxRowCount rather than
// an exact scan.
type RowCount = state.RowCount

// Batch is one columnar chunk of query results.
type Batch = stream.Batch

// BatchStream is a pull-based source of Batches.
type BatchStream = stream.BatchStream

// DataAdapter is the pluggable contract a block's backing source
// implements: Schema, ApproxRowCount, Scan, ByteSize.
type DataAdapter = block.DataAdapter

// AdapterRegistry resolves a source URL (or explicit hint) to the
// DataAdapter that can read it.
type AdapterRegistry = block.Registry

// FunctionImpl is a paginated row-generating function implementation a
// host program registers under a name before attaching a function://
// block.
type FunctionImpl = function.Impl

// IndexAction is a recommended CreateIndex/DropIndex the index advisor
// produces from observed scan predicates.
type IndexAction = indexadvisor.Action

// ScanStats records predicate frequency and scan outcomes for the
// index advisor and any host-side observability dashboard.
type ScanStats = observability.ScanStats

// CommitHeader summarizes one manifest commit in a bundle's history.
type CommitHeader = manifest.CommitHeader

// Open replays an existing bundle at rootURL.
func Open(ctx context.Context, rt *Runtime, rootURL string) (*Bundle, error) {
	return rt.Open(ctx, rootURL)
}

// Create initializes a brand new bundle at rootURL.
func Create(ctx context.Context, rt *Runtime, rootURL string) (*Bundle, error) {
	return rt.Create(ctx, rootURL)
}

// Query executes b's current logical plan through the index-aware
// execution engine and returns a streaming result.
func Query(ctx context.Context, rt *Runtime, b *Bundle) (BatchStream, error) {
	return rt.Query(ctx, b)
}

// Explain renders b's current logical plan as indented plan text, the
// same tree Query would execute.
func Explain(b *Bundle) string {
	return b.Explain()
}

// AttachView captures source's pending operations into a new view
// subtree of parent, returning the view's id and resulting Bundle. The
// caller still records the id under a name via parent.AttachView
// before committing parent.
func AttachView(ctx context.Context, rt *Runtime, parent, source *BundleBuilder, message string) (ObjectId, *Bundle, error) {
	return rt.AttachView(ctx, parent, source, message)
}

// OpenView loads an already-attached view by its parent root and id.
func OpenView(ctx context.Context, rt *Runtime, parentRootURL string, viewID ObjectId) (*Bundle, error) {
	return rt.OpenView(ctx, parentRootURL, viewID)
}

// Advise evaluates the index advisor against a bundle's currently
// registered index columns, returning recommended actions. The caller
// applies them through the normal BundleBuilder API.
func Advise(rt *Runtime, b *Bundle) []IndexAction {
	return rt.Advise(b.State().ExistingIndexColumns())
}
