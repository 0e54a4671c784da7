// Package block defines the pluggable DataAdapter capability (C6) and the
// Block value that binds an adapter instance to a stable identity and
// version token. Concrete adapters (CSV/JSON/Parquet parsing) are external
// plug-ins; this package only defines the contract and the registry that
// resolves a source URL to one.
package block

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/bundlebase/bundlebase/internal/bberrors"
	"github.com/bundlebase/bundlebase/internal/stream"
	"github.com/bundlebase/bundlebase/pkg/types"
)

// ScanOptions narrows a DataAdapter.Scan call. RowIDs, when non-nil,
// restricts the scan to exactly those offsets (C8's index-narrowed path);
// an adapter that cannot support direct row-id projection returns
// ErrRowIDProjectionUnsupported and the caller falls back to a full scan.
type ScanOptions struct {
	RowIDs          []uint64
	ResidualPredicate string
	ResidualParams  []any
	Projection      []string
}

// ErrRowIDProjectionUnsupported signals an adapter cannot narrow a scan to
// specific row offsets; callers fall back to a full scan with the same
// residual filter (spec.md §4.8 step 6).
var ErrRowIDProjectionUnsupported = fmt.Errorf("block: adapter does not support row-id projection")

// DataAdapter is the pluggable block-reader contract (spec.md §4.5).
// Implementations must be safe for concurrent Scan calls.
type DataAdapter interface {
	Schema(ctx context.Context) (types.Schema, error)
	ApproxRowCount(ctx context.Context) (uint64, error)
	Scan(ctx context.Context, opts ScanOptions) (stream.BatchStream, error)
	ByteSize(ctx context.Context) (uint64, error)
}

// AdapterFactory constructs a DataAdapter for one (url, hint) pair.
type AdapterFactory func(ctx context.Context, sourceURL, adapterHint string) (DataAdapter, error)

// Registry resolves a source URL/hint to a DataAdapter via its scheme or
// file extension. The core registers concrete adapters at runtime
// construction; it never hardcodes a parser.
type Registry struct {
	mu        sync.RWMutex
	byScheme  map[string]AdapterFactory
	byExt     map[string]AdapterFactory
}

func NewRegistry() *Registry {
	return &Registry{byScheme: map[string]AdapterFactory{}, byExt: map[string]AdapterFactory{}}
}

// RegisterScheme binds a URL scheme (e.g. "function") to a factory.
func (r *Registry) RegisterScheme(scheme string, f AdapterFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byScheme[scheme] = f
}

// RegisterExtension binds a file extension (e.g. ".csv") to a factory,
// used for file:// and memory:// sources dispatched by suffix.
func (r *Registry) RegisterExtension(ext string, f AdapterFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byExt[strings.ToLower(ext)] = f
}

// Resolve picks a factory for sourceURL, preferring an explicit
// adapterHint (used verbatim as either a scheme or extension key), then
// scheme dispatch, then extension dispatch.
func (r *Registry) Resolve(ctx context.Context, sourceURL, adapterHint string) (DataAdapter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if adapterHint != "" {
		if f, ok := r.byScheme[adapterHint]; ok {
			return f(ctx, sourceURL, adapterHint)
		}
		if f, ok := r.byExt[strings.ToLower(adapterHint)]; ok {
			return f(ctx, sourceURL, adapterHint)
		}
	}
	if i := strings.Index(sourceURL, "://"); i >= 0 {
		scheme := sourceURL[:i]
		if f, ok := r.byScheme[scheme]; ok {
			return f(ctx, sourceURL, adapterHint)
		}
	}
	if i := strings.LastIndex(sourceURL, "."); i >= 0 {
		if f, ok := r.byExt[strings.ToLower(sourceURL[i:])]; ok {
			return f(ctx, sourceURL, adapterHint)
		}
	}
	return nil, bberrors.New(bberrors.DataSource, "block.Resolve", "no adapter registered for source").
		WithDetails(map[string]string{"source_url": sourceURL, "adapter_hint": adapterHint})
}

// Block is an attached data source (spec.md §3 "Block"): a stable
// identity, the version the attach captured, its cached schema/row-count,
// and the adapter instance that actually reads it.
type Block struct {
	ID       types.ObjectId
	Version  string
	SourceURL string
	AdapterHint string
	Schema   types.Schema
	NumRows  uint64
	Bytes    uint64
	Adapter  DataAdapter
}

// VersionedID returns the (block_id, version) pair indexes bind to.
func (b Block) VersionedID() types.VersionedBlockId {
	return types.VersionedBlockId{BlockID: b.ID, Version: b.Version}
}
