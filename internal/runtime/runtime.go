// Package runtime wires the process-wide collaborators every bundle
// needs — the adapter registry, function registry, index manager/cache,
// scan observability, and the index advisor — into a single handle: one
// struct owning shared resources, built by a constructor that validates
// configuration before anything touches storage. There is no HTTP/gRPC
// service lifecycle to start: this is a library entry point, not a
// server.
package runtime

import (
	"context"
	"sync"
	"time"

	"github.com/bundlebase/bundlebase/internal/adapter"
	"github.com/bundlebase/bundlebase/internal/bbconfig"
	"github.com/bundlebase/bundlebase/internal/block"
	"github.com/bundlebase/bundlebase/internal/bundle"
	"github.com/bundlebase/bundlebase/internal/function"
	"github.com/bundlebase/bundlebase/internal/index"
	"github.com/bundlebase/bundlebase/internal/indexadvisor"
	"github.com/bundlebase/bundlebase/internal/indexprovider"
	"github.com/bundlebase/bundlebase/internal/manifest"
	"github.com/bundlebase/bundlebase/internal/observability"
	"github.com/bundlebase/bundlebase/internal/operation"
	"github.com/bundlebase/bundlebase/internal/sqlengine"
	"github.com/bundlebase/bundlebase/internal/storage"
	"github.com/bundlebase/bundlebase/internal/stream"
	"github.com/bundlebase/bundlebase/internal/view"
	"github.com/bundlebase/bundlebase/pkg/types"
)

// Runtime is the process-wide handle a caller builds once and reuses
// across every bundle it opens or creates. Index managers are kept
// per-bundle-root (an index cache is only meaningful against one
// root's Store), everything else is shared.
type Runtime struct {
	cfg       *bbconfig.Config
	adapters  *block.Registry
	functions *function.Registry
	stats     *observability.ScanStats
	advisor   *indexadvisor.Advisor

	indexMu sync.Mutex
	indexes map[string]*index.Manager // bundle root url -> Manager
}

// New builds a Runtime from cfg (bbconfig.Default() if nil), registers
// the built-in CSV/JSON adapters and the function:// scheme, and wires
// an index advisor over a fresh ScanStats recorder.
func New(cfg *bbconfig.Config) (*Runtime, error) {
	if cfg == nil {
		cfg = bbconfig.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.EnsureScratchDir(); err != nil {
		return nil, err
	}

	adapters := block.NewRegistry()
	adapter.RegisterBuiltins(adapters)

	functions := function.NewRegistry()
	function.RegisterAdapter(adapters, functions)

	stats := observability.NewScanStats(time.Hour, 10000)

	rt := &Runtime{
		cfg:       cfg,
		adapters:  adapters,
		functions: functions,
		stats:     stats,
		indexes:   map[string]*index.Manager{},
	}
	dropThreshold := cfg.IndexAdvisorThreshold / 5
	rt.advisor = indexadvisor.New(stats, rt.existingIndexColumns, cfg.IndexAdvisorThreshold, dropThreshold, 16, 5*time.Minute)
	return rt, nil
}

// existingIndexColumns is a placeholder ExistingIndexes feed until a caller
// binds it to a specific open bundle via Advise; the advisor is
// evaluated per-bundle (see Advise), so this only satisfies the
// constructor's required callback shape.
func (rt *Runtime) existingIndexColumns() []string { return nil }

// Config returns the runtime's configuration.
func (rt *Runtime) Config() *bbconfig.Config { return rt.cfg }

// Adapters returns the shared DataAdapter registry, exposed so a host
// program can register additional adapters (e.g. Parquet) before
// opening any bundle.
func (rt *Runtime) Adapters() *block.Registry { return rt.adapters }

// Functions returns the shared function registry a host program
// populates via function.Registry.SetImpl before attaching a
// function:// block.
func (rt *Runtime) Functions() *function.Registry { return rt.functions }

// Stats returns the shared scan-observability recorder.
func (rt *Runtime) Stats() *observability.ScanStats { return rt.stats }

// indexManagerFor returns (creating if needed) the index.Manager bound
// to rootURL's Store.
func (rt *Runtime) indexManagerFor(rootURL string) (*index.Manager, error) {
	rt.indexMu.Lock()
	defer rt.indexMu.Unlock()
	if m, ok := rt.indexes[rootURL]; ok {
		return m, nil
	}
	store, err := storage.Resolve(rootURL)
	if err != nil {
		return nil, err
	}
	m, err := index.NewManager(store, rt.cfg.IndexCacheCapacity)
	if err != nil {
		return nil, err
	}
	rt.indexes[rootURL] = m
	return m, nil
}

// opContext builds the operation.Context a bundle at rootURL replays
// against, binding that root's own index manager.
func (rt *Runtime) opContext(rootURL string) (*operation.Context, error) {
	idx, err := rt.indexManagerFor(rootURL)
	if err != nil {
		return nil, err
	}
	return &operation.Context{Registry: rt.adapters, Indexes: idx}, nil
}

// Open replays an existing bundle at rootURL (spec.md §4.3 "open").
func (rt *Runtime) Open(ctx context.Context, rootURL string) (*bundle.Bundle, error) {
	rc, err := rt.opContext(rootURL)
	if err != nil {
		return nil, err
	}
	return bundle.Load(ctx, rootURL, rc)
}

// Create initializes a brand new bundle at rootURL (spec.md §4.3
// "create").
func (rt *Runtime) Create(ctx context.Context, rootURL string) (*bundle.Bundle, error) {
	rc, err := rt.opContext(rootURL)
	if err != nil {
		return nil, err
	}
	return bundle.Create(ctx, rootURL, rc)
}

// Provider builds an index-aware table provider (C8) bound to b's root,
// for internal/sqlengine to execute scans through.
func (rt *Runtime) Provider(rootURL string) (*indexprovider.Provider, error) {
	idx, err := rt.indexManagerFor(rootURL)
	if err != nil {
		return nil, err
	}
	return indexprovider.New(idx, rt.stats), nil
}

// Query executes b's current logical plan (spec.md §4.10's
// "execute_stream") and returns a streaming result. It is the one place
// C8's index-aware provider and C10's execution engine meet a live
// bundle: the provider is bound to b's own storage root so the LRU
// index cache and scan stats it feeds are shared across every query
// issued against that root.
func (rt *Runtime) Query(ctx context.Context, b *bundle.Bundle) (stream.BatchStream, error) {
	provider, err := rt.Provider(b.RootURL())
	if err != nil {
		return nil, err
	}
	opts := sqlengine.Options{
		Provider:  provider,
		IndexDefs: b.IndexDefs(),
		BatchSize: rt.cfg.StreamBatchSize,
	}
	return sqlengine.Execute(ctx, b.Plan().Root, opts)
}

// Advise evaluates the index advisor against b's currently registered
// index columns, returning recommended CreateIndex/DropIndex actions
// the caller applies via the normal Builder API (spec.md's Non-goals
// never bind here: the advisor makes no manifest changes itself).
func (rt *Runtime) Advise(existingColumns []string) []indexadvisor.Action {
	rt.advisor.SetExisting(func() []string { return existingColumns })
	return rt.advisor.Evaluate()
}

// AttachView captures source's pending operations into a new view
// subtree of parent and returns the view's id and resulting Bundle
// (spec.md §4.9). The caller still records the returned id under a name
// via parent.AttachView before committing parent. The view subtree's
// index manager is bound to the parent root's Store, since a view's
// physical index files are a strict subset of what the parent root
// already hosts.
func (rt *Runtime) AttachView(ctx context.Context, parent, source *bundle.BundleBuilder, message string) (types.ObjectId, *bundle.Bundle, error) {
	rc, err := rt.opContext(parent.RootURL())
	if err != nil {
		return "", nil, err
	}
	return view.Attach(ctx, parent, source, message, rc)
}

// OpenView loads an already-attached view by its parent root and id.
func (rt *Runtime) OpenView(ctx context.Context, parentRootURL string, viewID types.ObjectId) (*bundle.Bundle, error) {
	rc, err := rt.opContext(parentRootURL)
	if err != nil {
		return nil, err
	}
	return view.Open(ctx, parentRootURL, viewID, rc)
}

// ManifestStore opens a raw manifest.Store over rootURL without
// replaying it into a Bundle, for view/admin tooling (internal/view's
// subtree commit writes) that needs direct commit access.
func (rt *Runtime) ManifestStore(rootURL string) (*manifest.Store, error) {
	return manifest.Open(rootURL)
}
