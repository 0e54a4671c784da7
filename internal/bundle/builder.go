package bundle

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/bundlebase/bundlebase/internal/bberrors"
	"github.com/bundlebase/bundlebase/internal/manifest"
	"github.com/bundlebase/bundlebase/internal/operation"
	"github.com/bundlebase/bundlebase/internal/planner"
	"github.com/bundlebase/bundlebase/internal/source"
	"github.com/bundlebase/bundlebase/internal/state"
	"github.com/bundlebase/bundlebase/internal/storage"
	"github.com/bundlebase/bundlebase/pkg/types"
)

// BundleBuilder is the mutable façade (C5): every method below records
// one Operation, runs its three-phase lifecycle against a private
// copy-on-write State, and accumulates the result into a pending Change
// that Commit later persists as a single manifest commit.
type BundleBuilder struct {
	store *manifest.Store
	rc    *operation.Context

	state *state.State
	plan  *planner.Plan

	pending []operation.Operation
	sources []source.Source
}

// apply runs op's three-phase lifecycle and, on success, folds it into
// the builder's pending change.
func (b *BundleBuilder) apply(op operation.Operation) error {
	next, nextPlan, err := operation.Run(context.Background(), b.rc, op, b.state, b.plan)
	if err != nil {
		return err
	}
	b.state, b.plan = next, nextPlan
	b.pending = append(b.pending, op)
	return nil
}

// DefinePack records the origin-marker operation. Only meaningful on a
// fresh, commit-less bundle.
func (b *BundleBuilder) DefinePack() error {
	return b.apply(&operation.DefinePack{Type_: operation.TypeDefinePack})
}

// Attach resolves sourceURL via the adapter registry, captures its
// current schema/row-count/byte-size, and records an AttachBlock
// operation (spec.md §4.2 "AttachBlock").
func (b *BundleBuilder) Attach(ctx context.Context, sourceURL, adapterHint string) (types.ObjectId, error) {
	adapter, err := b.rc.Registry.Resolve(ctx, sourceURL, adapterHint)
	if err != nil {
		return "", err
	}
	schema, err := adapter.Schema(ctx)
	if err != nil {
		return "", err
	}
	numRows, err := adapter.ApproxRowCount(ctx)
	if err != nil {
		return "", err
	}
	bytes, err := adapter.ByteSize(ctx)
	if err != nil {
		return "", err
	}
	blockID := types.NewObjectId()
	op := &operation.AttachBlock{
		Type_:       operation.TypeAttachBlock,
		SourceURL:   sourceURL,
		AdapterHint: adapterHint,
		BlockID:     string(blockID),
		Version:     uuid.NewString(),
		NumRows:     numRows,
		Bytes:       bytes,
		Schema:      schema,
	}
	if err := b.apply(op); err != nil {
		return "", err
	}
	return blockID, nil
}

// RemoveColumns drops names from the schema.
func (b *BundleBuilder) RemoveColumns(names ...string) error {
	return b.apply(&operation.RemoveColumns{Type_: operation.TypeRemoveColumns, Names: names})
}

// RenameColumn renames a schema column.
func (b *BundleBuilder) RenameColumn(from, to string) error {
	return b.apply(&operation.RenameColumn{Type_: operation.TypeRenameColumn, From: from, To: to})
}

// Filter narrows rows by a SQL boolean expression with positional
// $1.. parameters.
func (b *BundleBuilder) Filter(sqlExpr string, params ...any) error {
	return b.apply(&operation.Filter{Type_: operation.TypeFilter, SQL: sqlExpr, Params: params})
}

// Select projects a bare column list or a full select statement.
func (b *BundleBuilder) Select(sqlOrColumns string, params ...any) error {
	return b.apply(&operation.Select{Type_: operation.TypeSelect, SQLOrCols: sqlOrColumns, Params: params})
}

// Join resolves sourceURL's adapter and probes its schema up front — the
// same shape as Attach — so the recorded Join operation carries the
// right side's schema already resolved and Reconfigure never needs to
// touch the adapter beyond a cheap Resolve.
func (b *BundleBuilder) Join(ctx context.Context, name, sourceURL, predicate, how string) error {
	adapter, err := b.rc.Registry.Resolve(ctx, sourceURL, "")
	if err != nil {
		return err
	}
	schema, err := adapter.Schema(ctx)
	if err != nil {
		return err
	}
	return b.apply(&operation.Join{
		Type_: operation.TypeJoin, Name: name, SourceURL: sourceURL, Predicate: predicate, How: how,
		RightSchema: schema,
	})
}

// AttachToJoin supplies (or replaces) a named join side's data source,
// probing its schema up front for the same reason Join does.
func (b *BundleBuilder) AttachToJoin(ctx context.Context, name, sourceURL string) error {
	adapter, err := b.rc.Registry.Resolve(ctx, sourceURL, "")
	if err != nil {
		return err
	}
	schema, err := adapter.Schema(ctx)
	if err != nil {
		return err
	}
	return b.apply(&operation.AttachToJoin{
		Type_: operation.TypeAttachToJoin, Name: name, SourceURL: sourceURL, Schema: schema,
	})
}

// SetName sets the bundle's display name.
func (b *BundleBuilder) SetName(name string) error {
	return b.apply(&operation.SetName{Type_: operation.TypeSetName, S: name})
}

// SetDescription sets the bundle's free-text description.
func (b *BundleBuilder) SetDescription(desc string) error {
	return b.apply(&operation.SetDescription{Type_: operation.TypeSetDescription, S: desc})
}

// DefineSource declares a glob-matched external location future Attach
// calls can discover pending files under. patterns defaults to
// ["**/*"] when omitted.
func (b *BundleBuilder) DefineSource(url string, patterns ...string) error {
	if len(patterns) == 0 {
		patterns = []string{"**/*"}
	}
	op := &operation.DefineSource{
		Type_: operation.TypeDefineSource, ID: string(types.NewObjectId()), URL: url, Patterns: patterns,
	}
	if err := b.apply(op); err != nil {
		return err
	}
	b.sources = append(b.sources, op.AsSource())
	return nil
}

// PendingFiles reports which files under the bundle's declared source
// have not yet been attached via AttachBlock, by source_url. Returns an
// empty slice if no source has been declared.
func (b *BundleBuilder) PendingFiles(ctx context.Context) ([]string, error) {
	if len(b.sources) == 0 {
		return nil, nil
	}
	src := b.sources[0]
	store, err := storage.Resolve(src.URL)
	if err != nil {
		return nil, err
	}
	prefix := src.URL + "/"
	attached := make(map[string]bool, len(b.state.Blocks))
	for _, blk := range b.state.Blocks {
		if rel, ok := strings.CutPrefix(blk.SourceURL, prefix); ok {
			attached[rel] = true
		}
	}
	return src.PendingFiles(ctx, store, attached)
}

// AttachPending attaches every currently pending file under the
// bundle's declared source, in sorted order, returning the new
// block ids.
func (b *BundleBuilder) AttachPending(ctx context.Context) ([]types.ObjectId, error) {
	pending, err := b.PendingFiles(ctx)
	if err != nil {
		return nil, err
	}
	if len(pending) == 0 {
		return nil, nil
	}
	src := b.sources[0]
	ids := make([]types.ObjectId, 0, len(pending))
	for _, rel := range pending {
		fullURL := src.URL + "/" + rel
		id, err := b.Attach(ctx, fullURL, "")
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// DefineFunction records a named function's output schema. The
// implementation itself is registered separately, out of band (spec.md
// §4.11).
func (b *BundleBuilder) DefineFunction(name string, outputSchema types.Schema) error {
	return b.apply(&operation.DefineFunction{
		Type_: operation.TypeDefineFunction, Name: name, OutputSchema: outputSchema,
	})
}

// CreateIndex declares a new, empty column index and returns its id.
func (b *BundleBuilder) CreateIndex(column string) (types.ObjectId, error) {
	id := types.NewObjectId()
	if err := b.apply(&operation.CreateIndex{Type_: operation.TypeCreateIndex, Column: column, ID: string(id)}); err != nil {
		return "", err
	}
	return id, nil
}

// IndexBlocks builds the physical index for indexID over exactly the
// given blocks, choosing a fresh storage path (spec.md §4.7).
func (b *BundleBuilder) IndexBlocks(indexID types.ObjectId, blocks []types.VersionedBlockId) error {
	return b.apply(&operation.IndexBlocks{
		Type_:      operation.TypeIndexBlocks,
		IndexID:    string(indexID),
		Blocks:     blocks,
		LayoutPath: types.IndexFilePath(indexID, uuid.NewString()),
	})
}

// RebuildIndex is the convenience form of IndexBlocks: it covers every
// block attached to the bundle that the index does not already cover,
// matching the façade's documented `rebuild_index`.
func (b *BundleBuilder) RebuildIndex(column string) error {
	def, ok := b.state.IndexDefByColumn(column)
	if !ok {
		return bberrors.New(bberrors.Validation, "BundleBuilder.RebuildIndex", "no index declared for column").
			WithDetails(map[string]string{"column": column})
	}
	var missing []types.VersionedBlockId
	for _, blk := range b.state.Blocks {
		v := blk.VersionedID()
		if !def.Covers(v) {
			missing = append(missing, v)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	return b.IndexBlocks(def.ID, missing)
}

// DropIndex removes an index declaration.
func (b *BundleBuilder) DropIndex(id types.ObjectId) error {
	return b.apply(&operation.DropIndex{Type_: operation.TypeDropIndex, ID: string(id)})
}

// AttachView registers a name -> view_id mapping. The view subtree
// itself is created by internal/view's higher-level attach-view
// dynamic, which calls this once the subtree's own commits exist.
func (b *BundleBuilder) AttachView(name string, viewID types.ObjectId) error {
	return b.apply(&operation.AttachView{Type_: operation.TypeAttachView, Name: name, ViewID: string(viewID)})
}

// Status reports the operations recorded since the last Commit.
func (b *BundleBuilder) Status() []operation.Operation {
	out := make([]operation.Operation, len(b.pending))
	copy(out, b.pending)
	return out
}

// RootURL returns the storage root the builder will commit against.
func (b *BundleBuilder) RootURL() string { return b.store.RootURL() }

// State exposes the builder's working state, for the same
// in-module reasons Bundle.State does.
func (b *BundleBuilder) State() *state.State { return b.state }

// Plan exposes the builder's working plan.
func (b *BundleBuilder) Plan() *planner.Plan { return b.plan }

// Commit persists every pending operation as one new manifest commit
// and returns the resulting read-only Bundle. A builder with no pending
// operations still produces a (trivial) commit.
func (b *BundleBuilder) Commit(ctx context.Context, message string) (*Bundle, error) {
	version, err := b.store.NextVersion(ctx)
	if err != nil {
		return nil, err
	}
	envs, err := operation.EncodeAll(b.pending)
	if err != nil {
		return nil, err
	}
	change := manifest.Change{ID: uuid.NewString(), Description: message, Operations: envs}
	commit := manifest.Commit{
		Version:   version,
		CreatedAt: time.Now().UTC(),
		Message:   message,
		Changes:   []manifest.Change{change},
	}
	if _, err := b.store.WriteCommit(ctx, commit); err != nil {
		return nil, err
	}
	return &Bundle{store: b.store, rc: b.rc, state: b.state, plan: b.plan}, nil
}
