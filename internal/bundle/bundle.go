// Package bundle implements C4 (Bundle, read-only) and C5
// (BundleBuilder, mutable): the two-tier façade spec.md §4.3 describes,
// assembled from internal/manifest's commit replay, internal/operation's
// three-phase lifecycle, and internal/state's copy-on-write BundleState.
package bundle

import (
	"context"

	"github.com/bundlebase/bundlebase/internal/manifest"
	"github.com/bundlebase/bundlebase/internal/operation"
	"github.com/bundlebase/bundlebase/internal/planner"
	"github.com/bundlebase/bundlebase/internal/state"
	"github.com/bundlebase/bundlebase/pkg/types"
)

// Bundle is the read-only view over a fully replayed bundle root: its
// schema, row-count estimate, view/index tables, and the logical plan
// assembled from every operation in its from-chain.
type Bundle struct {
	store *manifest.Store
	rc    *operation.Context
	state *state.State
	plan  *planner.Plan
}

// Load replays rootURL's full from-chain into a Bundle (spec.md §4.1,
// §4.3 "open(url)"). rc supplies the adapter registry and index manager
// every AttachBlock/IndexBlocks operation in the chain needs to
// reconfigure against.
func Load(ctx context.Context, rootURL string, rc *operation.Context) (*Bundle, error) {
	store, err := manifest.Open(rootURL)
	if err != nil {
		return nil, err
	}
	commits, err := store.LoadChain(ctx, nil)
	if err != nil {
		return nil, err
	}
	s := state.New()
	plan := planner.NewPlan()
	for _, c := range commits {
		for _, change := range c.Changes {
			ops, err := operation.DecodeAll(change.Operations)
			if err != nil {
				return nil, err
			}
			for _, op := range ops {
				s, plan, err = operation.Run(ctx, rc, op, s, plan)
				if err != nil {
					return nil, err
				}
			}
		}
	}
	return &Bundle{store: store, rc: rc, state: s, plan: plan}, nil
}

// Create returns a fresh, empty bundle at rootURL without writing any
// commit; the first commit of a builder over it becomes version 1
// (spec.md §4.3 "create(url)").
func Create(ctx context.Context, rootURL string, rc *operation.Context) (*Bundle, error) {
	store, err := manifest.Open(rootURL)
	if err != nil {
		return nil, err
	}
	return &Bundle{store: store, rc: rc, state: state.New(), plan: planner.NewPlan()}, nil
}

// RootURL returns the bundle's storage root.
func (b *Bundle) RootURL() string { return b.store.RootURL() }

// Schema returns the bundle's current column schema.
func (b *Bundle) Schema() types.Schema { return b.state.Schema }

// RowCount returns the bundle's row-count estimate.
func (b *Bundle) RowCount() state.RowCount { return b.state.RowCount }

// Name returns the bundle's display name.
func (b *Bundle) Name() string { return b.state.Name }

// Description returns the bundle's free-text description.
func (b *Bundle) Description() string { return b.state.Description }

// Views returns the bundle's name -> view_id table.
func (b *Bundle) Views() map[string]types.ObjectId {
	out := make(map[string]types.ObjectId, len(b.state.Views))
	for k, v := range b.state.Views {
		out[k] = v
	}
	return out
}

// IndexDefs returns the bundle's currently registered column indexes.
func (b *Bundle) IndexDefs() []types.IndexDefinition {
	out := make([]types.IndexDefinition, len(b.state.IndexDefs))
	copy(out, b.state.IndexDefs)
	return out
}

// History returns the bundle's commit history, newest-first, following
// the from-chain into parent bundles (spec.md §4.1).
func (b *Bundle) History(ctx context.Context) ([]manifest.CommitHeader, error) {
	return b.store.History(ctx)
}

// Plan returns the logical plan tree execute_stream hands to the
// execution engine (C10 consumes this; it is not itself part of the
// public library surface).
func (b *Bundle) Plan() *planner.Plan { return b.plan }

// State exposes the bundle's replayed state to collaborators in the
// same module that need direct access (C8's table provider, C10's
// execution engine) without re-deriving it.
func (b *Bundle) State() *state.State { return b.state }

// Extend opens a BundleBuilder over a private clone of b's state and
// plan, ready to accumulate operations for a pending commit (spec.md
// §4.3 "Bundle::extend").
func (b *Bundle) Extend() *BundleBuilder {
	sides := make(map[string]planner.Node, len(b.plan.Sides))
	for k, v := range b.plan.Sides {
		sides[k] = v
	}
	return &BundleBuilder{
		store: b.store,
		rc:    b.rc,
		state: b.state.Clone(),
		plan:  &planner.Plan{Root: b.plan.Root, Sides: sides},
	}
}
