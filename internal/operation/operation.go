// Package operation implements C2: the typed sum of operation variants
// and their three-phase lifecycle (check, reconfigure, apply), plus the
// YAML registry that encodes/decodes them through
// internal/manifest.OperationEnvelope.
package operation

import (
	"context"

	"github.com/bundlebase/bundlebase/internal/block"
	"github.com/bundlebase/bundlebase/internal/index"
	"github.com/bundlebase/bundlebase/internal/planner"
	"github.com/bundlebase/bundlebase/internal/state"
)

// Context carries the shared runtime handles an operation's reconfigure
// phase needs but that don't belong on state.State because they are
// process- or bundle-root-wide rather than per-revision: the adapter
// registry (to materialize a new Block) and the index manager (to build
// and store a column index's physical bytes).
type Context struct {
	Registry *block.Registry
	Indexes  *index.Manager
}

// Operation is the three-phase contract every variant implements
// (spec.md §4.2).
type Operation interface {
	// Type returns the YAML `type` tag this variant encodes under.
	Type() string

	// Check validates the operation against the current state without
	// touching I/O or the query plan.
	Check(s *state.State) error

	// Reconfigure deterministically updates a clone of s and returns it.
	Reconfigure(ctx context.Context, rc *Context, s *state.State) (*state.State, error)

	// Apply extends plan with this operation's contribution. The state
	// passed in is the post-reconfigure state, so Apply can look up the
	// Block/IndexDefinition it needs without recomputing anything.
	Apply(plan *planner.Plan, s *state.State) (*planner.Plan, error)
}

// Run executes all three phases in order, returning the updated state
// and plan, or the first error encountered (check failures never
// record — callers must not treat s/plan as valid on error).
func Run(ctx context.Context, rc *Context, op Operation, s *state.State, plan *planner.Plan) (*state.State, *planner.Plan, error) {
	if err := op.Check(s); err != nil {
		return nil, nil, err
	}
	next, err := op.Reconfigure(ctx, rc, s)
	if err != nil {
		return nil, nil, err
	}
	nextPlan, err := op.Apply(plan, next)
	if err != nil {
		return nil, nil, err
	}
	return next, nextPlan, nil
}
