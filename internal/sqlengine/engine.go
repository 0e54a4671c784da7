// Package sqlengine implements C10: the streaming execution engine that
// walks a logical internal/planner.Plan and produces an
// internal/stream.BatchStream. Base scans are pushed through C8's
// index-aware table provider. Filters, joins, and projections whose
// select carries a WHERE clause are materialized through throwaway
// SQLite connections with no pooling — these tables never outlive one
// batch or one join. Rename, column drop and plain column projection
// run in Go.
package sqlengine

import (
	"context"
	"fmt"

	"github.com/bundlebase/bundlebase/internal/bberrors"
	"github.com/bundlebase/bundlebase/internal/indexprovider"
	"github.com/bundlebase/bundlebase/internal/planner"
	"github.com/bundlebase/bundlebase/internal/stream"
	"github.com/bundlebase/bundlebase/pkg/types"
)

// Options carries the collaborators Execute needs beyond the plan tree
// itself: the index-aware provider and the bundle's currently
// registered index definitions.
type Options struct {
	Provider  *indexprovider.Provider
	IndexDefs []types.IndexDefinition
	BatchSize int
}

// Execute walks n and returns a pull-based stream of its result. A nil
// n (an empty bundle with nothing attached yet) yields an immediately
// exhausted stream.
func Execute(ctx context.Context, n planner.Node, opts Options) (stream.BatchStream, error) {
	switch node := n.(type) {
	case nil:
		return stream.FromSlice(nil), nil

	case *planner.ScanNode:
		return opts.Provider.Scan(ctx, node.Block, opts.IndexDefs, "", nil, nil)

	case *planner.UnionNode:
		children := make([]stream.BatchStream, 0, len(node.Inputs))
		for _, in := range node.Inputs {
			s, err := Execute(ctx, in, opts)
			if err != nil {
				return nil, err
			}
			children = append(children, s)
		}
		return stream.NewConcatStream(children...), nil

	case *planner.FilterNode:
		if leaves, ok := scanLeaves(node.Input); ok {
			children := make([]stream.BatchStream, 0, len(leaves))
			for _, leaf := range leaves {
				s, err := opts.Provider.Scan(ctx, leaf.Block, opts.IndexDefs, node.Expr, node.Params, nil)
				if err != nil {
					return nil, err
				}
				filtered, err := newFilterStream(s, node.Input.OutputSchema(), node.Expr, node.Params)
				if err != nil {
					s.Close()
					return nil, err
				}
				children = append(children, filtered)
			}
			if len(children) == 1 {
				return children[0], nil
			}
			return stream.NewConcatStream(children...), nil
		}
		inner, err := Execute(ctx, node.Input, opts)
		if err != nil {
			return nil, err
		}
		return newFilterStream(inner, node.Input.OutputSchema(), node.Expr, node.Params)

	case *planner.ProjectNode:
		inner, err := Execute(ctx, node.Input, opts)
		if err != nil {
			return nil, err
		}
		return newProjectStream(inner, node.Input.OutputSchema(), node.OutSchema, node.SQLOrCols, node.Params)

	case *planner.RenameNode:
		inner, err := Execute(ctx, node.Input, opts)
		if err != nil {
			return nil, err
		}
		return newRenameStream(inner, node.From, node.To, node.OutputSchema()), nil

	case *planner.DropColumnsNode:
		inner, err := Execute(ctx, node.Input, opts)
		if err != nil {
			return nil, err
		}
		return newDropStream(inner, node.OutputSchema().Names()), nil

	case *planner.JoinNode:
		return executeJoin(ctx, node, opts)

	default:
		return nil, bberrors.New(bberrors.Execution, "sqlengine.Execute", "unsupported plan node").
			WithDetails(map[string]string{"type": fmt.Sprintf("%T", n)})
	}
}

// scanLeaves reports whether n is a pure tree of ScanNode/UnionNode —
// the shape a Filter directly above an attach-union takes — and, if so,
// returns every leaf ScanNode so the filter can be pushed down per
// block instead of materialized after a full union (spec.md §4.8).
func scanLeaves(n planner.Node) ([]*planner.ScanNode, bool) {
	switch x := n.(type) {
	case *planner.ScanNode:
		return []*planner.ScanNode{x}, true
	case *planner.UnionNode:
		var out []*planner.ScanNode
		for _, in := range x.Inputs {
			leaves, ok := scanLeaves(in)
			if !ok {
				return nil, false
			}
			out = append(out, leaves...)
		}
		return out, true
	default:
		return nil, false
	}
}
