// Package planner defines the logical plan tree that Operation.Apply (C2
// phase 3) composes and the streaming query façade (C10) assembles and
// hands to the execution engine. Nodes describe what to compute; only
// sqlengine actually executes them.
package planner

import (
	"github.com/bundlebase/bundlebase/internal/block"
	"github.com/bundlebase/bundlebase/pkg/types"
)

// Node is one step of a logical plan. Every node knows the schema its
// output will have, so schema never needs re-deriving at execute time.
type Node interface {
	OutputSchema() types.Schema
}

// ScanNode reads one attached block, optionally narrowed by the
// index-aware table provider (C8) to a specific row-id set and residual
// filter.
type ScanNode struct {
	Block      *block.Block
	Schema     types.Schema
	RowIDs     []uint64 // nil: full scan
	Residual   string
	ResidualParams []any
}

func (n *ScanNode) OutputSchema() types.Schema { return n.Schema }

// UnionNode is the `UNION ALL` of its Inputs, in order — one branch per
// attached block once a bundle has two or more; a bundle with a single
// attached block has a bare ScanNode root instead.
type UnionNode struct {
	Inputs []Node
	Schema types.Schema
}

func (n *UnionNode) OutputSchema() types.Schema { return n.Schema }

// FilterNode keeps rows matching a SQL boolean expression with positional
// $1.. parameters. Never changes the schema (I5).
type FilterNode struct {
	Input  Node
	Expr   string
	Params []any
}

func (n *FilterNode) OutputSchema() types.Schema { return n.Input.OutputSchema() }

// ProjectNode evaluates a SQL select-list (raw SQL text or a column list)
// against its input, producing OutSchema.
type ProjectNode struct {
	Input     Node
	SQLOrCols string
	Params    []any
	OutSchema types.Schema
}

func (n *ProjectNode) OutputSchema() types.Schema { return n.OutSchema }

// RenameNode renames one column, preserving position/type/nullability.
type RenameNode struct {
	Input Node
	From  string
	To    string
}

func (n *RenameNode) OutputSchema() types.Schema {
	return n.Input.OutputSchema().WithRenamed(n.From, n.To)
}

// DropColumnsNode removes named columns from its input.
type DropColumnsNode struct {
	Input Node
	Names []string
}

func (n *DropColumnsNode) OutputSchema() types.Schema {
	return n.Input.OutputSchema().WithoutColumns(n.Names...)
}

// JoinHow enumerates the supported join kinds.
type JoinHow string

const (
	JoinInner JoinHow = "inner"
	JoinLeft  JoinHow = "left"
	JoinRight JoinHow = "right"
	JoinFull  JoinHow = "full"
)

// JoinNode joins Left against Right on Predicate (a SQL boolean
// expression referencing both sides). RightAlias qualifies the right
// side's columns in the joined schema and in Predicate, matching the
// `name` the Join operation was recorded with.
type JoinNode struct {
	Left       Node
	Right      Node
	RightAlias string
	Predicate  string
	How        JoinHow
	Schema     types.Schema
}

func (n *JoinNode) OutputSchema() types.Schema { return n.Schema }

// Plan is the root of a query's logical tree plus the named join "sides"
// that AttachToJoin populates ahead of the Join node that consumes them —
// Join is recorded before its right-hand data necessarily exists, so the
// façade resolves RightAlias against Sides only once assembly completes.
type Plan struct {
	Root  Node
	Sides map[string]Node
}

// NewPlan returns an empty plan with no root — AttachBlock's apply phase
// installs the first block as a bare ScanNode root and wraps the root in
// a UnionNode from the second block on.
func NewPlan() *Plan {
	return &Plan{Sides: map[string]Node{}}
}

// WithRoot returns a copy of p with Root replaced, used by Apply
// implementations that wrap the current root in a new node.
func (p *Plan) WithRoot(n Node) *Plan {
	return &Plan{Root: n, Sides: p.Sides}
}
