package operation

import (
	"context"

	"github.com/bundlebase/bundlebase/internal/bberrors"
	"github.com/bundlebase/bundlebase/internal/block"
	"github.com/bundlebase/bundlebase/internal/planner"
	"github.com/bundlebase/bundlebase/internal/sqlparser"
	"github.com/bundlebase/bundlebase/internal/state"
	"github.com/bundlebase/bundlebase/pkg/types"
)

const (
	TypeFilter       = "filter"
	TypeSelect       = "select"
	TypeJoin         = "join"
	TypeAttachToJoin = "attachToJoin"
)

// Filter narrows rows by a SQL boolean expression. Never changes the
// schema; marks the row-count estimate approximate (spec.md §4.2).
type Filter struct {
	Type_  string `yaml:"type"`
	SQL    string `yaml:"sqlExpr"`
	Params []any  `yaml:"params"`
}

func (o *Filter) Type() string { return TypeFilter }

func (o *Filter) Check(s *state.State) error {
	expr, err := sqlparser.ParseExpr(o.SQL)
	if err != nil {
		return bberrors.Wrap(bberrors.Validation, "Filter.Check", "invalid SQL", err)
	}
	for _, col := range sqlparser.ReferencedColumns(expr) {
		if !s.Schema.Has(col) {
			return bberrors.New(bberrors.Validation, "Filter.Check", "unknown column").
				WithDetails(map[string]string{"column": col})
		}
	}
	if n := sqlparser.MaxPlaceholder(expr); n > len(o.Params) {
		return bberrors.New(bberrors.Validation, "Filter.Check", "not enough params for placeholders")
	}
	return nil
}

func (o *Filter) Reconfigure(ctx context.Context, rc *Context, s *state.State) (*state.State, error) {
	next := s.Clone()
	next.RowCount.Approximate = true
	return next, nil
}

func (o *Filter) Apply(plan *planner.Plan, s *state.State) (*planner.Plan, error) {
	return plan.WithRoot(&planner.FilterNode{Input: plan.Root, Expr: o.SQL, Params: o.Params}), nil
}

// Select projects a bare column list or a full "select ... [where ...]"
// statement. Preserves the row-count estimate.
type Select struct {
	Type_     string `yaml:"type"`
	SQLOrCols string `yaml:"sqlOrColumns"`
	Params    []any  `yaml:"params"`
}

func (o *Select) Type() string { return TypeSelect }

func (o *Select) parsed() (*sqlparser.SelectStatement, error) {
	return sqlparser.ParseSelect(o.SQLOrCols)
}

func (o *Select) Check(s *state.State) error {
	stmt, err := o.parsed()
	if err != nil {
		return bberrors.Wrap(bberrors.Validation, "Select.Check", "invalid select", err)
	}
	if !stmt.Star {
		for _, col := range stmt.Columns {
			if !s.Schema.Has(col) {
				return bberrors.New(bberrors.Validation, "Select.Check", "unknown column").
					WithDetails(map[string]string{"column": col})
			}
		}
	}
	if stmt.Where != nil {
		if n := sqlparser.MaxPlaceholder(stmt.Where); n > len(o.Params) {
			return bberrors.New(bberrors.Validation, "Select.Check", "not enough params for placeholders")
		}
	}
	return nil
}

func (o *Select) outSchema(s *state.State) (types.Schema, error) {
	stmt, err := o.parsed()
	if err != nil {
		return types.Schema{}, err
	}
	if stmt.Star {
		return s.Schema, nil
	}
	out := types.NewSchema()
	for _, col := range stmt.Columns {
		typ, _ := s.Schema.TypeOf(col)
		out = out.WithColumn(col, typ, s.Schema.Nullable(col))
	}
	return out, nil
}

func (o *Select) Reconfigure(ctx context.Context, rc *Context, s *state.State) (*state.State, error) {
	out, err := o.outSchema(s)
	if err != nil {
		return nil, err
	}
	next := s.Clone()
	next.Schema = out
	return next, nil
}

func (o *Select) Apply(plan *planner.Plan, s *state.State) (*planner.Plan, error) {
	return plan.WithRoot(&planner.ProjectNode{
		Input: plan.Root, SQLOrCols: o.SQLOrCols, Params: o.Params, OutSchema: s.Schema,
	}), nil
}

// Join attaches a right-hand source and joins it against the current
// plan on predicate. Widens the schema with the right side's columns,
// qualified by name; the row-count estimate becomes approximate and
// unknown-magnitude (spec.md §4.2 "Join").
type Join struct {
	Type_       string       `yaml:"type"`
	Name        string       `yaml:"name"`
	SourceURL   string       `yaml:"sourceUrl"`
	Predicate   string       `yaml:"predicate"`
	How         string       `yaml:"how"`
	RightSchema types.Schema `yaml:"rightSchema"`

	rightBlock *block.Block
}

func (o *Join) Type() string { return TypeJoin }

func (o *Join) Check(s *state.State) error {
	if o.Name == "" || o.SourceURL == "" {
		return bberrors.New(bberrors.Validation, "Join.Check", "name and sourceUrl must not be empty")
	}
	expr, err := sqlparser.ParseExpr(o.Predicate)
	if err != nil {
		return bberrors.Wrap(bberrors.Validation, "Join.Check", "invalid predicate", err)
	}
	leftHit, rightHit := false, false
	for _, col := range sqlparser.ReferencedColumns(expr) {
		if s.Schema.Has(col) {
			leftHit = true
		} else {
			rightHit = true
		}
	}
	if !leftHit || !rightHit {
		return bberrors.New(bberrors.Validation, "Join.Check", "predicate must reference both sides")
	}
	switch o.How {
	case string(planner.JoinInner), string(planner.JoinLeft), string(planner.JoinRight), string(planner.JoinFull):
	default:
		return bberrors.New(bberrors.Validation, "Join.Check", "unrecognized join kind").
			WithDetails(map[string]string{"how": o.How})
	}
	return nil
}

// Reconfigure resolves an adapter for SourceURL (a cheap local handle,
// not yet I/O) to carry through to Apply's ScanNode, but never calls
// adapter.Schema itself: RightSchema was already probed once, at record
// time, by BundleBuilder.Join, and is replayed from the manifest here so
// reopening a bundle never re-triggers that adapter I/O.
func (o *Join) Reconfigure(ctx context.Context, rc *Context, s *state.State) (*state.State, error) {
	adapter, err := rc.Registry.Resolve(ctx, o.SourceURL, "")
	if err != nil {
		return nil, err
	}
	o.rightBlock = &block.Block{SourceURL: o.SourceURL, Schema: o.RightSchema, Adapter: adapter}

	next := s.Clone()
	for _, name := range o.RightSchema.Names() {
		typ, _ := o.RightSchema.TypeOf(name)
		next.Schema = next.Schema.WithColumn(o.Name+"."+name, typ, true)
	}
	next.RowCount = state.RowCount{Value: 0, Approximate: true}
	return next, nil
}

func (o *Join) Apply(plan *planner.Plan, s *state.State) (*planner.Plan, error) {
	right := planner.Node(&planner.ScanNode{Block: o.rightBlock, Schema: o.RightSchema})
	if side, ok := plan.Sides[o.Name]; ok {
		right = side
	}
	return plan.WithRoot(&planner.JoinNode{
		Left: plan.Root, Right: right, RightAlias: o.Name,
		Predicate: o.Predicate, How: planner.JoinHow(o.How), Schema: s.Schema,
	}), nil
}

// AttachToJoin supplies (or replaces) the right-hand source for a join
// named by a prior or forthcoming Join operation.
type AttachToJoin struct {
	Type_     string       `yaml:"type"`
	Name      string       `yaml:"name"`
	SourceURL string       `yaml:"sourceUrl"`
	Schema    types.Schema `yaml:"schema"`

	adapter block.DataAdapter
}

func (o *AttachToJoin) Type() string { return TypeAttachToJoin }

func (o *AttachToJoin) Check(s *state.State) error {
	if o.Name == "" || o.SourceURL == "" {
		return bberrors.New(bberrors.Validation, "AttachToJoin.Check", "name and sourceUrl must not be empty")
	}
	return nil
}

// Reconfigure resolves an adapter handle for SourceURL but, like Join,
// never probes its schema: Schema was already resolved once at record
// time by BundleBuilder.AttachToJoin and replayed here from the manifest.
func (o *AttachToJoin) Reconfigure(ctx context.Context, rc *Context, s *state.State) (*state.State, error) {
	adapter, err := rc.Registry.Resolve(ctx, o.SourceURL, "")
	if err != nil {
		return nil, err
	}
	o.adapter = adapter
	return s.Clone(), nil
}

func (o *AttachToJoin) Apply(plan *planner.Plan, s *state.State) (*planner.Plan, error) {
	plan.Sides[o.Name] = &planner.ScanNode{
		Block:  &block.Block{SourceURL: o.SourceURL, Schema: o.Schema, Adapter: o.adapter},
		Schema: o.Schema,
	}
	return plan, nil
}
