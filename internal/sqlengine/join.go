package sqlengine

import (
	"context"
	"database/sql"
	"strings"

	"github.com/bundlebase/bundlebase/internal/bberrors"
	"github.com/bundlebase/bundlebase/internal/planner"
	"github.com/bundlebase/bundlebase/internal/sqlparser"
	"github.com/bundlebase/bundlebase/internal/stream"
	"github.com/bundlebase/bundlebase/pkg/types"
)

// executeJoin builds node.Right into a SQLite table named node.RightAlias
// — the join's build side — then returns a joinStream that pulls node.Left
// one batch at a time and probes it against that table. Only the current
// left batch and the current result batch are ever resident in Go heap
// memory at once; the right side lives in SQLite's own page cache, not in
// a Go slice, so peak heap usage stays bounded by batch size regardless of
// either side's row count.
func executeJoin(ctx context.Context, node *planner.JoinNode, opts Options) (stream.BatchStream, error) {
	db, err := openTemp(ctx)
	if err != nil {
		return nil, err
	}

	leftSchema := node.Left.OutputSchema()
	rightSchema := node.Right.OutputSchema()

	if err := createTable(ctx, db, node.RightAlias, rightSchema); err != nil {
		db.Close()
		return nil, err
	}
	rightStream, err := Execute(ctx, node.Right, opts)
	if err != nil {
		db.Close()
		return nil, err
	}
	if err := stream.Drain(ctx, rightStream, func(b stream.Batch) error {
		return insertRows(ctx, db, node.RightAlias, rightSchema, batchToRows(b))
	}); err != nil {
		db.Close()
		return nil, err
	}

	if err := createTable(ctx, db, "left", leftSchema); err != nil {
		db.Close()
		return nil, err
	}

	expr, err := sqlparser.ParseExpr(node.Predicate)
	if err != nil {
		db.Close()
		return nil, bberrors.Wrap(bberrors.Validation, "sqlengine.executeJoin", "parsing join predicate", err)
	}
	expr = qualifyBareColumns(expr, "left")
	predicateSQL, err := sqlparser.RenderSQLite(expr, 0)
	if err != nil {
		db.Close()
		return nil, err
	}

	selectList := make([]string, 0, node.Schema.Len())
	for _, name := range node.Schema.Names() {
		prefix := node.RightAlias + "."
		if strings.HasPrefix(name, prefix) {
			col := strings.TrimPrefix(name, prefix)
			selectList = append(selectList, quoteIdent(node.RightAlias)+"."+quoteIdent(col)+" AS "+quoteIdent(name))
			continue
		}
		selectList = append(selectList, "left."+quoteIdent(name)+" AS "+quoteIdent(name))
	}

	query := "SELECT " + strings.Join(selectList, ", ") +
		" FROM left " + sqlJoinKeyword(node.How) + " " + quoteIdent(node.RightAlias) +
		" ON " + predicateSQL

	leftStream, err := Execute(ctx, node.Left, opts)
	if err != nil {
		db.Close()
		return nil, err
	}

	return &joinStream{
		db:         db,
		left:       leftStream,
		leftSchema: leftSchema,
		query:      query,
		outSchema:  node.Schema,
		batchSize:  opts.BatchSize,
	}, nil
}

// joinStream probes node.Left against an already-built right-side table
// one left batch at a time: each Next replaces the "left" table's contents
// with the next left batch, reruns the join query, and hands back the
// matching rows chunked to batchSize. A left batch that matches nothing
// is skipped and the next one pulled, so Next never returns an empty,
// non-nil batch.
type joinStream struct {
	db         *sql.DB
	left       stream.BatchStream
	leftSchema types.Schema
	query      string
	outSchema  types.Schema
	batchSize  int

	pending []stream.Batch
	primed  bool
	closed  bool
}

func (j *joinStream) Next(ctx context.Context) (*stream.Batch, error) {
	if j.closed {
		return nil, nil
	}
	for {
		if len(j.pending) > 0 {
			b := j.pending[0]
			j.pending = j.pending[1:]
			return &b, nil
		}

		b, err := j.left.Next(ctx)
		if err != nil {
			return nil, err
		}
		if b == nil {
			return nil, nil
		}

		if j.primed {
			if _, err := j.db.ExecContext(ctx, "DELETE FROM "+quoteIdent("left")); err != nil {
				return nil, bberrors.Wrap(bberrors.Execution, "sqlengine.joinStream", "clearing left batch table", err)
			}
		}
		j.primed = true

		if err := insertRows(ctx, j.db, "left", j.leftSchema, batchToRows(*b)); err != nil {
			return nil, err
		}

		rows, err := queryRows(ctx, j.db, j.query, nil, j.outSchema)
		if err != nil {
			return nil, err
		}
		if len(rows) == 0 {
			continue
		}

		j.pending = rowsToBatches(rows, j.outSchema, j.batchSize)
		if len(j.pending) == 0 {
			continue
		}
		first := j.pending[0]
		j.pending = j.pending[1:]
		return &first, nil
	}
}

func (j *joinStream) Close() error {
	if j.closed {
		return nil
	}
	j.closed = true
	leftErr := j.left.Close()
	if err := j.db.Close(); err != nil {
		return err
	}
	return leftErr
}

// qualifyBareColumns rewrites every unqualified ColumnRef in expr to
// reference table, so a join predicate that names its left-side columns
// without a table prefix (the convention node.Predicate is recorded
// under — only right-side references carry node.RightAlias) never
// produces an ambiguous column reference once both join inputs are
// materialized as sibling SQLite tables.
func qualifyBareColumns(expr sqlparser.Expression, table string) sqlparser.Expression {
	switch e := expr.(type) {
	case nil:
		return nil
	case *sqlparser.ColumnRef:
		if e.Table == "" {
			return &sqlparser.ColumnRef{Table: table, Column: e.Column}
		}
		return e
	case *sqlparser.BinaryExpr:
		return &sqlparser.BinaryExpr{Operator: e.Operator, Left: qualifyBareColumns(e.Left, table), Right: qualifyBareColumns(e.Right, table)}
	case *sqlparser.UnaryExpr:
		return &sqlparser.UnaryExpr{Operator: e.Operator, Operand: qualifyBareColumns(e.Operand, table)}
	case *sqlparser.ParenExpr:
		return &sqlparser.ParenExpr{Expr: qualifyBareColumns(e.Expr, table)}
	case *sqlparser.InExpr:
		values := make([]sqlparser.Expression, len(e.Values))
		for i, v := range e.Values {
			values[i] = qualifyBareColumns(v, table)
		}
		return &sqlparser.InExpr{Expr: qualifyBareColumns(e.Expr, table), Values: values, Not: e.Not}
	case *sqlparser.BetweenExpr:
		return &sqlparser.BetweenExpr{
			Expr: qualifyBareColumns(e.Expr, table),
			Low:  qualifyBareColumns(e.Low, table),
			High: qualifyBareColumns(e.High, table),
			Not:  e.Not,
		}
	case *sqlparser.IsNullExpr:
		return &sqlparser.IsNullExpr{Expr: qualifyBareColumns(e.Expr, table), Not: e.Not}
	default:
		return expr
	}
}

func sqlJoinKeyword(how planner.JoinHow) string {
	switch how {
	case planner.JoinLeft:
		return "LEFT JOIN"
	case planner.JoinRight:
		return "RIGHT JOIN"
	case planner.JoinFull:
		return "FULL OUTER JOIN"
	default:
		return "JOIN"
	}
}
