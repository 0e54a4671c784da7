package sqlengine

import (
	"context"
	"database/sql"

	"github.com/bundlebase/bundlebase/internal/bberrors"
	"github.com/bundlebase/bundlebase/internal/sqlparser"
	"github.com/bundlebase/bundlebase/internal/stream"
	"github.com/bundlebase/bundlebase/pkg/types"
)

// filterStream applies a residual SQL boolean expression to each batch
// pulled from inner via a throwaway SQLite table, skipping batches that
// filter down to zero rows rather than surfacing an empty batch.
type filterStream struct {
	inner  stream.BatchStream
	schema types.Schema
	where  string
	params []any
}

// newFilterStream parses exprSQL once so a malformed expression fails
// fast instead of on the first pulled batch.
func newFilterStream(inner stream.BatchStream, schema types.Schema, exprSQL string, params []any) (stream.BatchStream, error) {
	expr, err := sqlparser.ParseExpr(exprSQL)
	if err != nil {
		return nil, bberrors.Wrap(bberrors.Validation, "sqlengine.newFilterStream", "parsing filter expression", err)
	}
	where, err := sqlparser.RenderSQLite(expr, 0)
	if err != nil {
		return nil, err
	}
	return &filterStream{inner: inner, schema: schema, where: where, params: params}, nil
}

func (f *filterStream) Next(ctx context.Context) (*stream.Batch, error) {
	for {
		b, err := f.inner.Next(ctx)
		if err != nil || b == nil {
			return nil, err
		}
		db, err := openTemp(ctx)
		if err != nil {
			return nil, err
		}
		result, err := filterBatch(ctx, db, *b, f.schema, f.where, f.params)
		db.Close()
		if err != nil {
			return nil, err
		}
		if len(result) == 0 {
			continue
		}
		out := rowsToBatch(result, f.schema)
		return &out, nil
	}
}

func (f *filterStream) Close() error { return f.inner.Close() }

func filterBatch(ctx context.Context, db *sql.DB, b stream.Batch, schema types.Schema, where string, params []any) ([]map[string]any, error) {
	if err := createTable(ctx, db, "t", schema); err != nil {
		return nil, err
	}
	if err := insertRows(ctx, db, "t", schema, batchToRows(b)); err != nil {
		return nil, err
	}
	query := "SELECT " + quotedList(schema.Names()) + " FROM t WHERE " + where
	return queryRows(ctx, db, query, params, schema)
}

// projectStream evaluates a bare column list directly (fast path, no
// SQL engine involved) or, when the select carries a WHERE clause,
// delegates to the same throwaway-table pattern filterStream uses.
type projectStream struct {
	inner  stream.BatchStream
	in     types.Schema
	out    types.Schema
	star   bool
	cols   []string
	where  string
	hasSQL bool
	params []any
}

func newProjectStream(inner stream.BatchStream, in, out types.Schema, sqlOrCols string, params []any) (stream.BatchStream, error) {
	stmt, err := sqlparser.ParseSelect(sqlOrCols)
	if err != nil {
		return nil, bberrors.Wrap(bberrors.Validation, "sqlengine.newProjectStream", "parsing select", err)
	}
	ps := &projectStream{inner: inner, in: in, out: out, star: stmt.Star, cols: stmt.Columns, params: params}
	if stmt.Where != nil {
		where, err := sqlparser.RenderSQLite(stmt.Where, 0)
		if err != nil {
			return nil, err
		}
		ps.where, ps.hasSQL = where, true
	}
	return ps, nil
}

func (p *projectStream) Next(ctx context.Context) (*stream.Batch, error) {
	for {
		b, err := p.inner.Next(ctx)
		if err != nil || b == nil {
			return nil, err
		}
		if p.star {
			return b, nil
		}
		if !p.hasSQL {
			projected := b.Project(p.cols)
			return &projected, nil
		}
		db, err := openTemp(ctx)
		if err != nil {
			return nil, err
		}
		if err := createTable(ctx, db, "t", p.in); err != nil {
			db.Close()
			return nil, err
		}
		if err := insertRows(ctx, db, "t", p.in, batchToRows(*b)); err != nil {
			db.Close()
			return nil, err
		}
		query := "SELECT " + quotedList(p.out.Names()) + " FROM t WHERE " + p.where
		rows, err := queryRows(ctx, db, query, p.params, p.out)
		db.Close()
		if err != nil {
			return nil, err
		}
		if len(rows) == 0 {
			continue
		}
		out := rowsToBatch(rows, p.out)
		return &out, nil
	}
}

func (p *projectStream) Close() error { return p.inner.Close() }

// renameStream relabels one column per batch without touching storage.
type renameStream struct {
	inner      stream.BatchStream
	from, to   string
	outSchema  types.Schema
}

func newRenameStream(inner stream.BatchStream, from, to string, outSchema types.Schema) *renameStream {
	return &renameStream{inner: inner, from: from, to: to, outSchema: outSchema}
}

func (r *renameStream) Next(ctx context.Context) (*stream.Batch, error) {
	b, err := r.inner.Next(ctx)
	if err != nil || b == nil {
		return nil, err
	}
	cols := make(map[string][]any, len(b.Columns))
	for name, vals := range b.Columns {
		if name == r.from {
			cols[r.to] = vals
			continue
		}
		cols[name] = vals
	}
	out := stream.Batch{Schema: r.outSchema, NumRows: b.NumRows, Columns: cols}
	return &out, nil
}

func (r *renameStream) Close() error { return r.inner.Close() }

// dropStream projects each batch down to its surviving columns.
type dropStream struct {
	inner stream.BatchStream
	keep  []string
}

func newDropStream(inner stream.BatchStream, keep []string) *dropStream {
	return &dropStream{inner: inner, keep: keep}
}

func (d *dropStream) Next(ctx context.Context) (*stream.Batch, error) {
	b, err := d.inner.Next(ctx)
	if err != nil || b == nil {
		return nil, err
	}
	projected := b.Project(d.keep)
	return &projected, nil
}

func (d *dropStream) Close() error { return d.inner.Close() }
