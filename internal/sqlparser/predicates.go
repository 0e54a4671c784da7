package sqlparser

import (
	"fmt"

	"github.com/bundlebase/bundlebase/pkg/types"
)

// Extracted is one indexable sub-predicate pulled out of a WHERE
// expression: a bare column name (no table qualifier — index lookups are
// always scoped to one block) and the IndexPredicate C7 can evaluate.
type Extracted struct {
	Column    string
	Predicate types.IndexPredicate
}

// ExtractIndexable walks expr's top-level AND conjuncts, pulling out the
// shapes spec.md §4.8 names (`col op literal`, `col IN (lit,…)`, `col
// BETWEEN lit AND lit`) with params substituted for any placeholders, and
// returns everything else — including any conjunct touching OR — as a
// single residual expression to be re-applied as a normal filter.
func ExtractIndexable(expr Expression, params []any) ([]Extracted, Expression) {
	conjuncts := flattenAnd(expr)
	var extracted []Extracted
	var residual []Expression
	for _, c := range conjuncts {
		if e, ok := tryExtract(c, params); ok {
			extracted = append(extracted, e)
			continue
		}
		residual = append(residual, c)
	}
	return extracted, recombineAnd(residual)
}

func flattenAnd(expr Expression) []Expression {
	if p, ok := expr.(*ParenExpr); ok {
		if inner, ok := p.Expr.(*BinaryExpr); ok && inner.Operator == "AND" {
			return flattenAnd(inner)
		}
		return []Expression{expr}
	}
	b, ok := expr.(*BinaryExpr)
	if !ok || b.Operator != "AND" {
		return []Expression{expr}
	}
	return append(flattenAnd(b.Left), flattenAnd(b.Right)...)
}

func recombineAnd(exprs []Expression) Expression {
	if len(exprs) == 0 {
		return nil
	}
	out := exprs[0]
	for _, e := range exprs[1:] {
		out = &BinaryExpr{Operator: "AND", Left: out, Right: e}
	}
	return out
}

func tryExtract(expr Expression, params []any) (Extracted, bool) {
	if p, ok := expr.(*ParenExpr); ok {
		return tryExtract(p.Expr, params)
	}
	switch e := expr.(type) {
	case *BinaryExpr:
		switch e.Operator {
		case "=":
			if col, ok := e.Left.(*ColumnRef); ok {
				if v, ok := resolveLiteral(e.Right, params); ok {
					return Extracted{Column: col.Column, Predicate: types.ExactPredicate(v)}, true
				}
			}
			if col, ok := e.Right.(*ColumnRef); ok {
				if v, ok := resolveLiteral(e.Left, params); ok {
					return Extracted{Column: col.Column, Predicate: types.ExactPredicate(v)}, true
				}
			}
			return Extracted{}, false
		case "<", "<=", ">", ">=":
			return tryExtractRange(e, params)
		default:
			return Extracted{}, false
		}
	case *InExpr:
		if e.Not {
			return Extracted{}, false
		}
		col, ok := e.Expr.(*ColumnRef)
		if !ok {
			return Extracted{}, false
		}
		vals := make([]types.IndexedValue, 0, len(e.Values))
		for _, raw := range e.Values {
			v, ok := resolveLiteral(raw, params)
			if !ok {
				return Extracted{}, false
			}
			vals = append(vals, v)
		}
		return Extracted{Column: col.Column, Predicate: types.InPredicate(vals...)}, true
	case *BetweenExpr:
		if e.Not {
			return Extracted{}, false
		}
		col, ok := e.Expr.(*ColumnRef)
		if !ok {
			return Extracted{}, false
		}
		low, ok := resolveLiteral(e.Low, params)
		if !ok {
			return Extracted{}, false
		}
		high, ok := resolveLiteral(e.High, params)
		if !ok {
			return Extracted{}, false
		}
		return Extracted{Column: col.Column, Predicate: types.RangePredicate(&low, &high, true, true)}, true
	}
	return Extracted{}, false
}

func tryExtractRange(b *BinaryExpr, params []any) (Extracted, bool) {
	col, colLeft := b.Left.(*ColumnRef)
	var lit Expression
	op := b.Operator
	if colLeft {
		lit = b.Right
	} else {
		col2, ok := b.Right.(*ColumnRef)
		if !ok {
			return Extracted{}, false
		}
		col = col2
		lit = b.Left
		op = flipOp(op)
	}
	v, ok := resolveLiteral(lit, params)
	if !ok {
		return Extracted{}, false
	}
	switch op {
	case "<":
		return Extracted{Column: col.Column, Predicate: types.RangePredicate(nil, &v, false, false)}, true
	case "<=":
		return Extracted{Column: col.Column, Predicate: types.RangePredicate(nil, &v, false, true)}, true
	case ">":
		return Extracted{Column: col.Column, Predicate: types.RangePredicate(&v, nil, false, false)}, true
	case ">=":
		return Extracted{Column: col.Column, Predicate: types.RangePredicate(&v, nil, true, false)}, true
	}
	return Extracted{}, false
}

func flipOp(op string) string {
	switch op {
	case "<":
		return ">"
	case "<=":
		return ">="
	case ">":
		return "<"
	case ">=":
		return "<="
	}
	return op
}

func resolveLiteral(expr Expression, params []any) (types.IndexedValue, bool) {
	var raw any
	switch e := expr.(type) {
	case *Literal:
		raw = e.Value
	case *Placeholder:
		if e.Index < 1 || e.Index > len(params) {
			return types.IndexedValue{}, false
		}
		raw = params[e.Index-1]
	case *ParenExpr:
		return resolveLiteral(e.Expr, params)
	default:
		return types.IndexedValue{}, false
	}
	return goValueToIndexed(raw)
}

func goValueToIndexed(raw any) (types.IndexedValue, bool) {
	switch v := raw.(type) {
	case nil:
		return types.IndexedFromNull(), true
	case int64:
		return types.IndexedFromInt64(v), true
	case int:
		return types.IndexedFromInt64(int64(v)), true
	case float64:
		return types.IndexedFromFloat64(v), true
	case string:
		return types.IndexedFromUtf8(v), true
	case bool:
		return types.IndexedFromBoolean(v), true
	default:
		return types.IndexedValue{}, false
	}
}

// ReferencedColumns returns every column referenced anywhere in expr, as
// "table.column" when the reference is qualified and the bare column
// name otherwise, used by check() to validate against the current schema.
func ReferencedColumns(expr Expression) []string {
	seen := map[string]bool{}
	var out []string
	var walk func(Expression)
	walk = func(e Expression) {
		switch n := e.(type) {
		case nil:
		case *ColumnRef:
			key := n.Column
			if n.Table != "" {
				key = n.Table + "." + n.Column
			}
			if !seen[key] {
				seen[key] = true
				out = append(out, key)
			}
		case *BinaryExpr:
			walk(n.Left)
			walk(n.Right)
		case *UnaryExpr:
			walk(n.Operand)
		case *ParenExpr:
			walk(n.Expr)
		case *InExpr:
			walk(n.Expr)
			for _, v := range n.Values {
				walk(v)
			}
		case *BetweenExpr:
			walk(n.Expr)
			walk(n.Low)
			walk(n.High)
		case *IsNullExpr:
			walk(n.Expr)
		case *Literal, *Placeholder:
		default:
			panic(fmt.Sprintf("sqlparser: unhandled expression type %T", n))
		}
	}
	walk(expr)
	return out
}

// MaxPlaceholder returns the highest $n index referenced in expr, or 0 if
// none — used by check() to validate the caller supplied enough params.
func MaxPlaceholder(expr Expression) int {
	max := 0
	var walk func(Expression)
	walk = func(e Expression) {
		switch n := e.(type) {
		case nil:
		case *Placeholder:
			if n.Index > max {
				max = n.Index
			}
		case *BinaryExpr:
			walk(n.Left)
			walk(n.Right)
		case *UnaryExpr:
			walk(n.Operand)
		case *ParenExpr:
			walk(n.Expr)
		case *InExpr:
			walk(n.Expr)
			for _, v := range n.Values {
				walk(v)
			}
		case *BetweenExpr:
			walk(n.Expr)
			walk(n.Low)
			walk(n.High)
		case *IsNullExpr:
			walk(n.Expr)
		}
	}
	walk(expr)
	return max
}
