package sqlparser

import (
	"fmt"
	"strconv"
	"strings"
)

// RenderSQLite renders expr as SQLite-dialect SQL text, rewriting `$n`
// positional placeholders into SQLite's `?n` form. offset is added to
// every placeholder index, letting callers splice several expressions
// (e.g. a scan's residual filter plus a join predicate) into one
// statement without their parameter numbering colliding.
func RenderSQLite(expr Expression, offset int) (string, error) {
	var sb strings.Builder
	if err := render(&sb, expr, offset); err != nil {
		return "", err
	}
	return sb.String(), nil
}

func render(sb *strings.Builder, expr Expression, offset int) error {
	switch e := expr.(type) {
	case nil:
		return nil
	case *BinaryExpr:
		if err := render(sb, e.Left, offset); err != nil {
			return err
		}
		sb.WriteString(" " + sqlOp(e.Operator) + " ")
		return render(sb, e.Right, offset)
	case *UnaryExpr:
		sb.WriteString(e.Operator + " ")
		return render(sb, e.Operand, offset)
	case *ParenExpr:
		sb.WriteString("(")
		if err := render(sb, e.Expr, offset); err != nil {
			return err
		}
		sb.WriteString(")")
		return nil
	case *ColumnRef:
		if e.Table != "" {
			sb.WriteString(quoteIdent(e.Table) + "." + quoteIdent(e.Column))
		} else {
			sb.WriteString(quoteIdent(e.Column))
		}
		return nil
	case *Literal:
		return renderLiteral(sb, e.Value)
	case *Placeholder:
		sb.WriteString("?" + strconv.Itoa(e.Index+offset))
		return nil
	case *InExpr:
		if err := render(sb, e.Expr, offset); err != nil {
			return err
		}
		if e.Not {
			sb.WriteString(" NOT IN (")
		} else {
			sb.WriteString(" IN (")
		}
		for i, v := range e.Values {
			if i > 0 {
				sb.WriteString(", ")
			}
			if err := render(sb, v, offset); err != nil {
				return err
			}
		}
		sb.WriteString(")")
		return nil
	case *BetweenExpr:
		if err := render(sb, e.Expr, offset); err != nil {
			return err
		}
		if e.Not {
			sb.WriteString(" NOT BETWEEN ")
		} else {
			sb.WriteString(" BETWEEN ")
		}
		if err := render(sb, e.Low, offset); err != nil {
			return err
		}
		sb.WriteString(" AND ")
		return render(sb, e.High, offset)
	case *IsNullExpr:
		if err := render(sb, e.Expr, offset); err != nil {
			return err
		}
		if e.Not {
			sb.WriteString(" IS NOT NULL")
		} else {
			sb.WriteString(" IS NULL")
		}
		return nil
	default:
		return fmt.Errorf("sqlparser: cannot render expression of type %T", e)
	}
}

func sqlOp(op string) string {
	if op == "<>" {
		return "!="
	}
	return op
}

func renderLiteral(sb *strings.Builder, v any) error {
	switch val := v.(type) {
	case nil:
		sb.WriteString("NULL")
	case int64:
		sb.WriteString(strconv.FormatInt(val, 10))
	case float64:
		sb.WriteString(strconv.FormatFloat(val, 'g', -1, 64))
	case bool:
		if val {
			sb.WriteString("1")
		} else {
			sb.WriteString("0")
		}
	case string:
		sb.WriteString("'" + strings.ReplaceAll(val, "'", "''") + "'")
	default:
		return fmt.Errorf("sqlparser: cannot render literal of type %T", val)
	}
	return nil
}

// quoteIdent wraps an identifier in double quotes, SQLite's standard
// quoting, so column names that collide with SQL keywords still parse.
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
