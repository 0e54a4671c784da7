package sqlparser_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bundlebase/bundlebase/internal/sqlparser"
)

func TestParseExpr_RenderSQLiteRewritesPlaceholders(t *testing.T) {
	expr, err := sqlparser.ParseExpr("region = $1 AND amount > $2")
	require.NoError(t, err)

	sql, err := sqlparser.RenderSQLite(expr, 0)
	require.NoError(t, err)
	require.Equal(t, `"region" = ?1 AND "amount" > ?2`, sql)
}

func TestParseExpr_RenderSQLiteAppliesOffsetToPlaceholders(t *testing.T) {
	expr, err := sqlparser.ParseExpr("region = $1")
	require.NoError(t, err)

	sql, err := sqlparser.RenderSQLite(expr, 3)
	require.NoError(t, err)
	require.Equal(t, `"region" = ?4`, sql)
}

func TestExtractIndexable_SplitsConjunctsFromResidual(t *testing.T) {
	expr, err := sqlparser.ParseExpr("region = $1 AND (amount > $2 OR amount < $3)")
	require.NoError(t, err)

	params := []any{"west", int64(10), int64(0)}
	extracted, residual := sqlparser.ExtractIndexable(expr, params)

	require.Len(t, extracted, 1)
	require.Equal(t, "region", extracted[0].Column)

	sql, err := sqlparser.RenderSQLite(residual, 0)
	require.NoError(t, err)
	require.Equal(t, `("amount" > ?2 OR "amount" < ?3)`, sql)
}

func TestExtractIndexable_InAndBetweenAreIndexable(t *testing.T) {
	expr, err := sqlparser.ParseExpr("region IN ($1, $2) AND amount BETWEEN $3 AND $4")
	require.NoError(t, err)

	params := []any{"west", "east", int64(0), int64(100)}
	extracted, residual := sqlparser.ExtractIndexable(expr, params)

	require.Len(t, extracted, 2)
	require.Nil(t, residual)
}

func TestMaxPlaceholder_ReportsHighestIndex(t *testing.T) {
	expr, err := sqlparser.ParseExpr("a = $1 AND b = $3")
	require.NoError(t, err)
	require.Equal(t, 3, sqlparser.MaxPlaceholder(expr))
}

func TestReferencedColumns_CollectsDistinctColumnNames(t *testing.T) {
	expr, err := sqlparser.ParseExpr("region = $1 AND region <> $2 AND amount > $3")
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"region", "amount"}, sqlparser.ReferencedColumns(expr))
}
