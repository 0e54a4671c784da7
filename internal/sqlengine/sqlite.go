package sqlengine

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"github.com/bundlebase/bundlebase/internal/bberrors"
	"github.com/bundlebase/bundlebase/pkg/types"
)

// openTemp opens a private in-memory SQLite connection: one throwaway
// connection per batch or per join rather than a pooled, reused one —
// these tables never outlive a single query.
func openTemp(ctx context.Context) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		return nil, bberrors.Wrap(bberrors.Execution, "sqlengine.openTemp", "opening temp connection", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, bberrors.Wrap(bberrors.Execution, "sqlengine.openTemp", "pinging temp connection", err)
	}
	return db, nil
}

// sqliteColumnType maps a logical kind to the SQLite storage class
// that preserves its value losslessly. Timestamp is stored as the
// millisecond epoch integer it already is in-memory; List and Struct
// have no native SQLite shape, so they round-trip as JSON text and are
// not meaningfully comparable inside a pushed-down predicate.
func sqliteColumnType(k types.LogicalKind) string {
	switch k {
	case types.KindInt64, types.KindTimestamp:
		return "INTEGER"
	case types.KindFloat64:
		return "REAL"
	case types.KindBoolean:
		return "INTEGER"
	default:
		return "TEXT"
	}
}

// createTable creates name with one column per schema entry, typed by
// sqliteColumnType.
func createTable(ctx context.Context, db *sql.DB, name string, schema types.Schema) error {
	var cols []string
	for _, n := range schema.Names() {
		typ, _ := schema.TypeOf(n)
		cols = append(cols, fmt.Sprintf("%s %s", quoteIdent(n), sqliteColumnType(typ.Kind)))
	}
	stmt := fmt.Sprintf("CREATE TABLE %s (%s)", quoteIdent(name), strings.Join(cols, ", "))
	_, err := db.ExecContext(ctx, stmt)
	if err != nil {
		return bberrors.Wrap(bberrors.Execution, "sqlengine.createTable", "creating temp table", err)
	}
	return nil
}

// toSQLValue converts one in-memory column value to the form the
// sqlite3 driver accepts as a bind parameter.
func toSQLValue(v any, k types.LogicalKind) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch k {
	case types.KindInt64, types.KindFloat64, types.KindUtf8, types.KindTimestamp:
		return v, nil
	case types.KindBoolean:
		b, _ := v.(bool)
		if b {
			return int64(1), nil
		}
		return int64(0), nil
	default:
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		return string(raw), nil
	}
}

// fromSQLValue reverses toSQLValue, given the driver's returned value
// (already one of int64/float64/string/[]byte/nil from database/sql's
// generic scan) and the destination logical kind.
func fromSQLValue(v any, k types.LogicalKind) (any, error) {
	if v == nil {
		return nil, nil
	}
	if b, ok := v.([]byte); ok {
		v = string(b)
	}
	switch k {
	case types.KindBoolean:
		switch n := v.(type) {
		case int64:
			return n != 0, nil
		default:
			return v, nil
		}
	case types.KindList, types.KindStruct, types.KindNull:
		s, ok := v.(string)
		if !ok {
			return v, nil
		}
		var out any
		if err := json.Unmarshal([]byte(s), &out); err != nil {
			return nil, err
		}
		return out, nil
	default:
		return v, nil
	}
}

// insertRows bulk-inserts one batch's rows into an already-created
// table, one statement per row — acceptable because batches are capped
// at StreamBatchSize and this path only runs for Filter/Project/Join's
// intermediate materialization, never the base per-block scan.
func insertRows(ctx context.Context, db *sql.DB, table string, schema types.Schema, rows []map[string]any) error {
	names := schema.Names()
	placeholders := make([]string, len(names))
	for i := range names {
		placeholders[i] = "?"
	}
	stmt := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		quoteIdent(table), quotedList(names), strings.Join(placeholders, ", "))
	prepared, err := db.PrepareContext(ctx, stmt)
	if err != nil {
		return bberrors.Wrap(bberrors.Execution, "sqlengine.insertRows", "preparing insert", err)
	}
	defer prepared.Close()

	for _, row := range rows {
		args := make([]any, len(names))
		for i, n := range names {
			typ, _ := schema.TypeOf(n)
			val, err := toSQLValue(row[n], typ.Kind)
			if err != nil {
				return bberrors.Wrap(bberrors.Execution, "sqlengine.insertRows", "converting value", err)
			}
			args[i] = val
		}
		if _, err := prepared.ExecContext(ctx, args...); err != nil {
			return bberrors.Wrap(bberrors.Execution, "sqlengine.insertRows", "executing insert", err)
		}
	}
	return nil
}

// queryRows runs query against db and decodes every result row into
// outSchema, returning row-major data ready for stream.NewBatch's
// column-major conversion.
func queryRows(ctx context.Context, db *sql.DB, query string, params []any, outSchema types.Schema) ([]map[string]any, error) {
	rows, err := db.QueryContext(ctx, query, params...)
	if err != nil {
		return nil, bberrors.Wrap(bberrors.Execution, "sqlengine.queryRows", "executing query", err).
			WithDetails(map[string]string{"sql": query})
	}
	defer rows.Close()

	names := outSchema.Names()
	scanned := make([]any, len(names))
	ptrs := make([]any, len(names))
	for i := range scanned {
		ptrs[i] = &scanned[i]
	}

	var out []map[string]any
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return nil, bberrors.Wrap(bberrors.Execution, "sqlengine.queryRows", "scanning row", err)
		}
		row := make(map[string]any, len(names))
		for i, n := range names {
			typ, _ := outSchema.TypeOf(n)
			val, err := fromSQLValue(scanned[i], typ.Kind)
			if err != nil {
				return nil, bberrors.Wrap(bberrors.Execution, "sqlengine.queryRows", "converting value", err)
			}
			row[n] = val
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func quotedList(names []string) string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = quoteIdent(n)
	}
	return strings.Join(out, ", ")
}
