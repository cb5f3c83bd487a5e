package database

import (
	"database/sql"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

// rowsToResult drains a pgx.Rows into a QueryResult using the canonical
// JSON row format. Values are rendered with fmt's %v of the decoded Go
// value; numeric-vs-string classification comes from the column's type
// OID rather than from Go's dynamic type.
func rowsToResult(fields []pgx.FieldDescription, rows pgx.Rows) (*QueryResult, error) {
	var out [][]Cell
	colCount := len(fields)

	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, err
		}
		row := make([]Cell, colCount)
		for i, f := range fields {
			row[i] = cellFromValue(string(f.Name), values[i], isPgNumericOID(f.DataTypeOID))
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	json, err := FormatRows(out)
	if err != nil {
		return nil, err
	}
	return &QueryResult{Rows: json, RowCount: len(out), ColumnCount: colCount}, nil
}

// isPgNumericOID reports whether a PostgreSQL type OID is one of the
// common numeric types, so the serializer can emit it unquoted.
func isPgNumericOID(oid uint32) bool {
	switch oid {
	case pgtype.Int2OID, pgtype.Int4OID, pgtype.Int8OID,
		pgtype.Float4OID, pgtype.Float8OID, pgtype.NumericOID:
		return true
	default:
		return false
	}
}

func cellFromValue(column string, v interface{}, numeric bool) Cell {
	if v == nil {
		return Cell{Column: column, IsNull: true}
	}
	return Cell{Column: column, Value: fmt.Sprintf("%v", v), IsNumeric: numeric}
}

// sqlRowsToResult drains a database/sql *sql.Rows into a QueryResult. Used
// by the MySQL, SQLite and DB2 adapters, which all go through
// database/sql rather than a native driver.
func sqlRowsToResult(rows *sql.Rows) (*QueryResult, error) {
	cols, err := rows.ColumnTypes()
	if err != nil {
		return nil, err
	}
	scanArgs := make([]interface{}, len(cols))
	rawValues := make([]sql.NullString, len(cols))
	for i := range rawValues {
		scanArgs[i] = &rawValues[i]
	}

	var out [][]Cell
	for rows.Next() {
		if err := rows.Scan(scanArgs...); err != nil {
			return nil, err
		}
		row := make([]Cell, len(cols))
		for i, c := range cols {
			row[i] = Cell{
				Column:    c.Name(),
				Value:     rawValues[i].String,
				IsNull:    !rawValues[i].Valid,
				IsNumeric: isSQLNumericType(c.DatabaseTypeName()),
			}
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	json, err := FormatRows(out)
	if err != nil {
		return nil, err
	}
	return &QueryResult{Rows: json, RowCount: len(out), ColumnCount: len(cols)}, nil
}

// sqlNative is the NativeConn payload for every database/sql-backed
// adapter (MySQL, SQLite, DB2): the reserved single connection plus the
// *sql.DB it came from, needed to close both cleanly.
type sqlNative struct {
	db   *sql.DB
	conn *sql.Conn
}

func isSQLNumericType(dbType string) bool {
	switch dbType {
	case "INT", "INTEGER", "BIGINT", "SMALLINT", "TINYINT", "MEDIUMINT",
		"DECIMAL", "NUMERIC", "FLOAT", "DOUBLE", "REAL", "INT4", "INT8", "INT2":
		return true
	default:
		return false
	}
}

// RegisterDefaultAdapters initializes registry and installs the full
// closed set of engine adapters. Both cmd/server and cmd/migrate call
// this so the registry is built identically regardless of entry point.
func RegisterDefaultAdapters(registry *EngineRegistry) error {
	if err := registry.Init(); err != nil {
		return err
	}
	adapters := []EngineAdapter{
		NewPostgresAdapter(),
		NewMySQLAdapter(),
		NewSQLiteAdapter(),
		NewDB2Adapter(),
	}
	for _, a := range adapters {
		if err := registry.Register(a); err != nil {
			return err
		}
	}
	return nil
}
