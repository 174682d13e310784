// Package store provides an SQLite based data frame store.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	_ "github.com/mattn/go-sqlite3"
	"github.com/spf13/cast"
)

// naValue is how gota spells a missing value.
const naValue = "NaN"

// ErrNoTable is returned when loading a table that doesn't exist.
var ErrNoTable = errors.New("no such table")

// DB is an SQLite database of tables loaded as data frames.
type DB struct {
	sql *sql.DB
}

// Open connects to the SQLite database in dbFile, the file is created if it
// doesn't exist.
func Open(dbFile string) (*DB, error) {
	sqlDB, err := sql.Open("sqlite3", dbFile)
	if err != nil {
		return nil, err
	}

	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("connect %s: %w", dbFile, err)
	}

	return &DB{sql: sqlDB}, nil
}

// Close closes the database.
func (db *DB) Close() error {
	return db.sql.Close()
}

// Load reads table into a data frame. Column types come from the declared
// SQL types, NULL values are missing values.
func (db *DB) Load(ctx context.Context, table string) (dataframe.DataFrame, error) {
	var n int
	row := db.sql.QueryRowContext(ctx, "SELECT count(*) FROM sqlite_master WHERE type = 'table' AND name = ?", table)
	if err := row.Scan(&n); err != nil {
		return dataframe.DataFrame{}, err
	}
	if n == 0 {
		return dataframe.DataFrame{}, fmt.Errorf("load %s: %w", table, ErrNoTable)
	}

	rows, err := db.sql.QueryContext(ctx, "SELECT * FROM "+quote(table))
	if err != nil {
		return dataframe.DataFrame{}, fmt.Errorf("load %s: %w", table, err)
	}
	defer rows.Close()

	colTypes, err := rows.ColumnTypes()
	if err != nil {
		return dataframe.DataFrame{}, err
	}

	types := make([]series.Type, len(colTypes))
	records := make([][]string, len(colTypes))
	for i, ct := range colTypes {
		types[i] = seriesType(ct.DatabaseTypeName())
		records[i] = []string{}
	}

	values := make([]any, len(colTypes))
	ptrs := make([]any, len(colTypes))
	for i := range values {
		ptrs[i] = &values[i]
	}

	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return dataframe.DataFrame{}, err
		}

		for i, v := range values {
			s, err := cell(v, types[i])
			if err != nil {
				return dataframe.DataFrame{}, fmt.Errorf("%s.%s: %w", table, colTypes[i].Name(), err)
			}
			records[i] = append(records[i], s)
		}
	}
	if err := rows.Err(); err != nil {
		return dataframe.DataFrame{}, err
	}

	cols := make([]series.Series, len(colTypes))
	for i, ct := range colTypes {
		cols[i] = series.New(records[i], types[i], ct.Name())
	}

	df := dataframe.New(cols...)
	if df.Err != nil {
		return dataframe.DataFrame{}, df.Err
	}
	return df, nil
}

// Tables returns the table names in lexical order.
func (db *DB) Tables(ctx context.Context) ([]string, error) {
	rows, err := db.sql.QueryContext(ctx, "SELECT name FROM sqlite_master WHERE type = 'table' ORDER BY name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// Save replaces table with the content of df in a single transaction.
func (db *DB) Save(ctx context.Context, table string, df dataframe.DataFrame) error {
	if df.Err != nil {
		return df.Err
	}

	tx, err := db.sql.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	if err := save(ctx, tx, table, df); err != nil {
		tx.Rollback()
		return fmt.Errorf("save %s: %w", table, err)
	}

	return tx.Commit()
}

func save(ctx context.Context, tx *sql.Tx, table string, df dataframe.DataFrame) error {
	names, types := df.Names(), df.Types()

	defs := make([]string, len(names))
	marks := make([]string, len(names))
	for i, name := range names {
		defs[i] = quote(name) + " " + sqlType(types[i])
		marks[i] = "?"
	}

	if _, err := tx.ExecContext(ctx, "DROP TABLE IF EXISTS "+quote(table)); err != nil {
		return err
	}

	schemaSQL := fmt.Sprintf("CREATE TABLE %s (\n    %s\n)", quote(table), strings.Join(defs, ",\n    "))
	if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
		return err
	}

	insertSQL := fmt.Sprintf("INSERT INTO %s VALUES (%s)", quote(table), strings.Join(marks, ", "))
	stmt, err := tx.PrepareContext(ctx, insertSQL)
	if err != nil {
		return err
	}
	defer stmt.Close()

	cols := make([]series.Series, len(names))
	for i, name := range names {
		cols[i] = df.Col(name)
	}

	args := make([]any, len(cols))
	for r := 0; r < df.Nrow(); r++ {
		for i, col := range cols {
			v, err := sqlValue(col.Elem(r), types[i])
			if err != nil {
				return fmt.Errorf("row %d, %s: %w", r, names[i], err)
			}
			args[i] = v
		}

		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return err
		}
	}

	return nil
}

// seriesType maps a declared SQL type to a series type, using the SQLite
// affinity rules.
func seriesType(decl string) series.Type {
	decl = strings.ToUpper(decl)
	switch {
	case strings.Contains(decl, "BOOL"):
		return series.Bool
	case strings.Contains(decl, "INT"):
		return series.Int
	case strings.Contains(decl, "CHAR"), strings.Contains(decl, "CLOB"), strings.Contains(decl, "TEXT"):
		return series.String
	case strings.Contains(decl, "REAL"), strings.Contains(decl, "FLOA"), strings.Contains(decl, "DOUB"),
		strings.Contains(decl, "NUMERIC"), strings.Contains(decl, "DECIMAL"):
		return series.Float
	}
	return series.String
}

func sqlType(t series.Type) string {
	switch t {
	case series.Int:
		return "INTEGER"
	case series.Float:
		return "REAL"
	case series.Bool:
		return "BOOLEAN"
	}
	return "TEXT"
}

// cell converts a scanned value to the record form of a series of type t.
func cell(v any, t series.Type) (string, error) {
	if v == nil {
		return naValue, nil
	}

	switch val := v.(type) {
	case []byte:
		v = string(val)
	case time.Time:
		v = val.Format(time.RFC3339Nano)
	}

	switch t {
	case series.Int:
		i, err := cast.ToInt64E(v)
		if err != nil {
			return "", err
		}
		return cast.ToString(i), nil
	case series.Float:
		f, err := cast.ToFloat64E(v)
		if err != nil {
			return "", err
		}
		return cast.ToString(f), nil
	case series.Bool:
		b, err := cast.ToBoolE(v)
		if err != nil {
			return "", err
		}
		return cast.ToString(b), nil
	}

	return cast.ToStringE(v)
}

// sqlValue returns the value to insert for e, nil for missing values.
func sqlValue(e series.Element, t series.Type) (any, error) {
	if e.IsNA() {
		return nil, nil
	}

	switch t {
	case series.Int:
		return e.Int()
	case series.Float:
		f := e.Float()
		if math.IsNaN(f) {
			return nil, nil
		}
		return f, nil
	case series.Bool:
		return e.Bool()
	case series.String:
		return e.String(), nil
	}

	return nil, errors.New("unknown series type " + string(t))
}

func quote(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
