package sqlite

import (
	"fmt"
	"strings"

	"github.com/mesh-intelligence/strata/pkg/types"
)

// shadowSuffix names the table a replacement is built in before it is
// renamed into place.
const shadowSuffix = "__strata_new"

// columnType maps a field kind to its SQLite column type.
func columnType(k types.Kind) string {
	switch k {
	case types.KindInt, types.KindLong, types.KindBool:
		return "INTEGER"
	case types.KindFloat, types.KindDouble:
		return "REAL"
	case types.KindString, types.KindList:
		return "TEXT"
	default:
		return "BLOB"
	}
}

// quote returns name as a quoted SQL identifier. Names are checked with
// types.ValidIdentifier before they reach SQL.
func quote(name string) string {
	return `"` + name + `"`
}

// createTableSQL returns the CREATE TABLE statement for shape under name.
func createTableSQL(name string, shape types.Shape) string {
	cols := make([]string, 0, len(shape.Fields))
	for _, f := range shape.Fields {
		col := quote(f.Name) + " " + columnType(f.Kind)
		if !f.Nullable {
			col += " NOT NULL"
		}
		if f.Unique {
			col += " UNIQUE"
		}
		cols = append(cols, col)
	}
	return fmt.Sprintf("CREATE TABLE %s (\n    %s\n)", quote(name), strings.Join(cols, ",\n    "))
}

// insertSQL returns the parameterized INSERT for shape under name.
func insertSQL(name string, shape types.Shape) string {
	cols := make([]string, len(shape.Fields))
	marks := make([]string, len(shape.Fields))
	for i, f := range shape.Fields {
		cols[i] = quote(f.Name)
		marks[i] = "?"
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", quote(name), strings.Join(cols, ", "), strings.Join(marks, ", "))
}

// selectSQL returns the SELECT of the given columns of name, in rowid order.
func selectSQL(name string, cols []string) string {
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = quote(c)
	}
	return fmt.Sprintf("SELECT %s FROM %s ORDER BY rowid", strings.Join(quoted, ", "), quote(name))
}

// checkNames rejects table and field names that are not plain identifiers.
func checkNames(table string, shape types.Shape) error {
	if !types.ValidIdentifier(table) {
		return fmt.Errorf("table %q: %w", table, types.ErrInvalidShape)
	}
	return shape.Validate()
}
