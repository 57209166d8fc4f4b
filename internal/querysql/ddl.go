package querysql

import (
	"fmt"
	"strings"

	"github.com/roach88/polycat/internal/algebra"
	"github.com/roach88/polycat/internal/typesys"
)

// ColumnType maps a polystore type to its SQLite column affinity.
func ColumnType(t typesys.Type) (string, error) {
	switch t.Kind() {
	case typesys.KindBoolean, typesys.KindInteger, typesys.KindBigint:
		return "INTEGER", nil
	case typesys.KindDecimal:
		return "NUMERIC", nil
	case typesys.KindVarchar, typesys.KindText, typesys.KindDocument:
		return "TEXT", nil
	case typesys.KindVarbinary:
		return "BLOB", nil
	default:
		return "", fmt.Errorf("type %s has no column representation", t.FullTypeString())
	}
}

// CreateTable builds the DDL for a physical table.
func CreateTable(ref algebra.EntityRef) (Statement, error) {
	if ref.RowType == nil || ref.RowType.FieldCount() == 0 {
		return Statement{}, fmt.Errorf("table %q has no columns", ref.Name)
	}
	defs := make([]string, 0, ref.RowType.FieldCount())
	for _, f := range ref.RowType.Fields() {
		def, err := columnDef(f, true)
		if err != nil {
			return Statement{}, fmt.Errorf("table %q: %w", ref.Name, err)
		}
		defs = append(defs, def)
	}
	sql := "CREATE TABLE IF NOT EXISTS " + quote(ref.Name) + " (" + strings.Join(defs, ", ") + ")"
	return Statement{SQL: sql}, nil
}

// AddColumn builds the DDL for a new column. SQLite cannot add a NOT NULL
// column without a default, so the column is always nullable.
func AddColumn(ref algebra.EntityRef, f typesys.Field) (Statement, error) {
	def, err := columnDef(f, false)
	if err != nil {
		return Statement{}, fmt.Errorf("table %q: %w", ref.Name, err)
	}
	return Statement{SQL: "ALTER TABLE " + quote(ref.Name) + " ADD COLUMN " + def}, nil
}

// DropTable builds the DDL removing a physical table.
func DropTable(ref algebra.EntityRef) Statement {
	return Statement{SQL: "DROP TABLE IF EXISTS " + quote(ref.Name)}
}

func columnDef(f typesys.Field, constraints bool) (string, error) {
	affinity, err := ColumnType(f.Type)
	if err != nil {
		return "", fmt.Errorf("column %q: %w", f.Name, err)
	}
	def := quote(f.Name) + " " + affinity
	if constraints && !f.Type.Nullable() {
		def += " NOT NULL"
	}
	return def, nil
}
