package querysql

import (
	"fmt"
	"strings"

	"github.com/roach88/polycat/internal/algebra"
)

func (c *SQLCompiler) compileModify(m *algebra.RelModify) ([]Statement, error) {
	if m.Entity.RowType == nil {
		return nil, fmt.Errorf("modify of %q has no row type", m.Entity.Name)
	}
	switch m.Op {
	case algebra.OpInsert:
		stmt, err := c.compileInsert(m)
		if err != nil {
			return nil, err
		}
		return []Statement{stmt}, nil
	case algebra.OpUpdate:
		return c.compileUpdate(m)
	case algebra.OpDelete:
		stmt, err := c.compileDelete(m)
		if err != nil {
			return nil, err
		}
		return []Statement{stmt}, nil
	default:
		return nil, fmt.Errorf("unknown modify operation %q", m.Op)
	}
}

func (c *SQLCompiler) compileInsert(m *algebra.RelModify) (Statement, error) {
	table := quote(m.Entity.Name)
	switch input := m.Input.(type) {
	case *algebra.RelValues:
		if len(input.Rows) == 0 {
			return Statement{}, fmt.Errorf("insert into %q has no rows", m.Entity.Name)
		}
		names := input.Type.FieldNames()
		cols := make([]string, len(names))
		marks := make([]string, len(names))
		for i, name := range names {
			if _, ok := m.Entity.RowType.Field(name, true, false); !ok {
				return Statement{}, fmt.Errorf("column %q not found in %q", name, m.Entity.Name)
			}
			cols[i] = quote(name)
			marks[i] = "?"
		}
		tuple := "(" + strings.Join(marks, ", ") + ")"
		tuples := make([]string, len(input.Rows))
		var params []any
		for r, row := range input.Rows {
			if len(row) != len(names) {
				return Statement{}, fmt.Errorf("row %d has %d values, want %d", r, len(row), len(names))
			}
			for i, v := range row {
				param, err := irValueToParam(v)
				if err != nil {
					return Statement{}, fmt.Errorf("row %d column %q: %w", r, names[i], err)
				}
				params = append(params, param)
			}
			tuples[r] = tuple
		}
		sql := "INSERT INTO " + table + " (" + strings.Join(cols, ", ") + ") VALUES " + strings.Join(tuples, ", ")
		return Statement{SQL: sql, Params: params}, nil
	case nil:
		return Statement{}, fmt.Errorf("insert into %q has no input", m.Entity.Name)
	default:
		sel, err := c.compileSelect(input)
		if err != nil {
			return Statement{}, fmt.Errorf("compile insert source: %w", err)
		}
		rt := input.RowType()
		if rt == nil {
			return Statement{}, fmt.Errorf("insert source has no row type")
		}
		names := rt.FieldNames()
		cols := make([]string, len(names))
		for i, name := range names {
			cols[i] = quote(name)
		}
		sql := "INSERT INTO " + table + " (" + strings.Join(cols, ", ") + ") " + sel.SQL
		return Statement{SQL: sql, Params: sel.Params}, nil
	}
}

// compileUpdate emits one statement per row for RelValues input, keyed
// by the first column, or one SET statement for assignment updates.
func (c *SQLCompiler) compileUpdate(m *algebra.RelModify) ([]Statement, error) {
	table := quote(m.Entity.Name)
	if input, ok := m.Input.(*algebra.RelValues); ok {
		names := input.Type.FieldNames()
		if len(names) < 2 {
			return nil, fmt.Errorf("update of %q needs a key and at least one column", m.Entity.Name)
		}
		sets := make([]string, 0, len(names)-1)
		for _, name := range names[1:] {
			sets = append(sets, quote(name)+" = ?")
		}
		sql := "UPDATE " + table + " SET " + strings.Join(sets, ", ") + " WHERE " + quote(names[0]) + " = ?"
		stmts := make([]Statement, 0, len(input.Rows))
		for r, row := range input.Rows {
			if len(row) != len(names) {
				return nil, fmt.Errorf("row %d has %d values, want %d", r, len(row), len(names))
			}
			params := make([]any, 0, len(row))
			for _, i := range keyLast(len(row)) {
				param, err := irValueToParam(row[i])
				if err != nil {
					return nil, fmt.Errorf("row %d column %q: %w", r, names[i], err)
				}
				params = append(params, param)
			}
			stmts = append(stmts, Statement{SQL: sql, Params: params})
		}
		return stmts, nil
	}

	if len(m.Updates) == 0 {
		return nil, fmt.Errorf("update of %q has no assignments", m.Entity.Name)
	}
	var params []any
	sets := make([]string, len(m.Updates))
	for i, a := range m.Updates {
		if _, ok := m.Entity.RowType.Field(a.Column, true, false); !ok {
			return nil, fmt.Errorf("column %q not found in %q", a.Column, m.Entity.Name)
		}
		switch v := a.Value.(type) {
		case algebra.Literal:
			param, err := irValueToParam(v.Value)
			if err != nil {
				return nil, fmt.Errorf("assignment %q: %w", a.Column, err)
			}
			sets[i] = quote(a.Column) + " = ?"
			params = append(params, param)
		case algebra.ColumnRef:
			sets[i] = quote(a.Column) + " = " + quote(v.Name)
		default:
			return nil, fmt.Errorf("assignment %q: unsupported expression %T", a.Column, a.Value)
		}
	}
	where, whereParams, err := c.dmlWhere(m)
	if err != nil {
		return nil, err
	}
	sql := "UPDATE " + table + " SET " + strings.Join(sets, ", ") + where
	return []Statement{{SQL: sql, Params: append(params, whereParams...)}}, nil
}

func (c *SQLCompiler) compileDelete(m *algebra.RelModify) (Statement, error) {
	table := quote(m.Entity.Name)
	if input, ok := m.Input.(*algebra.RelValues); ok {
		names := input.Type.FieldNames()
		if len(names) == 0 || len(input.Rows) == 0 {
			return Statement{}, fmt.Errorf("delete from %q has no keys", m.Entity.Name)
		}
		marks := make([]string, len(input.Rows))
		params := make([]any, len(input.Rows))
		for r, row := range input.Rows {
			if len(row) == 0 {
				return Statement{}, fmt.Errorf("row %d has no key", r)
			}
			param, err := irValueToParam(row[0])
			if err != nil {
				return Statement{}, fmt.Errorf("row %d key: %w", r, err)
			}
			marks[r] = "?"
			params[r] = param
		}
		sql := "DELETE FROM " + table + " WHERE " + quote(names[0]) + " IN (" + strings.Join(marks, ", ") + ")"
		return Statement{SQL: sql, Params: params}, nil
	}
	where, params, err := c.dmlWhere(m)
	if err != nil {
		return Statement{}, err
	}
	return Statement{SQL: "DELETE FROM " + table + where, Params: params}, nil
}

// dmlWhere renders the WHERE clause of an update or delete whose input is
// a scan of the target table, optionally filtered.
func (c *SQLCompiler) dmlWhere(m *algebra.RelModify) (string, []any, error) {
	var preds []algebra.Predicate
	cur := m.Input
	for {
		if f, ok := cur.(*algebra.RelFilter); ok {
			preds = append(algebra.Conjuncts(f.Condition), preds...)
			cur = f.Input
			continue
		}
		break
	}
	scan, ok := cur.(*algebra.RelScan)
	if !ok || scan.Entity.TableID != m.Entity.TableID {
		return "", nil, fmt.Errorf("%s of %q must select from the same table", m.Op, m.Entity.Name)
	}
	if len(preds) == 0 {
		return "", nil, nil
	}
	col := func(ref algebra.ColumnRef) (string, error) {
		if ref.Qualifier != "" && ref.Qualifier != scan.Alias() {
			return "", fmt.Errorf("unknown qualifier %q", ref.Qualifier)
		}
		if _, ok := m.Entity.RowType.Field(ref.Name, true, false); !ok {
			return "", fmt.Errorf("unknown column %q", ref.Name)
		}
		return quote(ref.Name), nil
	}
	where, params, err := c.compileConjunction(preds, col)
	if err != nil {
		return "", nil, fmt.Errorf("compile filter: %w", err)
	}
	return " WHERE " + where, params, nil
}

// keyLast orders column indexes so the key binds after the SET values.
func keyLast(n int) []int {
	idx := make([]int, 0, n)
	for i := 1; i < n; i++ {
		idx = append(idx, i)
	}
	return append(idx, 0)
}
