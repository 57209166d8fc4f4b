package querysql

import (
	"fmt"
	"strings"

	"github.com/roach88/polycat/internal/algebra"
	"github.com/roach88/polycat/internal/ir"
	"github.com/roach88/polycat/internal/typesys"
)

// Statement is one SQL statement with its positional parameters.
type Statement struct {
	SQL    string
	Params []any
}

// SQLCompiler compiles relational algebra to SQLite statements.
type SQLCompiler struct {
	// BoundValues holds the values for BoundEquals predicates.
	BoundValues map[string]any
}

// NewSQLCompiler creates a new SQLCompiler.
func NewSQLCompiler() *SQLCompiler {
	return &SQLCompiler{
		BoundValues: make(map[string]any),
	}
}

// Compile converts a tree that yields exactly one statement.
func (c *SQLCompiler) Compile(n algebra.Node) (Statement, error) {
	stmts, err := c.CompileAll(n)
	if err != nil {
		return Statement{}, err
	}
	if len(stmts) != 1 {
		return Statement{}, fmt.Errorf("tree compiles to %d statements, use CompileAll", len(stmts))
	}
	return stmts[0], nil
}

// CompileAll converts a tree into its statements in execution order.
// RelCollect parts and multi-row updates yield several statements.
func (c *SQLCompiler) CompileAll(n algebra.Node) ([]Statement, error) {
	switch node := n.(type) {
	case nil:
		return nil, fmt.Errorf("cannot compile nil node")
	case *algebra.RelCollect:
		var out []Statement
		for i, part := range node.Parts {
			stmts, err := c.CompileAll(part)
			if err != nil {
				return nil, fmt.Errorf("collect part %d: %w", i, err)
			}
			out = append(out, stmts...)
		}
		return out, nil
	case *algebra.RelModify:
		return c.compileModify(node)
	case *algebra.RelScan, *algebra.RelFilter, *algebra.RelProject, *algebra.RelJoin, *algebra.RelSort:
		stmt, err := c.compileSelect(n)
		if err != nil {
			return nil, err
		}
		return []Statement{stmt}, nil
	case *algebra.RelValues:
		return nil, fmt.Errorf("rel_values compiles only as modify input")
	default:
		return nil, fmt.Errorf("cannot compile %s node: lower %s operators to relational first", n.Kind(), n.Model())
	}
}

// source is one table in a flattened FROM clause.
type source struct {
	alias string
	table string
	row   typesys.Type
	on    []algebra.Predicate
}

type selectQuery struct {
	sources []*source
	where   []algebra.Predicate
	project *algebra.RelProject
	sort    *algebra.RelSort
}

func (c *SQLCompiler) compileSelect(n algebra.Node) (Statement, error) {
	q := &selectQuery{}
	cur := n
peel:
	for {
		switch node := cur.(type) {
		case *algebra.RelSort:
			if q.sort != nil {
				break peel
			}
			q.sort = node
			cur = node.Input
		case *algebra.RelProject:
			if q.project != nil {
				break peel
			}
			q.project = node
			cur = node.Input
		default:
			break peel
		}
	}
	if err := q.flatten(cur); err != nil {
		return Statement{}, err
	}

	var b strings.Builder
	var params []any

	// SELECT
	outputs, selectList, err := q.outputs()
	if err != nil {
		return Statement{}, err
	}
	b.WriteString("SELECT " + strings.Join(selectList, ", "))

	// FROM / JOIN
	for i, src := range q.sources {
		if i == 0 {
			b.WriteString(" FROM ")
		} else {
			b.WriteString(" INNER JOIN ")
		}
		b.WriteString(quote(src.table) + " AS " + quote(src.alias))
		if i > 0 {
			on, onParams, err := c.compileConjunction(src.on, q.column)
			if err != nil {
				return Statement{}, fmt.Errorf("compile join condition: %w", err)
			}
			b.WriteString(" ON " + on)
			params = append(params, onParams...)
		}
	}

	// WHERE
	if len(q.where) > 0 {
		where, whereParams, err := c.compileConjunction(q.where, q.column)
		if err != nil {
			return Statement{}, fmt.Errorf("compile filter: %w", err)
		}
		b.WriteString(" WHERE " + where)
		params = append(params, whereParams...)
	}

	// ORDER BY is mandatory.
	order, orderParams, err := q.orderBy(outputs)
	if err != nil {
		return Statement{}, err
	}
	b.WriteString(" ORDER BY " + order)
	params = append(params, orderParams...)

	// LIMIT / OFFSET
	if q.sort != nil {
		limit, limitParams, err := limitClause(&q.sort.SortCore)
		if err != nil {
			return Statement{}, err
		}
		b.WriteString(limit)
		params = append(params, limitParams...)
	}

	return Statement{SQL: b.String(), Params: params}, nil
}

// flatten collects scans, join conditions and filters of a join tree.
func (q *selectQuery) flatten(n algebra.Node) error {
	switch node := n.(type) {
	case *algebra.RelScan:
		alias := node.Alias()
		for _, s := range q.sources {
			if s.alias == alias {
				return fmt.Errorf("duplicate scan alias %q", alias)
			}
		}
		if node.Entity.RowType == nil {
			return fmt.Errorf("scan of %q has no row type", node.Entity.Name)
		}
		q.sources = append(q.sources, &source{alias: alias, table: node.Entity.Name, row: node.Entity.RowType})
		return nil
	case *algebra.RelFilter:
		if err := q.flatten(node.Input); err != nil {
			return err
		}
		q.where = append(q.where, algebra.Conjuncts(node.Condition)...)
		return nil
	case *algebra.RelJoin:
		if err := q.flatten(node.Left); err != nil {
			return err
		}
		if err := q.flatten(node.Right); err != nil {
			return err
		}
		// Attach to the last joined source so every referenced alias is in scope.
		last := q.sources[len(q.sources)-1]
		last.on = append(last.on, algebra.Conjuncts(node.Condition)...)
		return nil
	case nil:
		return fmt.Errorf("nil input in query")
	default:
		return fmt.Errorf("unsupported %s inside a query", n.Kind())
	}
}

// column renders a qualified column reference.
func (q *selectQuery) column(ref algebra.ColumnRef) (string, error) {
	if ref.Qualifier != "" {
		for _, s := range q.sources {
			if s.alias != ref.Qualifier {
				continue
			}
			if _, ok := s.row.Field(ref.Name, true, false); !ok {
				return "", fmt.Errorf("column %q not found in %q", ref.Name, s.alias)
			}
			return quote(s.alias) + "." + quote(ref.Name), nil
		}
		return "", fmt.Errorf("unknown qualifier %q", ref.Qualifier)
	}
	var found *source
	for _, s := range q.sources {
		if _, ok := s.row.Field(ref.Name, true, false); ok {
			if found != nil {
				return "", fmt.Errorf("column %q is ambiguous", ref.Name)
			}
			found = s
		}
	}
	if found == nil {
		return "", fmt.Errorf("unknown column %q", ref.Name)
	}
	return quote(found.alias) + "." + quote(ref.Name), nil
}

// outputs returns the ORDER BY keys of the output columns and the select list.
func (q *selectQuery) outputs() ([]string, []string, error) {
	if q.project != nil {
		if len(q.project.Items) == 0 {
			return nil, nil, fmt.Errorf("projection selects no columns")
		}
		keys := make([]string, len(q.project.Items))
		list := make([]string, len(q.project.Items))
		for i, item := range q.project.Items {
			col, err := q.column(item.Column)
			if err != nil {
				return nil, nil, err
			}
			keys[i] = quote(item.Name())
			list[i] = col + " AS " + quote(item.Name())
		}
		return keys, list, nil
	}
	var cols []string
	for _, s := range q.sources {
		for _, name := range s.row.FieldNames() {
			cols = append(cols, quote(s.alias)+"."+quote(name))
		}
	}
	if len(cols) == 0 {
		return nil, nil, fmt.Errorf("query has no output columns")
	}
	return cols, cols, nil
}

func (q *selectQuery) isOutput(name string) bool {
	if q.project == nil {
		return false
	}
	for _, item := range q.project.Items {
		if item.Name() == name {
			return true
		}
	}
	return false
}

func (q *selectQuery) orderBy(outputs []string) (string, []any, error) {
	var keys []string
	var params []any
	used := map[string]bool{}
	if q.sort != nil {
		for _, fc := range q.sort.Collation {
			var key string
			switch {
			case len(fc.Path) > 0:
				col, err := q.column(fc.Column)
				if err != nil {
					return "", nil, fmt.Errorf("compile sort key: %w", err)
				}
				path, err := jsonPath(fc.Path)
				if err != nil {
					return "", nil, err
				}
				key = "json_extract(" + col + ", ?)"
				params = append(params, path)
			case fc.Column.Qualifier == "" && q.isOutput(fc.Column.Name):
				key = quote(fc.Column.Name)
			default:
				col, err := q.column(fc.Column)
				if err != nil {
					return "", nil, fmt.Errorf("compile sort key: %w", err)
				}
				key = col
			}
			dir := fc.Direction
			if dir == "" {
				dir = algebra.Ascending
			}
			keys = append(keys, key+" COLLATE BINARY "+string(dir))
			used[key] = true
		}
	}
	for _, out := range outputs {
		if !used[out] {
			keys = append(keys, out+" COLLATE BINARY ASC")
		}
	}
	return strings.Join(keys, ", "), params, nil
}

func limitClause(s *algebra.SortCore) (string, []any, error) {
	limit, hasLimit, err := countParam("limit", s.Limit)
	if err != nil {
		return "", nil, err
	}
	offset, hasOffset, err := countParam("offset", s.Offset)
	if err != nil {
		return "", nil, err
	}
	switch {
	case hasLimit && hasOffset:
		return " LIMIT ? OFFSET ?", []any{limit, offset}, nil
	case hasLimit:
		return " LIMIT ?", []any{limit}, nil
	case hasOffset:
		return " LIMIT -1 OFFSET ?", []any{offset}, nil
	default:
		return "", nil, nil
	}
}

func countParam(name string, e algebra.Expr) (int64, bool, error) {
	if e == nil {
		return 0, false, nil
	}
	lit, ok := e.(algebra.Literal)
	if !ok {
		return 0, false, fmt.Errorf("%s must be a literal", name)
	}
	n, ok := lit.Value.(ir.IRInt)
	if !ok || n < 0 {
		return 0, false, fmt.Errorf("%s must be a non-negative integer", name)
	}
	return int64(n), true, nil
}

type columnFunc func(algebra.ColumnRef) (string, error)

func (c *SQLCompiler) compileConjunction(preds []algebra.Predicate, col columnFunc) (string, []any, error) {
	if len(preds) == 0 {
		return "1 = 1", nil, nil
	}
	parts := make([]string, 0, len(preds))
	var params []any
	for _, p := range preds {
		sql, ps, err := c.compilePredicate(p, col)
		if err != nil {
			return "", nil, err
		}
		parts = append(parts, sql)
		params = append(params, ps...)
	}
	return strings.Join(parts, " AND "), params, nil
}

// compilePredicate compiles one predicate. Values are never interpolated.
func (c *SQLCompiler) compilePredicate(p algebra.Predicate, col columnFunc) (string, []any, error) {
	switch pred := p.(type) {
	case nil:
		return "1 = 1", nil, nil
	case *algebra.Equals:
		column, err := col(pred.Column)
		if err != nil {
			return "", nil, err
		}
		if _, isNull := pred.Value.(ir.IRNull); isNull {
			return column + " IS NULL", nil, nil
		}
		param, err := irValueToParam(pred.Value)
		if err != nil {
			return "", nil, fmt.Errorf("convert value: %w", err)
		}
		return column + " = ?", []any{param}, nil
	case *algebra.ColumnEquals:
		left, err := col(pred.Left)
		if err != nil {
			return "", nil, err
		}
		right, err := col(pred.Right)
		if err != nil {
			return "", nil, err
		}
		return left + " = " + right, nil, nil
	case *algebra.BoundEquals:
		column, err := col(pred.Column)
		if err != nil {
			return "", nil, err
		}
		val, ok := c.BoundValues[pred.Param]
		if !ok {
			return "", nil, fmt.Errorf("no bound value for parameter %q", pred.Param)
		}
		return column + " = ?", []any{val}, nil
	case *algebra.In:
		column, err := col(pred.Column)
		if err != nil {
			return "", nil, err
		}
		if len(pred.Values) == 0 {
			return "1 = 0", nil, nil
		}
		params := make([]any, len(pred.Values))
		marks := make([]string, len(pred.Values))
		for i, v := range pred.Values {
			param, err := irValueToParam(v)
			if err != nil {
				return "", nil, fmt.Errorf("convert value: %w", err)
			}
			params[i] = param
			marks[i] = "?"
		}
		return column + " IN (" + strings.Join(marks, ", ") + ")", params, nil
	case *algebra.PayloadEquals:
		column, err := col(pred.Column)
		if err != nil {
			return "", nil, err
		}
		path, err := jsonPath(pred.Path)
		if err != nil {
			return "", nil, err
		}
		param, err := payloadParam(pred.Value)
		if err != nil {
			return "", nil, err
		}
		return "json_extract(" + column + ", ?) = ?", []any{path, param}, nil
	case *algebra.And:
		sql, params, err := c.compileConjunction(algebra.Conjuncts(pred), col)
		if err != nil {
			return "", nil, err
		}
		if len(pred.Predicates) > 1 {
			sql = "(" + sql + ")"
		}
		return sql, params, nil
	default:
		return "", nil, fmt.Errorf("unsupported predicate type: %T", p)
	}
}

// jsonPath renders a SQLite JSON path with quoted labels.
func jsonPath(path []string) (string, error) {
	if len(path) == 0 {
		return "", fmt.Errorf("empty payload path")
	}
	var b strings.Builder
	b.WriteString("$")
	for _, key := range path {
		if strings.ContainsAny(key, `"\`) {
			return "", fmt.Errorf("payload key %q cannot be addressed", key)
		}
		b.WriteString(`."` + key + `"`)
	}
	return b.String(), nil
}

// payloadParam converts a comparison value to what json_extract returns:
// scalars as SQL values, objects and arrays as minified JSON text.
func payloadParam(v ir.IRValue) (any, error) {
	switch v.(type) {
	case ir.IRObject, ir.IRArray:
		data, err := ir.MarshalCanonical(v)
		if err != nil {
			return nil, err
		}
		return string(data), nil
	default:
		return irValueToParam(v)
	}
}

func quote(ident string) string {
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}

// irValueToParam converts an ir.IRValue to a Go native type for SQL parameter.
func irValueToParam(v ir.IRValue) (any, error) {
	switch val := v.(type) {
	case ir.IRString:
		return string(val), nil
	case ir.IRInt:
		return int64(val), nil
	case ir.IRBool:
		return bool(val), nil
	case ir.IRBytes:
		return []byte(val), nil
	case ir.IRNull, nil:
		return nil, nil
	case ir.IRArray:
		return nil, fmt.Errorf("IRArray cannot be used as SQL parameter directly")
	case ir.IRObject:
		return nil, fmt.Errorf("IRObject cannot be used as SQL parameter directly")
	default:
		return nil, fmt.Errorf("unsupported IRValue type for SQL parameter: %T", v)
	}
}
