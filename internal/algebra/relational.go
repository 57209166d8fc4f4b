package algebra

import (
	"github.com/roach88/polycat/internal/ir"
	"github.com/roach88/polycat/internal/typesys"
)

// RelScan reads every row of one physical table.
type RelScan struct {
	Entity EntityRef
	// As is the alias used by qualified column references. Empty means
	// the table name.
	As string
}

func (*RelScan) node()                   {}
func (*RelScan) Model() ir.DataModel     { return ir.ModelRelational }
func (*RelScan) Kind() NodeKind          { return KindRelScan }
func (*RelScan) Inputs() []Node          { return nil }
func (s *RelScan) RowType() typesys.Type { return s.Entity.RowType }

// Alias returns the name qualified references use for this scan.
func (s *RelScan) Alias() string {
	if s.As != "" {
		return s.As
	}
	return s.Entity.Name
}

type RelFilter struct {
	Input     Node
	Condition Predicate
}

func (*RelFilter) node()                   {}
func (*RelFilter) Model() ir.DataModel     { return ir.ModelRelational }
func (*RelFilter) Kind() NodeKind          { return KindRelFilter }
func (f *RelFilter) Inputs() []Node        { return []Node{f.Input} }
func (f *RelFilter) RowType() typesys.Type { return rowTypeOf(f.Input) }

// ProjectItem selects one column, optionally renamed.
type ProjectItem struct {
	Column ColumnRef
	As     string
}

// Name is the output column name.
func (p ProjectItem) Name() string {
	if p.As != "" {
		return p.As
	}
	return p.Column.Name
}

type RelProject struct {
	Input Node
	Items []ProjectItem
}

func (*RelProject) node()               {}
func (*RelProject) Model() ir.DataModel { return ir.ModelRelational }
func (*RelProject) Kind() NodeKind      { return KindRelProject }
func (p *RelProject) Inputs() []Node    { return []Node{p.Input} }

// RowType holds the resolvable items in order. Unresolvable items are
// reported by Validate.
func (p *RelProject) RowType() typesys.Type {
	fields := make([]typesys.Field, 0, len(p.Items))
	for _, item := range p.Items {
		f, ok := Lookup(p.Input, item.Column)
		if !ok {
			continue
		}
		f.Name = item.Name()
		fields = append(fields, f)
	}
	return typesys.NewRecord(fields...)
}

// RelJoin is an inner join.
type RelJoin struct {
	Left      Node
	Right     Node
	Condition Predicate
}

func (*RelJoin) node()               {}
func (*RelJoin) Model() ir.DataModel { return ir.ModelRelational }
func (*RelJoin) Kind() NodeKind      { return KindRelJoin }
func (j *RelJoin) Inputs() []Node    { return []Node{j.Left, j.Right} }

func (j *RelJoin) RowType() typesys.Type {
	l, r := rowTypeOf(j.Left), rowTypeOf(j.Right)
	if l == nil || r == nil {
		return nil
	}
	return typesys.Concat(l, r)
}

type RelSort struct {
	SortCore
}

func (*RelSort) node()               {}
func (*RelSort) Model() ir.DataModel { return ir.ModelRelational }
func (*RelSort) Kind() NodeKind      { return KindRelSort }

// RelValues is a literal row set.
type RelValues struct {
	Type *typesys.Record
	Rows [][]ir.IRValue
}

func (*RelValues) node()                   {}
func (*RelValues) Model() ir.DataModel     { return ir.ModelRelational }
func (*RelValues) Kind() NodeKind          { return KindRelValues }
func (*RelValues) Inputs() []Node          { return nil }
func (v *RelValues) RowType() typesys.Type { return v.Type }

// Assignment sets one column in an update.
type Assignment struct {
	Column string
	Value  Expr
}

// RelModify writes to a physical table.
//
// Insert takes rows from Input. Update and delete apply to the rows Input
// selects; for update with RelValues input, each row replaces the row with
// the same value in the first column (Key).
type RelModify struct {
	Entity  EntityRef
	Input   Node
	Op      Operation
	Updates []Assignment
}

func (*RelModify) node()                   {}
func (*RelModify) Model() ir.DataModel     { return ir.ModelRelational }
func (*RelModify) Kind() NodeKind          { return KindRelModify }
func (m *RelModify) Inputs() []Node        { return []Node{m.Input} }
func (m *RelModify) RowType() typesys.Type { return m.Entity.RowType }

// RelCollect groups independent relational subtrees that together produce
// one logical result, such as the four relations of a re-encoded graph.
type RelCollect struct {
	Parts []Node
	Type  typesys.Type
}

func (*RelCollect) node()               {}
func (*RelCollect) Model() ir.DataModel { return ir.ModelRelational }
func (*RelCollect) Kind() NodeKind      { return KindRelCollect }
func (c *RelCollect) Inputs() []Node    { return c.Parts }

func (c *RelCollect) RowType() typesys.Type {
	if c.Type == nil {
		return typesys.NewRecord()
	}
	return c.Type
}

// Lookup resolves a column reference in the scope of n.
//
// Unqualified names resolve against n's row type. Qualified names resolve
// against the scans reachable through filters, sorts and joins; projections
// and model boundaries close the scope.
func Lookup(n Node, ref ColumnRef) (typesys.Field, bool) {
	if n == nil {
		return typesys.Field{}, false
	}
	if ref.Qualifier == "" {
		rt := n.RowType()
		if rt == nil {
			return typesys.Field{}, false
		}
		return rt.Field(ref.Name, true, false)
	}
	switch node := n.(type) {
	case *RelScan:
		if node.Alias() == ref.Qualifier {
			return node.RowType().Field(ref.Name, true, false)
		}
	case *RelFilter:
		return Lookup(node.Input, ref)
	case *RelSort:
		return Lookup(node.Input, ref)
	case *RelJoin:
		if f, ok := Lookup(node.Left, ref); ok {
			return f, true
		}
		return Lookup(node.Right, ref)
	}
	return typesys.Field{}, false
}
