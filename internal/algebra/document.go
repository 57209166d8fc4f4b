package algebra

import (
	"github.com/roach88/polycat/internal/ir"
	"github.com/roach88/polycat/internal/typesys"
)

// DocScan reads every document of a collection.
type DocScan struct {
	Entity EntityRef
}

func (*DocScan) node()                   {}
func (*DocScan) Model() ir.DataModel     { return ir.ModelDocument }
func (*DocScan) Kind() NodeKind          { return KindDocScan }
func (*DocScan) Inputs() []Node          { return nil }
func (s *DocScan) RowType() typesys.Type { return s.Entity.RowType }

// DocFilter keeps documents matching Condition (FieldEquals or And of them).
type DocFilter struct {
	Input     Node
	Condition Predicate
}

func (*DocFilter) node()                   {}
func (*DocFilter) Model() ir.DataModel     { return ir.ModelDocument }
func (*DocFilter) Kind() NodeKind          { return KindDocFilter }
func (f *DocFilter) Inputs() []Node        { return []Node{f.Input} }
func (f *DocFilter) RowType() typesys.Type { return rowTypeOf(f.Input) }

// DocSort orders documents. Collation columns name document fields.
type DocSort struct {
	SortCore
}

func (*DocSort) node()               {}
func (*DocSort) Model() ir.DataModel { return ir.ModelDocument }
func (*DocSort) Kind() NodeKind      { return KindDocSort }

// DocValues is a literal set of documents. Documents without _id get one
// assigned when lowered.
type DocValues struct {
	Documents []ir.IRObject
}

func (*DocValues) node()               {}
func (*DocValues) Model() ir.DataModel { return ir.ModelDocument }
func (*DocValues) Kind() NodeKind      { return KindDocValues }
func (*DocValues) Inputs() []Node      { return nil }

func (v *DocValues) RowType() typesys.Type {
	t := typesys.OfID()
	for _, doc := range v.Documents {
		for _, k := range doc.SortedKeys() {
			t.Field(k, true, false)
		}
	}
	return t
}

// DocModify writes documents. Insert and update (whole-document replace by
// _id) take DocValues; delete takes any document subtree selecting the
// documents to remove.
type DocModify struct {
	Entity EntityRef
	Input  Node
	Op     Operation
}

func (*DocModify) node()                   {}
func (*DocModify) Model() ir.DataModel     { return ir.ModelDocument }
func (*DocModify) Kind() NodeKind          { return KindDocModify }
func (m *DocModify) Inputs() []Node        { return []Node{m.Input} }
func (m *DocModify) RowType() typesys.Type { return m.Entity.RowType }
