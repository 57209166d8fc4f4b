package algebra

import (
	"github.com/roach88/polycat/internal/ir"
	"github.com/roach88/polycat/internal/typesys"
)

// NodeKind tags the operator independent of its Go type.
type NodeKind string

const (
	KindRelScan     NodeKind = "rel_scan"
	KindRelFilter   NodeKind = "rel_filter"
	KindRelProject  NodeKind = "rel_project"
	KindRelJoin     NodeKind = "rel_join"
	KindRelSort     NodeKind = "rel_sort"
	KindRelValues   NodeKind = "rel_values"
	KindRelModify   NodeKind = "rel_modify"
	KindRelCollect  NodeKind = "rel_collect"
	KindDocScan     NodeKind = "doc_scan"
	KindDocFilter   NodeKind = "doc_filter"
	KindDocSort     NodeKind = "doc_sort"
	KindDocValues   NodeKind = "doc_values"
	KindDocModify   NodeKind = "doc_modify"
	KindGraphScan   NodeKind = "graph_scan"
	KindGraphMatch  NodeKind = "graph_match"
	KindGraphSort   NodeKind = "graph_sort"
	KindGraphValues NodeKind = "graph_values"
	KindGraphModify NodeKind = "graph_modify"
	KindTransformer NodeKind = "transformer"
)

// Node is an operator in an algebra tree.
type Node interface {
	Model() ir.DataModel
	Kind() NodeKind
	Inputs() []Node
	RowType() typesys.Type
	node()
}

// Operation is the kind of change a modify node applies.
type Operation string

const (
	OpInsert Operation = "insert"
	OpUpdate Operation = "update"
	OpDelete Operation = "delete"
)

// Valid reports whether op is a known operation.
func (op Operation) Valid() bool {
	switch op {
	case OpInsert, OpUpdate, OpDelete:
		return true
	}
	return false
}

// EntityRef describes the physical structure a leaf node reads or writes.
// Name is the physical table (or collection/graph) name inside Namespace.
type EntityRef struct {
	AllocationID int64
	TableID      int64
	Namespace    string
	Name         string
	Model        ir.DataModel
	RowType      typesys.Type
}

// Direction is a sort direction.
type Direction string

const (
	Ascending  Direction = "ASC"
	Descending Direction = "DESC"
)

// FieldCollation is one ordering key. Path, when set, addresses a value
// inside a document payload held by Column.
type FieldCollation struct {
	Column    ColumnRef
	Path      []string
	Direction Direction
}

// SortCore holds the structural fields shared by every model's sort.
// Offset and Limit are nil when absent.
type SortCore struct {
	Input     Node
	Collation []FieldCollation
	Offset    Expr
	Limit     Expr
}

func (s *SortCore) Inputs() []Node        { return []Node{s.Input} }
func (s *SortCore) RowType() typesys.Type { return rowTypeOf(s.Input) }

func rowTypeOf(n Node) typesys.Type {
	if n == nil {
		return nil
	}
	return n.RowType()
}

// Transformer presents the result of relational inputs as another model.
// It marks a model boundary in the tree.
type Transformer struct {
	Out  ir.DataModel
	In   []Node
	Type typesys.Type
}

func (*Transformer) node()                   {}
func (t *Transformer) Model() ir.DataModel   { return t.Out }
func (*Transformer) Kind() NodeKind          { return KindTransformer }
func (t *Transformer) Inputs() []Node        { return t.In }
func (t *Transformer) RowType() typesys.Type { return t.Type }

// Walk visits n and its descendants depth-first. Returning false from fn
// skips the children of the visited node.
func Walk(n Node, fn func(Node) bool) {
	if n == nil || !fn(n) {
		return
	}
	for _, in := range n.Inputs() {
		Walk(in, fn)
	}
}
