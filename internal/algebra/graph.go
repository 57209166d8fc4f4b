package algebra

import (
	"github.com/roach88/polycat/internal/ir"
	"github.com/roach88/polycat/internal/typesys"
)

// GraphScan reads a whole property graph.
type GraphScan struct {
	Entity EntityRef
}

func (*GraphScan) node()                 {}
func (*GraphScan) Model() ir.DataModel   { return ir.ModelGraph }
func (*GraphScan) Kind() NodeKind        { return KindGraphScan }
func (*GraphScan) Inputs() []Node        { return nil }
func (*GraphScan) RowType() typesys.Type { return typesys.GraphType() }

// NodePattern matches graph nodes. Empty Label and nil Properties match any node.
type NodePattern struct {
	Variable   string
	Label      string
	Properties ir.IRObject
}

// EdgePattern matches directed edges from the source to the target node.
type EdgePattern struct {
	Variable   string
	Label      string
	Properties ir.IRObject
}

// PathPattern is either a single node pattern or (source)-[edge]->(target).
type PathPattern struct {
	Source NodePattern
	Edge   *EdgePattern
	Target *NodePattern
}

// Variables lists the distinct bound pattern variables in pattern order. A
// target reusing the source variable is a self-loop and adds nothing.
func (p PathPattern) Variables() []string {
	var out []string
	add := func(v string) {
		if v == "" {
			return
		}
		for _, seen := range out {
			if seen == v {
				return
			}
		}
		out = append(out, v)
	}
	add(p.Source.Variable)
	if p.Edge != nil {
		add(p.Edge.Variable)
	}
	if p.Target != nil {
		add(p.Target.Variable)
	}
	return out
}

// SelfLoop reports whether source and target bind the same variable.
func (p PathPattern) SelfLoop() bool {
	return p.Target != nil && p.Source.Variable != "" && p.Source.Variable == p.Target.Variable
}

// GraphMatch binds the pattern against the graph read by Input. Each result
// row holds the element id bound to every pattern variable.
type GraphMatch struct {
	Input   Node
	Pattern PathPattern
}

func (*GraphMatch) node()               {}
func (*GraphMatch) Model() ir.DataModel { return ir.ModelGraph }
func (*GraphMatch) Kind() NodeKind      { return KindGraphMatch }
func (m *GraphMatch) Inputs() []Node    { return []Node{m.Input} }

func (m *GraphMatch) RowType() typesys.Type {
	vars := m.Pattern.Variables()
	fields := make([]typesys.Field, len(vars))
	for i, v := range vars {
		fields[i] = typesys.Field{ID: int64(i), Name: v, Type: typesys.Varchar(typesys.GraphIDSize)}
	}
	return typesys.NewRecord(fields...)
}

// GraphSort orders match results. Collation columns name pattern variables.
type GraphSort struct {
	SortCore
}

func (*GraphSort) node()               {}
func (*GraphSort) Model() ir.DataModel { return ir.ModelGraph }
func (*GraphSort) Kind() NodeKind      { return KindGraphSort }

// GraphNode is a literal graph node.
type GraphNode struct {
	ID         string
	Label      string
	Properties ir.IRObject
}

// GraphEdge is a literal directed edge.
type GraphEdge struct {
	ID         string
	Label      string
	Source     string
	Target     string
	Properties ir.IRObject
}

// GraphValues is a literal set of graph elements.
type GraphValues struct {
	Nodes []GraphNode
	Edges []GraphEdge
}

func (*GraphValues) node()                 {}
func (*GraphValues) Model() ir.DataModel   { return ir.ModelGraph }
func (*GraphValues) Kind() NodeKind        { return KindGraphValues }
func (*GraphValues) Inputs() []Node        { return nil }
func (*GraphValues) RowType() typesys.Type { return typesys.GraphType() }

// GraphModify writes graph elements taken from a GraphValues input. Delete
// uses only element ids.
type GraphModify struct {
	Entity EntityRef
	Input  Node
	Op     Operation
}

func (*GraphModify) node()                 {}
func (*GraphModify) Model() ir.DataModel   { return ir.ModelGraph }
func (*GraphModify) Kind() NodeKind        { return KindGraphModify }
func (m *GraphModify) Inputs() []Node      { return []Node{m.Input} }
func (*GraphModify) RowType() typesys.Type { return typesys.GraphType() }
