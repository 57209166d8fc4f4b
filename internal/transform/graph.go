package transform

import (
	"fmt"

	"github.com/roach88/polycat/internal/algebra"
	"github.com/roach88/polycat/internal/catalog"
	"github.com/roach88/polycat/internal/ir"
	"github.com/roach88/polycat/internal/typesys"
)

type graphLowering struct {
	graph *catalog.PhysicalGraph
	opts  *options
}

func (l *graphLowering) lower(n algebra.Node) (algebra.Node, error) {
	switch node := n.(type) {
	case *algebra.GraphScan:
		if err := l.checkEntity(node.Entity); err != nil {
			return nil, err
		}
		return l.scan(), nil
	case *algebra.Transformer:
		if node.Out != ir.ModelGraph {
			return nil, catalog.NewUnsupportedError("transformer to %s inside a graph tree", node.Out)
		}
		return l.scan(), nil
	case *algebra.GraphMatch:
		return l.match(node)
	case *algebra.GraphSort:
		input, err := l.lower(node.Input)
		if err != nil {
			return nil, err
		}
		collation := make([]algebra.FieldCollation, len(node.Collation))
		for i, fc := range node.Collation {
			collation[i] = algebra.FieldCollation{Column: algebra.Col(fc.Column.Name), Direction: fc.Direction}
		}
		return &algebra.RelSort{SortCore: sortCore(node.SortCore, input, collation)}, nil
	case *algebra.GraphValues:
		return l.values(node)
	case *algebra.GraphModify:
		return l.modify(node)
	case nil:
		return nil, catalog.NewInvariantError("graph tree has a nil input")
	default:
		return nil, catalog.NewUnsupportedError("%s node inside a graph tree", n.Kind())
	}
}

func (l *graphLowering) checkEntity(ref algebra.EntityRef) error {
	if ref.AllocationID != l.graph.Nodes.AllocationID {
		return catalog.NewInvariantError("graph node reads allocation %d, target is %d", ref.AllocationID, l.graph.Nodes.AllocationID)
	}
	return nil
}

func (l *graphLowering) scan() *algebra.RelCollect {
	tables := l.graph.PhysicalTables()
	parts := make([]algebra.Node, len(tables))
	for i, t := range tables {
		parts[i] = &algebra.RelScan{Entity: t.Ref()}
	}
	return &algebra.RelCollect{Parts: parts, Type: typesys.GraphType()}
}

// matchBuilder accumulates the left-deep join tree of one pattern.
type matchBuilder struct {
	tree    algebra.Node
	filters []algebra.Predicate
	props   int
}

func (b *matchBuilder) join(right algebra.Node, cond algebra.Predicate) {
	if b.tree == nil {
		b.tree = right
		return
	}
	b.tree = &algebra.RelJoin{Left: b.tree, Right: right, Condition: cond}
}

func (b *matchBuilder) label(alias, label string) {
	if label != "" {
		b.filters = append(b.filters, &algebra.Equals{Column: algebra.QCol(alias, typesys.GraphLabelColumn), Value: ir.IRString(label)})
	}
}

// properties joins one property row per requested key onto the element.
func (b *matchBuilder) properties(alias string, table *catalog.PhysicalTable, props ir.IRObject) error {
	for _, key := range props.SortedKeys() {
		value, err := propertyValue(props[key])
		if err != nil {
			return fmt.Errorf("property %q: %w", key, err)
		}
		pa := fmt.Sprintf("%s_p%d", alias, b.props)
		b.props++
		b.join(&algebra.RelScan{Entity: table.Ref(), As: pa},
			&algebra.ColumnEquals{Left: algebra.QCol(pa, typesys.GraphIDColumn), Right: algebra.QCol(alias, typesys.GraphIDColumn)})
		b.filters = append(b.filters,
			&algebra.Equals{Column: algebra.QCol(pa, typesys.GraphKeyColumn), Value: ir.IRString(key)},
			&algebra.Equals{Column: algebra.QCol(pa, typesys.GraphValueColumn), Value: value},
		)
	}
	return nil
}

// match lowers a path pattern to joins over the substitute tables and
// projects the id bound to each named variable.
func (l *graphLowering) match(m *algebra.GraphMatch) (algebra.Node, error) {
	switch in := m.Input.(type) {
	case *algebra.GraphScan:
		if err := l.checkEntity(in.Entity); err != nil {
			return nil, err
		}
	case *algebra.Transformer:
		if in.Out != ir.ModelGraph {
			return nil, catalog.NewUnsupportedError("graph_match over a %s transformer", in.Out)
		}
	default:
		return nil, catalog.NewUnsupportedError("graph_match over %T", m.Input)
	}

	p := m.Pattern
	vars := p.Variables()
	if len(vars) == 0 {
		return nil, catalog.NewUnsupportedError("graph pattern binds no variables")
	}
	if (p.Edge == nil) != (p.Target == nil) {
		return nil, catalog.NewInvariantError("graph pattern needs both an edge and a target node")
	}

	b := &matchBuilder{}
	src := aliasOr(p.Source.Variable, "_n0")
	b.join(&algebra.RelScan{Entity: l.graph.Nodes.Ref(), As: src}, nil)
	b.label(src, p.Source.Label)
	if err := b.properties(src, l.graph.NodeProperties, p.Source.Properties); err != nil {
		return nil, catalog.NewInvariantError("source pattern: %v", err)
	}

	aliases := map[string]string{p.Source.Variable: src}
	if p.Edge != nil {
		if v := p.Edge.Variable; v != "" && (v == p.Source.Variable || v == p.Target.Variable) {
			return nil, catalog.NewInvariantError("graph pattern variable %q binds both a node and an edge", v)
		}
		edge := aliasOr(p.Edge.Variable, "_e0")
		cond := algebra.Predicate(&algebra.ColumnEquals{Left: algebra.QCol(edge, typesys.GraphSourceColumn), Right: algebra.QCol(src, typesys.GraphIDColumn)})
		if p.SelfLoop() {
			cond = algebra.AndOf(cond, &algebra.ColumnEquals{Left: algebra.QCol(edge, typesys.GraphTargetColumn), Right: algebra.QCol(src, typesys.GraphIDColumn)})
		}
		b.join(&algebra.RelScan{Entity: l.graph.Edges.Ref(), As: edge}, cond)
		b.label(edge, p.Edge.Label)
		if err := b.properties(edge, l.graph.EdgeProperties, p.Edge.Properties); err != nil {
			return nil, catalog.NewInvariantError("edge pattern: %v", err)
		}

		// A self-loop target is the source row itself.
		dst := src
		if !p.SelfLoop() {
			dst = aliasOr(p.Target.Variable, "_n1")
			b.join(&algebra.RelScan{Entity: l.graph.Nodes.Ref(), As: dst},
				&algebra.ColumnEquals{Left: algebra.QCol(dst, typesys.GraphIDColumn), Right: algebra.QCol(edge, typesys.GraphTargetColumn)})
		}
		b.label(dst, p.Target.Label)
		if err := b.properties(dst, l.graph.NodeProperties, p.Target.Properties); err != nil {
			return nil, catalog.NewInvariantError("target pattern: %v", err)
		}
		aliases[p.Edge.Variable] = edge
		aliases[p.Target.Variable] = dst
	}

	tree := b.tree
	if len(b.filters) > 0 {
		tree = &algebra.RelFilter{Input: tree, Condition: algebra.AndOf(b.filters...)}
	}
	items := make([]algebra.ProjectItem, len(vars))
	for i, v := range vars {
		items[i] = algebra.ProjectItem{Column: algebra.QCol(aliases[v], typesys.GraphIDColumn), As: v}
	}
	return &algebra.RelProject{Input: tree, Items: items}, nil
}

func aliasOr(variable, fallback string) string {
	if variable != "" {
		return variable
	}
	return fallback
}

// propertyValue renders a property as the canonical JSON text stored in
// the value column.
func propertyValue(v ir.IRValue) (ir.IRString, error) {
	data, err := ir.MarshalCanonical(v)
	if err != nil {
		return "", err
	}
	return ir.IRString(data), nil
}

// graphRows holds the substitute rows of a set of graph elements.
type graphRows struct {
	nodes, nodeProps, edges, edgeProps [][]ir.IRValue
	nodeIDs, edgeIDs                   []ir.IRValue
}

func (l *graphLowering) rows(v *algebra.GraphValues) (*graphRows, error) {
	r := &graphRows{}
	for i, n := range v.Nodes {
		id := n.ID
		if id == "" {
			id = l.opts.graphIDs()
		}
		r.nodes = append(r.nodes, []ir.IRValue{ir.IRString(id), ir.IRString(n.Label)})
		r.nodeIDs = append(r.nodeIDs, ir.IRString(id))
		props, err := propertyRows(id, n.Properties)
		if err != nil {
			return nil, catalog.NewInvariantError("node %d: %v", i, err)
		}
		r.nodeProps = append(r.nodeProps, props...)
	}
	for i, e := range v.Edges {
		if e.Source == "" || e.Target == "" {
			return nil, catalog.NewInvariantError("edge %d needs a source and a target", i)
		}
		id := e.ID
		if id == "" {
			id = l.opts.graphIDs()
		}
		r.edges = append(r.edges, []ir.IRValue{ir.IRString(id), ir.IRString(e.Label), ir.IRString(e.Source), ir.IRString(e.Target)})
		r.edgeIDs = append(r.edgeIDs, ir.IRString(id))
		props, err := propertyRows(id, e.Properties)
		if err != nil {
			return nil, catalog.NewInvariantError("edge %d: %v", i, err)
		}
		r.edgeProps = append(r.edgeProps, props...)
	}
	return r, nil
}

func propertyRows(id string, props ir.IRObject) ([][]ir.IRValue, error) {
	rows := make([][]ir.IRValue, 0, len(props))
	for _, key := range props.SortedKeys() {
		value, err := propertyValue(props[key])
		if err != nil {
			return nil, fmt.Errorf("property %q: %w", key, err)
		}
		rows = append(rows, []ir.IRValue{ir.IRString(id), ir.IRString(key), value})
	}
	return rows, nil
}

// values presents literal elements as rows of the four substitute tables.
func (l *graphLowering) values(v *algebra.GraphValues) (algebra.Node, error) {
	r, err := l.rows(v)
	if err != nil {
		return nil, err
	}
	sets := [][][]ir.IRValue{r.nodes, r.nodeProps, r.edges, r.edgeProps}
	tables := l.graph.PhysicalTables()
	parts := make([]algebra.Node, len(tables))
	for i, t := range tables {
		parts[i] = &algebra.RelValues{Type: t.RowType(), Rows: sets[i]}
	}
	return &algebra.RelCollect{Parts: parts, Type: typesys.GraphType()}, nil
}

func (l *graphLowering) modify(m *algebra.GraphModify) (algebra.Node, error) {
	if err := l.checkEntity(m.Entity); err != nil {
		return nil, err
	}
	values, ok := m.Input.(*algebra.GraphValues)
	if !ok {
		return nil, catalog.NewUnsupportedError("graph %s from %T, want literal graph elements", m.Op, m.Input)
	}
	switch m.Op {
	case algebra.OpInsert:
		return l.insert(values)
	case algebra.OpDelete:
		return l.delete(values)
	case algebra.OpUpdate:
		return l.update(values)
	default:
		return nil, catalog.NewUnsupportedError("graph operation %q", m.Op)
	}
}

func (l *graphLowering) insert(v *algebra.GraphValues) (algebra.Node, error) {
	r, err := l.rows(v)
	if err != nil {
		return nil, err
	}
	var parts []algebra.Node
	add := func(t *catalog.PhysicalTable, rows [][]ir.IRValue) {
		if len(rows) > 0 {
			parts = append(parts, &algebra.RelModify{
				Entity: t.Ref(),
				Input:  &algebra.RelValues{Type: t.RowType(), Rows: rows},
				Op:     algebra.OpInsert,
			})
		}
	}
	add(l.graph.Nodes, r.nodes)
	add(l.graph.NodeProperties, r.nodeProps)
	add(l.graph.Edges, r.edges)
	add(l.graph.EdgeProperties, r.edgeProps)
	return l.collect(parts)
}

// delete removes elements by id together with their properties. Edges of
// deleted nodes are not removed.
func (l *graphLowering) delete(v *algebra.GraphValues) (algebra.Node, error) {
	var parts []algebra.Node
	add := func(t *catalog.PhysicalTable, ids []ir.IRValue) {
		if len(ids) > 0 {
			parts = append(parts, l.deleteByID(t, ids))
		}
	}
	var nodeIDs, edgeIDs []ir.IRValue
	for i, n := range v.Nodes {
		if n.ID == "" {
			return nil, catalog.NewInvariantError("node %d of delete has no id", i)
		}
		nodeIDs = append(nodeIDs, ir.IRString(n.ID))
	}
	for i, e := range v.Edges {
		if e.ID == "" {
			return nil, catalog.NewInvariantError("edge %d of delete has no id", i)
		}
		edgeIDs = append(edgeIDs, ir.IRString(e.ID))
	}
	add(l.graph.NodeProperties, nodeIDs)
	add(l.graph.Nodes, nodeIDs)
	add(l.graph.EdgeProperties, edgeIDs)
	add(l.graph.Edges, edgeIDs)
	return l.collect(parts)
}

// update rewrites labels and endpoints in place and replaces the complete
// property set of every element.
func (l *graphLowering) update(v *algebra.GraphValues) (algebra.Node, error) {
	for i, n := range v.Nodes {
		if n.ID == "" {
			return nil, catalog.NewInvariantError("node %d of update has no id", i)
		}
	}
	for i, e := range v.Edges {
		if e.ID == "" {
			return nil, catalog.NewInvariantError("edge %d of update has no id", i)
		}
	}
	r, err := l.rows(v)
	if err != nil {
		return nil, err
	}
	var parts []algebra.Node
	replace := func(elements, props *catalog.PhysicalTable, rows, propRows [][]ir.IRValue, ids []ir.IRValue) {
		if len(rows) == 0 {
			return
		}
		parts = append(parts,
			&algebra.RelModify{
				Entity: elements.Ref(),
				Input:  &algebra.RelValues{Type: elements.RowType(), Rows: rows},
				Op:     algebra.OpUpdate,
			},
			l.deleteByID(props, ids),
		)
		if len(propRows) > 0 {
			parts = append(parts, &algebra.RelModify{
				Entity: props.Ref(),
				Input:  &algebra.RelValues{Type: props.RowType(), Rows: propRows},
				Op:     algebra.OpInsert,
			})
		}
	}
	replace(l.graph.Nodes, l.graph.NodeProperties, r.nodes, r.nodeProps, r.nodeIDs)
	replace(l.graph.Edges, l.graph.EdgeProperties, r.edges, r.edgeProps, r.edgeIDs)
	return l.collect(parts)
}

func (l *graphLowering) deleteByID(t *catalog.PhysicalTable, ids []ir.IRValue) algebra.Node {
	scan := &algebra.RelScan{Entity: t.Ref()}
	return &algebra.RelModify{
		Entity: t.Ref(),
		Input:  &algebra.RelFilter{Input: scan, Condition: &algebra.In{Column: algebra.Col(typesys.GraphIDColumn), Values: ids}},
		Op:     algebra.OpDelete,
	}
}

func (l *graphLowering) collect(parts []algebra.Node) (algebra.Node, error) {
	if len(parts) == 0 {
		return nil, catalog.NewInvariantError("graph modification of %s has no elements", l.graph.Name)
	}
	return &algebra.RelCollect{Parts: parts, Type: typesys.GraphType()}, nil
}
