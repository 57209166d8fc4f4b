package catalog

import (
	"github.com/roach88/polycat/internal/algebra"
	"github.com/roach88/polycat/internal/ir"
	"github.com/roach88/polycat/internal/typesys"
)

// PhysicalNamespace is a namespace as it exists on one adapter.
type PhysicalNamespace struct {
	ID            int64        `json:"id"`
	Name          string       `json:"name"`
	AdapterID     int64        `json:"adapter_id"`
	Model         ir.DataModel `json:"model"`
	CaseSensitive bool         `json:"case_sensitive"`
}

// ColumnKey identifies a physical column within the catalog.
type ColumnKey struct {
	TableID  int64
	ColumnID int64
}

// PhysicalColumn is one stored column of a physical table.
// ID is the logical column id (local ids for substitute columns).
type PhysicalColumn struct {
	ID          int64
	TableID     int64
	AdapterID   int64
	Name        string
	LogicalName string
	Position    int
	PolyType    ir.PolyType
	Length      int
	Scale       int
	Nullable    bool
	Type        typesys.Type
}

// Key returns the registry key of the column.
func (c PhysicalColumn) Key() ColumnKey {
	return ColumnKey{TableID: c.TableID, ColumnID: c.ID}
}

// PhysicalTable is a stored table. Its column list is never mutated; changes
// replace the table in the catalog.
type PhysicalTable struct {
	ID            int64
	AllocationID  int64
	LogicalID     int64
	AdapterID     int64
	NamespaceID   int64
	NamespaceName string
	Name          string
	LogicalName   string
	Columns       []PhysicalColumn
	readOnly      bool
}

// ColumnNames returns the physical column names in order.
func (t *PhysicalTable) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// Column finds a column by logical column id.
func (t *PhysicalTable) Column(id int64) (PhysicalColumn, bool) {
	for _, c := range t.Columns {
		if c.ID == id {
			return c, true
		}
	}
	return PhysicalColumn{}, false
}

// RowType is the record type of the table's rows.
func (t *PhysicalTable) RowType() *typesys.Record {
	fields := make([]typesys.Field, len(t.Columns))
	for i, c := range t.Columns {
		fields[i] = typesys.Field{ID: c.ID, Name: c.Name, Index: i, Type: c.Type}
	}
	return typesys.NewRecord(fields...)
}

// Ref describes the table to algebra leaves.
func (t *PhysicalTable) Ref() algebra.EntityRef {
	return algebra.EntityRef{
		AllocationID: t.AllocationID,
		TableID:      t.ID,
		Namespace:    t.NamespaceName,
		Name:         t.Name,
		Model:        ir.ModelRelational,
		RowType:      t.RowType(),
	}
}

// withColumns returns a copy of t holding cols.
func (t *PhysicalTable) withColumns(cols []PhysicalColumn) *PhysicalTable {
	next := *t
	next.Columns = cols
	return &next
}

// AllocationRelation records the physical tables owned by one allocation.
// DocumentType is the collection's logical type for document allocations.
type AllocationRelation struct {
	Allocation   ir.AllocationEntity
	TableIDs     []int64
	DocumentType *typesys.DocumentType
}

// Modifier builds modification operators for an entity.
type Modifier interface {
	BuildModify(input algebra.Node, op algebra.Operation) (algebra.Node, error)
}

// PhysicalEntity is the physical realization of one allocation:
// *PhysicalTable, *PhysicalCollection or *PhysicalGraph.
type PhysicalEntity interface {
	// Ref describes the entity in its logical model.
	Ref() algebra.EntityRef
	// PhysicalTables lists the backing tables in relation order.
	PhysicalTables() []*PhysicalTable
	// Modifier reports the entity's modification capability. Entities of
	// read-only catalogs have none.
	Modifier() (Modifier, bool)
	physicalEntity()
}

func (*PhysicalTable) physicalEntity() {}

// PhysicalTables returns the table itself.
func (t *PhysicalTable) PhysicalTables() []*PhysicalTable { return []*PhysicalTable{t} }

// Modifier returns the table's modifier; ok is false for read-only tables.
func (t *PhysicalTable) Modifier() (Modifier, bool) {
	if t.readOnly {
		return nil, false
	}
	return tableModifier{t}, true
}

type tableModifier struct {
	table *PhysicalTable
}

func (m tableModifier) BuildModify(input algebra.Node, op algebra.Operation) (algebra.Node, error) {
	if !op.Valid() {
		return nil, NewUnsupportedError("operation %q on table %s", op, m.table.Name)
	}
	return &algebra.RelModify{Entity: m.table.Ref(), Input: input, Op: op}, nil
}

// PhysicalCollection is a document allocation re-encoded as one table of
// (_id, _data) rows.
type PhysicalCollection struct {
	Table *PhysicalTable
	Type  *typesys.DocumentType
	Name  string
}

func (*PhysicalCollection) physicalEntity() {}

// Ref describes the collection with its document type as row type.
func (c *PhysicalCollection) Ref() algebra.EntityRef {
	return algebra.EntityRef{
		AllocationID: c.Table.AllocationID,
		TableID:      c.Table.ID,
		Namespace:    c.Table.NamespaceName,
		Name:         c.Name,
		Model:        ir.ModelDocument,
		RowType:      c.Type,
	}
}

// PhysicalTables returns the backing (_id, _data) table.
func (c *PhysicalCollection) PhysicalTables() []*PhysicalTable { return []*PhysicalTable{c.Table} }

// Modifier returns the collection's modifier; ok is false when read-only.
func (c *PhysicalCollection) Modifier() (Modifier, bool) {
	if c.Table.readOnly {
		return nil, false
	}
	return collectionModifier{c}, true
}

type collectionModifier struct {
	coll *PhysicalCollection
}

func (m collectionModifier) BuildModify(input algebra.Node, op algebra.Operation) (algebra.Node, error) {
	if !op.Valid() {
		return nil, NewUnsupportedError("operation %q on collection %s", op, m.coll.Name)
	}
	return &algebra.DocModify{Entity: m.coll.Ref(), Input: input, Op: op}, nil
}

// PhysicalGraph is a graph allocation re-encoded as four tables.
type PhysicalGraph struct {
	Name           string
	Nodes          *PhysicalTable
	NodeProperties *PhysicalTable
	Edges          *PhysicalTable
	EdgeProperties *PhysicalTable
}

func (*PhysicalGraph) physicalEntity() {}

// Ref describes the graph, keyed by its nodes table.
func (g *PhysicalGraph) Ref() algebra.EntityRef {
	return algebra.EntityRef{
		AllocationID: g.Nodes.AllocationID,
		TableID:      g.Nodes.ID,
		Namespace:    g.Nodes.NamespaceName,
		Name:         g.Name,
		Model:        ir.ModelGraph,
		RowType:      typesys.GraphType(),
	}
}

// PhysicalTables returns the four tables in creation order.
func (g *PhysicalGraph) PhysicalTables() []*PhysicalTable {
	return []*PhysicalTable{g.Nodes, g.NodeProperties, g.Edges, g.EdgeProperties}
}

// Modifier returns the graph's modifier; ok is false when read-only.
func (g *PhysicalGraph) Modifier() (Modifier, bool) {
	if g.Nodes.readOnly {
		return nil, false
	}
	return graphModifier{g}, true
}

type graphModifier struct {
	graph *PhysicalGraph
}

func (m graphModifier) BuildModify(input algebra.Node, op algebra.Operation) (algebra.Node, error) {
	if !op.Valid() {
		return nil, NewUnsupportedError("operation %q on graph %s", op, m.graph.Name)
	}
	return &algebra.GraphModify{Entity: m.graph.Ref(), Input: input, Op: op}, nil
}
