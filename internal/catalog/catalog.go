package catalog

import (
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/roach88/polycat/internal/algebra"
	"github.com/roach88/polycat/internal/ir"
	"github.com/roach88/polycat/internal/typesys"
)

// ScanBuilder produces the scan tree of one allocation relation.
type ScanBuilder func(c *StoreCatalog, rel AllocationRelation) (algebra.Node, error)

// StoreCatalog is the registry of physical structures on one adapter.
//
// A StoreCatalog lives exactly as long as its adapter's activation. It is
// safe for concurrent use; see the package documentation for the limits.
type StoreCatalog struct {
	mu          sync.RWMutex
	adapterID   int64
	namespaces  map[int64]PhysicalNamespace
	tables      map[int64]*PhysicalTable
	columns     map[ColumnKey]PhysicalColumn
	allocations map[int64]AllocationRelation

	builders map[ir.DataModel]ScanBuilder
	readOnly bool
	logger   *zap.SugaredLogger
}

// Option configures a StoreCatalog.
type Option func(*StoreCatalog)

// WithLogger sets the logger for structural changes. Default is a no-op logger.
func WithLogger(logger *zap.SugaredLogger) Option {
	return func(c *StoreCatalog) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithReadOnly marks every entity of the catalog as not modifiable.
func WithReadOnly() Option {
	return func(c *StoreCatalog) {
		c.readOnly = true
	}
}

// WithScanBuilder overrides the scan strategy of a model. A nil builder
// removes it; scans of that model then fail as unsupported.
func WithScanBuilder(model ir.DataModel, builder ScanBuilder) Option {
	return func(c *StoreCatalog) {
		c.builders[model] = builder
	}
}

// New creates an empty catalog for an adapter.
func New(adapterID int64, opts ...Option) *StoreCatalog {
	c := &StoreCatalog{
		adapterID:   adapterID,
		namespaces:  make(map[int64]PhysicalNamespace),
		tables:      make(map[int64]*PhysicalTable),
		columns:     make(map[ColumnKey]PhysicalColumn),
		allocations: make(map[int64]AllocationRelation),
		builders: map[ir.DataModel]ScanBuilder{
			ir.ModelRelational: RelationalScan,
			ir.ModelDocument:   DocumentScan,
			ir.ModelGraph:      GraphScan,
		},
		logger: zap.NewNop().Sugar(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// AdapterID returns the adapter the catalog belongs to.
func (c *StoreCatalog) AdapterID() int64 {
	return c.adapterID
}

// ReadOnly reports whether the catalog was created with WithReadOnly.
func (c *StoreCatalog) ReadOnly() bool {
	return c.readOnly
}

// AddNamespace registers a namespace. An existing id is replaced.
func (c *StoreCatalog) AddNamespace(id int64, ns PhysicalNamespace) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ns.ID = id
	c.namespaces[id] = ns
	c.logger.Debugw("namespace registered", "adapter", c.adapterID, "namespace", id, "name", ns.Name)
}

// GetNamespace returns the namespace with the given id.
func (c *StoreCatalog) GetNamespace(id int64) (PhysicalNamespace, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ns, ok := c.namespaces[id]
	if !ok {
		return PhysicalNamespace{}, NewNotFoundError("namespace", id)
	}
	return ns, nil
}

// GetTable returns the current version of a table.
func (c *StoreCatalog) GetTable(id int64) (*PhysicalTable, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	t, ok := c.tables[id]
	if !ok {
		return nil, NewNotFoundError("table", id)
	}
	return t, nil
}

// GetColumn returns a column from the registry.
func (c *StoreCatalog) GetColumn(tableID, columnID int64) (PhysicalColumn, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	col, ok := c.columns[ColumnKey{TableID: tableID, ColumnID: columnID}]
	if !ok {
		return PhysicalColumn{}, NewNotFoundError("column", columnID)
	}
	return col, nil
}

// GetAllocation returns the relation entry of an allocation.
func (c *StoreCatalog) GetAllocation(id int64) (AllocationRelation, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	rel, ok := c.allocations[id]
	if !ok {
		return AllocationRelation{}, NewNotFoundError("allocation", id)
	}
	return rel, nil
}

// Tables lists all tables ordered by id.
func (c *StoreCatalog) Tables() []*PhysicalTable {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*PhysicalTable, 0, len(c.tables))
	for _, t := range c.tables {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Allocations lists all relation entries ordered by allocation id.
func (c *StoreCatalog) Allocations() []AllocationRelation {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]AllocationRelation, 0, len(c.allocations))
	for _, rel := range c.allocations {
		out = append(out, rel)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Allocation.ID < out[j].Allocation.ID })
	return out
}

// CreateTable derives a physical table from the placed columns of a
// relational allocation and registers it with relation [allocation.ID].
//
// Every allocation column id must be present in both columnNames and
// logicalColumns. Columns keep the order of allocationColumns.
func (c *StoreCatalog) CreateTable(
	namespaceName, tableName string,
	columnNames map[int64]string,
	logical ir.LogicalEntity,
	logicalColumns map[int64]ir.LogicalColumn,
	allocation ir.AllocationEntity,
	allocationColumns []ir.AllocationColumn,
) (*PhysicalTable, error) {
	cols := make([]PhysicalColumn, 0, len(allocationColumns))
	for _, ac := range allocationColumns {
		name, ok := columnNames[ac.ColumnID]
		if !ok {
			return nil, &Error{Code: ErrCodeNotFound, Kind: "column", ID: ac.ColumnID, Message: "no physical name for placed column"}
		}
		lc, ok := logicalColumns[ac.ColumnID]
		if !ok {
			return nil, &Error{Code: ErrCodeNotFound, Kind: "column", ID: ac.ColumnID, Message: "no logical column for placed column"}
		}
		col, err := c.deriveColumn(name, allocation.ID, ac.Position, lc)
		if err != nil {
			return nil, err
		}
		cols = append(cols, col)
	}

	table := c.newTable(allocation.ID, namespaceName, tableName, logical, allocation, cols)
	rel := AllocationRelation{Allocation: allocation, TableIDs: []int64{allocation.ID}}
	if err := c.register(rel, table); err != nil {
		return nil, err
	}
	c.logger.Debugw("table created", "adapter", c.adapterID, "allocation", allocation.ID, "table", tableName, "columns", len(cols))
	return table, nil
}

// CreateCollection registers the (_id, _data) table of a document allocation.
func (c *StoreCatalog) CreateCollection(namespaceName, name string, logical ir.LogicalEntity, allocation ir.AllocationEntity) (*PhysicalCollection, error) {
	if allocation.Model != ir.ModelDocument {
		return nil, NewInvariantError("allocation %d is %s, not a collection allocation", allocation.ID, allocation.Model)
	}
	cols := []PhysicalColumn{
		c.substituteColumn(allocation.ID, 0, 1, typesys.DocumentIDField, ir.TypeVarchar, typesys.DocumentIDSize),
		c.substituteColumn(allocation.ID, 1, 2, typesys.DocumentDataField, ir.TypeVarbinary, typesys.DocumentDataSize),
	}
	table := c.newTable(allocation.ID, namespaceName, name, logical, allocation, cols)
	docType := typesys.OfID()
	rel := AllocationRelation{Allocation: allocation, TableIDs: []int64{allocation.ID}, DocumentType: docType}
	if err := c.register(rel, table); err != nil {
		return nil, err
	}
	c.logger.Debugw("collection created", "adapter", c.adapterID, "allocation", allocation.ID, "collection", name)
	return &PhysicalCollection{Table: table, Type: docType, Name: name}, nil
}

// CreateGraph registers the four substitute tables of a graph allocation.
// Table ids come from allocation.Substitutes.
func (c *StoreCatalog) CreateGraph(namespaceName, name string, logical ir.LogicalEntity, allocation ir.AllocationEntity) (*PhysicalGraph, error) {
	if allocation.Model != ir.ModelGraph {
		return nil, NewInvariantError("allocation %d is %s, not a graph allocation", allocation.ID, allocation.Model)
	}
	if allocation.Substitutes == nil {
		return nil, NewInvariantError("graph allocation %d has no substitute table ids", allocation.ID)
	}
	subs := allocation.Substitutes
	seen := make(map[int64]bool, 4)
	for _, id := range subs.IDs() {
		if seen[id] {
			return nil, NewInvariantError("graph allocation %d uses substitute table %d twice", allocation.ID, id)
		}
		seen[id] = true
	}
	idCol := func(table int64, id int64, pos int, colName string) PhysicalColumn {
		return c.substituteColumn(table, id, pos, colName, ir.TypeVarchar, typesys.GraphIDSize)
	}
	nodes := c.newTable(subs.Nodes, namespaceName, name+"_nodes", logical, allocation, []PhysicalColumn{
		idCol(subs.Nodes, 0, 1, typesys.GraphIDColumn),
		c.substituteColumn(subs.Nodes, 1, 2, typesys.GraphLabelColumn, ir.TypeVarchar, typesys.GraphLabelSize),
	})
	nodeProps := c.newTable(subs.NodeProperties, namespaceName, name+"_node_properties", logical, allocation, c.propertyColumns(subs.NodeProperties))
	edges := c.newTable(subs.Edges, namespaceName, name+"_edges", logical, allocation, []PhysicalColumn{
		idCol(subs.Edges, 0, 1, typesys.GraphIDColumn),
		c.substituteColumn(subs.Edges, 1, 2, typesys.GraphLabelColumn, ir.TypeVarchar, typesys.GraphLabelSize),
		idCol(subs.Edges, 2, 3, typesys.GraphSourceColumn),
		idCol(subs.Edges, 3, 4, typesys.GraphTargetColumn),
	})
	edgeProps := c.newTable(subs.EdgeProperties, namespaceName, name+"_edge_properties", logical, allocation, c.propertyColumns(subs.EdgeProperties))

	rel := AllocationRelation{Allocation: allocation, TableIDs: subs.IDs()}
	if err := c.register(rel, nodes, nodeProps, edges, edgeProps); err != nil {
		return nil, err
	}
	c.logger.Debugw("graph created", "adapter", c.adapterID, "allocation", allocation.ID, "graph", name, "tables", rel.TableIDs)
	return &PhysicalGraph{Name: name, Nodes: nodes, NodeProperties: nodeProps, Edges: edges, EdgeProperties: edgeProps}, nil
}

func (c *StoreCatalog) propertyColumns(table int64) []PhysicalColumn {
	return []PhysicalColumn{
		c.substituteColumn(table, 0, 1, typesys.GraphIDColumn, ir.TypeVarchar, typesys.GraphIDSize),
		c.substituteColumn(table, 1, 2, typesys.GraphKeyColumn, ir.TypeVarchar, typesys.GraphKeySize),
		c.substituteColumn(table, 2, 3, typesys.GraphValueColumn, ir.TypeVarchar, typesys.GraphValueSize),
	}
}

// AddColumn appends a column to a table. The stored table is replaced by a
// copy; earlier references keep the old column list. A column id already in
// the table is an invariant violation.
//
// The read of the table and the write of its replacement are separate
// atomic steps. Concurrent structural changes to the same table must be
// serialized by the caller.
func (c *StoreCatalog) AddColumn(name string, tableID, adapterID int64, position int, logical ir.LogicalColumn) (PhysicalColumn, error) {
	table, err := c.GetTable(tableID)
	if err != nil {
		return PhysicalColumn{}, err
	}
	if existing, ok := table.Column(logical.ID); ok {
		return PhysicalColumn{}, NewInvariantError("column %d is already part of table %s as %q", logical.ID, table.Name, existing.Name)
	}
	col, err := c.deriveColumn(name, tableID, position, logical)
	if err != nil {
		return PhysicalColumn{}, err
	}
	col.AdapterID = adapterID

	cols := make([]PhysicalColumn, 0, len(table.Columns)+1)
	cols = append(cols, table.Columns...)
	cols = append(cols, col)
	c.replaceTable(table.withColumns(cols), col)
	c.logger.Debugw("column added", "adapter", c.adapterID, "table", tableID, "column", name)
	return col, nil
}

// UpdateColumnType replaces the column whose id matches logical.ID with one
// derived from the new logical column. Name and position are kept.
// A column that is not part of the table is a not-found error.
//
// Like AddColumn, this is a read-modify-write the caller must serialize.
func (c *StoreCatalog) UpdateColumnType(tableID int64, logical ir.LogicalColumn) (PhysicalColumn, error) {
	table, err := c.GetTable(tableID)
	if err != nil {
		return PhysicalColumn{}, err
	}
	idx := -1
	for i, col := range table.Columns {
		if col.ID == logical.ID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return PhysicalColumn{}, &Error{Code: ErrCodeNotFound, Kind: "column", ID: logical.ID, Message: "column is not part of table " + table.Name}
	}
	old := table.Columns[idx]
	col, err := c.deriveColumn(old.Name, tableID, old.Position, logical)
	if err != nil {
		return PhysicalColumn{}, err
	}
	col.AdapterID = old.AdapterID

	cols := append([]PhysicalColumn(nil), table.Columns...)
	cols[idx] = col
	c.replaceTable(table.withColumns(cols), col)
	c.logger.Debugw("column type updated", "adapter", c.adapterID, "table", tableID, "column", old.Name, "type", logical.Type)
	return col, nil
}

// DropAllocation removes an allocation with its tables and columns.
func (c *StoreCatalog) DropAllocation(id int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	rel, ok := c.allocations[id]
	if !ok {
		return NewNotFoundError("allocation", id)
	}
	for _, tid := range rel.TableIDs {
		if t, ok := c.tables[tid]; ok {
			for _, col := range t.Columns {
				delete(c.columns, col.Key())
			}
		}
		delete(c.tables, tid)
	}
	delete(c.allocations, id)
	c.logger.Debugw("allocation dropped", "adapter", c.adapterID, "allocation", id, "tables", rel.TableIDs)
	return nil
}

// Entity returns the physical realization of an allocation.
func (c *StoreCatalog) Entity(allocationID int64) (PhysicalEntity, error) {
	rel, err := c.GetAllocation(allocationID)
	if err != nil {
		return nil, err
	}
	tables := make([]*PhysicalTable, len(rel.TableIDs))
	for i, tid := range rel.TableIDs {
		t, err := c.GetTable(tid)
		if err != nil {
			return nil, NewInvariantError("allocation %d references missing table %d", allocationID, tid)
		}
		tables[i] = t
	}

	switch rel.Allocation.Model {
	case ir.ModelRelational:
		if len(tables) == 0 {
			return nil, NewInvariantError("table allocation %d owns no tables", allocationID)
		}
		return tables[0], nil
	case ir.ModelDocument:
		if len(tables) != 1 {
			return nil, NewInvariantError("collection allocation %d owns %d tables, want 1", allocationID, len(tables))
		}
		docType := rel.DocumentType
		if docType == nil {
			docType = typesys.OfID()
		}
		return &PhysicalCollection{Table: tables[0], Type: docType, Name: tables[0].Name}, nil
	case ir.ModelGraph:
		if len(tables) != 4 {
			return nil, NewInvariantError("graph allocation %d owns %d tables, want 4", allocationID, len(tables))
		}
		return &PhysicalGraph{
			Name:           strings.TrimSuffix(tables[0].Name, "_nodes"),
			Nodes:          tables[0],
			NodeProperties: tables[1],
			Edges:          tables[2],
			EdgeProperties: tables[3],
		}, nil
	default:
		return nil, NewInvariantError("allocation %d has unrecognized model %q", allocationID, rel.Allocation.Model)
	}
}

// Scan builds the scan tree of an allocation using the builder registered
// for its model.
func (c *StoreCatalog) Scan(allocationID int64) (algebra.Node, error) {
	c.mu.RLock()
	rel, ok := c.allocations[allocationID]
	builder, registered := c.builders[rel.Allocation.Model]
	c.mu.RUnlock()

	if !ok {
		return nil, NewNotFoundError("allocation", allocationID)
	}
	if !rel.Allocation.Model.Valid() {
		return nil, NewInvariantError("allocation %d is neither a table, collection nor graph allocation (model %q)", allocationID, rel.Allocation.Model)
	}
	if !registered || builder == nil {
		return nil, NewUnsupportedError("adapter %d has no scan strategy for %s allocation %d", c.adapterID, rel.Allocation.Model, allocationID)
	}
	return builder(c, rel)
}

func (c *StoreCatalog) deriveColumn(name string, tableID int64, position int, lc ir.LogicalColumn) (PhysicalColumn, error) {
	typ, err := typesys.FromColumn(lc)
	if err != nil {
		return PhysicalColumn{}, NewInvariantError("column %d: %v", lc.ID, err)
	}
	return PhysicalColumn{
		ID:          lc.ID,
		TableID:     tableID,
		AdapterID:   c.adapterID,
		Name:        name,
		LogicalName: lc.Name,
		Position:    position,
		PolyType:    lc.Type,
		Length:      lc.Length,
		Scale:       lc.Scale,
		Nullable:    lc.Nullable,
		Type:        typ,
	}, nil
}

func (c *StoreCatalog) substituteColumn(tableID, id int64, position int, name string, pt ir.PolyType, length int) PhysicalColumn {
	typ, _ := typesys.FromPolyType(pt, length, 0, false)
	return PhysicalColumn{
		ID:          id,
		TableID:     tableID,
		AdapterID:   c.adapterID,
		Name:        name,
		LogicalName: name,
		Position:    position,
		PolyType:    pt,
		Length:      length,
		Type:        typ,
	}
}

func (c *StoreCatalog) newTable(id int64, namespaceName, name string, logical ir.LogicalEntity, allocation ir.AllocationEntity, cols []PhysicalColumn) *PhysicalTable {
	return &PhysicalTable{
		ID:            id,
		AllocationID:  allocation.ID,
		LogicalID:     logical.ID,
		AdapterID:     c.adapterID,
		NamespaceID:   allocation.NamespaceID,
		NamespaceName: namespaceName,
		Name:          name,
		LogicalName:   logical.Name,
		Columns:       cols,
		readOnly:      c.readOnly,
	}
}

// register stores a relation and its tables in one step. A table id owned
// by a different allocation is rejected.
func (c *StoreCatalog) register(rel AllocationRelation, tables ...*PhysicalTable) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, t := range tables {
		if existing, ok := c.tables[t.ID]; ok && existing.AllocationID != t.AllocationID {
			return NewInvariantError("table %d already belongs to allocation %d", t.ID, existing.AllocationID)
		}
	}
	for _, t := range tables {
		if old, ok := c.tables[t.ID]; ok {
			for _, col := range old.Columns {
				delete(c.columns, col.Key())
			}
		}
		c.tables[t.ID] = t
		for _, col := range t.Columns {
			c.columns[col.Key()] = col
		}
	}
	c.allocations[rel.Allocation.ID] = rel
	return nil
}

func (c *StoreCatalog) replaceTable(t *PhysicalTable, col PhysicalColumn) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tables[t.ID] = t
	c.columns[col.Key()] = col
}
