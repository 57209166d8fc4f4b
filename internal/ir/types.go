package ir

// DataModel is the semantic shape of a logical entity.
type DataModel string

const (
	ModelRelational DataModel = "relational"
	ModelDocument   DataModel = "document"
	ModelGraph      DataModel = "graph"
)

// ValidModels defines the models the catalog knows how to store.
var ValidModels = map[DataModel]bool{
	ModelRelational: true,
	ModelDocument:   true,
	ModelGraph:      true,
}

// Valid reports whether m is one of the supported models.
func (m DataModel) Valid() bool {
	return ValidModels[m]
}

// PolyType names a logical column type.
type PolyType string

const (
	TypeBoolean   PolyType = "BOOLEAN"
	TypeInteger   PolyType = "INTEGER"
	TypeBigint    PolyType = "BIGINT"
	TypeDecimal   PolyType = "DECIMAL"
	TypeVarchar   PolyType = "VARCHAR"
	TypeText      PolyType = "TEXT"
	TypeVarbinary PolyType = "VARBINARY"
	TypeDocument  PolyType = "DOCUMENT"
	TypeGraph     PolyType = "GRAPH"
)

// Namespace is a schema-level container of logical entities.
type Namespace struct {
	ID            int64     `json:"id"`
	Name          string    `json:"name"`
	Model         DataModel `json:"model"`
	CaseSensitive bool      `json:"case_sensitive"`
}

// LogicalEntity is a table, collection or graph definition independent of storage.
type LogicalEntity struct {
	ID          int64     `json:"id"`
	NamespaceID int64     `json:"namespace_id"`
	Name        string    `json:"name"`
	Model       DataModel `json:"model"`
}

// LogicalColumn is a column of a relational logical entity.
// Length and Scale are zero when the type takes no parameters.
type LogicalColumn struct {
	ID          int64    `json:"id"`
	EntityID    int64    `json:"entity_id"`
	NamespaceID int64    `json:"namespace_id"`
	Name        string   `json:"name"`
	Position    int      `json:"position"`
	Type        PolyType `json:"type"`
	Length      int      `json:"length,omitempty"`
	Scale       int      `json:"scale,omitempty"`
	Nullable    bool     `json:"nullable"`
}

// GraphSubstitutes names the physical relations backing a graph that is
// re-encoded onto a relational-only adapter.
type GraphSubstitutes struct {
	Nodes          int64 `json:"nodes"`
	NodeProperties int64 `json:"node_properties"`
	Edges          int64 `json:"edges"`
	EdgeProperties int64 `json:"edge_properties"`
}

// IDs returns the substitute ids in storage order.
func (g GraphSubstitutes) IDs() []int64 {
	return []int64{g.Nodes, g.NodeProperties, g.Edges, g.EdgeProperties}
}

// AllocationEntity binds a logical entity (or part of it) to one adapter.
//
// The allocation is a tagged variant keyed by Model:
//   - ModelRelational: table allocation
//   - ModelDocument: collection allocation
//   - ModelGraph: graph allocation (Substitutes set when re-encoded)
type AllocationEntity struct {
	ID          int64             `json:"id"`
	LogicalID   int64             `json:"logical_id"`
	AdapterID   int64             `json:"adapter_id"`
	NamespaceID int64             `json:"namespace_id"`
	PartitionID int64             `json:"partition_id"`
	Model       DataModel         `json:"model"`
	Substitutes *GraphSubstitutes `json:"substitutes,omitempty"`
}

// AllocationColumn places one logical column on an allocation.
type AllocationColumn struct {
	AllocationID int64 `json:"allocation_id"`
	ColumnID     int64 `json:"column_id"`
	Position     int   `json:"position"`
}
