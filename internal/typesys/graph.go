package typesys

// GraphField is the name of the single field of a graph row.
const GraphField = "g"

// GraphValue is the scalar type of a whole property graph.
func GraphValue() Scalar {
	return NewScalar(KindGraph, NotSpecified, NotSpecified, false)
}

// GraphType is the row type produced by a graph scan: one GRAPH-typed field.
func GraphType() *Record {
	return NewRecord(Field{ID: 0, Name: GraphField, Index: 0, Type: GraphValue()})
}

// Sizes of the graph substitute columns.
const (
	GraphIDSize    = 36
	GraphLabelSize = 255
	GraphKeySize   = 255
	GraphValueSize = 2024
)

// Substitute column names shared by the graph relations.
const (
	GraphIDColumn     = "id"
	GraphLabelColumn  = "label"
	GraphKeyColumn    = "key"
	GraphValueColumn  = "value"
	GraphSourceColumn = "_l_id_"
	GraphTargetColumn = "_r_id_"
)

func graphColumn(i int, name string, size int) Field {
	return Field{ID: int64(i), Name: name, Index: i, Type: Varchar(size)}
}

// NodeRowType is the row type of the node substitute: id, label.
func NodeRowType() *Record {
	return NewRecord(
		graphColumn(0, GraphIDColumn, GraphIDSize),
		graphColumn(1, GraphLabelColumn, GraphLabelSize),
	)
}

// PropertyRowType is the row type of both property substitutes: id, key, value.
func PropertyRowType() *Record {
	return NewRecord(
		graphColumn(0, GraphIDColumn, GraphIDSize),
		graphColumn(1, GraphKeyColumn, GraphKeySize),
		graphColumn(2, GraphValueColumn, GraphValueSize),
	)
}

// EdgeRowType is the row type of the edge substitute: id, label, source, target.
func EdgeRowType() *Record {
	return NewRecord(
		graphColumn(0, GraphIDColumn, GraphIDSize),
		graphColumn(1, GraphLabelColumn, GraphLabelSize),
		graphColumn(2, GraphSourceColumn, GraphIDSize),
		graphColumn(3, GraphTargetColumn, GraphIDSize),
	)
}
