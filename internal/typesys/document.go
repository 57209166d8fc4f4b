package typesys

// Column names of the relational substitute of a document collection.
const (
	DocumentIDField   = "_id"
	DocumentDataField = "_data"
	DocumentField     = "d"
)

// Sizes of the substitute columns.
const (
	DocumentIDSize   = 2024
	DocumentDataSize = 64 * 1024
)

// DocumentType is the row type of a document collection.
//
// Documents are read-permissive: Field never fails. A miss synthesizes a
// nested DocumentType field and appends it to the fixed list. Synthesis
// mutates the receiver; callers share one DocumentType per compilation and
// serialize access to it.
//
// The digest is derived from the current fields on every call, so growth of
// a nested document field shows in the digest of every enclosing type.
type DocumentType struct {
	fixed []Field
}

// NewDocumentType builds a document type with the given fixed fields.
func NewDocumentType(fields ...Field) *DocumentType {
	return &DocumentType{fixed: append([]Field(nil), fields...)}
}

// OfID is the document type whose only fixed field is _id.
func OfID() *DocumentType {
	return NewDocumentType(Field{ID: 0, Name: DocumentIDField, Index: 0, Type: Varchar(DocumentIDSize)})
}

// OfDoc is a record with a single document-typed field d.
func OfDoc() *Record {
	return NewRecord(Field{ID: 0, Name: DocumentField, Index: 0, Type: NewDocumentType()})
}

// AsRelational is the record type of the relational substitute of a collection:
// _id VARCHAR and an opaque _data payload.
func (d *DocumentType) AsRelational() *Record {
	return NewRecord(
		Field{ID: 0, Name: DocumentIDField, Index: 0, Type: Varchar(DocumentIDSize)},
		Field{ID: 1, Name: DocumentDataField, Index: 1, Type: NewScalar(KindVarbinary, DocumentDataSize, NotSpecified, false)},
	)
}

func (d *DocumentType) Kind() Kind                   { return KindDocument }
func (d *DocumentType) Family() Family               { return FamilyDocument }
func (d *DocumentType) Nullable() bool               { return false }
func (d *DocumentType) IsStruct() bool               { return true }
func (d *DocumentType) FieldNames() []string         { return fieldNames(d.fixed) }
func (d *DocumentType) FieldCount() int              { return len(d.fixed) }
func (d *DocumentType) Precision() int               { return NotSpecified }
func (d *DocumentType) Scale() int                   { return NotSpecified }
func (d *DocumentType) Comparability() Comparability { return ComparableUnordered }
func (d *DocumentType) FullTypeString() string       { return digestOf("DocumentType", d.fixed) }
func (d *DocumentType) Digest() string               { return d.FullTypeString() }

// Fields returns a copy of the current fixed-field list.
func (d *DocumentType) Fields() []Field {
	return append([]Field(nil), d.fixed...)
}

// Field resolves name against the fixed fields. On a miss it appends a new
// nested document field with ID and Index equal to the prior field count.
// The second return value is always true.
func (d *DocumentType) Field(name string, caseSensitive, elideRecord bool) (Field, bool) {
	if f, ok := lookup(d.fixed, name, caseSensitive, elideRecord); ok {
		return f, true
	}
	n := len(d.fixed)
	f := Field{ID: int64(n), Name: name, Index: n, Type: NewDocumentType()}
	d.fixed = append(d.fixed, f)
	return f, true
}
