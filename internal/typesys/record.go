package typesys

// Record is an ordered, immutable struct type used for relational rows.
type Record struct {
	fields   []Field
	nullable bool
}

// NewRecord builds a record. Field indexes are reassigned to their positions.
func NewRecord(fields ...Field) *Record {
	fs := make([]Field, len(fields))
	for i, f := range fields {
		f.Index = i
		fs[i] = f
	}
	return &Record{fields: fs}
}

func (r *Record) Kind() Kind             { return KindRecord }
func (r *Record) Family() Family         { return FamilyRecord }
func (r *Record) Nullable() bool         { return r.nullable }
func (r *Record) IsStruct() bool         { return true }
func (r *Record) FieldNames() []string   { return fieldNames(r.fields) }
func (r *Record) FieldCount() int        { return len(r.fields) }
func (r *Record) Precision() int         { return NotSpecified }
func (r *Record) Scale() int             { return NotSpecified }
func (r *Record) FullTypeString() string { return digestOf("RecordType", r.fields) }
func (r *Record) Digest() string         { return r.FullTypeString() }

// Fields returns a copy of the ordered field list.
func (r *Record) Fields() []Field {
	return append([]Field(nil), r.fields...)
}

func (r *Record) Field(name string, caseSensitive, elideRecord bool) (Field, bool) {
	return lookup(r.fields, name, caseSensitive, elideRecord)
}

// Comparability is ComparableAll only if every field is fully comparable.
func (r *Record) Comparability() Comparability {
	c := ComparableAll
	for _, f := range r.fields {
		if fc := f.Type.Comparability(); fc < c {
			c = fc
		}
	}
	return c
}

// Concat returns a record holding the fields of all inputs in order.
// Used for join outputs.
func Concat(types ...Type) *Record {
	var fields []Field
	for _, t := range types {
		fields = append(fields, t.Fields()...)
	}
	return NewRecord(fields...)
}

// Project returns a record with the named fields of t, in the given order.
// Missing names are skipped.
func Project(t Type, names ...string) *Record {
	fields := make([]Field, 0, len(names))
	for _, n := range names {
		if f, ok := t.Field(n, true, false); ok {
			fields = append(fields, f)
		}
	}
	return NewRecord(fields...)
}
