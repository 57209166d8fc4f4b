package typesys

import (
	"fmt"
	"strings"
)

// Kind identifies the concrete shape of a type.
type Kind string

const (
	KindBoolean   Kind = "BOOLEAN"
	KindInteger   Kind = "INTEGER"
	KindBigint    Kind = "BIGINT"
	KindDecimal   Kind = "DECIMAL"
	KindVarchar   Kind = "VARCHAR"
	KindText      Kind = "TEXT"
	KindVarbinary Kind = "VARBINARY"
	KindDocument  Kind = "DOCUMENT"
	KindGraph     Kind = "GRAPH"
	KindRecord    Kind = "RECORD"
)

// Family groups kinds that are assignable to each other.
type Family string

const (
	FamilyBoolean   Family = "BOOLEAN"
	FamilyNumeric   Family = "NUMERIC"
	FamilyCharacter Family = "CHARACTER"
	FamilyBinary    Family = "BINARY"
	FamilyDocument  Family = "DOCUMENT"
	FamilyGraph     Family = "GRAPH"
	FamilyRecord    Family = "RECORD"
)

// Comparability describes which comparisons a type supports.
type Comparability int

const (
	ComparableNone Comparability = iota
	ComparableUnordered
	ComparableAll
)

// NotSpecified is returned by Precision and Scale when a type takes no parameter.
const NotSpecified = -1

// Type is the structural type interface shared by every data model.
type Type interface {
	Kind() Kind
	Family() Family
	Nullable() bool
	IsStruct() bool
	Fields() []Field
	FieldNames() []string
	FieldCount() int
	// Field looks up a field by name. elideRecord also searches one level
	// into struct-typed fields.
	Field(name string, caseSensitive, elideRecord bool) (Field, bool)
	Precision() int
	Scale() int
	Comparability() Comparability
	FullTypeString() string
	Digest() string
}

// Field is a named, positioned member of a struct type.
type Field struct {
	ID    int64
	Name  string
	Index int
	Type  Type
}

// FullTypeString renders the field as "TYPE name".
func (f Field) FullTypeString() string {
	return f.Type.FullTypeString() + " " + f.Name
}

// Equal reports whether two types are structurally identical.
func Equal(a, b Type) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Digest() == b.Digest()
}

// Scalar is a non-struct type such as INTEGER or VARCHAR(64).
type Scalar struct {
	kind      Kind
	precision int
	scale     int
	nullable  bool
}

// NewScalar creates a scalar type. Pass NotSpecified for unused parameters.
func NewScalar(kind Kind, precision, scale int, nullable bool) Scalar {
	return Scalar{kind: kind, precision: precision, scale: scale, nullable: nullable}
}

// Varchar is shorthand for a non-null VARCHAR(n).
func Varchar(n int) Scalar {
	return NewScalar(KindVarchar, n, NotSpecified, false)
}

// Bigint is shorthand for a non-null BIGINT.
func Bigint() Scalar {
	return NewScalar(KindBigint, NotSpecified, NotSpecified, false)
}

func (s Scalar) Kind() Kind { return s.kind }

func (s Scalar) Family() Family {
	switch s.kind {
	case KindBoolean:
		return FamilyBoolean
	case KindInteger, KindBigint, KindDecimal:
		return FamilyNumeric
	case KindVarchar, KindText:
		return FamilyCharacter
	case KindVarbinary:
		return FamilyBinary
	case KindGraph:
		return FamilyGraph
	case KindDocument:
		return FamilyDocument
	default:
		return Family(s.kind)
	}
}

func (s Scalar) Nullable() bool                         { return s.nullable }
func (s Scalar) IsStruct() bool                         { return false }
func (s Scalar) Fields() []Field                        { return nil }
func (s Scalar) FieldNames() []string                   { return nil }
func (s Scalar) FieldCount() int                        { return 0 }
func (s Scalar) Field(string, bool, bool) (Field, bool) { return Field{}, false }
func (s Scalar) Precision() int                         { return s.precision }
func (s Scalar) Scale() int                             { return s.scale }

func (s Scalar) Comparability() Comparability {
	switch s.kind {
	case KindGraph, KindVarbinary:
		return ComparableUnordered
	default:
		return ComparableAll
	}
}

// FullTypeString renders e.g. "DECIMAL(10, 2) NOT NULL".
func (s Scalar) FullTypeString() string {
	var b strings.Builder
	b.WriteString(string(s.kind))
	switch {
	case s.precision != NotSpecified && s.scale != NotSpecified:
		fmt.Fprintf(&b, "(%d, %d)", s.precision, s.scale)
	case s.precision != NotSpecified:
		fmt.Fprintf(&b, "(%d)", s.precision)
	}
	if !s.nullable {
		b.WriteString(" NOT NULL")
	}
	return b.String()
}

func (s Scalar) Digest() string { return s.FullTypeString() }

// WithNullable returns a copy of s with the given nullability.
func (s Scalar) WithNullable(nullable bool) Scalar {
	s.nullable = nullable
	return s
}

// fieldNames collects names in field order.
func fieldNames(fields []Field) []string {
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = f.Name
	}
	return names
}

// lookup implements the shared name resolution of struct types.
func lookup(fields []Field, name string, caseSensitive, elideRecord bool) (Field, bool) {
	for _, f := range fields {
		if matches(f.Name, name, caseSensitive) {
			return f, true
		}
	}
	if elideRecord {
		for _, f := range fields {
			if !f.Type.IsStruct() {
				continue
			}
			for _, inner := range f.Type.Fields() {
				if matches(inner.Name, name, caseSensitive) {
					return inner, true
				}
			}
		}
	}
	return Field{}, false
}

func matches(have, want string, caseSensitive bool) bool {
	if caseSensitive {
		return have == want
	}
	return strings.EqualFold(have, want)
}

// digestOf renders "<prefix>(f1, f2, ...)" from ordered field type strings.
func digestOf(prefix string, fields []Field) string {
	parts := make([]string, len(fields))
	for i, f := range fields {
		parts[i] = f.FullTypeString()
	}
	return prefix + "(" + strings.Join(parts, ", ") + ")"
}
