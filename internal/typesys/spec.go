package typesys

import "fmt"

// Spec is the serializable form of a Type. Decode(Encode(t)) has the same
// digest as t.
type Spec struct {
	Kind      Kind        `json:"kind" bson:"kind"`
	Precision int         `json:"precision" bson:"precision"`
	Scale     int         `json:"scale" bson:"scale"`
	Nullable  bool        `json:"nullable,omitempty" bson:"nullable,omitempty"`
	Fields    []FieldSpec `json:"fields,omitempty" bson:"fields,omitempty"`
}

// FieldSpec is the serializable form of a Field.
type FieldSpec struct {
	ID    int64  `json:"id" bson:"id"`
	Name  string `json:"name" bson:"name"`
	Index int    `json:"index" bson:"index"`
	Type  Spec   `json:"type" bson:"type"`
}

// Encode converts a type into its serializable form.
func Encode(t Type) Spec {
	s := Spec{
		Kind:      t.Kind(),
		Precision: t.Precision(),
		Scale:     t.Scale(),
		Nullable:  t.Nullable(),
	}
	for _, f := range t.Fields() {
		s.Fields = append(s.Fields, FieldSpec{ID: f.ID, Name: f.Name, Index: f.Index, Type: Encode(f.Type)})
	}
	return s
}

// Decode rebuilds a type from its serializable form.
func Decode(s Spec) (Type, error) {
	switch s.Kind {
	case KindRecord, KindDocument:
		fields := make([]Field, len(s.Fields))
		for i, fs := range s.Fields {
			ft, err := Decode(fs.Type)
			if err != nil {
				return nil, fmt.Errorf("field %q: %w", fs.Name, err)
			}
			fields[i] = Field{ID: fs.ID, Name: fs.Name, Index: fs.Index, Type: ft}
		}
		if s.Kind == KindDocument {
			return NewDocumentType(fields...), nil
		}
		r := NewRecord(fields...)
		r.nullable = s.Nullable
		return r, nil
	case KindBoolean, KindInteger, KindBigint, KindDecimal, KindVarchar,
		KindText, KindVarbinary, KindGraph:
		if len(s.Fields) > 0 {
			return nil, fmt.Errorf("scalar kind %s cannot carry fields", s.Kind)
		}
		return NewScalar(s.Kind, s.Precision, s.Scale, s.Nullable), nil
	default:
		return nil, fmt.Errorf("unknown type kind %q", s.Kind)
	}
}
