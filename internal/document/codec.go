package document

import (
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/roach88/polycat/internal/ir"
)

// IDField is the identifier field of every document.
const IDField = "_id"

// Codec converts documents to and from payload bytes.
type Codec interface {
	Name() string
	// Textual reports whether payloads are UTF-8 text rather than binary.
	Textual() bool
	Encode(doc ir.IRObject) ([]byte, error)
	Decode(data []byte) (ir.IRObject, error)
}

// ByName resolves a codec by configuration name.
func ByName(name string) (Codec, error) {
	switch name {
	case "", "json":
		return JSONCodec{}, nil
	case "bson":
		return BSONCodec{}, nil
	default:
		return nil, fmt.Errorf("unknown document codec %q", name)
	}
}

// JSONCodec stores documents as canonical JSON.
type JSONCodec struct{}

func (JSONCodec) Name() string  { return "json" }
func (JSONCodec) Textual() bool { return true }

func (JSONCodec) Encode(doc ir.IRObject) ([]byte, error) {
	return ir.MarshalCanonical(doc)
}

func (JSONCodec) Decode(data []byte) (ir.IRObject, error) {
	v, err := ir.UnmarshalIRValue(data)
	if err != nil {
		return nil, fmt.Errorf("decode json document: %w", err)
	}
	obj, ok := v.(ir.IRObject)
	if !ok {
		return nil, fmt.Errorf("decode json document: payload is %T, not an object", v)
	}
	return obj, nil
}

// BSONCodec stores documents as BSON. Keys are written in canonical order
// so equal documents encode to equal bytes.
type BSONCodec struct{}

func (BSONCodec) Name() string  { return "bson" }
func (BSONCodec) Textual() bool { return false }

func (BSONCodec) Encode(doc ir.IRObject) ([]byte, error) {
	data, err := bson.Marshal(toBSON(doc))
	if err != nil {
		return nil, fmt.Errorf("encode bson document: %w", err)
	}
	return data, nil
}

func (BSONCodec) Decode(data []byte) (ir.IRObject, error) {
	var raw bson.D
	if err := bson.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode bson document: %w", err)
	}
	v, err := fromBSON(raw)
	if err != nil {
		return nil, fmt.Errorf("decode bson document: %w", err)
	}
	return v.(ir.IRObject), nil
}

func toBSON(v ir.IRValue) any {
	switch val := v.(type) {
	case ir.IRObject:
		d := make(bson.D, 0, len(val))
		for _, k := range val.SortedKeys() {
			d = append(d, bson.E{Key: k, Value: toBSON(val[k])})
		}
		return d
	case ir.IRArray:
		a := make(bson.A, len(val))
		for i, e := range val {
			a[i] = toBSON(e)
		}
		return a
	case ir.IRBytes:
		return primitive.Binary{Data: []byte(val)}
	default:
		return ir.ToGo(v)
	}
}

func fromBSON(v any) (ir.IRValue, error) {
	switch val := v.(type) {
	case bson.D:
		obj := make(ir.IRObject, len(val))
		for _, e := range val {
			ev, err := fromBSON(e.Value)
			if err != nil {
				return nil, fmt.Errorf("field %q: %w", e.Key, err)
			}
			obj[e.Key] = ev
		}
		return obj, nil
	case bson.M:
		obj := make(ir.IRObject, len(val))
		for k, e := range val {
			ev, err := fromBSON(e)
			if err != nil {
				return nil, fmt.Errorf("field %q: %w", k, err)
			}
			obj[k] = ev
		}
		return obj, nil
	case bson.A:
		arr := make(ir.IRArray, len(val))
		for i, e := range val {
			ev, err := fromBSON(e)
			if err != nil {
				return nil, fmt.Errorf("index %d: %w", i, err)
			}
			arr[i] = ev
		}
		return arr, nil
	case primitive.Binary:
		return ir.IRBytes(val.Data), nil
	case primitive.ObjectID:
		return ir.IRString(val.Hex()), nil
	default:
		return ir.ToIRValue(v)
	}
}

// NewID returns a fresh document identifier (hex BSON ObjectID).
func NewID() string {
	return primitive.NewObjectID().Hex()
}

// IDOf returns the string identifier of a document.
func IDOf(doc ir.IRObject) (string, bool) {
	id, ok := doc[IDField].(ir.IRString)
	return string(id), ok
}

// WithID returns doc with an _id, generating one when absent. The input is
// not modified.
func WithID(doc ir.IRObject) (ir.IRObject, string) {
	if id, ok := IDOf(doc); ok {
		return doc, id
	}
	out := doc.Clone()
	if out == nil {
		out = ir.IRObject{}
	}
	id := NewID()
	out[IDField] = ir.IRString(id)
	return out, id
}
