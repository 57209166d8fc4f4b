package document

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/roach88/polycat/internal/ir"
)

func sampleDoc() ir.IRObject {
	return ir.IRObject{
		"_id":   ir.IRString("o1"),
		"total": ir.IRInt(42),
		"paid":  ir.IRBool(true),
		"note":  ir.IRNull{},
		"items": ir.IRArray{ir.IRString("a"), ir.IRInt(2)},
		"customer": ir.IRObject{
			"name": ir.IRString("Ann"),
			"tags": ir.IRArray{},
		},
	}
}

func TestCodecs_RoundTrip(t *testing.T) {
	for _, codec := range []Codec{JSONCodec{}, BSONCodec{}} {
		t.Run(codec.Name(), func(t *testing.T) {
			data, err := codec.Encode(sampleDoc())
			require.NoError(t, err)

			got, err := codec.Decode(data)
			require.NoError(t, err)
			assert.Equal(t, ir.MustMarshalCanonical(sampleDoc()), ir.MustMarshalCanonical(got))
		})
	}
}

func TestCodecs_Deterministic(t *testing.T) {
	for _, codec := range []Codec{JSONCodec{}, BSONCodec{}} {
		t.Run(codec.Name(), func(t *testing.T) {
			a, err := codec.Encode(sampleDoc())
			require.NoError(t, err)
			b, err := codec.Encode(sampleDoc())
			require.NoError(t, err)
			assert.Equal(t, a, b)
		})
	}
}

func TestJSONCodec_Text(t *testing.T) {
	data, err := JSONCodec{}.Encode(ir.IRObject{"b": ir.IRInt(1), "a": ir.IRString("<x>")})
	require.NoError(t, err)
	assert.Equal(t, `{"a":"<x>","b":1}`, string(data))
	assert.True(t, JSONCodec{}.Textual())
	assert.False(t, BSONCodec{}.Textual())
}

func TestJSONCodec_DecodeErrors(t *testing.T) {
	_, err := JSONCodec{}.Decode([]byte(`[1,2]`))
	assert.ErrorContains(t, err, "not an object")

	_, err = JSONCodec{}.Decode([]byte(`{"price": 1.5}`))
	assert.Error(t, err)
}

func TestBSONCodec_Bytes(t *testing.T) {
	doc := ir.IRObject{"_id": ir.IRString("b1"), "blob": ir.IRBytes{1, 2, 3}}
	data, err := BSONCodec{}.Encode(doc)
	require.NoError(t, err)

	got, err := BSONCodec{}.Decode(data)
	require.NoError(t, err)
	assert.Equal(t, ir.IRBytes{1, 2, 3}, got["blob"])
}

func TestBSONCodec_ObjectID(t *testing.T) {
	oid := primitive.NewObjectID()
	v, err := fromBSON(oid)
	require.NoError(t, err)
	assert.Equal(t, ir.IRString(oid.Hex()), v)

	_, err = fromBSON(1.5)
	assert.Error(t, err)
}

func TestByName(t *testing.T) {
	c, err := ByName("")
	require.NoError(t, err)
	assert.Equal(t, "json", c.Name())

	c, err = ByName("bson")
	require.NoError(t, err)
	assert.Equal(t, "bson", c.Name())

	_, err = ByName("xml")
	assert.Error(t, err)
}

func TestIDs(t *testing.T) {
	id := NewID()
	assert.Len(t, id, 24)
	_, err := primitive.ObjectIDFromHex(id)
	assert.NoError(t, err)

	doc := ir.IRObject{"x": ir.IRInt(1)}
	withID, got := WithID(doc)
	assert.Len(t, got, 24)
	assert.Equal(t, ir.IRString(got), withID["_id"])
	_, has := doc["_id"]
	assert.False(t, has, "input untouched")

	same, existing := WithID(sampleDoc())
	assert.Equal(t, "o1", existing)
	assert.Equal(t, ir.IRString("o1"), same["_id"])

	_, ok := IDOf(ir.IRObject{"_id": ir.IRInt(1)})
	assert.False(t, ok)
}
