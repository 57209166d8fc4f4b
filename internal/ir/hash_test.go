package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTypeDigestHash_Determinism(t *testing.T) {
	h1 := TypeDigestHash("DocumentType(_id VARCHAR(2024) NOT NULL)")
	h2 := TypeDigestHash("DocumentType(_id VARCHAR(2024) NOT NULL)")
	h3 := TypeDigestHash("DocumentType()")

	assert.Equal(t, h1, h2)
	assert.NotEqual(t, h1, h3)
	assert.Len(t, h1, 64, "SHA-256 hex is 64 characters")
}

func TestDomainSeparation(t *testing.T) {
	payload := []byte("same bytes")
	assert.NotEqual(t, TypeDigestHash(string(payload)), SnapshotDigest(payload),
		"different domains must never collide on identical input")
}

func TestSchemaDigest_ContentAddressed(t *testing.T) {
	data := SnapshotData{
		Namespaces: []Namespace{{ID: 1, Name: "public", Model: ModelRelational}},
		Entities:   []LogicalEntity{{ID: 10, NamespaceID: 1, Name: "emps", Model: ModelRelational}},
	}

	d1, err := SchemaDigest(data)
	require.NoError(t, err)
	d2 := MustSchemaDigest(data)
	assert.Equal(t, d1, d2)

	data.Entities[0].Name = "depts"
	assert.NotEqual(t, d1, MustSchemaDigest(data))
}
