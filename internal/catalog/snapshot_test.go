package catalog

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/polycat/internal/ir"
)

func TestSnapshot_RoundTrip(t *testing.T) {
	c := populatedCatalog(t)
	_, err := c.AddColumn("doc", 5, testAdapter, 4, ir.LogicalColumn{ID: 104, EntityID: 10, Name: "doc", Type: ir.TypeDocument})
	require.NoError(t, err)

	// grow the collection type and the embedded document column
	e, err := c.Entity(7)
	require.NoError(t, err)
	coll := e.(*PhysicalCollection)
	customer, _ := coll.Type.Field("customer", true, false)
	coll.Type.Field("total", true, false)
	// a nested field grown after its parent
	customer.Type.Field("name", true, false)
	docCol, err := c.GetColumn(5, 104)
	require.NoError(t, err)
	_, _ = docCol.Type.Field("nested", true, false)

	data, err := EncodeSnapshot(c.Snapshot())
	require.NoError(t, err)
	decoded, err := DecodeSnapshot(data)
	require.NoError(t, err)
	restored, err := FromSnapshot(decoded)
	require.NoError(t, err)

	for _, want := range c.Tables() {
		got, err := restored.GetTable(want.ID)
		require.NoError(t, err)
		assert.Equal(t, want, got)
		for _, col := range want.Columns {
			gotCol, err := restored.GetColumn(want.ID, col.ID)
			require.NoError(t, err)
			assert.Equal(t, col, gotCol)
			assert.Equal(t, col.Type.Digest(), gotCol.Type.Digest())
		}
	}
	for _, id := range []int64{1, 2, 3} {
		want, err := c.GetNamespace(id)
		require.NoError(t, err)
		got, err := restored.GetNamespace(id)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	gotDoc, err := restored.GetColumn(5, 104)
	require.NoError(t, err)
	assert.Equal(t, "DocumentType(DocumentType() nested)", gotDoc.Type.Digest())

	re, err := restored.Entity(7)
	require.NoError(t, err)
	assert.Equal(t, coll.Type.Digest(), re.(*PhysicalCollection).Type.Digest())
	assert.Contains(t, coll.Type.Digest(), "DocumentType(DocumentType() name) customer")
	assert.Equal(t, []string{"_id", "customer", "total"}, re.(*PhysicalCollection).Type.FieldNames())

	rel, err := restored.GetAllocation(9)
	require.NoError(t, err)
	assert.Equal(t, []int64{90, 91, 92, 93}, rel.TableIDs)
	require.NotNil(t, rel.Allocation.Substitutes)
	assert.Equal(t, int64(92), rel.Allocation.Substitutes.Edges)
}

func TestSnapshot_DigestStable(t *testing.T) {
	a := populatedCatalog(t)
	b := populatedCatalog(t)

	da, err := a.Snapshot().Digest()
	require.NoError(t, err)
	db, err := b.Snapshot().Digest()
	require.NoError(t, err)
	assert.Equal(t, da, db)

	_, err = b.AddColumn("x", 5, testAdapter, 4, ir.LogicalColumn{ID: 104, Type: ir.TypeText})
	require.NoError(t, err)
	db, err = b.Snapshot().Digest()
	require.NoError(t, err)
	assert.NotEqual(t, da, db)
}

func TestSnapshot_OrderedAndDetached(t *testing.T) {
	c := populatedCatalog(t)
	s := c.Snapshot()

	var ids []int64
	for _, tr := range s.Tables {
		ids = append(ids, tr.ID)
	}
	assert.Equal(t, []int64{5, 7, 90, 91, 92, 93}, ids)

	s.Allocations[2].Allocation.Substitutes.Nodes = 1000
	rel, err := c.GetAllocation(9)
	require.NoError(t, err)
	assert.Equal(t, int64(90), rel.Allocation.Substitutes.Nodes)
}

func TestRestore_Errors(t *testing.T) {
	t.Run("other adapter", func(t *testing.T) {
		c := New(2)
		err := c.Restore(populatedCatalog(t).Snapshot())
		assert.True(t, IsInvariantViolation(err))
	})

	t.Run("missing column keeps state", func(t *testing.T) {
		c := populatedCatalog(t)
		s := c.Snapshot()
		s.Columns = s.Columns[1:]
		s.Tables = s.Tables[:1]

		err := c.Restore(s)
		require.Error(t, err)
		assert.True(t, IsInvariantViolation(err))
		assert.Len(t, c.Tables(), 6)
	})

	t.Run("relation without table", func(t *testing.T) {
		c := New(testAdapter)
		err := c.Restore(Snapshot{
			AdapterID:   testAdapter,
			Allocations: []AllocationRecord{{Allocation: ir.AllocationEntity{ID: 1}, TableIDs: []int64{1}}},
		})
		assert.True(t, IsInvariantViolation(err))
	})
}

func TestErrors_Predicates(t *testing.T) {
	err := NewNotFoundError("table", 3)
	assert.Equal(t, "NOT_FOUND: table 3: not found", err.Error())
	assert.True(t, IsNotFound(err))
	assert.False(t, IsUnsupported(err))

	wrapped := fmt.Errorf("context: %w", NewUnsupportedError("no %s", "modifier"))
	assert.True(t, IsUnsupported(wrapped))
	assert.Contains(t, wrapped.Error(), "UNSUPPORTED_CAPABILITY: no modifier")
	assert.False(t, IsInvariantViolation(nil))
}
