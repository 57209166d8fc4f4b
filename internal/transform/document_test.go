package transform

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/polycat/internal/algebra"
	"github.com/roach88/polycat/internal/catalog"
	"github.com/roach88/polycat/internal/document"
	"github.com/roach88/polycat/internal/ir"
	"github.com/roach88/polycat/internal/testutil"
	"github.com/roach88/polycat/internal/typesys"
)

func lowerOne(t *testing.T, in algebra.Node, target catalog.PhysicalEntity, opts ...Option) algebra.Node {
	t.Helper()
	out, err := RelationalEquivalent([]algebra.Node{in}, []catalog.PhysicalEntity{target}, testutil.Snapshot(), opts...)
	require.NoError(t, err)
	require.Len(t, out, 1)
	return out[0]
}

func TestLowerDocument_ScanAndFilter(t *testing.T) {
	c := testutil.Catalog(t)
	orders := testutil.Entity(t, c, testutil.OrdersAllocation)
	scan, err := c.Scan(testutil.OrdersAllocation)
	require.NoError(t, err)

	in := &algebra.DocFilter{
		Input: scan,
		Condition: algebra.AndOf(
			&algebra.FieldEquals{Path: []string{"_id"}, Value: ir.IRString("o1")},
			&algebra.FieldEquals{Path: []string{"customer", "tier"}, Value: ir.IRString("gold")},
		),
	}
	out := lowerOne(t, in, orders)

	filter, ok := out.(*algebra.RelFilter)
	require.True(t, ok)
	rel, ok := filter.Input.(*algebra.RelScan)
	require.True(t, ok)
	assert.Equal(t, "coll7", rel.Entity.Name)

	conds := algebra.Conjuncts(filter.Condition)
	require.Len(t, conds, 2)
	assert.Equal(t, &algebra.Equals{Column: algebra.Col("_id"), Value: ir.IRString("o1")}, conds[0])
	assert.Equal(t, &algebra.PayloadEquals{
		Column: algebra.Col("_data"),
		Path:   []string{"customer", "tier"},
		Value:  ir.IRString("gold"),
	}, conds[1])
}

func TestLowerDocument_BinaryCodecRejectsPayloadAccess(t *testing.T) {
	c := testutil.Catalog(t)
	orders := testutil.Entity(t, c, testutil.OrdersAllocation)
	scan := &algebra.DocScan{Entity: orders.Ref()}

	inputs := []algebra.Node{
		&algebra.DocFilter{Input: scan, Condition: &algebra.FieldEquals{Path: []string{"status"}, Value: ir.IRString("open")}},
		&algebra.DocSort{SortCore: algebra.SortCore{Input: scan, Collation: []algebra.FieldCollation{{Column: algebra.Col("total")}}}},
	}
	for _, in := range inputs {
		_, err := RelationalEquivalent([]algebra.Node{in}, []catalog.PhysicalEntity{orders}, nil, WithCodec(document.BSONCodec{}))
		require.Error(t, err)
		assert.True(t, catalog.IsUnsupported(err), in.Kind())
	}

	// _id stays addressable.
	in := &algebra.DocFilter{Input: scan, Condition: &algebra.FieldEquals{Path: []string{"_id"}, Value: ir.IRString("x")}}
	_, err := RelationalEquivalent([]algebra.Node{in}, []catalog.PhysicalEntity{orders}, nil, WithCodec(document.BSONCodec{}))
	assert.NoError(t, err)
}

func TestLowerDocument_Sort(t *testing.T) {
	c := testutil.Catalog(t)
	orders := testutil.Entity(t, c, testutil.OrdersAllocation)

	in := &algebra.DocSort{SortCore: algebra.SortCore{
		Input: &algebra.DocScan{Entity: orders.Ref()},
		Collation: []algebra.FieldCollation{
			{Column: algebra.Col("customer"), Path: []string{"name"}, Direction: algebra.Descending},
			{Column: algebra.Col("_id")},
		},
		Limit: algebra.Int(5),
	}}
	out := lowerOne(t, in, orders)

	sort, ok := out.(*algebra.RelSort)
	require.True(t, ok)
	assert.Equal(t, []algebra.FieldCollation{
		{Column: algebra.Col("_data"), Path: []string{"customer", "name"}, Direction: algebra.Descending},
		{Column: algebra.Col("_id")},
	}, sort.Collation)
	assert.Equal(t, algebra.Int(5), sort.Limit)
}

func TestLowerDocument_InsertAssignsIDs(t *testing.T) {
	c := testutil.Catalog(t)
	orders := testutil.Entity(t, c, testutil.OrdersAllocation)
	var seq testutil.Sequence

	given := ir.IRObject{"total": ir.IRInt(3)}
	in := &algebra.DocModify{
		Entity: orders.Ref(),
		Op:     algebra.OpInsert,
		Input: &algebra.DocValues{Documents: []ir.IRObject{
			given,
			{"_id": ir.IRString("keep"), "total": ir.IRInt(4)},
		}},
	}
	out := lowerOne(t, in, orders, WithIDGenerator(seq.IDs("doc")))

	modify, ok := out.(*algebra.RelModify)
	require.True(t, ok)
	assert.Equal(t, algebra.OpInsert, modify.Op)
	assert.Equal(t, "coll7", modify.Entity.Name)

	values, ok := modify.Input.(*algebra.RelValues)
	require.True(t, ok)
	assert.Equal(t, []string{"_id", "_data"}, values.Type.FieldNames())
	require.Len(t, values.Rows, 2)
	assert.Equal(t, ir.IRString("doc-1"), values.Rows[0][0])
	assert.Equal(t, ir.IRString(`{"_id":"doc-1","total":3}`), values.Rows[0][1])
	assert.Equal(t, ir.IRString("keep"), values.Rows[1][0])

	_, hasID := given["_id"]
	assert.False(t, hasID, "input document must not be modified")
}

func TestLowerDocument_BSONPayloadRoundTrips(t *testing.T) {
	c := testutil.Catalog(t)
	orders := testutil.Entity(t, c, testutil.OrdersAllocation)

	doc := ir.IRObject{"_id": ir.IRString("a"), "items": ir.IRArray{ir.IRString("x")}}
	in := &algebra.DocModify{Entity: orders.Ref(), Op: algebra.OpInsert, Input: &algebra.DocValues{Documents: []ir.IRObject{doc}}}
	out := lowerOne(t, in, orders, WithCodec(document.BSONCodec{}))

	values := out.(*algebra.RelModify).Input.(*algebra.RelValues)
	payload, ok := values.Rows[0][1].(ir.IRBytes)
	require.True(t, ok)
	decoded, err := document.BSONCodec{}.Decode(payload)
	require.NoError(t, err)
	assert.Equal(t, doc, decoded)
}

func TestLowerDocument_Update(t *testing.T) {
	c := testutil.Catalog(t)
	orders := testutil.Entity(t, c, testutil.OrdersAllocation)

	in := &algebra.DocModify{
		Entity: orders.Ref(),
		Op:     algebra.OpUpdate,
		Input:  &algebra.DocValues{Documents: []ir.IRObject{{"_id": ir.IRString("o1"), "status": ir.IRString("paid")}}},
	}
	out := lowerOne(t, in, orders)
	modify := out.(*algebra.RelModify)
	assert.Equal(t, algebra.OpUpdate, modify.Op)
	assert.Equal(t, typesys.DocumentIDField, modify.Input.RowType().FieldNames()[0])

	in.Input = &algebra.DocValues{Documents: []ir.IRObject{{"status": ir.IRString("paid")}}}
	_, err := RelationalEquivalent([]algebra.Node{in}, []catalog.PhysicalEntity{orders}, nil)
	require.Error(t, err)
	assert.True(t, catalog.IsInvariantViolation(err))
}

func TestLowerDocument_Delete(t *testing.T) {
	c := testutil.Catalog(t)
	orders := testutil.Entity(t, c, testutil.OrdersAllocation)

	t.Run("by literal documents", func(t *testing.T) {
		in := &algebra.DocModify{
			Entity: orders.Ref(),
			Op:     algebra.OpDelete,
			Input:  &algebra.DocValues{Documents: []ir.IRObject{{"_id": ir.IRString("a")}, {"_id": ir.IRString("b")}}},
		}
		modify := lowerOne(t, in, orders).(*algebra.RelModify)
		filter, ok := modify.Input.(*algebra.RelFilter)
		require.True(t, ok)
		assert.Equal(t, &algebra.In{Column: algebra.Col("_id"), Values: []ir.IRValue{ir.IRString("a"), ir.IRString("b")}}, filter.Condition)
	})

	t.Run("by filter", func(t *testing.T) {
		in := &algebra.DocModify{
			Entity: orders.Ref(),
			Op:     algebra.OpDelete,
			Input: &algebra.DocFilter{
				Input:     &algebra.DocScan{Entity: orders.Ref()},
				Condition: &algebra.FieldEquals{Path: []string{"status"}, Value: ir.IRString("void")},
			},
		}
		modify := lowerOne(t, in, orders).(*algebra.RelModify)
		filter, ok := modify.Input.(*algebra.RelFilter)
		require.True(t, ok)
		_, isPayload := filter.Condition.(*algebra.PayloadEquals)
		assert.True(t, isPayload)
	})

	t.Run("foreign allocation", func(t *testing.T) {
		ref := orders.Ref()
		ref.AllocationID = 99
		in := &algebra.DocModify{Entity: ref, Op: algebra.OpDelete, Input: &algebra.DocScan{Entity: ref}}
		_, err := RelationalEquivalent([]algebra.Node{in}, []catalog.PhysicalEntity{orders}, nil)
		require.Error(t, err)
		assert.True(t, catalog.IsInvariantViolation(err))
	})
}
