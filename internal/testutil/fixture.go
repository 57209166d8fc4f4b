package testutil

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/polycat/internal/catalog"
	"github.com/roach88/polycat/internal/ir"
)

// Fixture ids shared by package tests.
const (
	AdapterID        int64 = 1
	EmpsAllocation   int64 = 5
	OrdersAllocation int64 = 7
	SocialAllocation int64 = 9
)

// SnapshotData describes one relational table, one collection and one
// graph, all allocated on AdapterID.
//
//	public.emps   (id BIGINT, name VARCHAR(64), salary INTEGER NULL) -> tab5
//	shop.orders   document collection                              -> coll7
//	social.people graph re-encoded onto tables 90-93                -> graph9
func SnapshotData() ir.SnapshotData {
	return ir.SnapshotData{
		Namespaces: []ir.Namespace{
			{ID: 1, Name: "public", Model: ir.ModelRelational},
			{ID: 2, Name: "shop", Model: ir.ModelDocument},
			{ID: 3, Name: "social", Model: ir.ModelGraph},
		},
		Entities: []ir.LogicalEntity{
			{ID: 10, NamespaceID: 1, Name: "emps", Model: ir.ModelRelational},
			{ID: 20, NamespaceID: 2, Name: "orders", Model: ir.ModelDocument},
			{ID: 30, NamespaceID: 3, Name: "people", Model: ir.ModelGraph},
		},
		Columns: []ir.LogicalColumn{
			{ID: 101, EntityID: 10, NamespaceID: 1, Name: "id", Position: 1, Type: ir.TypeBigint},
			{ID: 102, EntityID: 10, NamespaceID: 1, Name: "name", Position: 2, Type: ir.TypeVarchar, Length: 64},
			{ID: 103, EntityID: 10, NamespaceID: 1, Name: "salary", Position: 3, Type: ir.TypeInteger, Nullable: true},
		},
		Allocations: []ir.AllocationEntity{
			{ID: EmpsAllocation, LogicalID: 10, AdapterID: AdapterID, NamespaceID: 1, Model: ir.ModelRelational},
			{ID: OrdersAllocation, LogicalID: 20, AdapterID: AdapterID, NamespaceID: 2, Model: ir.ModelDocument},
			{
				ID: SocialAllocation, LogicalID: 30, AdapterID: AdapterID, NamespaceID: 3, Model: ir.ModelGraph,
				Substitutes: &ir.GraphSubstitutes{Nodes: 90, NodeProperties: 91, Edges: 92, EdgeProperties: 93},
			},
		},
		AllocationColumns: []ir.AllocationColumn{
			{AllocationID: EmpsAllocation, ColumnID: 101, Position: 1},
			{AllocationID: EmpsAllocation, ColumnID: 102, Position: 2},
			{AllocationID: EmpsAllocation, ColumnID: 103, Position: 3},
		},
	}
}

// Snapshot indexes SnapshotData.
func Snapshot() *ir.Snapshot {
	return ir.NewSnapshot(SnapshotData())
}

// Catalog returns a catalog with every fixture allocation placed.
func Catalog(t testing.TB, opts ...catalog.Option) *catalog.StoreCatalog {
	t.Helper()
	snap := Snapshot()
	c := catalog.New(AdapterID, opts...)
	for _, alloc := range snap.AllocationsOn(AdapterID) {
		_, err := c.Place(snap, alloc.ID)
		require.NoError(t, err)
	}
	return c
}

// Entity returns the physical entity of a placed allocation.
func Entity(t testing.TB, c *catalog.StoreCatalog, allocationID int64) catalog.PhysicalEntity {
	t.Helper()
	e, err := c.Entity(allocationID)
	require.NoError(t, err)
	return e
}
