package catalog

import (
	"fmt"

	"github.com/roach88/polycat/internal/ir"
)

// Physical object names derived from catalog ids.
func TableName(allocationID int64) string      { return fmt.Sprintf("tab%d", allocationID) }
func CollectionName(allocationID int64) string { return fmt.Sprintf("coll%d", allocationID) }
func GraphName(allocationID int64) string      { return fmt.Sprintf("graph%d", allocationID) }
func ColumnName(columnID int64) string         { return fmt.Sprintf("col%d", columnID) }

// Place registers the physical objects of one allocation described by
// snap. The namespace is registered first when the catalog does not know it.
func (c *StoreCatalog) Place(snap *ir.Snapshot, allocationID int64) (PhysicalEntity, error) {
	alloc, ok := snap.Allocation(allocationID)
	if !ok {
		return nil, NewNotFoundError("allocation", allocationID)
	}
	if alloc.AdapterID != c.adapterID {
		return nil, NewInvariantError("allocation %d belongs to adapter %d, not %d", allocationID, alloc.AdapterID, c.adapterID)
	}
	entity, ok := snap.Entity(alloc.LogicalID)
	if !ok {
		return nil, NewNotFoundError("entity", alloc.LogicalID)
	}
	if entity.Model != alloc.Model {
		return nil, NewInvariantError("allocation %d is %s but entity %q is %s", allocationID, alloc.Model, entity.Name, entity.Model)
	}
	ns, ok := snap.Namespace(alloc.NamespaceID)
	if !ok {
		return nil, NewNotFoundError("namespace", alloc.NamespaceID)
	}
	if _, err := c.GetNamespace(ns.ID); IsNotFound(err) {
		c.AddNamespace(ns.ID, PhysicalNamespace{
			Name:          ns.Name,
			AdapterID:     c.adapterID,
			Model:         ns.Model,
			CaseSensitive: ns.CaseSensitive,
		})
	}

	switch alloc.Model {
	case ir.ModelRelational:
		placements := snap.AllocationColumns(allocationID)
		names := make(map[int64]string, len(placements))
		for _, p := range placements {
			names[p.ColumnID] = ColumnName(p.ColumnID)
		}
		t, err := c.CreateTable(ns.Name, TableName(allocationID), names, entity, snap.ColumnMap(entity.ID), alloc, placements)
		if err != nil {
			return nil, err
		}
		return t, nil
	case ir.ModelDocument:
		coll, err := c.CreateCollection(ns.Name, CollectionName(allocationID), entity, alloc)
		if err != nil {
			return nil, err
		}
		return coll, nil
	case ir.ModelGraph:
		g, err := c.CreateGraph(ns.Name, GraphName(allocationID), entity, alloc)
		if err != nil {
			return nil, err
		}
		return g, nil
	default:
		return nil, NewInvariantError("allocation %d has unrecognized model %q", allocationID, alloc.Model)
	}
}
