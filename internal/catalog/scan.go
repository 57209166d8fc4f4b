package catalog

import (
	"github.com/roach88/polycat/internal/algebra"
	"github.com/roach88/polycat/internal/ir"
	"github.com/roach88/polycat/internal/typesys"
)

// RelationalScan scans the first table owned by the allocation.
func RelationalScan(c *StoreCatalog, rel AllocationRelation) (algebra.Node, error) {
	if len(rel.TableIDs) == 0 {
		return nil, NewInvariantError("allocation %d owns no tables", rel.Allocation.ID)
	}
	t, err := c.GetTable(rel.TableIDs[0])
	if err != nil {
		return nil, err
	}
	return &algebra.RelScan{Entity: t.Ref()}, nil
}

// DocumentScan reads a re-encoded collection through the relational path
// and presents it as documents.
func DocumentScan(c *StoreCatalog, rel AllocationRelation) (algebra.Node, error) {
	scan, err := RelationalScan(c, rel)
	if err != nil {
		return nil, err
	}
	var docType typesys.Type = typesys.OfID()
	if rel.DocumentType != nil {
		docType = rel.DocumentType
	}
	return &algebra.Transformer{Out: ir.ModelDocument, In: []algebra.Node{scan}, Type: docType}, nil
}

// GraphScan reads the four substitute tables of a re-encoded graph and
// presents them as one graph.
func GraphScan(c *StoreCatalog, rel AllocationRelation) (algebra.Node, error) {
	if len(rel.TableIDs) != 4 {
		return nil, NewInvariantError("graph allocation %d owns %d tables, want 4", rel.Allocation.ID, len(rel.TableIDs))
	}
	scans := make([]algebra.Node, len(rel.TableIDs))
	for i, tid := range rel.TableIDs {
		t, err := c.GetTable(tid)
		if err != nil {
			return nil, err
		}
		scans[i] = &algebra.RelScan{Entity: t.Ref()}
	}
	return &algebra.Transformer{Out: ir.ModelGraph, In: scans, Type: typesys.GraphType()}, nil
}

// NativeDocumentScan is the builder for adapters that store documents natively.
func NativeDocumentScan(c *StoreCatalog, rel AllocationRelation) (algebra.Node, error) {
	e, err := c.Entity(rel.Allocation.ID)
	if err != nil {
		return nil, err
	}
	return &algebra.DocScan{Entity: e.Ref()}, nil
}

// NativeGraphScan is the builder for adapters that store graphs natively.
func NativeGraphScan(c *StoreCatalog, rel AllocationRelation) (algebra.Node, error) {
	e, err := c.Entity(rel.Allocation.ID)
	if err != nil {
		return nil, err
	}
	return &algebra.GraphScan{Entity: e.Ref()}, nil
}
