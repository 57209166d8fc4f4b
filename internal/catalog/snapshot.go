package catalog

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/roach88/polycat/internal/ir"
	"github.com/roach88/polycat/internal/typesys"
)

// Snapshot is the persisted form of a catalog: the adapter id and the four
// maps, each ordered by id. Column types are stored as typesys specs so
// grown document types keep their digests.
type Snapshot struct {
	AdapterID   int64               `json:"adapter_id"`
	Namespaces  []PhysicalNamespace `json:"namespaces"`
	Tables      []TableRecord       `json:"tables"`
	Columns     []ColumnRecord      `json:"columns"`
	Allocations []AllocationRecord  `json:"allocations"`
}

// TableRecord is a persisted table. Columns are referenced by id.
type TableRecord struct {
	ID            int64   `json:"id"`
	AllocationID  int64   `json:"allocation_id"`
	LogicalID     int64   `json:"logical_id"`
	AdapterID     int64   `json:"adapter_id"`
	NamespaceID   int64   `json:"namespace_id"`
	NamespaceName string  `json:"namespace_name"`
	Name          string  `json:"name"`
	LogicalName   string  `json:"logical_name"`
	ColumnIDs     []int64 `json:"column_ids"`
}

// ColumnRecord is a persisted column.
type ColumnRecord struct {
	ID          int64        `json:"id"`
	TableID     int64        `json:"table_id"`
	AdapterID   int64        `json:"adapter_id"`
	Name        string       `json:"name"`
	LogicalName string       `json:"logical_name"`
	Position    int          `json:"position"`
	PolyType    ir.PolyType  `json:"poly_type"`
	Length      int          `json:"length,omitempty"`
	Scale       int          `json:"scale,omitempty"`
	Nullable    bool         `json:"nullable"`
	Type        typesys.Spec `json:"type"`
}

// AllocationRecord is a persisted relation entry.
type AllocationRecord struct {
	Allocation   ir.AllocationEntity `json:"allocation"`
	TableIDs     []int64             `json:"table_ids"`
	DocumentType *typesys.Spec       `json:"document_type,omitempty"`
}

// Snapshot captures the catalog state. The result shares no memory with the
// catalog.
func (c *StoreCatalog) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	s := Snapshot{
		AdapterID:   c.adapterID,
		Namespaces:  make([]PhysicalNamespace, 0, len(c.namespaces)),
		Tables:      make([]TableRecord, 0, len(c.tables)),
		Columns:     make([]ColumnRecord, 0, len(c.columns)),
		Allocations: make([]AllocationRecord, 0, len(c.allocations)),
	}
	for _, ns := range c.namespaces {
		s.Namespaces = append(s.Namespaces, ns)
	}
	for _, t := range c.tables {
		rec := TableRecord{
			ID:            t.ID,
			AllocationID:  t.AllocationID,
			LogicalID:     t.LogicalID,
			AdapterID:     t.AdapterID,
			NamespaceID:   t.NamespaceID,
			NamespaceName: t.NamespaceName,
			Name:          t.Name,
			LogicalName:   t.LogicalName,
			ColumnIDs:     make([]int64, len(t.Columns)),
		}
		for i, col := range t.Columns {
			rec.ColumnIDs[i] = col.ID
		}
		s.Tables = append(s.Tables, rec)
	}
	for _, col := range c.columns {
		s.Columns = append(s.Columns, ColumnRecord{
			ID:          col.ID,
			TableID:     col.TableID,
			AdapterID:   col.AdapterID,
			Name:        col.Name,
			LogicalName: col.LogicalName,
			Position:    col.Position,
			PolyType:    col.PolyType,
			Length:      col.Length,
			Scale:       col.Scale,
			Nullable:    col.Nullable,
			Type:        typesys.Encode(col.Type),
		})
	}
	for _, rel := range c.allocations {
		rec := AllocationRecord{
			Allocation: rel.Allocation,
			TableIDs:   append([]int64(nil), rel.TableIDs...),
		}
		if rel.Allocation.Substitutes != nil {
			subs := *rel.Allocation.Substitutes
			rec.Allocation.Substitutes = &subs
		}
		if rel.DocumentType != nil {
			spec := typesys.Encode(rel.DocumentType)
			rec.DocumentType = &spec
		}
		s.Allocations = append(s.Allocations, rec)
	}

	sort.Slice(s.Namespaces, func(i, j int) bool { return s.Namespaces[i].ID < s.Namespaces[j].ID })
	sort.Slice(s.Tables, func(i, j int) bool { return s.Tables[i].ID < s.Tables[j].ID })
	sort.Slice(s.Columns, func(i, j int) bool {
		if s.Columns[i].TableID != s.Columns[j].TableID {
			return s.Columns[i].TableID < s.Columns[j].TableID
		}
		return s.Columns[i].ID < s.Columns[j].ID
	})
	sort.Slice(s.Allocations, func(i, j int) bool { return s.Allocations[i].Allocation.ID < s.Allocations[j].Allocation.ID })
	return s
}

// Restore replaces the catalog state with a snapshot. The snapshot must
// belong to the same adapter and be internally consistent; on error the
// catalog is unchanged.
func (c *StoreCatalog) Restore(s Snapshot) error {
	if s.AdapterID != c.adapterID {
		return NewInvariantError("snapshot of adapter %d cannot restore adapter %d", s.AdapterID, c.adapterID)
	}

	namespaces := make(map[int64]PhysicalNamespace, len(s.Namespaces))
	for _, ns := range s.Namespaces {
		namespaces[ns.ID] = ns
	}

	columns := make(map[ColumnKey]PhysicalColumn, len(s.Columns))
	for _, rec := range s.Columns {
		typ, err := typesys.Decode(rec.Type)
		if err != nil {
			return NewInvariantError("column %d of table %d: %v", rec.ID, rec.TableID, err)
		}
		col := PhysicalColumn{
			ID:          rec.ID,
			TableID:     rec.TableID,
			AdapterID:   rec.AdapterID,
			Name:        rec.Name,
			LogicalName: rec.LogicalName,
			Position:    rec.Position,
			PolyType:    rec.PolyType,
			Length:      rec.Length,
			Scale:       rec.Scale,
			Nullable:    rec.Nullable,
			Type:        typ,
		}
		columns[col.Key()] = col
	}

	tables := make(map[int64]*PhysicalTable, len(s.Tables))
	for _, rec := range s.Tables {
		t := &PhysicalTable{
			ID:            rec.ID,
			AllocationID:  rec.AllocationID,
			LogicalID:     rec.LogicalID,
			AdapterID:     rec.AdapterID,
			NamespaceID:   rec.NamespaceID,
			NamespaceName: rec.NamespaceName,
			Name:          rec.Name,
			LogicalName:   rec.LogicalName,
			Columns:       make([]PhysicalColumn, len(rec.ColumnIDs)),
			readOnly:      c.readOnly,
		}
		for i, id := range rec.ColumnIDs {
			col, ok := columns[ColumnKey{TableID: rec.ID, ColumnID: id}]
			if !ok {
				return NewInvariantError("table %d references unregistered column %d", rec.ID, id)
			}
			t.Columns[i] = col
		}
		tables[t.ID] = t
	}

	allocations := make(map[int64]AllocationRelation, len(s.Allocations))
	for _, rec := range s.Allocations {
		rel := AllocationRelation{Allocation: rec.Allocation, TableIDs: rec.TableIDs}
		for _, tid := range rec.TableIDs {
			t, ok := tables[tid]
			if !ok {
				return NewInvariantError("allocation %d references missing table %d", rec.Allocation.ID, tid)
			}
			if t.AllocationID != rec.Allocation.ID {
				return NewInvariantError("table %d belongs to allocation %d, not %d", tid, t.AllocationID, rec.Allocation.ID)
			}
		}
		if rec.DocumentType != nil {
			typ, err := typesys.Decode(*rec.DocumentType)
			if err != nil {
				return NewInvariantError("document type of allocation %d: %v", rec.Allocation.ID, err)
			}
			doc, ok := typ.(*typesys.DocumentType)
			if !ok {
				return NewInvariantError("allocation %d stores a %s type, want DOCUMENT", rec.Allocation.ID, typ.Kind())
			}
			rel.DocumentType = doc
		}
		allocations[rec.Allocation.ID] = rel
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.namespaces = namespaces
	c.tables = tables
	c.columns = columns
	c.allocations = allocations
	c.logger.Debugw("catalog restored", "adapter", c.adapterID, "tables", len(tables), "allocations", len(allocations))
	return nil
}

// FromSnapshot creates a catalog populated from a snapshot.
func FromSnapshot(s Snapshot, opts ...Option) (*StoreCatalog, error) {
	c := New(s.AdapterID, opts...)
	if err := c.Restore(s); err != nil {
		return nil, err
	}
	return c, nil
}

// EncodeSnapshot serializes a snapshot as canonical JSON.
func EncodeSnapshot(s Snapshot) ([]byte, error) {
	raw, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	val, err := ir.UnmarshalIRValue(raw)
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	return ir.MarshalCanonical(val)
}

// DecodeSnapshot parses a snapshot produced by EncodeSnapshot.
func DecodeSnapshot(data []byte) (Snapshot, error) {
	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return Snapshot{}, fmt.Errorf("decode snapshot: %w", err)
	}
	return s, nil
}

// Digest is the content hash of a snapshot's canonical encoding.
func (s Snapshot) Digest() (string, error) {
	data, err := EncodeSnapshot(s)
	if err != nil {
		return "", err
	}
	return ir.SnapshotDigest(data), nil
}
