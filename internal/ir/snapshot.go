package ir

import "sort"

// SnapshotData is the raw content of a schema snapshot as supplied by the
// external schema store.
type SnapshotData struct {
	Namespaces        []Namespace        `json:"namespaces"`
	Entities          []LogicalEntity    `json:"entities"`
	Columns           []LogicalColumn    `json:"columns"`
	Allocations       []AllocationEntity `json:"allocations"`
	AllocationColumns []AllocationColumn `json:"allocation_columns"`
}

// Snapshot is a read-only, indexed view over a SnapshotData.
//
// Snapshots are immutable after construction and safe for concurrent use.
type Snapshot struct {
	data        SnapshotData
	namespaces  map[int64]Namespace
	entities    map[int64]LogicalEntity
	columns     map[int64]LogicalColumn
	allocations map[int64]AllocationEntity
	placements  map[int64][]AllocationColumn
	byEntity    map[int64][]LogicalColumn
}

// NewSnapshot indexes data. Later duplicates of the same id replace earlier ones.
func NewSnapshot(data SnapshotData) *Snapshot {
	s := &Snapshot{
		data:        data,
		namespaces:  make(map[int64]Namespace, len(data.Namespaces)),
		entities:    make(map[int64]LogicalEntity, len(data.Entities)),
		columns:     make(map[int64]LogicalColumn, len(data.Columns)),
		allocations: make(map[int64]AllocationEntity, len(data.Allocations)),
		placements:  make(map[int64][]AllocationColumn),
		byEntity:    make(map[int64][]LogicalColumn),
	}
	for _, ns := range data.Namespaces {
		s.namespaces[ns.ID] = ns
	}
	for _, e := range data.Entities {
		s.entities[e.ID] = e
	}
	for _, c := range data.Columns {
		s.columns[c.ID] = c
		s.byEntity[c.EntityID] = append(s.byEntity[c.EntityID], c)
	}
	for _, a := range data.Allocations {
		s.allocations[a.ID] = a
	}
	for _, p := range data.AllocationColumns {
		s.placements[p.AllocationID] = append(s.placements[p.AllocationID], p)
	}
	for id := range s.placements {
		cols := s.placements[id]
		sort.SliceStable(cols, func(i, j int) bool { return cols[i].Position < cols[j].Position })
	}
	for id := range s.byEntity {
		cols := s.byEntity[id]
		sort.SliceStable(cols, func(i, j int) bool { return cols[i].Position < cols[j].Position })
	}
	return s
}

// Data returns the raw snapshot content.
func (s *Snapshot) Data() SnapshotData {
	return s.data
}

// Namespace looks up a namespace by id.
func (s *Snapshot) Namespace(id int64) (Namespace, bool) {
	ns, ok := s.namespaces[id]
	return ns, ok
}

// Entity looks up a logical entity by id.
func (s *Snapshot) Entity(id int64) (LogicalEntity, bool) {
	e, ok := s.entities[id]
	return e, ok
}

// Column looks up a logical column by id.
func (s *Snapshot) Column(id int64) (LogicalColumn, bool) {
	c, ok := s.columns[id]
	return c, ok
}

// Allocation looks up an allocation by id.
func (s *Snapshot) Allocation(id int64) (AllocationEntity, bool) {
	a, ok := s.allocations[id]
	return a, ok
}

// AllocationColumns returns the placed columns of an allocation ordered by position.
func (s *Snapshot) AllocationColumns(allocationID int64) []AllocationColumn {
	return append([]AllocationColumn(nil), s.placements[allocationID]...)
}

// EntityColumns returns the logical columns of an entity ordered by position.
func (s *Snapshot) EntityColumns(entityID int64) []LogicalColumn {
	return append([]LogicalColumn(nil), s.byEntity[entityID]...)
}

// ColumnMap returns the columns of an entity keyed by id.
func (s *Snapshot) ColumnMap(entityID int64) map[int64]LogicalColumn {
	m := make(map[int64]LogicalColumn, len(s.byEntity[entityID]))
	for _, c := range s.byEntity[entityID] {
		m[c.ID] = c
	}
	return m
}

// AllocationsOn returns the allocations placed on an adapter, ordered by id.
func (s *Snapshot) AllocationsOn(adapterID int64) []AllocationEntity {
	var out []AllocationEntity
	for _, a := range s.allocations {
		if a.AdapterID == adapterID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
