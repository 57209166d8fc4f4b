package ir

// Version constants for persisted catalog snapshots.
const (
	// SnapshotVersion is the layout version of a serialized store catalog.
	SnapshotVersion = "1"

	// CatalogVersion is the polycat catalog implementation version.
	CatalogVersion = "0.1.0"
)
