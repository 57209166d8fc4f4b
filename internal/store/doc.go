// Package store provides SQLite-backed durable storage for per-adapter
// catalog snapshots.
//
// Each adapter has one row in catalog_snapshots holding the canonical JSON
// payload of its catalog, the payload digest and a generation counter that
// increments on every save. The namespaces, tables and allocations of the
// snapshot are also written as rows for inspection. A save replaces all
// rows of an adapter in one transaction, so readers never observe a
// partially written catalog.
//
// # Critical Patterns
//
// Deterministic results:
//   - Every query carries an ORDER BY; text keys use COLLATE BINARY
//
// Integrity:
//   - LoadSnapshot recomputes the digest and rejects payloads that do not match
//   - Foreign keys cascade object rows when a snapshot is deleted
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
