package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/roach88/polycat/internal/catalog"
)

// ErrDigestMismatch is returned when a stored payload no longer hashes to
// its recorded digest.
var ErrDigestMismatch = errors.New("snapshot digest mismatch")

// SnapshotInfo describes a stored snapshot without its payload.
type SnapshotInfo struct {
	AdapterID  int64  `json:"adapter_id"`
	Digest     string `json:"digest"`
	Generation int64  `json:"generation"`
}

// TableRow is the stored summary of one physical table.
type TableRow struct {
	TableID       int64  `json:"table_id"`
	AllocationID  int64  `json:"allocation_id"`
	NamespaceName string `json:"namespace_name"`
	Name          string `json:"name"`
	ColumnCount   int    `json:"column_count"`
}

// SaveSnapshot writes the snapshot of snap.AdapterID, replacing any
// previous one, and returns the new generation. The first save is
// generation 1.
func (s *Store) SaveSnapshot(ctx context.Context, snap catalog.Snapshot) (SnapshotInfo, error) {
	payload, err := catalog.EncodeSnapshot(snap)
	if err != nil {
		return SnapshotInfo{}, fmt.Errorf("save snapshot: %w", err)
	}
	digest, err := snap.Digest()
	if err != nil {
		return SnapshotInfo{}, fmt.Errorf("save snapshot: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return SnapshotInfo{}, fmt.Errorf("save snapshot: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	_, err = tx.ExecContext(ctx, `
		INSERT INTO catalog_snapshots (adapter_id, digest, generation, payload)
		VALUES (?, ?, 1, ?)
		ON CONFLICT(adapter_id) DO UPDATE SET
			digest = excluded.digest,
			generation = catalog_snapshots.generation + 1,
			payload = excluded.payload
	`, snap.AdapterID, digest, string(payload))
	if err != nil {
		return SnapshotInfo{}, fmt.Errorf("save snapshot: %w", err)
	}

	for _, table := range []string{"catalog_namespaces", "catalog_tables", "catalog_allocations"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table+" WHERE adapter_id = ?", snap.AdapterID); err != nil {
			return SnapshotInfo{}, fmt.Errorf("save snapshot: clear %s: %w", table, err)
		}
	}

	for _, ns := range snap.Namespaces {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO catalog_namespaces (adapter_id, namespace_id, name, model)
			VALUES (?, ?, ?, ?)
		`, snap.AdapterID, ns.ID, ns.Name, string(ns.Model))
		if err != nil {
			return SnapshotInfo{}, fmt.Errorf("save snapshot: namespace %d: %w", ns.ID, err)
		}
	}
	for _, t := range snap.Tables {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO catalog_tables (adapter_id, table_id, allocation_id, namespace_name, name, column_count)
			VALUES (?, ?, ?, ?, ?, ?)
		`, snap.AdapterID, t.ID, t.AllocationID, t.NamespaceName, t.Name, len(t.ColumnIDs))
		if err != nil {
			return SnapshotInfo{}, fmt.Errorf("save snapshot: table %d: %w", t.ID, err)
		}
	}
	for _, a := range snap.Allocations {
		ids, err := json.Marshal(a.TableIDs)
		if err != nil {
			return SnapshotInfo{}, fmt.Errorf("save snapshot: allocation %d: %w", a.Allocation.ID, err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO catalog_allocations (adapter_id, allocation_id, logical_id, model, table_ids)
			VALUES (?, ?, ?, ?, ?)
		`, snap.AdapterID, a.Allocation.ID, a.Allocation.LogicalID, string(a.Allocation.Model), string(ids))
		if err != nil {
			return SnapshotInfo{}, fmt.Errorf("save snapshot: allocation %d: %w", a.Allocation.ID, err)
		}
	}

	info := SnapshotInfo{AdapterID: snap.AdapterID, Digest: digest}
	if err := tx.QueryRowContext(ctx,
		"SELECT generation FROM catalog_snapshots WHERE adapter_id = ?", snap.AdapterID,
	).Scan(&info.Generation); err != nil {
		return SnapshotInfo{}, fmt.Errorf("save snapshot: read generation: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return SnapshotInfo{}, fmt.Errorf("save snapshot: commit: %w", err)
	}
	return info, nil
}

// LoadSnapshot reads the snapshot of an adapter. found is false when none
// is stored. A payload whose digest does not match returns ErrDigestMismatch.
func (s *Store) LoadSnapshot(ctx context.Context, adapterID int64) (snap catalog.Snapshot, found bool, err error) {
	var digest, payload string
	err = s.db.QueryRowContext(ctx,
		"SELECT digest, payload FROM catalog_snapshots WHERE adapter_id = ?", adapterID,
	).Scan(&digest, &payload)
	if errors.Is(err, sql.ErrNoRows) {
		return catalog.Snapshot{}, false, nil
	}
	if err != nil {
		return catalog.Snapshot{}, false, fmt.Errorf("load snapshot: %w", err)
	}

	snap, err = catalog.DecodeSnapshot([]byte(payload))
	if err != nil {
		return catalog.Snapshot{}, false, fmt.Errorf("load snapshot: %w", err)
	}
	got, err := snap.Digest()
	if err != nil {
		return catalog.Snapshot{}, false, fmt.Errorf("load snapshot: %w", err)
	}
	if got != digest {
		return catalog.Snapshot{}, false, fmt.Errorf("load snapshot of adapter %d: %w (stored %s, computed %s)", adapterID, ErrDigestMismatch, digest, got)
	}
	return snap, true, nil
}

// Info returns the digest and generation of a stored snapshot.
func (s *Store) Info(ctx context.Context, adapterID int64) (SnapshotInfo, bool, error) {
	info := SnapshotInfo{AdapterID: adapterID}
	err := s.db.QueryRowContext(ctx,
		"SELECT digest, generation FROM catalog_snapshots WHERE adapter_id = ?", adapterID,
	).Scan(&info.Digest, &info.Generation)
	if errors.Is(err, sql.ErrNoRows) {
		return SnapshotInfo{}, false, nil
	}
	if err != nil {
		return SnapshotInfo{}, false, fmt.Errorf("snapshot info: %w", err)
	}
	return info, true, nil
}

// DeleteSnapshot removes the snapshot of an adapter and its object rows.
// Deleting a missing snapshot is not an error.
func (s *Store) DeleteSnapshot(ctx context.Context, adapterID int64) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM catalog_snapshots WHERE adapter_id = ?", adapterID); err != nil {
		return fmt.Errorf("delete snapshot: %w", err)
	}
	return nil
}

// ListAdapters returns the ids of adapters with a stored snapshot, ascending.
func (s *Store) ListAdapters(ctx context.Context) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT adapter_id FROM catalog_snapshots ORDER BY adapter_id ASC")
	if err != nil {
		return nil, fmt.Errorf("list adapters: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("list adapters: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list adapters: %w", err)
	}
	return ids, nil
}

// ListTables returns the stored table rows of an adapter ordered by
// namespace, name and id.
func (s *Store) ListTables(ctx context.Context, adapterID int64) ([]TableRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT table_id, allocation_id, namespace_name, name, column_count
		FROM catalog_tables
		WHERE adapter_id = ?
		ORDER BY namespace_name COLLATE BINARY ASC, name COLLATE BINARY ASC, table_id ASC
	`, adapterID)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	defer rows.Close()

	var out []TableRow
	for rows.Next() {
		var r TableRow
		if err := rows.Scan(&r.TableID, &r.AllocationID, &r.NamespaceName, &r.Name, &r.ColumnCount); err != nil {
			return nil, fmt.Errorf("list tables: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	return out, nil
}
