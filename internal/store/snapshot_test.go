package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/polycat/internal/catalog"
	"github.com/roach88/polycat/internal/testutil"
)

func TestSaveLoad_RoundTrip(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)
	snap := testutil.Catalog(t).Snapshot()

	info, err := s.SaveSnapshot(ctx, snap)
	require.NoError(t, err)
	assert.Equal(t, int64(1), info.Generation)
	want, err := snap.Digest()
	require.NoError(t, err)
	assert.Equal(t, want, info.Digest)

	loaded, found, err := s.LoadSnapshot(ctx, testutil.AdapterID)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, snap.AdapterID, loaded.AdapterID)
	assert.Len(t, loaded.Tables, len(snap.Tables))
	assert.Len(t, loaded.Columns, len(snap.Columns))

	restored, err := catalog.FromSnapshot(loaded)
	require.NoError(t, err)
	got, err := restored.Snapshot().Digest()
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestSave_GenerationIncrementsAndRowsReplace(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)
	c := testutil.Catalog(t)

	_, err := s.SaveSnapshot(ctx, c.Snapshot())
	require.NoError(t, err)

	require.NoError(t, c.DropAllocation(testutil.SocialAllocation))
	info, err := s.SaveSnapshot(ctx, c.Snapshot())
	require.NoError(t, err)
	assert.Equal(t, int64(2), info.Generation)

	tables, err := s.ListTables(ctx, testutil.AdapterID)
	require.NoError(t, err)
	require.Len(t, tables, 2)
	assert.Equal(t, TableRow{TableID: 5, AllocationID: 5, NamespaceName: "public", Name: "tab5", ColumnCount: 3}, tables[0])
	assert.Equal(t, "coll7", tables[1].Name)

	got, found, err := s.Info(ctx, testutil.AdapterID)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, info, got)
}

func TestLoad_Missing(t *testing.T) {
	s := createTestStore(t)

	_, found, err := s.LoadSnapshot(context.Background(), 42)
	require.NoError(t, err)
	assert.False(t, found)

	_, found, err = s.Info(context.Background(), 42)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestLoad_DigestMismatch(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)
	_, err := s.SaveSnapshot(ctx, testutil.Catalog(t).Snapshot())
	require.NoError(t, err)

	_, err = s.db.Exec("UPDATE catalog_snapshots SET digest = ? WHERE adapter_id = ?", "bogus", testutil.AdapterID)
	require.NoError(t, err)

	_, _, err = s.LoadSnapshot(ctx, testutil.AdapterID)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDigestMismatch)
}

func TestDelete_CascadesAndListAdapters(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)

	_, err := s.SaveSnapshot(ctx, testutil.Catalog(t).Snapshot())
	require.NoError(t, err)
	_, err = s.SaveSnapshot(ctx, catalog.Snapshot{AdapterID: 3})
	require.NoError(t, err)

	ids, err := s.ListAdapters(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 3}, ids)

	require.NoError(t, s.DeleteSnapshot(ctx, testutil.AdapterID))
	require.NoError(t, s.DeleteSnapshot(ctx, testutil.AdapterID))

	ids, err = s.ListAdapters(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{3}, ids)

	var count int
	require.NoError(t, s.db.QueryRow("SELECT COUNT(*) FROM catalog_tables WHERE adapter_id = ?", testutil.AdapterID).Scan(&count))
	assert.Zero(t, count)
}

func TestSave_SurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "catalog.db")

	s, err := Open(path)
	require.NoError(t, err)
	c := testutil.Catalog(t)
	coll := testutil.Entity(t, c, testutil.OrdersAllocation).(*catalog.PhysicalCollection)
	coll.Type.Field("status", true, false)
	info, err := s.SaveSnapshot(ctx, c.Snapshot())
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()

	loaded, found, err := s.LoadSnapshot(ctx, testutil.AdapterID)
	require.NoError(t, err)
	require.True(t, found)
	digest, err := loaded.Digest()
	require.NoError(t, err)
	assert.Equal(t, info.Digest, digest)

	restored, err := catalog.FromSnapshot(loaded)
	require.NoError(t, err)
	e, err := restored.Entity(testutil.OrdersAllocation)
	require.NoError(t, err)
	assert.Equal(t, coll.Type.Digest(), e.(*catalog.PhysicalCollection).Type.Digest())
}
