package adapter

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/polycat/internal/algebra"
	"github.com/roach88/polycat/internal/catalog"
	"github.com/roach88/polycat/internal/ir"
	"github.com/roach88/polycat/internal/store"
	"github.com/roach88/polycat/internal/testutil"
	"github.com/roach88/polycat/internal/typesys"
)

func openStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "polycat.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// start activates an adapter and runs its loop until the test ends.
func start(t *testing.T, opts Options) *Adapter {
	t.Helper()
	if opts.AdapterID == 0 {
		opts.AdapterID = testutil.AdapterID
	}
	if opts.Tokens == nil {
		opts.Tokens = testutil.NewFixedTokenGenerator("")
	}
	a, err := Activate(context.Background(), opts)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- a.Run(context.Background()) }()
	t.Cleanup(func() {
		_ = a.Deactivate(context.Background())
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Error("mutation loop did not stop")
		}
	})
	return a
}

func placeAll(t *testing.T, a *Adapter) {
	t.Helper()
	snap := testutil.Snapshot()
	for _, alloc := range snap.AllocationsOn(testutil.AdapterID) {
		_, err := a.Place(context.Background(), snap, alloc.ID)
		require.NoError(t, err)
	}
}

func sqliteTables(t *testing.T, db *sql.DB) []string {
	t.Helper()
	rows, err := db.Query("SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'catalog_%' ORDER BY name COLLATE BINARY")
	require.NoError(t, err)
	defer rows.Close()
	var names []string
	for rows.Next() {
		var name string
		require.NoError(t, rows.Scan(&name))
		names = append(names, name)
	}
	require.NoError(t, rows.Err())
	return names
}

func sqliteColumns(t *testing.T, db *sql.DB, table string) []string {
	t.Helper()
	rows, err := db.Query("SELECT name FROM pragma_table_info(?) ORDER BY cid", table)
	require.NoError(t, err)
	defer rows.Close()
	var names []string
	for rows.Next() {
		var name string
		require.NoError(t, rows.Scan(&name))
		names = append(names, name)
	}
	require.NoError(t, rows.Err())
	return names
}

func TestActivate(t *testing.T) {
	t.Run("fresh catalog", func(t *testing.T) {
		a, err := Activate(context.Background(), Options{
			AdapterID: 3,
			Tokens:    testutil.NewFixedTokenGenerator("act-1"),
		})
		require.NoError(t, err)
		assert.Equal(t, int64(3), a.ID())
		assert.Equal(t, "act-1", a.Token())
		assert.Equal(t, int64(3), a.Catalog().AdapterID())
		assert.Empty(t, a.Catalog().Tables())
		require.NoError(t, a.Deactivate(context.Background()))
	})

	t.Run("default token is a UUIDv7", func(t *testing.T) {
		a, err := Activate(context.Background(), Options{AdapterID: 1})
		require.NoError(t, err)
		assert.Len(t, a.Token(), 36)
		assert.Equal(t, byte('7'), a.Token()[14])
	})

	t.Run("invalid id", func(t *testing.T) {
		_, err := Activate(context.Background(), Options{AdapterID: 0})
		assert.Error(t, err)
	})

	t.Run("unknown native model", func(t *testing.T) {
		_, err := Activate(context.Background(), Options{AdapterID: 1, Native: []ir.DataModel{"columnar"}})
		assert.Error(t, err)
	})
}

func TestPlace_CreatesPhysicalTables(t *testing.T) {
	st := openStore(t)
	a := start(t, Options{Store: st, DB: st.DB()})
	placeAll(t, a)

	assert.Equal(t, []string{
		"coll7",
		"graph9_edge_properties",
		"graph9_edges",
		"graph9_node_properties",
		"graph9_nodes",
		"tab5",
	}, sqliteTables(t, st.DB()))
	assert.Equal(t, []string{"col101", "col102", "col103"}, sqliteColumns(t, st.DB(), "tab5"))
	assert.Equal(t, []string{"_id", "_data"}, sqliteColumns(t, st.DB(), "coll7"))

	e, err := a.Catalog().Entity(testutil.EmpsAllocation)
	require.NoError(t, err)
	assert.Equal(t, "tab5", e.Ref().Name)
}

type failingExec struct{}

func (failingExec) ExecContext(context.Context, string, ...any) (sql.Result, error) {
	return nil, errors.New("disk full")
}

func TestPlace_DDLFailureRollsBack(t *testing.T) {
	a := start(t, Options{DB: failingExec{}})

	_, err := a.Place(context.Background(), testutil.Snapshot(), testutil.EmpsAllocation)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")

	_, err = a.Catalog().GetAllocation(testutil.EmpsAllocation)
	assert.True(t, catalog.IsNotFound(err), "placement should be rolled back, got %v", err)
	assert.Empty(t, a.Catalog().Tables())
}

// countingTransactor opens real transactions on db and fails the statement
// numbered failAt, counting across transactions.
type countingTransactor struct {
	db     *sql.DB
	failAt int
	execs  int
}

func (c *countingTransactor) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return c.db.ExecContext(ctx, query, args...)
}

func (c *countingTransactor) Begin(ctx context.Context) (Tx, error) {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &countingTx{Tx: tx, parent: c}, nil
}

type countingTx struct {
	*sql.Tx
	parent *countingTransactor
}

func (t *countingTx) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	t.parent.execs++
	if t.parent.execs == t.parent.failAt {
		return nil, errors.New("disk full")
	}
	return t.Tx.ExecContext(ctx, query, args...)
}

func TestPlace_PartialDDLRollsBack(t *testing.T) {
	st := openStore(t)
	x := &countingTransactor{db: st.DB(), failAt: 3}
	a := start(t, Options{DB: x})

	_, err := a.Place(context.Background(), testutil.Snapshot(), testutil.SocialAllocation)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.Equal(t, 3, x.execs)

	assert.Empty(t, sqliteTables(t, st.DB()), "tables created before the failure should be rolled back")
	_, err = a.Catalog().GetAllocation(testutil.SocialAllocation)
	assert.True(t, catalog.IsNotFound(err), "placement should be rolled back, got %v", err)

	// The same placement succeeds once the executor recovers.
	x.failAt = 0
	_, err = a.Place(context.Background(), testutil.Snapshot(), testutil.SocialAllocation)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"graph9_edge_properties",
		"graph9_edges",
		"graph9_node_properties",
		"graph9_nodes",
	}, sqliteTables(t, st.DB()))
}

func TestDrop_PartialDDLRollsBack(t *testing.T) {
	st := openStore(t)
	x := &countingTransactor{db: st.DB()}
	a := start(t, Options{DB: x})
	_, err := a.Place(context.Background(), testutil.Snapshot(), testutil.SocialAllocation)
	require.NoError(t, err)

	x.failAt = x.execs + 2
	err = a.Drop(context.Background(), testutil.SocialAllocation)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")

	assert.Equal(t, []string{
		"graph9_edge_properties",
		"graph9_edges",
		"graph9_node_properties",
		"graph9_nodes",
	}, sqliteTables(t, st.DB()))
	_, err = a.Catalog().Entity(testutil.SocialAllocation)
	assert.NoError(t, err)
}

func TestActivate_SQLDBIsTransactional(t *testing.T) {
	st := openStore(t)
	a := start(t, Options{DB: st.DB()})
	_, ok := a.db.(Transactor)
	assert.True(t, ok)

	b := start(t, Options{DB: failingExec{}})
	_, ok = b.db.(Transactor)
	assert.False(t, ok)
}

func TestPlace_Errors(t *testing.T) {
	a := start(t, Options{})

	_, err := a.Place(context.Background(), testutil.Snapshot(), 42)
	assert.True(t, catalog.IsNotFound(err))
}

func TestAddColumn(t *testing.T) {
	st := openStore(t)
	a := start(t, Options{Store: st, DB: st.DB()})
	placeAll(t, a)

	col, err := a.AddColumn(context.Background(), testutil.EmpsAllocation, 4,
		ir.LogicalColumn{ID: 104, EntityID: 10, Name: "bonus", Type: ir.TypeInteger, Nullable: true})
	require.NoError(t, err)
	assert.Equal(t, "col104", col.Name)

	assert.Equal(t, []string{"col101", "col102", "col103", "col104"}, sqliteColumns(t, st.DB(), "tab5"))
	table, err := a.Catalog().GetTable(testutil.EmpsAllocation)
	require.NoError(t, err)
	assert.Equal(t, []string{"col101", "col102", "col103", "col104"}, table.ColumnNames())

	_, err = a.AddColumn(context.Background(), 404, 1, ir.LogicalColumn{ID: 105, Type: ir.TypeText})
	assert.True(t, catalog.IsNotFound(err))
}

func TestUpdateColumnType(t *testing.T) {
	st := openStore(t)
	a := start(t, Options{DB: st.DB()})
	placeAll(t, a)

	salary := ir.LogicalColumn{ID: 103, EntityID: 10, Name: "salary", Position: 3, Type: ir.TypeBigint, Nullable: true}
	col, err := a.UpdateColumnType(context.Background(), testutil.EmpsAllocation, salary)
	require.NoError(t, err)
	assert.Equal(t, typesys.KindBigint, col.Type.Kind())

	salary.Type = ir.TypeVarchar
	salary.Length = 10
	_, err = a.UpdateColumnType(context.Background(), testutil.EmpsAllocation, salary)
	require.Error(t, err)
	assert.True(t, catalog.IsUnsupported(err))

	kept, err := a.Catalog().GetColumn(testutil.EmpsAllocation, 103)
	require.NoError(t, err)
	assert.Equal(t, typesys.KindBigint, kept.Type.Kind(), "rejected change should be rolled back")
}

func TestDrop(t *testing.T) {
	st := openStore(t)
	a := start(t, Options{DB: st.DB()})
	placeAll(t, a)

	require.NoError(t, a.Drop(context.Background(), testutil.SocialAllocation))
	assert.Equal(t, []string{"coll7", "tab5"}, sqliteTables(t, st.DB()))

	_, err := a.Catalog().Entity(testutil.SocialAllocation)
	assert.True(t, catalog.IsNotFound(err))

	err = a.Drop(context.Background(), testutil.SocialAllocation)
	assert.True(t, catalog.IsNotFound(err))
}

func TestSubmit_SerializesConcurrentColumnAdds(t *testing.T) {
	a := start(t, Options{})
	placeAll(t, a)

	const writers = 32
	var wg sync.WaitGroup
	errs := make(chan error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := int64(200 + i)
			_, err := a.AddColumn(context.Background(), testutil.EmpsAllocation, 4+i,
				ir.LogicalColumn{ID: id, EntityID: 10, Name: fmt.Sprintf("extra%d", i), Type: ir.TypeText, Nullable: true})
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	table, err := a.Catalog().GetTable(testutil.EmpsAllocation)
	require.NoError(t, err)
	assert.Len(t, table.Columns, 3+writers, "no column addition may be lost")
}

func TestSubmit_AfterDeactivate(t *testing.T) {
	a, err := Activate(context.Background(), Options{AdapterID: 1})
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- a.Run(context.Background()) }()
	require.NoError(t, a.Deactivate(context.Background()))
	require.NoError(t, <-done)

	err = a.Submit(context.Background(), func(context.Context, *catalog.StoreCatalog) error { return nil })
	assert.ErrorIs(t, err, ErrStopped)
	assert.Error(t, a.Run(context.Background()), "loop runs once per activation")
}

func TestSubmit_ContextCancelled(t *testing.T) {
	a, err := Activate(context.Background(), Options{AdapterID: 1})
	require.NoError(t, err)
	defer a.Deactivate(context.Background())

	// No loop is running, so the request waits until its context ends.
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err = a.Submit(ctx, func(context.Context, *catalog.StoreCatalog) error { return nil })
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRun_ContextCancel(t *testing.T) {
	a, err := Activate(context.Background(), Options{AdapterID: 1})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)

	err = a.Submit(context.Background(), func(context.Context, *catalog.StoreCatalog) error { return nil })
	assert.ErrorIs(t, err, ErrStopped)
}

func TestDeactivate_PersistsAndRestores(t *testing.T) {
	ctx := context.Background()
	st := openStore(t)

	first, err := Activate(ctx, Options{AdapterID: testutil.AdapterID, Store: st, DB: st.DB()})
	require.NoError(t, err)
	go first.Run(ctx)
	placeAll(t, first)
	coll := testutil.Entity(t, first.Catalog(), testutil.OrdersAllocation).(*catalog.PhysicalCollection)
	coll.Type.Field("customer", true, false)
	want, err := first.Catalog().Snapshot().Digest()
	require.NoError(t, err)
	require.NoError(t, first.Deactivate(ctx))

	info, found, err := st.Info(ctx, testutil.AdapterID)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, int64(1), info.Generation)
	assert.Equal(t, want, info.Digest)

	second := start(t, Options{Store: st, DB: st.DB()})
	got, err := second.Catalog().Snapshot().Digest()
	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.Len(t, second.Catalog().Tables(), 6)
	restored := testutil.Entity(t, second.Catalog(), testutil.OrdersAllocation).(*catalog.PhysicalCollection)
	assert.Equal(t, coll.Type.Digest(), restored.Type.Digest())

	saved, err := second.Persist(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), saved.Generation)
	assert.Equal(t, info.Digest, saved.Digest)
}

func TestNativeScanBuilders(t *testing.T) {
	a := start(t, Options{Native: []ir.DataModel{ir.ModelGraph, ir.ModelDocument}})
	placeAll(t, a)

	scan, err := a.Catalog().Scan(testutil.SocialAllocation)
	require.NoError(t, err)
	assert.IsType(t, &algebra.GraphScan{}, scan)

	scan, err = a.Catalog().Scan(testutil.OrdersAllocation)
	require.NoError(t, err)
	assert.IsType(t, &algebra.DocScan{}, scan)

	scan, err = a.Catalog().Scan(testutil.EmpsAllocation)
	require.NoError(t, err)
	assert.IsType(t, &algebra.RelScan{}, scan)
}

func TestPersist_WithoutStore(t *testing.T) {
	a := start(t, Options{})
	_, err := a.Persist(context.Background())
	assert.Error(t, err)
}
