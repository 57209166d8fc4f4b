package adapter

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/roach88/polycat/internal/catalog"
	"github.com/roach88/polycat/internal/ir"
	"github.com/roach88/polycat/internal/store"
)

// ErrStopped is returned by Submit once the adapter no longer accepts
// mutations.
var ErrStopped = errors.New("adapter stopped")

// Executor runs physical DDL. *sql.DB and *sql.Tx implement it.
type Executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Tx holds the DDL of one mutation until the catalog change is complete.
type Tx interface {
	Executor
	Commit() error
	Rollback() error
}

// Transactor is an Executor that groups the DDL of each mutation in a
// transaction, so a failed mutation leaves no tables behind. A *sql.DB passed
// as Options.DB is used as one.
type Transactor interface {
	Executor
	Begin(ctx context.Context) (Tx, error)
}

type sqlTransactor struct {
	db *sql.DB
}

func (s sqlTransactor) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return s.db.ExecContext(ctx, query, args...)
}

func (s sqlTransactor) Begin(ctx context.Context) (Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return tx, nil
}

func transactional(db Executor) Executor {
	if d, ok := db.(*sql.DB); ok && d != nil {
		return sqlTransactor{db: d}
	}
	return db
}

// Options configures an activation.
type Options struct {
	// AdapterID identifies the adapter. Required.
	AdapterID int64

	// Store persists the catalog across activations. Optional.
	Store *store.Store

	// DB receives the DDL of placements and column changes. Optional; without
	// it only the catalog changes.
	DB Executor

	// Native lists the models the adapter stores natively. Their scans use
	// the native builders instead of the relational re-encoding.
	Native []ir.DataModel

	// ReadOnly activates the catalog without modification capability. A
	// read-only activation is not persisted on deactivation.
	ReadOnly bool

	Logger *zap.SugaredLogger
	Tokens TokenGenerator
}

// Adapter is one activation of a storage adapter.
//
// Thread-safety model:
//   - Submit and the mutation helpers: safe from any goroutine
//   - Run: must be called from exactly one goroutine
//   - Catalog: safe from any goroutine; reads see each mutation whole
type Adapter struct {
	id       int64
	token    string
	catalog  *catalog.StoreCatalog
	store    *store.Store
	db       Executor
	readOnly bool
	logger   *zap.SugaredLogger

	queue   *requestQueue
	started atomic.Bool
	stopped chan struct{}
}

// Activate constructs the adapter's catalog, restoring the persisted
// snapshot when the store holds one.
func Activate(ctx context.Context, opts Options) (*Adapter, error) {
	if opts.AdapterID <= 0 {
		return nil, fmt.Errorf("activate: adapter id must be positive, got %d", opts.AdapterID)
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	tokens := opts.Tokens
	if tokens == nil {
		tokens = UUIDv7Generator{}
	}

	catOpts := []catalog.Option{catalog.WithLogger(logger)}
	if opts.ReadOnly {
		catOpts = append(catOpts, catalog.WithReadOnly())
	}
	for _, m := range opts.Native {
		switch m {
		case ir.ModelDocument:
			catOpts = append(catOpts, catalog.WithScanBuilder(m, catalog.NativeDocumentScan))
		case ir.ModelGraph:
			catOpts = append(catOpts, catalog.WithScanBuilder(m, catalog.NativeGraphScan))
		case ir.ModelRelational:
		default:
			return nil, fmt.Errorf("activate: unknown native model %q", m)
		}
	}

	var (
		cat      *catalog.StoreCatalog
		restored bool
	)
	if opts.Store != nil {
		snap, found, err := opts.Store.LoadSnapshot(ctx, opts.AdapterID)
		if err != nil {
			return nil, fmt.Errorf("activate adapter %d: %w", opts.AdapterID, err)
		}
		if found {
			cat, err = catalog.FromSnapshot(snap, catOpts...)
			if err != nil {
				return nil, fmt.Errorf("activate adapter %d: %w", opts.AdapterID, err)
			}
			restored = true
		}
	}
	if cat == nil {
		cat = catalog.New(opts.AdapterID, catOpts...)
	}

	a := &Adapter{
		id:       opts.AdapterID,
		token:    tokens.Generate(),
		catalog:  cat,
		store:    opts.Store,
		db:       transactional(opts.DB),
		readOnly: opts.ReadOnly,
		logger:   logger,
		queue:    newRequestQueue(),
		stopped:  make(chan struct{}),
	}
	logger.Infow("adapter activated",
		"adapter", a.id,
		"token", a.token,
		"restored", restored,
		"tables", len(cat.Tables()),
	)
	return a, nil
}

// ID returns the adapter id.
func (a *Adapter) ID() int64 { return a.id }

// Token returns the activation token.
func (a *Adapter) Token() string { return a.token }

// Catalog returns the adapter's catalog for reads and query compilation.
// Structural changes must go through Submit.
func (a *Adapter) Catalog() *catalog.StoreCatalog { return a.catalog }

// Run applies submitted mutations in FIFO order until the context is
// cancelled or the adapter is deactivated. Requests still queued when Run
// returns fail with ErrStopped. Run may be called once per activation.
//
// CRITICAL: Must be called from exactly ONE goroutine.
func (a *Adapter) Run(ctx context.Context) error {
	if !a.started.CompareAndSwap(false, true) {
		return errors.New("adapter loop already started")
	}
	defer a.shutdown()
	a.logger.Debugw("mutation loop starting", "adapter", a.id)

	for {
		if r, ok := a.queue.TryDequeue(); ok {
			a.apply(r)
			continue
		}

		select {
		case <-ctx.Done():
			a.logger.Debugw("mutation loop stopping: context cancelled", "adapter", a.id)
			return ctx.Err()
		case <-a.queue.Wait():
			// The signal channel closes with the queue.
			if a.queue.Drained() {
				a.logger.Debugw("mutation loop stopping: queue closed", "adapter", a.id)
				return nil
			}
		}
	}
}

func (a *Adapter) apply(r request) {
	if err := r.ctx.Err(); err != nil {
		r.done <- err
		return
	}
	err := r.mutation(r.ctx, a.catalog)
	if err != nil {
		a.logger.Warnw("mutation failed", "adapter", a.id, "error", err)
	}
	r.done <- err
}

func (a *Adapter) shutdown() {
	a.queue.Close()
	for {
		r, ok := a.queue.TryDequeue()
		if !ok {
			break
		}
		r.done <- ErrStopped
	}
	close(a.stopped)
}

// Submit queues a mutation and waits for its result.
func (a *Adapter) Submit(ctx context.Context, m Mutation) error {
	r := request{ctx: ctx, mutation: m, done: make(chan error, 1)}
	if !a.queue.Enqueue(r) {
		return ErrStopped
	}
	select {
	case err := <-r.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-a.stopped:
		// Run may have answered just before closing.
		select {
		case err := <-r.done:
			return err
		default:
			return ErrStopped
		}
	}
}

// Persist saves the current catalog snapshot. The snapshot is taken inside
// the mutation loop so it never splits a mutation.
func (a *Adapter) Persist(ctx context.Context) (store.SnapshotInfo, error) {
	if a.store == nil {
		return store.SnapshotInfo{}, errors.New("persist: adapter has no store")
	}
	var snap catalog.Snapshot
	err := a.Submit(ctx, func(_ context.Context, c *catalog.StoreCatalog) error {
		snap = c.Snapshot()
		return nil
	})
	if err != nil {
		return store.SnapshotInfo{}, err
	}
	return a.save(ctx, snap)
}

// Deactivate stops the mutation loop, waits for it to finish and persists
// the catalog snapshot when the adapter has a store and is not read-only.
func (a *Adapter) Deactivate(ctx context.Context) error {
	a.queue.Close()
	if a.started.CompareAndSwap(false, true) {
		// Run never started; answer anything queued.
		a.shutdown()
	} else {
		select {
		case <-a.stopped:
		case <-ctx.Done():
			return fmt.Errorf("deactivate adapter %d: %w", a.id, ctx.Err())
		}
	}
	if a.store == nil || a.readOnly {
		a.logger.Infow("adapter deactivated", "adapter", a.id, "token", a.token)
		return nil
	}
	info, err := a.save(ctx, a.catalog.Snapshot())
	if err != nil {
		return fmt.Errorf("deactivate adapter %d: %w", a.id, err)
	}
	a.logger.Infow("adapter deactivated",
		"adapter", a.id,
		"token", a.token,
		"generation", info.Generation,
		"digest", info.Digest,
	)
	return nil
}

func (a *Adapter) save(ctx context.Context, snap catalog.Snapshot) (store.SnapshotInfo, error) {
	info, err := a.store.SaveSnapshot(ctx, snap)
	if err != nil {
		return store.SnapshotInfo{}, err
	}
	a.logger.Debugw("catalog persisted", "adapter", a.id, "generation", info.Generation)
	return info, nil
}
