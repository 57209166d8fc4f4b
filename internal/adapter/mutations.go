package adapter

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/polycat/internal/catalog"
	"github.com/roach88/polycat/internal/ir"
	"github.com/roach88/polycat/internal/querysql"
	"github.com/roach88/polycat/internal/typesys"
)

// Place realizes an allocation of snap on this adapter and creates its
// physical tables.
func (a *Adapter) Place(ctx context.Context, snap *ir.Snapshot, allocationID int64) (catalog.PhysicalEntity, error) {
	var placed catalog.PhysicalEntity
	err := a.Submit(ctx, func(ctx context.Context, c *catalog.StoreCatalog) error {
		return a.atomically(ctx, c, func(x Executor) error {
			e, err := c.Place(snap, allocationID)
			if err != nil {
				return err
			}
			for _, t := range e.PhysicalTables() {
				stmt, err := querysql.CreateTable(t.Ref())
				if err != nil {
					return err
				}
				if err := a.exec(ctx, x, stmt); err != nil {
					return fmt.Errorf("place allocation %d: %w", allocationID, err)
				}
			}
			placed = e
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	a.logger.Infow("allocation placed", "adapter", a.id, "allocation", allocationID, "entity", placed.Ref().Name)
	return placed, nil
}

// AddColumn appends a logical column to a placed table.
func (a *Adapter) AddColumn(ctx context.Context, tableID int64, position int, logical ir.LogicalColumn) (catalog.PhysicalColumn, error) {
	var col catalog.PhysicalColumn
	err := a.Submit(ctx, func(ctx context.Context, c *catalog.StoreCatalog) error {
		return a.atomically(ctx, c, func(x Executor) error {
			var err error
			col, err = c.AddColumn(catalog.ColumnName(logical.ID), tableID, a.id, position, logical)
			if err != nil {
				return err
			}
			table, err := c.GetTable(tableID)
			if err != nil {
				return err
			}
			stmt, err := querysql.AddColumn(table.Ref(), typesys.Field{ID: col.ID, Name: col.Name, Type: col.Type})
			if err != nil {
				return err
			}
			return a.exec(ctx, x, stmt)
		})
	})
	return col, err
}

// UpdateColumnType changes the logical type of a placed column. SQLite
// cannot alter a column in place, so with a database the new type must keep
// the column's storage affinity.
func (a *Adapter) UpdateColumnType(ctx context.Context, tableID int64, logical ir.LogicalColumn) (catalog.PhysicalColumn, error) {
	var col catalog.PhysicalColumn
	err := a.Submit(ctx, func(ctx context.Context, c *catalog.StoreCatalog) error {
		return a.atomically(ctx, c, func(x Executor) error {
			old, err := c.GetColumn(tableID, logical.ID)
			if err != nil {
				return err
			}
			col, err = c.UpdateColumnType(tableID, logical)
			if err != nil {
				return err
			}
			if a.db == nil {
				return nil
			}
			before, err := querysql.ColumnType(old.Type)
			if err != nil {
				return err
			}
			after, err := querysql.ColumnType(col.Type)
			if err != nil {
				return err
			}
			if before != after {
				return catalog.NewUnsupportedError("column %q of table %d stored as %s cannot become %s", old.Name, tableID, before, after)
			}
			return nil
		})
	})
	return col, err
}

// Drop removes an allocation and its physical tables.
func (a *Adapter) Drop(ctx context.Context, allocationID int64) error {
	err := a.Submit(ctx, func(ctx context.Context, c *catalog.StoreCatalog) error {
		return a.atomically(ctx, c, func(x Executor) error {
			e, err := c.Entity(allocationID)
			if err != nil {
				return err
			}
			if err := c.DropAllocation(allocationID); err != nil {
				return err
			}
			tables := e.PhysicalTables()
			for i := len(tables) - 1; i >= 0; i-- {
				if err := a.exec(ctx, x, querysql.DropTable(tables[i].Ref())); err != nil {
					return fmt.Errorf("drop allocation %d: %w", allocationID, err)
				}
			}
			return nil
		})
	})
	if err != nil {
		return err
	}
	a.logger.Infow("allocation dropped", "adapter", a.id, "allocation", allocationID)
	return nil
}

// atomically runs fn with the executor for its DDL. When fn fails the DDL
// transaction is rolled back and the catalog restored to its prior state.
// Only valid inside the mutation loop.
func (a *Adapter) atomically(ctx context.Context, c *catalog.StoreCatalog, fn func(x Executor) error) error {
	before := c.Snapshot()
	x, tx, err := a.begin(ctx)
	if err != nil {
		return err
	}
	err = fn(x)
	if err == nil && tx != nil {
		if cerr := tx.Commit(); cerr != nil {
			err = fmt.Errorf("commit ddl: %w", cerr)
		}
	}
	if err == nil {
		return nil
	}
	if tx != nil {
		if rerr := tx.Rollback(); rerr != nil && !errors.Is(rerr, sql.ErrTxDone) {
			err = fmt.Errorf("%w (ddl rollback failed: %v)", err, rerr)
		}
	}
	if rerr := c.Restore(before); rerr != nil {
		return fmt.Errorf("%w (rollback failed: %v)", err, rerr)
	}
	return err
}

// begin opens the DDL transaction of a mutation. Executors that cannot
// group statements run them directly and tx is nil.
func (a *Adapter) begin(ctx context.Context) (x Executor, tx Tx, err error) {
	t, ok := a.db.(Transactor)
	if !ok {
		return a.db, nil, nil
	}
	tx, err = t.Begin(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("begin ddl: %w", err)
	}
	return tx, tx, nil
}

func (a *Adapter) exec(ctx context.Context, x Executor, stmt querysql.Statement) error {
	if x == nil {
		return nil
	}
	a.logger.Debugw("ddl", "adapter", a.id, "sql", stmt.SQL)
	if _, err := x.ExecContext(ctx, stmt.SQL, stmt.Params...); err != nil {
		return fmt.Errorf("exec %q: %w", stmt.SQL, err)
	}
	return nil
}
