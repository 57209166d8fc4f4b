// Package harness runs catalog scenarios end to end.
//
// A scenario compiles a CUE schema, activates an adapter over an in-memory
// SQLite database and applies a list of steps through the adapter's
// mutation loop. Writes are lowered to relational algebra, compiled to SQL
// and executed, so assertions see the physical tables as they really are.
//
// # Scenario Format
//
// Scenarios are YAML files:
//
//	name: scenario_name
//	description: "What this scenario validates"
//	schema: ../schema.cue        # relative to the scenario file
//	adapter: 1                   # optional, default 1
//	codec: json                  # optional document codec
//	steps:
//	  - op: place
//	    allocation: 5
//	  - op: insert
//	    allocation: 7
//	    documents:
//	      - {_id: o1, total: 12}
//	  - op: drop
//	    allocation: 42
//	    expect:
//	      error: NOT_FOUND
//	assertions:
//	  - type: tables
//	    names: [tab5, coll7]
//	  - type: row_count
//	    table: coll7
//	    count: 1
//
// # Step Operations
//
//   - place, drop: realize or remove an allocation
//   - add_column, update_column_type: change a placed table's columns
//   - insert, update, delete: write documents (document allocations) or
//     nodes and edges (graph allocations) through the lowering
//   - lower: lower the native scan of an allocation and compile it
//   - persist: save the catalog snapshot
//
// A step without expect must succeed. expect.error names the catalog
// error code the step must fail with.
//
// # Assertion Types
//
//   - tables: the catalog's physical table names, in id order
//   - columns: the column names of one physical table
//   - row_count: rows stored in one physical table
//   - statements: statement count and SQL fragments of a lower step
//
// # Deterministic Testing
//
// Activation tokens come from testutil.FixedTokenGenerator and generated
// document and graph ids from a testutil.Sequence, so traces are identical
// across runs and can be compared against golden files:
//
//	go test ./internal/harness -update
package harness
