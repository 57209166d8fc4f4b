// Package catalog implements the per-adapter store catalog: the registry of
// physical structures (namespaces, tables, columns) backing each allocation,
// and the producer of scan trees over them.
//
// RE-ENCODING:
//
// A relational-only adapter stores every model as tables:
//   - relational allocation: one table with the placed columns
//   - document allocation: one table with columns _id and _data
//   - graph allocation: four tables (nodes, node_properties, edges,
//     edge_properties)
//
// The relation entry of an allocation lists its table ids in that order.
//
// CONCURRENCY:
//
// Every single read or write of the four maps is atomic. AddColumn and
// UpdateColumnType read a table, derive a new one and write it back in two
// separate steps; concurrent calls on the same table can lose an update.
// Callers serialize structural mutations per table (see package adapter).
//
// Tables are immutable by replacement. A *PhysicalTable obtained before a
// change keeps describing the old column set.
package catalog
