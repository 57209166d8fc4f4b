// Package schemaspec compiles CUE schema declarations into ir snapshots.
//
// A schema declares namespaces with their entities and columns, plus a list
// of allocations binding entities to adapters:
//
//	namespace: public: {
//		id:    1
//		model: "relational"
//		entity: emps: {
//			id: 10
//			column: {
//				id:     {id: 101, type: "BIGINT"}
//				name:   {id: 102, type: "VARCHAR", length: 64}
//				salary: {id: 103, type: "INTEGER", nullable: true}
//			}
//		}
//	}
//
//	allocation: [
//		{id: 5, entity: "public.emps", adapter: 1},
//	]
//
// Entities take the model of their namespace unless they name one. Column
// positions follow declaration order unless given. A relational allocation
// places every column of its entity unless it lists column names.
// Graph allocations may carry substitutes, the ids of the four tables a
// graph is re-encoded onto.
//
// Floats are rejected, ids are integers.
package schemaspec
