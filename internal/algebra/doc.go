// Package algebra defines the model-tagged operator trees produced by the
// store catalog and consumed by query compilation.
//
// Every node reports the data model it operates over and a node kind. The
// kind is the only thing a dispatcher needs to route a node to the right
// execution or translation path:
//
//	switch n.Kind() {
//	case algebra.KindGraphSort:
//	    // graph ordering semantics
//	case algebra.KindRelSort:
//	    // relational ordering
//	}
//
// SORTS:
//
// RelSort, DocSort and GraphSort embed the same SortCore (input, collation,
// offset, limit) without adding state. They differ only by Kind and Model.
//
// SEALED INTERFACES:
//
// Node, Expr and Predicate are sealed with marker methods. Nodes are always
// handled by pointer.
//
// Trees are immutable once built; rewrites construct new nodes.
package algebra
