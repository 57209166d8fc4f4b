// Package transform rewrites document and graph algebra into relational
// algebra over the substitute tables a catalog registers for them.
//
// A collection is one table of (_id, _data) rows where _data holds the
// encoded document. A graph is four tables: nodes, node properties, edges
// and edge properties; property values are stored as canonical JSON text.
package transform
