// Package document encodes document payloads for the _data column of a
// re-encoded collection and generates document identifiers.
//
// Two codecs exist: "json" stores canonical JSON text (queryable with
// SQLite json_extract), "bson" stores BSON bytes in key order.
package document
