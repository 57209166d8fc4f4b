// Package typesys provides the structural types used by the algebra layer.
//
// Every operator row type implements Type. Relational rows use Record over
// Scalar fields; documents use DocumentType, which grows fields on demand
// because document schemas are read-permissive.
//
// Type identity is content-based: two types are equal iff their digests
// match. Plan caches keyed by type must use Digest (or ir.TypeDigestHash of
// it), never pointer identity.
//
// Concurrency: Scalar and Record are immutable. DocumentType.Field may
// append to the receiver and must run under the caller's compilation lock.
package typesys
