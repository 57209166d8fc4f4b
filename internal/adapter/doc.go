// Package adapter owns the activation lifecycle of one storage adapter.
//
// Activate restores the adapter's catalog from the snapshot store (or
// starts an empty one) and stamps the activation with a token. Every
// structural change to the catalog then goes through a single-writer loop:
// callers Submit mutations from any goroutine, Run applies them one at a
// time in FIFO order. Compound read-modify-write operations such as
// AddColumn and UpdateColumnType are therefore never interleaved for the
// same adapter.
//
// When the adapter has a physical database, each mutation also runs its
// DDL there. A mutation whose DDL fails is rolled back in the catalog, so
// the catalog and the database describe the same tables.
//
// Deactivate stops the loop and persists the catalog snapshot.
package adapter
