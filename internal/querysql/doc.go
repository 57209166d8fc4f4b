// Package querysql compiles relational algebra trees to parameterized
// SQLite SQL.
//
// Rules every statement follows:
//   - Values are always bound as parameters, never interpolated.
//   - Every SELECT carries an ORDER BY with COLLATE BINARY. Without an
//     explicit sort all output columns order the result; with one, the
//     remaining output columns break ties.
//   - Identifiers are double-quoted.
//
// Only relational nodes compile. Document and graph subtrees must be
// lowered with package transform first.
package querysql
