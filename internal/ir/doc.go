// Package ir provides the shared record types of the polystore catalog.
//
// This package contains type definitions plus the canonical encoding used to
// derive digests. All other internal packages import ir; ir imports nothing
// internal, so it stays the foundational layer with no circular dependencies.
//
// Key design constraints:
//   - Records are plain values supplied by the external schema store; the
//     catalog consumes them read-only.
//   - Exactly one DataModel per logical entity and per allocation.
//   - NO float types in values - use int64 for numbers (deterministic digests)
//   - All JSON tags use snake_case
package ir
