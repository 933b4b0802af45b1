// Package store provides durable SQLite storage for the local roadmap
// catalog: the denormalized feature table, its association and
// availability relations, the singleton sync checkpoint, the persisted
// conditional-fetch token, and an FTS5 full-text index.
//
// Storage guarantees:
//   - WAL mode: readers are never blocked by the sync writer's transaction
//   - busy_timeout bounds lock waits instead of blocking indefinitely
//   - foreign keys enforced, associations cascade on feature delete
//   - the FTS index is trigger-maintained inside the same transaction as
//     every feature mutation, so it can never diverge from the table
//
// Sync batches commit atomically via ApplyBatch; a crash mid-batch leaves
// the store at its pre-sync state on reopen.
package store
