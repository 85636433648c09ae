// Package store provides durable storage for the achievement processor on
// SQLite or PostgreSQL.
//
// The store holds:
//   - Catalog: periods, achievement definitions and their workout types
//   - Workouts: the aggregation source, with a per-workout processed marker
//   - Outcomes: user achievements (unlocks) and progress rows
//   - Outbox: events committed alongside outcomes, published by a relay
//   - Locks: per-user leases for the SQL lock backend
//
// # Critical Patterns
//
// Exactly-once processing:
//   - CommitOutcome claims the workout marker with a conditional UPDATE
//     inside the same transaction that writes outcomes and outbox rows
//   - A partial unique index keeps one active unlock per
//     (user, period, achievement); a duplicate insert drops its event
//   - Outbox event ids are content-addressed, so a redelivered workout
//     cannot enqueue the same event twice
//
// Deterministic results:
//   - Every multi-row query has an ORDER BY
//   - SQLite timestamps are stored as fixed-width UTC text so text and time
//     comparison agree
//
// # Database Configuration
//
// SQLite:
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// PostgreSQL is reached through pgx's database/sql driver; queries are
// written with ? placeholders and rebound per dialect.
package store
