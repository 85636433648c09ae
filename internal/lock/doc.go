// Package lock provides the per-user mutual exclusion that keeps at most one
// evaluation in flight for a user.
//
// A Guard waits a short jittered delay, then makes a single atomic
// set-if-absent-with-TTL attempt against a Backend. It never retries: a
// held key yields a Conflict result and the caller arranges redelivery.
// The delay grows with each acquisition made by the process and wraps
// after a fixed number of steps, which spreads out a burst of events for
// the same user.
//
// Backends:
//   - SQLBackend: processor_locks table in the system-of-record database
//   - RedisBackend: SET NX PX plus a compare-and-delete script
//   - FirestoreBackend: one document per key, written in a transaction
//   - MemoryBackend: single process, for tests and local runs
//
// Leases carry an owner token. Release only removes a lease its owner still
// holds, so a holder that outlived its TTL cannot drop a successor's lock.
package lock
