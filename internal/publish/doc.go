// Package publish delivers committed achievement events to downstream
// consumers.
//
// Events are written to the store's outbox inside the processing commit.
// The processor hands them to a Publisher right after the commit, and the
// Relay republishes whatever is still pending (for example after a crash
// between commit and publish). Consumers must tolerate duplicates; every
// event carries a stable content-addressed id for deduplication.
package publish
