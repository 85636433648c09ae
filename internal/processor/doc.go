// Package processor runs one workout event end to end.
//
// A run validates the event, takes the per-user lock, loads the period and
// workout, evaluates every requested achievement the user does not yet hold
// and commits unlocks, progress and the workout's processed marker in one
// transaction. Committed events are then published. Finally the platinum
// check recounts the user's unlocks and awards the platinum achievement
// once every active achievement of the catalog is held.
//
// Runs are idempotent: a workout that already carries the processed marker
// skips evaluation, and unique constraints in the store suppress duplicate
// unlocks and events.
package processor
