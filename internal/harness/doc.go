// Package harness runs achievement scenarios end to end.
//
// A scenario seeds a CUE catalog into a fresh in-memory store, records
// workouts, replays workout events through a real Processor and asserts on
// the published events and the stored outcome.
//
// # Scenario Format
//
//	name: first_unlock
//	description: "A single run unlocks the distance achievement"
//	catalog: ../../catalog/testdata/catalog.cue
//	workouts:
//	  - {id: 10, user: 7, period: 1, start: "2024-01-02T09:00:00Z", minutes: 40, km: 1.5, type: 1}
//	  - {id: 11, user: 7, period: 1, start: "2024-01-03T09:00:00Z", minutes: 30, km: 1, type: 2, deferred: true}
//	flow:
//	  - workout: 10
//	    achievements: [1, 2]
//	    expect:
//	      status: processed
//	      events: [AchievementCreated, AchievementProgressCreated]
//	  - workout: 11
//	    achievements: [2]
//	    hold_lock: true
//	    expect: {status: conflict}
//	assertions:
//	  - {type: holds, user: 7, period: 1, achievements: [1]}
//	  - {type: progress, user: 7, period: 1, achievement: 2, quantity: 1500}
//
// Deferred workouts are stored right before the first step that names
// them; every other workout is stored before the flow starts.
//
// # Assertion Types
//
//   - event_contains: an event of the given type (and achievement, quantity) was published
//   - event_order: event types first appear in the given order
//   - event_count: exactly N matching events were published
//   - holds: the exact set of achievements a user holds in a period
//   - progress: the stored progress quantity of one achievement
//
// # Deterministic Testing
//
// Run ids come from testutil.SequenceGenerator ("run-1", "run-2", ...),
// wall time from testutil.Clock, and event ids are content hashes, so the
// same scenario always yields the same Snapshot. Golden files hold those
// snapshots.
package harness
