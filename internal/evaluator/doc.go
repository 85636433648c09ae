// Package evaluator runs compiled achievement aggregates against the workout
// store and applies each definition's completeness and progress functions.
//
// In batch mode the aggregates of every candidate are unioned into one
// statement, tagged by achievement id, and the result is partitioned back
// per candidate. Otherwise one statement runs per candidate. Both modes
// yield the same outcomes.
package evaluator
