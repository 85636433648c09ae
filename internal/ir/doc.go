// Package ir holds the canonical value representation used to derive
// stable identities for published achievement events.
//
// ir imports nothing internal. Values are restricted to strings, integers,
// booleans, arrays and objects so that the same logical event always
// serializes to the same bytes:
//   - no floats (quantities are carried as integers)
//   - no nulls (optional fields are omitted)
//   - timestamps are carried as RFC 3339 UTC strings
package ir
