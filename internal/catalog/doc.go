// Package catalog loads achievement catalogs written in CUE.
//
// A catalog declares periods and achievement definitions:
//
//	periods: "2024": {
//		id:    1
//		start: "2024-01-01T00:00:00Z"
//		end:   "2024-12-31T23:59:59Z"
//	}
//
//	achievements: marathon: {
//		id:       10
//		name:     "Marathon month"
//		period:   "sameMonth"
//		unit:     "km"
//		needed:   42.195
//		progress: true
//		workoutTypes: {condition: "anyOf", ids: [1]}
//	}
//
// Files are unified with an embedded schema before decoding, so typos and
// unknown fields are reported with their source position.
package catalog
