// Package confidence turns heterogeneous analysis results into a single,
// bounded reliability score.
//
// The Engine extracts a confidence from a raw result using one of four
// strategies (explicit, pattern, keyword, hybrid). The package-level helpers
// Aggregate, ConsistencyConfidence and Calibrate combine and adjust scores.
// Every exported function is pure and safe for concurrent use.
package confidence
