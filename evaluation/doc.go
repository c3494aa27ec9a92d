// Package evaluation records how often an agent's confident answers were
// actually right and derives calibration parameters from that history.
//
// Stats keeps running sums only, so both stores aggregate in O(1) memory per
// agent. Calibration returns the (bias, scale) pair consumed by
// confidence.Calibrate.
package evaluation
