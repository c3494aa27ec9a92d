// Package a2a exposes an agent runtime over the Agent2Agent protocol.
//
// Incoming messages are mapped to a core.Request (task label from the
// "task" metadata key, payload from the first data part or the text parts)
// and results are answered with a data part carrying value, confidence,
// reasoning and uncertainties.
package a2a
