// Package agent contains ready-made core.Analyzer implementations.
//
//  1. ModelAgent asks a language model and hands its text to the confidence
//     engine
//  2. Ensemble runs several analyzers concurrently and aggregates their
//     confidences
//  3. Fallback tries analyzers in order until one is confident enough
//
// All of them are plain values implementing core.Analyzer, so they compose:
// an Ensemble member may itself be a Fallback.
package agent
