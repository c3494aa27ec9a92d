package core

import "context"

// Analyzer is the capability every hosted agent implements.
//
// Analyze receives the task label and the decoded, optional payload and
// returns a raw result. The raw result may be:
//   - a Scored value carrying an explicit confidence
//   - a *Result (or Result) that is passed through after clamping
//   - any other value, in which case the runtime derives a confidence from it
//
// Implementations must respect context cancellation. A returned error (or a
// panic) is surfaced to the caller as an ExecutionError and never affects the
// runtime's registry lease.
type Analyzer interface {
	Analyze(ctx context.Context, task string, data any) (any, error)
}

// AnalyzerFunc adapts an ordinary function to the Analyzer interface.
type AnalyzerFunc func(ctx context.Context, task string, data any) (any, error)

// Analyze calls f(ctx, task, data).
func (f AnalyzerFunc) Analyze(ctx context.Context, task string, data any) (any, error) {
	return f(ctx, task, data)
}

// HealthChecker is optionally implemented by an Analyzer that wants to report
// its own health. Analyzers without it are always reported healthy.
type HealthChecker interface {
	CheckHealth(ctx context.Context) HealthStatus
}
