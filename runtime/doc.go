// Package runtime hosts a single analysis agent.
//
// A Runtime binds a core.Analyzer to the HTTP service contract, normalizes
// every raw hook result into a core.Result with a bounded confidence, and
// keeps the agent registered with a registry for as long as it serves.
//
// Typical usage:
//
//	rt := runtime.New(desc, analyzer,
//	    runtime.WithRegistryEndpoint("registry:50051"),
//	    runtime.WithTransforms(runtime.WithReasoning("")),
//	)
//
//	port, err := rt.Start(8080, 10)
//	...
//	defer rt.Shutdown(30 * time.Second)
//
// Request pipeline (in order):
//  1. task check and validators (ValidationError)
//  2. admission policy (ValidationError)
//  3. result cache lookup
//  4. analyzer hook on the bounded worker pool, panics recovered (ExecutionError)
//  5. confidence normalization
//  6. result transforms, in the order given
//  7. confidence clamp, request metadata, cache fill
//
// Registry failures never reach this pipeline; they only affect registry
// visibility and are reported through logs, metrics and RegistryState.
package runtime
