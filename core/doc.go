// Package core provides the foundational domain types and interfaces shared by
// every agentrt component. It defines:
//
//   - Analyzer (the single capability an agent implements)
//   - Descriptor (immutable identity and capability record of an agent)
//   - Request / Result (the uniform analysis contract)
//   - HealthStatus (the health probe contract)
//   - Typed errors for validation, execution, registration, renewal and shutdown
//
// The package intentionally keeps transport, registry and confidence
// concerns out of scope, exposing small types that the runtime, server and
// registry packages build upon.
package core
