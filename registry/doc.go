// Package registry keeps a central registry's view of a live agent accurate.
//
// Client drives the lease lifecycle:
//
//	Unregistered -> Registering -> Active <-> Renewing
//	                     ^                       |
//	                     +------ Degraded <------+
//	Active|Renewing|Degraded|Registering -> Unregistering -> Terminated
//
// Renewals are strictly sequential and run on a single background goroutine
// created by Start and joined by Stop. Registry failures never escape the
// Client: they are logged and reflected in its State.
//
// Registry implementations talk to the actual registry service. HTTPRegistry
// speaks a small JSON protocol and InMemoryRegistry serves tests and
// single-process deployments.
package registry
