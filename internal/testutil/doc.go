// Package testutil contains helpers used across tests to reduce boilerplate
// when constructing descriptors and requests, plus a fault-injecting
// registry fake for exercising the lease state machine. These helpers are
// not intended for production usage.
package testutil
