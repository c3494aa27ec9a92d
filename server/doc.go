// Package server exposes an agent runtime over HTTP.
//
// Routes:
//
//	POST /v1/execute               analysis request -> result
//	GET  /v1/capabilities          descriptor snapshot
//	GET  /v1/health                health probe (503 when unhealthy)
//	GET  /v1/stream                websocket, one result per request message
//	POST /v1/feedback              outcome for calibration
//	GET  /metrics                  prometheus exposition
//	POST /a2a                      Agent2Agent JSON-RPC
//	GET  /.well-known/agent.json   Agent2Agent card
//
// Failures are rendered as {"error": {"code": ..., "message": ...}}.
package server
