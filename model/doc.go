// Package model defines the provider-agnostic abstraction used by LLM-backed
// analyzers.
//
// Providers (OpenAI, Anthropic) implement Model so the agent package stays
// decoupled from vendor SDKs. Generation is streamed over channels; Collect
// drains a stream into the final response for callers that only need the
// complete text.
package model
