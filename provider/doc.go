// Package provider defines the normalized completion data model and the
// Adapter capability surface that every LLM backend implements.
//
// The rest of the module (relay, resilience, cache) depends only on the
// types in this package, never on a concrete backend. Two reference
// adapters are included: an OpenAI-compatible backend authenticated with
// an API key, and a local Ollama backend that needs no credentials.
package provider
