// Package llm provides a chat completion client for OpenAI-compatible
// endpoints (OpenRouter, OpenAI, a local Ollama).
//
// The client asks for JSON-only responses and decodes them with DecodeJSON,
// which tolerates code fences and prose around the object. Requests that fail
// with HTTP 408/429/5xx, return empty content, or time out at the network
// level are retried with exponential backoff. Context cancellation aborts
// retries immediately.
//
// The API key is optional: local endpoints are called without an
// Authorization header.
package llm
