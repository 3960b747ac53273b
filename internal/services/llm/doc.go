// Package llm provides an OpenRouter chat client used to name documents.
//
// The client sends an excerpt of a document's text with a structured prompt
// requesting JSON output. The response carries the proposed filename together
// with the title, author, publication date, summary, and topics the model
// inferred, which the rename pipeline records for sidecar generation.
//
// # Entry Points
//
// NewClient: construct client from Config.
// Client.CompleteJSON: send system/user prompts, receive JSON response.
// Client.SuggestFilename: filename proposal for one document.
// Client.HealthCheck: verify API key and model availability.
//
// # Retry Behaviour
//
// The client retries on HTTP 408/429/5xx errors, empty completions, and
// network timeouts with exponential backoff (base 1s, max 10s, 3 attempts by
// default). Context cancellation aborts retries immediately.
package llm
