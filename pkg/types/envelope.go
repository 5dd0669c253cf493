// Package types holds the JSON envelopes every wallet endpoint answers with.
package types

// SuccessEnvelope wraps a 2xx payload as {"data": ...}.
type SuccessEnvelope struct {
	Data any `json:"data"`
}

// APIError is the body of every non-2xx answer. Retryable tells clients a
// repeat with the same Idempotency-Key is safe and may succeed.
type APIError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable,omitempty"`
	Details   any    `json:"details,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}
