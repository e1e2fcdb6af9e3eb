package domain

import "time"

// SignatureWindow is how far a signature's embedded timestamp may drift from
// the server clock before the signature is rejected as expired. It bounds
// replay of captured signatures without tracking nonces.
const SignatureWindow = 10 * time.Minute

// TimestampLayout is the wire form for signature timestamps: ISO-8601 UTC
// with millisecond precision, matching Date.toISOString output.
const TimestampLayout = "2006-01-02T15:04:05.000Z"

// Signature is the ephemeral authentication artifact attached to a single
// mutation call. It is never persisted and never reused: the signed message
// must embed both the market description and the timestamp below, and the
// timestamp must fall inside SignatureWindow.
type Signature struct {
	Message   string    `json:"message"`
	Signature string    `json:"signature"` // 65-byte hex signature, 0x-prefixed
	Timestamp time.Time `json:"timestamp"`
}
