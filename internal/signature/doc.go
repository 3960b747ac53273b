// Package signature computes the fixed-width identity tokens shelver uses to
// detect duplicates.
//
// Content tokens are the first 24 hex characters (96 bits) of the SHA-256 of a
// file's bytes. Name tokens are a 96-bit similarity hash of a filename stem so
// that near-identical names produce tokens a small Hamming distance apart.
// Both kinds render as 24 lower-case hex characters.
//
// Empty or unreadable input is an error wrapping services.ErrSignature. A zero
// token is never substituted: it would group unrelated files together.
package signature
