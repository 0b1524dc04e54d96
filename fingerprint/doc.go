// Package fingerprint derives stable digests from structured payloads.
//
// It canonicalizes nested maps and lists (sorted map keys at every level,
// stable textual forms for decimals, UUIDs, and timestamps) and hashes the
// result into a 128-bit non-cryptographic digest used for cache keys and
// content-drift detection.
package fingerprint
