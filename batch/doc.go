// Package batch groups logically related pending requests by category and
// releases them together once a size or time threshold is reached. It
// coalesces timing, not payloads: every enqueued item is still handled
// individually, just later and together. Complementary to caching, for
// callers that want to reduce upstream call volume further.
package batch
