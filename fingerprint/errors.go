package fingerprint

import "errors"

// Sentinel errors for canonicalization.
var (
	// ErrUnserializable indicates a value with no defined canonical form
	// (channels, functions, cyclic structures). Callers should treat the
	// payload as uncacheable rather than failing their own operation.
	ErrUnserializable = errors.New("fingerprint: value has no canonical form")

	// ErrTooDeep indicates the payload nests beyond MaxDepth levels.
	ErrTooDeep = errors.New("fingerprint: payload exceeds max nesting depth")
)
