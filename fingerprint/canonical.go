package fingerprint

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MaxDepth is the maximum nesting depth Canonical will follow.
const MaxDepth = 64

// Canonical produces a deterministic serialization of v.
// Map keys are sorted at every nesting level, list order is preserved, and
// non-native scalar types (arbitrary-precision decimals, UUIDs, timestamps)
// are rendered in a stable textual form. Two semantically identical payloads
// always canonicalize to the same bytes regardless of map iteration order.
func Canonical(v any) ([]byte, error) {
	return canonicalize(v, 0)
}

func canonicalize(v any, depth int) ([]byte, error) {
	if depth > MaxDepth {
		return nil, ErrTooDeep
	}
	if v == nil {
		return []byte("null"), nil
	}

	switch val := v.(type) {
	case map[string]any:
		return canonicalizeMap(val, depth)
	case []any:
		return canonicalizeSlice(val, depth)
	case decimal.Decimal:
		// String() renders the exact value; no float round-trip.
		return json.Marshal(val.String())
	case *decimal.Decimal:
		if val == nil {
			return []byte("null"), nil
		}
		return json.Marshal(val.String())
	case uuid.UUID:
		return json.Marshal(val.String())
	case time.Time:
		return json.Marshal(val.UTC().Format(time.RFC3339Nano))
	case time.Duration:
		return json.Marshal(val.String())
	case json.Number:
		return json.Marshal(val.String())
	default:
		// encoding/json sorts keys of typed maps and is deterministic for
		// structs and native scalars.
		b, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnserializable, err)
		}
		return b, nil
	}
}

func canonicalizeMap(m map[string]any, depth int) ([]byte, error) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	result := []byte("{")
	for i, k := range keys {
		if i > 0 {
			result = append(result, ',')
		}

		keyBytes, err := json.Marshal(k)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnserializable, err)
		}
		result = append(result, keyBytes...)
		result = append(result, ':')

		valBytes, err := canonicalize(m[k], depth+1)
		if err != nil {
			return nil, err
		}
		result = append(result, valBytes...)
	}
	result = append(result, '}')

	return result, nil
}

func canonicalizeSlice(s []any, depth int) ([]byte, error) {
	result := []byte("[")
	for i, v := range s {
		if i > 0 {
			result = append(result, ',')
		}

		valBytes, err := canonicalize(v, depth+1)
		if err != nil {
			return nil, err
		}
		result = append(result, valBytes...)
	}
	result = append(result, ']')

	return result, nil
}
