package fingerprint

import (
	"encoding/binary"
	"encoding/hex"

	"github.com/cespare/xxhash/v2"
)

// loSeed seeds the second xxhash pass so the two halves of a Digest are
// independent. Any fixed odd constant works; this one is xxhash prime64_1.
const loSeed = 0x9E3779B185EBCA87

// Digest is a 128-bit non-cryptographic digest of a canonical payload.
// It is wide enough that accidental collisions are not a practical concern,
// but it carries no cryptographic guarantees.
type Digest [16]byte

// String returns the digest as 32 lowercase hex characters.
func (d Digest) String() string {
	return hex.EncodeToString(d[:])
}

// IsZero reports whether the digest is the zero value.
func (d Digest) IsZero() bool {
	return d == Digest{}
}

// sum128 hashes b twice with independent seeds into a 128-bit digest.
func sum128(b []byte) Digest {
	var d Digest
	binary.BigEndian.PutUint64(d[0:8], xxhash.Sum64(b))

	h := xxhash.NewWithSeed(loSeed)
	_, _ = h.Write(b) // never fails
	binary.BigEndian.PutUint64(d[8:16], h.Sum64())

	return d
}

// Payload returns the digest of v's canonical form.
// Returns ErrUnserializable (wrapped) when v cannot be canonicalized.
func Payload(v any) (Digest, error) {
	b, err := Canonical(v)
	if err != nil {
		return Digest{}, err
	}
	return sum128(b), nil
}

// Key derives a cache key digest from a category label plus the canonical
// forms of the payload and any extra parameters. Identical inputs yield
// identical keys regardless of map nesting order.
func Key(category string, payload, params any) (Digest, error) {
	payloadBytes, err := Canonical(payload)
	if err != nil {
		return Digest{}, err
	}
	paramBytes, err := Canonical(params)
	if err != nil {
		return Digest{}, err
	}

	combined := make([]byte, 0, len(category)+len(payloadBytes)+len(paramBytes)+2)
	combined = append(combined, category...)
	combined = append(combined, ':')
	combined = append(combined, payloadBytes...)
	combined = append(combined, ':')
	combined = append(combined, paramBytes...)

	return sum128(combined), nil
}
