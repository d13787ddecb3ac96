// Package digest compresses arbitrary-length inputs into the fixed
// 128-bit tokens the rest of the protocol operates on, keyed so that
// both parties compute identical tokens for equal inputs without either
// side being able to predict the mapping ahead of the coin toss.
package digest

import (
	"fmt"

	"github.com/minio/highwayhash"
)

// KeySize is the width of the key CompressAndHash requires, matching
// HighwayHash's fixed 256-bit key.
const KeySize = 32

// Token is a 128-bit opaque value.
type Token [16]byte

// Xor returns t XOR other.
func (t Token) Xor(other Token) Token {
	var out Token
	for i := range out {
		out[i] = t[i] ^ other[i]
	}
	return out
}

// Bytes returns the token's bytes, suitable for hashing or OPRF input.
func (t Token) Bytes() []byte {
	return t[:]
}

// HashIndexToken encodes a cuckoo hash-function index (0, 1 or 2) into
// a Token whose only set bits lie in its low byte, so XOR-ing it into
// an entry never perturbs the bin-selection bits the entry's other
// bytes carry (see cuckoo.Bin).
func HashIndexToken(i int) Token {
	var t Token
	t[0] = byte(i)
	return t
}

// CompressAndHash deterministically maps each input to a 128-bit token
// using HighwayHash keyed by key. Equal inputs under the same key always
// produce equal tokens; key must come from a coin toss both parties
// agree on, never a fixed constant, or the mapping becomes predictable
// ahead of the protocol run.
func CompressAndHash(items [][]byte, key [KeySize]byte) ([]Token, error) {
	h, err := highwayhash.New128(key[:])
	if err != nil {
		return nil, fmt.Errorf("digest: highwayhash: %w", err)
	}
	tokens := make([]Token, len(items))
	for i, item := range items {
		h.Reset()
		if _, err := h.Write(item); err != nil {
			return nil, fmt.Errorf("digest: highwayhash write: %w", err)
		}
		copy(tokens[i][:], h.Sum(nil))
	}
	return tokens, nil
}
