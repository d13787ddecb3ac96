package psz

import (
	"golang.org/x/crypto/blake2b"

	"github.com/fimbault/psz/oprf"
)

// maskPrefix truncates an OPRF output to σ bytes, the short-output
// emission the wire format actually carries. When hashed is true it
// first folds the output through BLAKE2b-256 (unkeyed) — the layering the
// construction's own documentation calls for downstream users who need
// the hashed-output security variant, since the underlying relaxed OPRF
// here does not hash its output itself.
func maskPrefix(hashed bool, out oprf.Block512, sigma int) []byte {
	b := out[:]
	if hashed {
		sum := blake2b.Sum256(b)
		b = sum[:]
	}
	if sigma > len(b) {
		sigma = len(b)
	}
	masked := make([]byte, sigma)
	copy(masked, b[:sigma])
	return masked
}
