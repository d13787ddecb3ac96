package oprf

import (
	"crypto/sha512"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/gtank/ristretto255"
)

const (
	hashToGroupDST = "HashToGroup-PSZ-ristretto255-SHA512"
	finalizeDST    = "PSZ-Finalize"

	sha512OutputBytes = 64
	sha512BlockSize   = 128
	hashBytes         = 64
)

// expandMessageXMD implements expand_message_xmd (RFC 9380 §5.3.1) using
// SHA-512, stretching msg into lenInBytes uniformly random bytes tagged
// with dst so it can't be confused with an expansion done for another
// purpose.
func expandMessageXMD(msg, dst []byte, lenInBytes int) ([]byte, error) {
	ell := (lenInBytes + sha512OutputBytes - 1) / sha512OutputBytes
	if ell > 255 {
		return nil, errors.New("oprf: lenInBytes too large for expand_message_xmd")
	}

	dstPrime := make([]byte, len(dst)+1)
	copy(dstPrime, dst)
	dstPrime[len(dst)] = byte(len(dst))

	zPad := make([]byte, sha512BlockSize)
	libStr := make([]byte, 2)
	binary.BigEndian.PutUint16(libStr, uint16(lenInBytes))

	h := sha512.New()
	h.Write(zPad)
	h.Write(msg)
	h.Write(libStr)
	h.Write([]byte{0})
	h.Write(dstPrime)
	b0 := h.Sum(nil)

	h.Reset()
	h.Write(b0)
	h.Write([]byte{1})
	h.Write(dstPrime)
	b1 := h.Sum(nil)

	out := make([]byte, 0, ell*sha512OutputBytes)
	out = append(out, b1...)

	bPrev := b1
	for i := 2; i <= ell; i++ {
		h.Reset()
		xored := make([]byte, sha512OutputBytes)
		for j := range xored {
			xored[j] = b0[j] ^ bPrev[j]
		}
		h.Write(xored)
		h.Write([]byte{byte(i)})
		h.Write(dstPrime)
		bi := h.Sum(nil)
		out = append(out, bi...)
		bPrev = bi
	}

	return out[:lenInBytes], nil
}

// hashToGroup maps an arbitrary message to a ristretto255 element.
func hashToGroup(msg []byte) (*ristretto255.Element, error) {
	uniform, err := expandMessageXMD(msg, []byte(hashToGroupDST), hashBytes)
	if err != nil {
		return nil, fmt.Errorf("oprf: expand_message_xmd: %w", err)
	}
	el := ristretto255.NewElement()
	el.FromUniformBytes(uniform)
	return el, nil
}
