// Package oprf provides the batched, per-slot oblivious pseudorandom
// function the protocol's comparison step consumes: one key per cuckoo
// table slot, so that a receiver who blinds a token under slot i learns
// exactly the sender's output for slot i and nothing about the sender's
// outputs for any other slot. Internally it runs 2HashDH over
// ristretto255 with a SHA-512 finalize, following RFC 9497's OPRF shape;
// the real protocol's OT-extension-backed relaxed OPRF is a drop-in
// replacement behind the same Sender/Receiver contract.
package oprf

import (
	"crypto/rand"
	"crypto/sha512"
	"encoding/binary"
	"fmt"

	"github.com/gtank/ristretto255"

	"github.com/fimbault/psz/digest"
)

const (
	// ScalarSize is the width of a ristretto255 scalar, and so of a SeedKey.
	ScalarSize = 32
	// ElementSize is the width of an encoded ristretto255 group element.
	ElementSize = 32
)

// SeedKey is one slot's private OPRF key.
type SeedKey [ScalarSize]byte

// Block512 is an OPRF output: 64 bytes of SHA-512 finalize output.
type Block512 [64]byte

func randomScalar() (*ristretto255.Scalar, error) {
	buf := make([]byte, 64)
	if _, err := rand.Read(buf); err != nil {
		return nil, fmt.Errorf("oprf: sample scalar: %w", err)
	}
	s := ristretto255.NewScalar()
	s.FromUniformBytes(buf)
	return s, nil
}

func genSeedKey() (SeedKey, error) {
	s, err := randomScalar()
	if err != nil {
		return SeedKey{}, err
	}
	var k SeedKey
	copy(k[:], s.Encode(nil))
	return k, nil
}

func finalize(token digest.Token, n []byte) Block512 {
	h := sha512.New()
	var lenBuf [2]byte
	binary.BigEndian.PutUint16(lenBuf[:], uint16(len(token)))
	h.Write(lenBuf[:])
	h.Write(token.Bytes())
	binary.BigEndian.PutUint16(lenBuf[:], uint16(len(n)))
	h.Write(lenBuf[:])
	h.Write(n)
	h.Write([]byte(finalizeDST))

	var out Block512
	copy(out[:], h.Sum(nil))
	return out
}

// Sender holds one independent OPRF key per slot (cuckoo bin or stash
// position) of the table it was sized for.
type Sender struct {
	keys []SeedKey
}

// NewSender allocates a fresh random key per slot.
func NewSender(numSlots int) (*Sender, error) {
	keys := make([]SeedKey, numSlots)
	for i := range keys {
		k, err := genSeedKey()
		if err != nil {
			return nil, err
		}
		keys[i] = k
	}
	return &Sender{keys: keys}, nil
}

// NumSlots returns the number of independent keys the sender holds.
func (s *Sender) NumSlots() int { return len(s.keys) }

// LocalEvaluate computes the OPRF output for token under slot's key
// directly, without blinding. The sender may call this on its own inputs
// since it already knows both the token and the key in the clear.
func (s *Sender) LocalEvaluate(slot int, token digest.Token) (Block512, error) {
	if slot < 0 || slot >= len(s.keys) {
		return Block512{}, fmt.Errorf("oprf: slot %d out of range [0,%d)", slot, len(s.keys))
	}
	h0, err := hashToGroup(token.Bytes())
	if err != nil {
		return Block512{}, err
	}
	kScalar := ristretto255.NewScalar()
	if err := kScalar.Decode(s.keys[slot][:]); err != nil {
		return Block512{}, fmt.Errorf("oprf: decode slot key: %w", err)
	}
	n := ristretto255.NewElement()
	n.ScalarMult(kScalar, h0)
	return finalize(token, n.Encode(nil)), nil
}

// RespondBlind evaluates a receiver's blinded query against slot's key,
// returning the blinded result (beta) to send back.
func (s *Sender) RespondBlind(slot int, alpha []byte) ([]byte, error) {
	if slot < 0 || slot >= len(s.keys) {
		return nil, fmt.Errorf("oprf: slot %d out of range [0,%d)", slot, len(s.keys))
	}
	if len(alpha) != ElementSize {
		return nil, fmt.Errorf("oprf: alpha must be %d bytes, got %d", ElementSize, len(alpha))
	}
	kScalar := ristretto255.NewScalar()
	if err := kScalar.Decode(s.keys[slot][:]); err != nil {
		return nil, fmt.Errorf("oprf: decode slot key: %w", err)
	}
	alphaElement := ristretto255.NewElement()
	if err := alphaElement.Decode(alpha); err != nil {
		return nil, fmt.Errorf("oprf: decode alpha: %w", err)
	}
	beta := ristretto255.NewElement()
	beta.ScalarMult(kScalar, alphaElement)
	return beta.Encode(nil), nil
}

// Receiver runs the blinding side of the protocol. It carries no state
// between calls beyond what BlindState threads through explicitly, so a
// single Receiver can be reused across many tokens concurrently.
type Receiver struct{}

// NewReceiver returns a Receiver.
func NewReceiver() *Receiver { return &Receiver{} }

// BlindState is the blinding factor a receiver must keep between Blind
// and Finalize for a single token.
type BlindState struct {
	r []byte
}

// Blind hides token behind a fresh random blinding factor, returning the
// wire value (alpha) to send to the sender for the chosen slot.
func (rv *Receiver) Blind(token digest.Token) (BlindState, []byte, error) {
	h0, err := hashToGroup(token.Bytes())
	if err != nil {
		return BlindState{}, nil, err
	}
	r, err := randomScalar()
	if err != nil {
		return BlindState{}, nil, err
	}
	alphaElement := ristretto255.NewElement()
	alphaElement.ScalarMult(r, h0)
	return BlindState{r: r.Encode(nil)}, alphaElement.Encode(nil), nil
}

// Finalize removes the blinding factor from the sender's response and
// derives the same Block512 the sender would compute with LocalEvaluate
// for the matching slot and token.
func (rv *Receiver) Finalize(state BlindState, token digest.Token, beta []byte) (Block512, error) {
	if len(beta) != ElementSize {
		return Block512{}, fmt.Errorf("oprf: beta must be %d bytes, got %d", ElementSize, len(beta))
	}
	rScalar := ristretto255.NewScalar()
	if err := rScalar.Decode(state.r); err != nil {
		return Block512{}, fmt.Errorf("oprf: decode blind: %w", err)
	}
	betaElement := ristretto255.NewElement()
	if err := betaElement.Decode(beta); err != nil {
		return Block512{}, fmt.Errorf("oprf: decode beta: %w", err)
	}
	rInv := ristretto255.NewScalar()
	rInv.Invert(rScalar)
	n := ristretto255.NewElement()
	n.ScalarMult(rInv, betaElement)
	return finalize(token, n.Encode(nil)), nil
}
