// Package rng provides the CSPRNG-backed randomness the protocol's cuckoo
// insertion and index shuffling need. The teacher package this is adapted
// from seeded a fast xorshift generator off the wall clock, which is fine
// for load-balancing a local map but not for a protocol whose eviction
// choices must not be predictable to a network adversary; Source instead
// streams from ChaCha20 seeded by crypto/rand.
package rng

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"

	"golang.org/x/crypto/chacha20"
)

// Source is a seeded, deterministic-given-its-seed stream of randomness.
// It is not safe for concurrent use.
type Source struct {
	stream *chacha20.Cipher
}

// New returns a Source seeded from crypto/rand.
func New() (*Source, error) {
	var key [chacha20.KeySize]byte
	var nonce [chacha20.NonceSize]byte
	if _, err := rand.Read(key[:]); err != nil {
		return nil, fmt.Errorf("rng: seed key: %w", err)
	}
	if _, err := rand.Read(nonce[:]); err != nil {
		return nil, fmt.Errorf("rng: seed nonce: %w", err)
	}
	return NewFromSeed(key, nonce)
}

// NewFromSeed returns a Source whose output is entirely determined by key
// and nonce, for reproducible tests.
func NewFromSeed(key [chacha20.KeySize]byte, nonce [chacha20.NonceSize]byte) (*Source, error) {
	c, err := chacha20.NewUnauthenticatedCipher(key[:], nonce[:])
	if err != nil {
		return nil, fmt.Errorf("rng: new cipher: %w", err)
	}
	return &Source{stream: c}, nil
}

// Read fills p with keystream bytes. It never returns an error and always
// fills p completely, satisfying io.Reader.
func (s *Source) Read(p []byte) (int, error) {
	zero := make([]byte, len(p))
	s.stream.XORKeyStream(p, zero)
	return len(p), nil
}

// Uint32 returns a uniformly random 32-bit value.
func (s *Source) Uint32() uint32 {
	var b [4]byte
	s.Read(b[:])
	return binary.LittleEndian.Uint32(b[:])
}

// IntN returns a uniform random int in [0, n). It panics if n <= 0.
func (s *Source) IntN(n int) int {
	if n <= 0 {
		panic("rng: IntN requires n > 0")
	}
	u := uint32(n)
	limit := (0xFFFFFFFF / u) * u // rejection bound, avoids modulo bias
	for {
		v := s.Uint32()
		if v < limit {
			return int(v % u)
		}
	}
}

// Shuffle randomizes the order of n items using swap the way sort.Shuffle
// would, via Fisher-Yates.
func (s *Source) Shuffle(n int, swap func(i, j int)) {
	for i := n - 1; i > 0; i-- {
		j := s.IntN(i + 1)
		swap(i, j)
	}
}
