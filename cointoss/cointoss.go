// Package cointoss implements a symmetric commit-and-reveal two-party
// coin toss: both sides contribute a random nonce, commit to it, then
// reveal, so that neither side can bias the final shared key by
// choosing its nonce after seeing the other party's.
package cointoss

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/blake2b"

	"github.com/fimbault/psz/wire"
)

// KeySize is the width of the shared key both parties obtain.
const KeySize = 16

// ErrMismatch is returned when a party's revealed nonce does not match
// its earlier commitment.
var ErrMismatch = errors.New("cointoss: commitment mismatch")

const commitSize = 32

func commit(nonce []byte) []byte {
	sum := blake2b.Sum256(nonce)
	return sum[:]
}

// Send runs the "sending" half of the coin toss: commit, wait for the
// peer's commitment, reveal, read the peer's reveal, verify it, and
// derive the shared key. Despite the name, both halves do symmetric
// work; Send/Receive are just the two sides of one exchange so call
// sites read the same way the rest of the protocol's sender/receiver
// pairs do.
func Send(rw io.ReadWriter, rng io.Reader) ([KeySize]byte, error) {
	return exchange(rw, rng)
}

// Receive runs the "receiving" half of the coin toss.
func Receive(rw io.ReadWriter, rng io.Reader) ([KeySize]byte, error) {
	return exchange(rw, rng)
}

func exchange(rw io.ReadWriter, rng io.Reader) ([KeySize]byte, error) {
	var out [KeySize]byte
	if rng == nil {
		rng = rand.Reader
	}

	ownNonce := make([]byte, KeySize)
	if _, err := io.ReadFull(rng, ownNonce); err != nil {
		return out, fmt.Errorf("cointoss: sample nonce: %w", err)
	}
	ownCommit := commit(ownNonce)

	peerCommit := make([]byte, commitSize)
	if err := sendAndReceive(rw, ownCommit, peerCommit); err != nil {
		return out, fmt.Errorf("cointoss: commitment round: %w", err)
	}

	peerNonce := make([]byte, KeySize)
	if err := sendAndReceive(rw, ownNonce, peerNonce); err != nil {
		return out, fmt.Errorf("cointoss: reveal round: %w", err)
	}

	gotCommit := commit(peerNonce)
	if !equal(gotCommit, peerCommit) {
		return out, ErrMismatch
	}

	combined := make([]byte, KeySize)
	for i := range combined {
		combined[i] = ownNonce[i] ^ peerNonce[i]
	}
	mixed := blake2b.Sum256(combined)
	copy(out[:], mixed[:KeySize])
	return out, nil
}

// sendAndReceive writes out and reads len(in) bytes into in concurrently.
// Both parties run the same exchange, each writing before it reads, so on
// an unbuffered rendezvous transport (net.Pipe) a strictly sequential
// write-then-read would deadlock: neither side's write can be drained
// until the other reaches its read. Running the write on its own
// goroutine lets this side's read and the peer's read each drain a
// pending write at the same time.
func sendAndReceive(rw io.ReadWriter, out []byte, in []byte) error {
	writeDone := make(chan error, 1)
	go func() {
		if _, err := rw.Write(out); err != nil {
			writeDone <- fmt.Errorf("write: %w", err)
			return
		}
		writeDone <- wire.Flush(rw)
	}()

	readErr := wire.ReadExact(rw, in)
	writeErr := <-writeDone
	if writeErr != nil {
		return writeErr
	}
	if readErr != nil {
		return fmt.Errorf("read: %w", readErr)
	}
	return nil
}

func equal(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	diff := byte(0)
	for i := range a {
		diff |= a[i] ^ b[i]
	}
	return diff == 0
}
