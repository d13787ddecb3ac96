// Package psz implements the PSZ/KKRT-style two-party private set
// intersection protocol: a Sender holding X and a Receiver holding Y
// jointly compute Y ∩ X over a reliable byte-stream transport, such that
// the Receiver learns only the intersection and the Sender learns
// nothing about Y. The protocol is secure against semi-honest
// adversaries only.
package psz

import (
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"
	multierror "github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/blake2b"

	"github.com/fimbault/psz/cointoss"
	"github.com/fimbault/psz/cuckoo"
	"github.com/fimbault/psz/digest"
	"github.com/fimbault/psz/oprf"
	"github.com/fimbault/psz/rng"
	"github.com/fimbault/psz/wire"
)

// Option configures a Sender or Receiver at construction time.
type Option func(*options)

type options struct {
	logger        *logrus.Entry
	hashedOutputs bool
}

// WithLogger attaches l as the destination for phase-transition logging.
// Without this option, instances log to logrus's standard logger.
func WithLogger(l *logrus.Entry) Option {
	return func(o *options) { o.logger = l }
}

// WithHashedOutputs controls whether the σ-byte mask is derived by
// truncating the raw OPRF output (the default, matching the reference
// construction's documented omission) or by first folding the output
// through BLAKE2b-256. Both parties must agree on this setting; a
// mismatch silently produces an empty intersection rather than an error,
// since it looks identical to disjoint sets on the wire.
func WithHashedOutputs(v bool) Option {
	return func(o *options) { o.hashedOutputs = v }
}

func newOptions(opts []Option) *options {
	o := &options{logger: logrus.NewEntry(logrus.StandardLogger())}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// expandDigestKey stretches the coin toss's 128-bit shared key into the
// 256-bit key digest.CompressAndHash requires, so both parties derive
// identical HighwayHash keys from the identical coin-toss output.
func expandDigestKey(coin [cointoss.KeySize]byte) [digest.KeySize]byte {
	sum := blake2b.Sum256(coin[:])
	var out [digest.KeySize]byte
	copy(out[:], sum[:])
	return out
}

// Sender is the X-holding half of the protocol. A Sender runs Init then
// Send exactly once; reuse is not supported.
type Sender struct {
	opts  *options
	state runState
	runID uuid.UUID
}

// NewSender constructs a Sender.
func NewSender(opts ...Option) *Sender {
	return &Sender{opts: newOptions(opts), state: stateUninitialized, runID: uuid.New()}
}

// Init transitions the Sender from uninitialized to initialized. It
// exists to mirror the Receiver's symmetric lifecycle and leaves room
// for the OPRF's own initialization handshake should a production OT
// extension replace the local adaptor behind this package.
func (s *Sender) Init() error {
	if s.state != stateUninitialized {
		return ErrAlreadyUsed
	}
	s.state = stateInitialized
	s.opts.logger.WithField("run_id", s.runID).Debug("psz: sender initialized")
	return nil
}

// Send runs the PSZ sender role over rw against inputs, using source for
// the coin-toss nonce and the bin/stash stream permutations; the per-slot
// OPRF keys are drawn from crypto/rand by package oprf. It returns once
// every bin and stash stream has been written and flushed.
func (s *Sender) Send(rw io.ReadWriter, inputs [][]byte, source *rng.Source) (err error) {
	if s.state != stateInitialized {
		return ErrAlreadyUsed
	}
	log := s.opts.logger.WithField("run_id", s.runID)
	conn := wire.NewConn(rw)
	defer func() {
		teardown(conn, &err)
		if err != nil {
			s.state = stateFailed
		} else {
			s.state = stateCompleted
		}
	}()

	n := len(inputs)
	if n == 0 {
		return ErrBadInputSize
	}

	log.WithField("n", n).Debug("psz: sender coin toss")
	coinKey, err := cointoss.Send(conn, source)
	if err != nil {
		return wrapCoinToss(err)
	}

	tokens, err := digest.CompressAndHash(inputs, expandDigestKey(coinKey))
	if err != nil {
		return fmt.Errorf("psz: sender digest: %w", err)
	}

	// The receiver needs the sender's own set size to know how many
	// records each bin/stash stream carries, and both sides need to agree
	// on a single set size to size the mask from — otherwise unequal
	// |X| != |Y| desynchronizes the wire and gives each side a different σ.
	if err := wire.WriteUint64(conn, uint64(n)); err != nil {
		return fmt.Errorf("psz: sender write n: %w", err)
	}
	if err := conn.Flush(); err != nil {
		return fmt.Errorf("psz: sender flush n: %w", err)
	}

	m, err := wire.ReadUint64(conn)
	if err != nil {
		return wrapShortRead(err)
	}
	stashSize, err := wire.ReadUint64(conn)
	if err != nil {
		return wrapShortRead(err)
	}
	peerN, err := wire.ReadUint64(conn)
	if err != nil {
		return wrapShortRead(err)
	}

	sigma, err := computeMaskSize(max(n, int(peerN)))
	if err != nil {
		return err
	}

	numSlots := int(m) + int(stashSize)
	log.WithFields(logrus.Fields{"m": m, "s": stashSize, "sigma": sigma}).Debug("psz: sender driving oprf")
	sender, err := oprf.NewSender(numSlots)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrOprfFailure, err)
	}

	for p := 0; p < sender.NumSlots(); p++ {
		alpha, err := readFramed(conn)
		if err != nil {
			return err
		}
		beta, err := sender.RespondBlind(p, alpha)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrOprfFailure, err)
		}
		if err := writeFramed(conn, beta); err != nil {
			return err
		}
	}

	perm := make([]digest.Token, n)
	for h := 0; h < cuckoo.NumHashes; h++ {
		copy(perm, tokens)
		source.Shuffle(n, func(i, j int) { perm[i], perm[j] = perm[j], perm[i] })

		for _, tok := range perm {
			bin := cuckoo.Bin(tok, h, int(m))
			queryTok := tok.Xor(digest.HashIndexToken(h))
			out, err := sender.LocalEvaluate(bin, queryTok)
			if err != nil {
				return fmt.Errorf("%w: %v", ErrOprfFailure, err)
			}
			if _, err := conn.Write(maskPrefix(s.opts.hashedOutputs, out, sigma)); err != nil {
				return fmt.Errorf("psz: sender write bin stream: %w", err)
			}
		}
		if err := conn.Flush(); err != nil {
			return fmt.Errorf("psz: sender flush bin stream: %w", err)
		}
	}

	if stashSize > 0 {
		for j := 0; j < int(stashSize); j++ {
			copy(perm, tokens)
			source.Shuffle(n, func(i, k int) { perm[i], perm[k] = perm[k], perm[i] })

			for _, tok := range perm {
				out, err := sender.LocalEvaluate(int(m)+j, tok)
				if err != nil {
					return fmt.Errorf("%w: %v", ErrOprfFailure, err)
				}
				if _, err := conn.Write(maskPrefix(s.opts.hashedOutputs, out, sigma)); err != nil {
					return fmt.Errorf("psz: sender write stash stream: %w", err)
				}
			}
		}
		if err := conn.Flush(); err != nil {
			return fmt.Errorf("psz: sender flush stash stream: %w", err)
		}
	}

	log.Debug("psz: sender done")
	return nil
}

// Receiver is the Y-holding half of the protocol.
type Receiver struct {
	opts  *options
	state runState
	runID uuid.UUID
}

// NewReceiver constructs a Receiver.
func NewReceiver(opts ...Option) *Receiver {
	return &Receiver{opts: newOptions(opts), state: stateUninitialized, runID: uuid.New()}
}

// Init transitions the Receiver from uninitialized to initialized.
func (r *Receiver) Init() error {
	if r.state != stateUninitialized {
		return ErrAlreadyUsed
	}
	r.state = stateInitialized
	r.opts.logger.WithField("run_id", r.runID).Debug("psz: receiver initialized")
	return nil
}

// Receive runs the PSZ receiver role over rw against inputs, returning
// the subset of inputs also held by the sender. The returned order
// follows the cuckoo table's slot order, not inputs' original order.
func (r *Receiver) Receive(rw io.ReadWriter, inputs [][]byte, source *rng.Source) (result [][]byte, err error) {
	if r.state != stateInitialized {
		return nil, ErrAlreadyUsed
	}
	log := r.opts.logger.WithField("run_id", r.runID)
	conn := wire.NewConn(rw)
	defer func() {
		teardown(conn, &err)
		if err != nil {
			r.state = stateFailed
		} else {
			r.state = stateCompleted
		}
	}()

	n := len(inputs)
	if n == 0 {
		return nil, ErrBadInputSize
	}

	log.WithField("n", n).Debug("psz: receiver coin toss")
	coinKey, err := cointoss.Receive(conn, source)
	if err != nil {
		return nil, wrapCoinToss(err)
	}

	tokens, err := digest.CompressAndHash(inputs, expandDigestKey(coinKey))
	if err != nil {
		return nil, fmt.Errorf("psz: receiver digest: %w", err)
	}

	table := cuckoo.NewTable(n, source)
	for i, tok := range tokens {
		if err := table.Insert(tok, i); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCuckooFailed, err)
		}
	}

	// peerN is the sender's own set size: each bin/stash stream carries
	// one record per sender item, so reads must be sized by peerN, not by
	// this side's own n. Both parties derive σ from the same shared value
	// (the larger of the two set sizes) so a mask truncated on one side
	// always matches a mask truncated on the other.
	peerN, err := wire.ReadUint64(conn)
	if err != nil {
		return nil, wrapShortRead(err)
	}
	recordCount := int(peerN)

	sigma, err := computeMaskSize(max(n, recordCount))
	if err != nil {
		return nil, err
	}

	m := table.NumBins()
	stashSize := table.NumStash()

	if err := wire.WriteUint64(conn, uint64(m)); err != nil {
		return nil, fmt.Errorf("psz: receiver write m: %w", err)
	}
	if err := wire.WriteUint64(conn, uint64(stashSize)); err != nil {
		return nil, fmt.Errorf("psz: receiver write s: %w", err)
	}
	if err := wire.WriteUint64(conn, uint64(n)); err != nil {
		return nil, fmt.Errorf("psz: receiver write n: %w", err)
	}
	if err := conn.Flush(); err != nil {
		return nil, fmt.Errorf("psz: receiver flush m,s,n: %w", err)
	}

	log.WithFields(logrus.Fields{"m": m, "s": stashSize, "sigma": sigma}).Debug("psz: receiver driving oprf")

	outputs := make([]oprf.Block512, m+stashSize)
	receiver := oprf.NewReceiver()
	for p := 0; p < m+stashSize; p++ {
		// Empty bins still drive a full round trip with a placeholder
		// token, so the sender can't infer occupancy from the number of
		// requests it serves.
		queryTok, _ := receiverQueryToken(table, p, m)
		state, alpha, err := receiver.Blind(queryTok)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrOprfFailure, err)
		}
		if err := writeFramed(conn, alpha); err != nil {
			return nil, err
		}
		beta, err := readFramed(conn)
		if err != nil {
			return nil, err
		}
		out, err := receiver.Finalize(state, queryTok, beta)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrOprfFailure, err)
		}
		outputs[p] = out
	}

	binSets := make([]map[string]struct{}, cuckoo.NumHashes)
	for h := range binSets {
		binSets[h] = make(map[string]struct{}, recordCount)
		for i := 0; i < recordCount; i++ {
			rec := make([]byte, sigma)
			if err := wire.ReadExact(conn, rec); err != nil {
				return nil, wrapShortRead(err)
			}
			binSets[h][string(rec)] = struct{}{}
		}
	}

	stashSets := make([]map[string]struct{}, stashSize)
	for j := range stashSets {
		stashSets[j] = make(map[string]struct{}, recordCount)
		for i := 0; i < recordCount; i++ {
			rec := make([]byte, sigma)
			if err := wire.ReadExact(conn, rec); err != nil {
				return nil, wrapShortRead(err)
			}
			stashSets[j][string(rec)] = struct{}{}
		}
	}

	var matches [][]byte
	for b := 0; b < m; b++ {
		entry, ok := table.Bin(b)
		if !ok {
			continue
		}
		prefix := string(maskPrefix(r.opts.hashedOutputs, outputs[b], sigma))
		if _, hit := binSets[entry.HashIndex][prefix]; hit {
			matches = append(matches, inputs[entry.Value])
		}
	}
	for j := 0; j < stashSize; j++ {
		entry, ok := table.Stash(j)
		if !ok {
			continue
		}
		prefix := string(maskPrefix(r.opts.hashedOutputs, outputs[m+j], sigma))
		if _, hit := stashSets[j][prefix]; hit {
			matches = append(matches, inputs[entry.Value])
		}
	}

	log.WithField("matches", len(matches)).Debug("psz: receiver done")
	return matches, nil
}

// receiverQueryToken derives the token to drive through the OPRF for
// table slot p, applying the same hash-index splice the sender applies
// to its own bin-stream candidates, or none for a stash slot. occupied
// is false for empty bins, whose OPRF output is never consulted.
func receiverQueryToken(table *cuckoo.Table, p, m int) (digest.Token, bool) {
	if p < m {
		entry, ok := table.Bin(p)
		if !ok {
			return digest.Token{}, false
		}
		return entry.Token.Xor(digest.HashIndexToken(entry.HashIndex)), true
	}
	entry, ok := table.Stash(p - m)
	if !ok {
		return digest.Token{}, false
	}
	return entry.Token, true
}

// writeFramed and readFramed carry the OPRF's own blind/response values
// (encoded group elements); each direction of the per-slot
// request/response round trip prefixes its payload with its length, using
// the same wire.WriteUint64/ReadUint64 framing as (m, s).
func writeFramed(conn *wire.Conn, payload []byte) error {
	if err := wire.WriteUint64(conn, uint64(len(payload))); err != nil {
		return fmt.Errorf("%w: %v", ErrOprfFailure, err)
	}
	if _, err := conn.Write(payload); err != nil {
		return fmt.Errorf("%w: %v", ErrOprfFailure, err)
	}
	if err := conn.Flush(); err != nil {
		return fmt.Errorf("%w: %v", ErrOprfFailure, err)
	}
	return nil
}

func readFramed(conn *wire.Conn) ([]byte, error) {
	n, err := wire.ReadUint64(conn)
	if err != nil {
		return nil, wrapShortRead(err)
	}
	payload := make([]byte, n)
	if err := wire.ReadExact(conn, payload); err != nil {
		return nil, wrapShortRead(err)
	}
	return payload, nil
}

func wrapShortRead(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %v", ErrShortRead, err)
}

// teardown runs on every exit path from Send/Receive. On failure it makes
// a best-effort attempt to flush whatever was already buffered — the
// peer may be able to make sense of a partial stream even after an error
// — and aggregates a teardown-flush failure alongside the original
// protocol error rather than masking it.
func teardown(conn *wire.Conn, err *error) {
	if *err == nil {
		return
	}
	if ferr := conn.Flush(); ferr != nil {
		*err = multierror.Append(*err, fmt.Errorf("psz: flush during error teardown: %w", ferr)).ErrorOrNil()
	}
}

func wrapCoinToss(err error) error {
	if err == nil {
		return nil
	}
	if !errors.Is(err, cointoss.ErrMismatch) {
		return fmt.Errorf("psz: coin toss: %w", err)
	}
	return fmt.Errorf("%w: %v", ErrCoinTossMismatch, err)
}
