package psz

import "errors"

// Sentinel errors surfaced to callers. All of them are terminal: a run
// that hits any of these must not be resumed, only restarted from
// scratch with fresh Sender/Receiver instances.
var (
	// ErrShortRead is returned when the transport closes or errors mid
	// read, before a full record could be consumed.
	ErrShortRead = errors.New("psz: short read on transport")

	// ErrCoinTossMismatch is returned when the coin-toss commitment and
	// its reveal disagree.
	ErrCoinTossMismatch = errors.New("psz: coin-toss commitment mismatch")

	// ErrBadInputSize is returned for an empty input set. The cuckoo
	// sizing schedule covers every positive size, so no upper bound is
	// checked.
	ErrBadInputSize = errors.New("psz: bad input size")

	// ErrCuckooFailed is returned when the receiver's cuckoo table
	// couldn't place every input into a bin or the stash.
	ErrCuckooFailed = errors.New("psz: cuckoo insertion failed")

	// ErrOprfFailure is returned for any failure surfaced by the OPRF
	// adaptor, including malformed peer messages.
	ErrOprfFailure = errors.New("psz: oprf failure")

	// ErrAlreadyUsed is returned when Send or Receive is called on an
	// instance that has already run once.
	ErrAlreadyUsed = errors.New("psz: instance already used")
)
