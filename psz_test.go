package psz

import (
	"net"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithLoggerOverridesDefault(t *testing.T) {
	entry := logrus.WithField("component", "test")
	o := newOptions([]Option{WithLogger(entry)})
	assert.Same(t, entry, o.logger)
}

func TestDefaultOptionsHaveStandardLoggerAndRawOutputs(t *testing.T) {
	o := newOptions(nil)
	require.NotNil(t, o.logger)
	assert.Same(t, logrus.StandardLogger(), o.logger.Logger)
	assert.False(t, o.hashedOutputs)
}

func TestWithHashedOutputsSetsFlag(t *testing.T) {
	o := newOptions([]Option{WithHashedOutputs(true)})
	assert.True(t, o.hashedOutputs)
}

func TestSenderDoubleInitRejected(t *testing.T) {
	s := NewSender()
	require.NoError(t, s.Init())
	assert.ErrorIs(t, s.Init(), ErrAlreadyUsed)
}

func TestReceiverDoubleInitRejected(t *testing.T) {
	r := NewReceiver()
	require.NoError(t, r.Init())
	assert.ErrorIs(t, r.Init(), ErrAlreadyUsed)
}

func TestSendBeforeInitRejected(t *testing.T) {
	s := NewSender()
	err := s.Send(nil, [][]byte{pad16("a")}, newSource(t))
	assert.ErrorIs(t, err, ErrAlreadyUsed)
}

func TestReceiveBeforeInitRejected(t *testing.T) {
	r := NewReceiver()
	_, err := r.Receive(nil, [][]byte{pad16("a")}, newSource(t))
	assert.ErrorIs(t, err, ErrAlreadyUsed)
}

func TestSendEmptyInputsRejected(t *testing.T) {
	s := NewSender()
	require.NoError(t, s.Init())
	err := s.Send(nil, nil, newSource(t))
	assert.ErrorIs(t, err, ErrBadInputSize)
}

func TestReceiveEmptyInputsRejected(t *testing.T) {
	r := NewReceiver()
	require.NoError(t, r.Init())
	_, err := r.Receive(nil, nil, newSource(t))
	assert.ErrorIs(t, err, ErrBadInputSize)
}

// runPSIWithOptions mirrors runPSI but lets each side carry its own
// Options, so WithHashedOutputs and WithLogger can be exercised end to
// end rather than only at the options-struct level above.
func runPSIWithOptions(t *testing.T, x, y [][]byte, senderOpts, receiverOpts []Option) ([][]byte, error, error) {
	t.Helper()
	a, b := net.Pipe()

	var wg sync.WaitGroup
	wg.Add(2)

	var sendErr, recvErr error
	var result [][]byte

	go func() {
		defer wg.Done()
		sender := NewSender(senderOpts...)
		require.NoError(t, sender.Init())
		sendErr = sender.Send(a, x, newSource(t))
	}()
	go func() {
		defer wg.Done()
		receiver := NewReceiver(receiverOpts...)
		require.NoError(t, receiver.Init())
		result, recvErr = receiver.Receive(b, y, newSource(t))
	}()
	wg.Wait()

	return result, sendErr, recvErr
}

func TestHashedOutputsAgreeingOnBothSidesStillIntersects(t *testing.T) {
	x := [][]byte{pad16("a"), pad16("b"), pad16("c")}
	y := [][]byte{pad16("b"), pad16("c"), pad16("d")}

	opts := []Option{WithHashedOutputs(true)}
	result, sendErr, recvErr := runPSIWithOptions(t, x, y, opts, opts)
	require.NoError(t, sendErr)
	require.NoError(t, recvErr)
	assert.ElementsMatch(t, toStrings([][]byte{pad16("b"), pad16("c")}), toStrings(result))
}

func TestHashedOutputsMismatchYieldsEmptyIntersectionNotError(t *testing.T) {
	x := [][]byte{pad16("a"), pad16("b")}
	y := [][]byte{pad16("a"), pad16("b")}

	result, sendErr, recvErr := runPSIWithOptions(t, x, y, []Option{WithHashedOutputs(true)}, nil)
	require.NoError(t, sendErr)
	require.NoError(t, recvErr)
	assert.Empty(t, result)
}

func TestSenderStateTransitionsToCompletedOnSuccess(t *testing.T) {
	x := [][]byte{pad16("a")}
	a, b := net.Pipe()

	var wg sync.WaitGroup
	wg.Add(2)

	sender := NewSender()
	require.NoError(t, sender.Init())

	go func() {
		defer wg.Done()
		require.NoError(t, sender.Send(a, x, newSource(t)))
	}()
	go func() {
		defer wg.Done()
		receiver := NewReceiver()
		require.NoError(t, receiver.Init())
		_, err := receiver.Receive(b, x, newSource(t))
		require.NoError(t, err)
	}()
	wg.Wait()

	assert.Equal(t, stateCompleted, sender.state)
}

func TestRunStateString(t *testing.T) {
	assert.Equal(t, "uninitialized", stateUninitialized.String())
	assert.Equal(t, "initialized", stateInitialized.String())
	assert.Equal(t, "completed", stateCompleted.String())
	assert.Equal(t, "failed", stateFailed.String())
	assert.Equal(t, "unknown", runState(99).String())
}

func TestExpandDigestKeyDeterministic(t *testing.T) {
	var coin [16]byte
	for i := range coin {
		coin[i] = byte(i)
	}
	k1 := expandDigestKey(coin)
	k2 := expandDigestKey(coin)
	assert.Equal(t, k1, k2)

	coin[0] ^= 1
	k3 := expandDigestKey(coin)
	assert.NotEqual(t, k1, k3)
}
