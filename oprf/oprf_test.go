package oprf

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fimbault/psz/digest"
)

func tok(b byte) digest.Token {
	var t digest.Token
	for i := range t {
		t[i] = b + byte(i)*3
	}
	return t
}

func TestBlindEvaluateFinalizeMatchesLocalEvaluate(t *testing.T) {
	sender, err := NewSender(4)
	require.NoError(t, err)
	receiver := NewReceiver()

	token := tok(1)
	slot := 2

	state, alpha, err := receiver.Blind(token)
	require.NoError(t, err)

	beta, err := sender.RespondBlind(slot, alpha)
	require.NoError(t, err)

	got, err := receiver.Finalize(state, token, beta)
	require.NoError(t, err)

	want, err := sender.LocalEvaluate(slot, token)
	require.NoError(t, err)

	assert.Equal(t, want, got)
}

func TestDifferentSlotsProduceDifferentOutputs(t *testing.T) {
	sender, err := NewSender(3)
	require.NoError(t, err)
	token := tok(9)

	out0, err := sender.LocalEvaluate(0, token)
	require.NoError(t, err)
	out1, err := sender.LocalEvaluate(1, token)
	require.NoError(t, err)
	assert.NotEqual(t, out0, out1)
}

func TestDifferentTokensProduceDifferentOutputs(t *testing.T) {
	sender, err := NewSender(1)
	require.NoError(t, err)

	a, err := sender.LocalEvaluate(0, tok(1))
	require.NoError(t, err)
	b, err := sender.LocalEvaluate(0, tok(2))
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestSlotOutOfRange(t *testing.T) {
	sender, err := NewSender(2)
	require.NoError(t, err)
	_, err = sender.LocalEvaluate(5, tok(0))
	assert.Error(t, err)

	receiver := NewReceiver()
	_, alpha, err := receiver.Blind(tok(0))
	require.NoError(t, err)
	_, err = sender.RespondBlind(-1, alpha)
	assert.Error(t, err)
}

func TestBetaWrongLengthRejected(t *testing.T) {
	receiver := NewReceiver()
	state, _, err := receiver.Blind(tok(0))
	require.NoError(t, err)
	_, err = receiver.Finalize(state, tok(0), []byte("too-short"))
	assert.Error(t, err)
}
