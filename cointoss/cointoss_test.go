package cointoss

import (
	"bufio"
	"crypto/rand"
	"net"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type bufferedConn struct {
	net.Conn
	*bufio.Writer
}

func (c *bufferedConn) Write(p []byte) (int, error) { return c.Writer.Write(p) }
func (c *bufferedConn) Flush() error                { return c.Writer.Flush() }

func pipePair() (*bufferedConn, *bufferedConn) {
	a, b := net.Pipe()
	return &bufferedConn{Conn: a, Writer: bufio.NewWriter(a)}, &bufferedConn{Conn: b, Writer: bufio.NewWriter(b)}
}

func TestCoinTossAgreement(t *testing.T) {
	sideA, sideB := pipePair()

	var wg sync.WaitGroup
	wg.Add(2)

	var keyA, keyB [KeySize]byte
	var errA, errB error

	go func() {
		defer wg.Done()
		keyA, errA = Send(sideA, rand.Reader)
	}()
	go func() {
		defer wg.Done()
		keyB, errB = Receive(sideB, rand.Reader)
	}()
	wg.Wait()

	require.NoError(t, errA)
	require.NoError(t, errB)
	assert.Equal(t, keyA, keyB)
	assert.NotEqual(t, [KeySize]byte{}, keyA)
}

func TestCoinTossFreshEachRun(t *testing.T) {
	run := func() [KeySize]byte {
		sideA, sideB := pipePair()
		var wg sync.WaitGroup
		wg.Add(2)
		var key [KeySize]byte
		go func() { defer wg.Done(); Send(sideA, rand.Reader) }()
		go func() { defer wg.Done(); key, _ = Receive(sideB, rand.Reader) }()
		wg.Wait()
		return key
	}
	k1 := run()
	k2 := run()
	assert.NotEqual(t, k1, k2)
}
