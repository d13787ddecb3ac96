package wire

import (
	"bufio"
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteReadUint64RoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteUint64(&buf, 1234567))
	got, err := ReadUint64(&buf)
	require.NoError(t, err)
	assert.Equal(t, uint64(1234567), got)
}

func TestReadUint64ShortRead(t *testing.T) {
	buf := bytes.NewReader([]byte{1, 2, 3})
	_, err := ReadUint64(buf)
	assert.ErrorIs(t, err, ErrShortRead)
}

func TestReadExactShortRead(t *testing.T) {
	buf := bytes.NewReader([]byte{1, 2, 3})
	out := make([]byte, 8)
	err := ReadExact(buf, out)
	assert.ErrorIs(t, err, ErrShortRead)
}

func TestFlushBuffered(t *testing.T) {
	var sink bytes.Buffer
	w := bufio.NewWriter(&sink)
	_, err := w.Write([]byte("hello"))
	require.NoError(t, err)
	assert.Equal(t, 0, sink.Len())
	require.NoError(t, Flush(w))
	assert.Equal(t, "hello", sink.String())
}

func TestFlushUnbuffered(t *testing.T) {
	var sink bytes.Buffer
	var w io.Writer = &sink
	assert.NoError(t, Flush(w))
}

type loopback struct {
	*bytes.Buffer
}

func (l loopback) Read(p []byte) (int, error)  { return l.Buffer.Read(p) }
func (l loopback) Write(p []byte) (int, error) { return l.Buffer.Write(p) }

func TestConnBuffersUntilFlush(t *testing.T) {
	lb := loopback{Buffer: &bytes.Buffer{}}
	conn := NewConn(lb)
	require.NoError(t, WriteUint64(conn, 42))
	assert.Equal(t, 0, lb.Buffer.Len())
	require.NoError(t, conn.Flush())
	assert.Equal(t, 8, lb.Buffer.Len())
}
