package h1msg

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRegion struct{ b []byte }

func (r *fakeRegion) Bytes() []byte { return r.b }

func newTestMessage(kind Kind, size int) *Message {
	return NewMessage(kind, &fakeRegion{b: make([]byte, size)})
}

func TestParseRequestWithContentLength(t *testing.T) {
	m := newTestMessage(KindRequest, 256)
	raw := "POST /widgets HTTP/1.1\r\nHost: example.com\r\nContent-Length: 5\r\n\r\nhello"

	n := copy(m.Space(), raw)
	m.Fill(n)
	require.NoError(t, m.Parse())

	assert.True(t, m.Terminated())
	assert.Equal(t, "POST /widgets HTTP/1.1", m.StartLine())
	v, ok := m.Header("host")
	assert.True(t, ok)
	assert.Equal(t, "example.com", v)
}

func TestParseIncrementalAcrossFills(t *testing.T) {
	m := newTestMessage(KindRequest, 256)
	head := "GET / HTTP/1.1\r\nHost: x\r\n\r"
	n := copy(m.Space(), head)
	m.Fill(n)
	require.NoError(t, m.Parse())
	assert.False(t, m.Terminated(), "header block is not yet complete")

	n = copy(m.Space(), "\n")
	m.Fill(n)
	require.NoError(t, m.Parse())
	assert.True(t, m.Terminated())
}

func TestParseChunkedBody(t *testing.T) {
	m := newTestMessage(KindResponse, 256)
	raw := "HTTP/1.1 200 OK\r\nTransfer-Encoding: chunked\r\n\r\n5\r\nhello\r\n0\r\n\r\n"
	n := copy(m.Space(), raw)
	m.Fill(n)
	require.NoError(t, m.Parse())
	assert.True(t, m.Terminated())
}

func TestParseUntilCloseResponse(t *testing.T) {
	m := newTestMessage(KindResponse, 256)
	raw := "HTTP/1.1 200 OK\r\n\r\nbody without a length"
	n := copy(m.Space(), raw)
	m.Fill(n)
	require.NoError(t, m.Parse())
	assert.False(t, m.Terminated(), "a length-less response only terminates when the peer closes")
}

func TestMalformedStartLine(t *testing.T) {
	m := newTestMessage(KindRequest, 256)
	n := copy(m.Space(), "not a request line\r\n\r\n")
	m.Fill(n)
	assert.ErrorIs(t, m.Parse(), ErrMalformed)
}

func TestPendingWriteAndAdvance(t *testing.T) {
	m := newTestMessage(KindRequest, 256)
	raw := "GET / HTTP/1.1\r\nHost: x\r\nContent-Length: 0\r\n\r\n"
	n := copy(m.Space(), raw)
	m.Fill(n)
	require.NoError(t, m.Parse())
	require.True(t, m.Terminated())

	pending := m.PendingWrite()
	assert.Equal(t, raw, string(pending))

	m.Advance(len(pending))
	assert.Empty(t, m.PendingWrite())
}

func TestSetHeadersAndMarkTerminated(t *testing.T) {
	m := newTestMessage(KindRequest, 64)
	m.SetHeaders("GET /x HTTP/2", []Header{{Name: ":method", Value: "GET"}})
	assert.False(t, m.Terminated())
	m.MarkTerminated()
	assert.True(t, m.Terminated())
	assert.Equal(t, "GET /x HTTP/2", m.StartLine())
}

func TestAppendRawIsImmediatelyPending(t *testing.T) {
	m := newTestMessage(KindResponse, 64)
	n := m.AppendRaw([]byte("abc"))
	assert.Equal(t, 3, n)
	assert.Equal(t, "abc", string(m.PendingWrite()))
	m.Advance(3)
	assert.Empty(t, m.PendingWrite())
}

// TestAdvanceCompactsOnFullDrain covers a long-lived raw-mode buffer
// (the H2 control queue) repeatedly appending small frames and flushing
// them in full: without compaction, m.filled would walk toward the
// region's end and eventually AppendRaw would start truncating frames.
func TestAdvanceCompactsOnFullDrain(t *testing.T) {
	m := newTestMessage(KindResponse, 16)
	for i := 0; i < 1000; i++ {
		n := m.AppendRaw([]byte("12345678"))
		require.Equal(t, 8, n, "append must not be silently truncated after compaction")
		m.Advance(n)
	}
	assert.Equal(t, 0, m.Filled())
}

func TestSyncRawExposesFrameBytesWithoutGrammar(t *testing.T) {
	m := newTestMessage(KindRequest, 64)
	n := copy(m.Space(), "raw frame payload")
	m.Fill(n)
	assert.Empty(t, m.PendingWrite(), "bytes aren't pending until understood")
	m.SyncRaw()
	assert.Equal(t, "raw frame payload", string(m.PendingWrite()))
}

func TestClearResetsForReuse(t *testing.T) {
	m := newTestMessage(KindRequest, 64)
	n := copy(m.Space(), "scratch")
	m.Fill(n)
	m.SyncRaw()
	m.Clear()
	assert.Equal(t, 0, m.Filled())
	assert.Empty(t, m.Raw())
}
