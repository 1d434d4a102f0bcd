package mux

import (
	"bytes"

	"github.com/coremux/coremux/internal/pool"
)

// fakeSocket is a hand-rolled SocketCapability double for driving the
// readable/writable paths without a real fd, the way the teacher's own
// package has no socket fake but the rest of the pack's HTTP/2 examples
// (cloudflared/h2mux, dgrr-http2) test their frame loops against an
// in-memory io.ReadWriter.
type fakeSocket struct {
	read      []byte
	exhausted SocketStatus // returned once read is drained; defaults to WouldBlock
	writeMax  int          // caps bytes accepted per SocketWrite call; 0 = unlimited
	written   bytes.Buffer

	readCalls  int
	writeCalls int
}

func newFakeSocket() *fakeSocket {
	return &fakeSocket{exhausted: StatusWouldBlock}
}

func (s *fakeSocket) SocketRead(dst []byte) (int, SocketStatus) {
	s.readCalls++
	if len(s.read) == 0 {
		return 0, s.exhausted
	}
	n := copy(dst, s.read)
	s.read = s.read[n:]
	return n, StatusContinue
}

func (s *fakeSocket) SocketWrite(src []byte) (int, SocketStatus) {
	s.writeCalls++
	n := len(src)
	if s.writeMax > 0 && n > s.writeMax {
		n = s.writeMax
	}
	s.written.Write(src[:n])
	return n, StatusContinue
}

func (s *fakeSocket) SocketWriteVectored(slices [][]byte) (int, SocketStatus) {
	total := 0
	for _, b := range slices {
		n, status := s.SocketWrite(b)
		total += n
		if status != StatusContinue || n < len(b) {
			return total, status
		}
	}
	return total, StatusContinue
}

// newTestStreams builds a StreamTable over a fresh pool, following the
// same table-driven fixture shape other_examples/.../xtaci-smux-stream
// tests use for stream setup.
func newTestStreams(capacity int) (*StreamTable, error) {
	p := pool.New(4096, capacity)
	return NewStreamTable(pool.NewRef(p))
}

// countingMetrics is the test double for the Metrics capability.
type countingMetrics struct{ count int }

func (m *countingMetrics) IncrInfiniteLoopError() { m.count++ }
