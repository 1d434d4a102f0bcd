package mux

import (
	"io"
	"net"

	"github.com/sagernet/sing/common/bufio"
	N "github.com/sagernet/sing/common/network"
)

// SocketStatus is the outcome of a non-blocking socket operation
// (spec §6).
type SocketStatus int

const (
	StatusContinue SocketStatus = iota
	StatusWouldBlock
	StatusClosed
	StatusError
)

// SocketCapability is the narrow, non-blocking socket contract the
// core consumes; the TLS handshake/record layer and the TCP socket
// itself are external collaborators (spec §1, §6).
type SocketCapability interface {
	SocketRead(dst []byte) (int, SocketStatus)
	SocketWrite(src []byte) (int, SocketStatus)
	SocketWriteVectored(slices [][]byte) (int, SocketStatus)
}

// netSocket adapts a net.Conn already placed in non-blocking mode
// (e.g. via SetReadDeadline(time.Time{}) semantics on the poller side)
// into a SocketCapability, using sing's vectorised writer exactly as
// the teacher's sendLoop does for scatter-gather I/O.
type netSocket struct {
	conn net.Conn
	vw   N.VectorisedWriter
	hasV bool
}

// NewSocket wraps conn as a SocketCapability. conn must already be in
// non-blocking mode; this type only classifies the resulting errors.
func NewSocket(conn net.Conn) SocketCapability {
	s := &netSocket{conn: conn}
	if vw, ok := bufio.CreateVectorisedWriter(conn); ok {
		s.vw, s.hasV = vw, true
	}
	return s
}

func (s *netSocket) SocketRead(dst []byte) (int, SocketStatus) {
	if len(dst) == 0 {
		return 0, StatusContinue
	}
	n, err := s.conn.Read(dst)
	return n, classify(err)
}

func (s *netSocket) SocketWrite(src []byte) (int, SocketStatus) {
	if len(src) == 0 {
		return 0, StatusContinue
	}
	n, err := s.conn.Write(src)
	return n, classify(err)
}

func (s *netSocket) SocketWriteVectored(slices [][]byte) (int, SocketStatus) {
	if len(slices) == 0 {
		return 0, StatusContinue
	}
	if !s.hasV {
		total := 0
		for _, b := range slices {
			n, status := s.SocketWrite(b)
			total += n
			if status != StatusContinue {
				return total, status
			}
			if n < len(b) {
				return total, StatusContinue
			}
		}
		return total, StatusContinue
	}
	n, err := bufio.WriteVectorised(s.vw, slices)
	return n, classify(err)
}

func isWouldBlock(err error) bool {
	var ne net.Error
	if ok := asNetError(err, &ne); ok {
		return ne.Timeout()
	}
	return false
}

func asNetError(err error, target *net.Error) bool {
	for err != nil {
		if ne, ok := err.(net.Error); ok {
			*target = ne
			return true
		}
		unwrapper, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = unwrapper.Unwrap()
	}
	return false
}

func classify(err error) SocketStatus {
	switch {
	case err == nil:
		return StatusContinue
	case isWouldBlock(err):
		return StatusWouldBlock
	case err == io.EOF:
		return StatusClosed
	default:
		return StatusError
	}
}
