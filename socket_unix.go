//go:build linux

package mux

import (
	"errors"
	"fmt"

	"golang.org/x/sys/unix"
)

// Poller is a minimal epoll-backed readiness source grounding the "TCP
// socket and I/O poller" external collaborator (spec §1, §6) with a
// real implementation, so a Session can be driven by something other
// than a test fake. It maps 1:1 onto Session.UpdateReadiness: each
// Wait() call returns the (token, Readiness) pairs to forward.
type Poller struct {
	epfd int
}

// NewPoller creates a new epoll instance.
func NewPoller() (*Poller, error) {
	fd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("mux: epoll_create1: %w", err)
	}
	return &Poller{epfd: fd}, nil
}

// Register starts watching fd for read/write/hangup readiness, tagged
// with token (truncated to uint32, matching mio::Token's usage here).
func (p *Poller) Register(fd int, token uint32) error {
	ev := unix.EpollEvent{
		Events: unix.EPOLLIN | unix.EPOLLOUT | unix.EPOLLRDHUP | unix.EPOLLERR,
		Fd:     int32(token),
	}
	return unix.EpollCtl(p.epfd, unix.EPOLL_CTL_ADD, fd, &ev)
}

// Deregister stops watching fd.
func (p *Poller) Deregister(fd int) error {
	return unix.EpollCtl(p.epfd, unix.EPOLL_CTL_DEL, fd, nil)
}

// Close releases the epoll instance.
func (p *Poller) Close() error {
	return unix.Close(p.epfd)
}

// Event is one readiness notification, keyed by the token passed to
// Register.
type Event struct {
	Token     uint32
	Readiness Readiness
}

// Wait blocks up to timeoutMillis (-1 blocks indefinitely) and returns
// the events observed.
func (p *Poller) Wait(timeoutMillis int) ([]Event, error) {
	raw := make([]unix.EpollEvent, 128)
	n, err := unix.EpollWait(p.epfd, raw, timeoutMillis)
	if err != nil {
		if errors.Is(err, unix.EINTR) {
			return nil, nil
		}
		return nil, fmt.Errorf("mux: epoll_wait: %w", err)
	}
	events := make([]Event, 0, n)
	for _, e := range raw[:n] {
		var r Readiness
		if e.Events&unix.EPOLLIN != 0 {
			r |= READABLE
		}
		if e.Events&unix.EPOLLOUT != 0 {
			r |= WRITABLE
		}
		if e.Events&(unix.EPOLLHUP|unix.EPOLLRDHUP) != 0 {
			r |= HUP
		}
		if e.Events&unix.EPOLLERR != 0 {
			r |= ERROR
		}
		events = append(events, Event{Token: uint32(e.Fd), Readiness: r})
	}
	return events, nil
}

// rawFDSocket implements SocketCapability directly over a non-blocking
// file descriptor, for callers driving the epoll Poller above rather
// than a net.Conn.
type rawFDSocket struct {
	fd int
}

// NewRawFDSocket wraps an already-non-blocking fd (O_NONBLOCK set).
func NewRawFDSocket(fd int) SocketCapability {
	return &rawFDSocket{fd: fd}
}

func (s *rawFDSocket) SocketRead(dst []byte) (int, SocketStatus) {
	n, err := unix.Read(s.fd, dst)
	return classifyErrno(n, err)
}

func (s *rawFDSocket) SocketWrite(src []byte) (int, SocketStatus) {
	n, err := unix.Write(s.fd, src)
	return classifyErrno(n, err)
}

func (s *rawFDSocket) SocketWriteVectored(slices [][]byte) (int, SocketStatus) {
	iovecs := make([][]byte, len(slices))
	copy(iovecs, slices)
	total := 0
	for _, b := range iovecs {
		n, status := s.SocketWrite(b)
		total += n
		if status != StatusContinue || n < len(b) {
			return total, status
		}
	}
	return total, StatusContinue
}

func classifyErrno(n int, err error) (int, SocketStatus) {
	switch {
	case err == nil:
		if n == 0 {
			return 0, StatusClosed
		}
		return n, StatusContinue
	case errors.Is(err, unix.EAGAIN), errors.Is(err, unix.EWOULDBLOCK):
		return 0, StatusWouldBlock
	case errors.Is(err, unix.ECONNRESET), errors.Is(err, unix.EPIPE):
		return 0, StatusClosed
	default:
		return 0, StatusError
	}
}
