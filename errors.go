package mux

import (
	"errors"
	"net"
)

// ErrKind classifies a failure per the taxonomy in spec §7, so callers
// can react to the kind without string-matching, the way smux's
// net.Error-shaped timeoutError lets callers detect timeouts without
// inspecting a message.
type ErrKind int

const (
	KindBufferCapacityReached ErrKind = iota
	KindSocketWouldBlock
	KindSocketClosed
	KindSocketError
	KindProtocolError
	KindFlowControlError
	KindLoopBudgetExceeded
	KindTimeout
)

func (k ErrKind) String() string {
	switch k {
	case KindBufferCapacityReached:
		return "buffer capacity reached"
	case KindSocketWouldBlock:
		return "socket would block"
	case KindSocketClosed:
		return "socket closed"
	case KindSocketError:
		return "socket error"
	case KindProtocolError:
		return "protocol error"
	case KindFlowControlError:
		return "flow control error"
	case KindLoopBudgetExceeded:
		return "readiness loop budget exceeded"
	case KindTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// MuxError wraps a Kind with the underlying cause, if any.
type MuxError struct {
	Kind ErrKind
	Err  error
}

func (e *MuxError) Error() string {
	if e.Err == nil {
		return e.Kind.String()
	}
	return e.Kind.String() + ": " + e.Err.Error()
}

func (e *MuxError) Unwrap() error { return e.Err }

func newErr(kind ErrKind, err error) *MuxError { return &MuxError{Kind: kind, Err: err} }

var (
	// ErrBufferCapacityReached is returned by CreateStream when the
	// pool cannot satisfy both checkouts atomically.
	ErrBufferCapacityReached = newErr(KindBufferCapacityReached, errors.New("buffer pool exhausted"))
	// ErrInvalidProtocol marks malformed H1/H2 framing.
	ErrInvalidProtocol = newErr(KindProtocolError, errors.New("invalid protocol"))
	// ErrFlowControl marks a window that over/underflowed.
	ErrFlowControl = newErr(KindFlowControlError, errors.New("flow control window exceeded"))
	// ErrLoopBudgetExceeded marks a readiness pass that never quiesced.
	ErrLoopBudgetExceeded = newErr(KindLoopBudgetExceeded, errors.New("readiness loop failed to quiesce"))
	// ErrSessionClosed marks use of a session or stream after close.
	ErrSessionClosed = errors.New("mux: session closed")
	// ErrTimeout satisfies net.Error for callers that type-assert it,
	// mirroring smux's timeoutError.
	ErrTimeout net.Error = &timeoutError{}
)

type timeoutError struct{}

func (timeoutError) Error() string   { return "mux: timeout" }
func (timeoutError) Temporary() bool { return true }
func (timeoutError) Timeout() bool   { return true }
