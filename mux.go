package mux

import (
	"time"

	"github.com/sirupsen/logrus"

	"github.com/coremux/coremux/internal/pool"
)

// Token identifies a connection (the frontend or one backend) the way
// mio::Token addresses a registered socket; it doubles as the fd-
// derived token the epoll Poller already hands back in its Events.
type Token = uint32

// FrontendToken is never assigned to a backend.
const FrontendToken Token = 0

// Directive is the readiness loop's verdict, returned up to whatever
// owns the poller so it knows whether to keep this session registered
// (spec §4.5, §6 "Session state contract").
type Directive int

const (
	Continue Directive = iota
	Close
)

// Metrics is the narrow counter sink the loop-cap path increments;
// logging and metrics sinks are external collaborators (spec §1), so
// this is the whole surface the core needs from one.
type Metrics interface {
	IncrInfiniteLoopError()
}

// Mux is the Session: it owns the frontend connection, every backend
// connection, and the Stream Table they share, and runs the bounded
// readiness loop that shuttles bytes between them (spec §3 "Session
// (Mux)", §4.5). Sub-components borrow the Stream Table by transient
// reference on each call rather than holding a back-pointer (spec §9),
// avoiding the cyclic reference the source's Rc<RefCell<...>> graph
// otherwise needs.
type Mux struct {
	config *Config
	log    *logrus.Entry

	frontendToken Token
	frontend      *Connection
	backends      map[Token]*Connection

	streams *StreamTable

	publicAddress string
	peerAddress   string
	stickyCookie  string
}

// NewMux creates a Session around an already-constructed frontend
// connection. Backends are attached afterward via AddBackend as the
// (out-of-scope) routing layer opens them. It fails only if the pool
// cannot even supply global index 0's regions (spec invariant 1).
func NewMux(config *Config, frontendToken Token, frontend *Connection, poolRef *pool.Ref, publicAddress, peerAddress string, log *logrus.Entry) (*Mux, error) {
	if config == nil {
		config = DefaultConfig()
	}
	streams, err := NewStreamTable(poolRef)
	if err != nil {
		return nil, err
	}
	return &Mux{
		config:        config,
		log:           orDiscard(log),
		frontendToken: frontendToken,
		frontend:      frontend,
		backends:      make(map[Token]*Connection),
		streams:       streams,
		publicAddress: publicAddress,
		peerAddress:   peerAddress,
		stickyCookie:  config.StickySessionCookie,
	}, nil
}

// Streams exposes the Stream Table, e.g. for the routing layer to bind
// a freshly opened backend connection to an existing global index.
func (m *Mux) Streams() *StreamTable { return m.streams }

// AddBackend registers a backend connection under token. The routing
// layer (out of scope) decides which backend a stream's bytes go to;
// the Mux only needs to know it exists and must be driven.
func (m *Mux) AddBackend(token Token, conn *Connection) {
	m.backends[token] = conn
}

// RemoveBackend drops a backend from the session without closing the
// whole Mux, e.g. once its connection has fully drained after GOAWAY.
func (m *Mux) RemoveBackend(token Token) {
	delete(m.backends, token)
}

// UpdateReadiness ORs events into the connection matching token;
// unknown tokens are ignored (spec §4.5).
func (m *Mux) UpdateReadiness(token Token, events Readiness) {
	if token == m.frontendToken {
		r := m.frontend.Readiness()
		r.Event = r.Event.Union(events)
		return
	}
	if conn, ok := m.backends[token]; ok {
		r := conn.Readiness()
		r.Event = r.Event.Union(events)
	}
}

// Ready runs the bounded readiness loop (spec §4.5): if the frontend
// is hung up, close immediately; otherwise alternate frontend and
// backend work until a pass does nothing, a backend reports HUP or
// ERROR, the frontend reports ERROR, or the iteration cap is hit.
func (m *Mux) Ready(metrics Metrics) Directive {
	if m.frontend.Readiness().Event.IsHup() {
		return Close
	}

	for i := 0; i < m.config.MaxReadinessIterations; i++ {
		dirty := false

		if m.frontend.Readiness().Filtered().IsReadable() {
			m.frontend.Readable(m.streams)
			dirty = true
		}

		for _, backend := range m.backends {
			if backend.Readiness().Filtered().IsWritable() {
				backend.Writable(m.streams)
				dirty = true
			}
			if backend.Readiness().Filtered().IsReadable() {
				backend.Readable(m.streams)
				dirty = true
			}
		}

		if m.frontend.Readiness().Filtered().IsWritable() {
			m.frontend.Writable(m.streams)
			dirty = true
		}

		for _, backend := range m.backends {
			eff := backend.Readiness().Filtered()
			if eff.IsHup() || eff.IsError() {
				return Close
			}
		}
		if m.frontend.Readiness().Filtered().IsError() {
			return Close
		}

		if !dirty {
			return Continue
		}
	}

	if metrics != nil {
		metrics.IncrInfiniteLoopError()
	}
	m.log.Warn("mux: readiness loop did not quiesce within the iteration cap")
	return Close
}

// Timeout yields CloseSession for any token this Mux owns; an unowned
// token (already removed, or belonging to a different session) is a
// no-op (spec §4.5, §6).
func (m *Mux) Timeout(token Token) Directive {
	if token != m.frontendToken {
		if _, ok := m.backends[token]; !ok {
			return Continue
		}
	}
	m.log.WithField("token", token).Warn("mux: timeout")
	return Close
}

// CancelTimeouts is the hook the external scheduler's timer wheel
// calls through when a session finishes normally, so no stale timeout
// fires against a token that's about to be reused.
func (m *Mux) CancelTimeouts() {
	m.log.Debug("mux: timeouts cancelled")
}

// Keepalive is the external scheduler's periodic PING tick (spec §5:
// the core has no internal timers, so cadence comes from outside,
// mirroring Timeout), grounded on the teacher's keepalive ticker pair
// (session.go's tickerPing/tickerTimeout). It queues a PING on every H2
// connection idle past config.KeepAliveInterval and returns Close if
// any connection's outstanding PING has gone unanswered past
// config.KeepAliveTimeout. A zero KeepAliveInterval disables it.
func (m *Mux) Keepalive(now time.Time) Directive {
	if m.config.KeepAliveInterval <= 0 {
		return Continue
	}
	conns := make([]*Connection, 0, 1+len(m.backends))
	conns = append(conns, m.frontend)
	for _, backend := range m.backends {
		conns = append(conns, backend)
	}
	for _, conn := range conns {
		if err := conn.Keepalive(m.streams, now, m.config.KeepAliveInterval, m.config.KeepAliveTimeout); err != nil {
			m.log.WithError(err).Warn("mux: keepalive timeout, closing session")
			return Close
		}
	}
	return Continue
}

// PrintState logs a snapshot for diagnostics, mirroring the source's
// print_state debugging hook.
func (m *Mux) PrintState(context string) {
	m.log.WithFields(logrus.Fields{
		"context":  context,
		"frontend": m.frontend.Readiness(),
		"backends": len(m.backends),
		"streams":  m.streams.Len(),
	}).Info("mux: state")
}

// Close tears the session down: every stream's pool regions are
// released (safe even if the pool has already gone away, since
// StreamTable only holds a weak reference) and every backend is
// forgotten. The underlying sockets belong to the external scheduler
// that owns the poller registration and are closed there.
func (m *Mux) Close(metrics Metrics) {
	m.streams.Release()
	m.backends = make(map[Token]*Connection)
	m.log.Info("mux: session closed")
}
