package mux

import (
	"time"

	"github.com/sirupsen/logrus"

	"golang.org/x/net/http2/hpack"
)

// ConnectionH1 is one HTTP/1.1 connection, bound to exactly one global
// stream for its whole lifetime (spec §3, §4.2).
type ConnectionH1 struct {
	position  Position
	readiness ReadinessState
	socket    SocketCapability
	stream    GlobalStreamID
	log       *logrus.Entry
}

// h2State is the H2 connection's state machine position (spec §4.3).
type h2State int

const (
	stateClientPreface h2State = iota
	stateClientSettings
	stateServerSettings
	stateHeader
	stateFrame
	stateError
)

// expectation is the H2 engine's pending-read descriptor: "the next
// byteCount bytes are destined for stream and form one lexical unit"
// (spec Glossary).
type expectation struct {
	valid  bool
	stream GlobalStreamID
	bytes  int
}

// ConnectionH2 is one HTTP/2 connection: HPACK decoder state, settings,
// the state machine, and the wire→global stream map (spec §3, §4.3).
type ConnectionH2 struct {
	position    Position
	readiness   ReadinessState
	socket      SocketCapability
	log         *logrus.Entry
	decoder     *hpack.Decoder
	settings    h2Settings
	peerWindow  int32 // connection-level flow-control window
	state       h2State
	pendingHdr  FrameHeader // valid while state == stateFrame
	expect      expectation
	streams     map[uint32]GlobalStreamID

	headerTarget        GlobalStreamID // global index the in-flight frame's payload resolves to
	continuing          uint32         // wire stream id awaiting CONTINUATION, 0 if none
	headerBuf           []byte         // accumulates HEADERS+CONTINUATION fragments across frames
	headerPendingTarget GlobalStreamID // target saved across a CONTINUATION sequence
	headerEOS           bool           // END_STREAM seen on the HEADERS frame that opened the sequence
	refusedWire         uint32         // wire id whose frame body is being discarded, 0 if none
	awaitingSettingsBody bool          // client position: header of the peer's first SETTINGS frame seen, body pending

	pendingData       []byte         // DATA frame (header+chunk) currently being flushed to the socket
	pendingDataOffset int            // bytes of pendingData already written
	pendingDataIdx    GlobalStreamID // stream whose buffer advances once pendingData fully drains
	pendingDataChunk  int            // payload bytes pendingData represents, for that Advance

	goAway bool // GOAWAY received: stop minting new streams, drain in flight

	lastActivity    time.Time // last time a byte was read off this connection
	pingOutstanding bool      // a keepalive PING was sent and not yet ACKed
	pingSentAt      time.Time
}

// Connection is the closed {H1,H2}×{Client,Server} tagged variant
// (spec §4.4, §9: "implement as a tagged variant with an exhaustive
// match rather than virtual dispatch").
type Connection struct {
	h1 *ConnectionH1
	h2 *ConnectionH2
}

// NewH1Server binds a server-position H1 connection to global index 0.
func NewH1Server(socket SocketCapability, log *logrus.Entry) *Connection {
	return &Connection{h1: &ConnectionH1{
		position:  PositionServer,
		readiness: ReadinessState{Interest: READABLE | HUP | ERROR},
		socket:    socket,
		stream:    ConnectionScope,
		log:       orDiscard(log),
	}}
}

// NewH1Client binds a client-position H1 connection to global index 0.
func NewH1Client(socket SocketCapability, log *logrus.Entry) *Connection {
	return &Connection{h1: &ConnectionH1{
		position:  PositionClient,
		readiness: ReadinessState{Interest: WRITABLE | HUP | ERROR},
		socket:    socket,
		stream:    ConnectionScope,
		log:       orDiscard(log),
	}}
}

// NewH2Server creates a server-position H2 connection expecting the
// client preface (24 + 9 bytes) into the connection scope.
func NewH2Server(socket SocketCapability, log *logrus.Entry) *Connection {
	return &Connection{h2: &ConnectionH2{
		position:  PositionServer,
		readiness: ReadinessState{Interest: READABLE | HUP | ERROR},
		socket:    socket,
		log:       orDiscard(log),
		decoder:   hpack.NewDecoder(defaultH2Settings().HeaderTableSize, nil),
		settings:  defaultH2Settings(),
		state:     stateClientPreface,
		expect:    expectation{valid: true, stream: ConnectionScope, bytes: 24 + frameHeaderLen},
		streams:   map[uint32]GlobalStreamID{0: ConnectionScope},
	}}
}

// NewH2Client creates a client-position H2 connection that will write
// the preface and local SETTINGS first (spec §9 open question (a)).
func NewH2Client(socket SocketCapability, log *logrus.Entry) *Connection {
	return &Connection{h2: &ConnectionH2{
		position:  PositionClient,
		readiness: ReadinessState{Interest: WRITABLE | HUP | ERROR},
		socket:    socket,
		log:       orDiscard(log),
		decoder:   hpack.NewDecoder(defaultH2Settings().HeaderTableSize, nil),
		settings:  defaultH2Settings(),
		state:     stateClientPreface,
		streams:   map[uint32]GlobalStreamID{0: ConnectionScope},
	}}
}

func orDiscard(log *logrus.Entry) *logrus.Entry {
	if log != nil {
		return log
	}
	discard := logrus.New()
	discard.SetOutput(discardWriter{})
	return logrus.NewEntry(discard)
}

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }

// Readiness returns the connection's readiness state.
func (c *Connection) Readiness() *ReadinessState {
	if c.h1 != nil {
		return &c.h1.readiness
	}
	return &c.h2.readiness
}

// Readable dispatches to the bound protocol's readable handler.
func (c *Connection) Readable(streams *StreamTable) {
	if c.h1 != nil {
		c.h1.readable(streams)
		return
	}
	c.h2.readable(streams)
}

// Writable dispatches to the bound protocol's writable handler.
func (c *Connection) Writable(streams *StreamTable) {
	if c.h1 != nil {
		c.h1.writable(streams)
		return
	}
	c.h2.writable(streams)
}

// Socket exposes the underlying capability, e.g. for Mux.Close's final
// drain read.
func (c *Connection) Socket() SocketCapability {
	if c.h1 != nil {
		return c.h1.socket
	}
	return c.h2.socket
}

// Keepalive runs the PING keepalive check (spec §5, config.go's
// KeepAliveInterval/KeepAliveTimeout): a no-op for H1, which has no
// in-band keepalive primitive of its own.
func (c *Connection) Keepalive(streams *StreamTable, now time.Time, interval, timeout time.Duration) error {
	if c.h1 != nil {
		return nil
	}
	return c.h2.CheckKeepalive(streams, now, interval, timeout)
}
