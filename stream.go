package mux

import (
	"github.com/google/uuid"

	"github.com/coremux/coremux/internal/h1msg"
	"github.com/coremux/coremux/internal/pool"
)

// Position is a connection's role: Server reads requests and writes
// responses, Client writes requests and reads responses (spec
// Glossary).
type Position int

const (
	PositionServer Position = iota
	PositionClient
)

// GlobalStreamID is the dense, session-lifetime-stable index a Stream
// is addressed by, independent of any H2 wire stream id (spec
// Glossary). Index 0 always exists and is the H2 connection scope.
type GlobalStreamID int

// ConnectionScope is the reserved global index for H2 connection-level
// framing (preface, SETTINGS, PING, GOAWAY, WINDOW_UPDATE on stream 0).
const ConnectionScope GlobalStreamID = 0

// Stream is one logical request/response exchange's state: its
// identifier, H2 flow-control window, and the two framed HTTP message
// buffers (spec §3).
type Stream struct {
	RequestID uuid.UUID
	Window    int32
	Front     *h1msg.Message // kind Request
	Back      *h1msg.Message // kind Response
}

// local/peer return the buffer this Position reads into (local) and
// the one it serializes from (peer) — spec §4.1 polarity helpers. A
// Server position reads into front and writes from back; a Client
// position reverses this.
func (s *Stream) local(pos Position) *h1msg.Message {
	if pos == PositionClient {
		return s.Back
	}
	return s.Front
}

func (s *Stream) peer(pos Position) *h1msg.Message {
	if pos == PositionClient {
		return s.Front
	}
	return s.Back
}

// StreamTable owns every Stream in a session, minting new ones and
// enforcing pool pressure (spec §4.1). It holds only a weak reference
// to the pool so a forcibly terminated pool can't be resurrected by a
// late checkout (spec §5, §9).
type StreamTable struct {
	streams []*Stream
	regions []*pool.Region // parallel slice: the two regions backing each Stream
	poolRef *pool.Ref
}

// NewStreamTable creates a table bound to ref and immediately mints
// global index 0, the session-scoped stream every Connection (an H1's
// sole binding, an H2's connection-level frames) addresses from the
// moment it exists (spec §3, §4.1 invariant 1: "index 0 exists for
// every session"). A pool that can't even supply index 0's two regions
// fails the whole session before any connection is touched.
func NewStreamTable(ref *pool.Ref) (*StreamTable, error) {
	t := &StreamTable{poolRef: ref}
	if _, err := t.CreateStream(uuid.Nil, 0); err != nil {
		return nil, err
	}
	return t, nil
}

// Len reports how many streams have been created.
func (t *StreamTable) Len() int { return len(t.streams) }

// CreateStream acquires two pool regions atomically — if either is
// unavailable, neither is retained — and appends a new Stream,
// returning its stable global index (spec §3, §4.1, invariant 4).
func (t *StreamTable) CreateStream(requestID uuid.UUID, initialWindow int32) (GlobalStreamID, error) {
	p, ok := t.poolRef.Upgrade()
	if !ok {
		return 0, ErrBufferCapacityReached
	}
	front, ok := p.Checkout()
	if !ok {
		return 0, ErrBufferCapacityReached
	}
	back, ok := p.Checkout()
	if !ok {
		front.Release()
		return 0, ErrBufferCapacityReached
	}

	s := &Stream{
		RequestID: requestID,
		Window:    initialWindow,
		Front:     h1msg.NewMessage(h1msg.KindRequest, front),
		Back:      h1msg.NewMessage(h1msg.KindResponse, back),
	}
	t.streams = append(t.streams, s)
	t.regions = append(t.regions, front, back)
	return GlobalStreamID(len(t.streams) - 1), nil
}

// At returns the Stream at index i. Out-of-range access is a
// programmer error, as in the source (spec §4.1: "panic-free indexing
// is the caller's duty").
func (t *StreamTable) At(i GlobalStreamID) *Stream { return t.streams[i] }

// Local returns the read target for pos on stream i.
func (t *StreamTable) Local(pos Position, i GlobalStreamID) *h1msg.Message {
	return t.streams[i].local(pos)
}

// Peer returns the write source for pos on stream i.
func (t *StreamTable) Peer(pos Position, i GlobalStreamID) *h1msg.Message {
	return t.streams[i].peer(pos)
}

// ReleaseStream returns one stream's two pool regions immediately,
// without disturbing its slot or global index (both stay stable per
// spec §9's append-only arena). Used when a stream's peer-side state
// reaches a terminal one before the session as a whole closes, e.g. an
// H2 RST_STREAM (spec §3: "destroyed when ... its buffers are fully
// drained"). Safe to call more than once for the same index.
func (t *StreamTable) ReleaseStream(i GlobalStreamID) {
	front, back := 2*int(i), 2*int(i)+1
	if front < len(t.regions) {
		t.regions[front].Release()
		t.regions[front] = nil
	}
	if back < len(t.regions) {
		t.regions[back].Release()
		t.regions[back] = nil
	}
}

// Release returns every region this table ever checked out. Called on
// session close; it does not panic if the pool has already gone away,
// nor if some regions were already freed early via ReleaseStream (a
// *pool.Region's Release is nil-receiver-safe).
func (t *StreamTable) Release() {
	for _, r := range t.regions {
		r.Release()
	}
}
