package mux

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/net/http2/hpack"

	"github.com/coremux/coremux/internal/h1msg"
)

// flowErr marks a dispatch failure that must close the connection with
// FLOW_CONTROL_ERROR rather than PROTOCOL_ERROR (spec §4.3, §7).
type flowErr struct{ msg string }

func (e flowErr) Error() string { return e.msg }

// readable drives the H2 Engine's read side through every state (spec
// §4.3): preface, the two SETTINGS exchanges, then the steady-state
// header/frame loop shared by both positions.
func (c *ConnectionH2) readable(streams *StreamTable) {
	if !c.expect.valid {
		c.readiness.Event = c.readiness.Event.Remove(READABLE)
		return
	}
	buf, complete, closed := c.readExpected(streams)
	if closed {
		c.readiness.Event = c.readiness.Event.Union(HUP)
		return
	}
	if !complete {
		return
	}
	switch c.state {
	case stateClientPreface:
		c.handleClientPreface(streams, buf)
	case stateClientSettings:
		c.handleClientSettingsBody(streams, buf)
	case stateServerSettings:
		c.handleServerSettings(streams, buf)
	case stateHeader:
		c.handleHeader(streams, buf)
	case stateFrame:
		c.handleFrameBody(streams, buf)
	default:
		c.readiness.Event = c.readiness.Event.Remove(READABLE)
	}
}

// readExpected reads up to c.expect.bytes more bytes into the target
// buffer, capping the socket read at the remaining count so a buffer
// shared across frame boundaries never overruns into the next frame.
func (c *ConnectionH2) readExpected(streams *StreamTable) (buf *h1msg.Message, complete bool, closed bool) {
	buf = streams.Local(c.position, c.expect.stream)
	space := buf.Space()
	if len(space) > c.expect.bytes {
		space = space[:c.expect.bytes]
	}
	if len(space) == 0 {
		return buf, true, false
	}
	n, status := c.socket.SocketRead(space)
	if n > 0 {
		buf.Fill(n)
		c.expect.bytes -= n
		c.lastActivity = time.Now()
	}
	switch status {
	case StatusWouldBlock:
		c.readiness.Event = c.readiness.Event.Remove(READABLE)
		return buf, false, false
	case StatusClosed, StatusError:
		return buf, false, true
	case StatusContinue:
		if n == 0 {
			c.readiness.Event = c.readiness.Event.Remove(READABLE)
			return buf, false, false
		}
	}
	return buf, c.expect.bytes == 0, false
}

// handleClientPreface validates the 24-octet magic plus the client's
// first SETTINGS frame header (spec §4.3, server position only).
func (c *ConnectionH2) handleClientPreface(streams *StreamTable, buf *h1msg.Message) {
	data := buf.Raw()
	if len(data) < len(h2Preface) || string(data[:len(h2Preface)]) != h2Preface {
		c.protocolFail(streams, "missing or malformed client connection preface")
		return
	}
	hdr, err := decodeFrameHeader(data[len(h2Preface):])
	if err != nil || hdr.Type != FrameSettings || hdr.Flags != 0 || hdr.StreamID != 0 {
		c.protocolFail(streams, "expected SETTINGS immediately after the preface")
		return
	}
	buf.Clear()
	c.pendingHdr = hdr
	c.state = stateClientSettings
	c.expect = expectation{valid: true, stream: ConnectionScope, bytes: int(hdr.PayloadLen)}
}

// handleServerSettings is the client position's await of the server's
// first SETTINGS frame once it has written its own preface; it is
// reached twice, once for the frame header and once for the body. The
// server position's first SETTINGS body is handled by
// handleClientSettingsBody instead.
func (c *ConnectionH2) handleServerSettings(streams *StreamTable, buf *h1msg.Message) {
	if !c.awaitingSettingsBody {
		hdr, err := decodeFrameHeader(buf.Raw())
		if err != nil || hdr.Type != FrameSettings || hdr.StreamID != 0 {
			c.protocolFail(streams, "expected peer SETTINGS")
			return
		}
		buf.Clear()
		c.pendingHdr = hdr
		c.awaitingSettingsBody = true
		c.expect = expectation{valid: true, stream: ConnectionScope, bytes: int(hdr.PayloadLen)}
		return
	}
	entries, err := decodeSettings(buf.Raw())
	if err != nil {
		c.protocolFail(streams, "malformed SETTINGS body")
		return
	}
	buf.Clear()
	c.settings.apply(entries)
	c.awaitingSettingsBody = false
	c.queueControl(streams, encodeFrame(FrameSettings, FlagAck, 0, nil))
	c.state = stateHeader
	c.expect = expectation{valid: true, stream: ConnectionScope, bytes: frameHeaderLen}
}

// handleClientSettingsBody is the server position's counterpart: apply
// the client's first SETTINGS, then queue our own SETTINGS plus the
// ACK of theirs (spec §4.3, §9 open question (b): payload_len is
// always computed from the real encoded body, never hardcoded).
func (c *ConnectionH2) handleClientSettingsBody(streams *StreamTable, buf *h1msg.Message) {
	entries, err := decodeSettings(buf.Raw())
	if err != nil {
		c.protocolFail(streams, "malformed SETTINGS body")
		return
	}
	buf.Clear()
	c.settings.apply(entries)
	c.queueControl(streams, encodeFrame(FrameSettings, 0, 0, encodeSettings(defaultH2Settings())))
	c.queueControl(streams, encodeFrame(FrameSettings, FlagAck, 0, nil))
	c.readiness.Interest = c.readiness.Interest.Remove(READABLE).Union(WRITABLE)
	c.state = stateServerSettings
}

// queueControl appends an already-encoded frame to the connection's
// outbound control staging area (spec §4.3: "streams[0].back" in the
// source's terms, generalized here to the position-aware Peer slot).
func (c *ConnectionH2) queueControl(streams *StreamTable, frame []byte) {
	out := streams.Peer(c.position, ConnectionScope)
	if n := out.AppendRaw(frame); n < len(frame) {
		c.log.WithField("queued", n).WithField("frame_len", len(frame)).
			Warn("h2: control queue full, dropping frame tail")
	}
	c.readiness.Interest = c.readiness.Interest.Union(WRITABLE)
}

// handleHeader parses one 9-octet frame header and resolves where its
// payload belongs: the connection scope for everything except DATA,
// which lands directly in its stream's own buffer since those bytes
// are real body content to be forwarded, not scratch (spec §4.3, §9
// supplemented feature: DATA must actually append and debit, unlike
// the source's unimplemented stub).
func (c *ConnectionH2) handleHeader(streams *StreamTable, buf *h1msg.Message) {
	hdr, err := decodeFrameHeader(buf.Raw())
	buf.Clear()
	if err != nil {
		c.protocolFail(streams, "malformed frame header")
		return
	}
	if c.continuing != 0 && (hdr.Type != FrameContinuation || hdr.StreamID != c.continuing) {
		c.protocolFail(streams, "HEADERS and CONTINUATION frames for a stream must be contiguous")
		return
	}
	if hdr.PayloadLen > c.settings.MaxFrameSize {
		c.protocolFail(streams, "frame payload exceeds max_frame_size")
		return
	}
	c.pendingHdr = hdr

	target, refused := c.resolveTarget(streams, hdr)
	if refused {
		c.refusedWire = hdr.StreamID
		c.expect = expectation{valid: true, stream: ConnectionScope, bytes: int(hdr.PayloadLen)}
		c.state = stateFrame
		return
	}
	c.headerTarget = target

	bufTarget := ConnectionScope
	if hdr.Type == FrameData {
		bufTarget = target
	}
	c.expect = expectation{valid: true, stream: bufTarget, bytes: int(hdr.PayloadLen)}
	c.state = stateFrame
}

// resolveTarget maps a wire stream_id to its GlobalStreamID, minting a
// new Stream on first sight (spec §4.3). refused is true when the pool
// couldn't satisfy the checkout or the connection is draining after a
// GOAWAY, in which case a REFUSED_STREAM RST_STREAM has already been
// queued and the caller must still read and discard the frame body to
// stay in sync with the wire.
func (c *ConnectionH2) resolveTarget(streams *StreamTable, hdr FrameHeader) (target GlobalStreamID, refused bool) {
	if hdr.StreamID == 0 {
		return ConnectionScope, false
	}
	if idx, ok := c.streams[hdr.StreamID]; ok {
		return idx, false
	}
	if c.goAway {
		c.refuseStream(streams, hdr.StreamID)
		return 0, true
	}
	idx, err := streams.CreateStream(uuid.New(), int32(c.settings.InitialWindowSize))
	if err != nil {
		c.refuseStream(streams, hdr.StreamID)
		return 0, true
	}
	c.streams[hdr.StreamID] = idx
	return idx, false
}

func (c *ConnectionH2) refuseStream(streams *StreamTable, wireID uint32) {
	c.queueControl(streams, encodeFrame(FrameRstStream, 0, wireID, rstStreamPayload(ErrCodeRefusedStream)))
}

// handleFrameBody is reached once a frame's full payload has arrived.
// DATA's bytes stay in the stream's own buffer for the writable path
// to forward; everything else is scratch, copied out and cleared.
func (c *ConnectionH2) handleFrameBody(streams *StreamTable, buf *h1msg.Message) {
	hdr := c.pendingHdr
	if c.refusedWire != 0 {
		buf.Clear()
		c.refusedWire = 0
		c.advanceToNextHeader()
		return
	}

	var payload []byte
	if hdr.Type == FrameData {
		payload = buf.Raw()[buf.Filled()-int(hdr.PayloadLen):]
	} else {
		payload = append([]byte(nil), buf.Raw()...)
		buf.Clear()
	}

	if err := c.dispatch(streams, hdr, c.headerTarget, payload); err != nil {
		if fe, ok := err.(flowErr); ok {
			c.flowControlFail(streams, fe.msg)
		} else {
			c.protocolFail(streams, err.Error())
		}
		return
	}
	if c.goAway {
		c.checkDrained(streams)
	}
	c.advanceToNextHeader()
}

func (c *ConnectionH2) advanceToNextHeader() {
	c.state = stateHeader
	c.expect = expectation{valid: true, stream: ConnectionScope, bytes: frameHeaderLen}
}

// dispatch applies one frame's semantics (spec §4.3, §9 supplemented
// features): every frame type the wire format defines is at least
// recognized, with DATA, HEADERS/CONTINUATION, SETTINGS, PING, GOAWAY
// and WINDOW_UPDATE fully implemented rather than left as stubs.
func (c *ConnectionH2) dispatch(streams *StreamTable, hdr FrameHeader, target GlobalStreamID, payload []byte) error {
	switch hdr.Type {
	case FrameData:
		return c.handleData(streams, hdr, payload)
	case FrameHeaders:
		return c.handleHeaders(streams, hdr, target, payload)
	case FrameContinuation:
		return c.handleContinuation(streams, hdr, payload)
	case FramePriority:
		if len(payload) != 5 {
			return fmt.Errorf("malformed PRIORITY frame")
		}
		return nil
	case FrameRstStream:
		if len(payload) != 4 {
			return fmt.Errorf("malformed RST_STREAM frame")
		}
		delete(c.streams, hdr.StreamID)
		if hdr.StreamID != 0 {
			streams.ReleaseStream(target)
		}
		return nil
	case FrameSettings:
		return c.handleSettingsFrame(streams, hdr, payload)
	case FramePushPromise:
		return fmt.Errorf("PUSH_PROMISE is not accepted by this proxy")
	case FramePing:
		return c.handlePing(streams, hdr, payload)
	case FrameGoAway:
		c.goAway = true
		return nil
	case FrameWindowUpdate:
		return c.handleWindowUpdate(streams, hdr, target, payload)
	default:
		// Unknown frame types are ignored per RFC 9113 §4.1, not an error.
		return nil
	}
}

// handleData appends to the target stream's own buffer and debits both
// windows (spec §4.3, §9 supplement (a)); once either window runs dry,
// reading pauses on this connection until a WINDOW_UPDATE replenishes it.
func (c *ConnectionH2) handleData(streams *StreamTable, hdr FrameHeader, payload []byte) error {
	if hdr.StreamID == 0 {
		return fmt.Errorf("DATA frame on stream 0")
	}
	target := c.headerTarget
	buf := streams.Local(c.position, target)
	buf.SyncRaw()

	s := streams.At(target)
	s.Window -= int32(len(payload))
	c.peerWindow -= int32(len(payload))
	if s.Window <= 0 || c.peerWindow <= 0 {
		c.readiness.Interest = c.readiness.Interest.Remove(READABLE)
	}
	if hdr.Flags&FlagEndStream != 0 {
		buf.MarkTerminated()
	}
	return nil
}

// handleHeaders decodes (or, if END_HEADERS is unset, starts
// accumulating) a HEADERS frame's header-block fragment (spec §4.3,
// §9 supplement (e): CONTINUATION contiguity).
func (c *ConnectionH2) handleHeaders(streams *StreamTable, hdr FrameHeader, target GlobalStreamID, payload []byte) error {
	if hdr.StreamID == 0 {
		return fmt.Errorf("HEADERS frame on stream 0")
	}
	frag, err := stripHeadersFraming(hdr, payload)
	if err != nil {
		return err
	}
	endStream := hdr.Flags&FlagEndStream != 0
	if hdr.Flags&FlagEndHeaders == 0 {
		c.continuing = hdr.StreamID
		c.headerBuf = append(c.headerBuf[:0], frag...)
		c.headerEOS = endStream
		c.headerPendingTarget = target
		return nil
	}
	return c.commitHeaders(streams, target, frag, endStream)
}

func (c *ConnectionH2) handleContinuation(streams *StreamTable, hdr FrameHeader, payload []byte) error {
	if c.continuing == 0 || hdr.StreamID != c.continuing {
		return fmt.Errorf("unexpected CONTINUATION frame")
	}
	c.headerBuf = append(c.headerBuf, payload...)
	if hdr.Flags&FlagEndHeaders == 0 {
		return nil
	}
	frag := c.headerBuf
	target := c.headerPendingTarget
	endStream := c.headerEOS
	c.continuing = 0
	c.headerBuf = nil
	return c.commitHeaders(streams, target, frag, endStream)
}

func (c *ConnectionH2) commitHeaders(streams *StreamTable, target GlobalStreamID, frag []byte, endStream bool) error {
	var headers []h1msg.Header
	c.decoder.SetEmitFunc(func(f hpack.HeaderField) {
		headers = append(headers, h1msg.Header{Name: f.Name, Value: f.Value})
	})
	if _, err := c.decoder.Write(frag); err != nil {
		return fmt.Errorf("hpack: %w", err)
	}
	dst := streams.Local(c.position, target)
	dst.SetHeaders(synthesizeStartLine(c.position, headers), headers)
	if endStream {
		dst.MarkTerminated()
	}
	return nil
}

// stripHeadersFraming strips the optional pad-length and priority
// fields off a HEADERS payload, leaving only the header-block fragment.
func stripHeadersFraming(hdr FrameHeader, payload []byte) ([]byte, error) {
	b := payload
	if hdr.Flags&FlagPadded != 0 {
		if len(b) < 1 {
			return nil, fmt.Errorf("HEADERS frame too short for PADDED flag")
		}
		padLen := int(b[0])
		b = b[1:]
		if padLen > len(b) {
			return nil, fmt.Errorf("HEADERS pad length exceeds frame")
		}
		b = b[:len(b)-padLen]
	}
	if hdr.Flags&FlagPriority != 0 {
		if len(b) < 5 {
			return nil, fmt.Errorf("HEADERS frame too short for PRIORITY flag")
		}
		b = b[5:]
	}
	return b, nil
}

// synthesizeStartLine builds a displayable request/status line out of
// the HPACK pseudo-headers, the way net/http2's server synthesizes a
// *http.Request line from :method/:path.
func synthesizeStartLine(pos Position, headers []h1msg.Header) string {
	get := func(name string) string {
		for _, h := range headers {
			if h.Name == name {
				return h.Value
			}
		}
		return ""
	}
	if pos == PositionServer {
		return get(":method") + " " + get(":path") + " HTTP/2"
	}
	return "HTTP/2 " + get(":status")
}

func (c *ConnectionH2) handleSettingsFrame(streams *StreamTable, hdr FrameHeader, payload []byte) error {
	if hdr.Flags&FlagAck != 0 {
		return nil
	}
	entries, err := decodeSettings(payload)
	if err != nil {
		return err
	}
	c.settings.apply(entries)
	c.queueControl(streams, encodeFrame(FrameSettings, FlagAck, 0, nil))
	return nil
}

func (c *ConnectionH2) handlePing(streams *StreamTable, hdr FrameHeader, payload []byte) error {
	if len(payload) != 8 {
		return fmt.Errorf("malformed PING frame")
	}
	if hdr.Flags&FlagAck != 0 {
		c.pingOutstanding = false
		return nil
	}
	c.queueControl(streams, encodeFrame(FramePing, FlagAck, 0, payload))
	return nil
}

// CheckKeepalive is the external scheduler's PING keepalive tick (spec
// §5: no internal timers, so cadence is driven from outside exactly the
// way Timeout is), grounded on the teacher's keepalive ticker pair
// (smux's tickerPing/tickerTimeout): if interval has elapsed since the
// last byte was seen on this connection and no PING is already
// outstanding, queue one; if a PING has been outstanding longer than
// timeout, the peer is presumed dead and the caller should close the
// session. A zero interval disables the check.
func (c *ConnectionH2) CheckKeepalive(streams *StreamTable, now time.Time, interval, timeout time.Duration) error {
	if interval <= 0 || c.state == stateClientPreface || c.state == stateClientSettings || c.state == stateServerSettings {
		return nil
	}
	if c.pingOutstanding {
		if now.Sub(c.pingSentAt) >= timeout {
			return ErrTimeout
		}
		return nil
	}
	if now.Sub(c.lastActivity) < interval {
		return nil
	}
	payload := make([]byte, 8)
	copy(payload, encodeUint32(uint32(now.Unix())))
	c.queueControl(streams, encodeFrame(FramePing, 0, 0, payload))
	c.pingOutstanding = true
	c.pingSentAt = now
	return nil
}

// handleWindowUpdate credits the connection or stream window, checking
// the 2^31-1 overflow ceiling (spec §4.3, §7: a window that would
// overflow is a flow-control error, not silently clamped).
func (c *ConnectionH2) handleWindowUpdate(streams *StreamTable, hdr FrameHeader, target GlobalStreamID, payload []byte) error {
	inc, err := windowUpdateIncrement(payload)
	if err != nil {
		return err
	}
	const maxWindow = int64(1<<31 - 1)
	if hdr.StreamID == 0 {
		next := int64(c.peerWindow) + int64(inc)
		if next > maxWindow {
			return flowErr{"connection flow-control window overflow"}
		}
		c.peerWindow = int32(next)
	} else {
		s := streams.At(target)
		next := int64(s.Window) + int64(inc)
		if next > maxWindow {
			return flowErr{"stream flow-control window overflow"}
		}
		s.Window = int32(next)
	}
	c.readiness.Interest = c.readiness.Interest.Union(READABLE)
	return nil
}

// checkDrained raises HUP once every stream has both sides terminated
// after a GOAWAY, so the Session can retire this connection (spec §4.3,
// §9 supplement (d): graceful drain).
func (c *ConnectionH2) checkDrained(streams *StreamTable) {
	for wireID, idx := range c.streams {
		if wireID == 0 {
			continue
		}
		s := streams.At(idx)
		if !s.Front.Terminated() || !s.Back.Terminated() {
			return
		}
	}
	c.readiness.Event = c.readiness.Event.Union(HUP)
}

// protocolFail and flowControlFail close the connection with the
// matching GOAWAY error code (spec §7) and raise ERROR so the Session
// retires it on the next readiness pass.
func (c *ConnectionH2) protocolFail(streams *StreamTable, msg string) {
	c.fail(streams, ErrCodeProtocol, msg)
}

func (c *ConnectionH2) flowControlFail(streams *StreamTable, msg string) {
	c.fail(streams, ErrCodeFlowControl, msg)
}

func (c *ConnectionH2) fail(streams *StreamTable, code uint32, msg string) {
	c.log.WithField("error_code", code).Warn("h2: " + msg)
	c.state = stateError
	c.queueControl(streams, encodeFrame(FrameGoAway, 0, 0, goAwayPayload(0, code)))
	c.readiness.Event = c.readiness.Event.Union(ERROR)
}

// writable drives the H2 Engine's write side (spec §4.3): the client
// position's preface/SETTINGS write, the server position's handshake
// response flush, and the steady-state control-then-data loop shared
// by both positions afterward.
func (c *ConnectionH2) writable(streams *StreamTable) {
	switch c.state {
	case stateClientPreface:
		if c.position == PositionClient {
			c.writeClientPreface(streams)
		}
		return
	case stateClientSettings:
		// Still reading the client's first SETTINGS body; readable
		// drives this transition, nothing to flush yet.
		return
	case stateServerSettings:
		if c.position == PositionServer {
			c.drainServerSettings(streams)
		}
		return
	}
	c.flushControl(streams)
	if len(streams.Peer(c.position, ConnectionScope).PendingWrite()) > 0 {
		return
	}
	c.flushStreamData(streams)
}

func (c *ConnectionH2) writeClientPreface(streams *StreamTable) {
	out := streams.Peer(c.position, ConnectionScope)
	if out.Filled() == 0 {
		out.AppendRaw([]byte(h2Preface))
		c.queueControl(streams, encodeFrame(FrameSettings, 0, 0, encodeSettings(defaultH2Settings())))
	}
	c.flushControl(streams)
	if len(out.PendingWrite()) == 0 {
		c.readiness.Interest = c.readiness.Interest.Remove(WRITABLE).Union(READABLE)
		c.state = stateServerSettings
		c.expect = expectation{valid: true, stream: ConnectionScope, bytes: frameHeaderLen}
	}
}

func (c *ConnectionH2) drainServerSettings(streams *StreamTable) {
	c.flushControl(streams)
	out := streams.Peer(c.position, ConnectionScope)
	if len(out.PendingWrite()) == 0 {
		c.readiness.Interest = c.readiness.Interest.Remove(WRITABLE).Union(READABLE)
		c.state = stateHeader
		c.expect = expectation{valid: true, stream: ConnectionScope, bytes: frameHeaderLen}
	}
}

// flushControl writes one chunk of the connection-scope control queue
// (SETTINGS, acks, PING-ACK, RST_STREAM, GOAWAY).
func (c *ConnectionH2) flushControl(streams *StreamTable) {
	out := streams.Peer(c.position, ConnectionScope)
	pending := out.PendingWrite()
	if len(pending) == 0 {
		return
	}
	n, status := c.socket.SocketWriteVectored([][]byte{pending})
	switch status {
	case StatusContinue:
		if n > 0 {
			out.Advance(n)
		} else {
			c.readiness.Event = c.readiness.Event.Remove(WRITABLE)
		}
	case StatusWouldBlock:
		c.readiness.Event = c.readiness.Event.Remove(WRITABLE)
	case StatusClosed, StatusError:
		c.readiness.Event = c.readiness.Event.Union(HUP)
	}
}

// flushStreamData wraps one mapped stream's pending outbound bytes into
// a DATA frame (chunked to max_frame_size) and writes it, resuming a
// partial write from the exact offset the socket last accepted rather
// than regenerating and re-sending the frame from scratch — the bytes
// already on the wire must never be replayed.
func (c *ConnectionH2) flushStreamData(streams *StreamTable) {
	if len(c.pendingData) > 0 {
		if !c.writePendingData(streams) {
			return
		}
	}
	for wireID, idx := range c.streams {
		if wireID == 0 {
			continue
		}
		peer := streams.Peer(c.position, idx)
		pending := peer.PendingWrite()
		if len(pending) == 0 {
			continue
		}
		chunkLen := len(pending)
		if chunkLen > int(c.settings.MaxFrameSize) {
			chunkLen = int(c.settings.MaxFrameSize)
		}
		chunk := pending[:chunkLen]
		var flags uint8
		if chunkLen == len(pending) && peer.Terminated() {
			flags = FlagEndStream
		}
		c.pendingData = encodeFrame(FrameData, flags, wireID, chunk)
		c.pendingDataOffset = 0
		c.pendingDataIdx = idx
		c.pendingDataChunk = chunkLen
		c.writePendingData(streams)
		return
	}
	for wireID, idx := range c.streams {
		if wireID != 0 && len(streams.Peer(c.position, idx).PendingWrite()) > 0 {
			return
		}
	}
	c.readiness.Interest = c.readiness.Interest.Remove(WRITABLE)
}

// writePendingData pushes as much of the in-flight DATA frame as the
// socket accepts and only calls peer.Advance — consuming the chunk from
// the stream's own buffer — once the whole frame, header included, has
// actually reached the wire. Returns true once pendingData has fully
// drained.
func (c *ConnectionH2) writePendingData(streams *StreamTable) bool {
	n, status := c.socket.SocketWriteVectored([][]byte{c.pendingData[c.pendingDataOffset:]})
	switch status {
	case StatusContinue:
		c.pendingDataOffset += n
		if c.pendingDataOffset < len(c.pendingData) {
			if n == 0 {
				c.readiness.Event = c.readiness.Event.Remove(WRITABLE)
			}
			return false
		}
		streams.Peer(c.position, c.pendingDataIdx).Advance(c.pendingDataChunk)
		c.pendingData = nil
		c.pendingDataOffset = 0
		return true
	case StatusWouldBlock:
		c.readiness.Event = c.readiness.Event.Remove(WRITABLE)
		return false
	case StatusClosed, StatusError:
		c.readiness.Event = c.readiness.Event.Union(HUP)
		return false
	}
	return false
}
