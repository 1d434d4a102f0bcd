package mux

// readable implements the H1 Engine's readable path (spec §4.2): read
// into the local buffer, run the H1 parser, drop readable interest
// once the message is complete; clear the readable event when the
// socket has nothing more to give for now.
func (c *ConnectionH1) readable(streams *StreamTable) {
	local := streams.Local(c.position, c.stream)

	space := local.Space()
	if len(space) == 0 {
		// region exhausted without a terminated message; stop reading
		// until the peer side drains it.
		c.readiness.Event = c.readiness.Event.Remove(READABLE)
		return
	}
	n, status := c.socket.SocketRead(space)
	if n > 0 {
		local.Fill(n)
	}
	switch status {
	case StatusContinue:
		if n == 0 {
			c.readiness.Event = c.readiness.Event.Remove(READABLE)
		}
	case StatusWouldBlock:
		c.readiness.Event = c.readiness.Event.Remove(READABLE)
		return
	case StatusClosed, StatusError:
		c.readiness.Event = c.readiness.Event.Union(HUP)
		return
	}

	if err := local.Parse(); err != nil {
		c.log.WithError(err).Warn("h1: malformed message")
		c.readiness.Event = c.readiness.Event.Union(ERROR)
		return
	}
	if local.Terminated() {
		c.readiness.Interest = c.readiness.Interest.Remove(READABLE)
	}
}

// writable implements the H1 Engine's writable path (spec §4.2): turn
// the peer buffer's parsed blocks into a vectored write, advance on
// progress, drop interest once drained and nothing more is expected.
func (c *ConnectionH1) writable(streams *StreamTable) {
	peer := streams.Peer(c.position, c.stream)

	pending := peer.PendingWrite()
	if len(pending) == 0 {
		if peer.Terminated() {
			c.readiness.Interest = c.readiness.Interest.Remove(WRITABLE)
		}
		return
	}

	bufs := [][]byte{pending}
	n, status := c.socket.SocketWriteVectored(bufs)
	switch status {
	case StatusContinue:
		if n > 0 {
			peer.Advance(n)
		} else {
			c.readiness.Event = c.readiness.Event.Remove(WRITABLE)
		}
	case StatusWouldBlock:
		c.readiness.Event = c.readiness.Event.Remove(WRITABLE)
	case StatusClosed, StatusError:
		c.readiness.Event = c.readiness.Event.Union(HUP)
	}
}

