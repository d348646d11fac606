package http2

import (
	"bufio"
	"context"
	"crypto/rand"
	"errors"
	"io"
	"net"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
)

// Conn is the HTTP/2 client connection engine: a single goroutine
// owning all mutable connection state (settings, flow-control
// windows, the stream registry, HPACK tables). Every other exported
// method only ever talks to that goroutine through channels; nothing
// touches the state directly, so none of it needs a mutex.
type Conn struct {
	raw net.Conn
	bw  *bufio.Writer

	opts ConnOpts

	local Settings
	fc    *flowControl

	streams *streamRegistry

	enc *HPack
	dec *HPack

	reqCh   chan *pendingRequest
	pingCh  chan chan error
	closeCh chan struct{}
	doneCh  chan struct{}

	bytesCh  chan []byte
	readErrc chan error

	// Events reports pings, pushes and closure to anyone listening;
	// sends are non-blocking, a slow consumer just misses events.
	Events chan Event

	closed    int32
	lastErr   error
	outstPing [8]byte
	pingWait  chan error

	// sentConnWindowUpdate guards the one-time bulk connection receive
	// window enlargement sent once our SETTINGS is acked.
	sentConnWindowUpdate bool

	// contStreamID is the wire stream id the next frame must match once
	// a HEADERS/PUSH_PROMISE fragment is open without END_HEADERS; 0
	// means no header block is in progress. contTarget is the stream
	// whose headerBlock the matching CONTINUATION appends to, which
	// differs from contStreamID for a pushed stream's header block.
	contStreamID uint32
	contTarget   uint32

	group errgroup.Group
}

func newConn(raw net.Conn, opts ConnOpts) *Conn {
	if opts.PingInterval <= 0 {
		opts.PingInterval = DefaultPingInterval
	}

	c := &Conn{
		raw:      raw,
		bw:       bufio.NewWriterSize(raw, DefaultMaxFrameSize),
		opts:     opts,
		fc:       newFlowControl(),
		streams:  newStreamRegistry(),
		enc:      AcquireHPack(),
		dec:      AcquireHPack(),
		reqCh:    make(chan *pendingRequest, 64),
		pingCh:   make(chan chan error, 4),
		closeCh:  make(chan struct{}),
		doneCh:   make(chan struct{}),
		bytesCh:  make(chan []byte, 16),
		readErrc: make(chan error, 1),
		Events:   make(chan Event, 16),
	}

	c.local.Reset()
	c.local.SetPush(false)
	c.local.SetMaxConcurrentStreams(InfiniteStreams)

	if opts.MaxConnWindow > 0 {
		c.fc.connRecvWindow = opts.MaxConnWindow
	}

	return c
}

// handshake writes the client preface, initial SETTINGS and, when
// ConnOpts.MaxConnWindow exceeds DefaultInitialWindowSize, an initial
// WINDOW_UPDATE, then synchronously waits for the server's first
// SETTINGS frame and acknowledges it. The engine goroutine is not
// running yet when this executes.
func (c *Conn) handshake() error {
	windowDelta := int32(0)
	if c.fc.connRecvWindow > DefaultInitialWindowSize {
		windowDelta = c.fc.connRecvWindow - DefaultInitialWindowSize
	}

	if err := writePreface(c.bw, &c.local, windowDelta); err != nil {
		return &TransportError{Err: err}
	}

	br := bufio.NewReaderSize(c.raw, DefaultMaxFrameSize)

	buf := make([]byte, 0, DefaultMaxFrameSize)
	for {
		frh, consumed, err := DecodeFrame(buf, uint32(c.local.MaxFrameSize()))
		if err == nil {
			if frh.Type() != FrameSettings {
				ReleaseFrameHeader(frh)
				return &ProtocolError{Code: ProtocolErrorCode, Msg: "expected SETTINGS as first frame"}
			}

			st := frh.Body().(*Settings)
			if !st.IsAck() {
				c.fc.applyRemoteSettings(st)
				ReleaseFrameHeader(frh)

				ackFrh := AcquireFrameHeader()
				ack := AcquireSettings()
				ack.SetAck(true)
				ackFrh.SetBody(ack)

				if _, err := ackFrh.WriteTo(c.bw); err != nil {
					ReleaseFrameHeader(ackFrh)
					return &TransportError{Err: err}
				}
				ReleaseFrameHeader(ackFrh)

				return c.bw.Flush()
			}
			ReleaseFrameHeader(frh)
			continue
		}

		if errors.Is(err, ErrIgnoreFrame) {
			ReleaseFrameHeader(frh)
			buf = buf[consumed:]
			continue
		}
		if !errors.Is(err, errNeedMoreData) {
			return &ProtocolError{Code: ProtocolErrorCode, Msg: err.Error()}
		}

		n, rerr := br.Read(extendBuf(&buf))
		if rerr != nil {
			return &TransportError{Err: rerr}
		}
		buf = buf[:len(buf)+n]
		_ = n
	}
}

// extendBuf grows *buf's capacity for a Read and returns the tail
// slice to read into, keeping already-buffered bytes intact.
func extendBuf(buf *[]byte) []byte {
	b := *buf
	l := len(b)
	if cap(b)-l < DefaultMaxFrameSize {
		nb := make([]byte, l, l+DefaultMaxFrameSize*2)
		copy(nb, b)
		b = nb
	}
	*buf = b[:l:cap(b)]
	return b[l:cap(b)]
}

// start launches the reader pump and the engine's event loop as a
// group, so Close can wait for both to fully exit before returning.
func (c *Conn) start() {
	c.group.Go(func() error {
		c.readPump()
		return nil
	})
	c.group.Go(func() error {
		c.run()
		return nil
	})
}

func (c *Conn) readPump() {
	buf := make([]byte, 32*1024)
	for {
		n, err := c.raw.Read(buf)
		if n > 0 {
			cp := make([]byte, n)
			copy(cp, buf[:n])
			select {
			case c.bytesCh <- cp:
			case <-c.doneCh:
				return
			}
		}
		if err != nil {
			select {
			case c.readErrc <- err:
			case <-c.doneCh:
			}
			return
		}
	}
}

// Do sends req and blocks until the response is fully received, ctx
// is cancelled, or the connection closes.
func (c *Conn) Do(ctx context.Context, req *Request) (*Response, error) {
	if atomic.LoadInt32(&c.closed) == 1 {
		return nil, io.EOF
	}

	p := &pendingRequest{req: req, resultCh: make(chan *requestResult, 1)}

	select {
	case c.reqCh <- p:
	case <-c.doneCh:
		return nil, io.EOF
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	select {
	case res := <-p.resultCh:
		return res.resp, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-c.doneCh:
		return nil, c.lastErr
	}
}

// Ping sends a PING and blocks until it is acked or the connection
// closes.
func (c *Conn) Ping(ctx context.Context) error {
	wait := make(chan error, 1)
	select {
	case c.pingCh <- wait:
	case <-c.doneCh:
		return io.EOF
	}

	select {
	case err := <-wait:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-c.doneCh:
		return c.lastErr
	}
}

// Close sends GOAWAY and tears down the connection.
func (c *Conn) Close() error {
	if !atomic.CompareAndSwapInt32(&c.closed, 0, 1) {
		return nil
	}
	close(c.closeCh)
	<-c.doneCh
	_ = c.group.Wait()
	return c.lastErr
}

func (c *Conn) shutdown(err error) {
	c.lastErr = err
	_ = c.raw.Close()

	c.streams.each(func(s *Stream) {
		if s.reqWaiter != nil {
			s.reqWaiter.resultCh <- &requestResult{err: err}
		}
	})
	for _, p := range c.fc.pending {
		p.resultCh <- &requestResult{err: err}
	}

	select {
	case c.Events <- ClosedEvent{Err: err}:
	default:
	}

	if c.opts.OnDisconnect != nil {
		c.opts.OnDisconnect(c)
	}

	ReleaseHPack(c.enc)
	ReleaseHPack(c.dec)

	close(c.doneCh)
}

func (c *Conn) run() {
	ticker := time.NewTicker(c.opts.PingInterval)
	defer ticker.Stop()

	var accum []byte
	unacked := 0

	// goAwayFor tells the peer why the connection is being closed when
	// err is a protocol or flow-control violation on its part.
	goAwayFor := func(err error) {
		var pe *ProtocolError
		var fe *FlowControlError
		switch {
		case errors.As(err, &pe):
			c.sendGoAway(pe.Code, nil)
		case errors.As(err, &fe):
			c.sendGoAway(FlowControlErrorCode, nil)
		}
	}

	for {
		select {
		case <-c.closeCh:
			c.sendGoAway(NoError, nil)
			c.shutdown(io.EOF)
			return

		case err := <-c.readErrc:
			c.shutdown(&TransportError{Err: err})
			return

		case chunk := <-c.bytesCh:
			accum = append(accum, chunk...)
			for {
				frh, consumed, err := DecodeFrame(accum, c.local.MaxFrameSize())
				if errors.Is(err, errNeedMoreData) {
					break
				}
				if errors.Is(err, ErrIgnoreFrame) {
					ReleaseFrameHeader(frh)
					accum = accum[consumed:]
					continue
				}
				if err != nil {
					goAwayFor(err)
					c.shutdown(err)
					return
				}

				accum = accum[consumed:]

				if derr := c.dispatch(frh); derr != nil {
					ReleaseFrameHeader(frh)
					goAwayFor(derr)
					c.shutdown(derr)
					return
				}
				if p, ok := frh.Body().(*Ping); ok && p.Ack() {
					unacked = 0
				}
				ReleaseFrameHeader(frh)
			}

		case p := <-c.reqCh:
			c.fc.enqueue(p)
			c.admitPending()

		case wait := <-c.pingCh:
			if err := c.sendPing(wait); err != nil {
				c.shutdown(err)
				return
			}

		case <-ticker.C:
			if !c.opts.DisablePingChecking && unacked >= 3 {
				c.shutdown(&ProtocolError{Code: SettingsTimeoutError, Msg: "peer stopped acking pings"})
				return
			}
			if err := c.sendPing(nil); err != nil {
				c.shutdown(err)
				return
			}
			unacked++
		}
	}
}

func (c *Conn) admitPending() {
	for _, p := range c.fc.drain() {
		if err := c.openStream(p); err != nil {
			c.fc.removeActive()
			p.resultCh <- &requestResult{err: err}
		}
	}
}

func (c *Conn) openStream(p *pendingRequest) error {
	id := c.fc.allocStreamID()
	stream := newStream(id, int32(c.fc.remote.InitialWindowSize()), int32(c.local.InitialWindowSize()))
	stream.state = StreamOpen
	stream.req = p.req
	stream.resp = AcquireResponse()
	stream.reqWaiter = p
	c.streams.put(stream)

	hasBody := len(p.req.Body()) > 0

	fields := p.req.headerFields()
	block := c.enc.Encode(nil, fields)

	frh := AcquireFrameHeader()
	frh.SetStream(id)
	h := AcquireHeaders()
	h.SetHeaders(block)
	h.SetEndHeaders(true)
	h.SetEndStream(!hasBody)
	frh.SetBody(h)

	if _, err := frh.WriteTo(c.bw); err != nil {
		ReleaseFrameHeader(frh)
		return &TransportError{Err: err}
	}
	ReleaseFrameHeader(frh)

	if hasBody {
		if err := c.writeDataFrames(stream, p.req.Body()); err != nil {
			return err
		}
	} else {
		stream.halfCloseLocal()
	}

	if err := c.bw.Flush(); err != nil {
		return &TransportError{Err: err}
	}

	return nil
}

// writeDataFrames sends as much of body as the stream and connection
// send windows currently allow. Whatever doesn't fit is stashed on
// s.pendingBody and retried from handleWindowUpdate once the peer
// grants more window, rather than being dropped.
func (c *Conn) writeDataFrames(s *Stream, body []byte) error {
	maxFrame := int(c.fc.remote.MaxFrameSize())
	if maxFrame <= 0 {
		maxFrame = DefaultMaxFrameSize
	}

	for len(body) > 0 {
		chunkLen := maxFrame
		if budget := int(s.sendWindow); budget < chunkLen {
			chunkLen = budget
		}
		if budget := int(c.fc.connSendWindow); budget < chunkLen {
			chunkLen = budget
		}
		if chunkLen <= 0 {
			s.pendingBody = body
			return nil
		}
		if chunkLen > len(body) {
			chunkLen = len(body)
		}

		frh := AcquireFrameHeader()
		frh.SetStream(s.id)
		d := AcquireData()
		d.SetData(body[:chunkLen])
		d.SetEndStream(chunkLen == len(body))
		frh.SetBody(d)

		if _, err := frh.WriteTo(c.bw); err != nil {
			ReleaseFrameHeader(frh)
			return &TransportError{Err: err}
		}
		ReleaseFrameHeader(frh)

		s.sendWindow -= int32(chunkLen)
		c.fc.connSendWindow -= int32(chunkLen)
		body = body[chunkLen:]
	}

	s.pendingBody = nil
	s.halfCloseLocal()

	return nil
}

func (c *Conn) sendPing(wait chan error) error {
	var data [8]byte
	_, _ = rand.Read(data[:])

	c.outstPing = data
	if wait != nil || c.pingWait == nil {
		c.pingWait = wait
	}

	frh := AcquireFrameHeader()
	p := AcquirePing()
	p.SetData(data[:])
	frh.SetBody(p)

	_, err := frh.WriteTo(c.bw)
	ReleaseFrameHeader(frh)
	if err != nil {
		return &TransportError{Err: err}
	}
	return c.bw.Flush()
}

// sendGoAway is best effort: a peer that has stopped reading can hold
// the write up for at most a second before the connection is closed.
func (c *Conn) sendGoAway(code ErrorCode, data []byte) {
	frh := AcquireFrameHeader()
	ga := AcquireGoAway()
	ga.SetCode(code)
	ga.SetData(data)
	frh.SetBody(ga)
	_ = c.raw.SetWriteDeadline(time.Now().Add(time.Second))
	_, _ = frh.WriteTo(c.bw)
	_ = c.bw.Flush()
	_ = c.raw.SetWriteDeadline(time.Time{})
	ReleaseFrameHeader(frh)
}

// dispatch routes a decoded frame to its handler. While a HEADERS or
// PUSH_PROMISE fragment is open without END_HEADERS, only a
// CONTINUATION for that same wire stream id is legal; anything else
// is a connection error.
func (c *Conn) dispatch(frh *FrameHeader) error {
	if c.contStreamID != 0 {
		cont, ok := frh.Body().(*Continuation)
		if !ok || frh.Stream() != c.contStreamID {
			return &ProtocolError{Code: ProtocolErrorCode, Msg: "expected CONTINUATION"}
		}
		return c.handleContinuation(frh, cont)
	}

	switch b := frh.Body().(type) {
	case *Settings:
		return c.handleSettings(b)
	case *Ping:
		return c.handlePing(b)
	case *GoAway:
		return c.handleGoAway(b)
	case *WindowUpdate:
		return c.handleWindowUpdate(frh, b)
	case *Data:
		return c.handleData(frh, b)
	case *Headers:
		return c.handleHeaders(frh, b)
	case *Continuation:
		return c.handleContinuation(frh, b)
	case *PushPromise:
		return c.handlePushPromise(frh, b)
	case *RstStream:
		return c.handleRstStream(frh, b)
	case *Priority:
		return c.handlePriority(frh, b)
	}
	return nil
}

func (c *Conn) handleSettings(s *Settings) error {
	if s.IsAck() {
		return c.onSettingsAcked()
	}

	delta := c.fc.applyRemoteSettings(s)
	if delta != 0 {
		c.streams.each(func(st *Stream) {
			_ = st.IncrSendWindow(delta)
		})
	}

	if s.headerTableSize != 0 {
		c.enc.SetMaxTableSize(s.headerTableSize)
	}

	frh := AcquireFrameHeader()
	ack := AcquireSettings()
	ack.SetAck(true)
	frh.SetBody(ack)
	_, err := frh.WriteTo(c.bw)
	ReleaseFrameHeader(frh)
	if err != nil {
		return &TransportError{Err: err}
	}

	c.admitPending()

	return c.bw.Flush()
}

// onSettingsAcked runs once the peer acks our SETTINGS. The client
// enlarges its connection-level receive window to the full signed
// 31-bit range in one shot here, rather than relying on the default
// initial window for bulk downloads.
func (c *Conn) onSettingsAcked() error {
	if c.sentConnWindowUpdate {
		return nil
	}
	c.sentConnWindowUpdate = true

	increment := int32(maxWindowSize) - c.fc.connRecvWindow
	if increment <= 0 {
		return nil
	}
	c.fc.connRecvWindow += increment

	frh := AcquireFrameHeader()
	wu := AcquireWindowUpdate()
	wu.SetIncrement(increment)
	frh.SetBody(wu)
	_, err := frh.WriteTo(c.bw)
	ReleaseFrameHeader(frh)
	if err != nil {
		return &TransportError{Err: err}
	}

	return c.bw.Flush()
}

func (c *Conn) handlePing(p *Ping) error {
	if p.Ack() {
		if p.data == c.outstPing && c.pingWait != nil {
			c.pingWait <- nil
			c.pingWait = nil
		}
		select {
		case c.Events <- PingEvent{Ack: true, Data: p.data}:
		default:
		}
		return nil
	}

	frh := AcquireFrameHeader()
	reply := AcquirePing()
	reply.SetAck(true)
	reply.SetData(p.Data())
	frh.SetBody(reply)
	_, err := frh.WriteTo(c.bw)
	ReleaseFrameHeader(frh)
	if err != nil {
		return &TransportError{Err: err}
	}

	select {
	case c.Events <- PingEvent{Ack: false, Data: p.data}:
	default:
	}

	return c.bw.Flush()
}

func (c *Conn) handleGoAway(g *GoAway) error {
	if c.opts.OnGoAway != nil {
		c.opts.OnGoAway(g.Code(), g.Data())
	}

	c.streams.each(func(s *Stream) {
		if s.id > g.LastStreamID() && s.reqWaiter != nil {
			s.reqWaiter.resultCh <- &requestResult{err: &CancelledByGoaway{StreamID: s.id, LastStreamID: g.LastStreamID()}}
		}
	})

	return io.EOF
}

func (c *Conn) handleWindowUpdate(frh *FrameHeader, wu *WindowUpdate) error {
	if frh.Stream() == 0 {
		if err := c.fc.incrConnSendWindow(wu.Increment()); err != nil {
			return err
		}
		if err := c.resumePendingWrites(); err != nil {
			return err
		}
		return c.bw.Flush()
	}

	s := c.streams.get(frh.Stream())
	if s == nil {
		return nil // window update for a stream we already closed: ignore
	}
	if err := s.IncrSendWindow(wu.Increment()); err != nil {
		return err
	}
	if len(s.pendingBody) == 0 {
		return nil
	}
	if err := c.writeDataFrames(s, s.pendingBody); err != nil {
		return err
	}
	return c.bw.Flush()
}

// resumePendingWrites retries every stream with a body stalled on flow
// control, e.g. after a connection-level WINDOW_UPDATE.
func (c *Conn) resumePendingWrites() error {
	var ferr error
	c.streams.each(func(s *Stream) {
		if ferr != nil || len(s.pendingBody) == 0 {
			return
		}
		if err := c.writeDataFrames(s, s.pendingBody); err != nil {
			ferr = err
		}
	})
	return ferr
}

func (c *Conn) handleData(frh *FrameHeader, d *Data) error {
	if frh.Stream() == 0 {
		return &ProtocolError{Code: ProtocolErrorCode, Msg: "DATA on stream 0"}
	}

	s := c.streams.get(frh.Stream())
	if s == nil {
		return nil
	}

	s.resp.appendBody(d.Data())

	n := int32(d.Len())
	if n > 0 {
		frh2 := AcquireFrameHeader()
		frh2.SetStream(s.id)
		wu := AcquireWindowUpdate()
		wu.SetIncrement(n)
		frh2.SetBody(wu)
		_, err := frh2.WriteTo(c.bw)
		ReleaseFrameHeader(frh2)
		if err != nil {
			return &TransportError{Err: err}
		}

		connWu := AcquireFrameHeader()
		cwu := AcquireWindowUpdate()
		cwu.SetIncrement(n)
		connWu.SetBody(cwu)
		_, err = connWu.WriteTo(c.bw)
		ReleaseFrameHeader(connWu)
		if err != nil {
			return &TransportError{Err: err}
		}

		if err := c.bw.Flush(); err != nil {
			return &TransportError{Err: err}
		}
	}

	if d.EndStream() {
		c.finishStream(s, nil)
	}

	return nil
}

func (c *Conn) handleHeaders(frh *FrameHeader, h *Headers) error {
	s := c.streams.get(frh.Stream())
	if s == nil {
		return nil
	}

	s.appendHeaderFragment(h.Headers(), h.EndHeaders())
	if h.EndHeaders() {
		c.contStreamID, c.contTarget = 0, 0
		if err := c.finishHeaderBlock(s); err != nil {
			return err
		}
	} else {
		c.contStreamID, c.contTarget = frh.Stream(), s.id
	}

	if h.EndStream() {
		s.halfCloseRemote()
		if s.isClosed() || s.state == StreamHalfClosedRemote {
			if !s.awaitingContinuation {
				c.finishStream(s, nil)
			}
		}
	}

	return nil
}

func (c *Conn) handleContinuation(frh *FrameHeader, cont *Continuation) error {
	target := c.contTarget
	if target == 0 {
		target = frh.Stream()
	}

	s := c.streams.get(target)
	if s == nil {
		return nil
	}

	s.appendHeaderFragment(cont.Headers(), cont.EndHeaders())
	if cont.EndHeaders() {
		c.contStreamID, c.contTarget = 0, 0
		if err := c.finishHeaderBlock(s); err != nil {
			return err
		}
		if s.state == StreamHalfClosedRemote || s.isClosed() {
			c.finishStream(s, nil)
		}
	}

	return nil
}

func (c *Conn) finishHeaderBlock(s *Stream) error {
	fields, err := c.dec.Decode(s.headerBlock)
	if err != nil {
		return &ProtocolError{Code: CompressionError, Msg: err.Error()}
	}
	s.headerBlock = s.headerBlock[:0]
	s.resp.applyHeaders(fields)
	return nil
}

func (c *Conn) handlePushPromise(frh *FrameHeader, pp *PushPromise) error {
	parent := c.streams.get(frh.Stream())
	if parent == nil {
		return nil
	}

	pushed := newStream(pp.PromisedStreamID(), int32(c.fc.remote.InitialWindowSize()), int32(c.local.InitialWindowSize()))
	pushed.state = StreamReservedRemote
	pushed.pushed = true
	pushed.resp = AcquireResponse()
	pushed.appendHeaderFragment(pp.Headers(), pp.EndHeaders())
	c.streams.put(pushed)
	c.fc.addActive()

	if pp.EndHeaders() {
		if err := c.finishHeaderBlock(pushed); err != nil {
			return err
		}
	} else {
		c.contStreamID, c.contTarget = frh.Stream(), pushed.id
	}

	select {
	case c.Events <- PushPromiseEvent{StreamID: frh.Stream(), PromisedStreamID: pp.PromisedStreamID()}:
	default:
	}

	return nil
}

func (c *Conn) handleRstStream(frh *FrameHeader, r *RstStream) error {
	s := c.streams.get(frh.Stream())
	if s == nil {
		// RST_STREAM referencing a stream we never opened: dropped
		// without any state change; nothing is logged.
		return nil
	}
	c.finishStream(s, &StreamError{StreamID: s.id, Code: r.Code()})
	return nil
}

func (c *Conn) handlePriority(frh *FrameHeader, p *Priority) error {
	s := c.streams.get(frh.Stream())
	if s == nil {
		return nil
	}
	s.setPriority(p.StreamDep(), p.Exclusive(), p.Weight())
	return nil
}

func (c *Conn) finishStream(s *Stream, err error) {
	s.state = StreamClosed
	c.streams.del(s.id)
	c.fc.removeActive()

	switch {
	case s.reqWaiter != nil:
		if err != nil {
			s.reqWaiter.resultCh <- &requestResult{err: err}
		} else {
			s.reqWaiter.resultCh <- &requestResult{resp: s.resp}
		}
	case s.pushed:
		select {
		case c.Events <- PushResponseEvent{PromisedStreamID: s.id, Response: s.resp}:
		default:
		}
	}

	c.admitPending()
}
