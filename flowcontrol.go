package http2

// flowControl holds the connection-wide admission and flow-control
// bookkeeping: the next stream id to allocate, the number of streams
// currently counted against MAX_CONCURRENT_STREAMS, the pending
// request queue, and the connection-level send/receive windows.
//
// It is a plain record owned by engine's goroutine, mirrored on the
// spec's FlowControl data model.
type flowControl struct {
	local  Settings
	remote Settings

	nextStreamID uint32

	activeStreamCount int

	connSendWindow int32
	connRecvWindow int32

	pending []*pendingRequest
}

func newFlowControl() *flowControl {
	fc := &flowControl{
		nextStreamID:   1,
		connSendWindow: DefaultInitialWindowSize,
		connRecvWindow: DefaultInitialWindowSize,
	}
	fc.local.Reset()
	fc.remote.Reset()
	return fc
}

// allocStreamID returns the next client-initiated (odd) stream id.
func (fc *flowControl) allocStreamID() uint32 {
	id := fc.nextStreamID
	fc.nextStreamID += 2
	return id
}

// admit reports whether a new stream may be opened without exceeding
// the peer's advertised MAX_CONCURRENT_STREAMS.
func (fc *flowControl) admit() bool {
	return fc.activeStreamCount < int(fc.remote.MaxConcurrentStreams())
}

func (fc *flowControl) addActive()      { fc.activeStreamCount++ }
func (fc *flowControl) removeActive()   { fc.activeStreamCount-- }

// incrConnSendWindow applies a connection-level WINDOW_UPDATE, failing
// if the result would overflow the signed 31-bit range.
func (fc *flowControl) incrConnSendWindow(n int32) error {
	next := int64(fc.connSendWindow) + int64(n)
	if next > maxWindowSize {
		return &FlowControlError{Msg: "connection send window overflow"}
	}
	fc.connSendWindow = int32(next)
	return nil
}

// applyRemoteSettings merges a peer SETTINGS frame, returning the
// initial-window-size delta so the caller can reflow every open
// stream's send window (RFC 7540 section 6.9.2).
func (fc *flowControl) applyRemoteSettings(s *Settings) int32 {
	prevWindow := fc.remote.InitialWindowSize()
	s.CopyTo(&fc.remote)
	return int32(fc.remote.InitialWindowSize()) - int32(prevWindow)
}

// pendingRequest is a request waiting for stream admission, holding
// the response channel the caller blocks on.
type pendingRequest struct {
	req      *Request
	resultCh chan *requestResult
}

type requestResult struct {
	resp *Response
	err  error
}

func (fc *flowControl) enqueue(p *pendingRequest) {
	fc.pending = append(fc.pending, p)
}

// drain pops as many pending requests as fit under admit(), in FIFO
// order, leaving the rest queued.
func (fc *flowControl) drain() []*pendingRequest {
	var ready []*pendingRequest
	i := 0
	for i < len(fc.pending) && fc.admit() {
		ready = append(ready, fc.pending[i])
		fc.addActive()
		i++
	}
	fc.pending = fc.pending[i:]
	return ready
}
