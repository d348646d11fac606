package http2

// StreamState is a stream's position in the RFC 7540 section 5.1 state
// machine.
type StreamState int8

const (
	StreamIdle StreamState = iota
	StreamReservedLocal
	StreamReservedRemote
	StreamOpen
	StreamHalfClosedLocal
	StreamHalfClosedRemote
	StreamClosed
)

func (ss StreamState) String() string {
	switch ss {
	case StreamIdle:
		return "idle"
	case StreamReservedLocal:
		return "reserved(local)"
	case StreamReservedRemote:
		return "reserved(remote)"
	case StreamOpen:
		return "open"
	case StreamHalfClosedLocal:
		return "half-closed(local)"
	case StreamHalfClosedRemote:
		return "half-closed(remote)"
	case StreamClosed:
		return "closed"
	}
	return "unknown"
}

// Stream tracks per-stream state owned directly by the connection
// engine: no actor-per-stream, just a record in the engine's registry.
type Stream struct {
	id    uint32
	state StreamState

	sendWindow int32
	recvWindow int32

	weight    uint8
	dependsOn uint32
	exclusive bool

	// headerBlock accumulates HEADERS/CONTINUATION/PUSH_PROMISE
	// fragments until END_HEADERS is observed.
	headerBlock []byte
	endStream   bool

	// pendingBody holds a request body remainder that couldn't be sent
	// because the stream or connection send window ran out; it is
	// retried as WINDOW_UPDATE frames arrive.
	pendingBody []byte

	req  *Request
	resp *Response

	// reqWaiter is the caller blocked in Conn.Do waiting on this
	// stream's result, nil for server-pushed streams.
	reqWaiter *pendingRequest

	// awaitingContinuation is set while a HEADERS/PUSH_PROMISE fragment
	// is open and no other frame type may legally interleave.
	awaitingContinuation bool

	// pushed marks a stream created by PUSH_PROMISE rather than a
	// client-issued request.
	pushed bool
}

func newStream(id uint32, initialSendWindow, initialRecvWindow int32) *Stream {
	return &Stream{
		id:         id,
		state:      StreamIdle,
		sendWindow: initialSendWindow,
		recvWindow: initialRecvWindow,
		weight:     16,
	}
}

func (s *Stream) ID() uint32          { return s.id }
func (s *Stream) State() StreamState  { return s.state }
func (s *Stream) SetState(st StreamState) { s.state = st }

func (s *Stream) SendWindow() int32      { return s.sendWindow }
func (s *Stream) RecvWindow() int32      { return s.recvWindow }
func (s *Stream) SetSendWindow(n int32)  { s.sendWindow = n }
func (s *Stream) SetRecvWindow(n int32)  { s.recvWindow = n }

// IncrSendWindow applies a WINDOW_UPDATE increment, returning an error
// if the resulting window would overflow the 31-bit signed range.
func (s *Stream) IncrSendWindow(n int32) error {
	next := int64(s.sendWindow) + int64(n)
	if next > maxWindowSize {
		return &FlowControlError{Msg: "stream send window overflow"}
	}
	s.sendWindow = int32(next)
	return nil
}

func (s *Stream) setPriority(dependsOn uint32, exclusive bool, weight uint8) {
	s.dependsOn = dependsOn
	s.exclusive = exclusive
	s.weight = weight
}

func (s *Stream) appendHeaderFragment(b []byte, endHeaders bool) {
	s.headerBlock = append(s.headerBlock, b...)
	s.awaitingContinuation = !endHeaders
}

func (s *Stream) isClosed() bool { return s.state == StreamClosed }

// halfCloseLocal transitions the stream after this side sends
// END_STREAM.
func (s *Stream) halfCloseLocal() {
	switch s.state {
	case StreamOpen:
		s.state = StreamHalfClosedLocal
	case StreamHalfClosedRemote:
		s.state = StreamClosed
	}
}

// halfCloseRemote transitions the stream after the peer sends
// END_STREAM.
func (s *Stream) halfCloseRemote() {
	switch s.state {
	case StreamOpen:
		s.state = StreamHalfClosedRemote
	case StreamHalfClosedLocal:
		s.state = StreamClosed
	}
}
