package http2

// Event is sent on Conn's Events channel to report connection-level
// activity the caller may want to observe without blocking a request:
// pings, pushed streams and final closure.
type Event interface{ event() }

// PingEvent reports a PING frame exchange.
type PingEvent struct {
	// Ack is true when this is the peer's reply to a ping we sent; it
	// is false when the peer initiated the ping (already acked by the
	// engine before this event is emitted).
	Ack  bool
	Data [8]byte
}

func (PingEvent) event() {}

// PushPromiseEvent reports a server push the peer announced. The
// pushed stream's response, once delivered, arrives as a
// PushResponseEvent with the same PromisedStreamID.
type PushPromiseEvent struct {
	StreamID         uint32
	PromisedStreamID uint32
	Request          *Request
}

func (PushPromiseEvent) event() {}

// PushResponseEvent carries a pushed stream's completed response.
type PushResponseEvent struct {
	PromisedStreamID uint32
	Response         *Response
}

func (PushResponseEvent) event() {}

// ClosedEvent reports that the connection has shut down.
type ClosedEvent struct {
	Err error
}

func (ClosedEvent) event() {}
