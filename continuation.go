package http2

import "sync"

var (
	_ Frame            = &Continuation{}
	_ FrameWithHeaders = &Continuation{}
)

// Continuation carries a CONTINUATION frame, used to reassemble a header
// block that didn't fit in a single HEADERS/PUSH_PROMISE frame.
//
// https://tools.ietf.org/html/rfc7540#section-6.10
type Continuation struct {
	endHeaders bool
	rawHeaders []byte
}

var continuationPool = sync.Pool{
	New: func() interface{} { return &Continuation{} },
}

// AcquireContinuation returns a Continuation frame from the pool.
func AcquireContinuation() *Continuation {
	c := continuationPool.Get().(*Continuation)
	c.Reset()
	return c
}

// ReleaseContinuation returns c to the pool.
func ReleaseContinuation(c *Continuation) {
	if c == nil {
		return
	}
	continuationPool.Put(c)
}

func (c *Continuation) Type() FrameType { return FrameContinuation }

func (c *Continuation) Reset() {
	c.endHeaders = false
	c.rawHeaders = c.rawHeaders[:0]
}

func (c *Continuation) CopyTo(dst *Continuation) {
	dst.endHeaders = c.endHeaders
	dst.rawHeaders = append(dst.rawHeaders[:0], c.rawHeaders...)
}

func (c *Continuation) Headers() []byte   { return c.rawHeaders }
func (c *Continuation) SetEndHeaders(v bool) { c.endHeaders = v }
func (c *Continuation) EndHeaders() bool     { return c.endHeaders }

func (c *Continuation) SetHeaders(b []byte) { c.rawHeaders = append(c.rawHeaders[:0], b...) }

func (c *Continuation) Deserialize(frh *FrameHeader) error {
	c.endHeaders = frh.Flags().Has(FlagEndHeaders)
	c.rawHeaders = append(c.rawHeaders[:0], frh.payload...)
	return nil
}

func (c *Continuation) Serialize(frh *FrameHeader) {
	if c.endHeaders {
		frh.SetFlags(frh.Flags().Add(FlagEndHeaders))
	}
	frh.setPayload(c.rawHeaders)
}
