package http2

import "sync"

var _ Frame = &Ping{}

// Ping carries a PING frame: an 8-byte opaque payload echoed back to
// measure round-trip time or check liveness.
//
// https://tools.ietf.org/html/rfc7540#section-6.7
type Ping struct {
	ack  bool
	data [8]byte
}

var pingPool = sync.Pool{
	New: func() interface{} { return &Ping{} },
}

// AcquirePing returns a Ping frame from the pool.
func AcquirePing() *Ping {
	p := pingPool.Get().(*Ping)
	p.Reset()
	return p
}

// ReleasePing returns p to the pool.
func ReleasePing(p *Ping) {
	if p == nil {
		return
	}
	pingPool.Put(p)
}

func (p *Ping) Type() FrameType { return FramePing }

func (p *Ping) Reset() {
	p.ack = false
	p.data = [8]byte{}
}

func (p *Ping) CopyTo(dst *Ping) {
	dst.ack = p.ack
	dst.data = p.data
}

func (p *Ping) Ack() bool      { return p.ack }
func (p *Ping) SetAck(v bool)  { p.ack = v }
func (p *Ping) Data() []byte   { return p.data[:] }
func (p *Ping) SetData(b []byte) { copy(p.data[:], b) }

func (p *Ping) Deserialize(frh *FrameHeader) error {
	if len(frh.payload) < 8 {
		return ErrMissingBytes
	}
	p.ack = frh.Flags().Has(FlagAck)
	copy(p.data[:], frh.payload)
	return nil
}

func (p *Ping) Serialize(frh *FrameHeader) {
	if p.ack {
		frh.SetFlags(frh.Flags().Add(FlagAck))
	}
	frh.setPayload(p.data[:])
}
