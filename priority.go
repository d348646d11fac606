package http2

import (
	"sync"

	"github.com/packruler/kadabra/http2utils"
)

var _ Frame = &Priority{}

// Priority carries a PRIORITY frame. Its dependency/weight pair is
// decoded and kept on the stream record, but (per spec Non-goals) the
// engine does not maintain a priority tree or reorder output on it.
//
// https://tools.ietf.org/html/rfc7540#section-6.3
type Priority struct {
	stream    uint32
	exclusive bool
	weight    uint8
}

var priorityPool = sync.Pool{
	New: func() interface{} { return &Priority{} },
}

// AcquirePriority returns a Priority frame from the pool.
func AcquirePriority() *Priority {
	p := priorityPool.Get().(*Priority)
	p.Reset()
	return p
}

// ReleasePriority returns p to the pool.
func ReleasePriority(p *Priority) {
	if p == nil {
		return
	}
	priorityPool.Put(p)
}

func (p *Priority) Type() FrameType { return FramePriority }

func (p *Priority) Reset() {
	p.stream = 0
	p.exclusive = false
	p.weight = 0
}

func (p *Priority) CopyTo(dst *Priority) {
	dst.stream = p.stream
	dst.exclusive = p.exclusive
	dst.weight = p.weight
}

func (p *Priority) StreamDep() uint32    { return p.stream }
func (p *Priority) SetStreamDep(s uint32) { p.stream = s & (1<<31 - 1) }
func (p *Priority) Exclusive() bool      { return p.exclusive }
func (p *Priority) SetExclusive(v bool)  { p.exclusive = v }
func (p *Priority) Weight() uint8        { return p.weight }
func (p *Priority) SetWeight(w uint8)    { p.weight = w }

func (p *Priority) Deserialize(frh *FrameHeader) error {
	if len(frh.payload) < 5 {
		return ErrMissingBytes
	}

	dep := http2utils.BytesToUint32(frh.payload)
	p.exclusive = dep&0x80000000 != 0
	p.stream = dep & (1<<31 - 1)
	p.weight = frh.payload[4]

	return nil
}

func (p *Priority) Serialize(frh *FrameHeader) {
	dep := p.stream
	if p.exclusive {
		dep |= 0x80000000
	}

	frh.payload = http2utils.AppendUint32Bytes(frh.payload[:0], dep)
	frh.payload = append(frh.payload, p.weight)
}
