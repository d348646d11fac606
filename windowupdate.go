package http2

import (
	"sync"

	"github.com/packruler/kadabra/http2utils"
)

var _ Frame = &WindowUpdate{}

// WindowUpdate carries a WINDOW_UPDATE frame, replenishing a
// connection- or stream-level flow-control send window.
//
// https://tools.ietf.org/html/rfc7540#section-6.9
type WindowUpdate struct {
	increment int32
}

var windowUpdatePool = sync.Pool{
	New: func() interface{} { return &WindowUpdate{} },
}

// AcquireWindowUpdate returns a WindowUpdate frame from the pool.
func AcquireWindowUpdate() *WindowUpdate {
	wu := windowUpdatePool.Get().(*WindowUpdate)
	wu.Reset()
	return wu
}

// ReleaseWindowUpdate returns wu to the pool.
func ReleaseWindowUpdate(wu *WindowUpdate) {
	if wu == nil {
		return
	}
	windowUpdatePool.Put(wu)
}

func (wu *WindowUpdate) Type() FrameType { return FrameWindowUpdate }

func (wu *WindowUpdate) Reset() { wu.increment = 0 }

func (wu *WindowUpdate) CopyTo(dst *WindowUpdate) { dst.increment = wu.increment }

func (wu *WindowUpdate) Increment() int32     { return wu.increment }
func (wu *WindowUpdate) SetIncrement(n int32) { wu.increment = n }

func (wu *WindowUpdate) Deserialize(frh *FrameHeader) error {
	if len(frh.payload) < 4 {
		return ErrMissingBytes
	}
	wu.increment = int32(http2utils.BytesToUint32(frh.payload) & (1<<31 - 1))
	return nil
}

func (wu *WindowUpdate) Serialize(frh *FrameHeader) {
	frh.payload = http2utils.AppendUint32Bytes(frh.payload[:0], uint32(wu.increment)&(1<<31-1))
}
