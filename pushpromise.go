package http2

import (
	"sync"

	"github.com/packruler/kadabra/http2utils"
)

var (
	_ Frame            = &PushPromise{}
	_ FrameWithHeaders = &PushPromise{}
)

// PushPromise carries a PUSH_PROMISE frame: the server's announcement
// of a stream it intends to push, identified by promisedStreamID.
//
// https://tools.ietf.org/html/rfc7540#section-6.6
type PushPromise struct {
	hasPadding      bool
	endHeaders      bool
	promisedStreamID uint32
	rawHeaders      []byte
}

var pushPromisePool = sync.Pool{
	New: func() interface{} { return &PushPromise{} },
}

// AcquirePushPromise returns a PushPromise frame from the pool.
func AcquirePushPromise() *PushPromise {
	pp := pushPromisePool.Get().(*PushPromise)
	pp.Reset()
	return pp
}

// ReleasePushPromise returns pp to the pool.
func ReleasePushPromise(pp *PushPromise) {
	if pp == nil {
		return
	}
	pushPromisePool.Put(pp)
}

func (pp *PushPromise) Type() FrameType { return FramePushPromise }

func (pp *PushPromise) Reset() {
	pp.hasPadding = false
	pp.endHeaders = false
	pp.promisedStreamID = 0
	pp.rawHeaders = pp.rawHeaders[:0]
}

func (pp *PushPromise) CopyTo(dst *PushPromise) {
	dst.hasPadding = pp.hasPadding
	dst.endHeaders = pp.endHeaders
	dst.promisedStreamID = pp.promisedStreamID
	dst.rawHeaders = append(dst.rawHeaders[:0], pp.rawHeaders...)
}

func (pp *PushPromise) Headers() []byte     { return pp.rawHeaders }
func (pp *PushPromise) SetHeaders(b []byte) { pp.rawHeaders = append(pp.rawHeaders[:0], b...) }
func (pp *PushPromise) EndHeaders() bool    { return pp.endHeaders }
func (pp *PushPromise) SetEndHeaders(v bool) { pp.endHeaders = v }

// PromisedStreamID returns the server-initiated (even) id being promised.
func (pp *PushPromise) PromisedStreamID() uint32 { return pp.promisedStreamID }
func (pp *PushPromise) SetPromisedStreamID(id uint32) {
	pp.promisedStreamID = id & (1<<31 - 1)
}

func (pp *PushPromise) Deserialize(frh *FrameHeader) error {
	payload := frh.payload

	if frh.Flags().Has(FlagPadded) {
		var err error
		payload, err = http2utils.CutPadding(payload, frh.Len())
		if err != nil {
			return err
		}
		pp.hasPadding = true
	}

	if len(payload) < 4 {
		return ErrMissingBytes
	}

	pp.promisedStreamID = http2utils.BytesToUint32(payload) & (1<<31 - 1)
	pp.rawHeaders = append(pp.rawHeaders[:0], payload[4:]...)
	pp.endHeaders = frh.Flags().Has(FlagEndHeaders)

	return nil
}

func (pp *PushPromise) Serialize(frh *FrameHeader) {
	if pp.endHeaders {
		frh.SetFlags(frh.Flags().Add(FlagEndHeaders))
	}

	frh.payload = http2utils.AppendUint32Bytes(frh.payload[:0], pp.promisedStreamID)
	frh.payload = append(frh.payload, pp.rawHeaders...)
}
