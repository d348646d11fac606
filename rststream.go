package http2

import (
	"sync"

	"github.com/packruler/kadabra/http2utils"
)

var _ Frame = &RstStream{}

// RstStream carries a RST_STREAM frame, abruptly terminating a stream.
//
// https://tools.ietf.org/html/rfc7540#section-6.4
type RstStream struct {
	code ErrorCode
}

var rstStreamPool = sync.Pool{
	New: func() interface{} { return &RstStream{} },
}

// AcquireRstStream returns a RstStream frame from the pool.
func AcquireRstStream() *RstStream {
	r := rstStreamPool.Get().(*RstStream)
	r.Reset()
	return r
}

// ReleaseRstStream returns r to the pool.
func ReleaseRstStream(r *RstStream) {
	if r == nil {
		return
	}
	rstStreamPool.Put(r)
}

func (r *RstStream) Type() FrameType { return FrameResetStream }

func (r *RstStream) Reset() { r.code = 0 }

func (r *RstStream) CopyTo(dst *RstStream) { dst.code = r.code }

func (r *RstStream) Code() ErrorCode     { return r.code }
func (r *RstStream) SetCode(c ErrorCode) { r.code = c }

// Error returns the RST_STREAM's error code as a Go error.
func (r *RstStream) Error() error { return NewError(r.code, "") }

func (r *RstStream) Deserialize(frh *FrameHeader) error {
	if len(frh.payload) < 4 {
		return ErrMissingBytes
	}
	r.code = ErrorCode(http2utils.BytesToUint32(frh.payload))
	return nil
}

func (r *RstStream) Serialize(frh *FrameHeader) {
	frh.payload = http2utils.AppendUint32Bytes(frh.payload[:0], uint32(r.code))
}
