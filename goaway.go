package http2

import (
	"fmt"
	"sync"

	"github.com/packruler/kadabra/http2utils"
)

var _ Frame = &GoAway{}

// GoAway carries a GOAWAY frame: the peer's announcement that it will
// stop creating new streams and is shutting down the connection.
//
// https://tools.ietf.org/html/rfc7540#section-6.8
type GoAway struct {
	lastStreamID uint32
	code         ErrorCode
	data         []byte
}

var goAwayPool = sync.Pool{
	New: func() interface{} { return &GoAway{} },
}

// AcquireGoAway returns a GoAway frame from the pool.
func AcquireGoAway() *GoAway {
	ga := goAwayPool.Get().(*GoAway)
	ga.Reset()
	return ga
}

// ReleaseGoAway returns ga to the pool.
func ReleaseGoAway(ga *GoAway) {
	if ga == nil {
		return
	}
	goAwayPool.Put(ga)
}

func (ga *GoAway) Type() FrameType { return FrameGoAway }

func (ga *GoAway) Reset() {
	ga.lastStreamID = 0
	ga.code = 0
	ga.data = ga.data[:0]
}

func (ga *GoAway) CopyTo(dst *GoAway) {
	dst.lastStreamID = ga.lastStreamID
	dst.code = ga.code
	dst.data = append(dst.data[:0], ga.data...)
}

func (ga *GoAway) Error() string {
	return fmt.Sprintf("goaway: last_stream_id=%d code=%s data=%q", ga.lastStreamID, ga.code, ga.data)
}

func (ga *GoAway) Code() ErrorCode { return ga.code }
func (ga *GoAway) SetCode(c ErrorCode) { ga.code = c }

// LastStreamID returns the highest-numbered stream the peer processed.
func (ga *GoAway) LastStreamID() uint32 { return ga.lastStreamID }
func (ga *GoAway) SetLastStreamID(id uint32) { ga.lastStreamID = id & (1<<31 - 1) }

func (ga *GoAway) Data() []byte       { return ga.data }
func (ga *GoAway) SetData(b []byte)   { ga.data = append(ga.data[:0], b...) }

func (ga *GoAway) Deserialize(frh *FrameHeader) error {
	if len(frh.payload) < 8 {
		return ErrMissingBytes
	}

	ga.lastStreamID = http2utils.BytesToUint32(frh.payload) & (1<<31 - 1)
	ga.code = ErrorCode(http2utils.BytesToUint32(frh.payload[4:]))

	if len(frh.payload) > 8 {
		ga.data = append(ga.data[:0], frh.payload[8:]...)
	}

	return nil
}

func (ga *GoAway) Serialize(frh *FrameHeader) {
	frh.payload = http2utils.AppendUint32Bytes(frh.payload[:0], ga.lastStreamID)
	frh.payload = http2utils.AppendUint32Bytes(frh.payload, uint32(ga.code))
	frh.payload = append(frh.payload, ga.data...)
}
