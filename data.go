package http2

import (
	"sync"

	"github.com/packruler/kadabra/http2utils"
)

var _ Frame = &Data{}

// Data carries a DATA frame.
//
// https://tools.ietf.org/html/rfc7540#section-6.1
type Data struct {
	endStream  bool
	hasPadding bool
	b          []byte
}

var dataPool = sync.Pool{
	New: func() interface{} { return &Data{} },
}

// AcquireData returns a Data frame from the pool.
func AcquireData() *Data {
	d := dataPool.Get().(*Data)
	d.Reset()
	return d
}

// ReleaseData returns d to the pool.
func ReleaseData(d *Data) {
	if d == nil {
		return
	}
	dataPool.Put(d)
}

func (d *Data) Type() FrameType { return FrameData }

func (d *Data) Reset() {
	d.endStream = false
	d.hasPadding = false
	d.b = d.b[:0]
}

func (d *Data) CopyTo(dst *Data) {
	dst.hasPadding = d.hasPadding
	dst.endStream = d.endStream
	dst.b = append(dst.b[:0], d.b...)
}

func (d *Data) SetEndStream(v bool) { d.endStream = v }
func (d *Data) EndStream() bool     { return d.endStream }

// Data returns the frame's payload bytes.
func (d *Data) Data() []byte { return d.b }

// SetData resets and copies b into the frame payload.
func (d *Data) SetData(b []byte) { d.b = append(d.b[:0], b...) }

func (d *Data) SetPadding(v bool) { d.hasPadding = v }
func (d *Data) Padding() bool     { return d.hasPadding }

// Len returns the length of the data payload (after stripping padding).
func (d *Data) Len() int { return len(d.b) }

func (d *Data) Deserialize(frh *FrameHeader) error {
	payload := frh.payload

	if frh.Flags().Has(FlagPadded) {
		var err error
		payload, err = http2utils.CutPadding(payload, frh.Len())
		if err != nil {
			return err
		}
		d.hasPadding = true
	}

	d.endStream = frh.Flags().Has(FlagEndStream)
	d.b = append(d.b[:0], payload...)

	return nil
}

func (d *Data) Serialize(frh *FrameHeader) {
	if d.endStream {
		frh.SetFlags(frh.Flags().Add(FlagEndStream))
	}

	if d.hasPadding {
		frh.SetFlags(frh.Flags().Add(FlagPadded))
		d.b = http2utils.AddPadding(d.b)
	}

	frh.setPayload(d.b)
}
