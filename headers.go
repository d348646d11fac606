package http2

import (
	"sync"

	"github.com/packruler/kadabra/http2utils"
)

var (
	_ Frame            = &Headers{}
	_ FrameWithHeaders = &Headers{}
)

// Headers carries a HEADERS frame.
//
// https://tools.ietf.org/html/rfc7540#section-6.2
type Headers struct {
	hasPadding bool
	stream     uint32 // priority stream dependency, when FlagPriority is set
	exclusive  bool
	weight     uint8
	endStream  bool
	endHeaders bool
	rawHeaders []byte
}

var headersPool = sync.Pool{
	New: func() interface{} { return &Headers{} },
}

// AcquireHeaders returns a Headers frame from the pool.
func AcquireHeaders() *Headers {
	h := headersPool.Get().(*Headers)
	h.Reset()
	return h
}

// ReleaseHeaders returns h to the pool.
func ReleaseHeaders(h *Headers) {
	if h == nil {
		return
	}
	headersPool.Put(h)
}

func (h *Headers) Type() FrameType { return FrameHeaders }

func (h *Headers) Reset() {
	h.hasPadding = false
	h.stream = 0
	h.exclusive = false
	h.weight = 0
	h.endStream = false
	h.endHeaders = false
	h.rawHeaders = h.rawHeaders[:0]
}

func (h *Headers) CopyTo(dst *Headers) {
	dst.hasPadding = h.hasPadding
	dst.stream = h.stream
	dst.exclusive = h.exclusive
	dst.weight = h.weight
	dst.endStream = h.endStream
	dst.endHeaders = h.endHeaders
	dst.rawHeaders = append(dst.rawHeaders[:0], h.rawHeaders...)
}

// Headers returns the raw (HPACK-encoded) header block fragment.
func (h *Headers) Headers() []byte { return h.rawHeaders }

// SetHeaders resets and sets the raw header block fragment.
func (h *Headers) SetHeaders(b []byte) { h.rawHeaders = append(h.rawHeaders[:0], b...) }

// AppendHeaders appends to the raw header block fragment.
func (h *Headers) AppendHeaders(b []byte) { h.rawHeaders = append(h.rawHeaders, b...) }

func (h *Headers) SetEndStream(v bool)  { h.endStream = v }
func (h *Headers) EndStream() bool      { return h.endStream }
func (h *Headers) SetEndHeaders(v bool) { h.endHeaders = v }
func (h *Headers) EndHeaders() bool     { return h.endHeaders }

// StreamDep returns the PRIORITY stream dependency carried by this
// HEADERS frame (only meaningful when FlagPriority is present).
func (h *Headers) StreamDep() uint32   { return h.stream }
func (h *Headers) Exclusive() bool     { return h.exclusive }
func (h *Headers) Weight() uint8       { return h.weight }
func (h *Headers) SetPadding(v bool)   { h.hasPadding = v }
func (h *Headers) Padding() bool       { return h.hasPadding }

func (h *Headers) Deserialize(frh *FrameHeader) error {
	flags := frh.Flags()
	payload := frh.payload

	if flags.Has(FlagPadded) {
		var err error
		payload, err = http2utils.CutPadding(payload, frh.Len())
		if err != nil {
			return err
		}
	}

	if flags.Has(FlagPriority) {
		if len(payload) < 5 {
			return ErrMissingBytes
		}
		dep := http2utils.BytesToUint32(payload)
		h.exclusive = dep&0x80000000 != 0
		h.stream = dep & (1<<31 - 1)
		h.weight = payload[4]
		payload = payload[5:]
	}

	h.endStream = flags.Has(FlagEndStream)
	h.endHeaders = flags.Has(FlagEndHeaders)
	h.rawHeaders = append(h.rawHeaders[:0], payload...)

	return nil
}

func (h *Headers) Serialize(frh *FrameHeader) {
	if h.endStream {
		frh.SetFlags(frh.Flags().Add(FlagEndStream))
	}
	if h.endHeaders {
		frh.SetFlags(frh.Flags().Add(FlagEndHeaders))
	}

	payload := h.rawHeaders

	if h.weight > 0 {
		frh.SetFlags(frh.Flags().Add(FlagPriority))

		dep := h.stream
		if h.exclusive {
			dep |= 0x80000000
		}

		prefix := make([]byte, 5)
		http2utils.Uint32ToBytes(prefix, dep)
		prefix[4] = h.weight

		payload = append(prefix, payload...)
	}

	if h.hasPadding {
		frh.SetFlags(frh.Flags().Add(FlagPadded))
		payload = http2utils.AddPadding(payload)
	}

	frh.setPayload(payload)
}
