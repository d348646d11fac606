package http2

import (
	"bufio"
	"errors"
	"sync"

	"github.com/packruler/kadabra/http2utils"
)

const (
	// DefaultFrameSize is the size, in bytes, of the frame header itself.
	//
	// http://httpwg.org/specs/rfc7540.html#FrameHeader
	DefaultFrameSize = 9

	// defaultMaxLen is the payload ceiling accepted before a peer has
	// negotiated a different SETTINGS_MAX_FRAME_SIZE.
	defaultMaxLen = 1 << 14
)

var errNeedMoreData = errors.New("http2: not enough buffered data yet")

// ErrMissingBytes is returned when a frame's payload is shorter than its
// type's minimum wire layout requires.
var ErrMissingBytes = errors.New("http2: missing bytes in frame payload")

// ErrPayloadExceeds is returned when an encoded frame would exceed the
// negotiated SETTINGS_MAX_FRAME_SIZE.
var ErrPayloadExceeds = errors.New("http2: frame payload exceeds the negotiated maximum size")

var frameHeaderPool = sync.Pool{
	New: func() interface{} {
		return &FrameHeader{}
	},
}

// FrameHeader is the 9-octet frame header plus the raw payload bytes and
// the decoded Frame body living behind it.
//
// Use AcquireFrameHeader/ReleaseFrameHeader to work with a pool; a
// FrameHeader instance must not be shared across goroutines.
//
// https://tools.ietf.org/html/rfc7540#section-4.1
type FrameHeader struct {
	length int        // 24 bits
	kind   FrameType  // 8 bits
	flags  FrameFlags // 8 bits
	stream uint32     // 31 bits

	maxLen uint32

	rawHeader [DefaultFrameSize]byte
	payload   []byte

	fr Frame
}

// AcquireFrameHeader returns a FrameHeader from the pool, reset to zero
// values.
func AcquireFrameHeader() *FrameHeader {
	frh := frameHeaderPool.Get().(*FrameHeader)
	frh.Reset()
	return frh
}

// ReleaseFrameHeader releases frh's body (if any) and returns frh to the
// pool.
func ReleaseFrameHeader(frh *FrameHeader) {
	if frh == nil {
		return
	}
	ReleaseFrame(frh.fr)
	frameHeaderPool.Put(frh)
}

// Reset clears frh so it can be reused for a different frame.
func (frh *FrameHeader) Reset() {
	frh.kind = 0
	frh.flags = 0
	frh.stream = 0
	frh.length = 0
	frh.maxLen = defaultMaxLen
	frh.fr = nil
	frh.payload = frh.payload[:0]
}

// Type returns the frame type.
func (frh *FrameHeader) Type() FrameType { return frh.kind }

// Flags returns the frame flags.
func (frh *FrameHeader) Flags() FrameFlags { return frh.flags }

// SetFlags overwrites the frame flags.
func (frh *FrameHeader) SetFlags(flags FrameFlags) { frh.flags = flags }

// Stream returns the frame's stream id (0 for connection-scoped frames).
func (frh *FrameHeader) Stream() uint32 { return frh.stream }

// SetStream sets the frame's stream id.
func (frh *FrameHeader) SetStream(stream uint32) { frh.stream = stream & (1<<31 - 1) }

// Len returns the decoded payload length.
func (frh *FrameHeader) Len() int { return frh.length }

// MaxLen returns the negotiated max frame payload size used to validate
// this header, 0 meaning unbounded.
func (frh *FrameHeader) MaxLen() uint32 { return frh.maxLen }

// SetMaxLen sets the max frame payload size used on decode/encode.
func (frh *FrameHeader) SetMaxLen(max uint32) { frh.maxLen = max }

// Body returns the decoded frame payload, or nil if none has been set.
func (frh *FrameHeader) Body() Frame { return frh.fr }

// SetBody attaches fr as the frame's payload and updates the frame type
// to match.
func (frh *FrameHeader) SetBody(fr Frame) {
	if fr == nil {
		panic("http2: frame body cannot be nil")
	}
	frh.kind = fr.Type()
	frh.fr = fr
}

func (frh *FrameHeader) setPayload(payload []byte) {
	frh.payload = append(frh.payload[:0], payload...)
}

func (frh *FrameHeader) checkLen() error {
	if frh.maxLen != 0 && frh.length > int(frh.maxLen) {
		return ErrPayloadExceeds
	}
	return nil
}

func (frh *FrameHeader) parseValues(header []byte) {
	frh.length = int(http2utils.BytesToUint24(header[:3]))
	frh.kind = FrameType(header[3])
	frh.flags = FrameFlags(header[4])
	frh.stream = http2utils.BytesToUint32(header[5:]) & (1<<31 - 1)
}

func (frh *FrameHeader) packValues(header []byte) {
	http2utils.Uint24ToBytes(header[:3], uint32(frh.length))
	header[3] = byte(frh.kind)
	header[4] = byte(frh.flags)
	http2utils.Uint32ToBytes(header[5:], frh.stream)
}

// DecodeFrame parses a single frame out of a byte accumulator, mirroring
// the connection engine's on_bytes model: buf is never consumed directly
// from a socket, it is whatever the transport adapter has delivered so
// far. It returns the decoded FrameHeader and the number of bytes
// consumed from buf, or errNeedMoreData if buf doesn't yet hold a whole
// frame (the caller must keep buffering and retry once more bytes
// arrive).
//
// An unknown frame type is not a hard error: DecodeFrame still reports
// how many bytes to discard, returned together with ErrIgnoreFrame
// itself (not wrapped), so the caller can skip it and keep draining the
// accumulator.
func DecodeFrame(buf []byte, maxLen uint32) (frh *FrameHeader, consumed int, err error) {
	if len(buf) < DefaultFrameSize {
		return nil, 0, errNeedMoreData
	}

	frh = AcquireFrameHeader()
	frh.maxLen = maxLen
	frh.parseValues(buf[:DefaultFrameSize])

	if err = frh.checkLen(); err != nil {
		ReleaseFrameHeader(frh)
		return nil, 0, err
	}

	total := DefaultFrameSize + frh.length
	if len(buf) < total {
		ReleaseFrameHeader(frh)
		return nil, 0, errNeedMoreData
	}

	payload := buf[DefaultFrameSize:total]

	if frh.kind < minFrameType || frh.kind > maxFrameType {
		frh.payload = append(frh.payload[:0], payload...)
		return frh, total, ErrIgnoreFrame
	}

	frh.fr, err = AcquireFrame(frh.kind)
	if err != nil {
		return frh, total, err
	}

	frh.payload = append(frh.payload[:0], payload...)

	if err = frh.fr.Deserialize(frh); err != nil {
		return frh, total, err
	}

	return frh, total, nil
}

// WriteTo encodes frh (header + payload) to bw.
func (frh *FrameHeader) WriteTo(bw *bufio.Writer) (int64, error) {
	if frh.fr != nil {
		frh.fr.Serialize(frh)
	}

	frh.length = len(frh.payload)
	frh.packValues(frh.rawHeader[:])

	n, err := bw.Write(frh.rawHeader[:])
	wb := int64(n)
	if err == nil {
		n, err = bw.Write(frh.payload)
		wb += int64(n)
	}

	return wb, err
}

// WritePreface writes the 24-octet client connection preface to bw.
func WritePreface(bw *bufio.Writer) error {
	_, err := bw.Write(http2Preface)
	return err
}
