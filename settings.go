package http2

import (
	"sync"

	"github.com/packruler/kadabra/http2utils"
)

var _ Frame = &Settings{}

// Settings identifier codes.
//
// https://tools.ietf.org/html/rfc7540#section-6.5.2
const (
	settingHeaderTableSize      uint16 = 0x1
	settingEnablePush           uint16 = 0x2
	settingMaxConcurrentStreams uint16 = 0x3
	settingInitialWindowSize    uint16 = 0x4
	settingMaxFrameSize         uint16 = 0x5
	settingMaxHeaderListSize    uint16 = 0x6
)

// Default values per RFC 7540 section 6.5.2, applied before any
// SETTINGS frame is exchanged.
const (
	DefaultHeaderTableSize   = 4096
	DefaultMaxFrameSize      = 16384
	DefaultInitialWindowSize = 65535
	maxWindowSize            = 1<<31 - 1

	// InfiniteStreams is the sentinel used when the peer never sends a
	// MAX_CONCURRENT_STREAMS value, i.e. the limit is unbounded.
	InfiniteStreams = 2_000_000_000
)

// Settings carries a SETTINGS frame: a set of connection-level
// parameters, or (if Ack) acknowledgement of a previously sent one.
//
// https://tools.ietf.org/html/rfc7540#section-6.5
type Settings struct {
	ack bool

	headerTableSize      uint32
	push                 bool
	maxConcurrentStreams uint32
	initialWindowSize    uint32
	maxFrameSize         uint32
	maxHeaderListSize    uint32

	// set tracks which fields were actually present on the wire, so
	// CopyTo/Serialize only touch explicitly-set parameters.
	set uint8
}

const (
	setHeaderTableSize = 1 << iota
	setEnablePush
	setMaxConcurrentStreams
	setInitialWindowSize
	setMaxFrameSize
	setMaxHeaderListSize
)

var settingsPool = sync.Pool{
	New: func() interface{} {
		return &Settings{}
	},
}

// AcquireSettings returns a Settings frame from the pool, populated
// with RFC 7540 defaults.
func AcquireSettings() *Settings {
	s := settingsPool.Get().(*Settings)
	s.Reset()
	return s
}

// ReleaseSettings returns s to the pool.
func ReleaseSettings(s *Settings) {
	if s == nil {
		return
	}
	settingsPool.Put(s)
}

func (s *Settings) Type() FrameType { return FrameSettings }

func (s *Settings) Reset() {
	s.ack = false
	s.headerTableSize = DefaultHeaderTableSize
	s.push = true
	s.maxConcurrentStreams = InfiniteStreams
	s.initialWindowSize = DefaultInitialWindowSize
	s.maxFrameSize = DefaultMaxFrameSize
	s.maxHeaderListSize = 0
	s.set = 0
}

// CopyTo copies only the explicitly-set fields from s onto dst,
// leaving dst's other values untouched.
func (s *Settings) CopyTo(dst *Settings) {
	dst.ack = s.ack
	if s.set&setHeaderTableSize != 0 {
		dst.headerTableSize = s.headerTableSize
		dst.set |= setHeaderTableSize
	}
	if s.set&setEnablePush != 0 {
		dst.push = s.push
		dst.set |= setEnablePush
	}
	if s.set&setMaxConcurrentStreams != 0 {
		dst.maxConcurrentStreams = s.maxConcurrentStreams
		dst.set |= setMaxConcurrentStreams
	}
	if s.set&setInitialWindowSize != 0 {
		dst.initialWindowSize = s.initialWindowSize
		dst.set |= setInitialWindowSize
	}
	if s.set&setMaxFrameSize != 0 {
		dst.maxFrameSize = s.maxFrameSize
		dst.set |= setMaxFrameSize
	}
	if s.set&setMaxHeaderListSize != 0 {
		dst.maxHeaderListSize = s.maxHeaderListSize
		dst.set |= setMaxHeaderListSize
	}
}

func (s *Settings) IsAck() bool    { return s.ack }
func (s *Settings) SetAck(v bool) { s.ack = v }

func (s *Settings) HeaderTableSize() uint32 { return s.headerTableSize }
func (s *Settings) SetHeaderTableSize(n uint32) {
	s.headerTableSize = n
	s.set |= setHeaderTableSize
}

func (s *Settings) EnablePush() bool { return s.push }
func (s *Settings) SetPush(v bool) {
	s.push = v
	s.set |= setEnablePush
}

func (s *Settings) MaxConcurrentStreams() uint32 { return s.maxConcurrentStreams }
func (s *Settings) SetMaxConcurrentStreams(n uint32) {
	s.maxConcurrentStreams = n
	s.set |= setMaxConcurrentStreams
}

func (s *Settings) InitialWindowSize() uint32 { return s.initialWindowSize }
func (s *Settings) SetInitialWindowSize(n uint32) {
	s.initialWindowSize = n
	s.set |= setInitialWindowSize
}

func (s *Settings) MaxFrameSize() uint32 { return s.maxFrameSize }
func (s *Settings) SetMaxFrameSize(n uint32) {
	s.maxFrameSize = n
	s.set |= setMaxFrameSize
}

func (s *Settings) MaxHeaderListSize() uint32 { return s.maxHeaderListSize }
func (s *Settings) SetMaxHeaderListSize(n uint32) {
	s.maxHeaderListSize = n
	s.set |= setMaxHeaderListSize
}

func (s *Settings) Deserialize(frh *FrameHeader) error {
	s.ack = frh.Flags().Has(FlagAck)
	if s.ack {
		return nil
	}

	payload := frh.payload
	if len(payload)%6 != 0 {
		return &ProtocolError{Code: FrameSizeError, Msg: "SETTINGS length not a multiple of 6"}
	}

	for len(payload) >= 6 {
		id := http2utils.BytesToUint16(payload)
		val := http2utils.BytesToUint32(payload[2:])
		payload = payload[6:]

		switch id {
		case settingHeaderTableSize:
			s.SetHeaderTableSize(val)
		case settingEnablePush:
			s.SetPush(val != 0)
		case settingMaxConcurrentStreams:
			s.SetMaxConcurrentStreams(val)
		case settingInitialWindowSize:
			if val > maxWindowSize {
				return &FlowControlError{Msg: "SETTINGS_INITIAL_WINDOW_SIZE exceeds 2^31-1"}
			}
			s.SetInitialWindowSize(val)
		case settingMaxFrameSize:
			s.SetMaxFrameSize(val)
		case settingMaxHeaderListSize:
			s.SetMaxHeaderListSize(val)
			// unknown settings identifiers are ignored, per 6.5.2
		}
	}

	return nil
}

func (s *Settings) Serialize(frh *FrameHeader) {
	if s.ack {
		frh.SetFlags(frh.Flags().Add(FlagAck))
		frh.setPayload(nil)
		return
	}

	payload := frh.payload[:0]
	if s.set&setHeaderTableSize != 0 {
		payload = appendSetting(payload, settingHeaderTableSize, s.headerTableSize)
	}
	if s.set&setEnablePush != 0 {
		v := uint32(0)
		if s.push {
			v = 1
		}
		payload = appendSetting(payload, settingEnablePush, v)
	}
	if s.set&setMaxConcurrentStreams != 0 {
		payload = appendSetting(payload, settingMaxConcurrentStreams, s.maxConcurrentStreams)
	}
	if s.set&setInitialWindowSize != 0 {
		payload = appendSetting(payload, settingInitialWindowSize, s.initialWindowSize)
	}
	if s.set&setMaxFrameSize != 0 {
		payload = appendSetting(payload, settingMaxFrameSize, s.maxFrameSize)
	}
	if s.set&setMaxHeaderListSize != 0 {
		payload = appendSetting(payload, settingMaxHeaderListSize, s.maxHeaderListSize)
	}

	frh.payload = payload
}

func appendSetting(dst []byte, id uint16, val uint32) []byte {
	dst = append(dst, byte(id>>8), byte(id))
	return http2utils.AppendUint32Bytes(dst, val)
}
