package http2

import (
	"errors"
	"fmt"
)

// ErrorCode is one of the HTTP/2 error codes used in RST_STREAM and
// GOAWAY frames.
//
// https://tools.ietf.org/html/rfc7540#section-11.4
type ErrorCode uint32

const (
	NoError              ErrorCode = 0x0
	ProtocolErrorCode    ErrorCode = 0x1
	InternalError        ErrorCode = 0x2
	FlowControlErrorCode ErrorCode = 0x3
	SettingsTimeoutError ErrorCode = 0x4
	StreamClosedError    ErrorCode = 0x5
	FrameSizeError       ErrorCode = 0x6
	RefusedStreamError   ErrorCode = 0x7
	CancelError          ErrorCode = 0x8
	CompressionError     ErrorCode = 0x9
	ConnectError         ErrorCode = 0xa
	EnhanceYourCalm      ErrorCode = 0xb
	InadequateSecurity   ErrorCode = 0xc
	HTTP11Required       ErrorCode = 0xd
)

var errorCodeStrings = [...]string{
	NoError:              "NO_ERROR",
	ProtocolErrorCode:    "PROTOCOL_ERROR",
	InternalError:        "INTERNAL_ERROR",
	FlowControlErrorCode: "FLOW_CONTROL_ERROR",
	SettingsTimeoutError: "SETTINGS_TIMEOUT",
	StreamClosedError:    "STREAM_CLOSED",
	FrameSizeError:       "FRAME_SIZE_ERROR",
	RefusedStreamError:   "REFUSED_STREAM",
	CancelError:          "CANCEL",
	CompressionError:     "COMPRESSION_ERROR",
	ConnectError:         "CONNECT_ERROR",
	EnhanceYourCalm:      "ENHANCE_YOUR_CALM",
	InadequateSecurity:   "INADEQUATE_SECURITY",
	HTTP11Required:       "HTTP_1_1_REQUIRED",
}

func (c ErrorCode) String() string {
	if int(c) < len(errorCodeStrings) && errorCodeStrings[c] != "" {
		return errorCodeStrings[c]
	}
	return fmt.Sprintf("UNKNOWN_ERROR(0x%x)", uint32(c))
}

// NewError builds a Go error carrying code and an optional message.
func NewError(code ErrorCode, msg string) error {
	if msg == "" {
		return fmt.Errorf("http2: %s", code)
	}
	return fmt.Errorf("http2: %s: %s", code, msg)
}

// Sentinel parse/codec errors.
var (
	ErrBadPreface      = errors.New("http2: bad connection preface")
	ErrUnexpectedFrame = errors.New("http2: unexpected frame type")
	ErrServerSupport   = errors.New("http2: server does not support HTTP/2")
)

// TransportError wraps a failure from the underlying socket transport
// (connect, send, or an unexpected close). Recovery: terminate the
// connection and notify the client of closure.
type TransportError struct{ Err error }

func (e *TransportError) Error() string { return fmt.Sprintf("http2: transport error: %s", e.Err) }
func (e *TransportError) Unwrap() error { return e.Err }

// ProtocolError reports that the peer violated HTTP/2 framing.
// Recovery: send GOAWAY with Code and close the connection.
type ProtocolError struct {
	Code ErrorCode
	Msg  string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("http2: protocol error (%s): %s", e.Code, e.Msg)
}

// FlowControlError reports a send/receive window overflow or a window
// driven negative. Recovery is identical to ProtocolError.
type FlowControlError struct{ Msg string }

func (e *FlowControlError) Error() string { return fmt.Sprintf("http2: flow control error: %s", e.Msg) }

// StreamError is scoped to a single stream (e.g. an inbound RST_STREAM).
// Recovery: close the offending stream only, the connection stays up.
type StreamError struct {
	StreamID uint32
	Code     ErrorCode
}

func (e *StreamError) Error() string {
	return fmt.Sprintf("http2: stream %d error: %s", e.StreamID, e.Code)
}

// CancelledByGoaway reports that a request was never delivered because
// the peer's GOAWAY named a lower last-stream-id.
type CancelledByGoaway struct {
	StreamID     uint32
	LastStreamID uint32
}

func (e *CancelledByGoaway) Error() string {
	return fmt.Sprintf("http2: stream %d cancelled by GOAWAY (last_stream_id=%d)", e.StreamID, e.LastStreamID)
}

// WriteError wraps a write-loop failure so callers can still unwrap to
// the underlying cause with errors.Is/errors.As.
type WriteError struct{ Err error }

func (we *WriteError) Error() string { return fmt.Sprintf("http2: write error: %s", we.Err) }
func (we *WriteError) Unwrap() error { return we.Err }
