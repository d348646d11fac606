package http2

import (
	"bufio"
	"bytes"
	"testing"
)

func encodeFrame(t *testing.T, fr Frame, stream uint32) []byte {
	t.Helper()

	buf := bytes.NewBuffer(nil)
	bw := bufio.NewWriter(buf)

	frh := AcquireFrameHeader()
	defer ReleaseFrameHeader(frh)
	frh.SetStream(stream)
	frh.SetBody(fr)

	if _, err := frh.WriteTo(bw); err != nil {
		t.Fatalf("WriteTo: %s", err)
	}
	if err := bw.Flush(); err != nil {
		t.Fatalf("Flush: %s", err)
	}

	return buf.Bytes()
}

func TestDataFrameRoundTrip(t *testing.T) {
	d := AcquireData()
	d.SetData([]byte("hello world"))
	d.SetEndStream(true)

	raw := encodeFrame(t, d, 3)

	frh, consumed, err := DecodeFrame(raw, defaultMaxLen)
	if err != nil {
		t.Fatalf("DecodeFrame: %s", err)
	}
	if consumed != len(raw) {
		t.Fatalf("consumed = %d, want %d", consumed, len(raw))
	}

	got := frh.Body().(*Data)
	if string(got.Data()) != "hello world" {
		t.Fatalf("Data() = %q", got.Data())
	}
	if !got.EndStream() {
		t.Fatal("EndStream() = false, want true")
	}
	if frh.Stream() != 3 {
		t.Fatalf("Stream() = %d, want 3", frh.Stream())
	}
}

func TestDataFrameNeedsMoreData(t *testing.T) {
	d := AcquireData()
	d.SetData([]byte("partial"))
	raw := encodeFrame(t, d, 1)

	_, _, err := DecodeFrame(raw[:len(raw)-2], defaultMaxLen)
	if err != errNeedMoreData {
		t.Fatalf("err = %v, want errNeedMoreData", err)
	}
}

func TestHeadersFramePriority(t *testing.T) {
	h := AcquireHeaders()
	h.SetHeaders([]byte("fake-hpack-block"))
	h.SetEndHeaders(true)
	h.weight = 42
	h.stream = 7

	raw := encodeFrame(t, h, 5)

	frh, _, err := DecodeFrame(raw, defaultMaxLen)
	if err != nil {
		t.Fatalf("DecodeFrame: %s", err)
	}

	got := frh.Body().(*Headers)
	if got.StreamDep() != 7 {
		t.Fatalf("StreamDep() = %d, want 7", got.StreamDep())
	}
	if got.Weight() != 42 {
		t.Fatalf("Weight() = %d, want 42", got.Weight())
	}
	if string(got.Headers()) != "fake-hpack-block" {
		t.Fatalf("Headers() = %q", got.Headers())
	}
}

func TestWindowUpdateRoundTrip(t *testing.T) {
	wu := AcquireWindowUpdate()
	wu.SetIncrement(65535)

	raw := encodeFrame(t, wu, 0)

	frh, _, err := DecodeFrame(raw, defaultMaxLen)
	if err != nil {
		t.Fatalf("DecodeFrame: %s", err)
	}

	got := frh.Body().(*WindowUpdate)
	if got.Increment() != 65535 {
		t.Fatalf("Increment() = %d, want 65535", got.Increment())
	}
}

func TestUnknownFrameTypeIsIgnored(t *testing.T) {
	frh := AcquireFrameHeader()
	frh.length = 3
	frh.kind = FrameType(0x7f)
	frh.SetStream(0)

	header := make([]byte, DefaultFrameSize)
	frh.packValues(header)
	raw := append(header, []byte{1, 2, 3}...)

	_, consumed, err := DecodeFrame(raw, defaultMaxLen)
	if err != ErrIgnoreFrame {
		t.Fatalf("err = %v, want ErrIgnoreFrame", err)
	}
	if consumed != len(raw) {
		t.Fatalf("consumed = %d, want %d", consumed, len(raw))
	}

	ReleaseFrameHeader(frh)
}

func TestGoAwayEncodesDebugData(t *testing.T) {
	ga := AcquireGoAway()
	ga.SetLastStreamID(99)
	ga.SetCode(ProtocolErrorCode)
	ga.SetData([]byte("bye"))

	raw := encodeFrame(t, ga, 0)

	frh, _, err := DecodeFrame(raw, defaultMaxLen)
	if err != nil {
		t.Fatalf("DecodeFrame: %s", err)
	}

	got := frh.Body().(*GoAway)
	if got.LastStreamID() != 99 {
		t.Fatalf("LastStreamID() = %d, want 99", got.LastStreamID())
	}
	if got.Code() != ProtocolErrorCode {
		t.Fatalf("Code() = %s, want PROTOCOL_ERROR", got.Code())
	}
	if string(got.Data()) != "bye" {
		t.Fatalf("Data() = %q", got.Data())
	}
}
