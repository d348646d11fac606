package http2

import (
	"bufio"
	"context"
	"net"
	"testing"
	"time"
)

// fakeServer reads frames off one end of a net.Pipe and lets a test
// script respond by hand, playing the server side of the handshake
// and request/response exchange without a real TLS listener.
type fakeServer struct {
	conn net.Conn
	br   *bufio.Reader
	bw   *bufio.Writer
}

func newFakeServer(conn net.Conn) *fakeServer {
	return &fakeServer{conn: conn, br: bufio.NewReader(conn), bw: bufio.NewWriter(conn)}
}

func (fs *fakeServer) readPreface(t *testing.T) {
	t.Helper()
	buf := make([]byte, len(http2Preface))
	if _, err := fullRead(fs.br, buf); err != nil {
		t.Fatalf("reading preface: %s", err)
	}
	if string(buf) != string(http2Preface) {
		t.Fatalf("bad preface: %q", buf)
	}
}

func fullRead(br *bufio.Reader, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := br.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

func (fs *fakeServer) readFrame(t *testing.T) *FrameHeader {
	t.Helper()

	header := make([]byte, DefaultFrameSize)
	if _, err := fullRead(fs.br, header); err != nil {
		t.Fatalf("reading frame header: %s", err)
	}

	frh := AcquireFrameHeader()
	frh.parseValues(header)

	payload := make([]byte, frh.length)
	if frh.length > 0 {
		if _, err := fullRead(fs.br, payload); err != nil {
			t.Fatalf("reading frame payload: %s", err)
		}
	}
	frh.payload = append(frh.payload[:0], payload...)

	var err error
	frh.fr, err = AcquireFrame(frh.kind)
	if err == nil {
		if derr := frh.fr.Deserialize(frh); derr != nil {
			t.Fatalf("deserializing %s: %s", frh.kind, derr)
		}
	}

	return frh
}

func (fs *fakeServer) writeFrame(t *testing.T, body Frame, stream uint32) {
	t.Helper()

	frh := AcquireFrameHeader()
	defer ReleaseFrameHeader(frh)
	frh.SetStream(stream)
	frh.SetBody(body)

	if _, err := frh.WriteTo(fs.bw); err != nil {
		t.Fatalf("writing frame: %s", err)
	}
	if err := fs.bw.Flush(); err != nil {
		t.Fatalf("flushing: %s", err)
	}
}

// serverHandshake plays the server side of Conn.handshake: consume the
// preface and client SETTINGS, send our own SETTINGS, then consume the
// client's ACK of it.
func (fs *fakeServer) serverHandshake(t *testing.T) {
	t.Helper()

	fs.readPreface(t)

	frh := fs.readFrame(t) // client SETTINGS
	if frh.Type() != FrameSettings {
		t.Fatalf("expected client SETTINGS, got %s", frh.Type())
	}
	ReleaseFrameHeader(frh)

	st := AcquireSettings()
	fs.writeFrame(t, st, 0)

	frh = fs.readFrame(t) // client SETTINGS ACK
	if frh.Type() != FrameSettings || !frh.Body().(*Settings).IsAck() {
		t.Fatalf("expected client SETTINGS ack, got %s", frh.Type())
	}
	ReleaseFrameHeader(frh)
}

func dialPair(t *testing.T) (*Conn, *fakeServer) {
	t.Helper()

	clientRaw, serverRaw := net.Pipe()
	fs := newFakeServer(serverRaw)

	done := make(chan struct{})
	go func() {
		fs.serverHandshake(t)
		close(done)
	}()

	c := newConn(clientRaw, ConnOpts{PingInterval: time.Hour})
	if err := c.handshake(); err != nil {
		t.Fatalf("handshake: %s", err)
	}
	<-done

	c.start()

	return c, fs
}

func TestEngineHandshake(t *testing.T) {
	c, _ := dialPair(t)
	defer c.Close()
}

func TestEnginePingRoundTrip(t *testing.T) {
	c, fs := dialPair(t)
	defer c.Close()

	go func() {
		frh := fs.readFrame(t)
		defer ReleaseFrameHeader(frh)
		p := frh.Body().(*Ping)
		reply := AcquirePing()
		reply.SetAck(true)
		reply.SetData(p.Data())
		fs.writeFrame(t, reply, 0)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := c.Ping(ctx); err != nil {
		t.Fatalf("Ping: %s", err)
	}
}

func TestEngineSettingsAckEnlargesConnWindow(t *testing.T) {
	c, fs := dialPair(t)
	defer c.Close()

	ack := AcquireSettings()
	ack.SetAck(true)
	fs.writeFrame(t, ack, 0)

	frh := fs.readFrame(t)
	defer ReleaseFrameHeader(frh)

	if frh.Type() != FrameWindowUpdate || frh.Stream() != 0 {
		t.Fatalf("expected connection WINDOW_UPDATE, got %s on stream %d", frh.Type(), frh.Stream())
	}

	wu := frh.Body().(*WindowUpdate)
	want := int32(maxWindowSize) - DefaultInitialWindowSize
	if wu.Increment() != want {
		t.Fatalf("increment = %d, want %d", wu.Increment(), want)
	}
}

func TestEngineRejectsFrameInterleavedWithContinuation(t *testing.T) {
	c, fs := dialPair(t)
	defer c.Close()

	go func() {
		frh := fs.readFrame(t) // HEADERS
		ReleaseFrameHeader(frh)

		enc := AcquireHPack()
		defer ReleaseHPack(enc)
		block := enc.Encode(nil, []HeaderField{{Name: StringStatus, Value: "200"}})

		h := AcquireHeaders()
		h.SetHeaders(block)
		h.SetEndHeaders(false) // no END_HEADERS: a CONTINUATION must follow
		fs.writeFrame(t, h, frh.Stream())

		// Illegal: a DATA frame before the CONTINUATION completes the
		// header block.
		d := AcquireData()
		d.SetData([]byte("oops"))
		fs.writeFrame(t, d, frh.Stream())
	}()

	req := AcquireRequest()
	req.Method = "GET"
	req.Path = "/"
	req.Authority = "example.com"

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := c.Do(ctx, req)
	if err == nil {
		t.Fatal("expected an error, connection should have been closed on PROTOCOL_ERROR")
	}
}

func TestEngineRequestResponse(t *testing.T) {
	c, fs := dialPair(t)
	defer c.Close()

	go func() {
		frh := fs.readFrame(t) // HEADERS
		defer ReleaseFrameHeader(frh)

		h := frh.Body().(*Headers)
		if !h.EndStream() {
			t.Errorf("expected END_STREAM on bodyless request")
		}

		enc := AcquireHPack()
		defer ReleaseHPack(enc)
		block := enc.Encode(nil, []HeaderField{{Name: StringStatus, Value: "200"}})

		resp := AcquireHeaders()
		resp.SetHeaders(block)
		resp.SetEndHeaders(true)
		resp.SetEndStream(true)
		fs.writeFrame(t, resp, frh.Stream())
	}()

	req := AcquireRequest()
	req.Method = "GET"
	req.Path = "/"
	req.Authority = "example.com"

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	resp, err := c.Do(ctx, req)
	if err != nil {
		t.Fatalf("Do: %s", err)
	}
	if resp.StatusCode != 200 {
		t.Fatalf("StatusCode = %d, want 200", resp.StatusCode)
	}
}
