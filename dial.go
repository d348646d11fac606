package http2

import (
	"bufio"
	"crypto/tls"
	"net"
	"time"
)

// DefaultPingInterval is used when ConnOpts.PingInterval is left at
// its zero value. Keepalive pings cannot be disabled outright, only
// spaced further apart.
const DefaultPingInterval = 30 * time.Second

// ConnOpts configures a Conn produced by Dialer.Dial.
type ConnOpts struct {
	// PingInterval is how often the engine sends an unsolicited PING to
	// detect a dead peer. Zero means DefaultPingInterval.
	PingInterval time.Duration

	// DisablePingChecking disables closing the connection after
	// repeated un-acked pings; the pings themselves are still sent.
	DisablePingChecking bool

	// MaxConnWindow is the connection-level receive window advertised
	// during the handshake, via an initial WINDOW_UPDATE. Values up to
	// DefaultInitialWindowSize, including zero, send no WINDOW_UPDATE at
	// handshake time. Either way the window is raised to 2^31-1 once the
	// peer acks our SETTINGS (see Conn.onSettingsAcked).
	MaxConnWindow int32

	// OnGoAway is called when the peer sends a GOAWAY frame, before the
	// connection is torn down.
	OnGoAway func(code ErrorCode, debugData []byte)

	// OnDisconnect is called from the engine goroutine when the
	// connection shuts down, for any reason. It runs before Close
	// returns; the reader goroutine may still be exiting at that point.
	OnDisconnect func(*Conn)
}

// Dialer creates HTTP/2 client connections over TLS, negotiating the
// "h2" ALPN protocol.
type Dialer struct {
	// Addr is the server's address in "host:port" form.
	Addr string

	// TLSConfig is the TLS configuration used to dial. If nil, a
	// default config requesting the "h2" protocol is built.
	TLSConfig *tls.Config

	// DialTimeout bounds the TCP+TLS handshake. Zero means no timeout.
	DialTimeout time.Duration
}

func (d *Dialer) tlsConfig() *tls.Config {
	if d.TLSConfig == nil {
		return &tls.Config{NextProtos: []string{H2TLSProto}}
	}

	for _, p := range d.TLSConfig.NextProtos {
		if p == H2TLSProto {
			return d.TLSConfig
		}
	}

	cfg := d.TLSConfig.Clone()
	cfg.NextProtos = append(cfg.NextProtos, H2TLSProto)
	return cfg
}

func (d *Dialer) tryDial() (net.Conn, error) {
	var deadline time.Time
	if d.DialTimeout > 0 {
		deadline = time.Now().Add(d.DialTimeout)
	}
	dialer := &net.Dialer{Deadline: deadline}

	rawConn, err := dialer.Dial("tcp", d.Addr)
	if err != nil {
		return nil, &TransportError{Err: err}
	}

	_ = rawConn.SetDeadline(deadline)
	tlsConn := tls.Client(rawConn, d.tlsConfig())
	if err := tlsConn.Handshake(); err != nil {
		_ = rawConn.Close()
		return nil, &TransportError{Err: err}
	}

	if tlsConn.ConnectionState().NegotiatedProtocol != H2TLSProto {
		_ = tlsConn.Close()
		return nil, ErrServerSupport
	}
	_ = rawConn.SetDeadline(time.Time{})

	return tlsConn, nil
}

// Dial opens a TCP+TLS connection, negotiates HTTP/2 and performs the
// client-side handshake (preface, initial SETTINGS, waiting for and
// acking the server's SETTINGS), returning a live Conn whose engine
// goroutine is already running. The bulk connection-window enlargement
// WINDOW_UPDATE is sent later, once the server acks our SETTINGS; see
// Conn.onSettingsAcked.
func (d *Dialer) Dial(opts ConnOpts) (*Conn, error) {
	nc, err := d.tryDial()
	if err != nil {
		return nil, err
	}

	c := newConn(nc, opts)
	if err := c.handshake(); err != nil {
		_ = nc.Close()
		return nil, err
	}

	c.start()

	return c, nil
}

func writePreface(bw *bufio.Writer, local *Settings, windowDelta int32) error {
	if err := WritePreface(bw); err != nil {
		return err
	}

	frh := AcquireFrameHeader()
	defer ReleaseFrameHeader(frh)

	st := AcquireSettings()
	local.CopyTo(st)
	frh.SetBody(st)

	if _, err := frh.WriteTo(bw); err != nil {
		return err
	}

	if windowDelta > 0 {
		frh2 := AcquireFrameHeader()
		defer ReleaseFrameHeader(frh2)

		wu := AcquireWindowUpdate()
		wu.SetIncrement(windowDelta)
		frh2.SetBody(wu)

		if _, err := frh2.WriteTo(bw); err != nil {
			return err
		}
	}

	return bw.Flush()
}
