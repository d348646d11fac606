package http2

// Pseudo-header and well-known header names, as plain strings to match
// the string-based HeaderField.
var (
	StringPath          = ":path"
	StringStatus        = ":status"
	StringAuthority     = ":authority"
	StringScheme        = ":scheme"
	StringMethod        = ":method"
	StringContentLength = "content-length"
	StringContentType   = "content-type"
	StringUserAgent     = "user-agent"
)

const (
	// H2TLSProto is the ALPN protocol id negotiated for HTTP/2 over TLS.
	H2TLSProto = "h2"

	defaultUserAgent = "kadabra/http2"
)
