package http2

import (
	"sync"

	"github.com/valyala/bytebufferpool"
)

// Request is a single outbound HTTP/2 request: pseudo-headers plus an
// ordered header list and an optional body.
type Request struct {
	Method    string
	Path      string
	Authority string
	Scheme    string

	headers []HeaderField
	body    bytebufferpool.ByteBuffer
}

var requestPool = sync.Pool{
	New: func() interface{} { return new(Request) },
}

// AcquireRequest returns a Request from the pool.
func AcquireRequest() *Request {
	req := requestPool.Get().(*Request)
	req.Reset()
	return req
}

// ReleaseRequest returns req to the pool.
func ReleaseRequest(req *Request) {
	if req == nil {
		return
	}
	requestPool.Put(req)
}

func (req *Request) Reset() {
	req.Method = ""
	req.Path = ""
	req.Authority = ""
	req.Scheme = H2TLSProto
	req.headers = req.headers[:0]
	req.body.Reset()
}

// SetHeader appends a plain (non-pseudo) header to the request.
func (req *Request) SetHeader(name, value string) {
	req.headers = append(req.headers, HeaderField{Name: name, Value: value})
}

func (req *Request) SetBody(b []byte) {
	req.body.Reset()
	_, _ = req.body.Write(b)
}

func (req *Request) Body() []byte { return req.body.Bytes() }

// headerFields returns the full pseudo-header-first field list used
// for HPACK encoding, per RFC 7540 section 8.1.2.3.
func (req *Request) headerFields() []HeaderField {
	out := make([]HeaderField, 0, 4+len(req.headers))
	out = append(out,
		HeaderField{Name: StringMethod, Value: req.Method},
		HeaderField{Name: StringScheme, Value: req.Scheme},
		HeaderField{Name: StringPath, Value: req.Path},
	)
	if req.Authority != "" {
		out = append(out, HeaderField{Name: StringAuthority, Value: req.Authority})
	}
	return append(out, req.headers...)
}
