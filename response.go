package http2

import (
	"strconv"
	"sync"

	"github.com/valyala/bytebufferpool"
)

// Response is a single inbound HTTP/2 response: status plus the
// decoded header list and accumulated body.
type Response struct {
	StatusCode int

	headers []HeaderField
	body    bytebufferpool.ByteBuffer
}

var responsePool = sync.Pool{
	New: func() interface{} { return new(Response) },
}

// AcquireResponse returns a Response from the pool.
func AcquireResponse() *Response {
	resp := responsePool.Get().(*Response)
	resp.Reset()
	return resp
}

// ReleaseResponse returns resp to the pool.
func ReleaseResponse(resp *Response) {
	if resp == nil {
		return
	}
	responsePool.Put(resp)
}

func (resp *Response) Reset() {
	resp.StatusCode = 0
	resp.headers = resp.headers[:0]
	resp.body.Reset()
}

// applyHeaders consumes a decoded HPACK header list, pulling out
// :status and stashing the rest as regular headers.
func (resp *Response) applyHeaders(fields []HeaderField) {
	for _, f := range fields {
		if f.Name == StringStatus {
			if code, err := strconv.Atoi(f.Value); err == nil {
				resp.StatusCode = code
			}
			continue
		}
		if f.IsPseudo() {
			continue
		}
		resp.headers = append(resp.headers, f)
	}
}

func (resp *Response) appendBody(b []byte) {
	_, _ = resp.body.Write(b)
}

func (resp *Response) Body() []byte { return resp.body.Bytes() }

// Header returns the first value set for name, case-sensitively, or
// "" if absent.
func (resp *Response) Header(name string) string {
	for _, f := range resp.headers {
		if f.Name == name {
			return f.Value
		}
	}
	return ""
}
