package http2

import (
	"sync"

	"golang.org/x/net/http2/hpack"
)

// HeaderField is a single decoded (or to-be-encoded) header, exposed as
// a thin wrapper so callers never import golang.org/x/net/http2/hpack
// directly.
type HeaderField struct {
	Name, Value string
	Sensitive   bool
}

// IsPseudo reports whether f is a request pseudo-header (":method",
// ":path", ":scheme", ":authority") or response pseudo-header
// (":status").
func (f HeaderField) IsPseudo() bool {
	return len(f.Name) > 0 && f.Name[0] == ':'
}

// HPack is the header-compression worker, holding the encoder and
// decoder dynamic tables required by RFC 7541. A Conn holds two of
// them: one it encodes with and one it decodes with. It is
// a contract-only collaborator from the engine's point of view, which
// only ever calls Encode/Decode/SetMaxTableSize.
type HPack struct {
	enc *hpack.Encoder
	dec *hpack.Decoder

	encBuf bufWriter
	fields []HeaderField
}

// bufWriter adapts a growable []byte to io.Writer, the shape
// hpack.NewEncoder expects.
type bufWriter struct{ b []byte }

func (w *bufWriter) Write(p []byte) (int, error) {
	w.b = append(w.b, p...)
	return len(p), nil
}

var hpackPool = sync.Pool{
	New: func() interface{} {
		h := &HPack{}
		h.enc = hpack.NewEncoder(&h.encBuf)
		h.dec = hpack.NewDecoder(DefaultHeaderTableSize, nil)
		h.dec.SetEmitFunc(h.onField)
		return h
	},
}

// AcquireHPack returns an HPack worker from the pool.
func AcquireHPack() *HPack {
	h := hpackPool.Get().(*HPack)
	h.Reset()
	return h
}

// ReleaseHPack returns h to the pool.
func ReleaseHPack(h *HPack) {
	if h == nil {
		return
	}
	hpackPool.Put(h)
}

// Reset clears transient decode state. The dynamic tables themselves
// are connection-scoped and are NOT cleared here.
func (h *HPack) Reset() {
	h.encBuf.b = h.encBuf.b[:0]
	h.fields = h.fields[:0]
}

func (h *HPack) onField(f hpack.HeaderField) {
	h.fields = append(h.fields, HeaderField{Name: f.Name, Value: f.Value, Sensitive: f.Sensitive})
}

// SetMaxTableSize applies a peer-advertised SETTINGS_HEADER_TABLE_SIZE
// to the decoder's dynamic table, and caps what this end will allow
// the encoder to use on the peer's table.
func (h *HPack) SetMaxTableSize(n uint32) {
	h.dec.SetMaxDynamicTableSize(n)
	h.enc.SetMaxDynamicTableSize(n)
}

// Encode appends the HPACK wire encoding of fields to dst.
func (h *HPack) Encode(dst []byte, fields []HeaderField) []byte {
	h.encBuf.b = dst
	for _, f := range fields {
		_ = h.enc.WriteField(hpack.HeaderField{Name: f.Name, Value: f.Value, Sensitive: f.Sensitive})
	}
	return h.encBuf.b
}

// Decode parses a complete HPACK header block and returns the decoded
// fields. The returned slice is only valid until the next call to
// Decode on the same HPack.
func (h *HPack) Decode(block []byte) ([]HeaderField, error) {
	h.fields = h.fields[:0]
	if _, err := h.dec.Write(block); err != nil {
		return nil, err
	}
	return h.fields, nil
}
