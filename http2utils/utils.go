// Package http2utils holds small byte-level helpers shared by the frame
// codec: big-endian integer packing, padding, and zero-copy conversions.
package http2utils

import (
	"crypto/rand"
	"fmt"
	"reflect"
	"unsafe"

	"github.com/valyala/fastrand"
)

func Uint24ToBytes(b []byte, n uint32) {
	_ = b[2] // bound checking
	b[0] = byte(n >> 16)
	b[1] = byte(n >> 8)
	b[2] = byte(n)
}

func BytesToUint24(b []byte) uint32 {
	_ = b[2] // bound checking
	return uint32(b[0])<<16 |
		uint32(b[1])<<8 |
		uint32(b[2])
}

func BytesToUint16(b []byte) uint16 {
	_ = b[1] // bound checking
	return uint16(b[0])<<8 | uint16(b[1])
}

func Uint32ToBytes(b []byte, n uint32) {
	_ = b[3] // bound checking
	b[0] = byte(n >> 24)
	b[1] = byte(n >> 16)
	b[2] = byte(n >> 8)
	b[3] = byte(n)
}

func BytesToUint32(b []byte) uint32 {
	_ = b[3] // bound checking
	n := uint32(b[0])<<24 |
		uint32(b[1])<<16 |
		uint32(b[2])<<8 |
		uint32(b[3])
	return n
}

func AppendUint32Bytes(dst []byte, n uint32) []byte {
	dst = append(dst, byte(n>>24))
	dst = append(dst, byte(n>>16))
	dst = append(dst, byte(n>>8))
	dst = append(dst, byte(n))
	return dst
}

// Resize grows b so that it has at least neededLen bytes available,
// returning the resliced buffer.
func Resize(b []byte, neededLen int) []byte {
	b = b[:cap(b)]

	if n := neededLen - len(b); n > 0 {
		b = append(b, make([]byte, n)...)
	}

	return b[:neededLen]
}

// CutPadding strips the pad-length byte and trailing padding from payload,
// per the PADDED flag layout shared by DATA, HEADERS and PUSH_PROMISE.
func CutPadding(payload []byte, length int) ([]byte, error) {
	if len(payload) == 0 {
		return nil, fmt.Errorf("padded frame with empty payload")
	}

	pad := int(payload[0])
	if length-pad-1 < 0 || len(payload) < length-pad-1 {
		return nil, fmt.Errorf("invalid pad length: %d for payload of %d", pad, length)
	}

	return payload[1 : length-pad], nil
}

// AddPadding prepends a random pad-length byte and appends that many
// random padding bytes, mirroring the teacher's padding randomization.
func AddPadding(b []byte) []byte {
	n := int(fastrand.Uint32n(256-9)) + 9
	nn := len(b)

	b = Resize(b, nn+n+1)
	copy(b[1:], b[:nn])

	b[0] = uint8(n)

	_, _ = rand.Read(b[nn+1 : nn+n+1])

	return b
}

// FastBytesToString converts a byte slice to a string without allocating.
func FastBytesToString(b []byte) string {
	return *(*string)(unsafe.Pointer(&b))
}

// FastStringToBytes converts a string to a byte slice without allocating.
// The returned slice must not be mutated.
func FastStringToBytes(s string) []byte {
	sh := (*reflect.StringHeader)(unsafe.Pointer(&s))
	bh := reflect.SliceHeader{
		Data: sh.Data,
		Len:  sh.Len,
		Cap:  sh.Len,
	}

	return *(*[]byte)(unsafe.Pointer(&bh))
}
