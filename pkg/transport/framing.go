package transport

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

// MaxFrameLength is the largest legal decoded length (spec §8's round-trip
// law is stated "for all length ∈ [0, 2^31)"): the header's 4-byte length
// field is unsigned on the wire, but a decoded value whose top bit is set
// is treated as the "negative decoded length" error case spec §4.A calls
// out, not as a valid 31-bit length.
const MaxFrameLength = 1<<31 - 1

// FrameCodec implements component A, the framing codec: encode/decode
// length-prefixed payloads with a caller-chosen marker and endianness.
// The zero value (empty marker, nil Order) is legal and degenerates to a
// pure 4-byte length prefix in little-endian order.
type FrameCodec struct {
	Marker []byte
	Order  binary.ByteOrder
}

func newFrameCodec(cfg *SessionConfig) FrameCodec {
	return FrameCodec{Marker: cfg.PayloadMarker, Order: cfg.endian()}
}

func (c FrameCodec) order() binary.ByteOrder {
	if c.Order == nil {
		return binary.LittleEndian
	}
	return c.Order
}

// HeaderSize returns M + 4, the number of bytes a header occupies.
func (c FrameCodec) HeaderSize() int {
	return len(c.Marker) + 4
}

// EncodeHeader returns marker || length in the configured endianness.
// This is the spec's add_header primitive in its pure, buffer-returning
// form (the (buf, off, len) triple the spec describes collapses to a
// plain []byte in Go, since append already manages growth).
func (c FrameCodec) EncodeHeader(length int) []byte {
	header := make([]byte, c.HeaderSize())
	copy(header, c.Marker)
	c.order().PutUint32(header[len(c.Marker):], uint32(length))
	return header
}

// AddHeader prepends marker || length to payload.
func (c FrameCodec) AddHeader(payload []byte) []byte {
	framed := make([]byte, 0, c.HeaderSize()+len(payload))
	framed = append(framed, c.EncodeHeader(len(payload))...)
	framed = append(framed, payload...)
	return framed
}

// ExtractLength decodes a header previously produced by EncodeHeader (or
// received off the wire) and returns its length field. header must be
// exactly HeaderSize() bytes. It returns an error wrapping
// ErrFramingError if the marker doesn't match or the decoded length is
// outside [0, MaxFrameLength] (spec's "invalid marker or negative-decoded
// length").
func (c FrameCodec) ExtractLength(header []byte) (int, error) {
	if len(header) != c.HeaderSize() {
		return 0, fmt.Errorf("transport: short frame header: got %d bytes, want %d", len(header), c.HeaderSize())
	}
	if len(c.Marker) > 0 && !bytes.Equal(header[:len(c.Marker)], c.Marker) {
		return 0, NewError(KindFramingError, "marker mismatch", nil)
	}
	raw := c.order().Uint32(header[len(c.Marker):])
	if raw > MaxFrameLength {
		return 0, NewError(KindFramingError, "decoded length out of range", nil)
	}
	return int(raw), nil
}

// FrameWriter writes length-prefixed frames to an underlying writer. The
// send loop does not use it: in payload-aware mode it calls AddHeader and
// writes the result itself, and in unaware mode it writes raw payload
// bytes.
type FrameWriter struct {
	w     io.Writer
	codec FrameCodec
}

// NewFrameWriter creates a FrameWriter over w using codec.
func NewFrameWriter(w io.Writer, codec FrameCodec) *FrameWriter {
	return &FrameWriter{w: w, codec: codec}
}

// WriteFrame writes one length-prefixed frame. A zero-length payload is
// legal and produces an empty frame (spec: "A length of 0 is valid and
// yields an empty payload").
func (fw *FrameWriter) WriteFrame(payload []byte) (int, error) {
	framed := fw.codec.AddHeader(payload)
	return fw.w.Write(framed)
}

// ReadFrameHeader reads exactly HeaderSize() bytes from r and decodes the
// payload length, matching the receive loop's "waiting-for-header"
// sub-state (spec §4.F). The receive loop's readFrame (recvloop.go) calls
// it for every frame; it is exported for tests exercising the codec at
// stream level.
func ReadFrameHeader(r io.Reader, codec FrameCodec) (int, error) {
	header := make([]byte, codec.HeaderSize())
	if _, err := io.ReadFull(r, header); err != nil {
		return 0, err
	}
	return codec.ExtractLength(header)
}
