package transport_test

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"

	"github.com/gemstone/communication/pkg/transport"
)

func TestAddHeaderExtractLengthRoundTrip(t *testing.T) {
	lengths := []int{0, 1, 2, 255, 256, 65535, 65536, 1 << 20, transport.MaxFrameLength}

	for _, marker := range [][]byte{nil, {}, {0xAA, 0x55}, {0x01, 0x02, 0x03, 0x04, 0x05}} {
		for _, order := range []binary.ByteOrder{binary.LittleEndian, binary.BigEndian} {
			codec := transport.FrameCodec{Marker: marker, Order: order}
			for _, length := range lengths {
				header := codec.EncodeHeader(length)
				got, err := codec.ExtractLength(header)
				if err != nil {
					t.Fatalf("marker=%v order=%v length=%d: ExtractLength error: %v", marker, order, length, err)
				}
				if got != length {
					t.Fatalf("marker=%v order=%v length=%d: round trip got %d", marker, order, length, got)
				}
			}
		}
	}
}

func TestAddHeaderProducesReadablePayload(t *testing.T) {
	codec := transport.FrameCodec{Marker: []byte{0xAA, 0x55}, Order: binary.LittleEndian}
	payload := []byte{0x01, 0x02, 0x03}

	framed := codec.AddHeader(payload)
	if len(framed) != codec.HeaderSize()+len(payload) {
		t.Fatalf("framed length = %d, want %d", len(framed), codec.HeaderSize()+len(payload))
	}

	length, err := codec.ExtractLength(framed[:codec.HeaderSize()])
	if err != nil {
		t.Fatalf("ExtractLength: %v", err)
	}
	if length != len(payload) {
		t.Fatalf("length = %d, want %d", length, len(payload))
	}
	if !bytes.Equal(framed[codec.HeaderSize():], payload) {
		t.Fatalf("payload mismatch")
	}
}

func TestExtractLengthInvalidMarker(t *testing.T) {
	codec := transport.FrameCodec{Marker: []byte{0xAA, 0x55}}
	header := codec.EncodeHeader(3)
	header[0] = 0xFF // corrupt the marker

	_, err := codec.ExtractLength(header)
	if !errors.Is(err, transport.ErrFramingError) {
		t.Fatalf("expected ErrFramingError, got %v", err)
	}
}

func TestExtractLengthNegativeDecoded(t *testing.T) {
	codec := transport.FrameCodec{}
	header := make([]byte, codec.HeaderSize())
	binary.LittleEndian.PutUint32(header, 0xFFFFFFFF) // top bit set: "negative"

	_, err := codec.ExtractLength(header)
	if !errors.Is(err, transport.ErrFramingError) {
		t.Fatalf("expected ErrFramingError, got %v", err)
	}
}

func TestZeroMarkerIsPureLengthPrefix(t *testing.T) {
	codec := transport.FrameCodec{} // Marker length 0
	if codec.HeaderSize() != 4 {
		t.Fatalf("HeaderSize = %d, want 4", codec.HeaderSize())
	}

	framed := codec.AddHeader([]byte("hi"))
	if len(framed) != 6 {
		t.Fatalf("framed length = %d, want 6", len(framed))
	}
}

func TestFrameWriterWriteFrame(t *testing.T) {
	var buf bytes.Buffer
	codec := transport.FrameCodec{Marker: []byte{0xAA, 0x55}, Order: binary.LittleEndian}
	fw := transport.NewFrameWriter(&buf, codec)

	if _, err := fw.WriteFrame([]byte{1, 2, 3}); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}

	length, err := transport.ReadFrameHeader(&buf, codec)
	if err != nil {
		t.Fatalf("ReadFrameHeader: %v", err)
	}
	if length != 3 {
		t.Fatalf("length = %d, want 3", length)
	}

	body := make([]byte, length)
	if _, err := buf.Read(body); err != nil {
		t.Fatalf("reading body: %v", err)
	}
	if !bytes.Equal(body, []byte{1, 2, 3}) {
		t.Fatalf("body mismatch: %v", body)
	}
}

func TestEmptyFrameRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	codec := transport.FrameCodec{}
	fw := transport.NewFrameWriter(&buf, codec)

	if _, err := fw.WriteFrame(nil); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}

	length, err := transport.ReadFrameHeader(&buf, codec)
	if err != nil {
		t.Fatalf("ReadFrameHeader: %v", err)
	}
	if length != 0 {
		t.Fatalf("length = %d, want 0", length)
	}
}
