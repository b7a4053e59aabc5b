package wire

import (
	"bytes"
	"errors"
	"testing"
)

func TestHeaderLayout(t *testing.T) {
	buf := EncodeHeader(Header{Object: 1, Opcode: 1, Size: 12})
	want := []byte{1, 0, 0, 0, 1, 0, 12, 0}
	if !bytes.Equal(buf, want) {
		t.Fatalf("EncodeHeader() = %v, want %v", buf, want)
	}

	h, err := DecodeHeader(buf)
	if err != nil {
		t.Fatalf("DecodeHeader() error: %v", err)
	}
	if h.Object != 1 || h.Opcode != 1 || h.Size != 12 {
		t.Fatalf("DecodeHeader() = %+v", h)
	}
}

func TestDecodeHeaderRejectsShortInput(t *testing.T) {
	if _, err := DecodeHeader([]byte{1, 2, 3}); !errors.Is(err, ErrShortHeader) {
		t.Fatalf("DecodeHeader(short) error = %v, want ErrShortHeader", err)
	}
	if _, err := DecodeHeader(EncodeHeader(Header{Object: 3, Size: 4})); !errors.Is(err, ErrBadSize) {
		t.Fatalf("DecodeHeader(size 4) error = %v, want ErrBadSize", err)
	}
}

func TestStringArgumentIsPaddedAndTerminated(t *testing.T) {
	msg := NewBuilder(2, 0).Uint32(7).Str("wl_compositor").Uint32(1).Message()

	// 4 (name) + 4 (len) + 14 bytes padded to 16 + 4 (version)
	if got, want := len(msg.Args), 28; got != want {
		t.Fatalf("len(args) = %d, want %d", got, want)
	}

	d := NewDecoder(msg.Args, nil)
	name := d.Uint32()
	iface := d.Str()
	version := d.Uint32()
	if err := d.Err(); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if name != 7 || iface != "wl_compositor" || version != 1 {
		t.Fatalf("decoded (%d, %q, %d)", name, iface, version)
	}
}

func TestDecoderReportsTruncation(t *testing.T) {
	d := NewDecoder([]byte{1, 0}, nil)
	_ = d.Uint32()
	if !errors.Is(d.Err(), ErrShortArgs) {
		t.Fatalf("Err() = %v, want ErrShortArgs", d.Err())
	}
	// sticky: later reads keep the first error
	_ = d.Str()
	if !errors.Is(d.Err(), ErrShortArgs) {
		t.Fatalf("Err() after second read = %v, want ErrShortArgs", d.Err())
	}
}

func TestDecoderRejectsUnterminatedString(t *testing.T) {
	args := NewBuilder(1, 0).Array([]byte("abcd")).Message().Args
	d := NewDecoder(args, nil)
	if s := d.Str(); s != "" {
		t.Fatalf("Str() = %q, want empty", s)
	}
	if !errors.Is(d.Err(), ErrBadString) {
		t.Fatalf("Err() = %v, want ErrBadString", d.Err())
	}
}

func TestFixedRoundsToEighthBits(t *testing.T) {
	args := NewBuilder(1, 0).Fixed(1.5).Fixed(-2.25).Message().Args
	d := NewDecoder(args, nil)
	if got := d.Fixed(); got != 1.5 {
		t.Fatalf("Fixed() = %v, want 1.5", got)
	}
	if got := d.Fixed(); got != -2.25 {
		t.Fatalf("Fixed() = %v, want -2.25", got)
	}
}

func TestFDWithoutSourceFails(t *testing.T) {
	d := NewDecoder(nil, nil)
	if fd := d.FD(); fd != -1 {
		t.Fatalf("FD() = %d, want -1", fd)
	}
	if !errors.Is(d.Err(), ErrMissingFD) {
		t.Fatalf("Err() = %v, want ErrMissingFD", d.Err())
	}
}

func TestMarshalRejectsOversizedMessage(t *testing.T) {
	msg := NewBuilder(1, 0).Array(make([]byte, MaxMessageLen)).Message()
	if _, err := msg.Marshal(); !errors.Is(err, ErrMessageTooLarge) {
		t.Fatalf("Marshal() error = %v, want ErrMessageTooLarge", err)
	}
}
