package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

const (
	// HeaderLen is the size of the fixed message header.
	HeaderLen = 8
	// MaxMessageLen is the largest message the 16-bit size field can describe.
	MaxMessageLen = 0xFFFF
	// MaxFDsPerMessage mirrors libwayland's per-sendmsg descriptor limit.
	MaxFDsPerMessage = 28
)

var (
	ErrShortHeader     = errors.New("wire: short message header")
	ErrMessageTooLarge = errors.New("wire: message too large")
	ErrBadSize         = errors.New("wire: message size smaller than header")
	ErrShortArgs       = errors.New("wire: message arguments truncated")
	ErrMissingFD       = errors.New("wire: file descriptor expected but none queued")
	ErrBadString       = errors.New("wire: string argument not NUL terminated")
)

// Header is the fixed wire header: sender object id, then size<<16 | opcode.
type Header struct {
	Object uint32
	Opcode uint16
	Size   uint16
}

func EncodeHeader(h Header) []byte {
	buf := make([]byte, HeaderLen)
	PutHeader(buf, h)
	return buf
}

func PutHeader(buf []byte, h Header) {
	binary.LittleEndian.PutUint32(buf[0:4], h.Object)
	binary.LittleEndian.PutUint32(buf[4:8], uint32(h.Size)<<16|uint32(h.Opcode))
}

func DecodeHeader(b []byte) (Header, error) {
	if len(b) < HeaderLen {
		return Header{}, ErrShortHeader
	}
	word := binary.LittleEndian.Uint32(b[4:8])
	h := Header{
		Object: binary.LittleEndian.Uint32(b[0:4]),
		Opcode: uint16(word & 0xFFFF),
		Size:   uint16(word >> 16),
	}
	if h.Size < HeaderLen {
		return Header{}, ErrBadSize
	}
	return h, nil
}

// Message is one request or event. Args holds the encoded argument bytes;
// descriptors travel out of band.
type Message struct {
	Object uint32
	Opcode uint16
	Args   []byte
	FDs    []int
}

// Marshal encodes the header and arguments. FDs are not part of the byte stream.
func (m Message) Marshal() ([]byte, error) {
	size := HeaderLen + len(m.Args)
	if size > MaxMessageLen {
		return nil, fmt.Errorf("%w: %d bytes", ErrMessageTooLarge, size)
	}
	buf := make([]byte, size)
	PutHeader(buf, Header{Object: m.Object, Opcode: m.Opcode, Size: uint16(size)})
	copy(buf[HeaderLen:], m.Args)
	return buf, nil
}

// Builder accumulates arguments for a single message.
type Builder struct {
	msg Message
}

func NewBuilder(object uint32, opcode uint16) *Builder {
	return &Builder{msg: Message{Object: object, Opcode: opcode}}
}

func (b *Builder) Uint32(v uint32) *Builder {
	b.msg.Args = binary.LittleEndian.AppendUint32(b.msg.Args, v)
	return b
}

func (b *Builder) Int32(v int32) *Builder {
	return b.Uint32(uint32(v))
}

// Fixed appends a 24.8 signed fixed-point number.
func (b *Builder) Fixed(v float64) *Builder {
	return b.Int32(int32(math.Round(v * 256)))
}

// Object appends an object id; zero encodes a null object.
func (b *Builder) Object(id uint32) *Builder {
	return b.Uint32(id)
}

func (b *Builder) Str(s string) *Builder {
	n := len(s) + 1
	b.Uint32(uint32(n))
	b.msg.Args = append(b.msg.Args, s...)
	b.msg.Args = append(b.msg.Args, 0)
	b.pad(n)
	return b
}

func (b *Builder) Array(data []byte) *Builder {
	b.Uint32(uint32(len(data)))
	b.msg.Args = append(b.msg.Args, data...)
	b.pad(len(data))
	return b
}

// FD queues a descriptor. The caller keeps ownership; it is never closed here.
func (b *Builder) FD(fd int) *Builder {
	b.msg.FDs = append(b.msg.FDs, fd)
	return b
}

func (b *Builder) pad(n int) {
	for n%4 != 0 {
		b.msg.Args = append(b.msg.Args, 0)
		n++
	}
}

func (b *Builder) Message() Message {
	return b.msg
}

// FDSource hands out descriptors received alongside the byte stream.
type FDSource interface {
	NextFD() (int, error)
}

// Decoder reads arguments in signature order. The first failure sticks and is
// reported by Err.
type Decoder struct {
	data []byte
	off  int
	fds  FDSource
	err  error
}

func NewDecoder(args []byte, fds FDSource) *Decoder {
	return &Decoder{data: args, fds: fds}
}

func (d *Decoder) Err() error {
	return d.err
}

func (d *Decoder) Uint32() uint32 {
	if d.err != nil {
		return 0
	}
	if len(d.data)-d.off < 4 {
		d.err = ErrShortArgs
		return 0
	}
	v := binary.LittleEndian.Uint32(d.data[d.off:])
	d.off += 4
	return v
}

func (d *Decoder) Int32() int32 {
	return int32(d.Uint32())
}

func (d *Decoder) Fixed() float64 {
	return float64(d.Int32()) / 256
}

func (d *Decoder) Str() string {
	raw := d.Array()
	if d.err != nil || len(raw) == 0 {
		return ""
	}
	if raw[len(raw)-1] != 0 {
		d.err = ErrBadString
		return ""
	}
	return string(raw[:len(raw)-1])
}

func (d *Decoder) Array() []byte {
	n := int(d.Uint32())
	if d.err != nil {
		return nil
	}
	padded := (n + 3) &^ 3
	if n < 0 || len(d.data)-d.off < padded {
		d.err = ErrShortArgs
		return nil
	}
	out := make([]byte, n)
	copy(out, d.data[d.off:d.off+n])
	d.off += padded
	return out
}

func (d *Decoder) FD() int {
	if d.err != nil {
		return -1
	}
	if d.fds == nil {
		d.err = ErrMissingFD
		return -1
	}
	fd, err := d.fds.NextFD()
	if err != nil {
		d.err = err
		return -1
	}
	return fd
}
