package wayland

import (
	"errors"

	"github.com/1broseidon/wlpresent/internal/wire"
)

const (
	InterfaceLinuxDmabuf  = "zwp_linux_dmabuf_v1"
	InterfaceBufferParams = "zwp_linux_buffer_params_v1"
)

// ErrBufferRejected is the failed event of zwp_linux_buffer_params_v1. The
// protocol carries no reason.
var ErrBufferRejected = errors.New("wayland: compositor rejected dmabuf parameters")

// LinuxDmabuf is the dmabuf import authority.
type LinuxDmabuf struct {
	object
}

func (l *LinuxDmabuf) decode(opcode uint16, d *wire.Decoder) (Event, error) {
	switch opcode {
	case 0:
		return DmabufFormat{Format: d.Uint32()}, nil
	case 1:
		format := d.Uint32()
		hi := uint64(d.Uint32())
		lo := uint64(d.Uint32())
		return DmabufModifier{Format: format, Modifier: hi<<32 | lo}, nil
	}
	return l.object.decode(opcode, d)
}

func (l *LinuxDmabuf) Destroy() error {
	return l.destroy(0)
}

func (l *LinuxDmabuf) CreateParams() (*BufferParams, error) {
	p := &BufferParams{}
	l.c.register(p, &p.object, InterfaceBufferParams)
	return p, l.send(1, func(b *wire.Builder) { b.Object(p.id) })
}

// BufferParams collects planes for one dmabuf import.
type BufferParams struct {
	object
}

func (p *BufferParams) decode(opcode uint16, d *wire.Decoder) (Event, error) {
	switch opcode {
	case 0:
		id := d.Uint32()
		if d.Err() != nil {
			return nil, d.Err()
		}
		buf := &Buffer{}
		p.c.adopt(buf, &buf.object, id, InterfaceBuffer)
		if p.destroyed {
			// A late reply to an abandoned import: nobody will own the buffer.
			p.c.log.Debug("destroying buffer created after its import was abandoned", "buffer", id)
			_ = buf.Destroy()
			return nil, nil
		}
		return ParamsCreated{Buffer: buf}, nil
	case 1:
		return ParamsFailed{}, nil
	}
	return p.object.decode(opcode, d)
}

func (p *BufferParams) Destroy() error {
	return p.destroy(0)
}

// Add describes one plane. fd is borrowed: it is sent to the compositor and
// stays open on this side.
func (p *BufferParams) Add(fd int, planeIdx, offset, stride uint32, modifier uint64) error {
	return p.send(1, func(b *wire.Builder) {
		b.FD(fd).Uint32(planeIdx).Uint32(offset).Uint32(stride).Uint32(uint32(modifier >> 32)).Uint32(uint32(modifier))
	})
}

// Create requests buffer creation. The returned future resolves with the new
// buffer on success, or fails with ErrBufferRejected.
func (p *BufferParams) Create(width, height int32, format, flags uint32) (*Future[*Buffer], error) {
	f := NewFuture[*Buffer](p.c)
	p.handler = func(ev Event) {
		switch e := ev.(type) {
		case ParamsCreated:
			f.Resolve(e.Buffer)
		case ParamsFailed:
			f.Fail(ErrBufferRejected)
		}
	}
	err := p.send(2, func(b *wire.Builder) {
		b.Int32(width).Int32(height).Uint32(format).Uint32(flags)
	})
	if err != nil {
		return nil, err
	}
	return f, nil
}
