package wayland

import (
	"encoding/binary"

	"github.com/1broseidon/wlpresent/internal/wire"
)

// The unstable v6 xdg shell, as advertised by the compositors this presenter
// targets.
const (
	InterfaceXdgShell    = "zxdg_shell_v6"
	InterfaceXdgSurface  = "zxdg_surface_v6"
	InterfaceXdgToplevel = "zxdg_toplevel_v6"
)

// Toplevel states carried in ToplevelConfigure.States.
const (
	ToplevelStateMaximized  uint32 = 1
	ToplevelStateFullscreen uint32 = 2
	ToplevelStateResizing   uint32 = 3
	ToplevelStateActivated  uint32 = 4
)

type XdgShell struct {
	object
}

func (s *XdgShell) decode(opcode uint16, d *wire.Decoder) (Event, error) {
	if opcode == 0 {
		return ShellPing{Serial: d.Uint32()}, nil
	}
	return s.object.decode(opcode, d)
}

func (s *XdgShell) Destroy() error {
	return s.destroy(0)
}

func (s *XdgShell) GetXdgSurface(surface *Surface) (*XdgSurface, error) {
	xs := &XdgSurface{}
	s.c.register(xs, &xs.object, InterfaceXdgSurface)
	return xs, s.send(2, func(b *wire.Builder) { b.Object(xs.id).Object(surface.id) })
}

func (s *XdgShell) Pong(serial uint32) error {
	return s.send(3, func(b *wire.Builder) { b.Uint32(serial) })
}

type XdgSurface struct {
	object
}

func (xs *XdgSurface) decode(opcode uint16, d *wire.Decoder) (Event, error) {
	if opcode == 0 {
		return XdgSurfaceConfigure{Serial: d.Uint32()}, nil
	}
	return xs.object.decode(opcode, d)
}

func (xs *XdgSurface) Destroy() error {
	return xs.destroy(0)
}

func (xs *XdgSurface) GetToplevel() (*XdgToplevel, error) {
	t := &XdgToplevel{}
	xs.c.register(t, &t.object, InterfaceXdgToplevel)
	return t, xs.send(1, func(b *wire.Builder) { b.Object(t.id) })
}

func (xs *XdgSurface) SetWindowGeometry(x, y, width, height int32) error {
	return xs.send(3, func(b *wire.Builder) { b.Int32(x).Int32(y).Int32(width).Int32(height) })
}

func (xs *XdgSurface) AckConfigure(serial uint32) error {
	return xs.send(4, func(b *wire.Builder) { b.Uint32(serial) })
}

type XdgToplevel struct {
	object
}

func (t *XdgToplevel) decode(opcode uint16, d *wire.Decoder) (Event, error) {
	switch opcode {
	case 0:
		ev := ToplevelConfigure{Width: d.Int32(), Height: d.Int32()}
		raw := d.Array()
		for i := 0; i+4 <= len(raw); i += 4 {
			ev.States = append(ev.States, binary.LittleEndian.Uint32(raw[i:]))
		}
		return ev, nil
	case 1:
		return ToplevelClose{}, nil
	}
	return t.object.decode(opcode, d)
}

func (t *XdgToplevel) Destroy() error {
	return t.destroy(0)
}

func (t *XdgToplevel) SetTitle(title string) error {
	return t.send(2, func(b *wire.Builder) { b.Str(title) })
}

func (t *XdgToplevel) SetAppID(appID string) error {
	return t.send(3, func(b *wire.Builder) { b.Str(appID) })
}
