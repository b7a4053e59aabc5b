package wayland

import (
	"github.com/1broseidon/wlpresent/internal/wire"
)

const (
	InterfaceRegistry   = "wl_registry"
	InterfaceCallback   = "wl_callback"
	InterfaceCompositor = "wl_compositor"
	InterfaceSurface    = "wl_surface"
	InterfaceRegion     = "wl_region"
	InterfaceBuffer     = "wl_buffer"
)

// Registry enumerates and binds globals.
type Registry struct {
	object
}

func (r *Registry) decode(opcode uint16, d *wire.Decoder) (Event, error) {
	switch opcode {
	case 0:
		return RegistryGlobal{Name: d.Uint32(), Interface: d.Str(), Version: d.Uint32()}, nil
	case 1:
		return RegistryGlobalRemove{Name: d.Uint32()}, nil
	}
	return r.object.decode(opcode, d)
}

func (r *Registry) bind(name uint32, p Proxy, o *object, iface string, version uint32) error {
	r.c.register(p, o, iface)
	return r.send(0, func(b *wire.Builder) {
		b.Uint32(name).Str(iface).Uint32(version).Object(o.id)
	})
}

func (r *Registry) BindCompositor(name, version uint32) (*Compositor, error) {
	p := &Compositor{}
	return p, r.bind(name, p, &p.object, InterfaceCompositor, version)
}

func (r *Registry) BindViewporter(name, version uint32) (*Viewporter, error) {
	p := &Viewporter{}
	return p, r.bind(name, p, &p.object, InterfaceViewporter, version)
}

func (r *Registry) BindXdgShell(name, version uint32) (*XdgShell, error) {
	p := &XdgShell{}
	return p, r.bind(name, p, &p.object, InterfaceXdgShell, version)
}

func (r *Registry) BindLinuxDmabuf(name, version uint32) (*LinuxDmabuf, error) {
	p := &LinuxDmabuf{}
	return p, r.bind(name, p, &p.object, InterfaceLinuxDmabuf, version)
}

// Destroy forgets the registry locally; wl_registry has no destructor request.
func (r *Registry) Destroy() error {
	return r.destroy(-1)
}

// Callback is a one-shot wl_callback.
type Callback struct {
	object
}

func (cb *Callback) decode(opcode uint16, d *wire.Decoder) (Event, error) {
	if opcode == 0 {
		return CallbackDone{Data: d.Uint32()}, nil
	}
	return cb.object.decode(opcode, d)
}

// Compositor creates surfaces and regions.
type Compositor struct {
	object
}

func (c *Compositor) CreateSurface() (*Surface, error) {
	s := &Surface{}
	c.c.register(s, &s.object, InterfaceSurface)
	return s, c.send(0, func(b *wire.Builder) { b.Object(s.id) })
}

func (c *Compositor) CreateRegion() (*Region, error) {
	r := &Region{}
	c.c.register(r, &r.object, InterfaceRegion)
	return r, c.send(1, func(b *wire.Builder) { b.Object(r.id) })
}

// Destroy forgets the compositor locally; wl_compositor has no destructor request.
func (c *Compositor) Destroy() error {
	return c.destroy(-1)
}

// Surface is a wl_surface.
type Surface struct {
	object
}

func (s *Surface) decode(opcode uint16, d *wire.Decoder) (Event, error) {
	switch opcode {
	case 0:
		return SurfaceEnter{Output: d.Uint32()}, nil
	case 1:
		return SurfaceLeave{Output: d.Uint32()}, nil
	}
	return s.object.decode(opcode, d)
}

func (s *Surface) Destroy() error {
	return s.destroy(0)
}

// Attach sets the pending buffer; a nil buffer unmaps the surface.
func (s *Surface) Attach(buffer *Buffer, x, y int32) error {
	var id uint32
	if buffer != nil {
		id = buffer.id
	}
	return s.send(1, func(b *wire.Builder) { b.Object(id).Int32(x).Int32(y) })
}

func (s *Surface) Damage(x, y, width, height int32) error {
	return s.send(2, func(b *wire.Builder) { b.Int32(x).Int32(y).Int32(width).Int32(height) })
}

func (s *Surface) SetOpaqueRegion(region *Region) error {
	var id uint32
	if region != nil {
		id = region.id
	}
	return s.send(4, func(b *wire.Builder) { b.Object(id) })
}

func (s *Surface) Commit() error {
	return s.send(6, nil)
}

// Region is a wl_region.
type Region struct {
	object
}

func (r *Region) Destroy() error {
	return r.destroy(0)
}

func (r *Region) Add(x, y, width, height int32) error {
	return r.send(1, func(b *wire.Builder) { b.Int32(x).Int32(y).Int32(width).Int32(height) })
}

// Buffer is a wl_buffer.
type Buffer struct {
	object
}

func (buf *Buffer) decode(opcode uint16, d *wire.Decoder) (Event, error) {
	if opcode == 0 {
		return BufferRelease{}, nil
	}
	return buf.object.decode(opcode, d)
}

func (buf *Buffer) Destroy() error {
	return buf.destroy(0)
}
