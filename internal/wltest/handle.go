package wltest

import (
	"fmt"
	"slices"
	"sort"

	"golang.org/x/sys/unix"

	"github.com/1broseidon/wlpresent/internal/wire"
)

func (s *Compositor) handle(msg wire.Message) {
	iface := s.iface(msg.Object)
	d := wire.NewDecoder(msg.Args, s.conn)
	call := Call{Object: msg.Object, Interface: iface, Request: fmt.Sprintf("opcode-%d", msg.Opcode)}

	switch iface {
	case "wl_display":
		s.handleDisplay(msg.Opcode, d, &call)
	case "wl_registry":
		if msg.Opcode == 0 {
			call.Request = "bind"
			name := d.Uint32()
			bound := d.Str()
			version := d.Uint32()
			id := d.Uint32()
			call.Text = bound
			call.Ints = []int32{int32(name), int32(version), int32(id)}
			s.register(id, bound)
			s.bound(id, bound)
		}
	case "wl_compositor":
		id := d.Uint32()
		switch msg.Opcode {
		case 0:
			call.Request = "create_surface"
			s.register(id, "wl_surface")
			s.mu.Lock()
			s.surfaces[id] = &surfaceState{}
			s.mu.Unlock()
		case 1:
			call.Request = "create_region"
			s.register(id, "wl_region")
		}
		call.Ints = []int32{int32(id)}
	case "wl_surface":
		s.handleSurface(msg.Object, msg.Opcode, d, &call)
	case "wl_region":
		switch msg.Opcode {
		case 0:
			call.Request = "destroy"
			defer s.destroyed(msg.Object)
		case 1:
			call.Request = "add"
			call.Ints = []int32{d.Int32(), d.Int32(), d.Int32(), d.Int32()}
		}
	case "wl_buffer":
		if msg.Opcode == 0 {
			call.Request = "destroy"
			s.forgetBuffer(msg.Object)
			defer s.destroyed(msg.Object)
		}
	case "wp_viewporter":
		switch msg.Opcode {
		case 0:
			call.Request = "destroy"
			defer s.destroyed(msg.Object)
		case 1:
			call.Request = "get_viewport"
			id := d.Uint32()
			surface := d.Uint32()
			call.Ints = []int32{int32(id), int32(surface)}
			s.register(id, "wp_viewport")
		}
	case "wp_viewport":
		switch msg.Opcode {
		case 0:
			call.Request = "destroy"
			defer s.destroyed(msg.Object)
		case 1:
			call.Request = "set_source"
			call.Ints = []int32{d.Int32(), d.Int32(), d.Int32(), d.Int32()}
		case 2:
			call.Request = "set_destination"
			call.Ints = []int32{d.Int32(), d.Int32()}
		}
	case "zxdg_shell_v6":
		switch msg.Opcode {
		case 0:
			call.Request = "destroy"
			defer s.destroyed(msg.Object)
		case 2:
			call.Request = "get_xdg_surface"
			id := d.Uint32()
			surface := d.Uint32()
			call.Ints = []int32{int32(id), int32(surface)}
			s.register(id, "zxdg_surface_v6")
			s.mu.Lock()
			if st, ok := s.surfaces[surface]; ok {
				st.xdgSurface = id
			}
			s.xdgSurf = id
			s.mu.Unlock()
		case 3:
			call.Request = "pong"
			call.Ints = []int32{int32(d.Uint32())}
		}
	case "zxdg_surface_v6":
		switch msg.Opcode {
		case 0:
			call.Request = "destroy"
			defer s.destroyed(msg.Object)
		case 1:
			call.Request = "get_toplevel"
			id := d.Uint32()
			call.Ints = []int32{int32(id)}
			s.register(id, "zxdg_toplevel_v6")
			s.mu.Lock()
			s.toplevel = id
			s.mu.Unlock()
		case 4:
			call.Request = "ack_configure"
			call.Ints = []int32{int32(d.Uint32())}
		}
	case "zxdg_toplevel_v6":
		switch msg.Opcode {
		case 0:
			call.Request = "destroy"
			defer s.destroyed(msg.Object)
		case 2:
			call.Request = "set_title"
			call.Text = d.Str()
		case 3:
			call.Request = "set_app_id"
			call.Text = d.Str()
		}
	case "zwp_linux_dmabuf_v1":
		switch msg.Opcode {
		case 0:
			call.Request = "destroy"
			defer s.destroyed(msg.Object)
		case 1:
			call.Request = "create_params"
			id := d.Uint32()
			call.Ints = []int32{int32(id)}
			s.register(id, "zwp_linux_buffer_params_v1")
		}
	case "zwp_linux_buffer_params_v1":
		s.handleParams(msg.Object, msg.Opcode, d, &call)
	}
	s.record(call)
}

func (s *Compositor) handleDisplay(opcode uint16, d *wire.Decoder, call *Call) {
	switch opcode {
	case 0:
		call.Request = "sync"
		cb := d.Uint32()
		call.Ints = []int32{int32(cb)}
		// done and delete_id travel together, as libwayland sends them.
		s.send(
			wire.NewBuilder(cb, 0).Uint32(s.nextSerial()),
			wire.NewBuilder(1, 1).Uint32(cb),
		)
	case 1:
		call.Request = "get_registry"
		id := d.Uint32()
		call.Ints = []int32{int32(id)}
		s.register(id, "wl_registry")

		names := make([]uint32, 0, len(s.globals))
		for name := range s.globals {
			names = append(names, name)
		}
		sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })
		for _, name := range names {
			g := s.globals[name]
			s.send(wire.NewBuilder(id, 0).Uint32(name).Str(g.Interface).Uint32(g.Version))
		}
	}
}

func (s *Compositor) bound(id uint32, iface string) {
	switch iface {
	case "zwp_linux_dmabuf_v1":
		for _, f := range s.opts.Formats {
			s.send(wire.NewBuilder(id, 0).Uint32(f))
		}
	case "zxdg_shell_v6":
		s.mu.Lock()
		s.shell = id
		s.mu.Unlock()
	}
}

func (s *Compositor) handleSurface(id uint32, opcode uint16, d *wire.Decoder, call *Call) {
	s.mu.Lock()
	st := s.surfaces[id]
	s.mu.Unlock()
	if st == nil {
		return
	}

	switch opcode {
	case 0:
		call.Request = "destroy"
		s.mu.Lock()
		release := st.current != 0 && !st.released
		current := st.current
		st.released = true
		delete(s.surfaces, id)
		s.mu.Unlock()
		if release {
			s.send(wire.NewBuilder(current, 0))
		}
		s.destroyed(id)
	case 1:
		call.Request = "attach"
		buf := d.Uint32()
		call.Ints = []int32{int32(buf), d.Int32(), d.Int32()}
		s.mu.Lock()
		st.pending = buf
		st.hasPending = true
		s.mu.Unlock()
	case 2:
		call.Request = "damage"
		call.Ints = []int32{d.Int32(), d.Int32(), d.Int32(), d.Int32()}
	case 4:
		call.Request = "set_opaque_region"
		call.Ints = []int32{int32(d.Uint32())}
	case 6:
		call.Request = "commit"
		s.commit(st)
	}
}

func (s *Compositor) commit(st *surfaceState) {
	s.mu.Lock()
	var releaseID uint32
	if st.hasPending {
		if st.current != 0 && st.current != st.pending && !st.released {
			releaseID = st.current
		}
		st.current = st.pending
		st.released = st.pending == 0
		st.hasPending = false
	}
	mapNow := !st.mapped && st.xdgSurface != 0 && s.opts.ConfigureOnMap != nil
	if mapNow {
		st.mapped = true
	}
	s.mu.Unlock()

	if releaseID != 0 {
		s.send(wire.NewBuilder(releaseID, 0))
	}
	if mapNow {
		size := s.opts.ConfigureOnMap
		s.Configure(size.Width, size.Height)
	}
}

func (s *Compositor) forgetBuffer(id uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, st := range s.surfaces {
		if st.current == id {
			st.released = true
		}
	}
}

func (s *Compositor) handleParams(id uint32, opcode uint16, d *wire.Decoder, call *Call) {
	switch opcode {
	case 0:
		call.Request = "destroy"
		s.mu.Lock()
		held := s.held[id]
		delete(s.held, id)
		s.mu.Unlock()
		if held {
			defer s.destroyed(id, wire.NewBuilder(id, 0).Uint32(s.newBuffer()))
		} else {
			defer s.destroyed(id)
		}
	case 1:
		call.Request = "add"
		fd := d.FD()
		call.Ints = []int32{d.Int32(), d.Int32(), d.Int32(), d.Int32(), d.Int32()}
		if fd >= 0 {
			// The compositor's copy; the client keeps its own.
			unix.Close(fd)
		}
	case 2:
		call.Request = "create"
		width, height := d.Int32(), d.Int32()
		format, flags := d.Uint32(), d.Uint32()
		call.Ints = []int32{width, height, int32(format), int32(flags)}
		switch {
		case s.opts.NoReplyToCreate:
		case s.opts.LateCreateReply:
			s.mu.Lock()
			s.held[id] = true
			s.mu.Unlock()
		case slices.Contains(s.opts.RejectFormats, format):
			s.send(wire.NewBuilder(id, 1))
		default:
			s.send(wire.NewBuilder(id, 0).Uint32(s.newBuffer()))
		}
	}
}
