// Package wltest runs a scripted in-process compositor for tests. It speaks the
// real wire format over a socketpair and implements just enough of
// wl_compositor, wp_viewporter, zxdg_shell_v6 and zwp_linux_dmabuf_v1 to drive
// a presenter through configure, import and release.
package wltest

import (
	"fmt"
	"net"
	"os"
	"slices"
	"sync"
	"testing"
	"time"

	"golang.org/x/sys/unix"

	"github.com/1broseidon/wlpresent/internal/wire"
)

const firstServerID = 0xFF000000

// Global is one advertised registry entry.
type Global struct {
	Interface string
	Version   uint32
}

// DefaultGlobals advertises every interface the presenter can bind.
func DefaultGlobals() []Global {
	return []Global{
		{Interface: "wl_compositor", Version: 4},
		{Interface: "wp_viewporter", Version: 1},
		{Interface: "zxdg_shell_v6", Version: 1},
		{Interface: "zwp_linux_dmabuf_v1", Version: 3},
		{Interface: "wl_seat", Version: 7},
	}
}

// Options scripts compositor behaviour.
type Options struct {
	Globals []Global
	Formats []uint32
	// RejectFormats makes buffer creation fail for these fourccs.
	RejectFormats []uint32
	// ConfigureOnMap sends a toplevel configure of this size followed by a
	// surface configure after the first commit of an xdg surface. A zero size
	// sends 0x0, leaving the size to the client.
	ConfigureOnMap *Size
	// NoReplyToCreate swallows buffer create requests without answering.
	NoReplyToCreate bool
	// LateCreateReply holds each create reply until the client destroys the
	// params object, then sends it just ahead of the delete_id, as if the two
	// crossed on the wire.
	LateCreateReply bool
}

type Size struct {
	Width, Height int32
}

// Call is one request received from the client.
type Call struct {
	Object    uint32
	Interface string
	Request   string
	Ints      []int32
	Text      string
}

// Compositor is the server side of the socketpair.
type Compositor struct {
	opts Options

	writeMu sync.Mutex
	conn    *wire.Conn

	mu       sync.Mutex
	objects  map[uint32]string
	calls    []Call
	serial   uint32
	serverID uint32
	globals  map[uint32]Global
	surfaces map[uint32]*surfaceState
	toplevel uint32
	xdgSurf  uint32
	shell    uint32
	held     map[uint32]bool

	done chan struct{}
}

type surfaceState struct {
	pending    uint32
	hasPending bool
	current    uint32
	released   bool
	xdgSurface uint32
	mapped     bool
}

// New starts a compositor and returns the client end of the connection.
func New(t testing.TB, opts Options) (*Compositor, *wire.Conn) {
	t.Helper()
	if opts.Globals == nil {
		opts.Globals = DefaultGlobals()
	}
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		t.Fatalf("socketpair: %v", err)
	}
	serverSock, err := unixConn(fds[0])
	if err != nil {
		t.Fatalf("server conn: %v", err)
	}
	serverConn := wire.NewConn(serverSock)
	clientConn, err := wire.FromFD(fds[1])
	if err != nil {
		t.Fatalf("client conn: %v", err)
	}

	s := &Compositor{
		opts:     opts,
		conn:     serverConn,
		objects:  map[uint32]string{1: "wl_display"},
		serverID: firstServerID,
		globals:  make(map[uint32]Global),
		surfaces: make(map[uint32]*surfaceState),
		held:     make(map[uint32]bool),
		done:     make(chan struct{}),
	}
	for i, g := range opts.Globals {
		s.globals[uint32(i+1)] = g
	}
	go s.serve()
	t.Cleanup(func() {
		// Closing the socket unblocks serve; the wire.Conn is only touched
		// again once serve has returned.
		serverSock.Close()
		<-s.done
		serverConn.Close()
	})
	return s, clientConn
}

// WaitClosed blocks until the client disconnects, so every request it sent has
// been recorded.
func (s *Compositor) WaitClosed(timeout time.Duration) bool {
	select {
	case <-s.done:
		return true
	case <-time.After(timeout):
		return false
	}
}

// Calls returns a snapshot of every request received so far.
func (s *Compositor) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.calls)
}

// Find returns the calls matching interface and request name.
func (s *Compositor) Find(iface, request string) []Call {
	var out []Call
	for _, c := range s.Calls() {
		if c.Interface == iface && c.Request == request {
			out = append(out, c)
		}
	}
	return out
}

// Configure sends toplevel configure(width, height) then surface configure.
func (s *Compositor) Configure(width, height int32) uint32 {
	s.mu.Lock()
	toplevel, xdgSurf := s.toplevel, s.xdgSurf
	s.serial++
	serial := s.serial
	s.mu.Unlock()

	s.send(wire.NewBuilder(toplevel, 0).Int32(width).Int32(height).Array(nil))
	s.send(wire.NewBuilder(xdgSurf, 0).Uint32(serial))
	return serial
}

// Close sends a toplevel close request.
func (s *Compositor) Close() {
	s.mu.Lock()
	toplevel := s.toplevel
	s.mu.Unlock()
	s.send(wire.NewBuilder(toplevel, 1))
}

// Ping sends a shell ping.
func (s *Compositor) Ping(serial uint32) {
	s.mu.Lock()
	shell := s.shell
	s.mu.Unlock()
	s.send(wire.NewBuilder(shell, 0).Uint32(serial))
}

// PostError sends a fatal wl_display.error.
func (s *Compositor) PostError(object, code uint32, message string) {
	s.send(wire.NewBuilder(1, 0).Object(object).Uint32(code).Str(message))
}

// ReleaseCurrent releases the buffer currently committed on every surface.
func (s *Compositor) ReleaseCurrent() {
	s.mu.Lock()
	var ids []uint32
	for _, st := range s.surfaces {
		if st.current != 0 && !st.released {
			st.released = true
			ids = append(ids, st.current)
		}
	}
	s.mu.Unlock()
	for _, id := range ids {
		s.send(wire.NewBuilder(id, 0))
	}
}

func unixConn(fd int) (*net.UnixConn, error) {
	f := os.NewFile(uintptr(fd), "wltest-server")
	defer f.Close()
	nc, err := net.FileConn(f)
	if err != nil {
		return nil, err
	}
	uc, ok := nc.(*net.UnixConn)
	if !ok {
		nc.Close()
		return nil, fmt.Errorf("fd %d is not a unix socket", fd)
	}
	return uc, nil
}

// send writes the events in one flush, so the client reads them together.
func (s *Compositor) send(bs ...*wire.Builder) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	for _, b := range bs {
		if err := s.conn.Queue(b.Message()); err != nil {
			return
		}
	}
	_ = s.conn.Flush()
}

func (s *Compositor) serve() {
	defer close(s.done)
	for {
		msg, err := s.conn.ReadMessage(time.Time{})
		if err != nil {
			return
		}
		s.handle(msg)
	}
}

func (s *Compositor) record(c Call) {
	s.mu.Lock()
	s.calls = append(s.calls, c)
	s.mu.Unlock()
}

func (s *Compositor) register(id uint32, iface string) {
	s.mu.Lock()
	s.objects[id] = iface
	s.mu.Unlock()
}

func (s *Compositor) iface(id uint32) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.objects[id]
}

func (s *Compositor) nextSerial() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.serial++
	return s.serial
}

// destroyed removes a client object and confirms the id can be reused.
// Events in before are sent in the same flush, ahead of the confirmation.
func (s *Compositor) destroyed(id uint32, before ...*wire.Builder) {
	s.mu.Lock()
	delete(s.objects, id)
	s.mu.Unlock()
	if id < firstServerID {
		before = append(before, wire.NewBuilder(1, 1).Uint32(id))
	}
	s.send(before...)
}

func (s *Compositor) newBuffer() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.serverID
	s.serverID++
	s.objects[id] = "wl_buffer"
	return id
}
