package wayland

import (
	"context"
	"errors"
	"os"
	"slices"
	"testing"
	"time"

	"github.com/1broseidon/wlpresent/internal/wltest"
)

func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	t.Cleanup(cancel)
	return ctx
}

type harness struct {
	comp     *wltest.Compositor
	client   *Client
	registry *Registry
	globals  map[string]RegistryGlobal
}

func newHarness(t *testing.T, opts wltest.Options) *harness {
	t.Helper()
	comp, conn := wltest.New(t, opts)
	h := &harness{
		comp:    comp,
		client:  NewClient(conn, Options{}),
		globals: make(map[string]RegistryGlobal),
	}
	t.Cleanup(func() { h.client.Close() })

	reg, err := h.client.GetRegistry()
	if err != nil {
		t.Fatalf("GetRegistry() error = %v", err)
	}
	reg.SetHandler(func(ev Event) {
		if g, ok := ev.(RegistryGlobal); ok {
			h.globals[g.Interface] = g
		}
	})
	h.registry = reg
	if err := h.client.Roundtrip(testContext(t)); err != nil {
		t.Fatalf("Roundtrip() error = %v", err)
	}
	return h
}

func (h *harness) dmabuf(t *testing.T) *LinuxDmabuf {
	t.Helper()
	g, ok := h.globals[InterfaceLinuxDmabuf]
	if !ok {
		t.Fatalf("compositor did not advertise %s", InterfaceLinuxDmabuf)
	}
	d, err := h.registry.BindLinuxDmabuf(g.Name, 1)
	if err != nil {
		t.Fatalf("BindLinuxDmabuf() error = %v", err)
	}
	return d
}

func pipeFD(t *testing.T) int {
	t.Helper()
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("pipe: %v", err)
	}
	t.Cleanup(func() {
		r.Close()
		w.Close()
	})
	return int(r.Fd())
}

func TestRoundtripDeliversGlobals(t *testing.T) {
	h := newHarness(t, wltest.Options{})

	want := []string{"wl_compositor", "wp_viewporter", "zxdg_shell_v6", "zwp_linux_dmabuf_v1", "wl_seat"}
	for _, iface := range want {
		if _, ok := h.globals[iface]; !ok {
			t.Errorf("global %q missing after roundtrip", iface)
		}
	}
	if got := h.globals["wl_compositor"].Version; got != 4 {
		t.Errorf("wl_compositor version = %d, want 4", got)
	}
}

func TestDmabufFormatsArriveBeforeRoundtripCompletes(t *testing.T) {
	h := newHarness(t, wltest.Options{Formats: []uint32{0x34325258, 0x34325241}})
	d := h.dmabuf(t)

	var formats []uint32
	d.SetHandler(func(ev Event) {
		if f, ok := ev.(DmabufFormat); ok {
			formats = append(formats, f.Format)
		}
	})
	if err := h.client.Roundtrip(testContext(t)); err != nil {
		t.Fatalf("Roundtrip() error = %v", err)
	}
	if !slices.Equal(formats, []uint32{0x34325258, 0x34325241}) {
		t.Fatalf("formats = %#x, want [0x34325258 0x34325241]", formats)
	}
}

func TestProtocolErrorIsSticky(t *testing.T) {
	h := newHarness(t, wltest.Options{})

	h.comp.PostError(1, 3, "invalid request")
	err := h.client.Roundtrip(testContext(t))
	if !errors.Is(err, ErrProtocol) {
		t.Fatalf("Roundtrip() error = %v, want ErrProtocol", err)
	}
	var perr *ProtocolError
	if !errors.As(err, &perr) {
		t.Fatalf("Roundtrip() error = %T, want *ProtocolError", err)
	}
	if perr.Interface != "wl_display" || perr.Code != 3 || perr.Message != "invalid request" {
		t.Fatalf("ProtocolError = %+v", perr)
	}
	if h.client.Err() == nil {
		t.Fatal("Err() = nil after protocol error")
	}
	if err := h.client.Roundtrip(testContext(t)); !errors.Is(err, ErrProtocol) {
		t.Fatalf("second Roundtrip() error = %v, want ErrProtocol", err)
	}
}

func TestDeleteIDRecyclesClientIDs(t *testing.T) {
	h := newHarness(t, wltest.Options{})
	g := h.globals["wl_compositor"]
	comp, err := h.registry.BindCompositor(g.Name, 4)
	if err != nil {
		t.Fatalf("BindCompositor() error = %v", err)
	}

	region, err := comp.CreateRegion()
	if err != nil {
		t.Fatalf("CreateRegion() error = %v", err)
	}
	first := region.ID()
	if err := region.Destroy(); err != nil {
		t.Fatalf("Destroy() error = %v", err)
	}
	if err := h.client.Roundtrip(testContext(t)); err != nil {
		t.Fatalf("Roundtrip() error = %v", err)
	}

	next := h.client.nextID
	again, err := comp.CreateRegion()
	if err != nil {
		t.Fatalf("CreateRegion() error = %v", err)
	}
	if again.ID() >= next {
		t.Fatalf("CreateRegion() id = %d, want a recycled id below %d (first region was %d)", again.ID(), next, first)
	}
	if h.client.nextID != next {
		t.Fatalf("nextID advanced to %d, want %d", h.client.nextID, next)
	}
}

func TestEventsForDestroyedObjectsAreDropped(t *testing.T) {
	h := newHarness(t, wltest.Options{})
	g := h.globals[InterfaceXdgShell]
	shell, err := h.registry.BindXdgShell(g.Name, 1)
	if err != nil {
		t.Fatalf("BindXdgShell() error = %v", err)
	}
	var pings []uint32
	shell.SetHandler(func(ev Event) {
		if p, ok := ev.(ShellPing); ok {
			pings = append(pings, p.Serial)
		}
	})
	ctx := testContext(t)
	if err := h.client.Roundtrip(ctx); err != nil {
		t.Fatalf("Roundtrip() error = %v", err)
	}

	h.comp.Ping(5)
	if err := h.client.Roundtrip(ctx); err != nil {
		t.Fatalf("Roundtrip() error = %v", err)
	}
	if !slices.Equal(pings, []uint32{5}) {
		t.Fatalf("pings = %v, want [5]", pings)
	}

	if err := shell.Destroy(); err != nil {
		t.Fatalf("Destroy() error = %v", err)
	}
	if err := h.client.Flush(); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}
	h.comp.Ping(6)
	if err := h.client.Roundtrip(ctx); err != nil {
		t.Fatalf("Roundtrip() after destroy error = %v", err)
	}
	if !slices.Equal(pings, []uint32{5}) {
		t.Fatalf("pings = %v, want [5]", pings)
	}
	if err := shell.Pong(6); err == nil {
		t.Fatal("Pong() on destroyed shell succeeded")
	}
}

func TestBufferParamsCreate(t *testing.T) {
	h := newHarness(t, wltest.Options{RejectFormats: []uint32{0x3231564e}})
	d := h.dmabuf(t)
	ctx := testContext(t)

	params, err := d.CreateParams()
	if err != nil {
		t.Fatalf("CreateParams() error = %v", err)
	}
	if err := params.Add(pipeFD(t), 0, 0, 256, 0); err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	f, err := params.Create(64, 64, 0x34325258, 0)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	buf, err := f.Await(ctx)
	if err != nil {
		t.Fatalf("Await() error = %v", err)
	}
	if buf == nil || buf.ID() < serverIDBase {
		t.Fatalf("Await() buffer = %+v, want a compositor-allocated id", buf)
	}
	params.Destroy()

	rejected, _ := d.CreateParams()
	rejected.Add(pipeFD(t), 0, 0, 256, 0)
	f, err = rejected.Create(64, 64, 0x3231564e, 0)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if _, err := f.Await(ctx); !errors.Is(err, ErrBufferRejected) {
		t.Fatalf("Await() error = %v, want ErrBufferRejected", err)
	}
	if h.client.Err() != nil {
		t.Fatalf("Err() = %v after rejected import, want nil", h.client.Err())
	}
}

func TestAwaitTimesOutWithoutPoisoningClient(t *testing.T) {
	h := newHarness(t, wltest.Options{NoReplyToCreate: true})
	d := h.dmabuf(t)

	params, _ := d.CreateParams()
	params.Add(pipeFD(t), 0, 0, 256, 0)
	f, err := params.Create(64, 64, 0x34325258, 0)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	start := time.Now()
	if _, err := f.Await(ctx); !errors.Is(err, ErrTimeout) {
		t.Fatalf("Await() error = %v, want ErrTimeout", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("Await() took %v, want about 100ms", elapsed)
	}
	if h.client.Err() != nil {
		t.Fatalf("Err() = %v after timeout, want nil", h.client.Err())
	}
	if err := h.client.Roundtrip(testContext(t)); err != nil {
		t.Fatalf("Roundtrip() after timeout error = %v", err)
	}
}

func TestRoundtripConsumesCallbackDeleteID(t *testing.T) {
	h := newHarness(t, wltest.Options{})
	if err := h.client.Roundtrip(testContext(t)); err != nil {
		t.Fatalf("Roundtrip() error = %v", err)
	}
	if h.client.conn.Buffered() {
		t.Fatal("Buffered() = true after Roundtrip, want every reply handled")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := h.client.Dispatch(ctx); !errors.Is(err, ErrTimeout) {
		t.Fatalf("Dispatch() error = %v, want ErrTimeout with nothing left to read", err)
	}
}

func TestDispatchDeadlineReportsContextError(t *testing.T) {
	h := newHarness(t, wltest.Options{})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := h.client.Dispatch(ctx)
	if !errors.Is(err, ErrTimeout) || !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Dispatch() error = %v, want ErrTimeout wrapping context.DeadlineExceeded", err)
	}
	if h.client.Err() != nil {
		t.Fatalf("Err() = %v after deadline, want nil", h.client.Err())
	}
}

func TestDispatchReturnsOnCancel(t *testing.T) {
	h := newHarness(t, wltest.Options{})

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(50*time.Millisecond, cancel)
	defer cancel()

	start := time.Now()
	err := h.client.Dispatch(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Dispatch() error = %v, want context.Canceled", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("Dispatch() took %v after cancel, want about 50ms", elapsed)
	}
	if h.client.Err() != nil {
		t.Fatalf("Err() = %v after cancel, want nil", h.client.Err())
	}
	if err := h.client.Roundtrip(testContext(t)); err != nil {
		t.Fatalf("Roundtrip() after cancel error = %v", err)
	}
}

func TestDestroyWithoutDestructorDropsObject(t *testing.T) {
	h := newHarness(t, wltest.Options{})
	g := h.globals["wl_compositor"]
	comp, err := h.registry.BindCompositor(g.Name, 4)
	if err != nil {
		t.Fatalf("BindCompositor() error = %v", err)
	}
	id := comp.ID()
	if err := comp.Destroy(); err != nil {
		t.Fatalf("Destroy() error = %v", err)
	}
	if _, ok := h.client.objects[id]; ok {
		t.Fatalf("objects still holds %d after Destroy()", id)
	}
	if err := h.client.Roundtrip(testContext(t)); err != nil {
		t.Fatalf("Roundtrip() error = %v", err)
	}
	if slices.Contains(h.client.freeIDs, id) {
		t.Fatalf("freeIDs = %v, want %d kept out of reuse", h.client.freeIDs, id)
	}
	if len(h.comp.Find("wl_compositor", "destroy")) != 0 {
		t.Error("a destroy request was sent for wl_compositor")
	}
}

func TestLateCreatedBufferIsDestroyed(t *testing.T) {
	h := newHarness(t, wltest.Options{LateCreateReply: true})
	d := h.dmabuf(t)

	params, _ := d.CreateParams()
	params.Add(pipeFD(t), 0, 0, 256, 0)
	f, err := params.Create(64, 64, 0x34325258, 0)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, err := f.Await(ctx); !errors.Is(err, ErrTimeout) {
		t.Fatalf("Await() error = %v, want ErrTimeout", err)
	}
	if err := params.Destroy(); err != nil {
		t.Fatalf("Destroy() error = %v", err)
	}

	// The first round-trip receives the late created event, the second
	// carries the resulting wl_buffer.destroy to the compositor.
	for range 2 {
		if err := h.client.Roundtrip(testContext(t)); err != nil {
			t.Fatalf("Roundtrip() error = %v", err)
		}
	}
	destroys := h.comp.Find("wl_buffer", "destroy")
	if len(destroys) != 1 {
		t.Fatalf("wl_buffer destroy requests = %d, want 1", len(destroys))
	}
	if _, ok := h.client.objects[destroys[0].Object]; ok {
		t.Errorf("objects still holds buffer %d", destroys[0].Object)
	}
}
