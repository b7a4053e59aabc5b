package present

import (
	"context"
	"errors"
	"slices"
	"testing"
	"time"

	"github.com/1broseidon/wlpresent/internal/wayland"
	"github.com/1broseidon/wlpresent/internal/wltest"
)

func TestCreateWindowSetsRoleAndTitle(t *testing.T) {
	comp, s := newTestSession(t, wltest.Options{}, Options{Title: "bars", AppID: "org.example.bars"})
	w := newTestWindow(t, s)

	if got := comp.Find("zxdg_toplevel_v6", "set_title"); len(got) != 1 || got[0].Text != "bars" {
		t.Fatalf("set_title calls = %+v, want one with %q", got, "bars")
	}
	if got := comp.Find("zxdg_toplevel_v6", "set_app_id"); len(got) != 1 || got[0].Text != "org.example.bars" {
		t.Fatalf("set_app_id calls = %+v, want one with %q", got, "org.example.bars")
	}
	if n := len(comp.Find("wl_surface", "commit")); n != 1 {
		t.Fatalf("surface commits = %d, want 1 bare commit", n)
	}
	if n := len(comp.Find("wp_viewporter", "get_viewport")); n != 1 {
		t.Fatalf("get_viewport calls = %d, want 1", n)
	}
	if w.State() != Unconfigured {
		t.Fatalf("State() = %v, want unconfigured", w.State())
	}
}

// A buffer shown before the first configure sizes the window but is not
// scaled or attached until the configure is acked.
func TestShowBeforeConfigure(t *testing.T) {
	comp, s := newTestSession(t, wltest.Options{}, Options{})
	w := newTestWindow(t, s)
	ctx := testContext(t)

	fb, err := w.CreateBuffer(ctx, desc(t, 0, 640, 480))
	if err != nil {
		t.Fatalf("CreateBuffer() error = %v", err)
	}
	if err := w.Show(ctx, fb, nil, nil); err != nil {
		t.Fatalf("Show() error = %v", err)
	}
	if width, height := w.Size(); width != 640 || height != 480 {
		t.Fatalf("Size() = %dx%d, want 640x480", width, height)
	}
	if w.SizeExplicit() {
		t.Fatal("SizeExplicit() = true before any configure")
	}
	if n := len(comp.Find("wp_viewport", "set_destination")); n != 0 {
		t.Fatalf("set_destination sent %d times before configure", n)
	}
	if n := len(comp.Find("wl_surface", "attach")); n != 0 {
		t.Fatalf("attach sent %d times before configure", n)
	}

	serial := comp.Configure(0, 0)
	if err := s.Roundtrip(ctx); err != nil {
		t.Fatalf("Roundtrip() error = %v", err)
	}
	if w.State() != Configured {
		t.Fatalf("State() = %v, want configured", w.State())
	}
	if got := lastInts(t, comp, "zxdg_surface_v6", "ack_configure"); !slices.Equal(got, []int32{int32(serial)}) {
		t.Fatalf("ack_configure = %v, want [%d]", got, serial)
	}
	if got := lastInts(t, comp, "wp_viewport", "set_destination"); !slices.Equal(got, []int32{640, 480}) {
		t.Fatalf("set_destination = %v, want [640 480]", got)
	}
	if n := len(comp.Find("wl_surface", "attach")); n != 1 {
		t.Fatalf("attach sent %d times after configure, want 1", n)
	}
}

func TestShowScalesIntoConfiguredWindow(t *testing.T) {
	comp, s := newTestSession(t, wltest.Options{}, Options{})
	w := newTestWindow(t, s)
	ctx := testContext(t)

	comp.Configure(1280, 720)
	if err := s.Roundtrip(ctx); err != nil {
		t.Fatalf("Roundtrip() error = %v", err)
	}
	fb, err := w.CreateBuffer(ctx, desc(t, 0, 1920, 1080))
	if err != nil {
		t.Fatalf("CreateBuffer() error = %v", err)
	}
	if err := w.Show(ctx, fb, nil, nil); err != nil {
		t.Fatalf("Show() error = %v", err)
	}

	if width, height := w.Size(); width != 1280 || height != 720 {
		t.Fatalf("Size() = %dx%d, want 1280x720", width, height)
	}
	if !w.SizeExplicit() {
		t.Fatal("SizeExplicit() = false after sized configure")
	}
	if got := lastInts(t, comp, "wp_viewport", "set_destination"); !slices.Equal(got, []int32{1280, 720}) {
		t.Fatalf("set_destination = %v, want [1280 720]", got)
	}
	if got := lastInts(t, comp, "wl_surface", "damage"); !slices.Equal(got, []int32{0, 0, 1280, 720}) {
		t.Fatalf("damage = %v, want [0 0 1280 720]", got)
	}
	if n := len(comp.Find("wl_surface", "set_opaque_region")); n == 0 {
		t.Fatal("no opaque region set on commit")
	}
}

func TestResizeRescalesShownBuffer(t *testing.T) {
	comp, s := newTestSession(t, wltest.Options{ConfigureOnMap: &wltest.Size{}}, Options{})
	w := newTestWindow(t, s)
	ctx := testContext(t)

	fb, err := w.CreateBuffer(ctx, desc(t, 0, 800, 600))
	if err != nil {
		t.Fatalf("CreateBuffer() error = %v", err)
	}
	if err := w.Show(ctx, fb, nil, nil); err != nil {
		t.Fatalf("Show() error = %v", err)
	}
	attaches := len(comp.Find("wl_surface", "attach"))

	comp.Configure(1000, 500)
	if err := s.Roundtrip(ctx); err != nil {
		t.Fatalf("Roundtrip() error = %v", err)
	}
	if got := lastInts(t, comp, "wp_viewport", "set_destination"); !slices.Equal(got, []int32{666, 500}) {
		t.Fatalf("set_destination = %v, want [666 500]", got)
	}
	if width, height := w.Destination(); width != 666 || height != 500 {
		t.Fatalf("Destination() = %dx%d, want 666x500", width, height)
	}
	if n := len(comp.Find("wl_surface", "attach")); n != attaches {
		t.Fatalf("attach count = %d after resize, want %d", n, attaches)
	}
}

func TestCloseStopsSession(t *testing.T) {
	comp, s := newTestSession(t, wltest.Options{}, Options{})
	newTestWindow(t, s)

	comp.Close()
	if err := s.Roundtrip(testContext(t)); err != nil {
		t.Fatalf("Roundtrip() error = %v", err)
	}
	if s.IsRunning() {
		t.Fatal("IsRunning() = true after toplevel close")
	}
}

func TestWindowDestroyOrder(t *testing.T) {
	comp, s := newTestSession(t, wltest.Options{ConfigureOnMap: &wltest.Size{}}, Options{})
	w := newTestWindow(t, s)
	ctx := testContext(t)

	fb, err := w.CreateBuffer(ctx, desc(t, 0, 320, 240))
	if err != nil {
		t.Fatalf("CreateBuffer() error = %v", err)
	}
	released := 0
	if err := w.Show(ctx, fb, func(*FrameBuffer, any) { released++ }, nil); err != nil {
		t.Fatalf("Show() error = %v", err)
	}

	if err := w.Destroy(); err != nil {
		t.Fatalf("Destroy() error = %v", err)
	}
	if err := w.Destroy(); err != nil {
		t.Fatalf("second Destroy() error = %v", err)
	}

	var order []string
	for _, c := range comp.Calls() {
		if c.Request == "destroy" && c.Interface != "wl_region" && c.Interface != "zwp_linux_buffer_params_v1" {
			order = append(order, c.Interface)
		}
	}
	want := []string{"zxdg_toplevel_v6", "zxdg_surface_v6", "wp_viewport", "wl_surface"}
	if !slices.Equal(order, want) {
		t.Fatalf("destroy order = %v, want %v", order, want)
	}
	if released != 1 {
		t.Fatalf("release callbacks = %d after window teardown, want 1", released)
	}
	if err := w.Show(ctx, fb, nil, nil); !errors.Is(err, ErrDestroyed) {
		t.Fatalf("Show() on destroyed window error = %v, want ErrDestroyed", err)
	}
}

func TestWindowWithoutViewporter(t *testing.T) {
	globals := []wltest.Global{
		{Interface: "wl_compositor", Version: 4},
		{Interface: "zxdg_shell_v6", Version: 1},
		{Interface: "zwp_linux_dmabuf_v1", Version: 3},
	}
	comp, s := newTestSession(t, wltest.Options{Globals: globals, ConfigureOnMap: &wltest.Size{}}, Options{})
	if s.HasViewporter() {
		t.Fatal("HasViewporter() = true without wp_viewporter")
	}
	w := newTestWindow(t, s)
	ctx := testContext(t)

	fb, err := w.CreateBuffer(ctx, desc(t, 0, 320, 240))
	if err != nil {
		t.Fatalf("CreateBuffer() error = %v", err)
	}
	if err := w.Show(ctx, fb, nil, nil); err != nil {
		t.Fatalf("Show() error = %v", err)
	}
	if n := len(comp.Find("wl_surface", "attach")); n != 1 {
		t.Fatalf("attach count = %d, want 1", n)
	}
	if width, height := w.Destination(); width != 0 || height != 0 {
		t.Fatalf("Destination() = %dx%d, want 0x0 without a viewport", width, height)
	}
}

func TestImportFailureStopsSession(t *testing.T) {
	obs := &countingObserver{}
	comp, s := newTestSession(t, wltest.Options{RejectFormats: []uint32{uint32(FormatXRGB8888)}}, Options{Metrics: obs})
	w := newTestWindow(t, s)

	fb, err := w.CreateBuffer(testContext(t), desc(t, 3, 64, 64))
	if fb != nil {
		t.Fatalf("CreateBuffer() buffer = %v, want nil", fb)
	}
	if !errors.Is(err, ErrImport) {
		t.Fatalf("CreateBuffer() error = %v, want ErrImport", err)
	}
	if !errors.Is(err, wayland.ErrBufferRejected) {
		t.Fatalf("CreateBuffer() error = %v, want cause ErrBufferRejected", err)
	}
	var ierr *ImportError
	if !errors.As(err, &ierr) || ierr.Index != 3 {
		t.Fatalf("CreateBuffer() error = %#v, want *ImportError for index 3", err)
	}
	if s.IsRunning() {
		t.Fatal("IsRunning() = true after import failure")
	}
	if obs.importFailed != 1 || obs.imported != 0 {
		t.Fatalf("observer imported=%d failed=%d, want 0 and 1", obs.imported, obs.importFailed)
	}

	if err := s.Roundtrip(testContext(t)); err != nil {
		t.Fatalf("Roundtrip() error = %v", err)
	}
	if n := len(comp.Find("zwp_linux_buffer_params_v1", "destroy")); n != 1 {
		t.Fatalf("params destroyed %d times, want 1", n)
	}
}

func TestImportTimeoutStopsSession(t *testing.T) {
	_, s := newTestSession(t, wltest.Options{NoReplyToCreate: true}, Options{RoundtripTimeout: 100 * time.Millisecond})
	w := newTestWindow(t, s)

	_, err := w.CreateBuffer(context.Background(), desc(t, 0, 64, 64))
	if !errors.Is(err, ErrImport) || !errors.Is(err, wayland.ErrTimeout) {
		t.Fatalf("CreateBuffer() error = %v, want ErrImport caused by wayland.ErrTimeout", err)
	}
	if s.IsRunning() {
		t.Fatal("IsRunning() = true after import timeout")
	}
}

func TestCreateBufferRejectsLocally(t *testing.T) {
	comp, s := newTestSession(t, wltest.Options{}, Options{StrictFormats: true})
	w := newTestWindow(t, s)
	ctx := testContext(t)

	nv12 := desc(t, 0, 64, 64)
	nv12.Format = FormatNV12
	bad := desc(t, 1, 64, 64)
	bad.FD = -1
	empty := desc(t, 2, 0, 64)

	tests := []struct {
		name string
		desc BufferDesc
		want error
	}{
		{"unadvertised format", nv12, ErrUnsupportedFormat},
		{"negative fd", bad, ErrInvalidBuffer},
		{"zero width", empty, ErrInvalidBuffer},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fb, err := w.CreateBuffer(ctx, tt.desc)
			if fb != nil || !errors.Is(err, tt.want) {
				t.Fatalf("CreateBuffer() = %v, %v, want nil, %v", fb, err, tt.want)
			}
		})
	}
	if !s.IsRunning() {
		t.Fatal("IsRunning() = false after local rejections")
	}
	if n := len(comp.Find("zwp_linux_dmabuf_v1", "create_params")); n != 0 {
		t.Fatalf("create_params sent %d times, want 0", n)
	}
}
