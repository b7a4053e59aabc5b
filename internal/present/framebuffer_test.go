package present

import (
	"testing"

	"github.com/1broseidon/wlpresent/internal/wltest"
)

func TestReleaseFiresOncePerShowCycle(t *testing.T) {
	obs := &countingObserver{}
	comp, s := newTestSession(t, wltest.Options{ConfigureOnMap: &wltest.Size{}}, Options{Metrics: obs})
	w := newTestWindow(t, s)
	ctx := testContext(t)

	releases := map[int]int{}
	var tags []string
	onRelease := func(fb *FrameBuffer, data any) {
		releases[fb.Index()]++
		tags = append(tags, data.(string))
	}

	a, err := w.CreateBuffer(ctx, desc(t, 0, 64, 64))
	if err != nil {
		t.Fatalf("CreateBuffer(a) error = %v", err)
	}
	b, err := w.CreateBuffer(ctx, desc(t, 1, 64, 64))
	if err != nil {
		t.Fatalf("CreateBuffer(b) error = %v", err)
	}

	if err := w.Show(ctx, a, onRelease, "a1"); err != nil {
		t.Fatalf("Show(a) error = %v", err)
	}
	if len(releases) != 0 {
		t.Fatalf("releases = %v after first show, want none", releases)
	}
	if !a.Shown() {
		t.Fatal("a.Shown() = false while the compositor holds it")
	}

	if err := w.Show(ctx, b, onRelease, "b1"); err != nil {
		t.Fatalf("Show(b) error = %v", err)
	}
	if releases[0] != 1 || releases[1] != 0 {
		t.Fatalf("releases = %v after showing b, want a once", releases)
	}

	// The producer recycles a: a fresh cycle, a fresh callback.
	if err := w.Show(ctx, a, onRelease, "a2"); err != nil {
		t.Fatalf("Show(a) again error = %v", err)
	}
	comp.ReleaseCurrent()
	if err := s.Roundtrip(ctx); err != nil {
		t.Fatalf("Roundtrip() error = %v", err)
	}
	comp.ReleaseCurrent()
	if err := s.Roundtrip(ctx); err != nil {
		t.Fatalf("Roundtrip() error = %v", err)
	}

	if releases[0] != 2 || releases[1] != 1 {
		t.Fatalf("releases = %v, want a twice and b once", releases)
	}
	want := []string{"a1", "b1", "a2"}
	if len(tags) != len(want) {
		t.Fatalf("release data = %v, want %v", tags, want)
	}
	for i := range want {
		if tags[i] != want[i] {
			t.Fatalf("release data = %v, want %v", tags, want)
		}
	}
	if obs.imported != 2 || obs.shown != 3 || obs.released != 3 {
		t.Fatalf("observer imported=%d shown=%d released=%d, want 2 3 3", obs.imported, obs.shown, obs.released)
	}
}

func TestBufferDestroyNeverClosesFD(t *testing.T) {
	_, s := newTestSession(t, wltest.Options{ConfigureOnMap: &wltest.Size{}}, Options{})
	w := newTestWindow(t, s)
	ctx := testContext(t)

	d := desc(t, 0, 64, 64)
	fb, err := w.CreateBuffer(ctx, d)
	if err != nil {
		t.Fatalf("CreateBuffer() error = %v", err)
	}
	if err := w.Show(ctx, fb, nil, nil); err != nil {
		t.Fatalf("Show() error = %v", err)
	}
	fb.Destroy()
	fb.Destroy()
	if err := w.Destroy(); err != nil {
		t.Fatalf("Destroy() error = %v", err)
	}
	if !fdOpen(d.FD) {
		t.Fatalf("fd %d was closed by the presenter", d.FD)
	}
}

func TestDestroyedBufferGetsNoRelease(t *testing.T) {
	comp, s := newTestSession(t, wltest.Options{ConfigureOnMap: &wltest.Size{}}, Options{})
	w := newTestWindow(t, s)
	ctx := testContext(t)

	calls := 0
	onRelease := func(*FrameBuffer, any) { calls++ }

	never, err := w.CreateBuffer(ctx, desc(t, 0, 64, 64))
	if err != nil {
		t.Fatalf("CreateBuffer() error = %v", err)
	}
	never.Destroy()

	shown, err := w.CreateBuffer(ctx, desc(t, 1, 64, 64))
	if err != nil {
		t.Fatalf("CreateBuffer() error = %v", err)
	}
	if err := w.Show(ctx, shown, onRelease, nil); err != nil {
		t.Fatalf("Show() error = %v", err)
	}
	shown.Destroy()
	if w.Current() != nil {
		t.Fatal("Current() still points at a destroyed buffer")
	}
	comp.ReleaseCurrent()
	if err := w.Destroy(); err != nil {
		t.Fatalf("Destroy() error = %v", err)
	}

	if calls != 0 {
		t.Fatalf("release callbacks = %d for destroyed buffers, want 0", calls)
	}
	if err := w.Show(ctx, shown, onRelease, nil); err != ErrDestroyed {
		t.Fatalf("Show() of destroyed buffer error = %v, want ErrDestroyed", err)
	}
	if n := len(comp.Find("wl_buffer", "destroy")); n != 2 {
		t.Fatalf("wl_buffer destroyed %d times, want 2", n)
	}
}
