package present

import "github.com/1broseidon/wlpresent/internal/wayland"

// ReleaseFunc is called once the compositor stops reading a shown buffer.
// data is the value passed to Show.
type ReleaseFunc func(fb *FrameBuffer, data any)

type bufferState int

const (
	bufferCreated bufferState = iota
	bufferShown
	bufferReleased
	bufferDestroyed
)

func (s bufferState) String() string {
	switch s {
	case bufferCreated:
		return "created"
	case bufferShown:
		return "shown"
	case bufferReleased:
		return "released"
	default:
		return "destroyed"
	}
}

// FrameBuffer is an imported dmabuf bound to one Window. The fd stays owned by
// the producer and is never closed here.
type FrameBuffer struct {
	window *Window
	desc   BufferDesc
	buffer *wayland.Buffer

	state   bufferState
	release ReleaseFunc
	data    any
}

func (fb *FrameBuffer) handleEvent(ev wayland.Event) {
	if _, ok := ev.(wayland.BufferRelease); ok {
		fb.complete()
	}
}

// beginShow starts a show cycle. Re-showing a buffer the compositor still
// holds keeps the pending cycle and only replaces the callback.
func (fb *FrameBuffer) beginShow(release ReleaseFunc, data any) {
	fb.release = release
	fb.data = data
	fb.state = bufferShown
}

// complete ends the current show cycle, firing the callback at most once.
func (fb *FrameBuffer) complete() {
	if fb.state != bufferShown {
		return
	}
	fb.state = bufferReleased
	fb.window.session.metrics.BufferReleased()
	if fb.release != nil {
		fb.release(fb, fb.data)
	}
}

// Destroy destroys the compositor-side buffer. No release callback fires
// afterwards; the producer may reuse the memory once Destroy returns.
func (fb *FrameBuffer) Destroy() {
	if fb.state == bufferDestroyed {
		return
	}
	fb.state = bufferDestroyed
	fb.release = nil
	fb.data = nil
	if fb.buffer != nil {
		fb.buffer.Destroy()
	}
	w := fb.window
	if w.current == fb {
		w.current = nil
		w.needsAttach = false
	}
	w.session.flush()
}

func (fb *FrameBuffer) Index() int {
	return fb.desc.Index
}

// Desc returns the descriptor the buffer was imported from.
func (fb *FrameBuffer) Desc() BufferDesc {
	return fb.desc
}

// Shown reports whether a show cycle is waiting for its release.
func (fb *FrameBuffer) Shown() bool {
	return fb.state == bufferShown
}

func (fb *FrameBuffer) Destroyed() bool {
	return fb.state == bufferDestroyed
}
