package present

import "time"

// Observer receives presentation lifecycle counts. metrics.Presenter satisfies
// it; a nil Observer in Options discards everything.
type Observer interface {
	BufferImported(format string)
	ImportFailed(format string)
	FrameShown()
	BufferReleased()
	Roundtrip(d time.Duration, err error)
	SessionRunning(running bool)
}

type nopObserver struct{}

func (nopObserver) BufferImported(string)          {}
func (nopObserver) ImportFailed(string)            {}
func (nopObserver) FrameShown()                    {}
func (nopObserver) BufferReleased()                {}
func (nopObserver) Roundtrip(time.Duration, error) {}
func (nopObserver) SessionRunning(bool)            {}
