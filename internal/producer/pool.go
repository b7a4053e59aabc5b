package producer

import (
	"context"
	"errors"
	"fmt"

	"github.com/1broseidon/wlpresent/internal/present"
)

// Pool owns a fixed ring of buffers imported into one window and hands them
// out again as the compositor releases them.
type Pool struct {
	window  *present.Window
	buffers []*Buffer
	frames  []*present.FrameBuffer

	free     []int
	isFree   []bool
	released int
}

// NewPool allocates n buffers and imports each into w exactly once.
func NewPool(ctx context.Context, w *present.Window, alloc Allocator, n int, width, height int32, format present.Format) (*Pool, error) {
	if n < 1 {
		return nil, fmt.Errorf("pool needs at least one buffer, got %d", n)
	}
	p := &Pool{window: w, isFree: make([]bool, n)}
	for i := 0; i < n; i++ {
		b, err := alloc.Allocate(i, width, height, format)
		if err != nil {
			p.Close()
			return nil, fmt.Errorf("allocate buffer %d: %w", i, err)
		}
		p.buffers = append(p.buffers, b)

		fb, err := w.CreateBuffer(ctx, b.Desc())
		if err != nil {
			p.Close()
			return nil, err
		}
		p.frames = append(p.frames, fb)
		p.free = append(p.free, i)
		p.isFree[i] = true
	}
	return p, nil
}

// Acquire takes the buffer that has been free the longest.
func (p *Pool) Acquire() (int, bool) {
	if len(p.free) == 0 {
		return -1, false
	}
	idx := p.free[0]
	p.free = p.free[1:]
	p.isFree[idx] = false
	return idx, true
}

// Show presents an acquired buffer; it returns to the pool on release.
func (p *Pool) Show(ctx context.Context, idx int, frame int) error {
	if idx < 0 || idx >= len(p.frames) || p.isFree[idx] {
		return fmt.Errorf("buffer %d is not acquired", idx)
	}
	return p.window.Show(ctx, p.frames[idx], p.release, frame)
}

func (p *Pool) release(fb *present.FrameBuffer, _ any) {
	idx := fb.Index()
	if idx < 0 || idx >= len(p.isFree) || p.isFree[idx] {
		return
	}
	p.isFree[idx] = true
	p.free = append(p.free, idx)
	p.released++
}

func (p *Pool) Buffer(idx int) *Buffer {
	return p.buffers[idx]
}

func (p *Pool) Frame(idx int) *present.FrameBuffer {
	return p.frames[idx]
}

func (p *Pool) Len() int {
	return len(p.buffers)
}

// Free is the number of buffers ready to be acquired.
func (p *Pool) Free() int {
	return len(p.free)
}

// Released counts release callbacks delivered so far.
func (p *Pool) Released() int {
	return p.released
}

// Close destroys the compositor-side buffers before freeing their memory.
func (p *Pool) Close() error {
	for _, fb := range p.frames {
		fb.Destroy()
	}
	p.frames = nil
	var errs []error
	for _, b := range p.buffers {
		errs = append(errs, b.Close())
	}
	p.buffers = nil
	p.free = nil
	return errors.Join(errs...)
}
