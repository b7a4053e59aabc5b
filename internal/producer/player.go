package producer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/1broseidon/wlpresent/internal/present"
	"github.com/1broseidon/wlpresent/internal/wayland"
)

const DefaultAcquireTimeout = 2 * time.Second

var ErrNoFreeBuffer = errors.New("producer: no buffer released in time")

type Options struct {
	Width   int32
	Height  int32
	Format  present.Format
	Buffers int
	// Frames is the number of frames to show; 0 plays until the window is
	// closed or the context is cancelled.
	Frames int
	// FPS paces presentation; 0 shows frames as fast as buffers come back.
	FPS     int
	Pattern Pattern

	AcquireTimeout time.Duration
	Logger         *slog.Logger
}

type Stats struct {
	Shown    int
	Released int
	Elapsed  time.Duration
}

// Player renders a pattern into a buffer pool and shows it in its own window.
type Player struct {
	session *present.Session
	window  *present.Window
	pool    *Pool
	opts    Options
	log     *slog.Logger
}

func NewPlayer(ctx context.Context, s *present.Session, alloc Allocator, opts Options) (*Player, error) {
	if opts.Pattern == nil {
		opts.Pattern = barsPattern{}
	}
	if opts.AcquireTimeout <= 0 {
		opts.AcquireTimeout = DefaultAcquireTimeout
	}
	if opts.Buffers < 2 {
		return nil, fmt.Errorf("player needs at least 2 buffers, got %d", opts.Buffers)
	}
	log := opts.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}

	w, err := s.CreateWindow()
	if err != nil {
		return nil, fmt.Errorf("create window: %w", err)
	}
	pool, err := NewPool(ctx, w, alloc, opts.Buffers, opts.Width, opts.Height, opts.Format)
	if err != nil {
		w.Destroy()
		return nil, err
	}
	log.Debug("buffer pool ready", "buffers", pool.Len(), "format", opts.Format.String(), "width", opts.Width, "height", opts.Height)
	return &Player{session: s, window: w, pool: pool, opts: opts, log: log}, nil
}

// Run plays until the frame count is reached, the session stops or ctx ends.
func (p *Player) Run(ctx context.Context) (stats Stats, err error) {
	start := time.Now()
	defer func() {
		stats.Released = p.pool.Released()
		stats.Elapsed = time.Since(start)
	}()

	if err := p.waitConfigured(ctx); err != nil {
		return stats, err
	}

	var tick <-chan time.Time
	if p.opts.FPS > 0 {
		ticker := time.NewTicker(time.Second / time.Duration(p.opts.FPS))
		defer ticker.Stop()
		tick = ticker.C
	}

	for frame := 0; p.opts.Frames == 0 || frame < p.opts.Frames; frame++ {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		if !p.session.IsRunning() {
			p.log.Info("session stopped, ending playback", "frame", frame)
			return stats, nil
		}
		idx, err := p.acquire(ctx)
		if err != nil {
			return stats, ctxErrOr(ctx, err)
		}
		if idx < 0 {
			return stats, nil
		}
		if err := p.opts.Pattern.Fill(p.pool.Buffer(idx), frame); err != nil {
			return stats, err
		}
		if err := p.pool.Show(ctx, idx, frame); err != nil {
			return stats, ctxErrOr(ctx, fmt.Errorf("show frame %d: %w", frame, err))
		}
		stats.Shown++

		if tick != nil {
			select {
			case <-ctx.Done():
				return stats, ctx.Err()
			case <-tick:
			}
		}
	}
	return stats, nil
}

// ctxErrOr reports a context that ended mid-wait as the context's error,
// including a deadline that has passed before the context's timer fired.
func ctxErrOr(ctx context.Context, err error) error {
	if cerr := ctx.Err(); cerr != nil {
		return cerr
	}
	if deadline, ok := ctx.Deadline(); ok && !time.Now().Before(deadline) {
		return context.DeadlineExceeded
	}
	return err
}

// waitConfigured holds the first frame until the compositor has configured
// the window, so no buffer is superseded before it was ever attached.
func (p *Player) waitConfigured(ctx context.Context) error {
	for p.window.State() != present.Configured {
		if !p.session.IsRunning() {
			return nil
		}
		if err := p.dispatch(ctx); err != nil {
			return fmt.Errorf("waiting for window configure: %w", err)
		}
	}
	return nil
}

// acquire returns -1 without error when the session stopped while waiting.
func (p *Player) acquire(ctx context.Context) (int, error) {
	for {
		if idx, ok := p.pool.Acquire(); ok {
			return idx, nil
		}
		if !p.session.IsRunning() {
			return -1, nil
		}
		if err := p.dispatch(ctx); err != nil {
			if errors.Is(err, wayland.ErrTimeout) {
				return -1, fmt.Errorf("%w after %v", ErrNoFreeBuffer, p.opts.AcquireTimeout)
			}
			return -1, err
		}
	}
}

func (p *Player) dispatch(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, p.opts.AcquireTimeout)
	defer cancel()
	return p.session.Dispatch(ctx)
}

func (p *Player) Window() *present.Window {
	return p.window
}

func (p *Player) Pool() *Pool {
	return p.pool
}

// Close destroys the window first so the final release lands in the pool,
// then the buffers.
func (p *Player) Close() error {
	werr := p.window.Destroy()
	return errors.Join(werr, p.pool.Close())
}
