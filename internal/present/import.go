package present

import (
	"context"
	"errors"
	"fmt"

	"github.com/1broseidon/wlpresent/internal/wayland"
)

// BufferDesc describes a single-plane dmabuf owned by the producer.
type BufferDesc struct {
	// Index is an opaque tag for the producer's own bookkeeping.
	Index  int
	FD     int
	Offset uint32
	Stride uint32
	Format Format
	Width  int32
	Height int32
}

func (d BufferDesc) validate() error {
	switch {
	case d.FD < 0:
		return fmt.Errorf("%w: negative fd %d", ErrInvalidBuffer, d.FD)
	case d.Width <= 0 || d.Height <= 0:
		return fmt.Errorf("%w: size %dx%d", ErrInvalidBuffer, d.Width, d.Height)
	case d.Stride == 0:
		return fmt.Errorf("%w: zero stride", ErrInvalidBuffer)
	}
	return nil
}

// CreateBuffer imports desc as a wl_buffer, blocking until the compositor
// accepts or rejects it. A rejection stops the session and returns an
// *ImportError wrapping ErrImport; no FrameBuffer is returned.
func (w *Window) CreateBuffer(ctx context.Context, desc BufferDesc) (*FrameBuffer, error) {
	s := w.session
	if w.destroyed || s.destroyed {
		return nil, ErrDestroyed
	}
	if err := desc.validate(); err != nil {
		return nil, err
	}
	if s.opts.StrictFormats && !s.FormatSupported(desc.Format) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, desc.Format)
	}

	buf, err := s.importDmabuf(ctx, desc)
	if err != nil {
		s.metrics.ImportFailed(desc.Format.String())
		s.setRunning(false)
		s.log.Error("dmabuf import failed",
			"index", desc.Index,
			"format", desc.Format.String(),
			"width", desc.Width,
			"height", desc.Height,
			"error", err)
		return nil, &ImportError{
			Index:  desc.Index,
			Format: desc.Format,
			Width:  desc.Width,
			Height: desc.Height,
			Cause:  err,
		}
	}

	fb := &FrameBuffer{window: w, desc: desc, buffer: buf}
	buf.SetHandler(fb.handleEvent)
	s.metrics.BufferImported(desc.Format.String())
	s.log.Debug("dmabuf imported", "index", desc.Index, "buffer", buf.ID(), "format", desc.Format.String())
	return fb, nil
}

// importDmabuf runs create_params, add, create and waits for created or
// failed. The params object is destroyed on every path.
func (s *Session) importDmabuf(ctx context.Context, desc BufferDesc) (*wayland.Buffer, error) {
	params, err := s.dmabuf.CreateParams()
	if err != nil {
		return nil, err
	}
	defer params.Destroy()

	if err := params.Add(desc.FD, 0, desc.Offset, desc.Stride, 0); err != nil {
		return nil, err
	}
	reply, err := params.Create(desc.Width, desc.Height, uint32(desc.Format), 0)
	if err != nil {
		return nil, err
	}

	if s.opts.RoundtripTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.RoundtripTimeout)
		defer cancel()
	}
	buf, err := reply.Await(ctx)
	if err != nil {
		if errors.Is(err, wayland.ErrBufferRejected) {
			return nil, err
		}
		return nil, fmt.Errorf("waiting for dmabuf import reply: %w", err)
	}
	return buf, nil
}
