package wayland

import "github.com/1broseidon/wlpresent/internal/wire"

const (
	InterfaceViewporter = "wp_viewporter"
	InterfaceViewport   = "wp_viewport"
)

// Viewporter hands out per-surface scaling viewports.
type Viewporter struct {
	object
}

func (v *Viewporter) Destroy() error {
	return v.destroy(0)
}

func (v *Viewporter) GetViewport(surface *Surface) (*Viewport, error) {
	vp := &Viewport{}
	v.c.register(vp, &vp.object, InterfaceViewport)
	return vp, v.send(1, func(b *wire.Builder) { b.Object(vp.id).Object(surface.id) })
}

// Viewport crops and scales the surface it was created for.
type Viewport struct {
	object
}

func (vp *Viewport) Destroy() error {
	return vp.destroy(0)
}

func (vp *Viewport) SetSource(x, y, width, height float64) error {
	return vp.send(1, func(b *wire.Builder) { b.Fixed(x).Fixed(y).Fixed(width).Fixed(height) })
}

// SetDestination sets the surface size in surface-local coordinates.
func (vp *Viewport) SetDestination(width, height int32) error {
	return vp.send(2, func(b *wire.Builder) { b.Int32(width).Int32(height) })
}
