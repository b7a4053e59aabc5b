package wayland

// Event is the closed set of compositor events this client understands. Each
// proxy hands its decoded events to a single handler, which switches on the
// concrete type.
type Event interface {
	isEvent()
}

// RegistryGlobal announces a global object.
type RegistryGlobal struct {
	Name      uint32
	Interface string
	Version   uint32
}

// RegistryGlobalRemove withdraws a global.
type RegistryGlobalRemove struct {
	Name uint32
}

// CallbackDone completes a wl_callback.
type CallbackDone struct {
	Data uint32
}

// SurfaceEnter and SurfaceLeave track which outputs show a surface.
type SurfaceEnter struct {
	Output uint32
}

type SurfaceLeave struct {
	Output uint32
}

// BufferRelease means the compositor no longer reads the buffer's memory.
type BufferRelease struct{}

// ShellPing must be answered with a pong carrying the same serial.
type ShellPing struct {
	Serial uint32
}

// XdgSurfaceConfigure ends a configure sequence; Serial must be acked.
type XdgSurfaceConfigure struct {
	Serial uint32
}

// ToplevelConfigure suggests a window size. Zero means the client decides.
type ToplevelConfigure struct {
	Width  int32
	Height int32
	States []uint32
}

// ToplevelClose is a close request from the user or compositor.
type ToplevelClose struct{}

// DmabufFormat advertises a supported DRM fourcc.
type DmabufFormat struct {
	Format uint32
}

// DmabufModifier advertises a format/modifier pair (version 3 and later).
type DmabufModifier struct {
	Format   uint32
	Modifier uint64
}

// ParamsCreated carries the buffer created from a params object.
type ParamsCreated struct {
	Buffer *Buffer
}

// ParamsFailed reports that the compositor rejected the buffer parameters.
type ParamsFailed struct{}

func (RegistryGlobal) isEvent()       {}
func (RegistryGlobalRemove) isEvent() {}
func (CallbackDone) isEvent()         {}
func (SurfaceEnter) isEvent()         {}
func (SurfaceLeave) isEvent()         {}
func (BufferRelease) isEvent()        {}
func (ShellPing) isEvent()            {}
func (XdgSurfaceConfigure) isEvent()  {}
func (ToplevelConfigure) isEvent()    {}
func (ToplevelClose) isEvent()        {}
func (DmabufFormat) isEvent()         {}
func (DmabufModifier) isEvent()       {}
func (ParamsCreated) isEvent()        {}
func (ParamsFailed) isEvent()         {}
