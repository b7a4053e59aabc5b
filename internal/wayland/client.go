package wayland

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/1broseidon/wlpresent/internal/runtimepath"
	"github.com/1broseidon/wlpresent/internal/wire"
)

const (
	displayID = 1

	// Ids at or above serverIDBase are allocated by the compositor.
	serverIDBase = 0xFF000000

	displayRequestSync        = 0
	displayRequestGetRegistry = 1

	displayEventError    = 0
	displayEventDeleteID = 1
)

var (
	ErrTimeout  = errors.New("wayland: timed out waiting for compositor")
	ErrProtocol = errors.New("wayland: protocol error")
	ErrClosed   = errors.New("wayland: connection closed")
)

// ProtocolError is a fatal wl_display.error sent by the compositor.
type ProtocolError struct {
	ObjectID  uint32
	Interface string
	Code      uint32
	Message   string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("wayland: protocol error on %s@%d (code %d): %s", e.Interface, e.ObjectID, e.Code, e.Message)
}

func (e *ProtocolError) Unwrap() error {
	return ErrProtocol
}

// Options tunes a Client.
type Options struct {
	Logger *slog.Logger
	// Debug logs every request and event at debug level.
	Debug bool
}

// Client owns the compositor connection and the table of live protocol objects.
// It is not safe for concurrent use; every call happens on the caller's goroutine.
type Client struct {
	conn    *wire.Conn
	log     *slog.Logger
	debug   bool
	objects map[uint32]Proxy
	nextID  uint32
	freeIDs []uint32
	err     error
}

// Connect dials the compositor socket. display is a socket name relative to
// XDG_RUNTIME_DIR, an absolute path, or empty for $WAYLAND_DISPLAY.
func Connect(display string, opts Options) (*Client, error) {
	path, err := runtimepath.WaylandSocket(display)
	if err != nil {
		return nil, err
	}
	conn, err := wire.Dial(path)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to wayland display: %w", err)
	}
	return NewClient(conn, opts), nil
}

// NewClient wraps an established connection.
func NewClient(conn *wire.Conn, opts Options) *Client {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Client{
		conn:    conn,
		log:     logger,
		debug:   opts.Debug,
		objects: make(map[uint32]Proxy),
		nextID:  displayID + 1,
	}
}

// Err returns the sticky fatal error, if any.
func (c *Client) Err() error {
	return c.err
}

// Close disconnects. Live proxies become unusable.
func (c *Client) Close() error {
	if c.err == nil {
		c.err = ErrClosed
	}
	return c.conn.Close()
}

// Flush sends every queued request.
func (c *Client) Flush() error {
	if c.err != nil {
		return c.err
	}
	if err := c.conn.Flush(); err != nil {
		c.err = err
		return err
	}
	return nil
}

// Dispatch flushes, then blocks until one event has been read and handled.
// The wait ends early when ctx is cancelled or its deadline passes.
func (c *Client) Dispatch(ctx context.Context) error {
	if err := c.Flush(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return contextErr(err)
	}
	deadline, hasDeadline := ctx.Deadline()

	interrupted := make(chan struct{})
	stop := context.AfterFunc(ctx, func() {
		c.conn.Interrupt()
		close(interrupted)
	})
	msg, err := c.conn.ReadMessage(deadline)
	if !stop() {
		<-interrupted
		c.conn.ClearInterrupt()
	}
	if err != nil {
		if errors.Is(err, os.ErrDeadlineExceeded) {
			if cerr := ctx.Err(); cerr != nil {
				return contextErr(cerr)
			}
			// The socket deadline can fire before the context's own timer.
			if hasDeadline && !time.Now().Before(deadline) {
				return contextErr(context.DeadlineExceeded)
			}
			return ErrTimeout
		}
		if errors.Is(err, io.EOF) {
			err = ErrClosed
		}
		c.err = err
		return err
	}
	return c.dispatchMessage(msg)
}

func contextErr(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	}
	return err
}

// DispatchPending handles every event already buffered without blocking.
func (c *Client) DispatchPending() error {
	for c.err == nil && c.conn.Buffered() {
		msg, err := c.conn.ReadMessage(time.Time{})
		if err != nil {
			c.err = err
			return err
		}
		if err := c.dispatchMessage(msg); err != nil {
			return err
		}
	}
	return c.err
}

// Sync issues wl_display.sync. The future resolves once the compositor has
// processed every earlier request and emitted their events.
func (c *Client) Sync() (*Future[uint32], error) {
	f := NewFuture[uint32](c)
	cb := &Callback{}
	c.register(cb, &cb.object, InterfaceCallback)
	cb.handler = func(ev Event) {
		if done, ok := ev.(CallbackDone); ok {
			cb.destroyed = true
			f.Resolve(done.Data)
		}
	}
	if err := c.request(displayID, displayRequestSync, wire.NewBuilder(displayID, displayRequestSync).Object(cb.id)); err != nil {
		return nil, err
	}
	return f, nil
}

// Roundtrip blocks until the compositor has answered every queued request.
func (c *Client) Roundtrip(ctx context.Context) error {
	f, err := c.Sync()
	if err != nil {
		return err
	}
	if _, err := f.Await(ctx); err != nil {
		return err
	}
	// Events sent alongside the reply, such as the callback's delete_id,
	// are handled before returning.
	return c.DispatchPending()
}

// GetRegistry creates the global registry. Install a handler before the next
// round-trip to observe the globals.
func (c *Client) GetRegistry() (*Registry, error) {
	r := &Registry{}
	c.register(r, &r.object, InterfaceRegistry)
	if err := c.request(displayID, displayRequestGetRegistry, wire.NewBuilder(displayID, displayRequestGetRegistry).Object(r.id)); err != nil {
		return nil, err
	}
	return r, nil
}

func (c *Client) allocID() uint32 {
	if n := len(c.freeIDs); n > 0 {
		id := c.freeIDs[n-1]
		c.freeIDs = c.freeIDs[:n-1]
		return id
	}
	id := c.nextID
	c.nextID++
	return id
}

func (c *Client) register(p Proxy, o *object, iface string) {
	o.c = c
	o.id = c.allocID()
	o.iface = iface
	c.objects[o.id] = p
}

// adopt registers an object whose id the compositor chose.
func (c *Client) adopt(p Proxy, o *object, id uint32, iface string) {
	o.c = c
	o.id = id
	o.iface = iface
	c.objects[id] = p
}

// forget drops o from the object table when no delete_id will follow:
// compositor-allocated ids, and client ids of interfaces without a destructor
// request. The latter are never reused since the compositor still holds them.
func (c *Client) forget(o *object, sentDestructor bool) {
	if o.id >= serverIDBase || !sentDestructor {
		delete(c.objects, o.id)
	}
}

func (c *Client) request(sender uint32, opcode uint16, b *wire.Builder) error {
	if c.err != nil {
		return c.err
	}
	if c.debug {
		c.log.Debug("wayland request", "object", c.describe(sender), "opcode", opcode)
	}
	if err := c.conn.Queue(b.Message()); err != nil {
		c.err = err
		return err
	}
	return nil
}

func (c *Client) describe(id uint32) string {
	if id == displayID {
		return "wl_display@1"
	}
	if p, ok := c.objects[id]; ok {
		return fmt.Sprintf("%s@%d", p.Interface(), id)
	}
	return fmt.Sprintf("unknown@%d", id)
}

func (c *Client) dispatchMessage(msg wire.Message) error {
	if msg.Object == displayID {
		return c.handleDisplay(msg)
	}
	p, ok := c.objects[msg.Object]
	if !ok {
		c.log.Debug("dropping event for unknown object", "object", msg.Object, "opcode", msg.Opcode)
		return nil
	}
	o := p.base()
	d := wire.NewDecoder(msg.Args, c.conn)
	ev, err := p.decode(msg.Opcode, d)
	if err == nil {
		err = d.Err()
	}
	if err != nil {
		c.err = fmt.Errorf("failed to decode event %d on %s: %w", msg.Opcode, c.describe(msg.Object), err)
		return c.err
	}
	if c.debug {
		c.log.Debug("wayland event", "object", c.describe(msg.Object), "event", fmt.Sprintf("%T", ev))
	}
	if o.destroyed || o.handler == nil || ev == nil {
		return nil
	}
	o.handler(ev)
	return c.err
}

func (c *Client) handleDisplay(msg wire.Message) error {
	d := wire.NewDecoder(msg.Args, c.conn)
	switch msg.Opcode {
	case displayEventError:
		id := d.Uint32()
		code := d.Uint32()
		text := d.Str()
		perr := &ProtocolError{ObjectID: id, Code: code, Message: text, Interface: "unknown"}
		if p, ok := c.objects[id]; ok {
			perr.Interface = p.Interface()
		} else if id == displayID {
			perr.Interface = "wl_display"
		}
		c.log.Error("compositor reported protocol error", "object", perr.Interface, "id", id, "code", code, "message", text)
		c.err = perr
		return perr
	case displayEventDeleteID:
		id := d.Uint32()
		if err := d.Err(); err != nil {
			return err
		}
		if _, ok := c.objects[id]; ok {
			delete(c.objects, id)
			if id < serverIDBase {
				c.freeIDs = append(c.freeIDs, id)
			}
		}
		return nil
	default:
		c.log.Debug("ignoring unknown wl_display event", "opcode", msg.Opcode)
		return nil
	}
}
