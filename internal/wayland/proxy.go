package wayland

import (
	"fmt"

	"github.com/1broseidon/wlpresent/internal/wire"
)

// Proxy is the client-side handle of a protocol object.
type Proxy interface {
	ID() uint32
	Interface() string
	base() *object
	decode(opcode uint16, d *wire.Decoder) (Event, error)
}

// object carries the state shared by every proxy. A destroyed object stays in
// the client table until the compositor confirms deletion, but its handler is
// never invoked again.
type object struct {
	c         *Client
	id        uint32
	iface     string
	handler   func(Event)
	destroyed bool
}

func (o *object) ID() uint32 {
	return o.id
}

func (o *object) Interface() string {
	return o.iface
}

func (o *object) base() *object {
	return o
}

// SetHandler installs the single event handler for this object. A nil handler
// drops events.
func (o *object) SetHandler(h func(Event)) {
	o.handler = h
}

// Destroyed reports whether a destructor request has been sent.
func (o *object) Destroyed() bool {
	return o.destroyed
}

func (o *object) decode(opcode uint16, _ *wire.Decoder) (Event, error) {
	return nil, fmt.Errorf("%s has no event with opcode %d", o.iface, opcode)
}

func (o *object) send(opcode uint16, fill func(b *wire.Builder)) error {
	if o.destroyed {
		return fmt.Errorf("%s@%d: request %d on destroyed object", o.iface, o.id, opcode)
	}
	b := wire.NewBuilder(o.id, opcode)
	if fill != nil {
		fill(b)
	}
	return o.c.request(o.id, opcode, b)
}

// destroy sends the destructor request (if the interface has one) and detaches
// the handler.
func (o *object) destroy(opcode int) error {
	if o.destroyed {
		return nil
	}
	var err error
	if opcode >= 0 {
		err = o.send(uint16(opcode), nil)
	}
	o.destroyed = true
	o.handler = nil
	o.c.forget(o, opcode >= 0)
	return err
}
