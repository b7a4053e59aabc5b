package wire

import (
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"sync/atomic"
	"time"

	"golang.org/x/sys/unix"
)

const readChunk = 4096

// Conn is a Wayland socket. Outbound messages are queued until Flush; inbound
// bytes are reassembled into whole messages and received descriptors are kept
// in arrival order for the decoder to claim.
type Conn struct {
	uc *net.UnixConn

	out    []byte
	outFDs []int

	in    []byte
	inFDs []int

	rbuf []byte
	oob  []byte

	interrupted atomic.Bool
}

// Dial connects to the socket at path.
func Dial(path string) (*Conn, error) {
	uc, err := net.DialUnix("unix", nil, &net.UnixAddr{Name: path, Net: "unix"})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", path, err)
	}
	return NewConn(uc), nil
}

// FromFD wraps an already-connected socket descriptor, e.g. one end of a
// socketpair. FromFD takes ownership of fd.
func FromFD(fd int) (*Conn, error) {
	f := os.NewFile(uintptr(fd), "wayland-socket")
	if f == nil {
		return nil, fmt.Errorf("invalid socket descriptor %d", fd)
	}
	nc, err := net.FileConn(f)
	f.Close()
	if err != nil {
		return nil, fmt.Errorf("failed to wrap socket descriptor %d: %w", fd, err)
	}
	uc, ok := nc.(*net.UnixConn)
	if !ok {
		nc.Close()
		return nil, fmt.Errorf("descriptor %d is not a unix socket", fd)
	}
	return NewConn(uc), nil
}

func NewConn(uc *net.UnixConn) *Conn {
	return &Conn{
		uc:   uc,
		rbuf: make([]byte, readChunk),
		oob:  make([]byte, unix.CmsgSpace(MaxFDsPerMessage*4)),
	}
}

// Queue appends m to the outbound buffer. The buffer is flushed early when the
// descriptor limit for a single sendmsg would be exceeded.
func (c *Conn) Queue(m Message) error {
	if len(m.FDs) > MaxFDsPerMessage {
		return fmt.Errorf("%w: %d descriptors", ErrMessageTooLarge, len(m.FDs))
	}
	data, err := m.Marshal()
	if err != nil {
		return err
	}
	if len(c.outFDs)+len(m.FDs) > MaxFDsPerMessage || len(c.out)+len(data) > MaxMessageLen {
		if err := c.Flush(); err != nil {
			return err
		}
	}
	c.out = append(c.out, data...)
	c.outFDs = append(c.outFDs, m.FDs...)
	return nil
}

// Flush writes every queued message. Descriptors ride on the first chunk.
func (c *Conn) Flush() error {
	if len(c.out) == 0 {
		return nil
	}
	var oob []byte
	if len(c.outFDs) > 0 {
		oob = unix.UnixRights(c.outFDs...)
	}
	n, _, err := c.uc.WriteMsgUnix(c.out, oob, nil)
	if err != nil {
		return fmt.Errorf("failed to flush requests: %w", err)
	}
	if n < len(c.out) {
		if _, err := c.uc.Write(c.out[n:]); err != nil {
			return fmt.Errorf("failed to flush requests: %w", err)
		}
	}
	c.out = c.out[:0]
	c.outFDs = c.outFDs[:0]
	return nil
}

// Buffered reports whether a complete message is available without reading.
func (c *Conn) Buffered() bool {
	h, err := DecodeHeader(c.in)
	return err == nil && len(c.in) >= int(h.Size)
}

// ReadMessage returns the next complete message, reading from the socket as
// needed. A zero deadline blocks indefinitely.
func (c *Conn) ReadMessage(deadline time.Time) (Message, error) {
	for {
		if len(c.in) >= HeaderLen {
			h, err := DecodeHeader(c.in)
			if err != nil {
				return Message{}, err
			}
			if len(c.in) >= int(h.Size) {
				args := make([]byte, int(h.Size)-HeaderLen)
				copy(args, c.in[HeaderLen:h.Size])
				c.in = c.in[h.Size:]
				return Message{Object: h.Object, Opcode: h.Opcode, Args: args}, nil
			}
		}
		if err := c.fill(deadline); err != nil {
			return Message{}, err
		}
	}
}

// Interrupt makes a blocked read, and every read after it, fail with
// os.ErrDeadlineExceeded until ClearInterrupt. It is safe to call from
// another goroutine.
func (c *Conn) Interrupt() {
	c.interrupted.Store(true)
	c.uc.SetReadDeadline(time.Now())
}

func (c *Conn) ClearInterrupt() {
	c.interrupted.Store(false)
}

func (c *Conn) fill(deadline time.Time) error {
	if err := c.uc.SetReadDeadline(deadline); err != nil {
		return err
	}
	// Checked after arming the deadline so an Interrupt racing with it wins.
	if c.interrupted.Load() {
		return os.ErrDeadlineExceeded
	}
	n, oobn, _, _, err := c.uc.ReadMsgUnix(c.rbuf, c.oob)
	if oobn > 0 {
		if perr := c.collectFDs(c.oob[:oobn]); perr != nil && err == nil {
			err = perr
		}
	}
	if n > 0 {
		c.in = append(c.in, c.rbuf[:n]...)
	}
	if err != nil {
		return err
	}
	if n == 0 {
		return io.EOF
	}
	return nil
}

func (c *Conn) collectFDs(oob []byte) error {
	msgs, err := unix.ParseSocketControlMessage(oob)
	if err != nil {
		return fmt.Errorf("failed to parse control message: %w", err)
	}
	for i := range msgs {
		fds, err := unix.ParseUnixRights(&msgs[i])
		if err != nil {
			continue
		}
		c.inFDs = append(c.inFDs, fds...)
	}
	return nil
}

// NextFD hands ownership of the oldest received descriptor to the caller.
func (c *Conn) NextFD() (int, error) {
	if len(c.inFDs) == 0 {
		return -1, ErrMissingFD
	}
	fd := c.inFDs[0]
	c.inFDs = c.inFDs[1:]
	return fd, nil
}

// Close closes the socket and any received descriptors nobody claimed.
func (c *Conn) Close() error {
	for _, fd := range c.inFDs {
		unix.Close(fd)
	}
	c.inFDs = nil
	err := c.uc.Close()
	if errors.Is(err, net.ErrClosed) {
		return nil
	}
	return err
}
