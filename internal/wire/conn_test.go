package wire

import (
	"errors"
	"os"
	"testing"
	"time"

	"golang.org/x/sys/unix"
)

func socketPair(t *testing.T) (*Conn, *Conn) {
	t.Helper()
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		t.Fatalf("socketpair: %v", err)
	}
	a, err := FromFD(fds[0])
	if err != nil {
		t.Fatalf("FromFD: %v", err)
	}
	b, err := FromFD(fds[1])
	if err != nil {
		t.Fatalf("FromFD: %v", err)
	}
	t.Cleanup(func() {
		a.Close()
		b.Close()
	})
	return a, b
}

func TestConnQueuesUntilFlush(t *testing.T) {
	client, server := socketPair(t)

	if err := client.Queue(NewBuilder(1, 0).Uint32(2).Message()); err != nil {
		t.Fatalf("Queue: %v", err)
	}
	if _, err := server.ReadMessage(time.Now().Add(20 * time.Millisecond)); !errors.Is(err, os.ErrDeadlineExceeded) {
		t.Fatalf("ReadMessage before flush error = %v, want deadline exceeded", err)
	}

	if err := client.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	msg, err := server.ReadMessage(time.Now().Add(time.Second))
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}
	if msg.Object != 1 || msg.Opcode != 0 {
		t.Fatalf("ReadMessage() = %+v", msg)
	}
	if got := NewDecoder(msg.Args, nil).Uint32(); got != 2 {
		t.Fatalf("arg = %d, want 2", got)
	}
}

func TestConnPassesDescriptorsWithoutClosingSenderCopy(t *testing.T) {
	client, server := socketPair(t)

	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("pipe: %v", err)
	}
	defer r.Close()
	defer w.Close()

	msg := NewBuilder(5, 1).FD(int(w.Fd())).Uint32(0).Message()
	if err := client.Queue(msg); err != nil {
		t.Fatalf("Queue: %v", err)
	}
	if err := client.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	got, err := server.ReadMessage(time.Now().Add(time.Second))
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}
	d := NewDecoder(got.Args, server)
	fd := d.FD()
	_ = d.Uint32()
	if err := d.Err(); err != nil {
		t.Fatalf("decode: %v", err)
	}
	defer unix.Close(fd)

	if _, err := unix.Write(fd, []byte("x")); err != nil {
		t.Fatalf("write through received fd: %v", err)
	}
	buf := make([]byte, 1)
	if _, err := r.Read(buf); err != nil || buf[0] != 'x' {
		t.Fatalf("read = %q, %v", buf, err)
	}

	if _, err := unix.FcntlInt(w.Fd(), unix.F_GETFD, 0); err != nil {
		t.Fatalf("sender descriptor closed: %v", err)
	}
}

func TestConnReassemblesSplitMessages(t *testing.T) {
	client, server := socketPair(t)

	for i := uint32(0); i < 3; i++ {
		if err := client.Queue(NewBuilder(i+1, uint16(i)).Str("surface").Message()); err != nil {
			t.Fatalf("Queue: %v", err)
		}
	}
	if err := client.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	for i := uint32(0); i < 3; i++ {
		msg, err := server.ReadMessage(time.Now().Add(time.Second))
		if err != nil {
			t.Fatalf("ReadMessage %d: %v", i, err)
		}
		if msg.Object != i+1 || msg.Opcode != uint16(i) {
			t.Fatalf("message %d = %+v", i, msg)
		}
		if s := NewDecoder(msg.Args, nil).Str(); s != "surface" {
			t.Fatalf("message %d string = %q", i, s)
		}
	}
	if server.Buffered() {
		t.Fatal("Buffered() = true after draining")
	}
}
