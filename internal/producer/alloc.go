// Package producer is a CPU-rendered dmabuf source for exercising the
// presenter: it allocates shareable buffers, paints test patterns into them
// and cycles them through a window as the compositor releases them.
package producer

import (
	"errors"
	"fmt"
	"math"
	"os"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/1broseidon/wlpresent/internal/present"
)

const (
	UdmabufDevice = "/dev/udmabuf"

	// MaxDimension bounds buffer width and height.
	MaxDimension = 16384

	// _IOW('u', 0x42, struct udmabuf_create)
	udmabufCreate       = 0x40187542
	udmabufFlagsCloexec = 0x01
)

var ErrUnsupportedFormat = errors.New("producer: pixel format not supported by the pattern renderer")

type udmabufCreateArgs struct {
	Memfd  uint32
	Flags  uint32
	Offset uint64
	Size   uint64
}

// Buffer is one CPU-mapped frame. FD is what gets handed to the compositor.
type Buffer struct {
	Index  int
	FD     int
	Width  int32
	Height int32
	Stride uint32
	Format present.Format
	Data   []byte

	memfd int
}

// Desc describes the buffer for present.Window.CreateBuffer.
func (b *Buffer) Desc() present.BufferDesc {
	return present.BufferDesc{
		Index:  b.Index,
		FD:     b.FD,
		Stride: b.Stride,
		Format: b.Format,
		Width:  b.Width,
		Height: b.Height,
	}
}

// Close unmaps the pixels and closes the descriptors.
func (b *Buffer) Close() error {
	var errs []error
	if b.Data != nil {
		errs = append(errs, unix.Munmap(b.Data))
		b.Data = nil
	}
	if b.FD >= 0 && b.FD != b.memfd {
		errs = append(errs, unix.Close(b.FD))
	}
	if b.memfd >= 0 {
		errs = append(errs, unix.Close(b.memfd))
	}
	b.FD, b.memfd = -1, -1
	return errors.Join(errs...)
}

// Allocator creates frame buffers.
type Allocator interface {
	Allocate(index int, width, height int32, format present.Format) (*Buffer, error)
}

// UdmabufAllocator wraps sealed memfds into real dmabufs with /dev/udmabuf, so
// any linux-dmabuf compositor can import them.
type UdmabufAllocator struct {
	Device string
}

func NewUdmabufAllocator() *UdmabufAllocator {
	return &UdmabufAllocator{Device: UdmabufDevice}
}

// Available reports whether the udmabuf device can be opened.
func (a *UdmabufAllocator) Available() bool {
	fd, err := unix.Open(a.Device, unix.O_RDWR|unix.O_CLOEXEC, 0)
	if err != nil {
		return false
	}
	unix.Close(fd)
	return true
}

func (a *UdmabufAllocator) Allocate(index int, width, height int32, format present.Format) (*Buffer, error) {
	b, err := newMemfdBuffer(index, width, height, format)
	if err != nil {
		return nil, err
	}
	dev, err := unix.Open(a.Device, unix.O_RDWR|unix.O_CLOEXEC, 0)
	if err != nil {
		b.Close()
		return nil, fmt.Errorf("failed to open %s: %w", a.Device, err)
	}
	defer unix.Close(dev)

	args := udmabufCreateArgs{
		Memfd: uint32(b.memfd),
		Flags: udmabufFlagsCloexec,
		Size:  uint64(len(b.Data)),
	}
	r1, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(dev), udmabufCreate, uintptr(unsafe.Pointer(&args)))
	if errno != 0 {
		b.Close()
		return nil, fmt.Errorf("UDMABUF_CREATE failed: %w", errno)
	}
	b.FD = int(r1)
	return b, nil
}

// MemfdAllocator hands out the memfd itself. Compositors that insist on a
// device-backed dmabuf reject these; the in-process test compositor does not.
type MemfdAllocator struct{}

func (MemfdAllocator) Allocate(index int, width, height int32, format present.Format) (*Buffer, error) {
	return newMemfdBuffer(index, width, height, format)
}

func newMemfdBuffer(index int, width, height int32, format present.Format) (*Buffer, error) {
	bpp, err := bytesPerPixel(format)
	if err != nil {
		return nil, err
	}
	if width <= 0 || height <= 0 || width > MaxDimension || height > MaxDimension {
		return nil, fmt.Errorf("invalid buffer size %dx%d", width, height)
	}
	stride := int64(width) * int64(bpp)
	page := int64(os.Getpagesize())
	size64 := (stride*int64(height) + page - 1) / page * page
	if size64 > math.MaxInt32 {
		return nil, fmt.Errorf("buffer %dx%d is too large", width, height)
	}
	size := int(size64)

	memfd, err := unix.MemfdCreate(fmt.Sprintf("wlpresent-frame-%d", index), unix.MFD_CLOEXEC|unix.MFD_ALLOW_SEALING)
	if err != nil {
		return nil, fmt.Errorf("memfd_create: %w", err)
	}
	b := &Buffer{
		Index:  index,
		FD:     memfd,
		Width:  width,
		Height: height,
		Stride: uint32(stride),
		Format: format,
		memfd:  memfd,
	}
	if err := unix.Ftruncate(memfd, int64(size)); err != nil {
		b.Close()
		return nil, fmt.Errorf("ftruncate: %w", err)
	}
	// udmabuf refuses memfds that could shrink under it.
	if _, err := unix.FcntlInt(uintptr(memfd), unix.F_ADD_SEALS, unix.F_SEAL_SHRINK); err != nil {
		b.Close()
		return nil, fmt.Errorf("seal memfd: %w", err)
	}
	data, err := unix.Mmap(memfd, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		b.Close()
		return nil, fmt.Errorf("mmap: %w", err)
	}
	b.Data = data
	return b, nil
}

func bytesPerPixel(format present.Format) (int, error) {
	switch format {
	case present.FormatXRGB8888, present.FormatARGB8888, present.FormatXBGR8888, present.FormatABGR8888:
		return 4, nil
	case present.FormatRGB565:
		return 2, nil
	}
	return 0, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
}
