package present

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrCapability means the compositor lacks a mandatory global.
	ErrCapability = errors.New("present: missing compositor capability")
	// ErrImport means the compositor refused a buffer import, or the import
	// handshake never completed.
	ErrImport = errors.New("present: buffer import failed")
	// ErrUnsupportedFormat is returned by strict sessions before any protocol
	// traffic when the format was not advertised.
	ErrUnsupportedFormat = errors.New("present: pixel format not advertised by compositor")
	// ErrFormatSetFull is returned when a format set reaches its capacity.
	ErrFormatSetFull = errors.New("present: format set full")
	ErrDestroyed     = errors.New("present: object already destroyed")
	ErrNotRunning    = errors.New("present: session is not running")
	ErrInvalidBuffer = errors.New("present: invalid buffer descriptor")
)

// CapabilityError names the globals a compositor did not advertise.
type CapabilityError struct {
	Missing []string
}

func (e *CapabilityError) Error() string {
	return fmt.Sprintf("missing wayland globals: %s", strings.Join(e.Missing, ", "))
}

func (e *CapabilityError) Unwrap() error {
	return ErrCapability
}

// ImportError describes a failed dmabuf import.
type ImportError struct {
	Index  int
	Format Format
	Width  int32
	Height int32
	Cause  error
}

func (e *ImportError) Error() string {
	return fmt.Sprintf("import of buffer %d (%s %dx%d) failed: %v", e.Index, e.Format, e.Width, e.Height, e.Cause)
}

func (e *ImportError) Unwrap() []error {
	return []error{ErrImport, e.Cause}
}
