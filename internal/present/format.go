package present

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// Format is a DRM fourcc pixel format code.
type Format uint32

// FourCC packs four characters into a Format, first character lowest.
func FourCC(a, b, c, d byte) Format {
	return Format(uint32(a) | uint32(b)<<8 | uint32(c)<<16 | uint32(d)<<24)
}

var (
	FormatXRGB8888 = FourCC('X', 'R', '2', '4')
	FormatARGB8888 = FourCC('A', 'R', '2', '4')
	FormatXBGR8888 = FourCC('X', 'B', '2', '4')
	FormatABGR8888 = FourCC('A', 'B', '2', '4')
	FormatRGB565   = FourCC('R', 'G', '1', '6')
	FormatYUYV     = FourCC('Y', 'U', 'Y', 'V')
	FormatNV12     = FourCC('N', 'V', '1', '2')
)

var formatNames = map[string]Format{
	"XRGB8888": FormatXRGB8888,
	"ARGB8888": FormatARGB8888,
	"XBGR8888": FormatXBGR8888,
	"ABGR8888": FormatABGR8888,
	"RGB565":   FormatRGB565,
	"YUYV":     FormatYUYV,
	"NV12":     FormatNV12,
}

// String renders the fourcc characters, or hex when they are not printable.
func (f Format) String() string {
	b := []byte{byte(f), byte(f >> 8), byte(f >> 16), byte(f >> 24)}
	for _, c := range b {
		if c < 0x20 || c > 0x7e {
			return fmt.Sprintf("0x%08x", uint32(f))
		}
	}
	return string(b)
}

// ParseFormat accepts a long name (XRGB8888), a four character code (XR24) or
// a numeric literal (0x34325258).
func ParseFormat(s string) (Format, error) {
	s = strings.TrimSpace(s)
	if f, ok := formatNames[strings.ToUpper(s)]; ok {
		return f, nil
	}
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		v, err := strconv.ParseUint(s[2:], 16, 32)
		if err != nil {
			return 0, fmt.Errorf("invalid format %q: %w", s, err)
		}
		return Format(v), nil
	}
	if len(s) == 4 {
		return FourCC(s[0], s[1], s[2], s[3]), nil
	}
	return 0, fmt.Errorf("invalid format %q", s)
}

// DefaultFormatCapacity bounds how many advertised formats a session keeps.
const DefaultFormatCapacity = 32

// FormatSet is an insertion-ordered set with a fixed capacity.
type FormatSet struct {
	order    []Format
	index    map[Format]struct{}
	capacity int
}

func NewFormatSet(capacity int) *FormatSet {
	if capacity <= 0 {
		capacity = DefaultFormatCapacity
	}
	return &FormatSet{
		index:    make(map[Format]struct{}, capacity),
		capacity: capacity,
	}
}

// Add inserts f. Duplicates are ignored; inserting past capacity returns
// ErrFormatSetFull and leaves the set unchanged.
func (s *FormatSet) Add(f Format) error {
	if _, ok := s.index[f]; ok {
		return nil
	}
	if len(s.order) >= s.capacity {
		return fmt.Errorf("%w: capacity %d, dropping %s", ErrFormatSetFull, s.capacity, f)
	}
	s.order = append(s.order, f)
	s.index[f] = struct{}{}
	return nil
}

func (s *FormatSet) Contains(f Format) bool {
	_, ok := s.index[f]
	return ok
}

func (s *FormatSet) Len() int {
	return len(s.order)
}

func (s *FormatSet) Cap() int {
	return s.capacity
}

// Formats returns the formats in advertisement order.
func (s *FormatSet) Formats() []Format {
	return slices.Clone(s.order)
}
