package producer

import (
	"encoding/binary"
	"fmt"

	"github.com/1broseidon/wlpresent/internal/present"
)

type rgb struct {
	r, g, b uint8
}

// 75% SMPTE bars.
var barColors = []rgb{
	{191, 191, 191},
	{191, 191, 0},
	{0, 191, 191},
	{0, 191, 0},
	{191, 0, 191},
	{191, 0, 0},
	{0, 0, 191},
	{16, 16, 16},
}

// Pattern paints frame number frame into a buffer.
type Pattern interface {
	Fill(b *Buffer, frame int) error
}

// NewPattern returns one of bars, gradient or solid.
func NewPattern(name string) (Pattern, error) {
	switch name {
	case "bars":
		return barsPattern{}, nil
	case "gradient":
		return gradientPattern{}, nil
	case "solid":
		return solidPattern{}, nil
	}
	return nil, fmt.Errorf("unknown pattern %q", name)
}

// barsPattern scrolls vertical colour bars one column per frame.
type barsPattern struct{}

func (barsPattern) Fill(b *Buffer, frame int) error {
	put, err := pixelWriter(b.Format)
	if err != nil {
		return err
	}
	width := int(b.Width)
	barWidth := max(width/len(barColors), 1)
	row := b.Data[:b.Stride]
	bpp := int(b.Stride) / width
	for x := 0; x < width; x++ {
		c := barColors[((x+frame)/barWidth)%len(barColors)]
		put(row[x*bpp:], c)
	}
	for y := 1; y < int(b.Height); y++ {
		copy(b.Data[y*int(b.Stride):], row)
	}
	return nil
}

// gradientPattern is a horizontal red ramp over a vertical green ramp with a
// blue channel pulsing per frame.
type gradientPattern struct{}

func (gradientPattern) Fill(b *Buffer, frame int) error {
	put, err := pixelWriter(b.Format)
	if err != nil {
		return err
	}
	width, height := int(b.Width), int(b.Height)
	bpp := int(b.Stride) / width
	blue := uint8(frame * 4)
	for y := 0; y < height; y++ {
		row := b.Data[y*int(b.Stride):]
		g := uint8(y * 255 / max(height-1, 1))
		for x := 0; x < width; x++ {
			put(row[x*bpp:], rgb{uint8(x * 255 / max(width-1, 1)), g, blue})
		}
	}
	return nil
}

// solidPattern cycles through the bar colours once per second at 60 fps.
type solidPattern struct{}

func (solidPattern) Fill(b *Buffer, frame int) error {
	put, err := pixelWriter(b.Format)
	if err != nil {
		return err
	}
	c := barColors[(frame/60)%len(barColors)]
	bpp := int(b.Stride) / int(b.Width)
	row := b.Data[:b.Stride]
	for x := 0; x < int(b.Width); x++ {
		put(row[x*bpp:], c)
	}
	for y := 1; y < int(b.Height); y++ {
		copy(b.Data[y*int(b.Stride):], row)
	}
	return nil
}

// pixelWriter encodes one pixel in the buffer's DRM format. DRM formats are
// little-endian: XRGB8888 is stored B, G, R, X.
func pixelWriter(format present.Format) (func(dst []byte, c rgb), error) {
	switch format {
	case present.FormatXRGB8888, present.FormatARGB8888:
		return func(dst []byte, c rgb) {
			dst[0], dst[1], dst[2], dst[3] = c.b, c.g, c.r, 0xff
		}, nil
	case present.FormatXBGR8888, present.FormatABGR8888:
		return func(dst []byte, c rgb) {
			dst[0], dst[1], dst[2], dst[3] = c.r, c.g, c.b, 0xff
		}, nil
	case present.FormatRGB565:
		return func(dst []byte, c rgb) {
			v := uint16(c.r>>3)<<11 | uint16(c.g>>2)<<5 | uint16(c.b>>3)
			binary.LittleEndian.PutUint16(dst, v)
		}, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
}
