// Package imaging provides the float image buffers, rectangular regions and
// color-space transforms used by the auto-split upscaler.
package imaging

import (
	"errors"
	"fmt"
	"math"
)

// Image errors
var (
	ErrInvalidDimensions = errors.New("imaging: invalid dimensions")
	ErrInvalidRegion     = errors.New("imaging: region outside image bounds")
	ErrShapeMismatch     = errors.New("imaging: image shape mismatch")
)

// Image is a height × width × channel buffer of float samples stored row-major,
// channels interleaved.
type Image struct {
	Height   int
	Width    int
	Channels int
	Pix      []float64
}

// New allocates a zeroed image of the given shape.
func New(height, width, channels int) (*Image, error) {
	if height <= 0 || width <= 0 || channels <= 0 {
		return nil, fmt.Errorf("%w: %dx%dx%d", ErrInvalidDimensions, height, width, channels)
	}
	return &Image{
		Height:   height,
		Width:    width,
		Channels: channels,
		Pix:      make([]float64, height*width*channels),
	}, nil
}

// MustNew is New for shapes known to be valid. It panics otherwise.
func MustNew(height, width, channels int) *Image {
	img, err := New(height, width, channels)
	if err != nil {
		panic(err)
	}
	return img
}

// Validate checks the image invariants.
func (m *Image) Validate() error {
	if m == nil {
		return fmt.Errorf("%w: nil image", ErrInvalidDimensions)
	}
	if m.Height <= 0 || m.Width <= 0 || m.Channels <= 0 {
		return fmt.Errorf("%w: %dx%dx%d", ErrInvalidDimensions, m.Height, m.Width, m.Channels)
	}
	if len(m.Pix) != m.Height*m.Width*m.Channels {
		return fmt.Errorf("%w: %d samples for %dx%dx%d", ErrInvalidDimensions,
			len(m.Pix), m.Height, m.Width, m.Channels)
	}
	return nil
}

// Bounds returns the region covering the whole image.
func (m *Image) Bounds() Region {
	return Region{Height: m.Height, Width: m.Width}
}

// Shape returns height, width and channel count.
func (m *Image) Shape() (int, int, int) {
	return m.Height, m.Width, m.Channels
}

// SameShape reports whether both images have identical dimensions.
func (m *Image) SameShape(o *Image) bool {
	return m.Height == o.Height && m.Width == o.Width && m.Channels == o.Channels
}

func (m *Image) offset(row, col int) int {
	return (row*m.Width + col) * m.Channels
}

// At returns one sample.
func (m *Image) At(row, col, ch int) float64 {
	return m.Pix[m.offset(row, col)+ch]
}

// Set stores one sample.
func (m *Image) Set(row, col, ch int, v float64) {
	m.Pix[m.offset(row, col)+ch] = v
}

// Pixel returns the channel slice of one pixel. The slice aliases Pix.
func (m *Image) Pixel(row, col int) []float64 {
	o := m.offset(row, col)
	return m.Pix[o : o+m.Channels]
}

// Clone returns a deep copy.
func (m *Image) Clone() *Image {
	pix := make([]float64, len(m.Pix))
	copy(pix, m.Pix)
	return &Image{Height: m.Height, Width: m.Width, Channels: m.Channels, Pix: pix}
}

// Crop copies the given region into a new image. The region must lie inside m.
func (m *Image) Crop(r Region) (*Image, error) {
	if !r.Within(m.Height, m.Width) {
		return nil, fmt.Errorf("%w: %s in %dx%d", ErrInvalidRegion, r, m.Height, m.Width)
	}
	out := MustNew(r.Height, r.Width, m.Channels)
	rowLen := r.Width * m.Channels
	for y := 0; y < r.Height; y++ {
		src := m.offset(r.Row+y, r.Col)
		copy(out.Pix[y*rowLen:(y+1)*rowLen], m.Pix[src:src+rowLen])
	}
	return out, nil
}

// Paste copies src into m at region r. src must have r's size and m's channel count.
func (m *Image) Paste(r Region, src *Image) error {
	if !r.Within(m.Height, m.Width) {
		return fmt.Errorf("%w: %s in %dx%d", ErrInvalidRegion, r, m.Height, m.Width)
	}
	if src.Height != r.Height || src.Width != r.Width || src.Channels != m.Channels {
		return fmt.Errorf("%w: %dx%dx%d into %s with %d channels", ErrShapeMismatch,
			src.Height, src.Width, src.Channels, r, m.Channels)
	}
	rowLen := r.Width * m.Channels
	for y := 0; y < r.Height; y++ {
		dst := m.offset(r.Row+y, r.Col)
		copy(m.Pix[dst:dst+rowLen], src.Pix[y*rowLen:(y+1)*rowLen])
	}
	return nil
}

// Equal reports bit-identical shape and samples.
func (m *Image) Equal(o *Image) bool {
	if !m.SameShape(o) {
		return false
	}
	for i, v := range m.Pix {
		if math.Float64bits(v) != math.Float64bits(o.Pix[i]) {
			return false
		}
	}
	return true
}

// MaxAbsDiff returns the largest absolute per-sample difference, or +Inf when
// the shapes differ.
func (m *Image) MaxAbsDiff(o *Image) float64 {
	if !m.SameShape(o) {
		return math.Inf(1)
	}
	var d float64
	for i, v := range m.Pix {
		d = math.Max(d, math.Abs(v-o.Pix[i]))
	}
	return d
}
