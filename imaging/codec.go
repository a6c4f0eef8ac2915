package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	"golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// Codec errors
var (
	ErrEmptyImage        = errors.New("imaging: empty image data")
	ErrInvalidImage      = errors.New("imaging: invalid image data")
	ErrUnsupportedFormat = errors.New("imaging: unsupported image format")
)

// Decode reads PNG, JPEG, GIF, BMP, TIFF or WebP data into a float image with
// samples in [0,1]. Grayscale inputs give one channel, opaque color inputs three
// and translucent ones four (straight alpha).
func Decode(data []byte) (*Image, error) {
	if len(data) == 0 {
		return nil, ErrEmptyImage
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}
	return FromImage(img), nil
}

// ReadFile decodes the image stored at path.
func ReadFile(path string) (*Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	img, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return img, nil
}

// FromImage converts a standard library image.
func FromImage(src image.Image) *Image {
	b := src.Bounds()

	switch src.ColorModel() {
	case color.GrayModel, color.Gray16Model:
		gray := image.NewGray16(image.Rect(0, 0, b.Dx(), b.Dy()))
		draw.Draw(gray, gray.Bounds(), src, b.Min, draw.Src)
		out := MustNew(b.Dy(), b.Dx(), 1)
		for y := 0; y < b.Dy(); y++ {
			for x := 0; x < b.Dx(); x++ {
				out.Set(y, x, 0, float64(gray.Gray16At(x, y).Y)/65535.0)
			}
		}
		return out
	}

	nrgba := image.NewNRGBA64(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(nrgba, nrgba.Bounds(), src, b.Min, draw.Src)

	channels := 3
	if !nrgba.Opaque() {
		channels = 4
	}
	out := MustNew(b.Dy(), b.Dx(), channels)
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			c := nrgba.NRGBA64At(x, y)
			px := out.Pixel(y, x)
			px[0] = float64(c.R) / 65535.0
			px[1] = float64(c.G) / 65535.0
			px[2] = float64(c.B) / 65535.0
			if channels == 4 {
				px[3] = float64(c.A) / 65535.0
			}
		}
	}
	return out
}

// ToImage converts back to a 16-bit standard library image, clamping to [0,1].
// One or two channels produce Gray16 (the second channel is dropped), three or
// more produce NRGBA64.
func ToImage(m *Image) image.Image {
	rect := image.Rect(0, 0, m.Width, m.Height)
	if m.Channels < 3 {
		out := image.NewGray16(rect)
		for y := 0; y < m.Height; y++ {
			for x := 0; x < m.Width; x++ {
				out.SetGray16(x, y, color.Gray16{Y: to16(m.At(y, x, 0))})
			}
		}
		return out
	}

	out := image.NewNRGBA64(rect)
	for y := 0; y < m.Height; y++ {
		for x := 0; x < m.Width; x++ {
			px := m.Pixel(y, x)
			a := uint16(0xffff)
			if m.Channels >= 4 {
				a = to16(px[3])
			}
			out.SetNRGBA64(x, y, color.NRGBA64{R: to16(px[0]), G: to16(px[1]), B: to16(px[2]), A: a})
		}
	}
	return out
}

// to16 clamps v to [0,1] and quantizes it. NaN maps to 0.
func to16(v float64) uint16 {
	if v <= 0 || math.IsNaN(v) {
		return 0
	}
	if v >= 1 {
		return 0xffff
	}
	return uint16(v*65535.0 + 0.5)
}

// Encode writes m in the named format: "png", "tiff"/"tif" or "bmp".
func Encode(w io.Writer, m *Image, format string) error {
	img := ToImage(m)
	switch strings.ToLower(strings.TrimPrefix(format, ".")) {
	case "png":
		return png.Encode(w, img)
	case "tif", "tiff":
		return tiff.Encode(w, img, &tiff.Options{Compression: tiff.Deflate})
	case "bmp":
		return bmp.Encode(w, img)
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
}

// CheckOutputPath reports whether WriteFile can encode to path, so callers
// can reject a bad destination before doing any work.
func CheckOutputPath(path string) error {
	switch strings.ToLower(strings.TrimPrefix(filepath.Ext(path), ".")) {
	case "png", "tif", "tiff", "bmp":
		return nil
	}
	return fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
}

// WriteFile encodes m using the format implied by the path's extension.
func WriteFile(path string, m *Image) error {
	ext := filepath.Ext(path)
	if ext == "" {
		return fmt.Errorf("%w: no extension in %s", ErrUnsupportedFormat, path)
	}
	var buf bytes.Buffer
	if err := Encode(&buf, m, ext); err != nil {
		return err
	}
	return os.WriteFile(path, buf.Bytes(), 0644)
}
