package imaging

import (
	"fmt"
	"image"

	"golang.org/x/image/draw"
)

// BlockMean shrinks img by an integer factor, averaging each k×k block.
func BlockMean(img *Image, k int) (*Image, error) {
	if k <= 0 || img.Height%k != 0 || img.Width%k != 0 {
		return nil, fmt.Errorf("%w: %dx%d not divisible by %d", ErrShapeMismatch, img.Height, img.Width, k)
	}
	out := MustNew(img.Height/k, img.Width/k, img.Channels)
	inv := 1 / float64(k*k)
	for y := 0; y < img.Height; y++ {
		for x := 0; x < img.Width; x++ {
			src := img.Pixel(y, x)
			dst := out.Pixel(y/k, x/k)
			for c, v := range src {
				dst[c] += v * inv
			}
		}
	}
	return out, nil
}

// UpsampleNearest enlarges img by an integer factor, repeating each pixel.
func UpsampleNearest(img *Image, k int) (*Image, error) {
	if k <= 0 {
		return nil, fmt.Errorf("%w: factor %d", ErrInvalidDimensions, k)
	}
	out := MustNew(img.Height*k, img.Width*k, img.Channels)
	for y := 0; y < out.Height; y++ {
		for x := 0; x < out.Width; x++ {
			copy(out.Pixel(y, x), img.Pixel(y/k, x/k))
		}
	}
	return out, nil
}

// ScaleNearest resizes img to height×width with nearest-neighbor sampling at
// 16-bit precision. Factors need not be integral. The result follows the
// channel rules of FromImage, so an opaque 4-channel input comes back as RGB.
func ScaleNearest(img *Image, height, width int) (*Image, error) {
	if height <= 0 || width <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrInvalidDimensions, height, width)
	}
	src := ToImage(img)
	rect := image.Rect(0, 0, width, height)
	var dst draw.Image
	if img.Channels < 3 {
		dst = image.NewGray16(rect)
	} else {
		dst = image.NewNRGBA64(rect)
	}
	draw.NearestNeighbor.Scale(dst, rect, src, src.Bounds(), draw.Src, nil)
	return FromImage(dst), nil
}
