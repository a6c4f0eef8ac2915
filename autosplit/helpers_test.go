package autosplit

import (
	"fmt"
	"math"
	"sync/atomic"

	"upscale_backend/imaging"
	"upscale_backend/pixruntime"
)

// testImage returns a deterministic image with samples in [0, 1].
func testImage(height, width, channels int, seed float64) *imaging.Image {
	img := imaging.MustNew(height, width, channels)
	for r := 0; r < height; r++ {
		for c := 0; c < width; c++ {
			for ch := 0; ch < channels; ch++ {
				v := math.Sin(seed+float64(r)*0.37+float64(c)*0.91+float64(ch)*1.3)*0.5 + 0.5
				img.Set(r, c, ch, v)
			}
		}
	}
	return img
}

// blendExecutor is pixel-local: each output pixel depends only on the source
// pixel it falls in and the guide pixel at the same position, so the result
// must not depend on how the image was tiled.
//
// Tiles whose source area exceeds maxArea fail with ErrOutOfMemory (0 means
// no limit). The output buffer is also allocated on the device, so a small
// device capacity causes real out-of-memory failures.
type blendExecutor struct {
	maxArea int
	calls   atomic.Int64
}

func (e *blendExecutor) Execute(dev *pixruntime.Device, source, guide *imaging.Image, _ pixruntime.Params) (*imaging.Image, error) {
	e.calls.Add(1)
	if e.maxArea > 0 && source.Height*source.Width > e.maxArea {
		return nil, fmt.Errorf("tile %dx%d over limit: %w", source.Height, source.Width, pixruntime.ErrOutOfMemory)
	}

	scope := dev.Scope()
	defer scope.Release()
	if _, err := scope.Alloc(guide.Height * guide.Width * source.Channels); err != nil {
		return nil, err
	}

	k := guide.Height / source.Height
	out := imaging.MustNew(guide.Height, guide.Width, source.Channels)
	for r := 0; r < guide.Height; r++ {
		for c := 0; c < guide.Width; c++ {
			for ch := 0; ch < source.Channels; ch++ {
				g := guide.At(r, c, ch%guide.Channels)
				out.Set(r, c, ch, 0.75*source.At(r/k, c/k, ch)+0.25*g)
			}
		}
	}
	return out, nil
}

// alwaysOOM fails every call with ErrOutOfMemory.
type alwaysOOM struct {
	calls atomic.Int64
}

func (e *alwaysOOM) Execute(*pixruntime.Device, *imaging.Image, *imaging.Image, pixruntime.Params) (*imaging.Image, error) {
	e.calls.Add(1)
	return nil, fmt.Errorf("simulated: %w", pixruntime.ErrOutOfMemory)
}

func newTestDevice(capacity int64) *pixruntime.Device {
	dev, err := pixruntime.NewDevice("test-device", capacity)
	if err != nil {
		panic(err)
	}
	return dev
}

func testParams() pixruntime.Params {
	return pixruntime.DefaultParams()
}

// testOptions returns options with the floor at a single pixel.
func testOptions() Options {
	opts := DefaultOptions()
	opts.MinTileArea = 1
	return opts
}
