package pixruntime

import (
	"fmt"

	"upscale_backend/imaging"
)

// Executor runs the per-tile computation: given a source tile and the guide
// tile covering the same area, it returns an image with the guide's spatial
// size and the source's channel count.
//
// Implementations must report memory exhaustion with ErrOutOfMemory (wrapping
// is fine) and nothing else, and must free any device memory they allocated
// before returning, whether they succeed or fail.
type Executor interface {
	Execute(dev *Device, source, guide *imaging.Image, params Params) (*imaging.Image, error)
}

// MemoryEstimator is implemented by executors that can predict the device
// memory one Execute call needs for the given tile shapes.
type MemoryEstimator interface {
	EstimateBytes(srcH, srcW, guideH, guideW, guideC int) int64
}

// ExecutorFunc adapts a plain function to the Executor interface.
type ExecutorFunc func(dev *Device, source, guide *imaging.Image, params Params) (*imaging.Image, error)

// Execute calls f.
func (f ExecutorFunc) Execute(dev *Device, source, guide *imaging.Image, params Params) (*imaging.Image, error) {
	return f(dev, source, guide, params)
}

// ScaleFactor returns the integer k with guide = k × source on both axes.
func ScaleFactor(source, guide *imaging.Image) (int, error) {
	if err := source.Validate(); err != nil {
		return 0, fmt.Errorf("%w: source: %v", ErrInvalidInput, err)
	}
	if err := guide.Validate(); err != nil {
		return 0, fmt.Errorf("%w: guide: %v", ErrInvalidInput, err)
	}
	if guide.Height%source.Height != 0 || guide.Width%source.Width != 0 {
		return 0, fmt.Errorf("%w: guide %dx%d is not an integer multiple of source %dx%d",
			ErrInvalidInput, guide.Height, guide.Width, source.Height, source.Width)
	}
	kh, kw := guide.Height/source.Height, guide.Width/source.Width
	if kh != kw {
		return 0, fmt.Errorf("%w: guide scale %dx vertical vs %dx horizontal", ErrInvalidInput, kh, kw)
	}
	return kh, nil
}
