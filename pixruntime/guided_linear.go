package pixruntime

import (
	"fmt"
	"math"

	"upscale_backend/imaging"
)

// GuidedLinearExecutor is the reference tile routine. For each source channel
// it fits a linear map from the guide's channels to that channel so that the
// k×k block means of the prediction match the source, then adds back the
// per-block residual. The block means of the output equal the source.
//
// Working buffers live on the device, so oversized tiles fail with
// ErrOutOfMemory.
type GuidedLinearExecutor struct{}

var _ MemoryEstimator = (*GuidedLinearExecutor)(nil)

// NewGuidedLinearExecutor returns the reference executor.
func NewGuidedLinearExecutor() *GuidedLinearExecutor {
	return &GuidedLinearExecutor{}
}

// EstimateBytes returns the device memory one Execute call needs.
func (e *GuidedLinearExecutor) EstimateBytes(srcH, srcW, guideH, guideW, guideC int) int64 {
	return int64(workingSamples(srcH, srcW, guideH, guideW, guideC)) * 8
}

func workingSamples(srcH, srcW, guideH, guideW, guideC int) int {
	// downsampled guide features, source plane, prediction plane
	return srcH*srcW*guideC + srcH*srcW + guideH*guideW
}

// Execute implements Executor.
func (e *GuidedLinearExecutor) Execute(dev *Device, source, guide *imaging.Image, params Params) (*imaging.Image, error) {
	k, err := ScaleFactor(source, guide)
	if err != nil {
		return nil, err
	}
	if err := ValidateParams(params); err != nil {
		return nil, err
	}

	scope := dev.Scope()
	defer scope.Release()

	h, w := source.Height, source.Width
	n := h * w
	gc := guide.Channels

	features, err := scope.Alloc(n * gc)
	if err != nil {
		return nil, err
	}
	target, err := scope.Alloc(n)
	if err != nil {
		return nil, err
	}
	pred, err := scope.Alloc(guide.Height * guide.Width)
	if err != nil {
		return nil, err
	}

	// Block means of the guide, standardized per channel
	down, err := imaging.BlockMean(guide, k)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	copy(features, down.Pix)
	mean, scale := standardize(features, gc)

	out := imaging.MustNew(guide.Height, guide.Width, source.Channels)
	for c := 0; c < source.Channels; c++ {
		for i := 0; i < n; i++ {
			target[i] = source.Pix[i*source.Channels+c]
		}

		coef, bias := fitLinear(features, target, gc, params)
		if !finite(bias) || !allFinite(coef) {
			return nil, fmt.Errorf("%w: channel %d fit is not finite", ErrExecutionFailed, c)
		}

		for y := 0; y < guide.Height; y++ {
			for x := 0; x < guide.Width; x++ {
				px := guide.Pixel(y, x)
				v := bias
				for j, g := range px {
					v += coef[j] * (g - mean[j]) * scale[j]
				}
				pred[y*guide.Width+x] = v
			}
		}

		addBlockResidual(pred, target, guide.Width, w, k)

		for i, v := range pred {
			out.Pix[i*out.Channels+c] = v
		}
	}

	return out, nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func allFinite(vs []float64) bool {
	for _, v := range vs {
		if !finite(v) {
			return false
		}
	}
	return true
}

// standardize rescales each of the interleaved feature channels to zero mean
// and unit variance in place. Constant channels become zero.
func standardize(features []float64, channels int) (mean, scale []float64) {
	mean = make([]float64, channels)
	scale = make([]float64, channels)
	n := len(features) / channels

	for i := 0; i < n; i++ {
		for j := 0; j < channels; j++ {
			mean[j] += features[i*channels+j]
		}
	}
	for j := range mean {
		mean[j] /= float64(n)
	}

	variance := make([]float64, channels)
	for i := 0; i < n; i++ {
		for j := 0; j < channels; j++ {
			d := features[i*channels+j] - mean[j]
			variance[j] += d * d
		}
	}
	for j := range scale {
		sd := math.Sqrt(variance[j] / float64(n))
		if sd > 1e-12 {
			scale[j] = 1 / sd
		}
	}

	for i := 0; i < n; i++ {
		for j := 0; j < channels; j++ {
			features[i*channels+j] = (features[i*channels+j] - mean[j]) * scale[j]
		}
	}
	return mean, scale
}

// fitLinear runs gradient descent on the mean squared error between the
// linear prediction over features and target.
func fitLinear(features, target []float64, channels int, params Params) ([]float64, float64) {
	n := len(target)
	coef := make([]float64, channels)
	grad := make([]float64, channels)

	var bias float64
	for _, t := range target {
		bias += t
	}
	bias /= float64(n)

	// Standardized features keep the curvature bounded by the channel count.
	step := params.LearningRate / float64(channels+1)
	inv := 2 / float64(n)

	for it := 0; it < params.Iterations; it++ {
		for j := range grad {
			grad[j] = 0
		}
		var gb float64
		for i := 0; i < n; i++ {
			f := features[i*channels : (i+1)*channels]
			e := bias - target[i]
			for j, v := range f {
				e += coef[j] * v
			}
			for j, v := range f {
				grad[j] += e * v
			}
			gb += e
		}
		for j := range coef {
			coef[j] -= step * grad[j] * inv
		}
		bias -= step * gb * inv
	}
	return coef, bias
}

// addBlockResidual shifts every k×k block of pred so its mean equals the
// matching target sample.
func addBlockResidual(pred, target []float64, predWidth, targetWidth, k int) {
	inv := 1 / float64(k*k)
	for i, t := range target {
		by, bx := i/targetWidth, i%targetWidth
		var sum float64
		for dy := 0; dy < k; dy++ {
			row := (by*k + dy) * predWidth
			for dx := 0; dx < k; dx++ {
				sum += pred[row+bx*k+dx]
			}
		}
		r := t - sum*inv
		for dy := 0; dy < k; dy++ {
			row := (by*k + dy) * predWidth
			for dx := 0; dx < k; dx++ {
				pred[row+bx*k+dx] += r
			}
		}
	}
}
