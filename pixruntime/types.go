package pixruntime

import (
	"fmt"
	"math"
)

// Params holds the per-call settings handed to every tile execution.
type Params struct {
	Iterations   int     // Optimization steps per tile
	LearningRate float64 // Gradient step size for the reference executor
}

// Parameter validation constants
const (
	// The iteration slider is expressed in thousands.
	MinIterationsK     = 0.1
	MaxIterationsK     = 100.0
	DefaultIterationsK = 1.0

	MinIterations = int(MinIterationsK * 1000)
	MaxIterations = int(MaxIterationsK * 1000)

	DefaultLearningRate = 0.5
	MaxLearningRate     = 0.9
)

// DefaultParams returns parameters matching the default slider position.
func DefaultParams() Params {
	return Params{
		Iterations:   ParamsFromKilo(DefaultIterationsK).Iterations,
		LearningRate: DefaultLearningRate,
	}
}

// ParamsFromKilo converts a slider value in thousands of iterations into Params.
func ParamsFromKilo(k float64) Params {
	if math.IsNaN(k) {
		k = 0
	}
	return Params{
		Iterations:   int(k * 1000),
		LearningRate: DefaultLearningRate,
	}
}

// ValidateParams validates execution parameters and returns an error if invalid.
func ValidateParams(p Params) error {
	if p.Iterations < MinIterations || p.Iterations > MaxIterations {
		return fmt.Errorf("%w: iterations %d must be between %d and %d",
			ErrInvalidParams, p.Iterations, MinIterations, MaxIterations)
	}

	if math.IsNaN(p.LearningRate) || p.LearningRate <= 0 || p.LearningRate > MaxLearningRate {
		return fmt.Errorf("%w: learning rate %.4f must be in (0, %.1f]",
			ErrInvalidParams, p.LearningRate, MaxLearningRate)
	}

	return nil
}
