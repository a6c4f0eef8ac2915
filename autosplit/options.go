package autosplit

import (
	"fmt"

	"go.uber.org/zap/zapcore"
)

// Options tune the split behaviour. Areas are in source pixels.
type Options struct {
	// MinTileArea is the floor: regions this small are never split and an
	// out-of-memory failure there is fatal.
	MinTileArea int `yaml:"min_tile_area"`

	// MaxTileArea, when positive, splits larger regions before the first
	// attempt instead of waiting for them to run out of memory.
	MaxTileArea int `yaml:"max_tile_area"`

	// Overlap grows each tile by this many source pixels of context on every
	// side. The margin is cropped away before stitching.
	Overlap int `yaml:"overlap"`

	// MaxDepth bounds the split recursion.
	MaxDepth int `yaml:"max_depth"`
}

// Default option values
const (
	DefaultMinTileArea = 16
	DefaultMaxTileArea = 0
	DefaultOverlap     = 0
	DefaultMaxDepth    = 32
)

// DefaultOptions returns the built-in defaults.
func DefaultOptions() Options {
	return Options{
		MinTileArea: DefaultMinTileArea,
		MaxTileArea: DefaultMaxTileArea,
		Overlap:     DefaultOverlap,
		MaxDepth:    DefaultMaxDepth,
	}
}

// Validate checks option ranges.
func (o Options) Validate() error {
	if o.MinTileArea < 1 {
		return fmt.Errorf("%w: min tile area %d must be at least 1", ErrInvalidOptions, o.MinTileArea)
	}
	if o.MaxTileArea < 0 {
		return fmt.Errorf("%w: max tile area %d must not be negative", ErrInvalidOptions, o.MaxTileArea)
	}
	if o.MaxTileArea > 0 && o.MaxTileArea < o.MinTileArea {
		return fmt.Errorf("%w: max tile area %d is below min tile area %d",
			ErrInvalidOptions, o.MaxTileArea, o.MinTileArea)
	}
	if o.Overlap < 0 {
		return fmt.Errorf("%w: overlap %d must not be negative", ErrInvalidOptions, o.Overlap)
	}
	if o.MaxDepth < 1 || o.MaxDepth > 64 {
		return fmt.Errorf("%w: max depth %d must be between 1 and 64", ErrInvalidOptions, o.MaxDepth)
	}
	return nil
}

// MarshalLogObject implements zapcore.ObjectMarshaler.
func (o Options) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddInt("min_tile_area", o.MinTileArea)
	enc.AddInt("max_tile_area", o.MaxTileArea)
	enc.AddInt("overlap", o.Overlap)
	enc.AddInt("max_depth", o.MaxDepth)
	return nil
}
