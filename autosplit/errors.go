package autosplit

import (
	"errors"
	"fmt"

	"upscale_backend/imaging"
)

// Sentinel errors for the auto-split controller. All of them are fatal.
var (
	// ErrSizeRatio indicates the guide is not the same integer multiple (at
	// least 2) of the source on both axes.
	ErrSizeRatio = errors.New("autosplit: guide/source size ratio is invalid")

	// ErrTileFloor indicates a tile at the minimum size still ran out of memory.
	ErrTileFloor = errors.New("autosplit: out of memory at minimum tile size")

	// ErrInvalidTiling indicates partial results do not exactly partition the output.
	ErrInvalidTiling = errors.New("autosplit: partial results do not tile the output")

	// ErrMaxDepth indicates the split recursion went deeper than allowed.
	ErrMaxDepth = errors.New("autosplit: maximum split depth exceeded")

	// ErrInvalidOptions indicates controller options out of range.
	ErrInvalidOptions = errors.New("autosplit: invalid options")
)

// SplitError reports a failure at a specific region of the split tree.
type SplitError struct {
	Op     string         // Operation that failed ("execute", "split", "crop")
	Region imaging.Region // Source-space region being processed
	Depth  int            // Recursion depth, 0 for the full image
	Err    error          // Underlying error
}

// Error implements the error interface.
func (e *SplitError) Error() string {
	return fmt.Sprintf("autosplit %s %s (depth %d): %v", e.Op, e.Region, e.Depth, e.Err)
}

// Unwrap returns the underlying error for errors.Is and errors.As.
func (e *SplitError) Unwrap() error {
	return e.Err
}
