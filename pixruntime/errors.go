package pixruntime

import "errors"

// Sentinel errors for tile execution.
var (
	// Resource errors. ErrOutOfMemory is the only condition the auto-split
	// controller recovers from.
	ErrOutOfMemory = errors.New("pixruntime: out of device memory")

	// Input validation errors
	ErrInvalidParams = errors.New("pixruntime: invalid execution parameters")
	ErrInvalidInput  = errors.New("pixruntime: invalid tile input")

	// Execution errors
	ErrExecutionFailed = errors.New("pixruntime: tile execution failed")

	// Device pool errors
	ErrDevicePoolClosed = errors.New("pixruntime: device pool is closed")
	ErrAcquireTimeout   = errors.New("pixruntime: timeout acquiring device from pool")
)

// IsOutOfMemory reports whether err signals device memory exhaustion.
func IsOutOfMemory(err error) bool {
	return errors.Is(err, ErrOutOfMemory)
}
