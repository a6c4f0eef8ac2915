// Package pixruntime runs the per-tile guided upscale computation on a
// memory-budgeted device.
//
// It provides the pieces the auto-split controller composes:
//
//   - Executor: the narrow "process one region" contract
//   - Device, Scope, Buffer: byte-accounted accelerator memory
//   - DevicePool: lazily created devices, one per concurrent top-level call
//   - Params, ValidateParams, ParamsFromKilo: per-call settings
//   - GuidedLinearExecutor: the reference tile routine
//
// # Executors and memory
//
// An executor allocates its working buffers through a scope and frees them
// on every return path:
//
//	func run(dev *pixruntime.Device, src, guide *imaging.Image, p pixruntime.Params) (*imaging.Image, error) {
//	    scope := dev.Scope()
//	    defer scope.Release()
//
//	    buf, err := scope.Alloc(guide.Height * guide.Width)
//	    if err != nil {
//	        return nil, err // wraps ErrOutOfMemory
//	    }
//	    ...
//	}
//
// When an allocation would exceed the device budget the error wraps
// ErrOutOfMemory. That is the only error the controller treats as
// recoverable; use IsOutOfMemory to test for it.
//
// # Configuration
//
// RuntimeConfig.ApplyEnv reads:
//
//	UPSCALE_DEVICE_MEMORY_MB=256    # Memory budget per device
//	UPSCALE_DEVICE_POOL_SIZE=1      # Devices, i.e. concurrent upscales
//	UPSCALE_ACQUIRE_TIMEOUT=30s     # Wait limit for a free device
//	UPSCALE_ITERATIONS_K=1.0        # Iterations in thousands (0.1-100)
//	UPSCALE_LEARNING_RATE=0.5       # Gradient step size (0-0.9)
//
// # Thread Safety
//
// DevicePool is safe for concurrent use. A Device is used by one call at a
// time; its counters may be read concurrently.
package pixruntime
