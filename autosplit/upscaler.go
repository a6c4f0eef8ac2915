package autosplit

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"upscale_backend/imaging"
	"upscale_backend/logging"
	"upscale_backend/pixruntime"
)

// Upscaler is the entry point for guided upscaling. It validates the call,
// borrows a device from the pool and runs the auto-split controller on it.
//
// This composes:
//   - DevicePool: one device per concurrent call
//   - ValidateParams: parameter validation
//   - Controller: tiling, recovery and stitching
type Upscaler struct {
	pool       *pixruntime.DevicePool
	controller *Controller
	logger     *zap.Logger
}

// Result is the output of one upscale call.
type Result struct {
	Image  *imaging.Image
	Stats  Stats
	Device string // name of the device the call ran on
}

// NewUpscaler creates an Upscaler. A nil logger disables logging.
func NewUpscaler(pool *pixruntime.DevicePool, exec pixruntime.Executor, opts Options, logger *zap.Logger) (*Upscaler, error) {
	if pool == nil {
		return nil, fmt.Errorf("%w: nil device pool", ErrInvalidOptions)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	controller, err := NewController(exec, opts, logger.Named("controller"))
	if err != nil {
		return nil, fmt.Errorf("failed to create controller: %w", err)
	}
	return &Upscaler{pool: pool, controller: controller, logger: logger}, nil
}

// Upscale produces an image with the guide's height and width and the
// source's channel count.
//
// When the controller fails after a device was acquired, the returned
// Result has a nil Image but still carries the run's Stats and Device.
//
// ctx bounds only the wait for a free device; once a device is acquired the
// run completes or fails on its own.
//
// Error cases:
//   - pixruntime.ErrInvalidParams: parameters fail validation
//   - ErrSizeRatio: guide is not k× the source with the same k ≥ 2 on both axes
//   - pixruntime.ErrAcquireTimeout: ctx done before a device was free
//   - pixruntime.ErrDevicePoolClosed: pool has been closed
//   - ErrTileFloor: out of memory even at the minimum tile size
//   - anything else the executor returned, wrapped in *SplitError
func (u *Upscaler) Upscale(ctx context.Context, source, guide *imaging.Image, params pixruntime.Params, mode imaging.SplitMode) (*Result, error) {
	// Step 1: Validate before waiting on the pool
	if err := pixruntime.ValidateParams(params); err != nil {
		return nil, err
	}
	if _, err := CheckSizeRatio(source, guide); err != nil {
		return nil, err
	}

	// Step 2: Acquire a device
	acquireStart := time.Now()
	dev, err := u.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire device: %w", err)
	}
	defer u.pool.Release(dev)
	dev.Reset()

	log := u.logger.With(zap.String("device", dev.Name()))
	estimate := zap.Skip()
	if est, ok := u.controller.exec.(pixruntime.MemoryEstimator); ok {
		need := est.EstimateBytes(source.Height, source.Width, guide.Height, guide.Width, guide.Channels)
		estimate = zap.Int64("estimated_bytes", need)
	}
	log.Info("upscale started",
		logging.ShapeField("source", source),
		logging.ShapeField("guide", guide),
		zap.Stringer("mode", mode),
		zap.Int("iterations", params.Iterations),
		estimate,
		zap.Int64("device_capacity", dev.Capacity()),
		zap.Duration("acquire_wait", time.Since(acquireStart)))

	// Step 3: Run the split controller
	out, stats, err := u.controller.RunWithStats(source, guide, params, mode, dev.Device)
	if err != nil {
		log.Error("upscale failed", zap.Object("stats", stats), zap.Error(err))
		return &Result{Stats: stats, Device: dev.Name()}, err
	}

	log.Info("upscale completed",
		zap.Object("stats", stats),
		logging.DeviceStatsField("device_stats", dev.Stats()))

	return &Result{Image: out, Stats: stats, Device: dev.Name()}, nil
}

// Close shuts down the device pool.
func (u *Upscaler) Close() error {
	return u.pool.Close()
}
