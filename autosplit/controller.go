package autosplit

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"upscale_backend/imaging"
	"upscale_backend/logging"
	"upscale_backend/pixruntime"
)

// Controller runs an Executor over a source/guide pair, splitting the work
// into smaller tiles whenever the executor runs out of device memory.
//
// Regions are split in source space, so every guide tile is exactly k times
// its source tile. Leaves are visited top/left first and stitched once at
// the end. The controller holds no per-run state and may be reused.
type Controller struct {
	exec   pixruntime.Executor
	opts   Options
	logger *zap.Logger
}

// NewController creates a controller. A nil logger disables logging.
func NewController(exec pixruntime.Executor, opts Options, logger *zap.Logger) (*Controller, error) {
	if exec == nil {
		return nil, fmt.Errorf("%w: nil executor", ErrInvalidOptions)
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controller{exec: exec, opts: opts, logger: logger}, nil
}

// Options returns the controller's options.
func (c *Controller) Options() Options {
	return c.opts
}

// run carries the per-call state through the recursion.
type run struct {
	source   *imaging.Image // working color space
	guide    *imaging.Image // working color space
	k        int
	params   pixruntime.Params
	dev      *pixruntime.Device
	partials []PartialResult
	stats    Stats
}

// Run upscales source using guide and returns an image with the guide's
// height and width and the source's channel count.
func (c *Controller) Run(source, guide *imaging.Image, params pixruntime.Params, mode imaging.SplitMode, dev *pixruntime.Device) (*imaging.Image, error) {
	out, _, err := c.RunWithStats(source, guide, params, mode, dev)
	return out, err
}

// RunWithStats is Run that also reports what the split tree looked like.
// Stats are filled in even when the run fails.
func (c *Controller) RunWithStats(source, guide *imaging.Image, params pixruntime.Params, mode imaging.SplitMode, dev *pixruntime.Device) (*imaging.Image, Stats, error) {
	start := time.Now()

	k, err := CheckSizeRatio(source, guide)
	if err != nil {
		return nil, Stats{}, err
	}
	if !mode.Valid() {
		return nil, Stats{}, fmt.Errorf("%w: %v", imaging.ErrUnknownSplitMode, mode)
	}
	if dev == nil {
		return nil, Stats{}, fmt.Errorf("%w: nil device", pixruntime.ErrInvalidParams)
	}

	rs := &run{
		source: mode.Forward(source),
		guide:  mode.Forward(guide),
		k:      k,
		params: params,
		dev:    dev,
	}

	tiles := Plan(source.Bounds(), c.opts.MaxTileArea, c.opts.MinTileArea)
	rs.stats.PreSplits = len(tiles) - 1
	if rs.stats.PreSplits > 0 {
		c.logger.Debug("pre-split over max tile area",
			zap.Int("tiles", len(tiles)),
			zap.Int("max_tile_area", c.opts.MaxTileArea))
	}
	for _, tile := range tiles {
		if err = c.solve(rs, tile.Region, tile.Depth); err != nil {
			break
		}
	}
	rs.stats.PeakBytes = dev.Peak()
	rs.stats.Duration = time.Since(start)
	if err != nil {
		return nil, rs.stats, err
	}

	merged, err := Merge(rs.partials, guide.Height, guide.Width, source.Channels)
	if err != nil {
		return nil, rs.stats, err
	}
	return mode.Inverse(merged), rs.stats, nil
}

// solve processes one source-space region, splitting on out-of-memory.
func (c *Controller) solve(rs *run, r imaging.Region, depth int) error {
	if depth > c.opts.MaxDepth {
		return &SplitError{Op: "split", Region: r, Depth: depth, Err: ErrMaxDepth}
	}
	rs.stats.MaxDepth = max(rs.stats.MaxDepth, depth)

	rs.stats.Attempts++
	err := c.attempt(rs, r, depth)
	if err == nil {
		rs.stats.Tiles++
		return nil
	}

	if _, ok := err.(*SplitError); ok {
		return err
	}
	if !pixruntime.IsOutOfMemory(err) {
		return &SplitError{Op: "execute", Region: r, Depth: depth, Err: err}
	}

	rs.stats.OutOfMemory++
	if AtFloor(r, c.opts.MinTileArea) {
		c.logger.Warn("out of memory at minimum tile size",
			logging.RegionField("region", r),
			zap.Int("depth", depth),
			zap.Error(err))
		return &SplitError{Op: "execute", Region: r, Depth: depth, Err: fmt.Errorf("%w: %w", ErrTileFloor, err)}
	}

	rs.stats.Splits++
	c.logger.Debug("out of memory, splitting tile",
		logging.RegionField("region", r),
		zap.Int("depth", depth),
		zap.Int64("device_used", rs.dev.Used()))
	return c.descend(rs, r, depth)
}

func (c *Controller) descend(rs *run, r imaging.Region, depth int) error {
	first, second, ok := SplitRegion(r)
	if !ok {
		return &SplitError{Op: "split", Region: r, Depth: depth, Err: ErrTileFloor}
	}
	if err := c.solve(rs, first, depth+1); err != nil {
		return err
	}
	return c.solve(rs, second, depth+1)
}

// attempt runs the executor on r plus its overlap margin and records the
// result cropped back to r.
func (c *Controller) attempt(rs *run, r imaging.Region, depth int) error {
	in := r.Expand(c.opts.Overlap, rs.source.Height, rs.source.Width)

	srcTile, err := rs.source.Crop(in)
	if err != nil {
		return &SplitError{Op: "crop", Region: in, Depth: depth, Err: err}
	}
	guideTile, err := rs.guide.Crop(in.Scale(rs.k))
	if err != nil {
		return &SplitError{Op: "crop", Region: in, Depth: depth, Err: err}
	}

	out, err := c.exec.Execute(rs.dev, srcTile, guideTile, rs.params)
	if err != nil {
		return err
	}

	want := in.Scale(rs.k)
	if out == nil || out.Height != want.Height || out.Width != want.Width || out.Channels != rs.source.Channels {
		got := "nil"
		if out != nil {
			got = fmt.Sprintf("%dx%dx%d", out.Height, out.Width, out.Channels)
		}
		return &SplitError{Op: "execute", Region: r, Depth: depth, Err: fmt.Errorf("%w: executor returned %s, want %dx%dx%d",
			ErrInvalidTiling, got, want.Height, want.Width, rs.source.Channels)}
	}

	if in != r {
		inner := r.Translate(-in.Row, -in.Col).Scale(rs.k)
		if out, err = out.Crop(inner); err != nil {
			return &SplitError{Op: "crop", Region: r, Depth: depth, Err: err}
		}
	}

	rs.partials = append(rs.partials, PartialResult{Image: out, Region: r.Scale(rs.k)})
	return nil
}

// CheckSizeRatio returns k when guide is exactly k times source on both axes
// with k ≥ 2, and ErrSizeRatio otherwise.
func CheckSizeRatio(source, guide *imaging.Image) (int, error) {
	if err := source.Validate(); err != nil {
		return 0, fmt.Errorf("source: %w", err)
	}
	if err := guide.Validate(); err != nil {
		return 0, fmt.Errorf("guide: %w", err)
	}
	if guide.Height%source.Height != 0 || guide.Width%source.Width != 0 {
		return 0, fmt.Errorf("%w: guide %dx%d is not an integer multiple of source %dx%d",
			ErrSizeRatio, guide.Height, guide.Width, source.Height, source.Width)
	}
	kh, kw := guide.Height/source.Height, guide.Width/source.Width
	if kh != kw {
		return 0, fmt.Errorf("%w: guide is %dx taller but %dx wider than source", ErrSizeRatio, kh, kw)
	}
	if kh < 2 {
		return 0, fmt.Errorf("%w: guide must be larger than source, got %dx", ErrSizeRatio, kh)
	}
	return kh, nil
}
