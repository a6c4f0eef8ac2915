package autosplit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	"upscale_backend/imaging"
	"upscale_backend/pixruntime"
)

func newTestPool(t *testing.T, size int, capacity int64) *pixruntime.DevicePool {
	t.Helper()
	pool, err := pixruntime.NewDevicePool(size, capacity)
	require.NoError(t, err)
	return pool
}

func TestUpscaler_Upscale(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	pool := newTestPool(t, 1, bigDevice)
	u, err := NewUpscaler(pool, pixruntime.NewGuidedLinearExecutor(), DefaultOptions(), zap.New(core))
	require.NoError(t, err)
	defer u.Close()

	res, err := u.Upscale(context.Background(), testImage(16, 16, 3, 1), testImage(64, 64, 3, 2), testParams(), imaging.SplitModeLAB)
	require.NoError(t, err)
	h, w, c := res.Image.Shape()
	require.Equal(t, []int{64, 64, 3}, []int{h, w, c})
	require.Equal(t, "device-1", res.Device)
	require.Equal(t, 1, res.Stats.Tiles)
	require.Greater(t, res.Stats.PeakBytes, int64(0))

	started := logs.FilterMessage("upscale started").All()
	require.Len(t, started, 1)
	fields := started[0].ContextMap()
	want := pixruntime.NewGuidedLinearExecutor().EstimateBytes(16, 16, 64, 64, 3)
	require.EqualValues(t, want, fields["estimated_bytes"])
	require.EqualValues(t, int64(bigDevice), fields["device_capacity"])

	done := logs.FilterMessage("upscale completed").All()
	require.Len(t, done, 1)
	stats, ok := done[0].ContextMap()["stats"].(map[string]interface{})
	require.True(t, ok, "stats should log as an object")
	require.EqualValues(t, 1, stats["tiles"])

	// Device is back in the pool with its memory released
	require.Equal(t, 1, pool.Size())
}

func TestUpscaler_SplitsOnSmallDevice(t *testing.T) {
	exec := pixruntime.NewGuidedLinearExecutor()
	capacity := exec.EstimateBytes(8, 8, 32, 32, 3)
	pool := newTestPool(t, 1, capacity)
	u, err := NewUpscaler(pool, exec, DefaultOptions(), zaptest.NewLogger(t))
	require.NoError(t, err)

	res, err := u.Upscale(context.Background(), testImage(16, 16, 3, 1), testImage(64, 64, 3, 2), testParams(), imaging.SplitModeRGB)
	require.NoError(t, err)
	require.Equal(t, 4, res.Stats.Tiles)
	require.LessOrEqual(t, res.Stats.PeakBytes, capacity)
}

func TestUpscaler_ValidatesBeforeAcquire(t *testing.T) {
	pool := newTestPool(t, 1, bigDevice)
	u, err := NewUpscaler(pool, &blendExecutor{}, testOptions(), zaptest.NewLogger(t))
	require.NoError(t, err)

	bad := testParams()
	bad.Iterations = 1
	_, err = u.Upscale(context.Background(), testImage(4, 4, 3, 1), testImage(8, 8, 3, 2), bad, imaging.SplitModeRGB)
	require.ErrorIs(t, err, pixruntime.ErrInvalidParams)

	_, err = u.Upscale(context.Background(), testImage(4, 4, 3, 1), testImage(8, 12, 3, 2), testParams(), imaging.SplitModeRGB)
	require.ErrorIs(t, err, ErrSizeRatio)

	require.Zero(t, pool.Created(), "no device should be created for rejected calls")
}

func TestUpscaler_AcquireTimeout(t *testing.T) {
	pool := newTestPool(t, 1, bigDevice)
	u, err := NewUpscaler(pool, &blendExecutor{}, testOptions(), zaptest.NewLogger(t))
	require.NoError(t, err)

	held, err := pool.Acquire(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = u.Upscale(ctx, testImage(4, 4, 3, 1), testImage(8, 8, 3, 2), testParams(), imaging.SplitModeRGB)
	require.ErrorIs(t, err, pixruntime.ErrAcquireTimeout)

	pool.Release(held)
	_, err = u.Upscale(context.Background(), testImage(4, 4, 3, 1), testImage(8, 8, 3, 2), testParams(), imaging.SplitModeRGB)
	require.NoError(t, err)
}

func TestUpscaler_Closed(t *testing.T) {
	u, err := NewUpscaler(newTestPool(t, 1, bigDevice), &blendExecutor{}, testOptions(), nil)
	require.NoError(t, err)
	require.NoError(t, u.Close())

	_, err = u.Upscale(context.Background(), testImage(4, 4, 3, 1), testImage(8, 8, 3, 2), testParams(), imaging.SplitModeRGB)
	require.ErrorIs(t, err, pixruntime.ErrDevicePoolClosed)
}

func TestUpscaler_FailureLeavesDeviceClean(t *testing.T) {
	pool := newTestPool(t, 1, bigDevice)
	u, err := NewUpscaler(pool, &alwaysOOM{}, DefaultOptions(), zaptest.NewLogger(t))
	require.NoError(t, err)

	_, err = u.Upscale(context.Background(), testImage(8, 8, 3, 1), testImage(16, 16, 3, 2), testParams(), imaging.SplitModeRGB)
	require.ErrorIs(t, err, ErrTileFloor)

	dev, err := pool.Acquire(context.Background())
	require.NoError(t, err)
	require.Zero(t, dev.Used())
	require.Zero(t, dev.Stats().Failures)
	pool.Release(dev)
}

func TestUpscaler_FailureKeepsStats(t *testing.T) {
	u, err := NewUpscaler(newTestPool(t, 1, bigDevice), &alwaysOOM{}, DefaultOptions(), zaptest.NewLogger(t))
	require.NoError(t, err)
	defer u.Close()

	// 8x8 -> 4x8 -> 4x4, which is the floor
	res, err := u.Upscale(context.Background(), testImage(8, 8, 3, 1), testImage(16, 16, 3, 2), testParams(), imaging.SplitModeRGB)
	require.ErrorIs(t, err, ErrTileFloor)
	require.NotNil(t, res)
	require.Nil(t, res.Image)
	require.Equal(t, "device-1", res.Device)
	require.Equal(t, 3, res.Stats.Attempts)
	require.Equal(t, 3, res.Stats.OutOfMemory)
	require.Equal(t, 2, res.Stats.Splits)
	require.Equal(t, 2, res.Stats.MaxDepth)
	require.Zero(t, res.Stats.Tiles)
}

func TestUpscaler_ConcurrentCalls(t *testing.T) {
	pool := newTestPool(t, 2, bigDevice)
	u, err := NewUpscaler(pool, &blendExecutor{maxArea: 16}, testOptions(), zaptest.NewLogger(t))
	require.NoError(t, err)

	source := testImage(8, 8, 3, 1)
	guide := testImage(16, 16, 3, 2)
	want, err := newTestController(t, &blendExecutor{}, testOptions()).
		Run(source, guide, testParams(), imaging.SplitModeLAB, newTestDevice(bigDevice))
	require.NoError(t, err)

	const calls = 6
	results := make([]*Result, calls)
	errs := make([]error, calls)
	var wg sync.WaitGroup
	for i := 0; i < calls; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = u.Upscale(context.Background(), source, guide, testParams(), imaging.SplitModeLAB)
		}(i)
	}
	wg.Wait()

	for i := 0; i < calls; i++ {
		require.NoError(t, errs[i])
		require.True(t, want.Equal(results[i].Image))
	}
	require.LessOrEqual(t, pool.Created(), 2)
}

func TestNewUpscaler_Validation(t *testing.T) {
	_, err := NewUpscaler(nil, &blendExecutor{}, DefaultOptions(), nil)
	require.ErrorIs(t, err, ErrInvalidOptions)

	_, err = NewUpscaler(newTestPool(t, 1, bigDevice), nil, DefaultOptions(), nil)
	require.ErrorIs(t, err, ErrInvalidOptions)
}
