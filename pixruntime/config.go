package pixruntime

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// RuntimeConfig holds configuration for tile execution.
type RuntimeConfig struct {
	// Device configuration
	DeviceMemoryMB int           `yaml:"device_memory_mb"` // Memory budget per device
	PoolSize       int           `yaml:"device_pool_size"` // Number of devices
	AcquireTimeout time.Duration `yaml:"acquire_timeout"`  // Wait limit for a free device

	// Execution defaults
	IterationsK  float64 `yaml:"iterations_k"`  // Iterations in thousands
	LearningRate float64 `yaml:"learning_rate"` // Gradient step size
}

// Default configuration values
const (
	DefaultDeviceMemoryMB        = 256
	DefaultPoolSize              = 1
	DefaultAcquireTimeoutSeconds = 30
)

// DefaultRuntimeConfig returns the built-in defaults.
func DefaultRuntimeConfig() *RuntimeConfig {
	return &RuntimeConfig{
		DeviceMemoryMB: DefaultDeviceMemoryMB,
		PoolSize:       DefaultPoolSize,
		AcquireTimeout: DefaultAcquireTimeoutSeconds * time.Second,
		IterationsK:    DefaultIterationsK,
		LearningRate:   DefaultLearningRate,
	}
}

// ApplyEnv overrides fields whose environment variables are set and valid.
// Invalid values leave the current setting in place.
func (c *RuntimeConfig) ApplyEnv() {
	c.DeviceMemoryMB = parsePositiveInt(os.Getenv("UPSCALE_DEVICE_MEMORY_MB"), c.DeviceMemoryMB)
	c.PoolSize = parsePositiveInt(os.Getenv("UPSCALE_DEVICE_POOL_SIZE"), c.PoolSize)
	c.AcquireTimeout = parseTimeout(os.Getenv("UPSCALE_ACQUIRE_TIMEOUT"), c.AcquireTimeout)
	c.IterationsK = parseIterationsK(os.Getenv("UPSCALE_ITERATIONS_K"), c.IterationsK)
	c.LearningRate = parseLearningRate(os.Getenv("UPSCALE_LEARNING_RATE"), c.LearningRate)
}

// Validate checks the configuration ranges.
func (c *RuntimeConfig) Validate() error {
	if c.DeviceMemoryMB <= 0 {
		return fmt.Errorf("%w: device memory %d MB must be positive", ErrInvalidParams, c.DeviceMemoryMB)
	}
	if c.PoolSize <= 0 {
		return fmt.Errorf("%w: device pool size %d must be positive", ErrInvalidParams, c.PoolSize)
	}
	if c.AcquireTimeout <= 0 {
		return fmt.Errorf("%w: acquire timeout %v must be positive", ErrInvalidParams, c.AcquireTimeout)
	}
	return ValidateParams(c.Params())
}

// DeviceBytes returns the per-device budget in bytes.
func (c *RuntimeConfig) DeviceBytes() int64 {
	return int64(c.DeviceMemoryMB) << 20
}

// Params returns execution parameters for the configured defaults.
func (c *RuntimeConfig) Params() Params {
	p := ParamsFromKilo(c.IterationsK)
	p.LearningRate = c.LearningRate
	return p
}

// parsePositiveInt parses a positive integer, returning def if empty or invalid.
func parsePositiveInt(s string, def int) int {
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || v <= 0 {
		return def
	}
	return v
}

// parseTimeout accepts a Go duration ("45s", "2m") or a plain number of seconds.
func parseTimeout(s string, def time.Duration) time.Duration {
	s = strings.TrimSpace(s)
	if s == "" {
		return def
	}
	if d, err := time.ParseDuration(s); err == nil && d > 0 {
		return d
	}
	seconds, err := strconv.Atoi(s)
	if err != nil || seconds <= 0 {
		return def
	}
	return time.Duration(seconds) * time.Second
}

// parseIterationsK parses the iteration slider value and checks its range.
func parseIterationsK(s string, def float64) float64 {
	if s == "" {
		return def
	}
	k, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || k < MinIterationsK || k > MaxIterationsK {
		return def
	}
	return k
}

// parseLearningRate parses and range-checks the learning rate.
func parseLearningRate(s string, def float64) float64 {
	if s == "" {
		return def
	}
	lr, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || lr <= 0 || lr > MaxLearningRate {
		return def
	}
	return lr
}
