package pixruntime

import (
	"context"
	"fmt"
	"sync"
)

// PooledDevice wraps a Device with pool management metadata.
type PooledDevice struct {
	*Device
	poolID int
	inUse  bool
}

// DevicePool hands out devices to top-level calls, one call per device.
// Devices are created lazily up to maxSize; when all are busy Acquire blocks
// until one is released or the caller's context is done.
type DevicePool struct {
	mu       sync.Mutex
	devices  chan *PooledDevice
	maxSize  int
	capacity int64
	closed   bool
	created  int
	nextID   int
}

// NewDevicePool creates a pool of at most maxSize devices, each with a
// memory budget of capacity bytes.
func NewDevicePool(maxSize int, capacity int64) (*DevicePool, error) {
	if maxSize <= 0 {
		return nil, fmt.Errorf("%w: pool size %d must be positive", ErrInvalidParams, maxSize)
	}
	if capacity <= 0 {
		return nil, fmt.Errorf("%w: device capacity %d must be positive", ErrInvalidParams, capacity)
	}

	return &DevicePool{
		devices:  make(chan *PooledDevice, maxSize),
		maxSize:  maxSize,
		capacity: capacity,
		nextID:   1,
	}, nil
}

// Acquire retrieves a device from the pool, respecting ctx's deadline.
//
// Returns:
//   - *PooledDevice: an idle device
//   - error: ErrDevicePoolClosed if the pool is closed, ErrAcquireTimeout if ctx is done first
func (p *DevicePool) Acquire(ctx context.Context) (*PooledDevice, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, ErrDevicePoolClosed
	}

	// Try an idle device first
	select {
	case pd := <-p.devices:
		pd.inUse = true
		p.mu.Unlock()
		return pd, nil
	default:
	}

	// Create a new device if under capacity
	if p.created < p.maxSize {
		poolID := p.nextID
		p.nextID++
		p.created++
		p.mu.Unlock()

		dev, err := NewDevice(fmt.Sprintf("device-%d", poolID), p.capacity)
		if err != nil {
			p.mu.Lock()
			p.created--
			p.mu.Unlock()
			return nil, err
		}

		return &PooledDevice{Device: dev, poolID: poolID, inUse: true}, nil
	}
	p.mu.Unlock()

	// Pool at capacity, wait for a release or cancellation
	select {
	case pd := <-p.devices:
		if pd == nil {
			return nil, ErrDevicePoolClosed
		}
		p.mu.Lock()
		if p.closed {
			p.mu.Unlock()
			return nil, ErrDevicePoolClosed
		}
		pd.inUse = true
		p.mu.Unlock()
		return pd, nil

	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %v", ErrAcquireTimeout, ctx.Err())
	}
}

// Release returns a device to the pool. Its allocations are reset.
// Passing nil is a safe no-op.
func (p *DevicePool) Release(pd *PooledDevice) {
	if pd == nil {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	pd.inUse = false
	pd.Reset()

	if p.closed {
		p.created--
		return
	}

	select {
	case p.devices <- pd:
	default:
		// More releases than acquires; drop the extra device
		p.created--
	}
}

// Close shuts down the pool. Idle devices are dropped and later Acquire
// calls return ErrDevicePoolClosed. Close is safe to call multiple times.
func (p *DevicePool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}

	p.closed = true
	close(p.devices)

	for pd := range p.devices {
		if pd != nil {
			p.created--
		}
	}

	return nil
}

// Size returns the number of idle devices.
func (p *DevicePool) Size() int {
	return len(p.devices)
}

// Created returns the number of live devices, idle or acquired.
func (p *DevicePool) Created() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.created
}

// MaxSize returns the maximum number of devices.
func (p *DevicePool) MaxSize() int {
	return p.maxSize
}

// Capacity returns the per-device memory budget in bytes.
func (p *DevicePool) Capacity() int64 {
	return p.capacity
}

// IsClosed returns whether the pool has been closed.
func (p *DevicePool) IsClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// ID returns the device's pool-assigned identifier.
func (pd *PooledDevice) ID() int {
	return pd.poolID
}
