package pixruntime

import (
	"fmt"
	"sync"
)

// Device is an accelerator with a fixed memory budget. Allocations are
// accounted in bytes; exceeding the budget fails with ErrOutOfMemory.
//
// A Device serves one top-level call at a time (see DevicePool), but its
// accounting is mutex-guarded so stats can be read from other goroutines.
type Device struct {
	mu       sync.Mutex
	name     string
	capacity int64
	used     int64
	peak     int64
	allocs   int64
	failures int64
}

// NewDevice creates a device with the given memory budget in bytes.
func NewDevice(name string, capacity int64) (*Device, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("%w: device capacity %d must be positive", ErrInvalidParams, capacity)
	}
	return &Device{name: name, capacity: capacity}, nil
}

// Buffer is one device allocation.
type Buffer struct {
	dev   *Device
	size  int64
	freed bool
	Data  []float64
}

// Alloc reserves room for n float64 samples.
func (d *Device) Alloc(n int) (*Buffer, error) {
	if n < 0 {
		return nil, fmt.Errorf("%w: negative allocation %d", ErrInvalidParams, n)
	}
	size := int64(n) * 8

	d.mu.Lock()
	if d.used+size > d.capacity {
		d.failures++
		used := d.used
		d.mu.Unlock()
		return nil, fmt.Errorf("%w: %s needs %d bytes, %d of %d in use",
			ErrOutOfMemory, d.name, size, used, d.capacity)
	}
	d.used += size
	d.allocs++
	if d.used > d.peak {
		d.peak = d.used
	}
	d.mu.Unlock()

	return &Buffer{dev: d, size: size, Data: make([]float64, n)}, nil
}

// Free returns the buffer's bytes to its device. Calling Free twice is a no-op.
func (b *Buffer) Free() {
	if b == nil || b.freed {
		return
	}
	b.freed = true
	b.Data = nil

	b.dev.mu.Lock()
	b.dev.used -= b.size
	b.dev.mu.Unlock()
}

// Size returns the allocation size in bytes.
func (b *Buffer) Size() int64 {
	return b.size
}

// Scope groups allocations so they can be freed together, typically with
// defer scope.Release() at the top of an executor.
type Scope struct {
	dev  *Device
	bufs []*Buffer
}

// Scope opens a new allocation scope on d.
func (d *Device) Scope() *Scope {
	return &Scope{dev: d}
}

// Alloc allocates through the scope's device and tracks the buffer.
func (s *Scope) Alloc(n int) ([]float64, error) {
	buf, err := s.dev.Alloc(n)
	if err != nil {
		return nil, err
	}
	s.bufs = append(s.bufs, buf)
	return buf.Data, nil
}

// Release frees every buffer allocated through the scope.
func (s *Scope) Release() {
	for _, b := range s.bufs {
		b.Free()
	}
	s.bufs = nil
}

// Reset forgets all outstanding allocations and clears the peak.
// Buffers still held by callers must not be freed afterwards.
func (d *Device) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.used = 0
	d.peak = 0
	d.allocs = 0
	d.failures = 0
}

// Name returns the device name.
func (d *Device) Name() string {
	return d.name
}

// Capacity returns the memory budget in bytes.
func (d *Device) Capacity() int64 {
	return d.capacity
}

// Used returns the bytes currently allocated.
func (d *Device) Used() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.used
}

// Peak returns the high-water mark since the last Reset.
func (d *Device) Peak() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.peak
}

// Stats returns a snapshot of the device counters.
func (d *Device) Stats() DeviceStats {
	d.mu.Lock()
	defer d.mu.Unlock()
	return DeviceStats{
		Name:        d.name,
		Capacity:    d.capacity,
		Used:        d.used,
		Peak:        d.peak,
		Allocations: d.allocs,
		Failures:    d.failures,
	}
}

// DeviceStats is a point-in-time view of a device's memory accounting.
type DeviceStats struct {
	Name        string
	Capacity    int64
	Used        int64
	Peak        int64
	Allocations int64
	Failures    int64
}
