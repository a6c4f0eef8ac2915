package shutdown

import (
	"os"
	"sync"
)

// SignalCounter remembers the first shutdown signal and calls onForce with
// the latest signal once forceAfter signals have arrived.
type SignalCounter struct {
	mu         sync.Mutex
	first      os.Signal
	count      int
	forceAfter int
	onForce    func(os.Signal)
}

// NewSignalCounter returns a counter that forces after forceAfter signals.
// onForce may be nil.
func NewSignalCounter(forceAfter int, onForce func(os.Signal)) *SignalCounter {
	return &SignalCounter{forceAfter: forceAfter, onForce: onForce}
}

// Record counts sig and returns the new total. onForce runs under the lock,
// so it should exit the process or return quickly.
func (s *SignalCounter) Record(sig os.Signal) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.count++
	if s.first == nil {
		s.first = sig
	}
	if s.count >= s.forceAfter && s.onForce != nil {
		s.onForce(sig)
	}
	return s.count
}

// First returns the first recorded signal, or nil.
func (s *SignalCounter) First() os.Signal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.first
}

// Count returns how many signals were recorded.
func (s *SignalCounter) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count
}
