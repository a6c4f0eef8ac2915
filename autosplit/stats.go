package autosplit

import (
	"time"

	"go.uber.org/zap/zapcore"
)

// Stats summarizes one controller run.
// Implements zapcore.ObjectMarshaler for structured logging.
type Stats struct {
	Attempts    int           // Executor calls
	OutOfMemory int           // Attempts that ran out of memory
	Splits      int           // Splits after an out-of-memory failure
	PreSplits   int           // Splits forced by MaxTileArea
	Tiles       int           // Successful leaf tiles
	MaxDepth    int           // Deepest recursion level reached
	PeakBytes   int64         // Device high-water mark
	Duration    time.Duration // Wall time of the run
}

// MarshalLogObject implements zapcore.ObjectMarshaler.
func (s Stats) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddInt("attempts", s.Attempts)
	enc.AddInt("out_of_memory", s.OutOfMemory)
	enc.AddInt("splits", s.Splits)
	enc.AddInt("pre_splits", s.PreSplits)
	enc.AddInt("tiles", s.Tiles)
	enc.AddInt("max_depth", s.MaxDepth)
	enc.AddInt64("peak_bytes", s.PeakBytes)
	enc.AddDuration("duration", s.Duration)
	return nil
}
