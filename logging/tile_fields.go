package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"upscale_backend/imaging"
	"upscale_backend/pixruntime"
)

type regionObject imaging.Region

func (r regionObject) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddInt("row", r.Row)
	enc.AddInt("col", r.Col)
	enc.AddInt("height", r.Height)
	enc.AddInt("width", r.Width)
	return nil
}

// RegionField logs a region as {row, col, height, width}.
func RegionField(key string, r imaging.Region) zap.Field {
	return zap.Object(key, regionObject(r))
}

type shapeObject struct {
	height, width, channels int
}

func (s shapeObject) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddInt("height", s.height)
	enc.AddInt("width", s.width)
	enc.AddInt("channels", s.channels)
	return nil
}

// ShapeField logs an image's dimensions. A nil image logs as skipped.
func ShapeField(key string, img *imaging.Image) zap.Field {
	if img == nil {
		return zap.Skip()
	}
	return zap.Object(key, shapeObject{img.Height, img.Width, img.Channels})
}

type deviceStatsObject pixruntime.DeviceStats

func (d deviceStatsObject) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddString("name", d.Name)
	enc.AddInt64("capacity_bytes", d.Capacity)
	enc.AddInt64("used_bytes", d.Used)
	enc.AddInt64("peak_bytes", d.Peak)
	enc.AddInt64("allocations", d.Allocations)
	enc.AddInt64("failures", d.Failures)
	return nil
}

// DeviceStatsField logs a device memory snapshot.
func DeviceStatsField(key string, s pixruntime.DeviceStats) zap.Field {
	return zap.Object(key, deviceStatsObject(s))
}
