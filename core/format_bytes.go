package core

import (
	"fmt"

	"github.com/dustin/go-humanize"
)

// FormatBytes renders a byte count in binary units, e.g. "1.5 MiB".
// Negative values are treated as 0.
func FormatBytes(bytes int64) string {
	if bytes < 0 {
		bytes = 0
	}
	return humanize.IBytes(uint64(bytes))
}

// ParseBytes parses a size such as "256MiB", "1.5 GB" or "4096".
func ParseBytes(s string) (int64, error) {
	n, err := humanize.ParseBytes(s)
	if err != nil {
		return 0, fmt.Errorf("invalid size %q: %w", s, err)
	}
	if n > 1<<62 {
		return 0, fmt.Errorf("invalid size %q: too large", s)
	}
	return int64(n), nil
}

// FormatShape renders image dimensions as "HxWxC" with the pixel count,
// e.g. "1,024x2,048x3 (2.1 Mpx)".
func FormatShape(height, width, channels int) string {
	dims := fmt.Sprintf("%sx%sx%d", humanize.Comma(int64(height)), humanize.Comma(int64(width)), channels)
	value, prefix := humanize.ComputeSI(float64(height) * float64(width))
	if prefix == "" {
		return fmt.Sprintf("%s (%.0f px)", dims, value)
	}
	return fmt.Sprintf("%s (%.1f %spx)", dims, value, prefix)
}
