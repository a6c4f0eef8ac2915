package imaging

import (
	"errors"
	"fmt"
	"strings"

	"github.com/lucasb-eyer/go-colorful"
)

// ErrUnknownSplitMode is returned when parsing an unrecognized split mode name.
var ErrUnknownSplitMode = errors.New("imaging: unknown split mode")

// SplitMode selects the working color space used while tiles are processed.
type SplitMode int

const (
	// SplitModeRGB processes channels as they are.
	SplitModeRGB SplitMode = iota + 1
	// SplitModeLAB processes the first three channels as CIE L*a*b*.
	SplitModeLAB
)

// DefaultSplitMode is Lab, which keeps luminance detail apart from chroma.
const DefaultSplitMode = SplitModeLAB

// ParseSplitMode accepts "rgb" or "lab" (case-insensitive; "l*a*b" also works).
func ParseSplitMode(s string) (SplitMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "rgb":
		return SplitModeRGB, nil
	case "lab", "l*a*b", "l*a*b*":
		return SplitModeLAB, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownSplitMode, s)
	}
}

func (m SplitMode) String() string {
	switch m {
	case SplitModeRGB:
		return "rgb"
	case SplitModeLAB:
		return "lab"
	default:
		return fmt.Sprintf("SplitMode(%d)", int(m))
	}
}

// Valid reports whether m is one of the defined modes.
func (m SplitMode) Valid() bool {
	return m == SplitModeRGB || m == SplitModeLAB
}

// Forward converts img into the working color space. The input is not modified.
func (m SplitMode) Forward(img *Image) *Image {
	out := img.Clone()
	if m != SplitModeLAB || img.Channels < 3 {
		return out
	}
	for i := 0; i < len(out.Pix); i += out.Channels {
		px := out.Pix[i : i+3]
		px[0], px[1], px[2] = rgbToLab(px[0], px[1], px[2])
	}
	return out
}

// Inverse converts img from the working color space back. The input is not modified.
func (m SplitMode) Inverse(img *Image) *Image {
	out := img.Clone()
	if m != SplitModeLAB || img.Channels < 3 {
		return out
	}
	for i := 0; i < len(out.Pix); i += out.Channels {
		px := out.Pix[i : i+3]
		px[0], px[1], px[2] = labToRGB(px[0], px[1], px[2])
	}
	return out
}

// go-colorful keeps L in [0,1]; the working space uses the usual [0,100].
const labScale = 100

// rgbToLab converts sRGB in [0,1] (D65) to L* in [0,100] and a*, b* around zero.
// Values outside [0,1] are converted without clamping.
func rgbToLab(r, g, b float64) (float64, float64, float64) {
	l, a, bb := colorful.Color{R: r, G: g, B: b}.Lab()
	return l * labScale, a * labScale, bb * labScale
}

func labToRGB(l, a, bb float64) (float64, float64, float64) {
	c := colorful.Lab(l/labScale, a/labScale, bb/labScale)
	return c.R, c.G, c.B
}
