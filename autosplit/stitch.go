package autosplit

import (
	"fmt"

	flatbush "github.com/bmharper/flatbush-go"

	"upscale_backend/imaging"
)

// PartialResult is one tile's output and where it belongs in the output image.
type PartialResult struct {
	Image  *imaging.Image
	Region imaging.Region // output-space placement
}

// Merge assembles partial results into a height × width × channels image.
// The partials must tile the output exactly: every region inside the bounds,
// every buffer matching its region, no two regions sharing a pixel, and the
// areas summing to the output area. Anything else fails with ErrInvalidTiling.
//
// A single partial covering the whole output is returned without copying.
func Merge(partials []PartialResult, height, width, channels int) (*imaging.Image, error) {
	if height <= 0 || width <= 0 || channels <= 0 {
		return nil, fmt.Errorf("%w: output shape %dx%dx%d", ErrInvalidTiling, height, width, channels)
	}
	if len(partials) == 0 {
		return nil, fmt.Errorf("%w: no partial results", ErrInvalidTiling)
	}

	total := 0
	for i, p := range partials {
		if p.Image == nil {
			return nil, fmt.Errorf("%w: partial %d has no image", ErrInvalidTiling, i)
		}
		if !p.Region.Within(height, width) {
			return nil, fmt.Errorf("%w: partial %d region %s outside %dx%d",
				ErrInvalidTiling, i, p.Region, height, width)
		}
		if p.Image.Height != p.Region.Height || p.Image.Width != p.Region.Width || p.Image.Channels != channels {
			return nil, fmt.Errorf("%w: partial %d is %dx%dx%d for region %s with %d channels",
				ErrInvalidTiling, i, p.Image.Height, p.Image.Width, p.Image.Channels, p.Region, channels)
		}
		total += p.Region.Area()
	}

	if err := checkDisjoint(partials); err != nil {
		return nil, err
	}
	if total != height*width {
		return nil, fmt.Errorf("%w: partials cover %d of %d pixels", ErrInvalidTiling, total, height*width)
	}

	if len(partials) == 1 {
		return partials[0].Image, nil
	}

	out := imaging.MustNew(height, width, channels)
	for _, p := range partials {
		if err := out.Paste(p.Region, p.Image); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidTiling, err)
		}
	}
	return out, nil
}

// checkDisjoint fails if any two regions share a pixel. Candidates come from
// a spatial index; touching edges are reported by the index and filtered by
// the exact test.
func checkDisjoint(partials []PartialResult) error {
	if len(partials) < 2 {
		return nil
	}

	fb := flatbush.NewFlatbush[int32]()
	fb.Reserve(len(partials))
	for _, p := range partials {
		r := p.Region
		fb.Add(int32(r.Col), int32(r.Row), int32(r.Right()), int32(r.Bottom()))
	}
	fb.Finish()

	nearby := []int{}
	for i, p := range partials {
		r := p.Region
		nearby = fb.SearchFast(int32(r.Col), int32(r.Row), int32(r.Right()), int32(r.Bottom()), nearby)
		for _, j := range nearby {
			if j <= i {
				continue
			}
			if r.Overlaps(partials[j].Region) {
				return fmt.Errorf("%w: partial %d region %s overlaps partial %d region %s",
					ErrInvalidTiling, i, r, j, partials[j].Region)
			}
		}
	}
	return nil
}
