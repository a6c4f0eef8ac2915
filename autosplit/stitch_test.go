package autosplit

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"upscale_backend/imaging"
)

// partialsFor cuts img into partials along the given regions.
func partialsFor(t *testing.T, img *imaging.Image, regions ...imaging.Region) []PartialResult {
	t.Helper()
	out := make([]PartialResult, 0, len(regions))
	for _, r := range regions {
		tile, err := img.Crop(r)
		require.NoError(t, err)
		out = append(out, PartialResult{Image: tile, Region: r})
	}
	return out
}

func TestMerge_ReassemblesTiles(t *testing.T) {
	img := testImage(6, 10, 3, 1)
	leaves := tileRegions(Plan(img.Bounds(), 8, 1))
	require.Greater(t, len(leaves), 4)

	got, err := Merge(partialsFor(t, img, leaves...), 6, 10, 3)
	require.NoError(t, err)
	require.True(t, img.Equal(got))
}

func TestMerge_SinglePartialReturnedAsIs(t *testing.T) {
	img := testImage(4, 4, 1, 2)
	got, err := Merge([]PartialResult{{Image: img, Region: img.Bounds()}}, 4, 4, 1)
	require.NoError(t, err)
	require.Same(t, img, got)
}

func TestMerge_Rejects(t *testing.T) {
	img := testImage(2, 4, 2, 3)
	tile := func(r imaging.Region) PartialResult {
		c, err := img.Crop(r)
		require.NoError(t, err)
		return PartialResult{Image: c, Region: r}
	}

	tests := []struct {
		name     string
		partials []PartialResult
		h, w, c  int
	}{
		{
			name: "no partials",
			h:    2, w: 4, c: 2,
		},
		{
			name:     "bad output shape",
			partials: []PartialResult{tile(imaging.Rect(0, 0, 2, 4))},
			h:        0, w: 4, c: 2,
		},
		{
			name:     "gap",
			partials: []PartialResult{tile(imaging.Rect(0, 0, 2, 2)), tile(imaging.Rect(0, 2, 2, 1))},
			h:        2, w: 4, c: 2,
		},
		{
			name:     "overlap",
			partials: []PartialResult{tile(imaging.Rect(0, 0, 2, 2)), tile(imaging.Rect(0, 1, 2, 2))},
			h:        2, w: 3, c: 2,
		},
		{
			name: "overlap with matching area",
			partials: []PartialResult{
				tile(imaging.Rect(0, 0, 2, 2)), tile(imaging.Rect(0, 1, 1, 2)), tile(imaging.Rect(1, 2, 1, 2)),
			},
			h: 2, w: 4, c: 2,
		},
		{
			name:     "outside bounds",
			partials: []PartialResult{tile(imaging.Rect(0, 0, 2, 4))},
			h:        2, w: 3, c: 2,
		},
		{
			name: "buffer does not match region",
			partials: []PartialResult{
				{Image: imaging.MustNew(2, 2, 2), Region: imaging.Rect(0, 0, 2, 4)},
			},
			h: 2, w: 4, c: 2,
		},
		{
			name:     "channel mismatch",
			partials: []PartialResult{tile(imaging.Rect(0, 0, 2, 4))},
			h:        2, w: 4, c: 3,
		},
		{
			name:     "nil image",
			partials: []PartialResult{{Region: imaging.Rect(0, 0, 2, 4)}},
			h:        2, w: 4, c: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := Merge(tt.partials, tt.h, tt.w, tt.c)
			require.Nil(t, out)
			require.True(t, errors.Is(err, ErrInvalidTiling), "got %v", err)
		})
	}
}

func TestMerge_TouchingEdgesAreNotOverlaps(t *testing.T) {
	img := testImage(3, 3, 1, 4)
	got, err := Merge(partialsFor(t, img,
		imaging.Rect(0, 0, 2, 2),
		imaging.Rect(0, 2, 2, 1),
		imaging.Rect(2, 0, 1, 3),
	), 3, 3, 1)
	require.NoError(t, err)
	require.True(t, img.Equal(got))
}

func TestMerge_FindsOverlapAmongManyTiles(t *testing.T) {
	img := testImage(16, 16, 1, 5)
	var regions []imaging.Region
	for r := 0; r < 16; r += 2 {
		for c := 0; c < 16; c += 2 {
			regions = append(regions, imaging.Rect(r, c, 2, 2))
		}
	}
	require.Len(t, regions, 64)

	got, err := Merge(partialsFor(t, img, regions...), 16, 16, 1)
	require.NoError(t, err)
	require.True(t, img.Equal(got))

	// Shift the last tile up a row: same total area, but it now overlaps
	// the tile above it.
	regions[63] = imaging.Rect(13, 14, 2, 2)
	out, err := Merge(partialsFor(t, img, regions...), 16, 16, 1)
	require.Nil(t, out)
	require.ErrorIs(t, err, ErrInvalidTiling)
	require.ErrorContains(t, err, "overlaps")
}
