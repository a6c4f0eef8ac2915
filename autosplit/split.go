package autosplit

import "upscale_backend/imaging"

// SplitRegion halves r along its longer axis. When both sides are equal the
// rows are split (top/bottom). On odd sizes the first half gets the extra
// row or column. ok is false when r is a single pixel wide and tall.
func SplitRegion(r imaging.Region) (first, second imaging.Region, ok bool) {
	if r.Height >= r.Width {
		if r.Height < 2 {
			return r, imaging.Region{}, false
		}
		top := (r.Height + 1) / 2
		first = imaging.Rect(r.Row, r.Col, top, r.Width)
		second = imaging.Rect(r.Row+top, r.Col, r.Height-top, r.Width)
		return first, second, true
	}

	left := (r.Width + 1) / 2
	first = imaging.Rect(r.Row, r.Col, r.Height, left)
	second = imaging.Rect(r.Row, r.Col+left, r.Height, r.Width-left)
	return first, second, true
}

// AtFloor reports whether r must not be split further: its area is at or
// below minArea, or its longer side is a single pixel.
func AtFloor(r imaging.Region, minArea int) bool {
	return r.Area() <= minArea || max(r.Height, r.Width) <= 1
}

// Tile is a leaf of a Plan and the number of splits above it.
type Tile struct {
	Region imaging.Region
	Depth  int
}

// Plan returns the leaf regions produced by splitting r until every leaf
// has area at most maxArea or sits at the floor. Leaves are ordered
// top/left first, the order the controller visits them. A maxArea of 0
// leaves r whole.
func Plan(r imaging.Region, maxArea, minArea int) []Tile {
	return appendPlan(nil, r, maxArea, minArea, 0)
}

func appendPlan(tiles []Tile, r imaging.Region, maxArea, minArea, depth int) []Tile {
	if maxArea <= 0 || r.Area() <= maxArea || AtFloor(r, minArea) {
		return append(tiles, Tile{Region: r, Depth: depth})
	}
	a, b, ok := SplitRegion(r)
	if !ok {
		return append(tiles, Tile{Region: r, Depth: depth})
	}
	tiles = appendPlan(tiles, a, maxArea, minArea, depth+1)
	return appendPlan(tiles, b, maxArea, minArea, depth+1)
}
