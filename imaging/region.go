package imaging

import "fmt"

// Region is a rectangle inside a parent image: top-left offset plus size.
type Region struct {
	Row    int
	Col    int
	Height int
	Width  int
}

// Rect builds a Region.
func Rect(row, col, height, width int) Region {
	return Region{Row: row, Col: col, Height: height, Width: width}
}

// Area in pixels.
func (r Region) Area() int {
	return r.Height * r.Width
}

// Empty reports a region with no pixels.
func (r Region) Empty() bool {
	return r.Height <= 0 || r.Width <= 0
}

// Bottom is the exclusive end row.
func (r Region) Bottom() int {
	return r.Row + r.Height
}

// Right is the exclusive end column.
func (r Region) Right() int {
	return r.Col + r.Width
}

// Within reports whether r is non-empty and fully inside an image of the given size.
func (r Region) Within(height, width int) bool {
	return !r.Empty() && r.Row >= 0 && r.Col >= 0 && r.Bottom() <= height && r.Right() <= width
}

// Contains reports whether o lies fully inside r.
func (r Region) Contains(o Region) bool {
	return !o.Empty() && o.Row >= r.Row && o.Col >= r.Col && o.Bottom() <= r.Bottom() && o.Right() <= r.Right()
}

// Intersect returns the common part of r and o. The result is Empty when they
// do not overlap.
func (r Region) Intersect(o Region) Region {
	row := max(r.Row, o.Row)
	col := max(r.Col, o.Col)
	bottom := min(r.Bottom(), o.Bottom())
	right := min(r.Right(), o.Right())
	if bottom <= row || right <= col {
		return Region{}
	}
	return Region{Row: row, Col: col, Height: bottom - row, Width: right - col}
}

// Overlaps reports whether r and o share at least one pixel. Touching edges do not count.
func (r Region) Overlaps(o Region) bool {
	return !r.Intersect(o).Empty()
}

// Scale maps a region by an integer factor, e.g. from source to guide space.
func (r Region) Scale(k int) Region {
	return Region{Row: r.Row * k, Col: r.Col * k, Height: r.Height * k, Width: r.Width * k}
}

// Translate shifts the region by the given offset.
func (r Region) Translate(dRow, dCol int) Region {
	r.Row += dRow
	r.Col += dCol
	return r
}

// Expand grows the region by margin on every side, clipped to a height × width parent.
func (r Region) Expand(margin, height, width int) Region {
	if margin <= 0 {
		return r
	}
	row := max(0, r.Row-margin)
	col := max(0, r.Col-margin)
	bottom := min(height, r.Bottom()+margin)
	right := min(width, r.Right()+margin)
	return Region{Row: row, Col: col, Height: bottom - row, Width: right - col}
}

func (r Region) String() string {
	return fmt.Sprintf("[%d,%d %dx%d]", r.Row, r.Col, r.Height, r.Width)
}
