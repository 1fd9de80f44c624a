package director

// Layout geometry in virtual pixels. The top tier fills the left two thirds
// of the viewport with tall rows; everyone else stacks in the right column.
const (
	headerHeight   = 96
	columnGap      = 32
	topRowHeight   = 264
	topScoreInset  = 32
	topScoreHeight = 200
	restRowHeight  = 56
	restRowGap     = 24
	restScoreWidth = 160
)

// Rect is an axis-aligned box in virtual pixels.
type Rect struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

// Center returns the midpoint of r.
func (r Rect) Center() Point {
	return Point{X: r.X + r.W/2, Y: r.Y + r.H/2}
}

// Point is a position; celebration origins use the 0..1 range.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Placement is where a rank is drawn.
type Placement struct {
	Row   Rect
	Score Rect
	Top   bool
}

// Layout maps ranks to placements for a fixed viewport.
type Layout struct {
	Width  float64
	Height float64
	TopN   int
}

// NewLayout returns a layout for a width x height viewport.
func NewLayout(width, height float64, topN int) Layout {
	if topN < 1 {
		topN = 1
	}
	return Layout{Width: width, Height: height, TopN: topN}
}

func (l Layout) topWidth() float64 { return l.Width * 8 / 12 }

// Place returns the placement of rank. Ranks past the viewport keep stacking
// below it.
func (l Layout) Place(rank int) Placement {
	if rank < l.TopN {
		row := Rect{X: 0, Y: headerHeight + float64(rank)*topRowHeight, W: l.topWidth(), H: topRowHeight}
		score := Rect{X: row.X, Y: row.Y + topScoreInset, W: row.W * 3 / 4, H: topScoreHeight}
		return Placement{Row: row, Score: score, Top: true}
	}

	i := float64(rank - l.TopN)
	x := l.topWidth() + columnGap
	row := Rect{X: x, Y: headerHeight + i*(restRowHeight+restRowGap), W: l.Width - x, H: restRowHeight}
	score := Rect{X: row.X, Y: row.Y, W: restScoreWidth, H: restRowHeight}
	return Placement{Row: row, Score: score}
}

// Normalize maps p into the 0..1 viewport space.
func (l Layout) Normalize(p Point) Point {
	return Point{X: p.X / l.Width, Y: p.Y / l.Height}
}
