package dwell

import "math"

// highlyVisible is the intersection ratio or viewport share at which a
// section counts as being looked at.
const highlyVisible = 0.7

// Visibility classifies one observation.
type Visibility int

const (
	NotVisible Visibility = iota
	PartiallyVisible
	HighlyVisible
)

func (v Visibility) String() string {
	switch v {
	case HighlyVisible:
		return "highly_visible"
	case PartiallyVisible:
		return "partially_visible"
	default:
		return "not_visible"
	}
}

// Observation is a section's bounding box relative to the viewport plus
// the observer's intersection ratio.
type Observation struct {
	IntersectionRatio float64
	Top               float64
	Height            float64
	ViewportHeight    float64
}

// VisibleHeight is the part of the section inside the viewport.
func (o Observation) VisibleHeight() float64 {
	return math.Max(0, math.Min(o.Top+o.Height, o.ViewportHeight)-math.Max(o.Top, 0))
}

// ViewportFraction is the share of the viewport the section fills.
func (o Observation) ViewportFraction() float64 {
	if o.ViewportHeight <= 0 {
		return 0
	}
	return o.VisibleHeight() / o.ViewportHeight
}

// ScrollDepth is the visible share of the section as a percentage.
func (o Observation) ScrollDepth() int {
	if o.Height <= 0 {
		return 0
	}
	d := int(math.Round(o.VisibleHeight() / o.Height * 100))
	switch {
	case d < 0:
		return 0
	case d > 100:
		return 100
	default:
		return d
	}
}

// Classify returns the visibility level of o. Tall sections that fill most
// of the viewport count as highly visible even at a low ratio.
func (o Observation) Classify() Visibility {
	switch {
	case o.IntersectionRatio >= highlyVisible || o.ViewportFraction() >= highlyVisible:
		return HighlyVisible
	case o.IntersectionRatio == 0 && o.VisibleHeight() == 0:
		return NotVisible
	default:
		return PartiallyVisible
	}
}
