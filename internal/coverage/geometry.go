package coverage

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/clip"
	"github.com/paulmach/orb/planar"
)

// Geometry decides whether a cell takes part in a coverage.
type Geometry interface {
	Test(polygon orb.Polygon, cell orb.Bound, mode Mode) bool
}

// PlanarGeometry clips the polygon to the cell and compares areas in degree
// space. Holes are subtracted, so a cell inside a hole neither intersects nor
// is contained. Touching only along an edge or at a corner does not count as
// intersecting.
type PlanarGeometry struct {
	// Tolerance is the relative area slack allowed when testing containment.
	Tolerance float64
}

func (g PlanarGeometry) Test(polygon orb.Polygon, cell orb.Bound, mode Mode) bool {
	if len(polygon) == 0 || !polygon.Bound().Intersects(cell) {
		return false
	}

	clipped := clip.Polygon(cell, polygon.Clone())
	area := polygonArea(clipped)

	switch mode {
	case Contained:
		cellArea := (cell.Right() - cell.Left()) * (cell.Top() - cell.Bottom())
		tolerance := g.Tolerance
		if tolerance == 0 {
			tolerance = 1e-9
		}
		return area >= cellArea*(1-tolerance)
	default:
		return area > 0
	}
}

func polygonArea(p orb.Polygon) float64 {
	if len(p) == 0 || len(p[0]) < 4 {
		return 0
	}
	area := math.Abs(planar.Area(p[0]))
	for _, hole := range p[1:] {
		if len(hole) < 4 {
			continue
		}
		area -= math.Abs(planar.Area(hole))
	}
	if area < 0 {
		return 0
	}
	return area
}
