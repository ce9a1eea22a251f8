// Package rasterize finds the grid cells a line crosses.
//
// Traversal is a two dimensional DDA over integer cell indices. The number of
// steps is fixed before the loop starts (one per crossed grid line plus the
// starting cell), so floating point drift can never keep it running.
package rasterize

import (
	"math"
	"sort"

	"github.com/forest-guardian/geotile-dataset/internal/geoerr"
	"github.com/paulmach/orb"
)

// SegmentAt rasterizes the segment on the geohash grid of the given precision.
func SegmentAt(p0, p1 orb.Point, precision int) ([]string, error) {
	return Segment(p0, p1, GeohashLattice{Precision: precision})
}

// Segment returns the sorted cells of the lattice touched by the closed
// segment p0-p1, including the cells holding both endpoints. The result does
// not depend on the direction of the segment.
func Segment(p0, p1 orb.Point, lattice Lattice) ([]string, error) {
	seen := make(map[string]struct{})
	if err := traverse(p0, p1, lattice, seen); err != nil {
		return nil, err
	}
	return sortedCells(seen), nil
}

// Path rasterizes consecutive pairs of points and returns the union.
func Path(points []orb.Point, lattice Lattice) ([]string, error) {
	seen := make(map[string]struct{})
	switch len(points) {
	case 0:
		return []string{}, nil
	case 1:
		if err := traverse(points[0], points[0], lattice, seen); err != nil {
			return nil, err
		}
	}
	for i := 1; i < len(points); i++ {
		if err := traverse(points[i-1], points[i], lattice, seen); err != nil {
			return nil, err
		}
	}
	return sortedCells(seen), nil
}

func traverse(p0, p1 orb.Point, lattice Lattice, seen map[string]struct{}) error {
	if p1.X() < p0.X() || (p1.X() == p0.X() && p1.Y() < p0.Y()) {
		p0, p1 = p1, p0
	}

	width, height := lattice.CellSize()
	ix, iy, err := lattice.Index(p0)
	if err != nil {
		return err
	}
	ix1, iy1, err := lattice.Index(p1)
	if err != nil {
		return err
	}
	if !(width > 0) || !(height > 0) {
		return geoerr.Validation("cell size", "%gx%g is not positive", width, height)
	}

	origin := lattice.Origin()
	x0, y0 := p0.X()-origin.X(), p0.Y()-origin.Y()
	dx := math.Abs(p1.X() - p0.X())
	dy := math.Abs(p1.Y() - p0.Y())

	stepX, tMaxX, tDeltaX := axis(ix, ix1, x0, dx, width)
	stepY, tMaxY, tDeltaY := axis(iy, iy1, y0, dy, height)

	steps := 1 + abs(ix1-ix) + abs(iy1-iy)
	for i := 0; i < steps; i++ {
		cell, err := lattice.Cell(ix, iy)
		if err != nil {
			return err
		}
		seen[cell] = struct{}{}

		switch {
		case ix == ix1:
			iy += stepY
		case iy == iy1:
			ix += stepX
		case tMaxX < tMaxY:
			ix += stepX
			tMaxX += tDeltaX
		default:
			iy += stepY
			tMaxY += tDeltaY
		}
	}
	return nil
}

// axis returns the index step along one axis, the parametric distance to the
// first grid line crossed and the distance between grid lines. Distances are
// measured on the absolute delta; the sign lives in the step only.
func axis(i, i1 int, start, delta, size float64) (step int, tMax, tDelta float64) {
	switch {
	case i1 > i:
		step = 1
	case i1 < i:
		step = -1
	default:
		return 0, math.Inf(1), math.Inf(1)
	}
	if delta == 0 {
		return step, math.Inf(1), math.Inf(1)
	}
	corner := float64(i) * size
	if step > 0 {
		tMax = (corner + size - start) / delta
	} else {
		tMax = (start - corner) / delta
	}
	return step, tMax, size / delta
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func sortedCells(seen map[string]struct{}) []string {
	cells := make([]string, 0, len(seen))
	for cell := range seen {
		cells = append(cells, cell)
	}
	sort.Strings(cells)
	return cells
}
