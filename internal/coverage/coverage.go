// Package coverage covers a polygon with geohash cells.
//
// Cells are first tested exactly at a coarse precision and then refined by
// appending every alphabet symbol until the target precision is reached. The
// refinement does not look at the polygon again unless Generator.Reclip is
// set, so a coverage finer than its coarse pass over-covers the polygon.
package coverage

import (
	"math"
	"sort"

	"github.com/forest-guardian/geotile-dataset/internal/geoerr"
	"github.com/forest-guardian/geotile-dataset/internal/grid"
	"github.com/paulmach/orb"
)

type Mode string

const (
	Intersecting Mode = "intersecting"
	Contained    Mode = "contained"
)

const DefaultMaxCells = 5_000_000

func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case Intersecting, "":
		return Intersecting, nil
	case Contained, "inner":
		return Contained, nil
	}
	return "", geoerr.Validation("mode", "%q is neither %q nor %q", s, Intersecting, Contained)
}

// Set is a frozen coverage: sorted, unique cells of a single precision.
type Set struct {
	Precision int      `json:"precision"`
	Mode      Mode     `json:"mode"`
	Cells     []string `json:"cells"`
}

func (s Set) Len() int {
	return len(s.Cells)
}

func (s Set) Contains(cell string) bool {
	i := sort.SearchStrings(s.Cells, cell)
	return i < len(s.Cells) && s.Cells[i] == cell
}

type Generator struct {
	Geometry Geometry
	// Reclip re-tests every descendant against the polygon while refining.
	Reclip   bool
	MaxCells int
}

// Cover uses PlanarGeometry without re-clipping.
func Cover(polygon orb.Polygon, targetPrecision, coarsePrecision int, mode Mode) (Set, error) {
	return Generator{}.Cover(polygon, targetPrecision, coarsePrecision, mode)
}

// Cover returns the cells of targetPrecision covering polygon. A
// coarsePrecision of zero runs the exact pass directly at targetPrecision.
func (g Generator) Cover(polygon orb.Polygon, targetPrecision, coarsePrecision int, mode Mode) (Set, error) {
	if err := grid.ValidatePrecision(targetPrecision); err != nil {
		return Set{}, err
	}
	if coarsePrecision == 0 {
		coarsePrecision = targetPrecision
	}
	if err := grid.ValidatePrecision(coarsePrecision); err != nil {
		return Set{}, err
	}
	if coarsePrecision > targetPrecision {
		return Set{}, geoerr.Validation("coarse precision", "%d is finer than the target precision %d", coarsePrecision, targetPrecision)
	}
	if mode != Intersecting && mode != Contained {
		return Set{}, geoerr.Validation("mode", "unknown mode %q", mode)
	}
	polygon, err := normalize(polygon)
	if err != nil {
		return Set{}, err
	}

	geometry := g.Geometry
	if geometry == nil {
		geometry = PlanarGeometry{}
	}
	maxCells := g.MaxCells
	if maxCells <= 0 {
		maxCells = DefaultMaxCells
	}

	cells, err := coarsePass(polygon, coarsePrecision, mode, geometry, maxCells)
	if err != nil {
		return Set{}, err
	}

	for precision := coarsePrecision; precision < targetPrecision && len(cells) > 0; precision++ {
		if !g.Reclip && len(cells)*len(grid.Alphabet) > maxCells {
			return Set{}, tooManyCells(len(cells)*len(grid.Alphabet), maxCells, precision+1)
		}
		next := make([]string, 0, len(cells)*len(grid.Alphabet))
		for _, cell := range cells {
			children, err := grid.Children(cell)
			if err != nil {
				return Set{}, err
			}
			if !g.Reclip {
				next = append(next, children...)
				continue
			}
			for _, child := range children {
				bound, err := grid.BoundingBox(child)
				if err != nil {
					return Set{}, err
				}
				if geometry.Test(polygon, bound, mode) {
					next = append(next, child)
				}
			}
			if len(next) > maxCells {
				return Set{}, tooManyCells(len(next), maxCells, precision+1)
			}
		}
		cells = next
	}

	return Set{Precision: targetPrecision, Mode: mode, Cells: sortUnique(cells)}, nil
}

// coarsePass enumerates the grid cells under the polygon bound and keeps the
// ones the geometry accepts.
func coarsePass(polygon orb.Polygon, precision int, mode Mode, geometry Geometry, maxCells int) ([]string, error) {
	width, height, err := grid.CellSize(precision)
	if err != nil {
		return nil, err
	}
	bound := polygon.Bound()

	x0, x1 := cellRange(bound.Left()+180, bound.Right()+180, width, 360)
	y0, y1 := cellRange(bound.Bottom()+90, bound.Top()+90, height, 180)
	candidates := (x1 - x0 + 1) * (y1 - y0 + 1)
	if candidates > maxCells {
		return nil, tooManyCells(candidates, maxCells, precision)
	}

	var cells []string
	for iy := y0; iy <= y1; iy++ {
		lat := -90 + (float64(iy)+0.5)*height
		for ix := x0; ix <= x1; ix++ {
			lon := -180 + (float64(ix)+0.5)*width
			cell, err := grid.Encode(orb.Point{lon, lat}, precision)
			if err != nil {
				return nil, err
			}
			cellBound, err := grid.BoundingBox(cell)
			if err != nil {
				return nil, err
			}
			if geometry.Test(polygon, cellBound, mode) {
				cells = append(cells, cell)
			}
		}
	}
	return cells, nil
}

// cellRange returns the first and last cell index touched by [lo, hi] on an
// axis of the given extent, both shifted to start at zero.
func cellRange(lo, hi, size, extent float64) (int, int) {
	last := int(math.Round(extent/size)) - 1
	first := clampIndex(int(math.Floor(lo/size)), last)
	end := clampIndex(int(math.Floor(hi/size)), last)
	return first, end
}

func clampIndex(i, last int) int {
	if i < 0 {
		return 0
	}
	if i > last {
		return last
	}
	return i
}

// normalize validates the rings and closes any ring given implicitly closed.
func normalize(polygon orb.Polygon) (orb.Polygon, error) {
	if len(polygon) == 0 {
		return nil, geoerr.Validation("polygon", "no rings")
	}
	out := make(orb.Polygon, 0, len(polygon))
	for i, ring := range polygon {
		for _, p := range ring {
			if err := grid.ValidatePosition(p); err != nil {
				return nil, err
			}
		}
		r := append(orb.Ring(nil), ring...)
		if len(r) > 0 && !r.Closed() {
			r = append(r, r[0])
		}
		if len(r) < 4 {
			return nil, geoerr.Validation("polygon", "ring %d has %d positions, at least 3 distinct are required", i, len(ring))
		}
		out = append(out, r)
	}
	return out, nil
}

func sortUnique(cells []string) []string {
	if len(cells) == 0 {
		return []string{}
	}
	sort.Strings(cells)
	out := cells[:1]
	for _, c := range cells[1:] {
		if c != out[len(out)-1] {
			out = append(out, c)
		}
	}
	return out
}

func tooManyCells(n, limit, precision int) error {
	return geoerr.Validation("coverage", "%d cells at precision %d exceed the limit of %d", n, precision, limit)
}
