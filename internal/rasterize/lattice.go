package rasterize

import (
	"fmt"
	"math"

	"github.com/forest-guardian/geotile-dataset/internal/geoerr"
	"github.com/forest-guardian/geotile-dataset/internal/grid"
	"github.com/paulmach/orb"
)

// Lattice is a uniform rectangular grid with integer cell indices. Cell
// (ix, iy) spans [Origin+ix*width, Origin+(ix+1)*width) on x and the same on y.
type Lattice interface {
	CellSize() (width, height float64)
	Origin() orb.Point
	Index(p orb.Point) (ix, iy int, err error)
	Cell(ix, iy int) (string, error)
}

// GeohashLattice is the geohash grid at a fixed precision. Indices count cells
// east from the antimeridian and north from the south pole.
type GeohashLattice struct {
	Precision int
}

func (l GeohashLattice) CellSize() (float64, float64) {
	width, height, err := grid.CellSize(l.Precision)
	if err != nil {
		return 0, 0
	}
	return width, height
}

func (l GeohashLattice) Origin() orb.Point {
	return orb.Point{-180, -90}
}

// Index is derived from the encoded cell so it always agrees with grid.Encode.
func (l GeohashLattice) Index(p orb.Point) (int, int, error) {
	cell, err := grid.Encode(p, l.Precision)
	if err != nil {
		return 0, 0, err
	}
	bound, err := grid.BoundingBox(cell)
	if err != nil {
		return 0, 0, err
	}
	width, height := l.CellSize()
	ix := int(math.Round((bound.Left() + 180) / width))
	iy := int(math.Round((bound.Bottom() + 90) / height))
	return ix, iy, nil
}

func (l GeohashLattice) Cell(ix, iy int) (string, error) {
	width, height := l.CellSize()
	center := orb.Point{
		-180 + (float64(ix)+0.5)*width,
		-90 + (float64(iy)+0.5)*height,
	}
	return grid.Encode(center, l.Precision)
}

// UniformLattice is a plain grid anchored at the origin. Cell ids are "ix:iy".
type UniformLattice struct {
	Width  float64
	Height float64
}

func (l UniformLattice) CellSize() (float64, float64) {
	return l.Width, l.Height
}

func (l UniformLattice) Origin() orb.Point {
	return orb.Point{0, 0}
}

func (l UniformLattice) Index(p orb.Point) (int, int, error) {
	if !(l.Width > 0) || !(l.Height > 0) {
		return 0, 0, geoerr.Validation("cell size", "%gx%g is not positive", l.Width, l.Height)
	}
	if math.IsNaN(p.X()) || math.IsNaN(p.Y()) || math.IsInf(p.X(), 0) || math.IsInf(p.Y(), 0) {
		return 0, 0, geoerr.Validation("position", "%v is not finite", p)
	}
	return int(math.Floor(p.X() / l.Width)), int(math.Floor(p.Y() / l.Height)), nil
}

func (l UniformLattice) Cell(ix, iy int) (string, error) {
	return fmt.Sprintf("%d:%d", ix, iy), nil
}
