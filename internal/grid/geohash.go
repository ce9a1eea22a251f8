// Package grid is the geohash grid: positions to cells, cells to bounding
// boxes, and the cells around a cell.
//
// Longitude and latitude bits interleave starting with longitude, five bits per
// symbol, so cells alternately bisect on longitude and latitude. Precision is
// the number of symbols and is limited to 1..12.
package grid

import (
	"fmt"
	"math"
	"strings"

	"github.com/forest-guardian/geotile-dataset/internal/geoerr"
	"github.com/mmcloughlin/geohash"
	"github.com/paulmach/orb"
)

const (
	Alphabet     = "0123456789bcdefghjkmnpqrstuvwxyz"
	MinPrecision = 1
	MaxPrecision = 12
)

var symbolIndex [256]int8

func init() {
	for i := range symbolIndex {
		symbolIndex[i] = -1
	}
	for i := 0; i < len(Alphabet); i++ {
		symbolIndex[Alphabet[i]] = int8(i)
	}
}

func ValidatePrecision(precision int) error {
	if precision < MinPrecision || precision > MaxPrecision {
		return geoerr.Validation("precision", "%d is outside %d..%d", precision, MinPrecision, MaxPrecision)
	}
	return nil
}

// Validate checks that cell is a non-empty geohash of a supported precision
// made only of alphabet symbols.
func Validate(cell string) error {
	if cell == "" {
		return geoerr.Validation("geohash", "empty cell identifier")
	}
	if len(cell) > MaxPrecision {
		return geoerr.Validation("geohash", "%q is longer than %d symbols", cell, MaxPrecision)
	}
	for i := 0; i < len(cell); i++ {
		if symbolIndex[cell[i]] < 0 {
			return geoerr.Validation("geohash", "symbol %q at position %d of %q is not in the geohash alphabet", cell[i], i, cell)
		}
	}
	return nil
}

// ValidatePosition rejects NaN and coordinates outside [-180,180] x [-90,90].
func ValidatePosition(p orb.Point) error {
	lon, lat := p.Lon(), p.Lat()
	if math.IsNaN(lon) || lon < -180 || lon > 180 {
		return geoerr.Range("longitude", lon, -180, 180)
	}
	if math.IsNaN(lat) || lat < -90 || lat > 90 {
		return geoerr.Range("latitude", lat, -90, 90)
	}
	return nil
}

// edgeLon and edgeLat sit in the middle of the last column and row of the
// finest grid. Coordinates closer to +180 or +90 round up to the full range
// when quantised to 32 bits and wrap to the opposite edge.
var (
	edgeLon = 180 - 180/math.Exp2((MaxPrecision*5+1)/2)
	edgeLat = 90 - 90/math.Exp2(MaxPrecision*5/2)
)

// Encode returns the cell of the given precision containing p. Positions on
// the north pole or on the antimeridian at +180 fall into the last row/column.
func Encode(p orb.Point, precision int) (string, error) {
	if err := ValidatePrecision(precision); err != nil {
		return "", err
	}
	if err := ValidatePosition(p); err != nil {
		return "", err
	}

	lon := math.Min(p.Lon(), edgeLon)
	lat := math.Min(p.Lat(), edgeLat)
	return geohash.EncodeWithPrecision(lat, lon, uint(precision)), nil
}

// Decode returns the cell center and the half widths of its bounding box.
func Decode(cell string) (center orb.Point, lonHalfWidth, latHalfWidth float64, err error) {
	bound, err := BoundingBox(cell)
	if err != nil {
		return orb.Point{}, 0, 0, err
	}
	lonHalfWidth = (bound.Right() - bound.Left()) / 2
	latHalfWidth = (bound.Top() - bound.Bottom()) / 2
	return bound.Center(), lonHalfWidth, latHalfWidth, nil
}

// BoundingBox returns the cell as Min={west,south}, Max={east,north}.
func BoundingBox(cell string) (orb.Bound, error) {
	if err := Validate(cell); err != nil {
		return orb.Bound{}, err
	}
	box := geohash.BoundingBox(cell)
	return orb.Bound{
		Min: orb.Point{box.MinLng, box.MinLat},
		Max: orb.Point{box.MaxLng, box.MaxLat},
	}, nil
}

// CellSize returns the width and height in degrees shared by every cell of a
// precision.
func CellSize(precision int) (width, height float64, err error) {
	if err := ValidatePrecision(precision); err != nil {
		return 0, 0, err
	}
	bits := precision * 5
	lonBits := (bits + 1) / 2
	latBits := bits / 2
	width = 360.0 / float64(uint64(1)<<uint(lonBits))
	height = 180.0 / float64(uint64(1)<<uint(latBits))
	return width, height, nil
}

// Children returns the 32 cells one precision finer than cell, in alphabet
// order.
func Children(cell string) ([]string, error) {
	if err := Validate(cell); err != nil {
		return nil, err
	}
	if len(cell) == MaxPrecision {
		return nil, geoerr.Validation("geohash", "%q is already at the maximum precision", cell)
	}
	children := make([]string, 0, len(Alphabet))
	for i := 0; i < len(Alphabet); i++ {
		children = append(children, cell+Alphabet[i:i+1])
	}
	return children, nil
}

// BoundsString renders the cell outline as a closed ring of [lon, lat] pairs,
// the format used by the "bounds" column of the CSV tables.
func BoundsString(cell string) (string, error) {
	bound, err := BoundingBox(cell)
	if err != nil {
		return "", err
	}
	ring := bound.ToRing()
	parts := make([]string, 0, len(ring))
	for _, p := range ring {
		parts = append(parts, fmt.Sprintf("[%s, %s]", formatDegrees(p.Lon()), formatDegrees(p.Lat())))
	}
	return "[" + strings.Join(parts, ", ") + "]", nil
}

func formatDegrees(v float64) string {
	return fmt.Sprintf("%g", v)
}
